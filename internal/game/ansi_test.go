package game

import (
	"strings"
	"testing"

	"github.com/Axidify/Terminality-V2-sub001/internal/security"
)

func TestTrimRemovesUnsafeCharacters(t *testing.T) {
	input := " \tHello\u202e \x07World\x00 "
	got := Trim(input)
	want := "Hello World"
	if got != want {
		t.Fatalf("Trim(%q) = %q, want %q", input, got, want)
	}
}

func TestTrimNormalisesWhitespace(t *testing.T) {
	input := "cat\t/var/logs notes"
	got := Trim(input)
	want := "cat /var/logs notes"
	if got != want {
		t.Fatalf("Trim(%q) = %q, want %q", input, got, want)
	}
}

func TestTrimCapsLineLength(t *testing.T) {
	input := strings.Repeat("é", maxLineLength)
	got := Trim(input)
	if len(got) > maxLineLength {
		t.Fatalf("Trim kept %d bytes", len(got))
	}
	if strings.ContainsRune(got, '\uFFFD') || !strings.HasPrefix(input, got) {
		t.Fatalf("Trim split a rune: %q", got[len(got)-4:])
	}
}

func TestTraceMeter(t *testing.T) {
	plain := ansiPattern.ReplaceAllString(TraceMeter(50, 100, security.BandNervous), "")
	if plain != "[##########..........] 50/100 nervous" {
		t.Fatalf("TraceMeter = %q", plain)
	}
	plain = ansiPattern.ReplaceAllString(TraceMeter(250, 100, security.BandPanic), "")
	if !strings.HasPrefix(plain, "[####################]") {
		t.Fatalf("TraceMeter overflowed: %q", plain)
	}
}
