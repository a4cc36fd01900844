package game

import (
	"fmt"
	"strings"

	"github.com/Axidify/Terminality-V2-sub001/internal/security"
)

const (
	AnsiReset     = "\x1b[0m"
	AnsiBold      = "\x1b[1m"
	AnsiDim       = "\x1b[2m"
	AnsiUnderline = "\x1b[4m"
	AnsiRed       = "\x1b[31m"
	AnsiGreen     = "\x1b[32m"
	AnsiYellow    = "\x1b[33m"
	AnsiBlue      = "\x1b[34m"
	AnsiMagenta   = "\x1b[35m"
	AnsiCyan      = "\x1b[36m"
)

// Style wraps text with the provided ANSI attributes.
func Style(text string, attrs ...string) string {
	if len(attrs) == 0 {
		return text
	}
	return strings.Join(attrs, "") + text + AnsiReset
}

// HighlightHost formats a system address or name.
func HighlightHost(name string) string {
	return Style(name, AnsiBold, AnsiCyan)
}

// HighlightPath formats a filesystem path.
func HighlightPath(path string) string {
	return Style(path, AnsiBlue)
}

// Warn formats a refusal or error line.
func Warn(text string) string {
	return Style(text, AnsiYellow)
}

// BandColor returns the colour used for a trace band.
func BandColor(band security.Band) string {
	switch band {
	case security.BandPanic:
		return AnsiRed
	case security.BandNervous:
		return AnsiYellow
	}
	return AnsiGreen
}

// TraceMeter renders trace as a fixed width bar.
func TraceMeter(trace, max int, band security.Band) string {
	const width = 20
	if max <= 0 {
		max = security.DefaultMaxTrace
	}
	filled := trace * width / max
	if filled > width {
		filled = width
	}
	bar := strings.Repeat("#", filled) + strings.Repeat(".", width-filled)
	return fmt.Sprintf("[%s] %d/%d %s", Style(bar, BandColor(band)), trace, max, band)
}

// Trim normalises a telnet input line.
func Trim(s string) string {
	return strings.TrimSpace(sanitizeInput(s))
}

// Ansi ensures output strings end with a reset sequence.
func Ansi(c string) string {
	if strings.Contains(c, "\x1b[") && !strings.HasSuffix(c, AnsiReset) {
		return c + AnsiReset
	}
	return c
}

// Prompt renders the terminal prompt for the player's current location.
func Prompt(p *Player) string {
	where := "local"
	if p != nil && p.Desktop != nil {
		if host, cwd, ok := p.Desktop.Location(); ok {
			where = host + ":" + cwd
		}
	}
	return Ansi("\r\n" + Style(where, AnsiGreen) + Style(" $ ", AnsiBold, AnsiYellow))
}
