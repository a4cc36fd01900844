package game

import (
	"net"
	"testing"
	"time"
)

func TestTranslateForTelnet(t *testing.T) {
	input := "ls\nbin\r\netc" + string([]byte{telnetIAC}) + "!"
	got := translateForTelnet(input)
	expected := []byte{'l', 's', '\r', '\n', 'b', 'i', 'n', '\r', '\n', 'e', 't', 'c', telnetIAC, telnetIAC, '!'}
	if string(got) != string(expected) {
		t.Fatalf("unexpected translation: %v", got)
	}
}

func TestNegotiationReply(t *testing.T) {
	cases := []struct {
		cmd, opt byte
		reply    byte
		ok       bool
	}{
		{telnetDO, telnetOptSuppressGA, telnetWILL, true},
		{telnetDO, telnetOptEcho, telnetWONT, true},
		{telnetWILL, telnetOptWindowSize, 0, false},
		{telnetWILL, telnetOptLineMode, telnetDONT, true},
		{telnetDONT, telnetOptEcho, telnetWONT, true},
	}
	for _, tc := range cases {
		reply, ok := negotiationReply(tc.cmd, tc.opt)
		if reply != tc.reply || ok != tc.ok {
			t.Fatalf("negotiationReply(%d, %d) = %d, %v", tc.cmd, tc.opt, reply, ok)
		}
	}
}

func TestReadLineStripsTelnetCommands(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	go func() {
		buf := make([]byte, 64)
		for {
			if _, err := client.Read(buf); err != nil {
				return
			}
		}
	}()
	session := NewTelnetSession(server)
	defer session.Close()

	go func() {
		stream := []byte{telnetIAC, telnetSB, telnetOptWindowSize, 0, 120, 0, 40, telnetIAC, telnetSE}
		stream = append(stream, []byte("scann\x7f 10.23.4.8\r\n")...)
		_, _ = client.Write(stream)
	}()

	line, err := session.ReadLine()
	if err != nil {
		t.Fatalf("ReadLine: %v", err)
	}
	if line != "scan 10.23.4.8" {
		t.Fatalf("ReadLine = %q", line)
	}
	if w, h := session.Size(); w != 120 || h != 40 {
		t.Fatalf("Size = %dx%d, want 120x40", w, h)
	}
}

func TestReadLineIdleTimeout(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	go func() {
		buf := make([]byte, 64)
		for {
			if _, err := client.Read(buf); err != nil {
				return
			}
		}
	}()
	session := NewTelnetSession(server)
	defer session.Close()
	session.SetIdleTimeout(20 * time.Millisecond)

	if _, err := session.ReadLine(); err == nil {
		t.Fatalf("ReadLine returned without input")
	}
}
