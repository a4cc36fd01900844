package game

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"
)

type testTerminal struct {
	t    *testing.T
	conn net.Conn
	seen strings.Builder
}

func dialTerminal(t *testing.T, addr string) *testTerminal {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &testTerminal{t: t, conn: conn}
}

func (tt *testTerminal) send(line string) {
	tt.t.Helper()
	if _, err := tt.conn.Write([]byte(line + "\r\n")); err != nil {
		tt.t.Fatalf("write %q: %v", line, err)
	}
}

// expect reads until want appears in the output since the last expect.
func (tt *testTerminal) expect(want string) {
	tt.t.Helper()
	_ = tt.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	buf := make([]byte, 512)
	for {
		text := ansiPattern.ReplaceAllString(tt.seen.String(), "")
		if idx := strings.Index(text, want); idx >= 0 {
			tt.seen.Reset()
			tt.seen.WriteString(text[idx+len(want):])
			return
		}
		n, err := tt.conn.Read(buf)
		if err != nil {
			tt.t.Fatalf("waiting for %q: %v (saw %q)", want, err, text)
		}
		tt.seen.Write(buf[:n])
	}
}

func TestServeRunsTerminalSession(t *testing.T) {
	world := NewWorld(testCatalog(t))
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	dispatched := make(chan string, 8)
	dispatcher := func(w *World, p *Player, line string) bool {
		dispatched <- line
		if line == "quit" {
			return true
		}
		p.Send(p.Desktop.TraceReport().Output...)
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- Serve(ctx, ln, world, dispatcher) }()

	term := dialTerminal(t, ln.Addr().String())
	term.expect(loginBanner)
	term.expect(handlePrompt)
	term.send("x")
	term.expect("Handles are 2-24")
	term.send("ghost")
	term.expect("Terminal ready.")
	term.expect("local $")

	other := dialTerminal(t, ln.Addr().String())
	other.expect(handlePrompt)
	other.send("GHOST")
	other.expect("already connected")

	term.send("trace")
	term.expect("No systems have noticed you yet.")
	term.send("quit")
	term.expect(logoffMessage)

	if got := <-dispatched; got != "trace" {
		t.Fatalf("first dispatched line = %q", got)
	}

	cancel()
	select {
	case err := <-served:
		if err != nil {
			t.Fatalf("Serve returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("Serve did not stop after cancel")
	}
}

// waitClosed reads until the server drops the connection.
func (tt *testTerminal) waitClosed(within time.Duration) {
	tt.t.Helper()
	_ = tt.conn.SetReadDeadline(time.Now().Add(within))
	buf := make([]byte, 512)
	for {
		if _, err := tt.conn.Read(buf); err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				tt.t.Fatalf("connection still open after %v", within)
			}
			return
		}
	}
}

func TestServeStopsWithTerminalAtHandlePrompt(t *testing.T) {
	world := NewWorld(testCatalog(t))
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() {
		served <- Serve(ctx, ln, world, func(*World, *Player, string) bool { return false })
	}()

	lurker := dialTerminal(t, ln.Addr().String())
	lurker.expect(handlePrompt)

	cancel()
	select {
	case err := <-served:
		if err != nil {
			t.Fatalf("Serve returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("Serve blocked on a terminal that never sent a handle")
	}
	lurker.waitClosed(time.Second)
}

func TestIdleTerminalIsDisconnected(t *testing.T) {
	world := NewWorld(testCatalog(t), WithIdleTimeout(100*time.Millisecond))
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = Serve(ctx, ln, world, func(*World, *Player, string) bool { return false }) }()

	term := dialTerminal(t, ln.Addr().String())
	term.expect(handlePrompt)
	term.waitClosed(3 * time.Second)
}

func TestValidHandle(t *testing.T) {
	cases := []struct {
		handle string
		want   bool
	}{
		{"ghost", true},
		{"zero_cool-99", true},
		{"x", false},
		{"two words", false},
		{"root;rm", false},
		{strings.Repeat("a", 24), true},
		{strings.Repeat("a", 25), false},
	}
	for _, tc := range cases {
		if got := validHandle(tc.handle); got != tc.want {
			t.Fatalf("validHandle(%q) = %v, want %v", tc.handle, got, tc.want)
		}
	}
}
