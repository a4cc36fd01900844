package game

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/Axidify/Terminality-V2-sub001/internal/logging"
	"github.com/Axidify/Terminality-V2-sub001/internal/metrics"
)

// Dispatcher executes a terminal line for the connected player.
// Returning true indicates the connection should terminate.
type Dispatcher func(*World, *Player, string) bool

var netListenFunc = net.Listen

const (
	loginBanner     = "TERMINALITY // remote access terminal"
	handlePrompt    = "handle: "
	logoffMessage   = "Session closed. Your desktop will be here when you return."
	handleAttempts  = 3
	maxHandleLength = 24
	openTimeout     = 10 * time.Second
)

// ListenAndServe accepts telnet terminals on addr until ctx ends.
func ListenAndServe(ctx context.Context, addr string, world *World, dispatcher Dispatcher) error {
	if dispatcher == nil {
		return errors.New("dispatcher must not be nil")
	}
	ln, err := netListenFunc("tcp", addr)
	if err != nil {
		return err
	}
	logging.L().Info("terminal listening", logging.String("addr", ln.Addr().String()))
	return Serve(ctx, ln, world, dispatcher)
}

// Serve runs terminals accepted from ln. When ctx ends the listener and every
// accepted connection are closed, including those still at the handle
// prompt, and Serve returns once their state is queued for saving.
func Serve(ctx context.Context, ln net.Listener, world *World, dispatcher Dispatcher) error {
	var wg sync.WaitGroup
	conns := newConnSet()
	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
		conns.closeAll()
	})
	defer stop()

	err := acceptConnections(ln, func(conn net.Conn) {
		if !conns.add(conn) {
			_ = conn.Close()
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer conns.remove(conn)
			handleConn(conn, world, dispatcher)
		}()
	})
	if ctx.Err() != nil && errors.Is(err, net.ErrClosed) {
		err = nil
	}
	_ = ln.Close()
	wg.Wait()
	return err
}

// connSet holds the connections Serve has accepted and not yet finished.
type connSet struct {
	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool
}

func newConnSet() *connSet {
	return &connSet{conns: make(map[net.Conn]struct{})}
}

// add reports false once closeAll has run.
func (s *connSet) add(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *connSet) remove(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}

func (s *connSet) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for conn := range s.conns {
		_ = conn.Close()
	}
}

func validHandle(handle string) bool {
	if len(handle) < 2 || len(handle) > maxHandleLength {
		return false
	}
	for _, r := range handle {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' {
			return false
		}
	}
	return true
}

func readHandle(session *TelnetSession) (string, error) {
	for range handleAttempts {
		if err := session.WriteString(Ansi("\r\n" + Style(handlePrompt, AnsiBold))); err != nil {
			return "", err
		}
		line, err := session.ReadLine()
		if err != nil {
			return "", err
		}
		handle := Trim(line)
		if validHandle(handle) {
			return handle, nil
		}
		_ = session.WriteString(Ansi("\r\n" + Warn("Handles are 2-24 letters, digits, '-' or '_'.")))
	}
	return "", errors.New("no valid handle given")
}

func handleConn(conn net.Conn, world *World, dispatcher Dispatcher) {
	session := NewTelnetSession(conn)
	defer session.Close()
	session.SetIdleTimeout(world.idleTimeout)

	_ = session.WriteString(Ansi("\r\n" + Style(loginBanner, AnsiBold, AnsiGreen)))
	handle, err := readHandle(session)
	if err != nil {
		return
	}
	if _, ok := world.ActivePlayer(handle); ok {
		_ = session.WriteString(Ansi("\r\n" + Warn(handle+" is already connected from another terminal.") + "\r\n"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	desktop, warnings, err := world.OpenDesktop(ctx, handle)
	cancel()
	if err != nil {
		logging.L().Error("open desktop", logging.String("player", handle), logging.Err(err))
		_ = session.WriteString(Ansi("\r\n" + Warn("Your desktop could not be loaded. Try again later.") + "\r\n"))
		return
	}
	log := logging.WithSession(handle, desktop.ID())
	for _, w := range warnings {
		log.Warn("desktop state partially restored", logging.String("warning", w))
	}

	p := NewPlayer(handle, session, desktop, world.commandRate)
	if err := world.addPlayer(p); err != nil {
		_ = session.WriteString(Ansi("\r\n" + Warn(err.Error()) + "\r\n"))
		return
	}
	metrics.SessionOpened()
	defer metrics.SessionClosed()
	log.Info("terminal opened", logging.String("remote", conn.RemoteAddr().String()))

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for out := range p.Output {
			_ = session.WriteString(out)
		}
	}()

	p.Send(desktop.OpenTerminal().Output...)
	p.Output <- Prompt(p)

	for {
		line, err := session.ReadLine()
		if err != nil {
			break
		}
		line = Trim(line)
		if line == "" {
			p.Output <- Prompt(p)
			continue
		}
		if !p.allowCommand(time.Now()) {
			p.Send(Warn("You are sending commands too quickly. Please wait."))
			p.Output <- Prompt(p)
			continue
		}
		if !p.Alive {
			break
		}
		if quit := dispatcher(world, p, line); quit {
			break
		}
		world.SaveDesktop(desktop)
		p.Output <- Prompt(p)
	}

	p.Send(Style(logoffMessage, AnsiDim))
	p.Alive = false
	world.SaveDesktop(desktop)
	world.removePlayer(p.Name)
	close(p.Output)
	<-writerDone
	log.Info("terminal closed")
}

const (
	acceptBackoffStart = 50 * time.Millisecond
	acceptBackoffMax   = time.Second
)

var acceptSleep = time.Sleep

func acceptConnections(ln net.Listener, handle func(net.Conn)) error {
	backoff := acceptBackoffStart
	for {
		conn, err := ln.Accept()
		if err != nil {
			if isTemporaryAcceptError(err) {
				logging.L().Warn("temporary accept error",
					logging.Err(err),
					logging.Duration("retry_in", backoff),
				)
				acceptSleep(backoff)
				backoff *= 2
				if backoff > acceptBackoffMax {
					backoff = acceptBackoffMax
				}
				continue
			}
			return err
		}
		backoff = acceptBackoffStart
		handle(conn)
	}
}

func isTemporaryAcceptError(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var temp interface{ Temporary() bool }
	if errors.As(err, &temp) && temp.Temporary() {
		return true
	}
	return errors.Is(err, os.ErrDeadlineExceeded) || strings.Contains(err.Error(), "too many open files")
}
