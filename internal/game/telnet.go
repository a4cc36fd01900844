package game

import (
	"bufio"
	"bytes"
	"net"
	"strings"
	"sync"
	"time"
)

const (
	telnetIAC  byte = 255
	telnetDONT byte = 254
	telnetDO   byte = 253
	telnetWONT byte = 252
	telnetWILL byte = 251
	telnetSB   byte = 250
	telnetSE   byte = 240
)

const (
	telnetOptEcho       byte = 1
	telnetOptSuppressGA byte = 3
	telnetOptWindowSize byte = 31
	telnetOptLineMode   byte = 34
)

// TelnetSession is a line oriented telnet connection. Writes may come from
// any goroutine; reads belong to the connection's handler.
type TelnetSession struct {
	conn        net.Conn
	reader      *bufio.Reader
	mu          sync.Mutex
	width       int
	height      int
	idleTimeout time.Duration
}

// NewTelnetSession wraps conn and starts option negotiation.
func NewTelnetSession(conn net.Conn) *TelnetSession {
	s := &TelnetSession{
		conn:   conn,
		reader: bufio.NewReader(conn),
		width:  80,
		height: 24,
	}
	_ = s.writeRaw([]byte{
		telnetIAC, telnetWILL, telnetOptSuppressGA,
		telnetIAC, telnetWONT, telnetOptEcho,
		telnetIAC, telnetDONT, telnetOptLineMode,
		telnetIAC, telnetDO, telnetOptWindowSize,
	})
	return s
}

// SetIdleTimeout makes ReadLine fail when the client stays silent for d.
func (s *TelnetSession) SetIdleTimeout(d time.Duration) {
	s.idleTimeout = d
}

func (s *TelnetSession) writeRaw(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.conn.Write(payload)
	return err
}

// WriteString sends msg with bare newlines expanded to CRLF.
func (s *TelnetSession) WriteString(msg string) error {
	return s.writeRaw(translateForTelnet(msg))
}

// WriteLines sends each line on its own row.
func (s *TelnetSession) WriteLines(lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	return s.WriteString("\n" + strings.Join(lines, "\n"))
}

func translateForTelnet(msg string) []byte {
	out := make([]byte, 0, len(msg)+8)
	for i := 0; i < len(msg); i++ {
		switch b := msg[i]; b {
		case '\n':
			if i == 0 || msg[i-1] != '\r' {
				out = append(out, '\r')
			}
			out = append(out, '\n')
		case telnetIAC:
			out = append(out, telnetIAC, telnetIAC)
		default:
			out = append(out, b)
		}
	}
	return out
}

// ReadLine returns the next line without its terminator. Telnet commands in
// the stream are answered and stripped.
func (s *TelnetSession) ReadLine() (string, error) {
	if s.idleTimeout > 0 {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.idleTimeout))
	}
	var buf bytes.Buffer
	for {
		b, err := s.reader.ReadByte()
		if err != nil {
			return "", err
		}
		switch b {
		case '\r':
			if next, err := s.reader.Peek(1); err == nil && (next[0] == '\n' || next[0] == 0) {
				_, _ = s.reader.ReadByte()
			}
			return buf.String(), nil
		case '\n':
			return buf.String(), nil
		case 0x08, 0x7f:
			if buf.Len() > 0 {
				buf.Truncate(buf.Len() - 1)
			}
		case 0x00:
		case telnetIAC:
			if err := s.handleIAC(&buf); err != nil {
				return "", err
			}
		default:
			buf.WriteByte(b)
		}
	}
}

func (s *TelnetSession) handleIAC(buf *bytes.Buffer) error {
	cmd, err := s.reader.ReadByte()
	if err != nil {
		return err
	}
	switch cmd {
	case telnetIAC:
		buf.WriteByte(telnetIAC)
	case telnetDO, telnetDONT, telnetWILL, telnetWONT:
		opt, err := s.reader.ReadByte()
		if err != nil {
			return err
		}
		if reply, ok := negotiationReply(cmd, opt); ok {
			_ = s.writeRaw([]byte{telnetIAC, reply, opt})
		}
	case telnetSB:
		return s.readSubnegotiation()
	}
	return nil
}

// negotiationReply answers an option request. Only suppress-go-ahead is
// offered by the server and only window size is accepted from the client.
func negotiationReply(cmd, opt byte) (byte, bool) {
	switch cmd {
	case telnetDO:
		if opt == telnetOptSuppressGA {
			return telnetWILL, true
		}
		return telnetWONT, true
	case telnetWILL:
		if opt == telnetOptWindowSize {
			return 0, false
		}
		return telnetDONT, true
	case telnetDONT:
		return telnetWONT, true
	case telnetWONT:
		return telnetDONT, true
	}
	return 0, false
}

func (s *TelnetSession) readSubnegotiation() error {
	opt, err := s.reader.ReadByte()
	if err != nil {
		return err
	}
	var payload []byte
	for {
		b, err := s.reader.ReadByte()
		if err != nil {
			return err
		}
		if b != telnetIAC {
			payload = append(payload, b)
			continue
		}
		next, err := s.reader.ReadByte()
		if err != nil {
			return err
		}
		if next == telnetSE {
			break
		}
		if next == telnetIAC {
			payload = append(payload, telnetIAC)
		}
	}
	if opt == telnetOptWindowSize && len(payload) >= 4 {
		s.mu.Lock()
		s.width = int(payload[0])<<8 | int(payload[1])
		s.height = int(payload[2])<<8 | int(payload[3])
		s.mu.Unlock()
	}
	return nil
}

// Close closes the underlying connection.
func (s *TelnetSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}

// Size reports the client window size from NAWS, defaulting to 80x24.
func (s *TelnetSession) Size() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}
