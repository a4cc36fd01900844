package game

import "time"

// Player is a connected terminal user.
type Player struct {
	Name     string
	Session  *TelnetSession
	Desktop  *Desktop
	Output   chan string
	Alive    bool
	JoinedAt time.Time

	commandLimit int
	history      []time.Time
}

const (
	defaultCommandLimit = 5
	commandWindow       = time.Second
)

// NewPlayer builds a player with a buffered output channel.
func NewPlayer(name string, session *TelnetSession, desktop *Desktop, commandLimit int) *Player {
	return &Player{
		Name:         name,
		Session:      session,
		Desktop:      desktop,
		Output:       make(chan string, 64),
		Alive:        true,
		JoinedAt:     time.Now(),
		commandLimit: commandLimit,
	}
}

// allowCommand applies a sliding one second window to terminal commands.
func (p *Player) allowCommand(now time.Time) bool {
	limit := p.commandLimit
	if limit <= 0 {
		limit = defaultCommandLimit
	}
	cutoff := now.Add(-commandWindow)
	kept := p.history[:0]
	for _, t := range p.history {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	p.history = kept
	if len(p.history) >= limit {
		return false
	}
	p.history = append(p.history, now)
	return true
}

// WindowSize reports the client's terminal width and height.
func (p *Player) WindowSize() (int, int) {
	if p.Session == nil {
		return 80, 24
	}
	return p.Session.Size()
}

// Send renders lines to the player's output.
func (p *Player) Send(lines ...string) {
	for _, line := range lines {
		p.Output <- Ansi("\r\n" + line)
	}
}
