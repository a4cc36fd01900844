// Package security tracks how much attention a player draws on a remote
// system and decides which of its doors will let them in.
package security

import "fmt"

// Effect describes what happens when a trace band is entered. The engine only
// reports effects; callers apply them.
type Effect string

const (
	EffectNone         Effect = ""
	EffectTightenDoors Effect = "tighten_doors"
	EffectKickUser     Effect = "kick_user"
	EffectLockout      Effect = "lockout"
	EffectLogOnly      Effect = "log_only"
)

// Action is a traced player action.
type Action string

const (
	ActionScan                Action = "scan"
	ActionDeepScan            Action = "deepScan"
	ActionBruteforce          Action = "bruteforce"
	ActionDeleteSensitiveFile Action = "deleteSensitiveFile"
	ActionOpenTrapFile        Action = "openTrapFile"
)

// DefaultMaxTrace caps trace on systems without rules.
const DefaultMaxTrace = 100

// TraceCosts maps each action to the trace it adds. A nil field was not
// authored and costs the default; an authored zero makes the action free.
type TraceCosts struct {
	Scan                *int `json:"scan,omitempty" yaml:"scan,omitempty" validate:"omitempty,gte=0"`
	DeepScan            *int `json:"deepScan,omitempty" yaml:"deepScan,omitempty" validate:"omitempty,gte=0"`
	Bruteforce          *int `json:"bruteforce,omitempty" yaml:"bruteforce,omitempty" validate:"omitempty,gte=0"`
	DeleteSensitiveFile *int `json:"deleteSensitiveFile,omitempty" yaml:"deleteSensitiveFile,omitempty" validate:"omitempty,gte=0"`
	OpenTrapFile        *int `json:"openTrapFile,omitempty" yaml:"openTrapFile,omitempty" validate:"omitempty,gte=0"`
}

// Points returns a cost suitable for a TraceCosts field.
func Points(n int) *int {
	return &n
}

// DefaultCosts applies to actions the rules leave out, and to every action
// on systems without rules.
var DefaultCosts = map[Action]int{
	ActionScan:                5,
	ActionDeepScan:            15,
	ActionBruteforce:          20,
	ActionDeleteSensitiveFile: 25,
	ActionOpenTrapFile:        30,
}

func (c TraceCosts) field(action Action) *int {
	switch action {
	case ActionScan:
		return c.Scan
	case ActionDeepScan:
		return c.DeepScan
	case ActionBruteforce:
		return c.Bruteforce
	case ActionDeleteSensitiveFile:
		return c.DeleteSensitiveFile
	case ActionOpenTrapFile:
		return c.OpenTrapFile
	}
	return nil
}

// Cost returns the trace added by action: the authored value when there is
// one, else the default. Unknown actions cost nothing.
func (c TraceCosts) Cost(action Action) int {
	if cost := c.field(action); cost != nil {
		return max(*cost, 0)
	}
	return DefaultCosts[action]
}

// Clone copies the authored costs.
func (c TraceCosts) Clone() TraceCosts {
	cp := func(p *int) *int {
		if p == nil {
			return nil
		}
		return Points(*p)
	}
	return TraceCosts{
		Scan:                cp(c.Scan),
		DeepScan:            cp(c.DeepScan),
		Bruteforce:          cp(c.Bruteforce),
		DeleteSensitiveFile: cp(c.DeleteSensitiveFile),
		OpenTrapFile:        cp(c.OpenTrapFile),
	}
}

// Rules are a system's trace thresholds and reactions.
type Rules struct {
	MaxTrace         int        `json:"maxTrace" yaml:"maxTrace" validate:"gte=0"`
	// NervousThreshold of 0 disables the nervous band; it never fires.
	NervousThreshold int        `json:"nervousThreshold" yaml:"nervousThreshold" validate:"gte=0"`
	// PanicThreshold of 0 disables the panic band.
	PanicThreshold   int        `json:"panicThreshold" yaml:"panicThreshold" validate:"gte=0"`
	NervousEffect    Effect     `json:"nervousEffect,omitempty" yaml:"nervousEffect,omitempty" validate:"omitempty,oneof=tighten_doors kick_user log_only"`
	PanicEffect      Effect     `json:"panicEffect,omitempty" yaml:"panicEffect,omitempty" validate:"omitempty,oneof=kick_user lockout log_only"`
	ActionTraceCosts TraceCosts `json:"actionTraceCosts" yaml:"actionTraceCosts"`
}

// Clone returns a copy of r that shares no costs with it.
func (r Rules) Clone() Rules {
	out := r
	out.ActionTraceCosts = r.ActionTraceCosts.Clone()
	return out
}

// Normalize returns a copy of r that satisfies
// 0 <= nervous <= panic <= max, plus a note for every value it had to clamp.
func (r Rules) Normalize() (Rules, []string) {
	var notes []string
	out := r.Clone()
	if out.MaxTrace <= 0 {
		if r.MaxTrace < 0 {
			notes = append(notes, fmt.Sprintf("maxTrace %d below zero; using %d", r.MaxTrace, DefaultMaxTrace))
		}
		out.MaxTrace = DefaultMaxTrace
	}
	if out.NervousThreshold < 0 {
		notes = append(notes, fmt.Sprintf("nervousThreshold %d below zero; using 0", out.NervousThreshold))
		out.NervousThreshold = 0
	}
	if out.PanicThreshold > out.MaxTrace {
		notes = append(notes, fmt.Sprintf("panicThreshold %d above maxTrace %d", out.PanicThreshold, out.MaxTrace))
		out.PanicThreshold = out.MaxTrace
	}
	if out.NervousThreshold > out.PanicThreshold && out.PanicThreshold > 0 {
		notes = append(notes, fmt.Sprintf("nervousThreshold %d above panicThreshold %d", out.NervousThreshold, out.PanicThreshold))
		out.NervousThreshold = out.PanicThreshold
	}
	if out.NervousThreshold > out.MaxTrace {
		notes = append(notes, fmt.Sprintf("nervousThreshold %d above maxTrace %d", out.NervousThreshold, out.MaxTrace))
		out.NervousThreshold = out.MaxTrace
	}
	if out.PanicThreshold < 0 {
		out.PanicThreshold = 0
	}
	return out, notes
}

// Band is a coarse trace level.
type Band int

const (
	BandCalm Band = iota
	BandNervous
	BandPanic
)

func (b Band) String() string {
	switch b {
	case BandNervous:
		return "nervous"
	case BandPanic:
		return "panic"
	default:
		return "calm"
	}
}

// BandFor places trace in a band. A zero threshold disables its band.
func (r Rules) BandFor(trace int) Band {
	switch {
	case r.PanicThreshold > 0 && trace >= r.PanicThreshold:
		return BandPanic
	case r.NervousThreshold > 0 && trace >= r.NervousThreshold:
		return BandNervous
	default:
		return BandCalm
	}
}

// EffectFor returns the effect configured for entering band.
func (r Rules) EffectFor(band Band) Effect {
	switch band {
	case BandNervous:
		return r.NervousEffect
	case BandPanic:
		return r.PanicEffect
	}
	return EffectNone
}
