package game

import (
	"fmt"
	"time"

	"github.com/Axidify/Terminality-V2-sub001/internal/quests"
	"github.com/Axidify/Terminality-V2-sub001/internal/security"
)

// EffectKind tags an Effect.
type EffectKind string

const (
	EffectTrace        EffectKind = "trace"
	EffectThreshold    EffectKind = "threshold"
	EffectDoorStatus   EffectKind = "door_status"
	EffectDoorUnlocked EffectKind = "door_unlocked"
	EffectQuest        EffectKind = "quest"
	EffectMail         EffectKind = "mail"
	EffectKick         EffectKind = "kick"
	EffectLockout      EffectKind = "lockout"
	EffectAudit        EffectKind = "audit"
	EffectFilesystem   EffectKind = "filesystem"
)

// Effect describes one side effect of a terminal command so a caller can
// react to it without parsing output.
type Effect struct {
	Kind     EffectKind           `json:"kind"`
	SystemID string               `json:"systemId,omitempty"`
	Trace    *security.Update     `json:"trace,omitempty"`
	Door     *security.DoorChange `json:"door,omitempty"`
	DoorID   string               `json:"doorId,omitempty"`
	Quest    *quests.Transition   `json:"quest,omitempty"`
	MailID   string               `json:"mailId,omitempty"`
	Path     string               `json:"path,omitempty"`
	Until    time.Time            `json:"until,omitzero"`
	Message  string               `json:"message,omitempty"`
}

// Result is what a terminal command hands back: lines to print and the
// effects that happened along the way.
type Result struct {
	Output  []string `json:"output"`
	Effects []Effect `json:"effects,omitempty"`
}

func (r *Result) say(format string, args ...any) {
	r.Output = append(r.Output, fmt.Sprintf(format, args...))
}

func (r *Result) warn(format string, args ...any) {
	r.Output = append(r.Output, Warn(fmt.Sprintf(format, args...)))
}

func (r *Result) emit(e Effect) {
	r.Effects = append(r.Effects, e)
}

// Has reports whether an effect of kind was recorded.
func (r Result) Has(kind EffectKind) bool {
	for _, e := range r.Effects {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

// Of returns the effects of kind in the order they happened.
func (r Result) Of(kind EffectKind) []Effect {
	var out []Effect
	for _, e := range r.Effects {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
