package security

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DoorStatus is a door's difficulty label. It decides which credentials a
// door asks for, never whether it is open.
type DoorStatus string

const (
	StatusLocked   DoorStatus = "locked"
	StatusGuarded  DoorStatus = "guarded"
	StatusWeakSpot DoorStatus = "weak_spot"
	StatusBackdoor DoorStatus = "backdoor"
)

// Valid reports whether s is a known status.
func (s DoorStatus) Valid() bool {
	switch s {
	case StatusLocked, StatusGuarded, StatusWeakSpot, StatusBackdoor:
		return true
	}
	return false
}

// ConditionType tags an UnlockCondition.
type ConditionType string

const (
	ConditionAlwaysOpen       ConditionType = "always_open"
	ConditionAfterFileRead    ConditionType = "after_file_read"
	ConditionAfterDoorUsed    ConditionType = "after_door_used"
	ConditionAfterCommandUsed ConditionType = "after_command_used"
	ConditionTraceBelow       ConditionType = "trace_below"
)

// UnlockCondition gates a door. Only the field matching Type is meaningful.
type UnlockCondition struct {
	Type     ConditionType `json:"type" yaml:"type"`
	FilePath string        `json:"filePath,omitempty" yaml:"filePath,omitempty"`
	DoorID   string        `json:"doorId,omitempty" yaml:"doorId,omitempty"`
	Command  string        `json:"command,omitempty" yaml:"command,omitempty"`
	MaxTrace int           `json:"maxTrace,omitempty" yaml:"maxTrace,omitempty"`
}

// UnmarshalJSON rejects unknown condition types. An empty type means the door
// is always open.
func (c *UnlockCondition) UnmarshalJSON(data []byte) error {
	type plain UnlockCondition
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	decoded.Type = ConditionType(strings.TrimSpace(string(decoded.Type)))
	switch decoded.Type {
	case "":
		decoded.Type = ConditionAlwaysOpen
	case ConditionAlwaysOpen, ConditionAfterFileRead, ConditionAfterDoorUsed, ConditionAfterCommandUsed, ConditionTraceBelow:
	default:
		return fmt.Errorf("unknown unlock condition type %q", decoded.Type)
	}
	*c = UnlockCondition(decoded)
	return nil
}

// Door is a network entry point on a system.
type Door struct {
	ID              string          `json:"id" yaml:"id" validate:"required"`
	Name            string          `json:"name" yaml:"name"`
	Port            int             `json:"port" yaml:"port" validate:"min=1,max=65535"`
	Status          DoorStatus      `json:"status" yaml:"status" validate:"omitempty,oneof=locked guarded weak_spot backdoor"`
	Description     string          `json:"description,omitempty" yaml:"description,omitempty"`
	UnlockCondition UnlockCondition `json:"unlockCondition" yaml:"unlockCondition"`
}

// IsUnlocked evaluates cond against the session history.
func IsUnlocked(cond UnlockCondition, s *State) bool {
	switch cond.Type {
	case ConditionAlwaysOpen, "":
		return true
	}
	if s == nil {
		return false
	}
	switch cond.Type {
	case ConditionAfterFileRead:
		return s.HasReadFile(cond.FilePath)
	case ConditionAfterDoorUsed:
		return s.HasUsedDoor(cond.DoorID)
	case ConditionAfterCommandUsed:
		return s.HasRunCommand(cond.Command)
	case ConditionTraceBelow:
		return s.Trace <= cond.MaxTrace
	}
	return false
}

// DoorView is a door as the session currently sees it.
type DoorView struct {
	Door
	Effective DoorStatus
	Unlocked  bool
}

// StatusOf returns the door's status after any tightening.
func (s *State) StatusOf(door Door) DoorStatus {
	if s != nil {
		if status, ok := s.DoorStatus[door.ID]; ok {
			return status
		}
	}
	if !door.Status.Valid() {
		return StatusLocked
	}
	return door.Status
}

// EvaluateDoors reports every door with its effective status. A door whose
// condition fails reads as locked whatever its label says.
func EvaluateDoors(doors []Door, s *State) []DoorView {
	out := make([]DoorView, 0, len(doors))
	for _, door := range doors {
		view := DoorView{Door: door, Unlocked: IsUnlocked(door.UnlockCondition, s)}
		if view.Unlocked {
			view.Effective = s.StatusOf(door)
		} else {
			view.Effective = StatusLocked
		}
		out = append(out, view)
	}
	return out
}

// NewlyUnlocked lists doors unlocked in after but not in before.
func NewlyUnlocked(before, after []DoorView) []DoorView {
	was := make(map[string]bool, len(before))
	for _, view := range before {
		was[view.ID] = view.Unlocked
	}
	var out []DoorView
	for _, view := range after {
		if view.Unlocked && !was[view.ID] {
			out = append(out, view)
		}
	}
	return out
}

// DoorForPort finds the door listening on port.
func DoorForPort(doors []Door, port int) (Door, bool) {
	for _, door := range doors {
		if door.Port == port {
			return door, true
		}
	}
	return Door{}, false
}

// DoorChange records a status change applied by tightening.
type DoorChange struct {
	DoorID string     `json:"doorId"`
	From   DoorStatus `json:"from"`
	To     DoorStatus `json:"to"`
}

// Tighten downgrades backdoors and weak spots to guarded and guarded doors to
// locked, storing the result as overrides on s.
func Tighten(doors []Door, s *State) []DoorChange {
	var changes []DoorChange
	for _, door := range doors {
		current := s.StatusOf(door)
		var next DoorStatus
		switch current {
		case StatusBackdoor, StatusWeakSpot:
			next = StatusGuarded
		case StatusGuarded:
			next = StatusLocked
		default:
			continue
		}
		if s.DoorStatus == nil {
			s.DoorStatus = make(map[string]DoorStatus)
		}
		s.DoorStatus[door.ID] = next
		changes = append(changes, DoorChange{DoorID: door.ID, From: current, To: next})
	}
	return changes
}
