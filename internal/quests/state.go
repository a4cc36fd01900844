package quests

import (
	"maps"
	"slices"
	"strings"
)

// State is one player's quest progress. It is plain data so it can be
// snapshotted with the rest of the desktop session.
type State struct {
	Statuses       map[string]Status `json:"statuses,omitempty"`
	StepIndex      map[string]int    `json:"stepIndex,omitempty"`
	Completed      []string          `json:"completed,omitempty"`
	Flags          []string          `json:"flags,omitempty"`
	Credits        int               `json:"credits"`
	TerminalOpened bool              `json:"terminalOpened"`
	OfferedMail    []string          `json:"offeredMail,omitempty"`
}

// NewState returns empty progress.
func NewState() *State {
	return &State{
		Statuses:  make(map[string]Status),
		StepIndex: make(map[string]int),
	}
}

func (s *State) ensure() {
	if s.Statuses == nil {
		s.Statuses = make(map[string]Status)
	}
	if s.StepIndex == nil {
		s.StepIndex = make(map[string]int)
	}
}

// StatusOf returns the quest's status, defaulting to not triggered.
func (s *State) StatusOf(questID string) Status {
	if status, ok := s.Statuses[questID]; ok {
		return status
	}
	return StatusNotTriggered
}

// HasFlag reports whether flag is set.
func (s *State) HasFlag(flag string) bool {
	return slices.Contains(s.Flags, strings.TrimSpace(flag))
}

func (s *State) addFlag(flag string) bool {
	flag = strings.TrimSpace(flag)
	if flag == "" || slices.Contains(s.Flags, flag) {
		return false
	}
	s.Flags = append(s.Flags, flag)
	return true
}

// IsCompleted reports whether questID has completed.
func (s *State) IsCompleted(questID string) bool {
	return slices.Contains(s.Completed, questID)
}

// Clone returns an independent copy.
func (s *State) Clone() *State {
	out := *s
	out.Statuses = maps.Clone(s.Statuses)
	out.StepIndex = maps.Clone(s.StepIndex)
	out.Completed = slices.Clone(s.Completed)
	out.Flags = slices.Clone(s.Flags)
	out.OfferedMail = slices.Clone(s.OfferedMail)
	out.ensure()
	return &out
}
