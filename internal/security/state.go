package security

import (
	"slices"
	"strings"

	"github.com/Axidify/Terminality-V2-sub001/internal/vfs"
)

// State is one desktop session's history against one system. It is created
// on first contact and kept for the life of the desktop session so that
// reconnecting does not reset risk.
type State struct {
	SystemID       string                `json:"systemId"`
	Trace          int                   `json:"trace"`
	HighestBand    Band                  `json:"highestBand"`
	UnlockedDoors  []string              `json:"unlockedDoors,omitempty"`
	CommandHistory []string              `json:"commandHistory,omitempty"`
	FilesRead      []string              `json:"filesRead,omitempty"`
	DoorStatus     map[string]DoorStatus `json:"doorStatus,omitempty"`
	Cracked        []string              `json:"cracked,omitempty"`
}

// NewState starts a clean history for systemID.
func NewState(systemID string) *State {
	return &State{SystemID: systemID}
}

// RecordCommand appends a command line to the history.
func (s *State) RecordCommand(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	s.CommandHistory = append(s.CommandHistory, line)
}

// RecordFileRead notes that path was read. It reports whether the path is new.
func (s *State) RecordFileRead(path string) bool {
	path = vfs.NormalizePath(path)
	if slices.Contains(s.FilesRead, path) {
		return false
	}
	s.FilesRead = append(s.FilesRead, path)
	return true
}

// HasReadFile reports whether path was read this session.
func (s *State) HasReadFile(path string) bool {
	return slices.Contains(s.FilesRead, vfs.NormalizePath(path))
}

// MarkDoorUsed records a successful pass through a door.
func (s *State) MarkDoorUsed(doorID string) bool {
	if slices.Contains(s.UnlockedDoors, doorID) {
		return false
	}
	s.UnlockedDoors = append(s.UnlockedDoors, doorID)
	return true
}

// HasUsedDoor reports whether doorID was opened earlier this session.
func (s *State) HasUsedDoor(doorID string) bool {
	return slices.Contains(s.UnlockedDoors, doorID)
}

// HasRunCommand matches either a full recorded line or its first token.
func (s *State) HasRunCommand(command string) bool {
	command = strings.TrimSpace(command)
	if command == "" {
		return false
	}
	for _, line := range s.CommandHistory {
		if strings.EqualFold(line, command) {
			return true
		}
		if fields := strings.Fields(line); len(fields) > 0 && strings.EqualFold(fields[0], command) {
			return true
		}
	}
	return false
}

// MarkCracked records that the credentials behind doorID were bruteforced.
func (s *State) MarkCracked(doorID string) bool {
	if slices.Contains(s.Cracked, doorID) {
		return false
	}
	s.Cracked = append(s.Cracked, doorID)
	return true
}

// IsCracked reports whether doorID was bruteforced.
func (s *State) IsCracked(doorID string) bool {
	return slices.Contains(s.Cracked, doorID)
}

// Clone returns an independent copy of s.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := *s
	out.UnlockedDoors = slices.Clone(s.UnlockedDoors)
	out.CommandHistory = slices.Clone(s.CommandHistory)
	out.FilesRead = slices.Clone(s.FilesRead)
	out.Cracked = slices.Clone(s.Cracked)
	if s.DoorStatus != nil {
		out.DoorStatus = make(map[string]DoorStatus, len(s.DoorStatus))
		for k, v := range s.DoorStatus {
			out.DoorStatus[k] = v
		}
	}
	return &out
}
