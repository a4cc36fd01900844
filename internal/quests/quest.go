// Package quests runs authored quests against a player's session: triggers,
// step cursors and the one-time rewards paid on completion.
package quests

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Axidify/Terminality-V2-sub001/internal/vfs"
)

// Status is a quest's progress in one session. It only moves forward.
type Status string

const (
	StatusNotTriggered Status = "not_triggered"
	StatusInProgress   Status = "in_progress"
	StatusCompleted    Status = "completed"
)

// TriggerType tags a Trigger.
type TriggerType string

const (
	// TriggerNone quests only start from a linked mail message.
	TriggerNone              TriggerType = ""
	TriggerFirstTerminalOpen TriggerType = "on_first_terminal_open"
	TriggerFlagSet           TriggerType = "on_flag_set"
)

// Trigger decides when a quest starts.
type Trigger struct {
	Type    TriggerType `json:"type,omitempty" yaml:"type,omitempty"`
	FlagKey string      `json:"flagKey,omitempty" yaml:"flagKey,omitempty"`
}

// UnmarshalJSON rejects unknown trigger types.
func (t *Trigger) UnmarshalJSON(data []byte) error {
	type plain Trigger
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	decoded.Type = TriggerType(strings.TrimSpace(string(decoded.Type)))
	switch decoded.Type {
	case TriggerNone, TriggerFirstTerminalOpen, TriggerFlagSet:
	default:
		return fmt.Errorf("unknown quest trigger type %q", decoded.Type)
	}
	*t = Trigger(decoded)
	return nil
}

// StepType names the terminal action a step waits for.
type StepType string

const (
	StepScanHost       StepType = "SCAN_HOST"
	StepConnectHost    StepType = "CONNECT_HOST"
	StepReadFile       StepType = "READ_FILE"
	StepDeleteFile     StepType = "DELETE_FILE"
	StepDisconnectHost StepType = "DISCONNECT_HOST"
)

// Step is one objective. Every param must equal the matching event param.
type Step struct {
	ID     string            `json:"id" yaml:"id"`
	Type   StepType          `json:"type" yaml:"type"`
	Params map[string]string `json:"params,omitempty" yaml:"params,omitempty"`
	Hint   string            `json:"hint,omitempty" yaml:"hint,omitempty"`
}

// UnmarshalJSON rejects unknown step types.
func (s *Step) UnmarshalJSON(data []byte) error {
	type plain Step
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	decoded.Type = StepType(strings.ToUpper(strings.TrimSpace(string(decoded.Type))))
	switch decoded.Type {
	case StepScanHost, StepConnectHost, StepReadFile, StepDeleteFile, StepDisconnectHost:
	default:
		return fmt.Errorf("unknown quest step type %q", decoded.Type)
	}
	*s = Step(decoded)
	return nil
}

// MailTemplate is mail a quest sends.
type MailTemplate struct {
	From          string `json:"from,omitempty" yaml:"from,omitempty"`
	Subject       string `json:"subject" yaml:"subject"`
	Body          string `json:"body" yaml:"body"`
	LinkedQuestID string `json:"linkedQuestId,omitempty" yaml:"linkedQuestId,omitempty"`
}

// Rewards are paid once on completion.
type Rewards struct {
	Credits int           `json:"credits,omitempty" yaml:"credits,omitempty" validate:"gte=0"`
	Flags   []string      `json:"flags,omitempty" yaml:"flags,omitempty"`
	Mail    *MailTemplate `json:"mail,omitempty" yaml:"mail,omitempty"`
}

// Requirements gate a quest's trigger.
type Requirements struct {
	RequiredFlags  []string `json:"requiredFlags,omitempty" yaml:"requiredFlags,omitempty"`
	RequiredQuests []string `json:"requiredQuests,omitempty" yaml:"requiredQuests,omitempty"`
}

// Quest is an authored quest. Quests never change once loaded.
type Quest struct {
	ID              string          `json:"id" yaml:"id" validate:"required"`
	Title           string          `json:"title,omitempty" yaml:"title,omitempty"`
	Description     string          `json:"description,omitempty" yaml:"description,omitempty"`
	TemplateID      string          `json:"templateId,omitempty" yaml:"templateId,omitempty"`
	InstanceID      string          `json:"instanceId,omitempty" yaml:"instanceId,omitempty"`
	Trigger         Trigger         `json:"trigger" yaml:"trigger"`
	Steps           []Step          `json:"steps,omitempty" yaml:"steps,omitempty"`
	Rewards         Rewards         `json:"rewards,omitempty" yaml:"rewards,omitempty"`
	Requirements    Requirements    `json:"requirements,omitempty" yaml:"requirements,omitempty"`
	CompletionFlag  string          `json:"completionFlag,omitempty" yaml:"completionFlag,omitempty"`
	CompletionEmail CompletionEmail `json:"completionEmail,omitempty" yaml:"completionEmail,omitempty"`
}

// DefaultCompletionFlag is the flag set when a quest names none.
func DefaultCompletionFlag(id string) string {
	return "quest:" + id + ":complete"
}

// Normalize trims authored text and fills defaults in place.
func Normalize(q *Quest) {
	if q == nil {
		return
	}
	q.ID = strings.TrimSpace(q.ID)
	q.Title = strings.TrimSpace(q.Title)
	if q.Title == "" {
		q.Title = q.ID
	}
	q.Description = strings.TrimSpace(q.Description)
	q.Trigger.FlagKey = strings.TrimSpace(q.Trigger.FlagKey)
	q.CompletionFlag = strings.TrimSpace(q.CompletionFlag)
	if q.CompletionFlag == "" {
		q.CompletionFlag = DefaultCompletionFlag(q.ID)
	}
	for i := range q.Steps {
		step := &q.Steps[i]
		step.ID = strings.TrimSpace(step.ID)
		if step.ID == "" {
			step.ID = fmt.Sprintf("%s-%d", q.ID, i+1)
		}
		for key, value := range step.Params {
			step.Params[key] = normalizeParam(key, value)
		}
	}
	if q.Rewards.Credits < 0 {
		q.Rewards.Credits = 0
	}
}

func normalizeParam(key, value string) string {
	value = strings.TrimSpace(value)
	if key == "path" {
		return vfs.NormalizePath(value)
	}
	return value
}
