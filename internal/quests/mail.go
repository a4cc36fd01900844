package quests

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MailConditionType tags a MailCondition.
type MailConditionType string

const (
	MailTraceBelow   MailConditionType = "trace_below"
	MailTraceAtLeast MailConditionType = "trace_at_least"
	MailFlagSet      MailConditionType = "flag_set"
	MailFlagMissing  MailConditionType = "flag_missing"
	MailOutcome      MailConditionType = "outcome"
)

// MailCondition is one test a completion mail variant must pass.
type MailCondition struct {
	Type  MailConditionType `json:"type" yaml:"type"`
	Max   int               `json:"max,omitempty" yaml:"max,omitempty"`
	Min   int               `json:"min,omitempty" yaml:"min,omitempty"`
	Flag  string            `json:"flag,omitempty" yaml:"flag,omitempty"`
	Value string            `json:"value,omitempty" yaml:"value,omitempty"`
}

// UnmarshalJSON rejects unknown condition types.
func (c *MailCondition) UnmarshalJSON(data []byte) error {
	type plain MailCondition
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	decoded.Type = MailConditionType(strings.TrimSpace(string(decoded.Type)))
	switch decoded.Type {
	case MailTraceBelow, MailTraceAtLeast, MailFlagSet, MailFlagMissing, MailOutcome:
	default:
		return fmt.Errorf("unknown mail condition type %q", decoded.Type)
	}
	*c = MailCondition(decoded)
	return nil
}

// MailVariant replaces the default completion mail when all of its
// conditions hold.
type MailVariant struct {
	Conditions []MailCondition `json:"conditions" yaml:"conditions"`
	Subject    string          `json:"subject" yaml:"subject"`
	Body       string          `json:"body" yaml:"body"`
}

// CompletionEmail holds the mail sent when a quest completes.
type CompletionEmail struct {
	Default  *MailTemplate `json:"default,omitempty" yaml:"default,omitempty"`
	Variants []MailVariant `json:"variants,omitempty" yaml:"variants,omitempty"`
}

// Signals are live session facts supplied by the caller.
type Signals struct {
	Trace   int
	Outcome string
}

// CompletionContext is what a completion mail is chosen against.
type CompletionContext struct {
	Signals
	Flags []string
}

func (c CompletionContext) hasFlag(flag string) bool {
	for _, f := range c.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// Holds evaluates one condition.
func (c MailCondition) Holds(ctx CompletionContext) bool {
	switch c.Type {
	case MailTraceBelow:
		return ctx.Trace <= c.Max
	case MailTraceAtLeast:
		return ctx.Trace >= c.Min
	case MailFlagSet:
		return ctx.hasFlag(c.Flag)
	case MailFlagMissing:
		return !ctx.hasFlag(c.Flag)
	case MailOutcome:
		return strings.EqualFold(ctx.Outcome, c.Value)
	}
	return false
}

// CompletionMail picks the mail q sends on completion: the first variant whose
// conditions all hold, else the default. Sender and linked quest come from
// the reward mail. It returns nil when the quest sends nothing.
func CompletionMail(q Quest, ctx CompletionContext) *MailTemplate {
	var out MailTemplate
	found := false
	for _, variant := range q.CompletionEmail.Variants {
		if allHold(variant.Conditions, ctx) {
			out.Subject = variant.Subject
			out.Body = variant.Body
			found = true
			break
		}
	}
	if !found && q.CompletionEmail.Default != nil {
		out = *q.CompletionEmail.Default
		found = true
	}
	if reward := q.Rewards.Mail; reward != nil {
		if !found {
			out = *reward
			found = true
		}
		if out.From == "" {
			out.From = reward.From
		}
		if out.LinkedQuestID == "" {
			out.LinkedQuestID = reward.LinkedQuestID
		}
	}
	if !found {
		return nil
	}
	return &out
}

func allHold(conditions []MailCondition, ctx CompletionContext) bool {
	for _, cond := range conditions {
		if !cond.Holds(ctx) {
			return false
		}
	}
	return true
}
