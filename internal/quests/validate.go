package quests

import (
	"fmt"

	"github.com/Axidify/Terminality-V2-sub001/internal/validation"
)

// Warning is a soft problem found in the quest catalog.
type Warning struct {
	QuestID string
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.QuestID, w.Message)
}

// Validate checks quests against each other. Problems are reported but do not
// stop the catalog from loading.
func Validate(quests []Quest) []Warning {
	var warnings []Warning
	known := make(map[string]bool, len(quests))
	for _, q := range quests {
		if known[q.ID] {
			warnings = append(warnings, Warning{QuestID: q.ID, Message: "duplicate quest id"})
		}
		known[q.ID] = true
	}
	for _, q := range quests {
		if err := validation.Struct(q); err != nil {
			warnings = append(warnings, Warning{QuestID: q.ID, Message: err.Error()})
		}
		if q.Trigger.Type == TriggerFlagSet && q.Trigger.FlagKey == "" {
			warnings = append(warnings, Warning{QuestID: q.ID, Message: "on_flag_set trigger has no flagKey"})
		}
		for _, id := range q.Requirements.RequiredQuests {
			if !known[id] {
				warnings = append(warnings, Warning{QuestID: q.ID, Message: fmt.Sprintf("requires unknown quest %q", id)})
			}
		}
		if mail := q.Rewards.Mail; mail != nil && mail.LinkedQuestID != "" && !known[mail.LinkedQuestID] {
			warnings = append(warnings, Warning{QuestID: q.ID, Message: fmt.Sprintf("reward mail links unknown quest %q", mail.LinkedQuestID)})
		}
		seenSteps := make(map[string]bool, len(q.Steps))
		for _, step := range q.Steps {
			if step.ID != "" && seenSteps[step.ID] {
				warnings = append(warnings, Warning{QuestID: q.ID, Message: fmt.Sprintf("duplicate step id %q", step.ID)})
			}
			seenSteps[step.ID] = true
		}
	}
	return warnings
}
