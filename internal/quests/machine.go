package quests

import (
	"maps"
	"slices"
	"strings"

	"github.com/Axidify/Terminality-V2-sub001/internal/vfs"
)

// Machine holds an immutable quest catalog in authored order.
type Machine struct {
	quests []Quest
	byID   map[string]int
}

// NewMachine indexes quests. Later duplicates of an id are ignored.
func NewMachine(quests []Quest) *Machine {
	m := &Machine{byID: make(map[string]int, len(quests))}
	for _, authored := range quests {
		q := cloneQuest(authored)
		Normalize(&q)
		if q.ID == "" {
			continue
		}
		if _, exists := m.byID[q.ID]; exists {
			continue
		}
		m.byID[q.ID] = len(m.quests)
		m.quests = append(m.quests, q)
	}
	return m
}

func cloneQuest(q Quest) Quest {
	out := q
	out.Steps = make([]Step, len(q.Steps))
	for i, step := range q.Steps {
		step.Params = maps.Clone(step.Params)
		out.Steps[i] = step
	}
	out.Rewards.Flags = slices.Clone(q.Rewards.Flags)
	out.Requirements.RequiredFlags = slices.Clone(q.Requirements.RequiredFlags)
	out.Requirements.RequiredQuests = slices.Clone(q.Requirements.RequiredQuests)
	out.CompletionEmail.Variants = slices.Clone(q.CompletionEmail.Variants)
	return out
}

// Quest looks up a quest by id.
func (m *Machine) Quest(id string) (Quest, bool) {
	idx, ok := m.byID[strings.TrimSpace(id)]
	if !ok {
		return Quest{}, false
	}
	return m.quests[idx], true
}

// Quests returns the catalog in authored order.
func (m *Machine) Quests() []Quest {
	return slices.Clone(m.quests)
}

// MailSink receives quest mail.
type MailSink interface {
	Deliver(from, subject, body, questID, linkedQuestID string) string
}

// TransitionKind says what happened to a quest.
type TransitionKind string

const (
	TransitionTriggered TransitionKind = "triggered"
	TransitionAdvanced  TransitionKind = "advanced"
	TransitionCompleted TransitionKind = "completed"
)

// Transition reports one quest state change and, on completion, the rewards
// that were paid.
type Transition struct {
	QuestID   string         `json:"questId"`
	Title     string         `json:"title"`
	Kind      TransitionKind `json:"kind"`
	From      Status         `json:"from"`
	To        Status         `json:"to"`
	StepIndex int            `json:"stepIndex"`
	StepID    string         `json:"stepId,omitempty"`
	FlagsSet  []string       `json:"flagsSet,omitempty"`
	Credits   int            `json:"credits,omitempty"`
	Mail      *MailTemplate  `json:"mail,omitempty"`
	MailID    string         `json:"mailId,omitempty"`
}

// Event is a terminal action that may satisfy a step.
type Event struct {
	Type   StepType
	Params map[string]string
}

// Matches reports whether the event satisfies step: same type and every step
// param present with an equal value.
func (e Event) Matches(step Step) bool {
	if e.Type != step.Type {
		return false
	}
	for key, want := range step.Params {
		got, ok := e.Params[key]
		if !ok {
			return false
		}
		if key == "path" {
			if vfs.NormalizePath(got) != vfs.NormalizePath(want) {
				return false
			}
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(got), strings.TrimSpace(want)) {
			return false
		}
	}
	return true
}

// Tracker binds the catalog to one session's progress.
type Tracker struct {
	machine *Machine
	state   *State
	mail    MailSink
	signals func() Signals
}

// NewTracker builds a tracker. mail and signals may be nil.
func NewTracker(machine *Machine, state *State, mail MailSink, signals func() Signals) *Tracker {
	if state == nil {
		state = NewState()
	}
	state.ensure()
	return &Tracker{machine: machine, state: state, mail: mail, signals: signals}
}

// State exposes the progress being tracked.
func (t *Tracker) State() *State {
	return t.state
}

// Machine exposes the catalog.
func (t *Tracker) Machine() *Machine {
	return t.machine
}

// OpenTerminal records that the terminal was opened this session.
func (t *Tracker) OpenTerminal() []Transition {
	t.state.TerminalOpened = true
	return t.evaluateTriggers()
}

// SetFlag adds flag and starts any quest waiting for it.
func (t *Tracker) SetFlag(flag string) []Transition {
	if !t.state.addFlag(flag) {
		return nil
	}
	return t.evaluateTriggers()
}

// Observe offers an event to each in-progress quest's current step.
func (t *Tracker) Observe(ev Event) []Transition {
	var out []Transition
	for _, q := range t.machine.quests {
		if t.state.StatusOf(q.ID) != StatusInProgress {
			continue
		}
		idx := t.state.StepIndex[q.ID]
		if idx >= len(q.Steps) || !ev.Matches(q.Steps[idx]) {
			continue
		}
		t.state.StepIndex[q.ID] = idx + 1
		out = append(out, Transition{
			QuestID:   q.ID,
			Title:     q.Title,
			Kind:      TransitionAdvanced,
			From:      StatusInProgress,
			To:        StatusInProgress,
			StepIndex: idx + 1,
			StepID:    q.Steps[idx].ID,
		})
		if idx+1 >= len(q.Steps) {
			out = append(out, t.complete(q))
		}
	}
	if len(out) > 0 {
		out = append(out, t.evaluateTriggers()...)
	}
	return out
}

// OfferFromMail starts questID the first time messageID is opened.
func (t *Tracker) OfferFromMail(messageID, questID string) []Transition {
	if messageID == "" || slices.Contains(t.state.OfferedMail, messageID) {
		return nil
	}
	t.state.OfferedMail = append(t.state.OfferedMail, messageID)
	q, ok := t.machine.Quest(questID)
	if !ok || t.state.StatusOf(q.ID) != StatusNotTriggered || !t.requirementsMet(q) {
		return nil
	}
	out := t.start(q)
	return append(out, t.evaluateTriggers()...)
}

// CurrentStep returns the step an in-progress quest is waiting on.
func (t *Tracker) CurrentStep(questID string) (Step, bool) {
	q, ok := t.machine.Quest(questID)
	if !ok || t.state.StatusOf(q.ID) != StatusInProgress {
		return Step{}, false
	}
	idx := t.state.StepIndex[q.ID]
	if idx >= len(q.Steps) {
		return Step{}, false
	}
	return q.Steps[idx], true
}

// Active lists in-progress quests in authored order.
func (t *Tracker) Active() []Quest {
	var out []Quest
	for _, q := range t.machine.quests {
		if t.state.StatusOf(q.ID) == StatusInProgress {
			out = append(out, q)
		}
	}
	return out
}

// evaluateTriggers starts every quest whose trigger and requirements hold,
// repeating until nothing changes so completions cascade.
func (t *Tracker) evaluateTriggers() []Transition {
	var out []Transition
	for {
		progressed := false
		for _, q := range t.machine.quests {
			if t.state.StatusOf(q.ID) != StatusNotTriggered {
				continue
			}
			if !t.triggerHolds(q) || !t.requirementsMet(q) {
				continue
			}
			out = append(out, t.start(q)...)
			progressed = true
		}
		if !progressed {
			return out
		}
	}
}

func (t *Tracker) triggerHolds(q Quest) bool {
	switch q.Trigger.Type {
	case TriggerFirstTerminalOpen:
		return t.state.TerminalOpened
	case TriggerFlagSet:
		return q.Trigger.FlagKey != "" && t.state.HasFlag(q.Trigger.FlagKey)
	}
	return false
}

func (t *Tracker) requirementsMet(q Quest) bool {
	for _, flag := range q.Requirements.RequiredFlags {
		if !t.state.HasFlag(flag) {
			return false
		}
	}
	for _, id := range q.Requirements.RequiredQuests {
		if !t.state.IsCompleted(id) {
			return false
		}
	}
	return true
}

func (t *Tracker) start(q Quest) []Transition {
	t.state.Statuses[q.ID] = StatusInProgress
	t.state.StepIndex[q.ID] = 0
	out := []Transition{{
		QuestID: q.ID,
		Title:   q.Title,
		Kind:    TransitionTriggered,
		From:    StatusNotTriggered,
		To:      StatusInProgress,
	}}
	if len(q.Steps) == 0 {
		out = append(out, t.complete(q))
	}
	return out
}

// complete pays the quest's rewards. Statuses never move backwards so this
// runs at most once per quest.
func (t *Tracker) complete(q Quest) Transition {
	t.state.Statuses[q.ID] = StatusCompleted
	if !slices.Contains(t.state.Completed, q.ID) {
		t.state.Completed = append(t.state.Completed, q.ID)
	}
	transition := Transition{
		QuestID:   q.ID,
		Title:     q.Title,
		Kind:      TransitionCompleted,
		From:      StatusInProgress,
		To:        StatusCompleted,
		StepIndex: len(q.Steps),
	}
	for _, flag := range append([]string{q.CompletionFlag}, q.Rewards.Flags...) {
		if t.state.addFlag(flag) {
			transition.FlagsSet = append(transition.FlagsSet, flag)
		}
	}
	t.state.Credits += q.Rewards.Credits
	transition.Credits = q.Rewards.Credits

	ctx := CompletionContext{Flags: slices.Clone(t.state.Flags)}
	if t.signals != nil {
		ctx.Signals = t.signals()
	}
	if mail := CompletionMail(q, ctx); mail != nil {
		transition.Mail = mail
		if t.mail != nil {
			transition.MailID = t.mail.Deliver(mail.From, mail.Subject, mail.Body, q.ID, mail.LinkedQuestID)
		}
	}
	return transition
}
