package game

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MailMessage is one message in a desktop inbox.
type MailMessage struct {
	ID            string    `json:"id"`
	From          string    `json:"from"`
	Subject       string    `json:"subject"`
	Body          string    `json:"body"`
	QuestID       string    `json:"questId,omitempty"`
	LinkedQuestID string    `json:"linkedQuestId,omitempty"`
	Read          bool      `json:"read"`
	ReceivedAt    time.Time `json:"receivedAt"`
}

// Mailbox is a desktop's inbox in delivery order.
type Mailbox struct {
	mu       sync.RWMutex
	messages []MailMessage
	now      func() time.Time
}

// NewMailbox returns an empty inbox.
func NewMailbox() *Mailbox {
	return &Mailbox{now: time.Now}
}

// Deliver appends a message and returns its id.
func (m *Mailbox) Deliver(from, subject, body, questID, linkedQuestID string) string {
	msg := MailMessage{
		ID:            uuid.NewString(),
		From:          strings.TrimSpace(from),
		Subject:       strings.TrimSpace(subject),
		Body:          strings.TrimSpace(body),
		QuestID:       questID,
		LinkedQuestID: strings.TrimSpace(linkedQuestID),
		ReceivedAt:    m.now().UTC(),
	}
	if msg.From == "" {
		msg.From = "unknown"
	}
	if msg.Subject == "" {
		msg.Subject = "(no subject)"
	}
	m.mu.Lock()
	m.messages = append(m.messages, msg)
	m.mu.Unlock()
	return msg.ID
}

// Messages returns a copy of the inbox.
func (m *Mailbox) Messages() []MailMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]MailMessage, len(m.messages))
	copy(out, m.messages)
	return out
}

// Unread counts messages not yet opened.
func (m *Mailbox) Unread() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, msg := range m.messages {
		if !msg.Read {
			n++
		}
	}
	return n
}

// Open marks the message at the 1-based index as read and returns it.
func (m *Mailbox) Open(index int) (MailMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 1 || index > len(m.messages) {
		return MailMessage{}, fmt.Errorf("no message %d; inbox has %d", index, len(m.messages))
	}
	m.messages[index-1].Read = true
	return m.messages[index-1], nil
}

// restore replaces the inbox with persisted messages, dropping entries
// without an id.
func (m *Mailbox) restore(messages []MailMessage) {
	kept := make([]MailMessage, 0, len(messages))
	for _, msg := range messages {
		if strings.TrimSpace(msg.ID) == "" {
			continue
		}
		if msg.ReceivedAt.IsZero() {
			msg.ReceivedAt = m.now().UTC()
		}
		kept = append(kept, msg)
	}
	m.mu.Lock()
	m.messages = kept
	m.mu.Unlock()
}
