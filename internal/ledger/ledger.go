// Package ledger holds the ordered conversation log that is replayed into
// every model call.
//
// Writers never mutate a published slice: each change builds a new backing
// array and swaps it in, so a snapshot handed to a reader stays consistent.
package ledger

import (
	"errors"
	"sync"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleSystem    Role = "system"
	RoleAssistant Role = "assistant"
)

type ValidationStatus string

const (
	StatusVerified   ValidationStatus = "verified"
	StatusCorrected  ValidationStatus = "corrected"
	StatusUnverified ValidationStatus = "unverified"
)

var (
	ErrPendingValidation = errors.New("ledger: a message is already awaiting validation")
	ErrNoPending         = errors.New("ledger: no message awaiting validation")
)

type Message struct {
	Role             Role             `json:"role"`
	Content          string           `json:"content"`
	DisplayInChat    bool             `json:"display_in_chat"`
	NeedsValidation  bool             `json:"needs_validation,omitempty"`
	ValidationStatus ValidationStatus `json:"validation_status,omitempty"`
	IsFinalHTML      bool             `json:"is_final_html,omitempty"`
}

type Ledger struct {
	mu   sync.RWMutex
	msgs []Message
}

func New(seed ...Message) *Ledger {
	l := &Ledger{}
	l.msgs = append([]Message(nil), seed...)
	return l
}

// Append adds m at the end. At most one message may await validation.
func (l *Ledger) Append(m Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if m.NeedsValidation && pendingIndex(l.msgs) >= 0 {
		return ErrPendingValidation
	}
	next := make([]Message, len(l.msgs), len(l.msgs)+1)
	copy(next, l.msgs)
	l.msgs = append(next, m)
	return nil
}

// Snapshot returns the current messages. The slice is shared and must not be
// modified.
func (l *Ledger) Snapshot() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.msgs
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.msgs)
}

// Visible returns the messages meant for the end user.
func (l *Ledger) Visible() []Message {
	var out []Message
	for _, m := range l.Snapshot() {
		if m.DisplayInChat {
			out = append(out, m)
		}
	}
	return out
}

// Pending returns the message awaiting validation, if any.
func (l *Ledger) Pending() (Message, bool) {
	msgs := l.Snapshot()
	if i := pendingIndex(msgs); i >= 0 {
		return msgs[i], true
	}
	return Message{}, false
}

// Resolve replaces the pending message's content with the validated text and
// records status.
func (l *Ledger) Resolve(status ValidationStatus, content string) error {
	return l.replacePending(func(m *Message) {
		m.Content = content
		m.ValidationStatus = status
	})
}

// Skip settles the pending message as unverified, leaving its content as is.
func (l *Ledger) Skip() error {
	return l.replacePending(func(m *Message) {
		m.ValidationStatus = StatusUnverified
	})
}

func (l *Ledger) replacePending(update func(*Message)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := pendingIndex(l.msgs)
	if i < 0 {
		return ErrNoPending
	}
	next := make([]Message, len(l.msgs))
	copy(next, l.msgs)
	update(&next[i])
	next[i].NeedsValidation = false
	l.msgs = next
	return nil
}

// Reset discards every message and starts over from seed.
func (l *Ledger) Reset(seed ...Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append([]Message(nil), seed...)
}

func pendingIndex(msgs []Message) int {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].NeedsValidation {
			return i
		}
	}
	return -1
}
