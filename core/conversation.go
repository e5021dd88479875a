package core

import (
	"context"
	"time"
)

// Conversation is the persisted history of one chat. Stores own conversations;
// callers work on clones.
type Conversation struct {
	ID        string    `json:"id"`
	History   []Message `json:"history"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewConversation creates an empty conversation with the given id.
func NewConversation(id string) *Conversation {
	now := time.Now().UTC()
	return &Conversation{ID: id, History: []Message{}, CreatedAt: now, UpdatedAt: now}
}

// Append adds messages to the end of the history updating UpdatedAt.
func (c *Conversation) Append(msgs ...Message) {
	c.History = append(c.History, msgs...)
	c.UpdatedAt = time.Now().UTC()
}

// Clone performs a deep copy of the history slice for safe divergence.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	cp := *c
	cp.History = make([]Message, len(c.History))
	for i, m := range c.History {
		cp.History[i] = m.Clone()
	}
	return &cp
}

// ConversationStore persists conversations. Load returns ErrConversationNotFound
// (possibly wrapped) for unknown ids. Implementations must be safe for
// concurrent use.
type ConversationStore interface {
	Create(ctx context.Context) (*Conversation, error)
	Load(ctx context.Context, id string) (*Conversation, error)
	Save(ctx context.Context, c *Conversation) error
}
