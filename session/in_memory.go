package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/agentproxy/core"
)

// InMemoryStore is a volatile ConversationStore storing conversations in a
// process local map. It is safe for concurrent access and best suited for
// tests or ephemeral demo servers. Conversations are cloned on the way in and
// out to prevent external mutation of internal state.
type InMemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*core.Conversation
}

// NewInMemoryStore constructs an empty in‑memory conversation store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{conversations: make(map[string]*core.Conversation)}
}

// Create allocates a new empty conversation with a fresh id.
func (s *InMemoryStore) Create(ctx context.Context) (*core.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conv := core.NewConversation(core.NewID())

	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations[conv.ID] = conv

	return conv.Clone(), nil
}

// Load returns a clone of the stored conversation.
func (s *InMemoryStore) Load(ctx context.Context, id string) (*core.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrConversationNotFound, id)
	}

	return conv.Clone(), nil
}

// Save stores a clone of the provided conversation snapshot.
func (s *InMemoryStore) Save(ctx context.Context, c *core.Conversation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if c == nil || c.ID == "" {
		return errors.New("conversation id must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations[c.ID] = c.Clone()

	return nil
}

// Len returns the number of stored conversations.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.conversations)
}
