package testutil

import (
	"context"
	"testing"

	"github.com/hupe1980/agentproxy/core"
)

// ConversationBuilder helps construct conversations with fluent chaining for tests.
// Example:
//
//	conv := NewConversationBuilder("conv-1").User("hi").Assistant("Chat Agent", "hello").Build()
type ConversationBuilder struct {
	id       string
	messages []core.Message
}

// NewConversationBuilder creates a new builder for a conversation with the given id.
func NewConversationBuilder(id string) *ConversationBuilder {
	return &ConversationBuilder{id: id}
}

// User appends a user message (chainable).
func (b *ConversationBuilder) User(text string) *ConversationBuilder {
	b.messages = append(b.messages, core.NewUserMessage(text))
	return b
}

// Assistant appends an assistant answer authored by agent (chainable).
func (b *ConversationBuilder) Assistant(agent, text string) *ConversationBuilder {
	b.messages = append(b.messages, core.NewAssistantMessage(agent, text))
	return b
}

// ToolRoundTrip appends a function call and its successful response (chainable).
func (b *ConversationBuilder) ToolRoundTrip(agent, name, args string, response any) *ConversationBuilder {
	call := FunctionCall(name, args)
	b.messages = append(b.messages,
		core.NewFunctionCallMessage(agent, "", call),
		core.NewFunctionResponseMessage(agent, core.FunctionResponse{ID: call.ID, Name: name, Response: response}),
	)
	return b
}

// Messages appends arbitrary messages (chainable).
func (b *ConversationBuilder) Messages(msgs ...core.Message) *ConversationBuilder {
	b.messages = append(b.messages, msgs...)
	return b
}

// Build returns a *core.Conversation with the pre-populated history.
func (b *ConversationBuilder) Build() *core.Conversation {
	c := core.NewConversation(b.id)
	c.Append(b.messages...)
	return c
}

// Save builds the conversation and stores it, failing the test on error.
func (b *ConversationBuilder) Save(t testing.TB, store core.ConversationStore) *core.Conversation {
	t.Helper()

	c := b.Build()
	if err := store.Save(context.Background(), c); err != nil {
		t.Fatalf("save conversation %s: %v", c.ID, err)
	}

	return c
}
