package core

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role identifies the producer class of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of a conversation history. After it has been appended
// to a history it must be treated as immutable.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Author    string    `json:"author,omitempty"` // agent name for assistant/tool messages
	Parts     []Part    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// NewID generates a new unique identifier for messages, runs and conversations.
func NewID() string { return uuid.NewString() }

// NewMessage creates a bare message with a fresh id and UTC timestamp.
func NewMessage(role Role, author string, parts ...Part) Message {
	return Message{
		ID:        NewID(),
		Role:      role,
		Author:    author,
		Parts:     parts,
		CreatedAt: time.Now().UTC(),
	}
}

// NewUserMessage creates a user-authored text message.
func NewUserMessage(text string) Message {
	return NewMessage(RoleUser, "user", TextPart{Text: text})
}

// NewAssistantMessage creates an assistant text message authored by an agent.
func NewAssistantMessage(author, text string) Message {
	return NewMessage(RoleAssistant, author, TextPart{Text: text})
}

// NewFunctionCallMessage records an agent requesting one or more tool calls.
// Optional leading text emitted by the model alongside the calls is kept.
func NewFunctionCallMessage(author, text string, calls ...FunctionCall) Message {
	parts := make([]Part, 0, len(calls)+1)
	if text != "" {
		parts = append(parts, TextPart{Text: text})
	}
	for _, fc := range calls {
		parts = append(parts, FunctionCallPart{FunctionCall: fc})
	}
	return NewMessage(RoleAssistant, author, parts...)
}

// NewFunctionResponseMessage records the outcome of a previously requested call.
func NewFunctionResponseMessage(author string, fr FunctionResponse) Message {
	return NewMessage(RoleTool, author, FunctionResponsePart{FunctionResponse: fr})
}

// FunctionCalls returns the FunctionCall parts preserving their original order.
func (m Message) FunctionCalls() []FunctionCall {
	var calls []FunctionCall
	for _, p := range m.Parts {
		if fc, ok := p.(FunctionCallPart); ok {
			calls = append(calls, fc.FunctionCall)
		}
	}
	return calls
}

// FunctionResponses returns the FunctionResponse parts preserving their original order.
func (m Message) FunctionResponses() []FunctionResponse {
	var responses []FunctionResponse
	for _, p := range m.Parts {
		if fr, ok := p.(FunctionResponsePart); ok {
			responses = append(responses, fr.FunctionResponse)
		}
	}
	return responses
}

// Text concatenates all text parts.
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if tp, ok := p.(TextPart); ok {
			b.WriteString(tp.Text)
		}
	}
	return b.String()
}

// Clone returns a copy whose Parts slice can be modified independently.
func (m Message) Clone() Message {
	c := m
	c.Parts = append([]Part(nil), m.Parts...)
	return c
}

type messageJSON struct {
	ID        string         `json:"id"`
	Role      Role           `json:"role"`
	Author    string         `json:"author,omitempty"`
	Parts     []partEnvelope `json:"parts"`
	CreatedAt time.Time      `json:"created_at"`
}

// MarshalJSON encodes the message with tagged parts.
func (m Message) MarshalJSON() ([]byte, error) {
	envs := make([]partEnvelope, 0, len(m.Parts))
	for _, p := range m.Parts {
		env, err := encodePart(p)
		if err != nil {
			return nil, err
		}
		envs = append(envs, env)
	}
	return json.Marshal(messageJSON{ID: m.ID, Role: m.Role, Author: m.Author, Parts: envs, CreatedAt: m.CreatedAt})
}

// UnmarshalJSON decodes a message produced by MarshalJSON.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw messageJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parts := make([]Part, 0, len(raw.Parts))
	for _, env := range raw.Parts {
		p, err := decodePart(env)
		if err != nil {
			return err
		}
		parts = append(parts, p)
	}
	*m = Message{ID: raw.ID, Role: raw.Role, Author: raw.Author, Parts: parts, CreatedAt: raw.CreatedAt}
	return nil
}
