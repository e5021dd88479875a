package model

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/agentproxy/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// Request captures the normalized model input assembled by the flow package.
// Instructions carry the system framing of the current agent; Messages never
// contain system messages.
type Request struct {
	Model        string           `json:"model,omitempty"` // Provider model id; empty selects the adapter default
	Instructions string           `json:"instructions"`
	Messages     []core.Message   `json:"messages"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
	MaxTokens    int              `json:"max_tokens,omitempty"` // 0 selects the adapter default
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the final completion returned by a model. Message holds the
// assistant text and/or function call parts.
type Response struct {
	ID           string       `json:"id"`
	Message      core.Message `json:"message"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "scripted", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required by the runner to drive generation.
// Implementations must be safe for concurrent use.
type Model interface {
	Generate(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// NewTextResponse builds a final answer response.
func NewTextResponse(text string) *Response {
	return &Response{
		ID:           core.NewID(),
		Message:      core.NewMessage(core.RoleAssistant, "", core.TextPart{Text: text}),
		FinishReason: "stop",
	}
}

// NewToolCallResponse builds a response requesting the given function calls.
// Calls without an ID receive a generated one.
func NewToolCallResponse(calls ...core.FunctionCall) *Response {
	for i := range calls {
		if calls[i].ID == "" {
			calls[i].ID = "call_" + core.NewID()
		}
	}
	return &Response{
		ID:           core.NewID(),
		Message:      core.NewFunctionCallMessage("", "", calls...),
		FinishReason: "tool_calls",
	}
}

// Router dispatches requests to a provider chosen by the prefix of
// Request.Model (e.g. "claude-" to Anthropic). Requests whose model id
// matches no route go to the fallback.
type Router struct {
	fallback Model
	routes   []route
}

type route struct {
	prefix string
	model  Model
}

// NewRouter creates a Router with the given fallback model.
func NewRouter(fallback Model) *Router {
	return &Router{fallback: fallback}
}

// Route registers m for model ids starting with prefix. Earlier routes win.
func (r *Router) Route(prefix string, m Model) *Router {
	r.routes = append(r.routes, route{prefix: prefix, model: m})
	return r
}

// Resolve returns the model serving the given model id.
func (r *Router) Resolve(modelID string) Model {
	for _, rt := range r.routes {
		if strings.HasPrefix(modelID, rt.prefix) {
			return rt.model
		}
	}
	return r.fallback
}

// Generate implements Model.
func (r *Router) Generate(ctx context.Context, req Request) (*Response, error) {
	m := r.Resolve(req.Model)
	if m == nil {
		return nil, fmt.Errorf("no model route for %q", req.Model)
	}
	return m.Generate(ctx, req)
}

// Info implements Model.
func (r *Router) Info() Info {
	info := Info{Name: "router", Provider: "router", SupportsTools: true}
	if r.fallback != nil {
		info.Name = r.fallback.Info().Name
	}
	return info
}

// ScriptStep produces one scripted model turn.
type ScriptStep func(ctx context.Context, req Request) (*Response, error)

// ScriptedModel is a deterministic in-memory Model useful for tests & examples.
// Each Generate call consumes the next step; requests are recorded.
type ScriptedModel struct {
	mu       sync.Mutex
	info     Info
	steps    []ScriptStep
	requests []Request
}

// NewScriptedModel constructs a ScriptedModel replaying the given steps.
func NewScriptedModel(steps ...ScriptStep) *ScriptedModel {
	return &ScriptedModel{
		info:  Info{Name: "scripted", Provider: "scripted", SupportsTools: true},
		steps: steps,
	}
}

// Reply returns a step answering with fixed text.
func Reply(text string) ScriptStep {
	return func(context.Context, Request) (*Response, error) { return NewTextResponse(text), nil }
}

// CallTools returns a step requesting the given function calls.
func CallTools(calls ...core.FunctionCall) ScriptStep {
	return func(context.Context, Request) (*Response, error) {
		cp := append([]core.FunctionCall(nil), calls...)
		return NewToolCallResponse(cp...), nil
	}
}

// Fail returns a step failing with err.
func Fail(err error) ScriptStep {
	return func(context.Context, Request) (*Response, error) { return nil, err }
}

// Then appends further steps.
func (m *ScriptedModel) Then(steps ...ScriptStep) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, steps...)
	return m
}

// Generate implements Model.
func (m *ScriptedModel) Generate(ctx context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	idx := len(m.requests)
	m.requests = append(m.requests, req)
	var step ScriptStep
	if idx < len(m.steps) {
		step = m.steps[idx]
	}
	m.mu.Unlock()

	if step == nil {
		return nil, fmt.Errorf("scripted model exhausted after %d calls", idx)
	}
	return step(ctx, req)
}

// Requests returns a copy of every request received so far.
func (m *ScriptedModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// Calls returns the number of Generate invocations.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Info implements Model interface.
func (m *ScriptedModel) Info() Info { return m.info }
