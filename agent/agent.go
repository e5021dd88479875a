package agent

import (
	"errors"
	"fmt"
	"slices"

	"github.com/hupe1980/agentproxy/core"
	"github.com/hupe1980/agentproxy/tool"
)

// ModelSettings tune model requests issued on behalf of an agent.
type ModelSettings struct {
	MaxTokens int // 0 selects the model adapter default
}

// Options configures an Agent.
//
// Use functional options with New to override defaults.
type Options struct {
	Instructions       Instruction
	Model              string // model id routed by the runner's model; empty selects its default
	ModelSettings      ModelSettings
	Tools              []tool.Tool
	Handoffs           []*Handoff
	HandoffDescription string
}

// Agent is an immutable value object describing a specialised assistant:
// its system framing, the model it runs on, the tools it may call and the
// agents it may hand off to. Agents form a directed graph through handoffs.
type Agent struct {
	name               string
	instructions       Instruction
	model              string
	modelSettings      ModelSettings
	tools              *tool.Registry
	handoffs           []*Handoff
	handoffDescription string
}

// New validates the options and builds an Agent. Tool names must be unique,
// handoff tool names must be unique and must not collide with tool names.
func New(name string, optFns ...func(o *Options)) (*Agent, error) {
	if name == "" {
		return nil, errors.New("agent: name must not be empty")
	}

	opts := Options{
		Instructions: NewInstructionFromText(fmt.Sprintf("You are %s, a helpful AI assistant.", name)),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	registry, err := tool.NewRegistry(opts.Tools...)
	if err != nil {
		return nil, fmt.Errorf("agent %q: %w", name, err)
	}

	seen := map[string]bool{}

	for _, h := range opts.Handoffs {
		if h == nil || h.Target() == nil {
			return nil, fmt.Errorf("agent %q: handoff without target", name)
		}

		if seen[h.ToolName()] {
			return nil, fmt.Errorf("agent %q: duplicate handoff tool %q", name, h.ToolName())
		}

		if _, clash := registry.Lookup(h.ToolName()); clash {
			return nil, fmt.Errorf("agent %q: handoff tool %q collides with a tool", name, h.ToolName())
		}

		seen[h.ToolName()] = true
	}

	return &Agent{
		name:               name,
		instructions:       opts.Instructions,
		model:              opts.Model,
		modelSettings:      opts.ModelSettings,
		tools:              registry,
		handoffs:           slices.Clone(opts.Handoffs),
		handoffDescription: opts.HandoffDescription,
	}, nil
}

// MustNew is like New but panics on invalid configuration. Intended for
// package-level agent catalogs.
func MustNew(name string, optFns ...func(o *Options)) *Agent {
	a, err := New(name, optFns...)
	if err != nil {
		panic(err)
	}
	return a
}

// Name returns the agent's display name.
func (a *Agent) Name() string { return a.name }

// Instructions returns the agent's system framing.
func (a *Agent) Instructions() Instruction { return a.instructions }

// Model returns the configured model id (may be empty).
func (a *Agent) Model() string { return a.model }

// ModelSettings returns the request settings.
func (a *Agent) ModelSettings() ModelSettings { return a.modelSettings }

// Tools returns the agent's immutable tool registry.
func (a *Agent) Tools() *tool.Registry { return a.tools }

// Handoffs returns a copy of the declared handoffs in declaration order.
func (a *Agent) Handoffs() []*Handoff { return slices.Clone(a.handoffs) }

// HandoffDescription describes when other agents should hand off to this one.
func (a *Agent) HandoffDescription() string { return a.handoffDescription }

// FindHandoff returns the declared handoff exposed under toolName.
func (a *Agent) FindHandoff(toolName string) (*Handoff, bool) {
	for _, h := range a.handoffs {
		if h.ToolName() == toolName {
			return h, true
		}
	}
	return nil, false
}

// Info returns identifying details for contexts and logs.
func (a *Agent) Info() core.AgentInfo { return core.AgentInfo{Name: a.name, Model: a.model} }
