package core

import (
	"context"
	"maps"

	"github.com/hupe1980/agentproxy/logging"
)

// RunContext carries execution state & helpers for a single run of the
// orchestration loop. It aggregates:
//   - The caller's cancellation Context
//   - Identifiers (ConversationID, RunID, current Agent)
//   - The round-trip limiter shared by every agent visited in the run
//   - Template variables rendered into agent instructions
//
// A RunContext is owned by one run and is not safe for concurrent mutation.
// WithAgent derives the context used after a handoff.
type RunContext struct {
	Context        context.Context
	ConversationID string
	RunID          string
	Agent          AgentInfo
	Limiter        *RoundTripLimiter
	Vars           map[string]any

	*loggerAdapter
}

// NewRunContext constructs a RunContext with a fresh limiter capped at
// maxRoundTrips (<= 0 selects DefaultMaxRoundTrips).
func NewRunContext(
	ctx context.Context,
	conversationID, runID string,
	agent AgentInfo,
	maxRoundTrips int,
	logger logging.Logger,
) *RunContext {
	return &RunContext{
		Context:        ctx,
		ConversationID: conversationID,
		RunID:          runID,
		Agent:          agent,
		Limiter:        NewRoundTripLimiter(maxRoundTrips),
		Vars:           map[string]any{},
		loggerAdapter:  newLoggerAdapter(logger),
	}
}

// Done returns a channel closed when the underlying context is cancelled.
func (rc *RunContext) Done() <-chan struct{} { return rc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (rc *RunContext) Err() error { return rc.Context.Err() }

// GetVar returns a template variable.
func (rc *RunContext) GetVar(k string) (any, bool) {
	v, ok := rc.Vars[k]
	return v, ok
}

// SetVar sets a template variable.
func (rc *RunContext) SetVar(k string, v any) { rc.Vars[k] = v }

// TemplateData returns the variables available to instruction templates:
// custom Vars plus agent, conversation_id and run_id.
func (rc *RunContext) TemplateData() map[string]any {
	data := make(map[string]any, len(rc.Vars)+3)
	maps.Copy(data, rc.Vars)
	data["agent"] = rc.Agent.Name
	data["conversation_id"] = rc.ConversationID
	data["run_id"] = rc.RunID
	return data
}

// GetAgentName returns the name of the agent currently in control.
func (rc *RunContext) GetAgentName() string { return rc.Agent.Name }

// WithAgent returns a copy bound to another agent. The limiter is shared so
// round trips keep counting across handoffs; Vars are copied.
func (rc *RunContext) WithAgent(agent AgentInfo) *RunContext {
	c := *rc
	c.Agent = agent
	c.Vars = maps.Clone(rc.Vars)
	if c.Vars == nil {
		c.Vars = map[string]any{}
	}
	return &c
}
