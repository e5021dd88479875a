package core

import (
	"context"

	"github.com/hupe1980/agentproxy/logging"
)

// ToolContext provides a constrained surface for tool implementations invoked
// by the run loop. Its Context is detached from caller cancellation and bound
// by the tool timeout, so a dispatched call is allowed to finish.
type ToolContext struct {
	ctx            context.Context
	runCtx         *RunContext
	functionCallID string
	toolName       string

	*loggerAdapter
}

// NewToolContext constructs a tool context bound to a parent RunContext, the
// execution context of the call and its unique functionCallID.
func NewToolContext(ctx context.Context, runCtx *RunContext, toolName, functionCallID string) *ToolContext {
	return &ToolContext{
		ctx:            ctx,
		runCtx:         runCtx,
		functionCallID: functionCallID,
		toolName:       toolName,
		loggerAdapter:  newLoggerAdapter(runCtx.Logger()),
	}
}

// Context returns the execution context of the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// ConversationID returns the conversation the run belongs to (may be empty).
func (tc *ToolContext) ConversationID() string { return tc.runCtx.ConversationID }

// RunID returns the run ID associated with the tool invocation.
func (tc *ToolContext) RunID() string { return tc.runCtx.RunID }

// Logger returns the logger associated with the tool invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.loggerAdapter.Logger() }

// FunctionCallID returns the function call ID associated with the tool invocation.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// ToolName returns the name the model used to request the call.
func (tc *ToolContext) ToolName() string { return tc.toolName }

// AgentName returns the agent that requested the call.
func (tc *ToolContext) AgentName() string { return tc.runCtx.Agent.Name }

// RunContext returns the parent run context.
func (tc *ToolContext) RunContext() *RunContext { return tc.runCtx }
