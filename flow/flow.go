// Package flow assembles model requests for the current agent and executes
// the tool calls a model response asks for.
//
// Request assembly is a pipeline of RequestProcessors (instructions,
// contents, tool and handoff definitions, model settings). Tool execution is
// handled by ToolExecutor which validates arguments, bounds each call by a
// timeout, recovers panics and returns results in call order.
package flow

import (
	"fmt"

	"github.com/hupe1980/agentproxy/agent"
	"github.com/hupe1980/agentproxy/core"
	"github.com/hupe1980/agentproxy/model"
)

// RequestProcessor contributes one aspect of a model request.
type RequestProcessor interface {
	// Name returns the processor's identifier.
	Name() string

	// ProcessRequest mutates req for the given agent and history.
	ProcessRequest(rc *core.RunContext, req *model.Request, a *agent.Agent, history []core.Message) error
}

// RequestBuilder runs processors in order to produce a model.Request.
type RequestBuilder struct {
	processors []RequestProcessor
}

// NewRequestBuilder creates a builder from explicit processors.
func NewRequestBuilder(processors ...RequestProcessor) *RequestBuilder {
	return &RequestBuilder{processors: processors}
}

// DefaultRequestBuilder returns the standard pipeline.
func DefaultRequestBuilder() *RequestBuilder {
	return NewRequestBuilder(
		NewInstructionsProcessor(),
		NewContentsProcessor(),
		NewToolsProcessor(),
		NewModelSettingsProcessor(),
	)
}

// Build produces the request for agent a over history.
func (b *RequestBuilder) Build(rc *core.RunContext, a *agent.Agent, history []core.Message) (model.Request, error) {
	var req model.Request

	for _, p := range b.processors {
		if err := p.ProcessRequest(rc, &req, a, history); err != nil {
			return model.Request{}, fmt.Errorf("%s processor: %w", p.Name(), err)
		}
	}

	return req, nil
}
