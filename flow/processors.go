package flow

import (
	"fmt"

	"github.com/hupe1980/agentproxy/agent"
	"github.com/hupe1980/agentproxy/core"
	"github.com/hupe1980/agentproxy/model"
)

// InstructionsProcessor resolves the agent's system framing.
type InstructionsProcessor struct{}

// NewInstructionsProcessor creates a new instructions processor.
func NewInstructionsProcessor() *InstructionsProcessor { return &InstructionsProcessor{} }

// Name returns the processor's identifier.
func (p *InstructionsProcessor) Name() string { return "instructions" }

// ProcessRequest sets req.Instructions from the current agent.
func (p *InstructionsProcessor) ProcessRequest(rc *core.RunContext, req *model.Request, a *agent.Agent, _ []core.Message) error {
	instructions, err := a.Instructions().Resolve(rc)
	if err != nil {
		return fmt.Errorf("failed to resolve instruction: %w", err)
	}

	rc.LogDebug("agent.instruction.resolved", "agent", a.Name(), "length", len(instructions))

	req.Instructions = instructions

	return nil
}

// ContentsProcessor copies the conversation history into the request.
// System messages are dropped: framing always comes from the current agent.
type ContentsProcessor struct{}

// NewContentsProcessor creates a new contents processor.
func NewContentsProcessor() *ContentsProcessor { return &ContentsProcessor{} }

// Name returns the processor's identifier.
func (p *ContentsProcessor) Name() string { return "contents" }

// ProcessRequest sets req.Messages.
func (p *ContentsProcessor) ProcessRequest(_ *core.RunContext, req *model.Request, _ *agent.Agent, history []core.Message) error {
	msgs := make([]core.Message, 0, len(history))

	for _, m := range history {
		if m.Role == core.RoleSystem || len(m.Parts) == 0 {
			continue
		}
		msgs = append(msgs, m)
	}

	req.Messages = msgs

	return nil
}

// ToolsProcessor exposes the agent's tools followed by its handoffs.
type ToolsProcessor struct{}

// NewToolsProcessor creates a new tools processor.
func NewToolsProcessor() *ToolsProcessor { return &ToolsProcessor{} }

// Name returns the processor's identifier.
func (p *ToolsProcessor) Name() string { return "tools" }

// ProcessRequest sets req.Tools.
func (p *ToolsProcessor) ProcessRequest(_ *core.RunContext, req *model.Request, a *agent.Agent, _ []core.Message) error {
	req.Tools = Definitions(a)
	return nil
}

// Definitions returns the callable surface of an agent: tools in registration
// order, then handoffs in declaration order.
func Definitions(a *agent.Agent) []model.ToolDefinition {
	tools := a.Tools().Tools()
	handoffs := a.Handoffs()

	defs := make([]model.ToolDefinition, 0, len(tools)+len(handoffs))

	for _, t := range tools {
		params := t.Parameters()
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  params,
			},
		})
	}

	for _, h := range handoffs {
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        h.ToolName(),
				Description: h.ToolDescription(),
				Parameters:  h.InputSchema(),
			},
		})
	}

	return defs
}

// ModelSettingsProcessor applies the agent's model id and settings.
type ModelSettingsProcessor struct{}

// NewModelSettingsProcessor creates a new model settings processor.
func NewModelSettingsProcessor() *ModelSettingsProcessor { return &ModelSettingsProcessor{} }

// Name returns the processor's identifier.
func (p *ModelSettingsProcessor) Name() string { return "model_settings" }

// ProcessRequest sets req.Model and req.MaxTokens.
func (p *ModelSettingsProcessor) ProcessRequest(_ *core.RunContext, req *model.Request, a *agent.Agent, _ []core.Message) error {
	req.Model = a.Model()
	req.MaxTokens = a.ModelSettings().MaxTokens
	return nil
}
