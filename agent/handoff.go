package agent

import (
	"fmt"
	"maps"
	"strings"

	"github.com/hupe1980/agentproxy/core"
	"github.com/hupe1980/agentproxy/internal/util"
)

// HandoffToolPrefix prefixes every generated handoff tool name. Calls carrying
// this prefix that match no declared handoff are rejected as invalid targets.
const HandoffToolPrefix = "transfer_to_"

// HandoffFunc runs synchronously when a handoff is taken, before the target
// agent is invoked. input holds the validated handoff arguments.
type HandoffFunc func(rc *core.RunContext, input map[string]any) error

// HandoffOptions configures a Handoff.
type HandoffOptions struct {
	// ToolName overrides the default transfer_to_<snake_case(target)>.
	ToolName string
	// ToolDescription overrides the generated description.
	ToolDescription string
	// InputSchema is the JSON schema of the handoff arguments (optional).
	InputSchema map[string]any
	// OnHandoff is invoked exactly once per transition.
	OnHandoff HandoffFunc
	// Fatal makes OnHandoff failures end the run instead of being logged.
	Fatal bool
}

// Handoff is an immutable declaration that an agent may transfer control to
// Target. It is exposed to the model as a callable tool.
type Handoff struct {
	target          *Agent
	toolName        string
	toolDescription string
	inputSchema     map[string]any
	onHandoff       HandoffFunc
	fatal           bool
}

// HandoffTo declares a handoff to target.
func HandoffTo(target *Agent, optFns ...func(o *HandoffOptions)) *Handoff {
	opts := HandoffOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	h := &Handoff{
		target:          target,
		toolName:        opts.ToolName,
		toolDescription: opts.ToolDescription,
		inputSchema:     maps.Clone(opts.InputSchema),
		onHandoff:       opts.OnHandoff,
		fatal:           opts.Fatal,
	}

	if target != nil {
		if h.toolName == "" {
			h.toolName = DefaultHandoffToolName(target.Name())
		}
		if h.toolDescription == "" {
			h.toolDescription = DefaultHandoffToolDescription(target)
		}
	}

	return h
}

// DefaultHandoffToolName returns transfer_to_<snake_case(name)>.
func DefaultHandoffToolName(name string) string {
	return HandoffToolPrefix + util.ToSnakeCase(name)
}

// DefaultHandoffToolDescription mentions the target and its handoff description.
func DefaultHandoffToolDescription(target *Agent) string {
	desc := fmt.Sprintf("Handoff to the %s agent to handle the request.", target.Name())
	if hd := strings.TrimSpace(target.HandoffDescription()); hd != "" {
		desc += " " + hd
	}
	return desc
}

// IsHandoffToolName reports whether name looks like a handoff tool call.
func IsHandoffToolName(name string) bool { return strings.HasPrefix(name, HandoffToolPrefix) }

// Target returns the agent receiving control.
func (h *Handoff) Target() *Agent { return h.target }

// ToolName returns the tool name the model calls to take this handoff.
func (h *Handoff) ToolName() string { return h.toolName }

// ToolDescription returns the description exposed to the model.
func (h *Handoff) ToolDescription() string { return h.toolDescription }

// Fatal reports whether callback failures end the run.
func (h *Handoff) Fatal() bool { return h.fatal }

// HasInputSchema reports whether explicit arguments are declared.
func (h *Handoff) HasInputSchema() bool { return len(h.inputSchema) > 0 }

// InputSchema returns the argument schema. Handoffs without declared input
// expose an empty object schema.
func (h *Handoff) InputSchema() map[string]any {
	if len(h.inputSchema) == 0 {
		return map[string]any{
			"type":                 "object",
			"properties":           map[string]any{},
			"additionalProperties": false,
		}
	}
	return maps.Clone(h.inputSchema)
}

// Invoke runs the OnHandoff callback if configured. Panics are converted to
// errors wrapping core.ErrHandoffCallback.
func (h *Handoff) Invoke(rc *core.RunContext, input map[string]any) (err error) {
	if h.onHandoff == nil {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", core.ErrHandoffCallback, r)
		}
	}()

	if cbErr := h.onHandoff(rc, input); cbErr != nil {
		return fmt.Errorf("%w: %w", core.ErrHandoffCallback, cbErr)
	}

	return nil
}

// Result is the tool-result payload recorded when the handoff is taken.
func (h *Handoff) Result() map[string]any {
	return map[string]any{"assistant": h.target.Name()}
}
