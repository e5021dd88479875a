package agent

import (
	"fmt"

	"github.com/hupe1980/agentproxy/core"
	"github.com/hupe1980/agentproxy/internal/util"
)

// Provider supplies dynamic instruction text at runtime.
type Provider interface {
	Instruction(*core.RunContext) (string, error)
}

// ProviderFunc adapts an ordinary function to Provider.
type ProviderFunc func(*core.RunContext) (string, error)

// Instruction implements Provider.
func (f ProviderFunc) Instruction(rc *core.RunContext) (string, error) { return f(rc) }

// Instruction is the system framing of an agent: either static text or a
// dynamic provider. Both forms are rendered as a text/template against the
// run variables (agent, conversation_id, run_id and RunContext.Vars).
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText creates an Instruction from a static string.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(*core.RunContext) (string, error)) Instruction {
	return Instruction{provider: ProviderFunc(f)}
}

// IsStatic returns true if the instruction is backed by a static string.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// IsZero reports whether no instruction was configured.
func (i Instruction) IsZero() bool { return i.provider == nil && i.text == "" }

// Resolve returns the rendered instruction text for the current run.
func (i Instruction) Resolve(rc *core.RunContext) (string, error) {
	text := i.text

	if i.provider != nil {
		var err error
		if text, err = i.provider.Instruction(rc); err != nil {
			return "", fmt.Errorf("resolve instruction: %w", err)
		}
	}

	out, err := util.RenderTemplate(text, rc.TemplateData())
	if err != nil {
		return "", fmt.Errorf("render instruction: %w", err)
	}

	return out, nil
}
