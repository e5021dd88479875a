package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentproxy/core"
	"github.com/hupe1980/agentproxy/tool"
)

func newRunCtx() *core.RunContext {
	return core.NewRunContext(context.Background(), "c1", "r1", core.AgentInfo{Name: "Triage Agent"}, 0, nil)
}

func TestNew_Defaults(t *testing.T) {
	a, err := New("Helper")
	require.NoError(t, err)
	assert.Equal(t, "Helper", a.Name())
	assert.Equal(t, 0, a.Tools().Len())
	assert.Empty(t, a.Handoffs())

	text, err := a.Instructions().Resolve(newRunCtx())
	require.NoError(t, err)
	assert.Equal(t, "You are Helper, a helpful AI assistant.", text)
}

func TestNew_RejectsEmptyName(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

func TestNew_RejectsDuplicateTools(t *testing.T) {
	_, err := New("a", func(o *Options) {
		o.Tools = []tool.Tool{tool.NewFunctionTool("x", "", nil, nil), tool.NewFunctionTool("x", "", nil, nil)}
	})
	assert.ErrorContains(t, err, "duplicate")
}

func TestNew_RejectsHandoffToolCollision(t *testing.T) {
	target := MustNew("Billing")
	_, err := New("a", func(o *Options) {
		o.Tools = []tool.Tool{tool.NewFunctionTool("transfer_to_billing", "", nil, nil)}
		o.Handoffs = []*Handoff{HandoffTo(target)}
	})
	assert.ErrorContains(t, err, "collides")

	_, err = New("a", func(o *Options) { o.Handoffs = []*Handoff{HandoffTo(target), HandoffTo(target)} })
	assert.ErrorContains(t, err, "duplicate handoff")
}

func TestHandoff_DefaultNaming(t *testing.T) {
	support := MustNew("Customer Support Agent", func(o *Options) { o.HandoffDescription = "Handles pillow questions." })
	h := HandoffTo(support)

	assert.Equal(t, "transfer_to_customer_support_agent", h.ToolName())
	assert.Equal(t, "Handoff to the Customer Support Agent agent to handle the request. Handles pillow questions.", h.ToolDescription())
	assert.True(t, IsHandoffToolName(h.ToolName()))
	assert.False(t, h.HasInputSchema())
	assert.Equal(t, "object", h.InputSchema()["type"])
	assert.Equal(t, map[string]any{"assistant": "Customer Support Agent"}, h.Result())

	triage := MustNew("Triage Agent", func(o *Options) { o.Handoffs = []*Handoff{h} })
	found, ok := triage.FindHandoff("transfer_to_customer_support_agent")
	require.True(t, ok)
	assert.Same(t, support, found.Target())

	_, ok = triage.FindHandoff("transfer_to_billing")
	assert.False(t, ok)
}

func TestHandoff_InvokeWrapsErrorsAndPanics(t *testing.T) {
	target := MustNew("Escalation Control Agent")

	var got map[string]any
	ok := HandoffTo(target, func(o *HandoffOptions) {
		o.OnHandoff = func(_ *core.RunContext, in map[string]any) error { got = in; return nil }
	})
	require.NoError(t, ok.Invoke(newRunCtx(), map[string]any{"reason": "furious"}))
	assert.Equal(t, "furious", got["reason"])

	boom := errors.New("boom")
	failing := HandoffTo(target, func(o *HandoffOptions) {
		o.OnHandoff = func(*core.RunContext, map[string]any) error { return boom }
	})
	err := failing.Invoke(newRunCtx(), nil)
	assert.ErrorIs(t, err, core.ErrHandoffCallback)
	assert.ErrorIs(t, err, boom)

	panicking := HandoffTo(target, func(o *HandoffOptions) {
		o.OnHandoff = func(*core.RunContext, map[string]any) error { panic("kaboom") }
	})
	err = panicking.Invoke(newRunCtx(), nil)
	assert.ErrorIs(t, err, core.ErrHandoffCallback)
	assert.Contains(t, err.Error(), "kaboom")

	assert.NoError(t, HandoffTo(target).Invoke(newRunCtx(), nil))
}

func TestHandoffs_ReturnsCopy(t *testing.T) {
	a := MustNew("a", func(o *Options) { o.Handoffs = []*Handoff{HandoffTo(MustNew("b"))} })
	hs := a.Handoffs()
	hs[0] = nil
	assert.NotNil(t, a.Handoffs()[0])
}

func TestInstruction_TemplateAndProvider(t *testing.T) {
	rc := newRunCtx()
	rc.SetVar("product", "fluffy pillows")

	static := NewInstructionFromText("{{.agent}} sells {{.product}}.")
	text, err := static.Resolve(rc)
	require.NoError(t, err)
	assert.Equal(t, "Triage Agent sells fluffy pillows.", text)

	dynamic := NewInstructionFromFunc(func(rc *core.RunContext) (string, error) { return "run {{.run_id}}", nil })
	assert.False(t, dynamic.IsStatic())
	text, err = dynamic.Resolve(rc)
	require.NoError(t, err)
	assert.Equal(t, "run r1", text)

	failing := NewInstructionFromProvider(ProviderFunc(func(*core.RunContext) (string, error) { return "", errors.New("nope") }))
	_, err = failing.Resolve(rc)
	assert.Error(t, err)

	broken := NewInstructionFromText("{{.agent")
	_, err = broken.Resolve(rc)
	assert.Error(t, err)

	assert.True(t, Instruction{}.IsZero())
}
