package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentproxy/core"
)

func newToolCtx() *core.ToolContext {
	rc := core.NewRunContext(context.Background(), "c1", "r1", core.AgentInfo{Name: "Orchestrator Agent"}, 0, nil)
	return core.NewToolContext(context.Background(), rc, "t", "call_1")
}

type pokemonArgs struct {
	Pokemon string `json:"pokemon" description:"The name or the ID of a Pokémon."`
}

func TestValidate(t *testing.T) {
	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{"x": map[string]any{"type": "integer"}},
		"required":   []string{"x"},
	}

	args, err := Validate("t", `{"x":5}`, schema)
	require.NoError(t, err)
	assert.EqualValues(t, 5, args["x"])

	_, err = Validate("t", `{}`, schema)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidToolInput)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "x", vErr.Field)

	_, err = Validate("t", `{"x":"not-int"}`, schema)
	var te *ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, CodeValidation, te.Code)
	assert.Contains(t, te.Message, "expected type integer")

	_, err = Validate("t", `[1,2]`, schema)
	assert.ErrorIs(t, err, core.ErrInvalidToolInput)
}

func TestDecodeArguments_Empty(t *testing.T) {
	args, err := DecodeArguments("  ")
	require.NoError(t, err)
	assert.Empty(t, args)

	args, err = DecodeArguments("null")
	require.NoError(t, err)
	assert.NotNil(t, args)
}

func TestFunctionTool_Success(t *testing.T) {
	ft := NewFunctionToolFromStruct("pokemon_info", "info", pokemonArgs{}, func(_ *core.ToolContext, args map[string]any) (any, error) {
		return args["pokemon"].(string) + " is a Pokémon.", nil
	})

	out, err := ft.Call(newToolCtx(), map[string]any{"pokemon": "Pikachu"})
	require.NoError(t, err)
	assert.Equal(t, "Pikachu is a Pokémon.", out)
	assert.Equal(t, []string{"pokemon"}, ft.Parameters()["required"])
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	boom := errors.New("boom")
	ft := NewFunctionTool("explode", "fails", nil, func(*core.ToolContext, map[string]any) (any, error) {
		return nil, boom
	})

	_, err := ft.Call(newToolCtx(), map[string]any{})
	var te *ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, CodeExecution, te.Code)
	assert.ErrorIs(t, err, core.ErrToolExecution)
	assert.ErrorIs(t, err, boom)
}

func TestFunctionTool_ForwardsToolError(t *testing.T) {
	custom := NewToolError("explode", "nope", "CUSTOM")
	ft := NewFunctionTool("explode", "fails", nil, func(*core.ToolContext, map[string]any) (any, error) {
		return nil, custom
	})

	_, err := ft.Call(newToolCtx(), nil)
	assert.Same(t, custom, err)
}

func TestNewTypedTool(t *testing.T) {
	ft := NewTypedTool("pokemon_info", "info", func(_ *core.ToolContext, in pokemonArgs) (any, error) {
		return in.Pokemon, nil
	})

	out, err := ft.Call(newToolCtx(), map[string]any{"pokemon": "Eevee"})
	require.NoError(t, err)
	assert.Equal(t, "Eevee", out)

	props := ft.Parameters()["properties"].(map[string]any)
	assert.Contains(t, props, "pokemon")
}

func TestRegistry(t *testing.T) {
	a := NewFunctionTool("a", "", nil, nil)
	b := NewFunctionTool("b", "", nil, nil)

	r, err := NewRegistry(a, b)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, r.Names())
	assert.Equal(t, 2, r.Len())

	got, ok := r.Lookup("b")
	assert.True(t, ok)
	assert.Same(t, b, got)

	_, ok = r.Lookup("missing")
	assert.False(t, ok)

	_, err = NewRegistry(a, NewFunctionTool("a", "", nil, nil))
	assert.ErrorContains(t, err, "duplicate")

	_, err = NewRegistry(NewFunctionTool("", "", nil, nil))
	assert.Error(t, err)
}

func TestToolErrorFormatting(t *testing.T) {
	err := NewToolError("calc", "failed", "X")
	assert.Equal(t, "tool error [X] in calc: failed", err.Error())
	err.Code = ""
	assert.Equal(t, "tool error in calc: failed", err.Error())
}
