package util

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pokemonArgs struct {
	Pokemon string `json:"pokemon" description:"The name or the ID of a Pokémon."`
	Shiny   *bool  `json:"shiny,omitempty"`
}

func TestCreateSchema(t *testing.T) {
	s := CreateSchema(pokemonArgs{})
	assert.Equal(t, "object", s["type"])
	assert.Equal(t, []string{"pokemon"}, s["required"])

	props := s["properties"].(map[string]any)
	assert.Equal(t, "string", props["pokemon"].(map[string]any)["type"])
	assert.Equal(t, "boolean", props["shiny"].(map[string]any)["type"])
	assert.Equal(t, true, props["shiny"].(map[string]any)["nullable"])
}

func TestValidateParameters_RequiredAsStringSlice(t *testing.T) {
	schema := CreateSchema(pokemonArgs{})

	err := ValidateParameters(map[string]any{}, schema)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "pokemon", verr.Field)

	assert.NoError(t, ValidateParameters(map[string]any{"pokemon": "Pikachu"}, schema))
}

func TestValidateParameters_RequiredAsAnySlice(t *testing.T) {
	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{"reason": map[string]any{"type": "string"}},
		"required":   []any{"reason"},
	}
	assert.Error(t, ValidateParameters(map[string]any{}, schema))
	assert.Error(t, ValidateParameters(map[string]any{"reason": 42.0}, schema))
	assert.NoError(t, ValidateParameters(map[string]any{"reason": "furious", "extra": true}, schema))
}

func TestValidateParameters_Enum(t *testing.T) {
	schema := map[string]any{
		"properties": map[string]any{"level": map[string]any{"type": "string", "enum": []any{"low", "high"}}},
	}
	assert.NoError(t, ValidateParameters(map[string]any{"level": "low"}, schema))
	assert.Error(t, ValidateParameters(map[string]any{"level": "medium"}, schema))
}

func TestValidateParameters_Null(t *testing.T) {
	schema := CreateSchema(pokemonArgs{})

	err := ValidateParameters(map[string]any{"pokemon": nil}, schema)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "pokemon", verr.Field)
	assert.Equal(t, "must not be null", verr.Message)

	assert.NoError(t, ValidateParameters(map[string]any{"pokemon": "Pikachu", "shiny": nil}, schema))

	typed := map[string]any{
		"properties": map[string]any{"note": map[string]any{"type": []any{"string", "null"}}},
	}
	assert.NoError(t, ValidateParameters(map[string]any{"note": nil}, typed))
	assert.NoError(t, ValidateParameters(map[string]any{"note": "hi"}, typed))
	assert.Error(t, ValidateParameters(map[string]any{"note": 1.0}, typed))
}

func TestValidateParameters_AdditionalPropertiesFalse(t *testing.T) {
	schema := map[string]any{
		"type":                 "object",
		"properties":           map[string]any{},
		"additionalProperties": false,
	}

	assert.NoError(t, ValidateParameters(map[string]any{}, schema))

	err := ValidateParameters(map[string]any{"target": "anyone"}, schema)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "target", verr.Field)
}

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate("You are {{.agent}} in {{.conversation_id}}.", map[string]any{"agent": "Triage Agent", "conversation_id": "c1"})
	require.NoError(t, err)
	assert.Equal(t, "You are Triage Agent in c1.", out)

	// text/template leaves quotes alone
	out, err = RenderTemplate(`Say "{{.word}}"`, map[string]any{"word": "it's"})
	require.NoError(t, err)
	assert.Equal(t, `Say "it's"`, out)

	plain := "No markers here."
	out, err = RenderTemplate(plain, nil)
	require.NoError(t, err)
	assert.Equal(t, plain, out)
}

func TestToSnakeCase(t *testing.T) {
	cases := map[string]string{
		"Customer Support Agent":   "customer_support_agent",
		"Escalation Control Agent": "escalation_control_agent",
		"EscalationControl":        "escalation_control",
		"HTTPServer":               "http_server",
		"  Nerdy-Chat  Agent ":     "nerdy_chat_agent",
	}
	for in, want := range cases {
		assert.Equal(t, want, ToSnakeCase(in), in)
	}
}
