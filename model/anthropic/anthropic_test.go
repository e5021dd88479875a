package anthropic

import (
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentproxy/core"
	"github.com/hupe1980/agentproxy/model"
)

func TestBuildMessages_GroupsToolResultsIntoUserTurn(t *testing.T) {
	history := []core.Message{
		core.NewUserMessage("Tell me about Pikachu and Eevee"),
		core.NewFunctionCallMessage("Orchestrator Agent", "",
			core.FunctionCall{ID: "t1", Name: "pokemon_info", Arguments: `{"pokemon":"Pikachu"}`},
			core.FunctionCall{ID: "t2", Name: "pokemon_info", Arguments: `{"pokemon":"Eevee"}`},
		),
		core.NewFunctionResponseMessage("Orchestrator Agent", core.FunctionResponse{ID: "t1", Name: "pokemon_info", Response: "Pikachu is a Pokémon."}),
		core.NewFunctionResponseMessage("Orchestrator Agent", core.FunctionResponse{ID: "t2", Name: "pokemon_info", Error: "boom", Code: "EXECUTION_ERROR"}),
		core.NewAssistantMessage("Orchestrator Agent", "Both are Pokémon."),
	}

	msgs := buildMessages(history)
	require.Len(t, msgs, 4)

	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[0].Role)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[1].Role)
	assert.Len(t, msgs[1].Content, 2)

	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[2].Role)
	require.Len(t, msgs[2].Content, 2)
	require.NotNil(t, msgs[2].Content[0].OfToolResult)
	assert.Equal(t, "t1", msgs[2].Content[0].OfToolResult.ToolUseID)

	assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[3].Role)
}

func TestBuildTools(t *testing.T) {
	tools := buildTools([]model.ToolDefinition{{
		Type: "function",
		Function: model.FunctionDefinition{
			Name:        "transfer_to_escalation_control_agent",
			Description: "Handoff to the Escalation Control Agent agent to handle the request.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"reason": map[string]any{"type": "string"}},
				"required":   []any{"reason"},
			},
		},
	}})

	require.Len(t, tools, 1)
	require.NotNil(t, tools[0].OfTool)
	assert.Equal(t, "transfer_to_escalation_control_agent", tools[0].OfTool.Name)
	assert.Equal(t, []string{"reason"}, tools[0].OfTool.InputSchema.Required)
}
