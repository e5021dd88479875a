package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentproxy/core"
	"github.com/hupe1980/agentproxy/model"
)

const toolCallCompletion = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1,
  "model": "gpt-5",
  "choices": [{
    "index": 0,
    "finish_reason": "tool_calls",
    "message": {
      "role": "assistant",
      "content": null,
      "tool_calls": [{
        "id": "call_1",
        "type": "function",
        "function": {"name": "pokemon_info", "arguments": "{\"pokemon\":\"Pikachu\"}"}
      }]
    }
  }],
  "usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
}`

func TestModel_GenerateAgainstFakeServer(t *testing.T) {
	var body map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(toolCallCompletion))
	}))
	defer srv.Close()

	m := NewModel(func(o *Options) {
		o.APIKey = "test-key"
		o.BaseURL = srv.URL + "/"
		o.MaxRetries = 0
	})

	resp, err := m.Generate(context.Background(), model.Request{
		Model:        "gpt-5",
		Instructions: "You have ONE tool: pokemon_info.",
		Messages:     []core.Message{core.NewUserMessage("Get info about this Pokémon: Pikachu")},
		MaxTokens:    1000,
		Tools: []model.ToolDefinition{{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        "pokemon_info",
				Description: "Get information about a Pokémon by name or ID.",
				Parameters:  map[string]any{"type": "object", "properties": map[string]any{"pokemon": map[string]any{"type": "string"}}, "required": []string{"pokemon"}},
			},
		}},
	})
	require.NoError(t, err)

	calls := resp.Message.FunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "call_1", calls[0].ID)
	assert.Equal(t, "pokemon_info", calls[0].Name)
	assert.JSONEq(t, `{"pokemon":"Pikachu"}`, calls[0].Arguments)
	assert.Equal(t, "tool_calls", resp.FinishReason)
	assert.Equal(t, 15, resp.Usage.TotalTokens)

	assert.Equal(t, "gpt-5", body["model"])
	assert.EqualValues(t, 1000, body["max_completion_tokens"])
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "user", msgs[1].(map[string]any)["role"])
	assert.Len(t, body["tools"].([]any), 1)
}

func TestModel_GenerateProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream down","type":"server_error"}}`))
	}))
	defer srv.Close()

	m := NewModel(func(o *Options) {
		o.APIKey = "k"
		o.BaseURL = srv.URL + "/"
		o.MaxRetries = 0
	})

	_, err := m.Generate(context.Background(), model.Request{Messages: []core.Message{core.NewUserMessage("hi")}})
	assert.Error(t, err)
}

func TestBuildMessages_ToolExchange(t *testing.T) {
	req := model.Request{
		Instructions: "sys",
		Messages: []core.Message{
			core.NewUserMessage("hi"),
			core.NewFunctionCallMessage("Orchestrator Agent", "", core.FunctionCall{ID: "c1", Name: "pokemon_info", Arguments: `{}`}),
			core.NewFunctionResponseMessage("Orchestrator Agent", core.FunctionResponse{ID: "c1", Name: "pokemon_info", Response: "ok"}),
			core.NewMessage(core.RoleSystem, "", core.TextPart{Text: "stale framing"}),
			core.NewAssistantMessage("Orchestrator Agent", "done"),
		},
	}

	msgs := buildMessages(req)
	require.Len(t, msgs, 5)
	assert.NotNil(t, msgs[0].OfSystem)
	assert.NotNil(t, msgs[1].OfUser)
	require.NotNil(t, msgs[2].OfAssistant)
	assert.Len(t, msgs[2].OfAssistant.ToolCalls, 1)
	require.NotNil(t, msgs[3].OfTool)
	assert.Equal(t, "c1", msgs[3].OfTool.ToolCallID)
	assert.NotNil(t, msgs[4].OfAssistant)
}
