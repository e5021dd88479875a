package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentproxy/core"
	"github.com/hupe1980/agentproxy/internal/config"
	"github.com/hupe1980/agentproxy/internal/natsbus"
	"github.com/hupe1980/agentproxy/internal/testutil"
	"github.com/hupe1980/agentproxy/model"
	"github.com/hupe1980/agentproxy/runner"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) NotifyEscalation(ctx context.Context, e natsbus.Escalation) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

var testModels = config.AgentsConfig{
	Chat:         config.AgentModel{Model: "gpt-5", MaxTokens: 1000},
	Orchestrator: config.AgentModel{Model: "gpt-5"},
	Triage:       config.AgentModel{Model: "gpt-5-nano"},
	Support:      config.AgentModel{Model: "gpt-5"},
	Escalation:   config.AgentModel{Model: "gemini-2.5-flash"},
}

func newCatalog(t *testing.T, n EscalationNotifier) *Catalog {
	t.Helper()
	c, err := New(func(o *Options) {
		o.Models = testModels
		o.Notifier = n
	})
	require.NoError(t, err)
	return c
}

func TestNew_BuildsAgentGraph(t *testing.T) {
	c := newCatalog(t, nil)

	assert.Equal(t, ChatAgentName, c.Chat.Name())
	assert.Equal(t, 1000, c.Chat.ModelSettings().MaxTokens)
	assert.Equal(t, []string{"pokemon_info"}, c.Orchestrator.Tools().Names())
	assert.Equal(t, "gpt-5-nano", c.Triage.Model())
	assert.Equal(t, "gemini-2.5-flash", c.Escalation.Model())

	handoffs := c.Triage.Handoffs()
	require.Len(t, handoffs, 2)
	assert.Equal(t, "transfer_to_customer_support_agent", handoffs[0].ToolName())
	assert.Equal(t, "transfer_to_escalation_control_agent", handoffs[1].ToolName())
	assert.True(t, handoffs[1].HasInputSchema())
	assert.Empty(t, c.Support.Handoffs())
}

func TestScenario_Pikachu(t *testing.T) {
	c := newCatalog(t, nil)

	m := model.NewScriptedModel(
		model.CallTools(core.FunctionCall{Name: "pokemon_info", Arguments: `{"pokemon":"Pikachu"}`}),
		model.Reply("Pikachu is an Electric-type Pokémon known for its cheeks."),
	)

	res, err := runner.New(m).Run(context.Background(), c.Orchestrator, nil, "Tell me about Pikachu")
	require.NoError(t, err)

	calls := 0
	for _, msg := range res.History {
		for _, fc := range msg.FunctionCalls() {
			calls++
			assert.Equal(t, "pokemon_info", fc.Name)
			assert.JSONEq(t, `{"pokemon":"Pikachu"}`, fc.Arguments)
		}
	}
	assert.Equal(t, 1, calls)

	frs := testutil.FunctionResponses(res.History)
	require.Len(t, frs, 1)
	assert.Equal(t, "Pikachu is a Pokémon. I'll provide more details from my own knowledge.", frs[0].Response)
	assert.NotEmpty(t, res.FinalOutput)

	req := m.Requests()[0]
	assert.Contains(t, req.Instructions, "Only pokemon_info exists.")
}

func TestScenario_FuriousRefundEscalates(t *testing.T) {
	n := &mockNotifier{}
	n.On("NotifyEscalation", mock.Anything, mock.MatchedBy(func(e natsbus.Escalation) bool {
		return e.Reason == "Customer is furious and wants a refund" &&
			e.From == TriageAgentName &&
			e.To == EscalationAgentName
	})).Return(nil).Once()

	c := newCatalog(t, n)

	m := model.NewScriptedModel(
		model.CallTools(core.FunctionCall{
			Name:      "transfer_to_escalation_control_agent",
			Arguments: `{"reason":"Customer is furious and wants a refund"}`,
		}),
		model.Reply("I'm so sorry. I can escalate this to a manager right away."),
	)

	res, err := runner.New(m).Run(context.Background(), c.Triage, nil, "I want a refund and I'm furious")
	require.NoError(t, err)

	assert.Equal(t, EscalationAgentName, res.LastAgent)
	n.AssertExpectations(t)
	n.AssertNumberOfCalls(t, "NotifyEscalation", 1)

	reqs := m.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, escalationInstructions, reqs[1].Instructions)
	assert.Equal(t, "gemini-2.5-flash", reqs[1].Model)
}

func TestScenario_NotifierFailureDoesNotBlockHandoff(t *testing.T) {
	n := &mockNotifier{}
	n.On("NotifyEscalation", mock.Anything, mock.Anything).Return(errors.New("nats down")).Once()

	c := newCatalog(t, n)

	m := model.NewScriptedModel(
		model.CallTools(core.FunctionCall{Name: "transfer_to_escalation_control_agent", Arguments: `{"reason":"angry"}`}),
		model.Reply("Sorry about that."),
	)

	res, err := runner.New(m).Run(context.Background(), c.Triage, nil, "This is awful")
	require.NoError(t, err)
	assert.Equal(t, EscalationAgentName, res.LastAgent)
	n.AssertExpectations(t)
}

func TestScenario_CapitalOfFranceIsDeclined(t *testing.T) {
	var (
		mu    sync.Mutex
		tools []string
	)

	m := model.NewScriptedModel(func(_ context.Context, req model.Request) (*model.Response, error) {
		mu.Lock()
		defer mu.Unlock()
		for _, td := range req.Tools {
			tools = append(tools, td.Function.Name)
		}
		return model.NewTextResponse("I'm sorry, I can only help with questions about our pillows."), nil
	})

	c := newCatalog(t, nil)

	res, err := runner.New(m).Run(context.Background(), c.Triage, nil, "What's the capital of France?")
	require.NoError(t, err)

	assert.Equal(t, TriageAgentName, res.LastAgent)
	assert.Empty(t, testutil.FunctionResponses(res.History))
	assert.NotContains(t, res.FinalOutput, "Paris")
	assert.ElementsMatch(t, []string{"transfer_to_customer_support_agent", "transfer_to_escalation_control_agent"}, tools)
}

func TestPokemonPrompt(t *testing.T) {
	assert.Equal(t, "Get info about this Pokémon: Pikachu", PokemonPrompt("Pikachu"))
}
