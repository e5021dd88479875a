package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/agentproxy/agent"
	"github.com/hupe1980/agentproxy/core"
	"github.com/hupe1980/agentproxy/internal/config"
	"github.com/hupe1980/agentproxy/internal/natsbus"
	"github.com/hupe1980/agentproxy/tool"
)

const (
	ChatAgentName         = "Nerdy Chat Agent"
	OrchestratorAgentName = "Orchestrator Agent"
	TriageAgentName       = "Triage Agent"
	SupportAgentName      = "Customer Support Agent"
	EscalationAgentName   = "Escalation Control Agent"
)

const chatInstructions = `You are a Nerd. You try to steer every conversation towards Star Trek or Dungeons & Dragons. No matter what.`

const orchestratorInstructions = `- You have ONE tool: pokemon_info. Use it ONLY if the user asks about a Pokémon.
- For tacos: DO NOT use any tools. Answer with exactly a 3-line haiku (5-7-5).
- For other topics: reply briefly, no tools.
- Never invent tools. Only pokemon_info exists.`

const supportInstructions = `You are a customer support agent in a company that sells very fluffy pillows.
Be friendly, helpful and concise.`

const escalationInstructions = `You are an escalation control agent that handles negative customer interactions.
If the customer is upset, you will apologize and offer to escalate the issue to a manager.
Be friendly, helpful, reassuring and concise.`

const triageInstructions = `NEVER answer non-pillow related questions and stop the conversation immediately.
If the question is about pillows, route it to the customer support agent.
If the customer's tone is negative, route it to the escalation control agent.`

// EscalationNotifier is told about every handoff to the escalation agent.
type EscalationNotifier interface {
	NotifyEscalation(ctx context.Context, e natsbus.Escalation) error
}

// Options configures the catalog.
type Options struct {
	Models   config.AgentsConfig
	Notifier EscalationNotifier // optional
}

// Catalog holds the agents served by the proxy.
type Catalog struct {
	Chat         *agent.Agent
	Orchestrator *agent.Agent
	Triage       *agent.Agent
	Support      *agent.Agent
	Escalation   *agent.Agent
}

// New builds the agent graph: a standalone chat agent, the Pokémon
// orchestrator and the triage agent handing off to support or escalation.
func New(optFns ...func(o *Options)) (*Catalog, error) {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}

	m := opts.Models

	chat, err := agent.New(ChatAgentName, func(o *agent.Options) {
		o.Instructions = agent.NewInstructionFromText(chatInstructions)
		o.Model = m.Chat.Model
		o.ModelSettings = agent.ModelSettings{MaxTokens: m.Chat.MaxTokens}
	})
	if err != nil {
		return nil, err
	}

	orchestrator, err := agent.New(OrchestratorAgentName, func(o *agent.Options) {
		o.Instructions = agent.NewInstructionFromText(orchestratorInstructions)
		o.Model = m.Orchestrator.Model
		o.ModelSettings = agent.ModelSettings{MaxTokens: m.Orchestrator.MaxTokens}
		o.Tools = []tool.Tool{PokemonInfoTool()}
	})
	if err != nil {
		return nil, err
	}

	support, err := agent.New(SupportAgentName, func(o *agent.Options) {
		o.Instructions = agent.NewInstructionFromText(supportInstructions)
		o.Model = m.Support.Model
		o.ModelSettings = agent.ModelSettings{MaxTokens: m.Support.MaxTokens}
		o.HandoffDescription = "Answers questions about pillows."
	})
	if err != nil {
		return nil, err
	}

	escalation, err := agent.New(EscalationAgentName, func(o *agent.Options) {
		o.Instructions = agent.NewInstructionFromText(escalationInstructions)
		o.Model = m.Escalation.Model
		o.ModelSettings = agent.ModelSettings{MaxTokens: m.Escalation.MaxTokens}
		o.HandoffDescription = "Handles customers with a negative tone."
	})
	if err != nil {
		return nil, err
	}

	triage, err := agent.New(TriageAgentName, func(o *agent.Options) {
		o.Instructions = agent.NewInstructionFromText(triageInstructions)
		o.Model = m.Triage.Model
		o.ModelSettings = agent.ModelSettings{MaxTokens: m.Triage.MaxTokens}
		o.Handoffs = []*agent.Handoff{
			agent.HandoffTo(support),
			agent.HandoffTo(escalation, func(ho *agent.HandoffOptions) {
				ho.InputSchema = escalationInputSchema
				ho.OnHandoff = onEscalation(opts.Notifier)
			}),
		}
	})
	if err != nil {
		return nil, err
	}

	return &Catalog{
		Chat:         chat,
		Orchestrator: orchestrator,
		Triage:       triage,
		Support:      support,
		Escalation:   escalation,
	}, nil
}

var escalationInputSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"reason": map[string]any{
			"type":        "string",
			"description": "Why the customer needs escalation control.",
		},
	},
	"required": []string{"reason"},
}

func onEscalation(n EscalationNotifier) agent.HandoffFunc {
	return func(rc *core.RunContext, input map[string]any) error {
		reason, _ := input["reason"].(string)

		rc.LogInfo("catalog.escalation", "reason", reason)

		if n == nil {
			return nil
		}

		return n.NotifyEscalation(rc.Context, natsbus.Escalation{
			ConversationID: rc.ConversationID,
			RunID:          rc.RunID,
			From:           rc.GetAgentName(),
			To:             EscalationAgentName,
			Reason:         reason,
			Time:           time.Now().UTC(),
		})
	}
}

type pokemonInput struct {
	Pokemon string `json:"pokemon" description:"The name or the ID of a Pokémon."`
}

// PokemonInfoTool answers with a canned description; the model fills in
// details from its own knowledge.
func PokemonInfoTool() tool.Tool {
	return tool.NewTypedTool("pokemon_info", "Get information about a Pokémon by name or ID.",
		func(tc *core.ToolContext, in pokemonInput) (any, error) {
			tc.Logger().Info("catalog.pokemon_info", "pokemon", in.Pokemon)
			return fmt.Sprintf("%s is a Pokémon. I'll provide more details from my own knowledge.", in.Pokemon), nil
		})
}

// PokemonPrompt is the single-turn prompt sent to the orchestrator.
func PokemonPrompt(pokemon string) string {
	return "Get info about this Pokémon: " + pokemon
}
