// Package catalog declares the agents served by the proxy: the nerdy chat
// agent, the Pokémon orchestrator with its pokemon_info tool and the pillow
// shop triage agent that hands off to customer support or escalation control.
package catalog
