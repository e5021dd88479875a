// Package model defines the provider-agnostic abstractions and concrete
// helpers for interacting with language models inside agentproxy.
//
// Core goals:
//   - One synchronous Generate call per round trip of the run loop
//   - Normalized tool / function call representation (ToolDefinition, core.FunctionCall)
//   - Routing by model id so agents can run on different providers (Router)
//   - Deterministic scripting for tests (ScriptedModel)
//
// Providers (OpenAI-compatible endpoints, Anthropic) implement the Model
// interface in sub-packages so higher layers remain decoupled from vendor SDKs.
package model
