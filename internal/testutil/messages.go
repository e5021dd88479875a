package testutil

import "github.com/hupe1980/agentproxy/core"

// FunctionCall returns a call with a generated id.
func FunctionCall(name, args string) core.FunctionCall {
	return core.FunctionCall{ID: "call_" + core.NewID(), Name: name, Arguments: args}
}

// Texts returns the text of every message, in order.
func Texts(msgs []core.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Text())
	}
	return out
}

// Roles returns the role of every message, in order.
func Roles(msgs []core.Message) []core.Role {
	out := make([]core.Role, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Role)
	}
	return out
}

// FunctionResponses collects every function response in msgs, in order.
func FunctionResponses(msgs []core.Message) []core.FunctionResponse {
	var out []core.FunctionResponse
	for _, m := range msgs {
		out = append(out, m.FunctionResponses()...)
	}
	return out
}
