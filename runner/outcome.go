package runner

import (
	"strings"

	"github.com/hupe1980/agentproxy/agent"
	"github.com/hupe1980/agentproxy/core"
	"github.com/hupe1980/agentproxy/model"
)

type outcomeKind int

const (
	outcomeUnrecognized outcomeKind = iota
	outcomeAnswer
	outcomeToolCalls
	outcomeHandoff
)

func (k outcomeKind) String() string {
	switch k {
	case outcomeAnswer:
		return "answer"
	case outcomeToolCalls:
		return "tool_calls"
	case outcomeHandoff:
		return "handoff"
	default:
		return "unrecognized"
	}
}

// outcome is the classified shape of one model response.
type outcome struct {
	kind  outcomeKind
	text  string
	calls []core.FunctionCall

	// Set for outcomeHandoff only. handoffIndex points into calls.
	handoff      *agent.Handoff
	handoffIndex int
}

// classify maps a model response onto the loop's tagged union. When several
// declared handoffs are requested the one declared first on a wins.
func classify(resp *model.Response, a *agent.Agent) outcome {
	if resp == nil {
		return outcome{kind: outcomeUnrecognized}
	}

	text := resp.Message.Text()

	calls := resp.Message.FunctionCalls()
	if len(calls) == 0 {
		if strings.TrimSpace(text) == "" {
			return outcome{kind: outcomeUnrecognized}
		}
		return outcome{kind: outcomeAnswer, text: text}
	}

	for _, h := range a.Handoffs() {
		for i, fc := range calls {
			if fc.Name == h.ToolName() {
				return outcome{kind: outcomeHandoff, text: text, calls: calls, handoff: h, handoffIndex: i}
			}
		}
	}

	return outcome{kind: outcomeToolCalls, text: text, calls: calls, handoffIndex: -1}
}
