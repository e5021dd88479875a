package model

import (
	"encoding/json"
	"fmt"

	"github.com/hupe1980/agentproxy/core"
)

// FunctionResponseText renders a tool result as the string payload providers
// expect in tool messages. Strings pass through; other values are JSON encoded.
// Failures render as {"error": ..., "code": ...} so the model can react.
func FunctionResponseText(fr core.FunctionResponse) string {
	if fr.Error != "" {
		b, _ := json.Marshal(map[string]string{"error": fr.Error, "code": fr.Code})
		return string(b)
	}

	switch v := fr.Response.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}

// MessageText returns the text of a message including rendered data parts.
func MessageText(m core.Message) string {
	text := m.Text()
	for _, p := range m.Parts {
		if dp, ok := p.(core.DataPart); ok {
			if b, err := json.Marshal(dp.Data); err == nil {
				text += string(b)
			}
		}
	}
	return text
}
