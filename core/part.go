package core

import (
	"encoding/json"
	"fmt"
)

// Part represents a polymorphic segment of role-based content. Concrete part
// types implement the unexported isPart marker enabling a closed set.
type Part interface{ isPart() }

// TextPart is a plain text content segment.
type TextPart struct {
	Text     string         // Plain UTF-8 text
	Metadata map[string]any // Optional producer-provided metadata
}

// isPart implements the Part interface for TextPart.
func (TextPart) isPart() {}

// DataPart is a structured data segment (e.g., JSON object map).
type DataPart struct {
	Data     map[string]any // Structured key/value payload
	Metadata map[string]any
}

// isPart implements the Part interface for DataPart.
func (DataPart) isPart() {}

// FunctionCall describes a tool/function invocation request.
type FunctionCall struct {
	ID        string `json:"id,omitempty"`        // Provider assigned call id
	Name      string `json:"name"`                // Tool / handoff name
	Arguments string `json:"arguments,omitempty"` // Serialized argument payload (JSON)
}

// FunctionCallPart wraps a FunctionCall as a content part.
type FunctionCallPart struct {
	FunctionCall FunctionCall
	Metadata     map[string]any
}

// isPart implements the Part interface for FunctionCallPart.
func (FunctionCallPart) isPart() {}

// FunctionResponse describes the outcome of a function call.
type FunctionResponse struct {
	ID       string `json:"id,omitempty"`       // Matches originating FunctionCall ID
	Name     string `json:"name"`               // Function name
	Response any    `json:"response,omitempty"` // Successful result (any shape)
	Error    string `json:"error,omitempty"`    // Populated on failure
	Code     string `json:"code,omitempty"`     // Failure category (VALIDATION_ERROR, ...)
}

// FunctionResponsePart wraps a FunctionResponse as a content part.
type FunctionResponsePart struct {
	FunctionResponse FunctionResponse
	Metadata         map[string]any
}

// isPart implements the Part interface for FunctionResponsePart.
func (FunctionResponsePart) isPart() {}

// Part type tags used on the wire.
const (
	partTypeText             = "text"
	partTypeData             = "data"
	partTypeFunctionCall     = "function_call"
	partTypeFunctionResponse = "function_response"
)

// partEnvelope is the tagged JSON representation of a Part.
type partEnvelope struct {
	Type             string            `json:"type"`
	Text             string            `json:"text,omitempty"`
	Data             map[string]any    `json:"data,omitempty"`
	FunctionCall     *FunctionCall     `json:"function_call,omitempty"`
	FunctionResponse *FunctionResponse `json:"function_response,omitempty"`
	Metadata         map[string]any    `json:"metadata,omitempty"`
}

func encodePart(p Part) (partEnvelope, error) {
	switch v := p.(type) {
	case TextPart:
		return partEnvelope{Type: partTypeText, Text: v.Text, Metadata: v.Metadata}, nil
	case DataPart:
		return partEnvelope{Type: partTypeData, Data: v.Data, Metadata: v.Metadata}, nil
	case FunctionCallPart:
		fc := v.FunctionCall
		return partEnvelope{Type: partTypeFunctionCall, FunctionCall: &fc, Metadata: v.Metadata}, nil
	case FunctionResponsePart:
		fr := v.FunctionResponse
		return partEnvelope{Type: partTypeFunctionResponse, FunctionResponse: &fr, Metadata: v.Metadata}, nil
	default:
		return partEnvelope{}, fmt.Errorf("unsupported part type %T", p)
	}
}

func decodePart(env partEnvelope) (Part, error) {
	switch env.Type {
	case partTypeText:
		return TextPart{Text: env.Text, Metadata: env.Metadata}, nil
	case partTypeData:
		return DataPart{Data: env.Data, Metadata: env.Metadata}, nil
	case partTypeFunctionCall:
		if env.FunctionCall == nil {
			return nil, fmt.Errorf("function_call part without payload")
		}
		return FunctionCallPart{FunctionCall: *env.FunctionCall, Metadata: env.Metadata}, nil
	case partTypeFunctionResponse:
		if env.FunctionResponse == nil {
			return nil, fmt.Errorf("function_response part without payload")
		}
		return FunctionResponsePart{FunctionResponse: *env.FunctionResponse, Metadata: env.Metadata}, nil
	default:
		return nil, fmt.Errorf("unknown part type %q", env.Type)
	}
}

// MarshalParts encodes parts into their tagged JSON form.
func MarshalParts(parts []Part) ([]byte, error) {
	envs := make([]partEnvelope, 0, len(parts))
	for _, p := range parts {
		env, err := encodePart(p)
		if err != nil {
			return nil, err
		}
		envs = append(envs, env)
	}
	return json.Marshal(envs)
}

// UnmarshalParts decodes parts previously produced by MarshalParts.
func UnmarshalParts(data []byte) ([]Part, error) {
	var envs []partEnvelope
	if err := json.Unmarshal(data, &envs); err != nil {
		return nil, err
	}
	parts := make([]Part, 0, len(envs))
	for _, env := range envs {
		p, err := decodePart(env)
		if err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}
	return parts, nil
}
