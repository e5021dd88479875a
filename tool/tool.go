// Package tool implements the function / tool calling subsystem that lets agents
// invoke structured capabilities (APIs, computations, side-effects) with schema
// validated arguments, consistent error handling and metadata for model guidance.
package tool

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/agentproxy/core"
	"github.com/hupe1980/agentproxy/internal/util"
)

// Tool defines the interface for extending agent capabilities with external functions.
//
// Tools are registered with agents to enable function calling. The run loop
// validates arguments against Parameters before Call is invoked, so Call
// never sees input that violates the schema.
//
// Tool implementations should:
//   - Provide clear, descriptive names (snake_case) and descriptions
//   - Define a proper JSON schema for parameters
//   - Honour toolCtx.Context() for cancellation and deadlines
//   - Be safe for concurrent use
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description of what this tool does.
	// It is provided to the model to decide when and how to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	Parameters() map[string]any

	// Call executes the tool with already validated arguments.
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// Error codes reported to the model in tool result messages.
const (
	CodeValidation     = "VALIDATION_ERROR"
	CodeExecution      = "EXECUTION_ERROR"
	CodeUnknownTool    = "UNKNOWN_TOOL"
	CodeInvalidHandoff = "INVALID_HANDOFF"
	CodeTimeout        = "TIMEOUT"
)

var codeSentinels = map[string]error{
	CodeValidation:     core.ErrInvalidToolInput,
	CodeExecution:      core.ErrToolExecution,
	CodeUnknownTool:    core.ErrUnknownTool,
	CodeInvalidHandoff: core.ErrInvalidHandoffTarget,
	CodeTimeout:        core.ErrTimeout,
}

// ToolError represents errors that occur around tool execution. It unwraps to
// the core sentinel matching Code and to the underlying cause.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
	Err     error  `json:"-"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// Unwrap exposes the code sentinel and the cause to errors.Is / errors.As.
func (e *ToolError) Unwrap() []error {
	var errs []error
	if s, ok := codeSentinels[e.Code]; ok {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}

// AsToolError normalises err into a *ToolError. Errors that already are (or
// wrap) a ToolError pass through; anything else becomes an EXECUTION_ERROR.
func AsToolError(tool string, err error) *ToolError {
	var te *ToolError
	if errors.As(err, &te) {
		return te
	}
	return &ToolError{Tool: tool, Message: err.Error(), Code: CodeExecution, Err: err}
}

// DecodeArguments parses the serialized argument payload of a function call.
// An empty payload decodes to an empty object; non-object JSON is rejected.
func DecodeArguments(raw string) (map[string]any, error) {
	args := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("arguments must be a JSON object: %w", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// Validate decodes raw arguments and checks them against schema. Failures are
// returned as *ToolError with CodeValidation.
func Validate(name, raw string, schema map[string]any) (map[string]any, error) {
	args, err := DecodeArguments(raw)
	if err != nil {
		return nil, &ToolError{Tool: name, Message: err.Error(), Code: CodeValidation, Err: err}
	}

	if schema == nil {
		return args, nil
	}

	if err := util.ValidateParameters(args, schema); err != nil {
		return nil, &ToolError{
			Tool:    name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    CodeValidation,
			Details: err,
			Err:     err,
		}
	}

	return args, nil
}
