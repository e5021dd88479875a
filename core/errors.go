package core

import "errors"

// Recovered failures. They are reported to the model as tool messages and
// never end a run on their own.
var (
	ErrInvalidToolInput     = errors.New("invalid tool input")
	ErrToolExecution        = errors.New("tool execution failed")
	ErrUnknownTool          = errors.New("unknown tool")
	ErrInvalidHandoffTarget = errors.New("invalid handoff target")
)

// Run failures surfaced to the caller.
var (
	ErrModelCall               = errors.New("model call failed")
	ErrUnrecognizedResponse    = errors.New("unrecognized model response")
	ErrTimeout                 = errors.New("timeout")
	ErrRoundTripBudgetExceeded = errors.New("round-trip budget exceeded")
	ErrHandoffCallback         = errors.New("handoff callback failed")
	ErrRunCancelled            = errors.New("run cancelled")
)

// Store failures.
var (
	ErrPersistence          = errors.New("persistence failure")
	ErrConversationNotFound = errors.New("conversation not found")
)
