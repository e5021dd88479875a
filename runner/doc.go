// Package runner implements the run loop that drives agents to a final
// answer.
//
// A run starts at an entry agent with the prior conversation history plus a
// new user message. Each round trip asks the current agent's model for the
// next step and classifies the response:
//
//   - a plain answer ends the run (DONE)
//   - tool calls are validated and executed, their results appended to the
//     history (EXECUTING_TOOL), and the model is asked again
//   - a call to a declared transfer_to_<agent> tool runs the handoff's
//     on_handoff callback and switches the current agent (HANDING_OFF)
//   - provider errors, timeouts and unrecognised responses fail the run
//
// Round trips are capped per run and shared across handoffs, so a model that
// keeps calling tools or bouncing between agents always terminates with
// core.ErrRoundTripBudgetExceeded.
//
// Cancelling the caller's context stops the loop from scheduling further
// model or tool calls. Calls already dispatched run to completion on a
// detached context bounded by their timeout, after which the run fails with
// core.ErrRunCancelled.
package runner
