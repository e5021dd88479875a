// Package agent defines immutable agent declarations and the handoffs that
// connect them.
//
// An Agent bundles a name, system instructions, a model id with settings, a
// tool registry and a list of handoffs. Handoffs are exposed to the model as
// transfer_to_<agent> tools; when the model calls one the runner switches the
// current agent, replacing the system framing while keeping the history.
//
// Agents carry no execution logic. The runner package drives them.
package agent
