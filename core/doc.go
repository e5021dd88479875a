// Package core provides the foundational domain types, interfaces and execution
// contexts used by agentproxy. It defines:
//
//   - Messages and their closed set of content Parts
//   - Conversations and the ConversationStore persistence contract
//   - RunContext / ToolContext (scoped execution for the run loop and tools)
//   - The round-trip limiter bounding a run
//   - Sentinel errors shared by the runner, stores and HTTP surface
//
// Implementation concerns (persistence backends, the run loop, concrete
// agents) live in other packages and depend on the small interfaces here.
package core
