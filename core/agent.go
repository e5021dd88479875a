package core

// AgentInfo carries identifying details about an agent used in contexts and
// log entries. Model is the model id the agent is configured with (may be empty).
type AgentInfo struct{ Name, Model string }
