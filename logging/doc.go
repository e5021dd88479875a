// Package logging provides a minimal logging interface and adapters for agentproxy.
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, logging.FormatConsole, false)
//	r := runner.New(m, func(o *runner.Options) { o.Logger = logger.WithComponent("runner") })
//
// The console format renders colourised, human readable lines via tint; json
// and text map onto the slog handlers of the same name.
package logging
