package flow

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/hupe1980/agentproxy/agent"
	"github.com/hupe1980/agentproxy/core"
	"github.com/hupe1980/agentproxy/tool"
)

// DefaultToolTimeout bounds a single tool execution when none is configured.
const DefaultToolTimeout = 15 * time.Second

// ExecutorConfig configures the tool executor.
type ExecutorConfig struct {
	MaxParallel    int           // 0 or <1 => no explicit limit (len(calls))
	Timeout        time.Duration // per call; <= 0 selects DefaultToolTimeout
	LogStartEvents bool          // log a start line per call
}

// ToolResult is the outcome of one function call.
type ToolResult struct {
	Call     core.FunctionCall
	Output   any
	Err      *tool.ToolError
	Duration time.Duration
	// Skipped is set when the call was never dispatched because the run's
	// context was cancelled first.
	Skipped bool
}

// TimedOut reports whether the call exceeded the tool timeout.
func (r ToolResult) TimedOut() bool { return r.Err != nil && r.Err.Code == tool.CodeTimeout }

// Response converts the result into the payload recorded in history.
func (r ToolResult) Response() core.FunctionResponse {
	fr := core.FunctionResponse{ID: r.Call.ID, Name: r.Call.Name, Response: r.Output}
	if r.Err != nil {
		fr.Response = nil
		fr.Error = r.Err.Message
		fr.Code = r.Err.Code
	}
	return fr
}

// ToolExecutor executes a batch of function calls, possibly in parallel.
// It guarantees:
//   - arguments are validated before Tool.Call; invalid input never executes
//   - every dispatched call runs on a context detached from caller
//     cancellation and bounded by the timeout
//   - panics are recovered into EXECUTION_ERROR results
//   - results are returned in call order, one per call
type ToolExecutor struct {
	cfg ExecutorConfig
}

// NewToolExecutor constructs a new executor with the given config.
func NewToolExecutor(cfg ExecutorConfig) *ToolExecutor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultToolTimeout
	}
	return &ToolExecutor{cfg: cfg}
}

// Execute runs calls against a's tool registry.
func (e *ToolExecutor) Execute(rc *core.RunContext, a *agent.Agent, calls []core.FunctionCall) []ToolResult {
	n := len(calls)
	results := make([]ToolResult, n)

	if n == 0 {
		return results
	}

	if n == 1 {
		if rc.Context.Err() != nil {
			results[0] = ToolResult{Call: calls[0], Skipped: true}
		} else {
			results[0] = e.executeSingle(rc, a, calls[0])
		}
		return results
	}

	maxPar := e.cfg.MaxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	var wg sync.WaitGroup

	sem := make(chan struct{}, maxPar)
	batchStart := time.Now()

	for i, fc := range calls {
		sem <- struct{}{}

		if rc.Context.Err() != nil {
			<-sem
			results[i] = ToolResult{Call: fc, Skipped: true}
			continue
		}

		wg.Add(1)

		go func(idx int, fc core.FunctionCall) {
			defer wg.Done()
			defer func() { <-sem }()

			results[idx] = e.executeSingle(rc, a, fc)
		}(i, fc)
	}

	wg.Wait()

	rc.LogDebug(
		"agent.functions.batch.complete",
		"agent", a.Name(),
		"count", n,
		"parallelism", maxPar,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	return results
}

func (e *ToolExecutor) executeSingle(rc *core.RunContext, a *agent.Agent, fc core.FunctionCall) ToolResult {
	if e.cfg.LogStartEvents {
		rc.LogInfo("agent.function.start", "agent", a.Name(), "function", fc.Name, "function_call_id", fc.ID)
	}

	start := time.Now()
	output, toolErr := e.run(rc, a, fc)
	dur := time.Since(start)

	if toolErr != nil {
		rc.LogWarn(
			"agent.function.failed",
			"agent", a.Name(),
			"function", fc.Name,
			"code", toolErr.Code,
			"error", toolErr.Message,
			"duration_ms", dur.Milliseconds(),
		)
	} else {
		rc.LogInfo(
			"agent.function.executed",
			"agent", a.Name(),
			"function", fc.Name,
			"duration_ms", dur.Milliseconds(),
		)
	}

	return ToolResult{Call: fc, Output: output, Err: toolErr, Duration: dur}
}

type callOutcome struct {
	output any
	err    error
}

func (e *ToolExecutor) run(rc *core.RunContext, a *agent.Agent, fc core.FunctionCall) (any, *tool.ToolError) {
	impl, ok := a.Tools().Lookup(fc.Name)
	if !ok {
		return nil, &tool.ToolError{
			Tool:    fc.Name,
			Message: fmt.Sprintf("tool %q is not available to agent %q", fc.Name, a.Name()),
			Code:    tool.CodeUnknownTool,
		}
	}

	args, err := tool.Validate(fc.Name, fc.Arguments, impl.Parameters())
	if err != nil {
		return nil, tool.AsToolError(fc.Name, err)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(rc.Context), e.cfg.Timeout)
	defer cancel()

	toolCtx := core.NewToolContext(ctx, rc, fc.Name, fc.ID)
	done := make(chan callOutcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				pe := newPanicError(r)
				rc.LogError("agent.function.panic", "agent", a.Name(), "function", fc.Name, "recover", r, "stack", string(pe.stack))
				done <- callOutcome{err: &tool.ToolError{
					Tool:    fc.Name,
					Message: fmt.Sprintf("panic: %v", r),
					Code:    tool.CodeExecution,
					Err:     pe,
				}}
			}
		}()

		out, err := impl.Call(toolCtx, args)
		done <- callOutcome{output: out, err: err}
	}()

	select {
	case o := <-done:
		if o.err == nil {
			return o.output, nil
		}
		if ctx.Err() != nil && errors.Is(o.err, context.DeadlineExceeded) {
			return nil, timeoutError(fc.Name, e.cfg.Timeout)
		}
		return nil, tool.AsToolError(fc.Name, o.err)
	case <-ctx.Done():
		return nil, timeoutError(fc.Name, e.cfg.Timeout)
	}
}

func timeoutError(name string, d time.Duration) *tool.ToolError {
	return &tool.ToolError{
		Tool:    name,
		Message: fmt.Sprintf("tool did not complete within %s", d),
		Code:    tool.CodeTimeout,
		Err:     context.DeadlineExceeded,
	}
}

// newPanicError converts a recovered panic value to an error carrying the stack.
func newPanicError(r any) *panicErr { return &panicErr{val: r, stack: debug.Stack()} }

type panicErr struct {
	val   any
	stack []byte
}

func (p *panicErr) Error() string { return fmt.Sprintf("panic recovered: %v", p.val) }

// Stack returns the goroutine stack captured at recovery.
func (p *panicErr) Stack() []byte { return p.stack }
