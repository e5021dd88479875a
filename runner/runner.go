package runner

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/agentproxy/agent"
	"github.com/hupe1980/agentproxy/core"
	"github.com/hupe1980/agentproxy/flow"
	"github.com/hupe1980/agentproxy/logging"
	"github.com/hupe1980/agentproxy/model"
	"github.com/hupe1980/agentproxy/tool"
)

// DefaultModelTimeout bounds a single model call when none is configured.
const DefaultModelTimeout = 60 * time.Second

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// MaxRoundTrips caps model invocations per run, shared across handoffs.
	// Values <= 0 select core.DefaultMaxRoundTrips.
	MaxRoundTrips int
	// ModelTimeout bounds each model call.
	ModelTimeout time.Duration
	// ToolTimeout bounds each tool execution and each on_handoff callback.
	ToolTimeout time.Duration
	// MaxParallelTools limits concurrent tool calls from one model turn.
	MaxParallelTools int
	// FailOnHandoffError makes every on_handoff failure end the run.
	FailOnHandoffError bool
	// RequestBuilder assembles model requests.
	RequestBuilder *flow.RequestBuilder
	// Events receives lifecycle events (optional).
	Events EventSink
	// Logging services.
	Logger logging.Logger
}

// RunOptions tunes a single Run call.
type RunOptions struct {
	// ConversationID is attached to logs and events.
	ConversationID string
	// RunID overrides the generated run id, allowing Cancel before Run returns.
	RunID string
	// Vars are made available to instruction templates.
	Vars map[string]any
}

// Result is the outcome of a completed run.
type Result struct {
	RunID          string
	ConversationID string
	FinalOutput    string
	LastAgent      string
	// History is the input history followed by every message added by the run.
	History []core.Message
	// NewMessages holds only the messages added by the run, starting with the
	// user prompt.
	NewMessages []core.Message
	RoundTrips  int
	Usage       model.TokenUsage
}

// RunError describes a failed run. It unwraps to the core sentinel naming the
// failure reason.
type RunError struct {
	RunID      string
	Agent      string
	State      State // state in which the run failed
	RoundTrips int
	Err        error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run %s failed in %s (agent %q, round trips %d): %v", e.RunID, e.State, e.Agent, e.RoundTrips, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// Runner drives the agent run loop: it asks the current agent's model for the
// next step, executes requested tools, performs handoffs and stops on a final
// answer or a failure. Public methods are safe for concurrent use.
type Runner struct {
	model model.Model

	maxRoundTrips      int
	modelTimeout       time.Duration
	toolTimeout        time.Duration
	failOnHandoffError bool

	builder  *flow.RequestBuilder
	executor *flow.ToolExecutor
	events   EventSink
	logger   logging.Logger

	activeRuns map[string]context.CancelFunc
	mu         sync.RWMutex
}

// New constructs a Runner with optional overrides.
func New(m model.Model, optFns ...func(o *Options)) *Runner {
	opts := Options{
		MaxRoundTrips: core.DefaultMaxRoundTrips,
		ModelTimeout:  DefaultModelTimeout,
		ToolTimeout:   flow.DefaultToolTimeout,
		Logger:        logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.ModelTimeout <= 0 {
		opts.ModelTimeout = DefaultModelTimeout
	}

	if opts.ToolTimeout <= 0 {
		opts.ToolTimeout = flow.DefaultToolTimeout
	}

	if opts.RequestBuilder == nil {
		opts.RequestBuilder = flow.DefaultRequestBuilder()
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Runner{
		model:              m,
		maxRoundTrips:      opts.MaxRoundTrips,
		modelTimeout:       opts.ModelTimeout,
		toolTimeout:        opts.ToolTimeout,
		failOnHandoffError: opts.FailOnHandoffError,
		builder:            opts.RequestBuilder,
		executor: flow.NewToolExecutor(flow.ExecutorConfig{
			MaxParallel: opts.MaxParallelTools,
			Timeout:     opts.ToolTimeout,
		}),
		events:     opts.Events,
		logger:     opts.Logger,
		activeRuns: make(map[string]context.CancelFunc),
	}
}

// Cancel cancels a running run by ID.
func (r *Runner) Cancel(runID string) error {
	r.mu.RLock()
	cancel, exists := r.activeRuns[runID]
	r.mu.RUnlock()

	if !exists {
		return fmt.Errorf("run %s not found", runID)
	}

	cancel()

	return nil
}

// Active returns the ids of runs currently in flight.
func (r *Runner) Active() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := slices.Collect(maps.Keys(r.activeRuns))
	slices.Sort(ids)

	return ids
}

// Run executes the loop starting at entry over history plus a new user
// message carrying prompt. history is never modified. On failure the
// returned error is a *RunError and no Result is produced.
func (r *Runner) Run(
	ctx context.Context,
	entry *agent.Agent,
	history []core.Message,
	prompt string,
	optFns ...func(o *RunOptions),
) (*Result, error) {
	if entry == nil {
		return nil, errors.New("entry agent is required")
	}

	if r.model == nil {
		return nil, errors.New("runner has no model")
	}

	var ro RunOptions
	for _, fn := range optFns {
		fn(&ro)
	}

	runID := ro.RunID
	if runID == "" {
		runID = core.NewID()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.mu.Lock()
	if _, dup := r.activeRuns[runID]; dup {
		r.mu.Unlock()
		return nil, fmt.Errorf("run %s already active", runID)
	}
	r.activeRuns[runID] = cancel
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.activeRuns, runID)
		r.mu.Unlock()
	}()

	rc := core.NewRunContext(ctx, ro.ConversationID, runID, entry.Info(), r.maxRoundTrips, r.runLogger(ro.ConversationID, runID))
	maps.Copy(rc.Vars, ro.Vars)

	s := &run{
		Runner:  r,
		rc:      rc,
		current: entry,
		start:   len(history),
		history: append(slices.Clone(history), core.NewUserMessage(prompt)),
		began:   time.Now(),
	}

	return s.loop()
}

func (r *Runner) runLogger(conversationID, runID string) logging.Logger {
	if pl, ok := r.logger.(*logging.ProxyLogger); ok {
		return pl.WithComponent("runner").WithRun(conversationID, runID)
	}
	return r.logger
}

// run holds the mutable state of one loop execution.
type run struct {
	*Runner

	rc      *core.RunContext
	current *agent.Agent
	state   State
	start   int
	history []core.Message
	usage   model.TokenUsage
	began   time.Time
}

func (s *run) loop() (*Result, error) {
	s.state = StateAwaitingModel
	s.emit(EventRunStarted, map[string]any{"entry_agent": s.current.Name()})
	s.rc.LogInfo("runner.run.start", "agent", s.current.Name(), "max_round_trips", s.rc.Limiter.Max())

	for !s.state.Terminal() {
		if err := s.rc.Err(); err != nil {
			return nil, s.fail(fmt.Errorf("%w: %w", core.ErrRunCancelled, err))
		}

		if err := s.rc.Limiter.Increment(); err != nil {
			return nil, s.fail(err)
		}

		resp, err := s.callModel()
		if err != nil {
			return nil, s.fail(err)
		}

		// The dispatched call was allowed to finish; nothing further is
		// scheduled for a cancelled run.
		if err := s.rc.Err(); err != nil {
			return nil, s.fail(fmt.Errorf("%w: %w", core.ErrRunCancelled, err))
		}

		out := classify(resp, s.current)

		s.emit(EventModelResponded, map[string]any{"outcome": out.kind.String(), "calls": len(out.calls)})

		switch out.kind {
		case outcomeAnswer:
			s.appendAssistant(resp.Message)
			s.state = StateDone
			return s.complete(out.text), nil
		case outcomeToolCalls, outcomeHandoff:
			s.appendAssistant(resp.Message)
			s.state = StateExecutingTool
			if err := s.executeTurn(out); err != nil {
				return nil, s.fail(err)
			}
		case outcomeUnrecognized:
			return nil, s.fail(fmt.Errorf("%w: %w: response carries neither text nor calls", core.ErrModelCall, core.ErrUnrecognizedResponse))
		default:
			return nil, s.fail(fmt.Errorf("%w: %w: outcome %v", core.ErrModelCall, core.ErrUnrecognizedResponse, out.kind))
		}
	}

	return nil, s.fail(errors.New("run loop ended without result"))
}

func (s *run) callModel() (*model.Response, error) {
	req, err := s.builder.Build(s.rc, s.current, s.history)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", core.ErrModelCall, err)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.rc.Context), s.modelTimeout)
	defer cancel()

	type reply struct {
		resp *model.Response
		err  error
	}

	done := make(chan reply, 1)
	began := time.Now()

	go func() {
		resp, err := s.model.Generate(ctx, req)
		done <- reply{resp: resp, err: err}
	}()

	var rep reply
	select {
	case rep = <-done:
	case <-ctx.Done():
		rep = reply{err: ctx.Err()}
	}

	tokens := 0
	if rep.resp != nil && rep.resp.Usage != nil {
		tokens = rep.resp.Usage.TotalTokens
		s.usage.PromptTokens += rep.resp.Usage.PromptTokens
		s.usage.CompletionTokens += rep.resp.Usage.CompletionTokens
		s.usage.TotalTokens += rep.resp.Usage.TotalTokens
	}

	switch {
	case rep.err != nil && (ctx.Err() != nil || errors.Is(rep.err, context.DeadlineExceeded)):
		rep.err = fmt.Errorf("%w: model %q did not respond within %s", core.ErrTimeout, req.Model, s.modelTimeout)
	case rep.err != nil:
		rep.err = fmt.Errorf("%w: %w", core.ErrModelCall, rep.err)
	case rep.resp == nil:
		rep.err = fmt.Errorf("%w: %w: empty response", core.ErrModelCall, core.ErrUnrecognizedResponse)
	}

	s.logModelCall(req.Model, tokens, time.Since(began), rep.err)

	return rep.resp, rep.err
}

// executeTurn runs the tool calls of one model turn and, when requested, the
// handoff. One tool message per call is appended in call order.
func (s *run) executeTurn(out outcome) error {
	responses := make([]core.FunctionResponse, len(out.calls))
	pending := make([]core.FunctionCall, 0, len(out.calls))
	pendingIdx := make([]int, 0, len(out.calls))

	for i, fc := range out.calls {
		switch {
		case out.kind == outcomeHandoff && i == out.handoffIndex:
			// handled below
		case s.isToolCall(fc.Name):
			pending = append(pending, fc)
			pendingIdx = append(pendingIdx, i)
		default:
			responses[i] = s.rejectHandoff(fc, out)
		}
	}

	results := s.executor.Execute(s.rc, s.current, pending)

	for j, res := range results {
		if res.Skipped {
			return fmt.Errorf("%w: %w", core.ErrRunCancelled, context.Cause(s.rc.Context))
		}

		if res.TimedOut() {
			return res.Err
		}

		data := map[string]any{"tool": res.Call.Name, "duration_ms": res.Duration.Milliseconds()}
		if res.Err != nil {
			data["code"] = res.Err.Code
		}
		s.emit(EventToolExecuted, data)
		s.logToolCall(res)

		responses[pendingIdx[j]] = res.Response()
	}

	if err := s.rc.Err(); err != nil {
		return fmt.Errorf("%w: %w", core.ErrRunCancelled, err)
	}

	var target *agent.Agent

	if out.kind == outcomeHandoff {
		s.state = StateHandingOff

		fr, next, err := s.handoff(out.handoff, out.calls[out.handoffIndex])
		if err != nil {
			return err
		}

		responses[out.handoffIndex] = fr
		target = next
	}

	author := s.current.Name()
	for _, fr := range responses {
		s.history = append(s.history, core.NewFunctionResponseMessage(author, fr))
	}

	if target != nil {
		s.current = target
		s.rc = s.rc.WithAgent(target.Info())
	}

	s.state = StateAwaitingModel

	return nil
}

// isToolCall reports whether name should be dispatched to the tool executor.
// Unknown names without the handoff prefix are executed so the executor can
// report them as unknown tools.
func (s *run) isToolCall(name string) bool {
	if _, ok := s.current.Tools().Lookup(name); ok {
		return true
	}
	return !agent.IsHandoffToolName(name)
}

func (s *run) rejectHandoff(fc core.FunctionCall, out outcome) core.FunctionResponse {
	var te *tool.ToolError

	if _, declared := s.current.FindHandoff(fc.Name); declared && out.handoff != nil {
		te = tool.NewToolError(fc.Name,
			fmt.Sprintf("only one handoff per turn is performed; control passes to %q", out.handoff.Target().Name()),
			tool.CodeInvalidHandoff)
	} else {
		targets := make([]string, 0, len(s.current.Handoffs()))
		for _, h := range s.current.Handoffs() {
			targets = append(targets, h.ToolName())
		}

		te = tool.NewToolError(fc.Name,
			fmt.Sprintf("agent %q cannot hand off via %q; available handoffs: [%s]", s.current.Name(), fc.Name, strings.Join(targets, ", ")),
			tool.CodeInvalidHandoff)
	}

	s.rc.LogWarn("runner.handoff.rejected", "agent", s.current.Name(), "function", fc.Name, "error", te.Message)

	return core.FunctionResponse{ID: fc.ID, Name: fc.Name, Error: te.Message, Code: te.Code}
}

// handoff validates the call, runs on_handoff and returns the tool response
// to record. A nil target means the handoff was rejected and the current
// agent keeps control.
func (s *run) handoff(h *agent.Handoff, fc core.FunctionCall) (core.FunctionResponse, *agent.Agent, error) {
	from := s.current.Name()
	to := h.Target().Name()

	// Handoffs without declared input are validated against the empty
	// closed object schema they advertise.
	input, err := tool.Validate(fc.Name, fc.Arguments, h.InputSchema())
	if err != nil {
		te := tool.AsToolError(fc.Name, err)
		s.rc.LogWarn("runner.handoff.invalid_input", "from_agent", from, "to_agent", to, "error", te.Message)
		return core.FunctionResponse{ID: fc.ID, Name: fc.Name, Error: te.Message, Code: te.Code}, nil, nil
	}

	cbErr := s.invokeHandoff(h, input)

	s.logHandoff(from, to, cbErr)
	s.emit(EventHandoff, map[string]any{"from": from, "to": to, "input": input, "callback_failed": cbErr != nil})

	if cbErr != nil {
		if errors.Is(cbErr, core.ErrTimeout) || h.Fatal() || s.failOnHandoffError {
			return core.FunctionResponse{}, nil, cbErr
		}
		s.rc.LogWarn("runner.handoff.callback_failed", "from_agent", from, "to_agent", to, "error", cbErr.Error())
	}

	return core.FunctionResponse{ID: fc.ID, Name: fc.Name, Response: h.Result()}, h.Target(), nil
}

// invokeHandoff runs the callback synchronously, bounded by the tool timeout
// and detached from caller cancellation.
func (s *run) invokeHandoff(h *agent.Handoff, input map[string]any) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.rc.Context), s.toolTimeout)
	defer cancel()

	cbRC := *s.rc
	cbRC.Context = ctx

	done := make(chan error, 1)

	go func() { done <- h.Invoke(&cbRC, input) }()

	var err error
	select {
	case err = <-done:
		if err == nil || ctx.Err() == nil {
			return err
		}
	case <-ctx.Done():
	}

	return fmt.Errorf("%w: %w: on_handoff did not complete within %s", core.ErrHandoffCallback, core.ErrTimeout, s.toolTimeout)
}

func (s *run) appendAssistant(m core.Message) {
	msg := m.Clone()
	msg.Role = core.RoleAssistant
	msg.Author = s.current.Name()

	if msg.ID == "" {
		msg.ID = core.NewID()
	}

	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	s.history = append(s.history, msg)
}

func (s *run) complete(output string) *Result {
	res := &Result{
		RunID:          s.rc.RunID,
		ConversationID: s.rc.ConversationID,
		FinalOutput:    output,
		LastAgent:      s.current.Name(),
		History:        s.history,
		NewMessages:    slices.Clone(s.history[s.start:]),
		RoundTrips:     s.rc.Limiter.Count(),
		Usage:          s.usage,
	}

	s.logRun(nil)
	s.emit(EventRunCompleted, map[string]any{"round_trips": res.RoundTrips, "output_length": len(output)})

	return res
}

func (s *run) fail(err error) error {
	runErr := &RunError{
		RunID:      s.rc.RunID,
		Agent:      s.current.Name(),
		State:      s.state,
		RoundTrips: s.rc.Limiter.Count(),
		Err:        err,
	}

	s.state = StateFailed

	s.logRun(err)
	s.emit(EventRunFailed, map[string]any{"state": runErr.State.String(), "error": err.Error()})

	return runErr
}

func (s *run) emit(typ EventType, data map[string]any) {
	if s.events == nil {
		return
	}

	ev := Event{
		Type:           typ,
		RunID:          s.rc.RunID,
		ConversationID: s.rc.ConversationID,
		Agent:          s.current.Name(),
		Time:           time.Now().UTC(),
		Data:           data,
	}

	if err := s.events.Publish(context.WithoutCancel(s.rc.Context), ev); err != nil {
		s.rc.LogWarn("runner.event.publish_failed", "type", string(typ), "error", err.Error())
	}
}

func (s *run) logModelCall(modelID string, tokens int, dur time.Duration, err error) {
	if pl, ok := s.rc.Logger().(*logging.ProxyLogger); ok {
		pl.LogModelCall(modelID, tokens, dur, err == nil, err)
		return
	}
	s.rc.LogDebug("model.call", "model", modelID, "duration_ms", dur.Milliseconds(), "success", err == nil)
}

func (s *run) logToolCall(res flow.ToolResult) {
	pl, ok := s.rc.Logger().(*logging.ProxyLogger)
	if !ok {
		return
	}

	var err error
	if res.Err != nil {
		err = res.Err
	}

	pl.LogToolCall(res.Call.Name, res.Duration, res.Err == nil, err)
}

func (s *run) logHandoff(from, to string, err error) {
	if pl, ok := s.rc.Logger().(*logging.ProxyLogger); ok {
		pl.LogHandoff(from, to, err)
		return
	}
	s.rc.LogInfo("runner.handoff", "from_agent", from, "to_agent", to)
}

func (s *run) logRun(err error) {
	dur := time.Since(s.began)
	if pl, ok := s.rc.Logger().(*logging.ProxyLogger); ok {
		pl.LogRun(s.current.Name(), s.rc.Limiter.Count(), dur, err == nil, err)
		return
	}
	if err != nil {
		s.rc.LogError("runner.run.failed", "agent", s.current.Name(), "error", err.Error())
		return
	}
	s.rc.LogInfo("runner.run.completed", "agent", s.current.Name(), "duration_ms", dur.Milliseconds())
}
