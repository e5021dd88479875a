// Package agentproxy provides a high-level façade over the run loop and the
// conversation store. Most applications interact with this package by:
//  1. Declaring agents with the agent package (tools, handoffs, instructions)
//  2. Creating a Proxy via New() with a model (optionally overriding the
//     default in‑memory conversation store)
//  3. Calling Chat for multi-turn conversations or Run for single-turn requests
//
// Chat serialises requests per conversation id: the conversation is loaded,
// the run executes and the new messages are saved while a per-conversation
// lock is held. Failed or cancelled runs never write partial history.
package agentproxy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/agentproxy/agent"
	"github.com/hupe1980/agentproxy/core"
	"github.com/hupe1980/agentproxy/logging"
	"github.com/hupe1980/agentproxy/model"
	"github.com/hupe1980/agentproxy/runner"
	"github.com/hupe1980/agentproxy/session"
)

// Options configures the Proxy instance.
type Options struct {
	// Store persists conversations (defaults to an in-memory store).
	Store core.ConversationStore

	// MaxConcurrentRuns limits the number of runs executing simultaneously.
	// Waiting callers give up when their context ends. 0 means unlimited.
	MaxConcurrentRuns int

	// Run loop configuration, see runner.Options.
	MaxRoundTrips      int
	ModelTimeout       time.Duration
	ToolTimeout        time.Duration
	MaxParallelTools   int
	FailOnHandoffError bool

	// Events receives run lifecycle events (optional).
	Events runner.EventSink

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Proxy is the high-level façade aggregating the runner, the conversation
// store and the per-conversation locker. It is safe for concurrent use.
type Proxy struct {
	runner *runner.Runner
	store  core.ConversationStore
	locker *session.Locker
	slots  chan struct{}
	logger logging.Logger
}

// ChatResult is the outcome of one conversational turn.
type ChatResult struct {
	ConversationID string
	*runner.Result
}

// New creates a new Proxy driving m. Any unset service is initialized with an
// in-memory implementation.
func New(m model.Model, optFns ...func(o *Options)) *Proxy {
	opts := Options{
		Store:  session.NewInMemoryStore(),
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	r := runner.New(m, func(o *runner.Options) {
		o.MaxRoundTrips = opts.MaxRoundTrips
		o.ModelTimeout = opts.ModelTimeout
		o.ToolTimeout = opts.ToolTimeout
		o.MaxParallelTools = opts.MaxParallelTools
		o.FailOnHandoffError = opts.FailOnHandoffError
		o.Events = opts.Events
		o.Logger = opts.Logger
	})

	p := &Proxy{
		runner: r,
		store:  opts.Store,
		locker: session.NewLocker(),
		logger: opts.Logger,
	}

	if opts.MaxConcurrentRuns > 0 {
		p.slots = make(chan struct{}, opts.MaxConcurrentRuns)
	}

	return p
}

// Runner exposes the underlying runner (e.g. to cancel a run by id).
func (p *Proxy) Runner() *runner.Runner { return p.runner }

// Store exposes the conversation store.
func (p *Proxy) Store() core.ConversationStore { return p.store }

// Chat runs one turn of the conversation identified by conversationID,
// creating a new conversation when the id is empty. Unknown ids fail with
// core.ErrConversationNotFound. The conversation is persisted only when the
// run succeeds.
func (p *Proxy) Chat(ctx context.Context, a *agent.Agent, conversationID, prompt string) (*ChatResult, error) {
	release, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if conversationID == "" {
		conv, err := p.store.Create(ctx)
		if err != nil {
			return nil, persistenceError("create conversation", err)
		}
		conversationID = conv.ID
		p.logger.Debug("proxy.conversation.created", "conversation_id", conversationID)
	}

	unlock, err := p.locker.Lock(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrRunCancelled, err)
	}
	defer unlock()

	conv, err := p.store.Load(ctx, conversationID)
	if err != nil {
		return nil, persistenceError("load conversation", err)
	}

	res, err := p.runner.Run(ctx, a, conv.History, prompt, func(o *runner.RunOptions) {
		o.ConversationID = conversationID
	})
	if err != nil {
		return nil, err
	}

	conv.Append(res.NewMessages...)

	// The run completed; a caller disconnecting now must not lose the turn.
	if err := p.store.Save(context.WithoutCancel(ctx), conv); err != nil {
		return nil, persistenceError("save conversation", err)
	}

	return &ChatResult{ConversationID: conversationID, Result: res}, nil
}

// Run executes a single-turn request without persisting anything.
func (p *Proxy) Run(ctx context.Context, a *agent.Agent, prompt string) (*runner.Result, error) {
	release, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	return p.runner.Run(ctx, a, nil, prompt)
}

func (p *Proxy) acquire(ctx context.Context) (func(), error) {
	if p.slots == nil {
		return func() {}, nil
	}

	select {
	case p.slots <- struct{}{}:
		return func() { <-p.slots }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: waiting for a run slot: %w", core.ErrRunCancelled, ctx.Err())
	}
}

// persistenceError tags store failures with core.ErrPersistence, leaving
// not-found and already tagged errors recognisable.
func persistenceError(op string, err error) error {
	if errors.Is(err, core.ErrConversationNotFound) || errors.Is(err, core.ErrPersistence) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", core.ErrPersistence, op, err)
}
