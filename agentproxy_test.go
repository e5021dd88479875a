package agentproxy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentproxy/agent"
	"github.com/hupe1980/agentproxy/core"
	"github.com/hupe1980/agentproxy/internal/testutil"
	"github.com/hupe1980/agentproxy/model"
	"github.com/hupe1980/agentproxy/session"
)

func chatAgent() *agent.Agent {
	return agent.MustNew("Chat Agent", func(o *agent.Options) {
		o.Instructions = agent.NewInstructionFromText("You are a helpful assistant.")
		o.ModelSettings = agent.ModelSettings{MaxTokens: 1000}
	})
}

type failingStore struct {
	*session.InMemoryStore
	saveErr error
	loadErr error
}

func (f *failingStore) Save(ctx context.Context, c *core.Conversation) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.InMemoryStore.Save(ctx, c)
}

func (f *failingStore) Load(ctx context.Context, id string) (*core.Conversation, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.InMemoryStore.Load(ctx, id)
}

func TestChat_CreatesAndContinuesConversation(t *testing.T) {
	store := session.NewInMemoryStore()
	m := model.NewScriptedModel(model.Reply("Hello! How can I help?"), model.Reply("You said hi."))

	p := New(m, func(o *Options) { o.Store = store })

	first, err := p.Chat(context.Background(), chatAgent(), "", "hi")
	require.NoError(t, err)
	require.NotEmpty(t, first.ConversationID)
	assert.Equal(t, "Hello! How can I help?", first.FinalOutput)

	second, err := p.Chat(context.Background(), chatAgent(), first.ConversationID, "what did I say?")
	require.NoError(t, err)
	assert.Equal(t, first.ConversationID, second.ConversationID)

	conv, err := store.Load(context.Background(), first.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, []string{"hi", "Hello! How can I help?", "what did I say?", "You said hi."}, testutil.Texts(conv.History))

	reqs := m.Requests()
	require.Len(t, reqs, 2)
	assert.Len(t, reqs[1].Messages, 3)
	assert.Equal(t, 1000, reqs[1].MaxTokens)
}

func TestChat_ContinuesSeededConversation(t *testing.T) {
	store := session.NewInMemoryStore()
	testutil.NewConversationBuilder("conv-1").
		User("Tell me about Pikachu").
		ToolRoundTrip("Chat Agent", "pokemon_info", `{"pokemon":"Pikachu"}`, map[string]any{"name": "pikachu"}).
		Assistant("Chat Agent", "Pikachu is electric.").
		Save(t, store)

	m := model.NewScriptedModel(model.Reply("It evolves into Raichu."))

	res, err := New(m, func(o *Options) { o.Store = store }).Chat(context.Background(), chatAgent(), "conv-1", "And its evolution?")
	require.NoError(t, err)
	assert.Equal(t, "It evolves into Raichu.", res.FinalOutput)

	conv, err := store.Load(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Equal(t,
		[]core.Role{core.RoleUser, core.RoleAssistant, core.RoleTool, core.RoleAssistant, core.RoleUser, core.RoleAssistant},
		testutil.Roles(conv.History))
}

func TestChat_UnknownConversation(t *testing.T) {
	p := New(model.NewScriptedModel(model.Reply("never")))

	_, err := p.Chat(context.Background(), chatAgent(), "missing", "hi")
	require.ErrorIs(t, err, core.ErrConversationNotFound)
	assert.NotErrorIs(t, err, core.ErrPersistence)
}

func TestChat_FailedRunPersistsNothing(t *testing.T) {
	store := session.NewInMemoryStore()
	conv := testutil.NewConversationBuilder("conv-1").User("hi").Assistant("Chat Agent", "hello").Save(t, store)

	m := model.NewScriptedModel(model.Fail(errors.New("provider down")))

	_, err := New(m, func(o *Options) { o.Store = store }).Chat(context.Background(), chatAgent(), conv.ID, "again")
	require.ErrorIs(t, err, core.ErrModelCall)

	loaded, err := store.Load(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.History, 2)
}

func TestChat_CancelledRunPersistsNothing(t *testing.T) {
	store := session.NewInMemoryStore()
	conv := testutil.NewConversationBuilder("conv-1").User("hi").Save(t, store)

	ctx, cancel := context.WithCancel(context.Background())

	m := model.NewScriptedModel(func(context.Context, model.Request) (*model.Response, error) {
		cancel()
		return model.NewToolCallResponse(core.FunctionCall{Name: "anything"}), nil
	})

	_, err := New(m, func(o *Options) { o.Store = store }).Chat(ctx, chatAgent(), conv.ID, "again")
	require.ErrorIs(t, err, core.ErrRunCancelled)

	loaded, err := store.Load(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.History, 1)
}

func TestChat_SaveFailureIsPersistenceError(t *testing.T) {
	store := &failingStore{InMemoryStore: session.NewInMemoryStore(), saveErr: errors.New("disk full")}

	p := New(model.NewScriptedModel(model.Reply("ok")), func(o *Options) { o.Store = store })

	_, err := p.Chat(context.Background(), chatAgent(), "", "hi")
	require.ErrorIs(t, err, core.ErrPersistence)
	assert.ErrorContains(t, err, "disk full")
}

func TestChat_LoadFailureIsPersistenceError(t *testing.T) {
	store := &failingStore{InMemoryStore: session.NewInMemoryStore(), loadErr: errors.New("io error")}

	p := New(model.NewScriptedModel(model.Reply("ok")), func(o *Options) { o.Store = store })

	_, err := p.Chat(context.Background(), chatAgent(), "", "hi")
	require.ErrorIs(t, err, core.ErrPersistence)
}

func TestChat_SameConversationIsSerialised(t *testing.T) {
	store := session.NewInMemoryStore()
	conv := testutil.NewConversationBuilder("conv-1").Save(t, store)

	var (
		mu      sync.Mutex
		active  int
		maxSeen int
	)

	step := func(context.Context, model.Request) (*model.Response, error) {
		mu.Lock()
		active++
		maxSeen = max(maxSeen, active)
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		active--
		mu.Unlock()

		return model.NewTextResponse("ok"), nil
	}

	const n = 5

	steps := make([]model.ScriptStep, n)
	for i := range steps {
		steps[i] = step
	}

	p := New(model.NewScriptedModel(steps...), func(o *Options) { o.Store = store })

	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Chat(context.Background(), chatAgent(), conv.ID, "hi")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)

	loaded, err := store.Load(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.History, 2*n)
}

func TestRun_SingleTurnDoesNotPersist(t *testing.T) {
	store := session.NewInMemoryStore()

	p := New(model.NewScriptedModel(model.Reply("42")), func(o *Options) { o.Store = store })

	res, err := p.Run(context.Background(), chatAgent(), "answer?")
	require.NoError(t, err)
	assert.Equal(t, "42", res.FinalOutput)
	assert.Equal(t, 0, store.Len())
}

func TestRun_ConcurrencyCapHonoursContext(t *testing.T) {
	release := make(chan struct{})

	m := model.NewScriptedModel(func(context.Context, model.Request) (*model.Response, error) {
		<-release
		return model.NewTextResponse("done"), nil
	})

	p := New(m, func(o *Options) { o.MaxConcurrentRuns = 1 })

	done := make(chan error, 1)
	go func() {
		_, err := p.Run(context.Background(), chatAgent(), "first")
		done <- err
	}()

	require.Eventually(t, func() bool { return m.Calls() == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.Run(ctx, chatAgent(), "second")
	require.ErrorIs(t, err, core.ErrRunCancelled)

	close(release)
	require.NoError(t, <-done)
}
