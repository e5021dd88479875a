package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentproxy/core"
)

var _ core.ConversationStore = (*InMemoryStore)(nil)

func TestInMemoryStore_CreateLoadSave(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	conv, err := s.Create(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, conv.ID)
	assert.Empty(t, conv.History)

	conv.Append(core.NewUserMessage("Hello"), core.NewAssistantMessage("Chat Agent", "Hi!"))
	require.NoError(t, s.Save(ctx, conv))

	loaded, err := s.Load(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, loaded.History, 2)
	assert.Equal(t, "Hi!", loaded.History[1].Text())
	assert.Equal(t, 1, s.Len())
}

func TestInMemoryStore_LoadIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	conv, err := s.Create(ctx)
	require.NoError(t, err)
	conv.Append(core.NewUserMessage("Hello"))
	require.NoError(t, s.Save(ctx, conv))

	first, err := s.Load(ctx, conv.ID)
	require.NoError(t, err)
	second, err := s.Load(ctx, conv.ID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestInMemoryStore_IsolatesCallers(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	conv, err := s.Create(ctx)
	require.NoError(t, err)
	conv.Append(core.NewUserMessage("Hello"))
	require.NoError(t, s.Save(ctx, conv))

	conv.Append(core.NewUserMessage("not saved"))

	loaded, err := s.Load(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, loaded.History, 1)

	loaded.History[0] = core.NewUserMessage("mutated")

	again, err := s.Load(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hello", again.History[0].Text())
}

func TestInMemoryStore_Errors(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	_, err := s.Load(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrConversationNotFound)

	assert.Error(t, s.Save(ctx, &core.Conversation{}))
	assert.Error(t, s.Save(ctx, nil))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()

	_, err = s.Create(cancelled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocker_SerialisesSameKey(t *testing.T) {
	l := NewLocker()

	var (
		inside  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)

	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()

			unlock, err := l.Lock(context.Background(), "conv-1")
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()

			n := inside.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(2 * time.Millisecond)
			inside.Add(-1)
		}()
	}

	wg.Wait()

	assert.EqualValues(t, 1, maxSeen.Load())
	assert.Equal(t, 0, l.Len())
}

func TestLocker_DifferentKeysDoNotBlock(t *testing.T) {
	l := NewLocker()

	unlockA, err := l.Lock(context.Background(), "a")
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	unlockB, err := l.Lock(ctx, "b")
	require.NoError(t, err)
	unlockB()
	unlockB()

	assert.Equal(t, 1, l.Len())
}

func TestLocker_HonoursContext(t *testing.T) {
	l := NewLocker()

	unlock, err := l.Lock(context.Background(), "conv")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = l.Lock(ctx, "conv")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	assert.Equal(t, 0, l.Len())
}
