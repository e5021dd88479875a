package natsbus

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentproxy/internal/config"
	"github.com/hupe1980/agentproxy/runner"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	bus, err := New(config.NATSConfig{Port: natsserver.RANDOM_PORT})
	require.NoError(t, err)
	t.Cleanup(bus.Close)

	require.NotEmpty(t, bus.ClientURL())

	client, err := NewClient(bus)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return client
}

func receive(t *testing.T, ch <-chan *nats.Msg) *nats.Msg {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
		return nil
	}
}

func TestPubSub(t *testing.T) {
	client := newTestClient(t)

	received := make(chan *nats.Msg, 1)
	_, err := client.Subscribe("test.topic", func(msg *nats.Msg) { received <- msg })
	require.NoError(t, err)

	require.NoError(t, client.Publish("test.topic", []byte("hello")))
	require.NoError(t, client.Flush())

	assert.Equal(t, "hello", string(receive(t, received).Data))
}

func TestPublishEvent(t *testing.T) {
	client := newTestClient(t)

	received := make(chan *nats.Msg, 4)
	_, err := client.Subscribe(TopicEventsRun, func(msg *nats.Msg) { received <- msg })
	require.NoError(t, err)
	require.NoError(t, client.Flush())

	sink := client.EventSink()
	err = sink.Publish(context.Background(), runner.Event{
		Type:           runner.EventRunCompleted,
		RunID:          "run-1",
		ConversationID: "conv-1",
		Agent:          "Triage Agent",
		Time:           time.Now().UTC(),
		Data:           map[string]any{"round_trips": 2},
	})
	require.NoError(t, err)
	require.NoError(t, client.Flush())

	msg := receive(t, received)
	assert.Equal(t, "events.run.run.completed", msg.Subject)

	var ev runner.Event
	require.NoError(t, json.Unmarshal(msg.Data, &ev))
	assert.Equal(t, runner.EventRunCompleted, ev.Type)
	assert.Equal(t, "run-1", ev.RunID)
	assert.Equal(t, "Triage Agent", ev.Agent)
	assert.EqualValues(t, 2, ev.Data["round_trips"])
}

func TestNotifyEscalation(t *testing.T) {
	client := newTestClient(t)

	received := make(chan *nats.Msg, 1)
	_, err := client.Subscribe(TopicSupportEscalations, func(msg *nats.Msg) { received <- msg })
	require.NoError(t, err)
	require.NoError(t, client.Flush())

	require.NoError(t, client.NotifyEscalation(context.Background(), Escalation{
		RunID:  "run-1",
		From:   "Triage Agent",
		To:     "Escalation Control Agent",
		Reason: "Customer is furious about a refund",
		Time:   time.Now().UTC(),
	}))
	require.NoError(t, client.Flush())

	var e Escalation
	require.NoError(t, json.Unmarshal(receive(t, received).Data, &e))
	assert.Equal(t, "Customer is furious about a refund", e.Reason)
	assert.Equal(t, "Escalation Control Agent", e.To)
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "events.run.handoff", TopicRunEvent(string(runner.EventHandoff)))
}

func TestNewClientFromURLFailsWithoutServer(t *testing.T) {
	_, err := NewClientFromURL("nats://127.0.0.1:1")
	assert.ErrorContains(t, err, "connect to nats")
}
