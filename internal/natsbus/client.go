package natsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/hupe1980/agentproxy/runner"
)

// Client is a NATS connection used to publish run events and escalations.
type Client struct {
	conn *nats.Conn
}

// NewClient connects to the embedded bus.
func NewClient(bus *Bus) (*Client, error) {
	return NewClientFromURL(bus.ClientURL())
}

// NewClientFromURL connects to an external NATS server.
func NewClientFromURL(url string) (*Client, error) {
	conn, err := nats.Connect(url, nats.Name("agentproxy"))
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Publish sends raw data on topic.
func (c *Client) Publish(topic string, data []byte) error {
	return c.conn.Publish(topic, data)
}

// PublishJSON sends v encoded as JSON on topic.
func (c *Client) PublishJSON(topic string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return c.conn.Publish(topic, data)
}

// Subscribe registers handler for messages on topic.
func (c *Client) Subscribe(topic string, handler func(msg *nats.Msg)) (*nats.Subscription, error) {
	return c.conn.Subscribe(topic, handler)
}

// Flush waits until the server has processed all buffered messages.
func (c *Client) Flush() error {
	return c.conn.Flush()
}

// Close closes the connection.
func (c *Client) Close() {
	c.conn.Close()
}

// PublishEvent implements runner.EventSink by publishing ev on
// events.run.<type>.
func (c *Client) PublishEvent(_ context.Context, ev runner.Event) error {
	if err := c.PublishJSON(TopicRunEvent(string(ev.Type)), ev); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

// Escalation is published when a customer is handed to the escalation agent.
type Escalation struct {
	ConversationID string    `json:"conversation_id,omitempty"`
	RunID          string    `json:"run_id"`
	From           string    `json:"from"`
	To             string    `json:"to"`
	Reason         string    `json:"reason"`
	Time           time.Time `json:"time"`
}

// NotifyEscalation publishes e on support.escalations.
func (c *Client) NotifyEscalation(_ context.Context, e Escalation) error {
	if err := c.PublishJSON(TopicSupportEscalations, e); err != nil {
		return fmt.Errorf("publish escalation: %w", err)
	}
	return nil
}

// EventSink adapts the client to runner.EventSink.
func (c *Client) EventSink() runner.EventSink {
	return runner.EventSinkFunc(c.PublishEvent)
}
