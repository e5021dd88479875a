package natsbus

import "fmt"

// Topic patterns for NATS pub/sub communication.

// TopicRunEvent is the subject a run lifecycle event of eventType is published on.
func TopicRunEvent(eventType string) string {
	return fmt.Sprintf("events.run.%s", eventType)
}

const (
	TopicEventsAll          = "events.>"
	TopicEventsRun          = "events.run.>"
	TopicSupportEscalations = "support.escalations"
)
