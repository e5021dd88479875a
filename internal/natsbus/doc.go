// Package natsbus wraps an embedded NATS server and a nats.go client used to
// publish run lifecycle events (events.run.<type>) and support escalation
// notifications (support.escalations).
package natsbus
