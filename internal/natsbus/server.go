package natsbus

import (
	"fmt"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"

	"github.com/hupe1980/agentproxy/internal/config"
)

// Bus is an embedded NATS server used when no external URL is configured.
type Bus struct {
	server *natsserver.Server
	cfg    config.NATSConfig
}

// New starts an embedded server on cfg.Port and waits until it accepts
// connections.
func New(cfg config.NATSConfig) (*Bus, error) {
	opts := &natsserver.Options{
		Port:   cfg.Port,
		NoLog:  true,
		NoSigs: true,
	}

	ns, err := natsserver.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create nats server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("nats server not ready")
	}

	return &Bus{
		server: ns,
		cfg:    cfg,
	}, nil
}

// ClientURL is the URL clients use to reach the embedded server.
func (b *Bus) ClientURL() string {
	return b.server.ClientURL()
}

// Close shuts the server down and waits for it to stop.
func (b *Bus) Close() {
	b.server.Shutdown()
	b.server.WaitForShutdown()
}
