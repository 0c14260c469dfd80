package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// Publisher is the part of *nats.Conn the forwarder needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSForwarder republishes every bus event as JSON on
// "<prefix>.<event type>".
type NATSForwarder struct {
	publisher Publisher
	prefix    string
}

func NewNATSForwarder(publisher Publisher, prefix string) *NATSForwarder {
	if prefix == "" {
		prefix = "accounts.events"
	}
	return &NATSForwarder{publisher: publisher, prefix: prefix}
}

func (f *NATSForwarder) Subject(t Type) string {
	return f.prefix + "." + string(t)
}

// Run forwards events until ctx is done or the subscription closes.
func (f *NATSForwarder) Run(ctx context.Context, bus Bus) {
	events, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := f.Forward(e); err != nil {
				slog.Warn("event forward failed", "type", e.Type, "error", err)
			}
		}
	}
}

func (f *NATSForwarder) Forward(e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := f.publisher.Publish(f.Subject(e.Type), data); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// ConnectNATS dials the server with a client name and bounded reconnects.
func ConnectNATS(url string, name string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(10),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return conn, nil
}
