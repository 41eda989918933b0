// Package natsbus mirrors relay events onto NATS subjects for out-of-process consumers
package natsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/mcoot/islandrelay/internal/protocol"
)

// DefaultSubjectPrefix is prepended to the event name to form the subject
const DefaultSubjectPrefix = "presence.events"

// Conn is the part of *nats.Conn the publisher needs
type Conn interface {
	Publish(subject string, data []byte) error
}

// Message is the body published for each outbound event
type Message struct {
	Target string          `json:"target"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Connect dials NATS with reconnects enabled
func Connect(url, name string) (*nats.Conn, error) {
	conn, err := nats.Connect(
		url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.PingInterval(20*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats at %s: %w", url, err)
	}
	return conn, nil
}

// Publisher publishes every delivered batch, one message per event
type Publisher struct {
	conn   Conn
	prefix string
	logger *slog.Logger
}

// NewPublisher creates a Publisher; an empty prefix uses DefaultSubjectPrefix
func NewPublisher(conn Conn, prefix string, logger *slog.Logger) *Publisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &Publisher{
		conn:   conn,
		prefix: prefix,
		logger: logger.With(slog.String("component", "natsbus")),
	}
}

// Subject returns the subject an event is published on
func (p *Publisher) Subject(event string) string {
	return p.prefix + "." + event
}

// Deliver publishes each event in the batch; failures are logged and skipped
// nats.Conn buffers publishes, so this does not wait on the network
func (p *Publisher) Deliver(ctx context.Context, batch protocol.Batch) {
	for _, out := range batch {
		body, err := encode(out)
		if err != nil {
			p.logger.Error("nats message encode failed",
				slog.String("event", out.Event),
				slog.String("error", err.Error()))
			continue
		}

		subject := p.Subject(out.Event)
		if err := p.conn.Publish(subject, body); err != nil {
			p.logger.Warn("nats publish failed",
				slog.String("subject", subject),
				slog.String("error", err.Error()))
		}
	}
}

func encode(out protocol.Outbound) ([]byte, error) {
	msg := Message{
		Target: out.Target.String(),
		Event:  out.Event,
	}
	if out.Payload != nil {
		data, err := json.Marshal(out.Payload)
		if err != nil {
			return nil, err
		}
		msg.Data = data
	}
	return json.Marshal(msg)
}
