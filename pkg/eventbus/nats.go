package eventbus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

type natsConn interface {
	PublishMsg(msg *nats.Msg) error
	FlushWithContext(ctx context.Context) error
	IsConnected() bool
	Drain() error
}

// NATSPublisher publishes core NATS messages. Topics map to subjects; the
// partition key and attributes travel as headers.
type NATSPublisher struct {
	conn natsConn
}

// DialNATS connects to url with reconnects enabled.
func DialNATS(url string) (*NATSPublisher, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("nats url is required")
	}
	nc, err := nats.Connect(url,
		nats.Name("bank-outbox-publisher"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return NewNATSPublisher(nc), nil
}

func NewNATSPublisher(conn natsConn) *NATSPublisher {
	return &NATSPublisher{conn: conn}
}

func (p *NATSPublisher) Publish(ctx context.Context, msg Message) error {
	if err := validate(msg); err != nil {
		return err
	}
	out := nats.NewMsg(msg.Topic)
	out.Data = msg.Data
	if msg.Key != "" {
		out.Header.Set("key", msg.Key)
	}
	for k, v := range msg.Attributes {
		out.Header.Set(k, v)
	}
	if err := p.conn.PublishMsg(out); err != nil {
		return fmt.Errorf("nats publish %s: %w", msg.Topic, err)
	}
	// core NATS is fire-and-forget; flushing confirms the server received it
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}
	return nil
}

func (p *NATSPublisher) Ping(context.Context) error {
	if !p.conn.IsConnected() {
		return errors.New("nats not connected")
	}
	return nil
}

func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
