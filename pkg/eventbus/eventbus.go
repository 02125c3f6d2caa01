// Package eventbus delivers outbox messages to the configured broker. Each
// adapter accepts the same Message and reports delivery synchronously.
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/void1100/Bank-management-system/pkg/config"
	"github.com/void1100/Bank-management-system/pkg/logger"
	"github.com/void1100/Bank-management-system/pkg/pubsub"
)

// ErrUnroutable means the broker has no destination for the message topic.
// Retrying will not help.
var ErrUnroutable = errors.New("eventbus: topic not routable")

// Message is a broker-neutral outbox delivery.
type Message struct {
	Topic      string
	Key        string
	Data       []byte
	Attributes map[string]string
}

// Publisher delivers messages and reports broker health.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Ping(ctx context.Context) error
	Close() error
}

// New builds the publisher selected by cfg.Eventing.Broker. topics lists every
// destination the caller will publish to.
func New(ctx context.Context, cfg *config.Config, topics []string, logg *logger.Logger) (Publisher, error) {
	broker := strings.ToLower(strings.TrimSpace(cfg.Eventing.Broker))
	switch broker {
	case config.BrokerLog:
		return NewLogPublisher(logg), nil
	case config.BrokerPubSub:
		client, err := pubsub.NewClient(ctx, cfg.GCP, topics, logg)
		if err != nil {
			return nil, err
		}
		return NewPubSubPublisher(client), nil
	case config.BrokerNATS:
		return DialNATS(cfg.Eventing.NATSURL)
	case config.BrokerKafka:
		return NewKafkaPublisher(cfg.Eventing.KafkaBrokers), nil
	}
	return nil, fmt.Errorf("unsupported broker %q", cfg.Eventing.Broker)
}

func validate(msg Message) error {
	if strings.TrimSpace(msg.Topic) == "" {
		return fmt.Errorf("%w: empty topic", ErrUnroutable)
	}
	return nil
}
