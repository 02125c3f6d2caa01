package eventbus

import (
	"context"
	"fmt"
	"sync"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

type topicSource interface {
	Publisher(name string) *gcppubsub.Publisher
	Ping(ctx context.Context) error
	Close() error
}

// PubSubPublisher publishes to Google Cloud Pub/Sub and waits for the server ack.
type PubSubPublisher struct {
	source topicSource

	mu         sync.Mutex
	publishers map[string]*gcppubsub.Publisher
}

func NewPubSubPublisher(source topicSource) *PubSubPublisher {
	return &PubSubPublisher{source: source, publishers: map[string]*gcppubsub.Publisher{}}
}

func (p *PubSubPublisher) Publish(ctx context.Context, msg Message) error {
	if err := validate(msg); err != nil {
		return err
	}
	pub := p.publisher(msg.Topic)
	if pub == nil {
		return fmt.Errorf("%w: pubsub topic %s", ErrUnroutable, msg.Topic)
	}
	result := pub.Publish(ctx, &gcppubsub.Message{
		Data:       msg.Data,
		Attributes: msg.Attributes,
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("pubsub publish %s: %w", msg.Topic, err)
	}
	return nil
}

func (p *PubSubPublisher) publisher(topic string) *gcppubsub.Publisher {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pub, ok := p.publishers[topic]; ok {
		return pub
	}
	pub := p.source.Publisher(topic)
	if pub != nil {
		p.publishers[topic] = pub
	}
	return pub
}

func (p *PubSubPublisher) Ping(ctx context.Context) error {
	return p.source.Ping(ctx)
}

// Close flushes pending publishes before releasing the client.
func (p *PubSubPublisher) Close() error {
	p.mu.Lock()
	for _, pub := range p.publishers {
		pub.Stop()
	}
	p.publishers = map[string]*gcppubsub.Publisher{}
	p.mu.Unlock()
	return p.source.Close()
}
