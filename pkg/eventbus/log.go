package eventbus

import (
	"context"

	"github.com/void1100/Bank-management-system/pkg/logger"
)

// LogPublisher writes messages to the structured log. Used in dev and when no
// broker is provisioned.
type LogPublisher struct {
	logg *logger.Logger
}

func NewLogPublisher(logg *logger.Logger) *LogPublisher {
	return &LogPublisher{logg: logg}
}

func (p *LogPublisher) Publish(ctx context.Context, msg Message) error {
	if err := validate(msg); err != nil {
		return err
	}
	if p.logg == nil {
		return nil
	}
	fields := map[string]any{
		"topic":   msg.Topic,
		"key":     msg.Key,
		"payload": string(msg.Data),
	}
	for k, v := range msg.Attributes {
		fields["attr_"+k] = v
	}
	p.logg.Info(p.logg.WithFields(ctx, fields), "event published")
	return nil
}

func (p *LogPublisher) Ping(context.Context) error { return nil }

func (p *LogPublisher) Close() error { return nil }
