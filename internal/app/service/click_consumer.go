package service

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/snapurl/snapurl/internal/app/model"
	infraPrometheus "github.com/snapurl/snapurl/internal/infra/prometheus"
	"go.uber.org/zap"
)

// ClickConsumer drains click events from NATS JetStream and feeds the
// click metrics. The events are already persisted by the recorder;
// this side of the pipeline exists for downstream observability.
type ClickConsumer struct {
	js           nats.JetStreamContext
	logger       *zap.Logger
	fetchBackoff time.Duration
}

// messageFetcher is the pull side of a subscription, satisfied by
// *nats.Subscription.
type messageFetcher interface {
	Fetch(batch int, opts ...nats.PullOpt) ([]*nats.Msg, error)
}

// NewClickConsumer creates a new click event consumer.
func NewClickConsumer(js nats.JetStreamContext, logger *zap.Logger) *ClickConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClickConsumer{
		js:           js,
		logger:       logger,
		fetchBackoff: time.Second,
	}
}

// Start ensures the stream and durable consumer exist, then begins
// consuming in the background.
func (c *ClickConsumer) Start() error {
	_, err := c.js.StreamInfo(model.ClickStreamName)
	if err != nil {
		_, err = c.js.AddStream(&nats.StreamConfig{
			Name:     model.ClickStreamName,
			Subjects: []string{model.ClickStreamSubject},
			MaxBytes: model.ClickStreamMaxBytes,
		})
		if err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
	}

	_, err = c.js.ConsumerInfo(model.ClickStreamName, model.ClickConsumerName)
	if err != nil {
		_, err = c.js.AddConsumer(model.ClickStreamName, &nats.ConsumerConfig{
			Durable:   model.ClickConsumerName,
			AckPolicy: nats.AckExplicitPolicy,
		})
		if err != nil {
			return fmt.Errorf("failed to create consumer: %w", err)
		}
	}

	sub, err := c.js.PullSubscribe(model.ClickStreamSubject, model.ClickConsumerName)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	go c.consume(sub)
	return nil
}

func (c *ClickConsumer) consume(sub messageFetcher) {
	for {
		msgs, err := sub.Fetch(10, nats.MaxWait(5*time.Second))
		if err != nil && err != nats.ErrTimeout {
			c.logger.Error("failed to fetch messages", zap.Error(err))
			// Back off so a dead connection does not spin the loop.
			time.Sleep(c.fetchBackoff)
			continue
		}

		for _, msg := range msgs {
			var event model.ClickEvent
			if err := json.Unmarshal(msg.Data, &event); err != nil {
				c.logger.Error("failed to unmarshal click event", zap.Error(err))
				msg.Nak()
				continue
			}

			infraPrometheus.ClickEventsConsumed.Inc()
			c.logger.Debug("click event consumed",
				zap.String("id", event.ID),
				zap.String("link_code", event.LinkCode),
				zap.String("location", event.Location),
				zap.Time("timestamp", event.Timestamp),
			)

			msg.Ack()
		}
	}
}
