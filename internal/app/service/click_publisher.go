package service

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/snapurl/snapurl/internal/app/model"
)

// ClickPublisher publishes recorded click events to NATS JetStream for
// downstream consumers. The store append is the source of truth for
// counts; the stream is a side channel.
type ClickPublisher struct {
	js nats.JetStreamContext
}

// NewClickPublisher creates a new click event publisher.
func NewClickPublisher(js nats.JetStreamContext) *ClickPublisher {
	return &ClickPublisher{js: js}
}

// Publish puts an already-persisted click event on the stream.
func (p *ClickPublisher) Publish(event *model.ClickEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	_, err = p.js.Publish(model.ClickStreamSubject, data)
	return err
}
