package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/snapurl/snapurl/internal/app/model"
	"github.com/snapurl/snapurl/internal/app/repository"
	infraPrometheus "github.com/snapurl/snapurl/internal/infra/prometheus"
	"go.uber.org/zap"
)

// ClickContext carries the request attributes of one redirect traversal.
type ClickContext struct {
	Referrer string
	IP       string
}

// ClickRecorder appends click events to a link's history. The append
// and the counter increment happen in one storage transaction, so
// concurrent recordings on the same code never lose updates.
type ClickRecorder struct {
	clicks    repository.ClickEventRepository
	publisher *ClickPublisher
	logger    *zap.Logger
}

// NewClickRecorder creates a recorder. The publisher may be nil, in
// which case events are only persisted.
func NewClickRecorder(clicks repository.ClickEventRepository, publisher *ClickPublisher, logger *zap.Logger) *ClickRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClickRecorder{clicks: clicks, publisher: publisher, logger: logger}
}

// Record persists one click against the code and reports it to the
// event pipeline. Publishing is fire-and-forget and never fails the
// redirect.
func (r *ClickRecorder) Record(ctx context.Context, code string, click ClickContext, at time.Time) (*model.ClickEvent, error) {
	event := &model.ClickEvent{
		ID:        uuid.New().String(),
		LinkCode:  code,
		Timestamp: at,
		Referrer:  click.Referrer,
		IP:        click.IP,
		Location:  LocationFromIP(click.IP),
	}

	if err := r.clicks.Append(ctx, event); err != nil {
		return nil, err
	}
	infraPrometheus.ClicksRecorded.Inc()

	if r.publisher != nil {
		go r.publish(event)
	}
	return event, nil
}

// History returns every click recorded against the code, oldest first.
func (r *ClickRecorder) History(ctx context.Context, code string) ([]model.ClickEvent, error) {
	return r.clicks.ListByCode(ctx, code)
}

func (r *ClickRecorder) publish(event *model.ClickEvent) {
	if err := r.publisher.Publish(event); err != nil {
		r.logger.Error("failed to publish click event",
			zap.String("id", event.ID),
			zap.String("link_code", event.LinkCode),
			zap.Error(err))
	}
}
