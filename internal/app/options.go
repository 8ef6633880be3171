package app

import (
	"context"
	"time"

	"form-builder-service/internal/domain"
	"go.uber.org/zap"
)

// Event types published on the event bus.
const (
	EventFormCreated       = "form.created"
	EventFormUpdated       = "form.updated"
	EventFormDeleted       = "form.deleted"
	EventFormPublished     = "form.published"
	EventFormUnpublished   = "form.unpublished"
	EventResponseSubmitted = "response.submitted"
	EventResponseDeleted   = "response.deleted"
)

// Event is a domain notification. Type doubles as the routing key.
type Event struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload"`
}

// EventPublisher delivers domain events. Delivery is best effort: failures are
// logged by the services and never fail the request.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// FormCache is a read-through cache of form definitions.
type FormCache interface {
	FormReader
	Invalidate(ctx context.Context, formID string) error
}

// SubmissionRecorder observes graded submissions (metrics).
type SubmissionRecorder interface {
	ObserveSubmission(resp domain.Response)
}

// Option configures the optional collaborators of the services.
type Option func(*options)

type options struct {
	cache    FormCache
	events   EventPublisher
	feeds    FeedRegistry
	recorder SubmissionRecorder
	logger   *zap.Logger
	clock    func() time.Time
}

func WithFormCache(cache FormCache) Option {
	return func(o *options) { o.cache = cache }
}

func WithEventPublisher(p EventPublisher) Option {
	return func(o *options) { o.events = p }
}

func WithFeeds(r FeedRegistry) Option {
	return func(o *options) { o.feeds = r }
}

func WithRecorder(r SubmissionRecorder) Option {
	return func(o *options) { o.recorder = r }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.clock = now }
}

func buildOptions(opts []Option) options {
	o := options{
		logger: zap.NewNop(),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) publish(ctx context.Context, eventType string, payload any) {
	if o.events == nil {
		return
	}
	event := Event{Type: eventType, OccurredAt: o.clock(), Payload: payload}
	if err := o.events.Publish(ctx, event); err != nil {
		o.logger.Warn("event publish failed", zap.String("type", eventType), zap.Error(err))
	}
}

func (o options) invalidate(ctx context.Context, formID string) {
	if o.cache == nil {
		return
	}
	if err := o.cache.Invalidate(ctx, formID); err != nil {
		o.logger.Warn("form cache invalidation failed", zap.String("formId", formID), zap.Error(err))
	}
}
