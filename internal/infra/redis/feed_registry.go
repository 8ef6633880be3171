package redis

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"form-builder-service/internal/app"
	"form-builder-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const subscribeTimeout = 5 * time.Second

// FeedRegistry is a Redis-backed implementation of app.FeedRegistry.
// Feeds live in process and each one is subscribed to form:feed:{formID}, so
// a submission graded on any instance reaches every open dashboard.
type FeedRegistry struct {
	client *redis.Client
	log    *zap.Logger
	mu     sync.RWMutex
	feeds  map[string]*relayedFeed
}

type relayedFeed struct {
	feed *app.Feed
	// sub is nil when the Redis subscription could not be established; the
	// feed then only sees submissions graded locally.
	sub *redis.PubSub
}

func NewFeedRegistry(client *redis.Client, log *zap.Logger) *FeedRegistry {
	if log == nil {
		log = zap.NewNop()
	}
	return &FeedRegistry{
		client: client,
		log:    log,
		feeds:  make(map[string]*relayedFeed),
	}
}

func (r *FeedRegistry) GetOrCreate(formID string) *app.Feed {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.feeds[formID]; ok {
		return entry.feed
	}
	entry := &relayedFeed{feed: app.NewFeed(formID)}
	if sub, err := r.subscribe(formID); err != nil {
		r.log.Warn("feed subscription failed, serving local submissions only",
			zap.String("formId", formID), zap.Error(err))
	} else {
		entry.sub = sub
		go r.relay(entry.feed, sub)
	}
	r.feeds[formID] = entry
	return entry.feed
}

func (r *FeedRegistry) Get(formID string) (*app.Feed, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.feeds[formID]
	if !ok {
		return nil, false
	}
	return entry.feed, true
}

func (r *FeedRegistry) DeleteIfEmpty(formID string) {
	r.mu.Lock()
	entry, ok := r.feeds[formID]
	if !ok || !entry.feed.IsEmpty() {
		r.mu.Unlock()
		return
	}
	delete(r.feeds, formID)
	r.mu.Unlock()

	if entry.sub != nil {
		_ = entry.sub.Close()
	}
}

// Broadcast publishes event on the form's channel. Local feeds without a
// working subscription are served directly.
func (r *FeedRegistry) Broadcast(ctx context.Context, event domain.SubmissionEvent) {
	payload, err := json.Marshal(event)
	if err == nil {
		err = r.client.Publish(ctx, r.key(event.FormID), payload).Err()
	}
	if err != nil {
		r.log.Warn("feed broadcast failed", zap.String("formId", event.FormID), zap.Error(err))
	}

	r.mu.RLock()
	entry, ok := r.feeds[event.FormID]
	r.mu.RUnlock()
	if ok && (err != nil || entry.sub == nil) {
		entry.feed.Publish(event)
	}
}

// Close drops every subscription. Open feeds keep their local subscribers.
func (r *FeedRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range r.feeds {
		if entry.sub != nil {
			_ = entry.sub.Close()
			entry.sub = nil
		}
	}
	return nil
}

// subscribe waits for the subscription to be confirmed so no event published
// after GetOrCreate returns is missed.
func (r *FeedRegistry) subscribe(formID string) (*redis.PubSub, error) {
	ctx, cancel := context.WithTimeout(context.Background(), subscribeTimeout)
	defer cancel()
	sub := r.client.Subscribe(ctx, r.key(formID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}
	return sub, nil
}

func (r *FeedRegistry) relay(feed *app.Feed, sub *redis.PubSub) {
	for msg := range sub.Channel() {
		var event domain.SubmissionEvent
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			r.log.Warn("dropping malformed feed message", zap.String("channel", msg.Channel), zap.Error(err))
			continue
		}
		feed.Publish(event)
	}
}

func (r *FeedRegistry) key(formID string) string {
	return "form:feed:" + formID
}
