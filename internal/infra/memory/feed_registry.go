package memory

import (
	"context"
	"sync"

	"form-builder-service/internal/app"
	"form-builder-service/internal/domain"
)

// FeedRegistry is an in-memory implementation of app.FeedRegistry.
type FeedRegistry struct {
	mu    sync.RWMutex
	feeds map[string]*app.Feed
}

func NewFeedRegistry() *FeedRegistry {
	return &FeedRegistry{
		feeds: make(map[string]*app.Feed),
	}
}

func (r *FeedRegistry) GetOrCreate(formID string) *app.Feed {
	r.mu.Lock()
	defer r.mu.Unlock()
	if feed, ok := r.feeds[formID]; ok {
		return feed
	}
	feed := app.NewFeed(formID)
	r.feeds[formID] = feed
	return feed
}

func (r *FeedRegistry) Get(formID string) (*app.Feed, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	feed, ok := r.feeds[formID]
	return feed, ok
}

func (r *FeedRegistry) DeleteIfEmpty(formID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	feed, ok := r.feeds[formID]
	if !ok {
		return
	}
	if feed.IsEmpty() {
		delete(r.feeds, formID)
	}
}

// Broadcast publishes on the local feed of the form, if one is open.
func (r *FeedRegistry) Broadcast(_ context.Context, event domain.SubmissionEvent) {
	if feed, ok := r.Get(event.FormID); ok {
		feed.Publish(event)
	}
}

// Len returns the number of open feeds.
func (r *FeedRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.feeds)
}
