package app

import (
	"context"
	"sync"
	"time"

	"form-builder-service/internal/domain"
)

// FeedRegistry abstracts where per-form submission feeds live (in-memory, Redis, etc).
// Broadcast delivers an event to every feed of the form the registry can reach.
type FeedRegistry interface {
	GetOrCreate(formID string) *Feed
	Get(formID string) (*Feed, bool)
	DeleteIfEmpty(formID string)
	Broadcast(ctx context.Context, event domain.SubmissionEvent)
}

// Feed fans out graded submissions of one form to its subscribers.
type Feed struct {
	formID      string
	createdAt   time.Time
	mu          sync.RWMutex
	subscribers map[chan domain.SubmissionEvent]struct{}
	delivered   int
}

// NewFeed is exported for infrastructure layers that keep feeds in a registry.
func NewFeed(formID string) *Feed {
	return newFeedWithClock(formID, time.Now)
}

// NewFeedWithClock is test-only for deterministic timestamps.
func NewFeedWithClock(formID string, now func() time.Time) *Feed {
	return newFeedWithClock(formID, now)
}

func newFeedWithClock(formID string, now func() time.Time) *Feed {
	return &Feed{
		formID:      formID,
		createdAt:   now(),
		subscribers: make(map[chan domain.SubmissionEvent]struct{}),
	}
}

// FormID returns the form this feed belongs to.
func (f *Feed) FormID() string {
	return f.formID
}

// CreatedAt returns when the feed was opened.
func (f *Feed) CreatedAt() time.Time {
	return f.createdAt
}

// IsEmpty reports whether the feed has no subscribers.
func (f *Feed) IsEmpty() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subscribers) == 0
}

// Delivered returns how many events have been published on the feed.
func (f *Feed) Delivered() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.delivered
}

// Subscribe registers a buffered subscriber; the returned cancel is idempotent.
func (f *Feed) Subscribe() (<-chan domain.SubmissionEvent, func()) {
	ch := make(chan domain.SubmissionEvent, 8)

	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subscribers[ch]; ok {
			delete(f.subscribers, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

// Publish hands event to the current subscribers.
func (f *Feed) Publish(event domain.SubmissionEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.delivered++
	for ch := range f.subscribers {
		select {
		case ch <- event:
		default:
			// Slow subscriber: drop its oldest pending event to make room.
			select {
			case <-ch:
			default:
			}
			ch <- event
		}
	}
}
