package app

import (
	"testing"
	"time"

	"form-builder-service/internal/domain"
)

func TestFeedDropsOldestForSlowSubscriber(t *testing.T) {
	created := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	feed := NewFeedWithClock("form-1", func() time.Time { return created })
	ch, cancel := feed.Subscribe()
	defer cancel()

	for i := 0; i < 10; i++ {
		feed.Publish(domain.SubmissionEvent{TotalScore: i})
	}
	if feed.Delivered() != 10 {
		t.Fatalf("expected 10 delivered, got %d", feed.Delivered())
	}

	first := <-ch
	if first.TotalScore != 2 {
		t.Fatalf("expected two oldest events dropped, first score %d", first.TotalScore)
	}
	if !feed.CreatedAt().Equal(created) {
		t.Fatalf("unexpected created at %v", feed.CreatedAt())
	}
}

func TestFeedCancelIsIdempotent(t *testing.T) {
	feed := NewFeed("form-1")
	_, cancel := feed.Subscribe()
	if feed.IsEmpty() {
		t.Fatalf("expected subscriber")
	}
	cancel()
	cancel()
	if !feed.IsEmpty() {
		t.Fatalf("expected feed empty after cancel")
	}
	feed.Publish(domain.SubmissionEvent{})
}
