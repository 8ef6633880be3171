package memory

import (
	"context"
	"sort"
	"sync"

	"form-builder-service/internal/app"
	"form-builder-service/internal/domain"
)

// ResponseStore is an in-memory implementation of app.ResponseRepository.
type ResponseStore struct {
	mu        sync.RWMutex
	responses map[string]domain.Response
	// order keeps insertion order per form.
	order map[string][]string
}

func NewResponseStore() *ResponseStore {
	return &ResponseStore{
		responses: make(map[string]domain.Response),
		order:     make(map[string][]string),
	}
}

func (s *ResponseStore) CreateResponse(_ context.Context, resp *domain.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[resp.ID] = cloneResponse(*resp)
	s.order[resp.FormID] = append(s.order[resp.FormID], resp.ID)
	return nil
}

func (s *ResponseStore) GetResponse(_ context.Context, responseID string) (domain.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	resp, ok := s.responses[responseID]
	if !ok {
		return domain.Response{}, domain.ErrResponseNotFound
	}
	return cloneResponse(resp), nil
}

func (s *ResponseStore) DeleteResponse(_ context.Context, responseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	resp, ok := s.responses[responseID]
	if !ok {
		return domain.ErrResponseNotFound
	}
	delete(s.responses, responseID)
	ids := s.order[resp.FormID]
	for i, id := range ids {
		if id == responseID {
			s.order[resp.FormID] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(s.order[resp.FormID]) == 0 {
		delete(s.order, resp.FormID)
	}
	return nil
}

func (s *ResponseStore) ListResponses(ctx context.Context, formID string, q app.ResponseQuery) ([]domain.Response, error) {
	all, _ := s.AllResponses(ctx, formID)
	less := sortKey(q.SortBy)
	sort.SliceStable(all, func(i, j int) bool {
		if q.Descending {
			return less(all[j], all[i])
		}
		return less(all[i], all[j])
	})

	if q.Offset >= len(all) {
		return []domain.Response{}, nil
	}
	end := len(all)
	if q.Limit > 0 && q.Offset+q.Limit < end {
		end = q.Offset + q.Limit
	}
	return all[q.Offset:end], nil
}

func (s *ResponseStore) CountResponses(_ context.Context, formID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order[formID]), nil
}

func (s *ResponseStore) AllResponses(_ context.Context, formID string) ([]domain.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.order[formID]
	out := make([]domain.Response, 0, len(ids))
	for _, id := range ids {
		out = append(out, cloneResponse(s.responses[id]))
	}
	return out, nil
}

func sortKey(key string) func(a, b domain.Response) bool {
	switch key {
	case app.SortTotalScore:
		return func(a, b domain.Response) bool { return a.TotalScore < b.TotalScore }
	case app.SortMaxTotalScore:
		return func(a, b domain.Response) bool { return a.MaxTotalScore < b.MaxTotalScore }
	case app.SortOverallPercentage:
		return func(a, b domain.Response) bool { return a.OverallPercentage < b.OverallPercentage }
	case app.SortCreatedAt:
		return func(a, b domain.Response) bool { return a.CreatedAt.Before(b.CreatedAt) }
	default:
		return func(a, b domain.Response) bool { return a.SubmittedAt.Before(b.SubmittedAt) }
	}
}

func cloneResponse(r domain.Response) domain.Response {
	r.Responses = append([]domain.QuestionResult(nil), r.Responses...)
	return r
}
