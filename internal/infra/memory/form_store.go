package memory

import (
	"context"
	"sort"
	"sync"

	"form-builder-service/internal/domain"
)

// FormStore is an in-memory implementation of app.FormRepository.
type FormStore struct {
	mu    sync.RWMutex
	forms map[string]domain.Form
}

func NewFormStore() *FormStore {
	return &FormStore{forms: make(map[string]domain.Form)}
}

func (s *FormStore) GetForm(_ context.Context, formID string) (domain.Form, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	form, ok := s.forms[formID]
	if !ok {
		return domain.Form{}, domain.ErrFormNotFound
	}
	return cloneForm(form), nil
}

func (s *FormStore) ListForms(_ context.Context) ([]domain.Form, error) {
	return s.list(func(domain.Form) bool { return true }), nil
}

func (s *FormStore) ListPublishedForms(_ context.Context) ([]domain.Form, error) {
	return s.list(func(f domain.Form) bool { return f.IsPublished }), nil
}

func (s *FormStore) CreateForm(_ context.Context, form *domain.Form) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forms[form.ID] = cloneForm(*form)
	return nil
}

func (s *FormStore) UpdateForm(_ context.Context, form *domain.Form) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.forms[form.ID]; !ok {
		return domain.ErrFormNotFound
	}
	s.forms[form.ID] = cloneForm(*form)
	return nil
}

func (s *FormStore) DeleteForm(_ context.Context, formID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.forms[formID]; !ok {
		return domain.ErrFormNotFound
	}
	delete(s.forms, formID)
	return nil
}

func (s *FormStore) list(keep func(domain.Form) bool) []domain.Form {
	s.mu.RLock()
	out := make([]domain.Form, 0, len(s.forms))
	for _, f := range s.forms {
		if keep(f) {
			out = append(out, cloneForm(f))
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// cloneForm deep-copies so callers cannot mutate stored state.
func cloneForm(f domain.Form) domain.Form {
	return f.Clone()
}
