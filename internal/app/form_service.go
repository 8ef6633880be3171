package app

import (
	"context"

	"form-builder-service/internal/domain"
	"go.uber.org/zap"
)

// FormReader loads a single form definition.
type FormReader interface {
	GetForm(ctx context.Context, formID string) (domain.Form, error)
}

// FormRepository abstracts how forms are stored (in-memory, Postgres, MongoDB).
// Missing forms are reported as domain.ErrFormNotFound.
type FormRepository interface {
	FormReader
	// ListForms returns every form, most recently updated first.
	ListForms(ctx context.Context) ([]domain.Form, error)
	// ListPublishedForms returns published forms, most recently updated first.
	ListPublishedForms(ctx context.Context) ([]domain.Form, error)
	CreateForm(ctx context.Context, form *domain.Form) error
	UpdateForm(ctx context.Context, form *domain.Form) error
	DeleteForm(ctx context.Context, formID string) error
}

// FormService contains the form builder use cases.
type FormService struct {
	forms FormRepository
	opts  options
}

func NewFormService(forms FormRepository, opts ...Option) *FormService {
	return &FormService{forms: forms, opts: buildOptions(opts)}
}

func (s *FormService) List(ctx context.Context) ([]domain.Form, error) {
	return s.forms.ListForms(ctx)
}

func (s *FormService) ListPublished(ctx context.Context) ([]domain.FormSummary, error) {
	forms, err := s.forms.ListPublishedForms(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.FormSummary, 0, len(forms))
	for _, f := range forms {
		out = append(out, f.Summary())
	}
	return out, nil
}

func (s *FormService) Get(ctx context.Context, formID string) (domain.Form, error) {
	formID = domain.NormalizeID(formID)
	if !domain.IsValidID(formID) {
		return domain.Form{}, domain.ErrInvalidFormID
	}
	return s.forms.GetForm(ctx, formID)
}

// RespondentView returns a published form with its answer keys removed.
func (s *FormService) RespondentView(ctx context.Context, formID string) (domain.Form, error) {
	formID = domain.NormalizeID(formID)
	if !domain.IsValidID(formID) {
		return domain.Form{}, domain.ErrInvalidFormID
	}
	reader := FormReader(s.forms)
	if s.opts.cache != nil {
		reader = s.opts.cache
	}
	form, err := reader.GetForm(ctx, formID)
	if err != nil {
		return domain.Form{}, err
	}
	if !form.IsPublished {
		return domain.Form{}, domain.ErrFormNotPublished
	}
	return form.WithoutAnswerKeys(), nil
}

func (s *FormService) Create(ctx context.Context, in FormInput) (domain.Form, error) {
	questions, err := ValidateForm(in)
	if err != nil {
		return domain.Form{}, err
	}
	now := s.opts.clock()
	form := domain.Form{
		ID:          domain.NewID(),
		Title:       deref(in.Title),
		Description: deref(in.Description),
		HeaderImage: deref(in.HeaderImage),
		Questions:   questions,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.forms.CreateForm(ctx, &form); err != nil {
		return domain.Form{}, err
	}
	s.opts.logger.Info("form created", zap.String("formId", form.ID), zap.Int("questions", len(form.Questions)))
	s.opts.publish(ctx, EventFormCreated, form.Summary())
	return form, nil
}

// Update replaces the title, description, header image and questions of a form.
func (s *FormService) Update(ctx context.Context, formID string, in FormInput) (domain.Form, error) {
	formID = domain.NormalizeID(formID)
	if !domain.IsValidID(formID) {
		return domain.Form{}, domain.ErrInvalidFormID
	}
	questions, err := ValidateForm(in)
	if err != nil {
		return domain.Form{}, err
	}
	form, err := s.forms.GetForm(ctx, formID)
	if err != nil {
		return domain.Form{}, err
	}
	form.Title = deref(in.Title)
	form.Description = deref(in.Description)
	form.HeaderImage = deref(in.HeaderImage)
	form.Questions = questions
	form.UpdatedAt = s.opts.clock()

	if err := s.forms.UpdateForm(ctx, &form); err != nil {
		return domain.Form{}, err
	}
	s.opts.invalidate(ctx, formID)
	s.opts.publish(ctx, EventFormUpdated, form.Summary())
	return form, nil
}

func (s *FormService) Delete(ctx context.Context, formID string) error {
	formID = domain.NormalizeID(formID)
	if !domain.IsValidID(formID) {
		return domain.ErrInvalidFormID
	}
	if err := s.forms.DeleteForm(ctx, formID); err != nil {
		return err
	}
	s.opts.invalidate(ctx, formID)
	s.opts.logger.Info("form deleted", zap.String("formId", formID))
	s.opts.publish(ctx, EventFormDeleted, map[string]string{"id": formID})
	return nil
}

// TogglePublish flips the publish flag. Publishing requires a title and at
// least one question; unpublishing is always allowed.
func (s *FormService) TogglePublish(ctx context.Context, formID string) (domain.Form, error) {
	formID = domain.NormalizeID(formID)
	if !domain.IsValidID(formID) {
		return domain.Form{}, domain.ErrInvalidFormID
	}
	form, err := s.forms.GetForm(ctx, formID)
	if err != nil {
		return domain.Form{}, err
	}
	if !form.IsPublished && !form.Publishable() {
		return domain.Form{}, domain.ErrPublishIncomplete
	}
	form.IsPublished = !form.IsPublished
	form.UpdatedAt = s.opts.clock()

	if err := s.forms.UpdateForm(ctx, &form); err != nil {
		return domain.Form{}, err
	}
	s.opts.invalidate(ctx, formID)

	eventType := EventFormUnpublished
	if form.IsPublished {
		eventType = EventFormPublished
	}
	s.opts.logger.Info("form publish toggled", zap.String("formId", formID), zap.Bool("published", form.IsPublished))
	s.opts.publish(ctx, eventType, form.Summary())
	return form, nil
}
