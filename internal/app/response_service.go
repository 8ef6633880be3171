package app

import (
	"context"
	"errors"
	"math"

	"form-builder-service/internal/domain"
	"go.uber.org/zap"
)

// Sort keys accepted when listing responses.
const (
	SortSubmittedAt       = "submittedAt"
	SortTotalScore        = "totalScore"
	SortMaxTotalScore     = "maxTotalScore"
	SortOverallPercentage = "overallPercentage"
	SortCreatedAt         = "createdAt"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
)

// ResponseQuery selects one page of a form's responses.
type ResponseQuery struct {
	SortBy     string
	Descending bool
	Offset     int
	Limit      int
}

// ResponseRepository abstracts how graded responses are stored. Missing
// responses are reported as domain.ErrResponseNotFound.
type ResponseRepository interface {
	CreateResponse(ctx context.Context, resp *domain.Response) error
	GetResponse(ctx context.Context, responseID string) (domain.Response, error)
	DeleteResponse(ctx context.Context, responseID string) error
	ListResponses(ctx context.Context, formID string, q ResponseQuery) ([]domain.Response, error)
	CountResponses(ctx context.Context, formID string) (int, error)
	// AllResponses returns every response of a form in storage order.
	AllResponses(ctx context.Context, formID string) ([]domain.Response, error)
}

// PageRequest carries the raw paging parameters of a listing request.
type PageRequest struct {
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
}

// Pagination describes the page returned by ListByForm.
type Pagination struct {
	CurrentPage    int  `json:"currentPage"`
	TotalPages     int  `json:"totalPages"`
	TotalResponses int  `json:"totalResponses"`
	HasNextPage    bool `json:"hasNextPage"`
	HasPrevPage    bool `json:"hasPrevPage"`
}

// ResponseService contains the submission and reporting use cases.
type ResponseService struct {
	forms     FormReader
	responses ResponseRepository
	opts      options
}

// NewResponseService wires the service. forms is used directly unless a form
// cache option is supplied.
func NewResponseService(forms FormReader, responses ResponseRepository, opts ...Option) *ResponseService {
	s := &ResponseService{forms: forms, responses: responses, opts: buildOptions(opts)}
	if s.opts.cache != nil {
		s.forms = s.opts.cache
	}
	return s
}

// Submit grades a submission against the form's answer keys and stores it.
func (s *ResponseService) Submit(ctx context.Context, in SubmissionInput) (domain.Response, error) {
	in.FormID = domain.NormalizeID(in.FormID)
	answers, err := ValidateSubmission(in)
	if err != nil {
		return domain.Response{}, err
	}

	form, err := s.forms.GetForm(ctx, in.FormID)
	if err != nil {
		return domain.Response{}, err
	}
	if !form.IsPublished {
		return domain.Response{}, domain.ErrFormNotPublished
	}

	now := s.opts.clock()
	resp := domain.Response{
		ID:          domain.NewID(),
		FormID:      form.ID,
		Responses:   GradeSubmission(form.Questions, answers),
		SubmittedAt: now,
		UserInfo:    in.UserInfo,
		Metadata:    in.Metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.SessionID != "" {
		if resp.UserInfo == nil {
			resp.UserInfo = &domain.UserInfo{}
		}
		resp.UserInfo.SessionID = in.SessionID
	}
	resp.Recalculate()

	if err := s.responses.CreateResponse(ctx, &resp); err != nil {
		return domain.Response{}, err
	}

	s.opts.logger.Info("response submitted",
		zap.String("formId", resp.FormID),
		zap.String("responseId", resp.ID),
		zap.Int("totalScore", resp.TotalScore),
		zap.Int("maxTotalScore", resp.MaxTotalScore),
	)
	if s.opts.recorder != nil {
		s.opts.recorder.ObserveSubmission(resp)
	}
	event := domain.SubmissionEvent{
		FormID:        resp.FormID,
		ResponseID:    resp.ID,
		TotalScore:    resp.TotalScore,
		MaxTotalScore: resp.MaxTotalScore,
		Percentage:    resp.OverallPercentage,
		SubmittedAt:   resp.SubmittedAt,
	}
	if s.opts.feeds != nil {
		s.opts.feeds.Broadcast(ctx, event)
	}
	s.opts.publish(ctx, EventResponseSubmitted, event)
	return resp, nil
}

// ListByForm returns one page of a form's responses.
func (s *ResponseService) ListByForm(ctx context.Context, formID string, req PageRequest) ([]domain.Response, Pagination, error) {
	formID = domain.NormalizeID(formID)
	if !domain.IsValidID(formID) {
		return nil, Pagination{}, domain.ErrInvalidFormID
	}
	if _, err := s.forms.GetForm(ctx, formID); err != nil {
		return nil, Pagination{}, err
	}

	page, limit := req.Page, req.Limit
	if page < 1 {
		page = defaultPage
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	query := ResponseQuery{
		SortBy:     normalizeSortKey(req.SortBy),
		Descending: req.SortOrder != "asc",
		Offset:     (page - 1) * limit,
		Limit:      limit,
	}

	items, err := s.responses.ListResponses(ctx, formID, query)
	if err != nil {
		return nil, Pagination{}, err
	}
	total, err := s.responses.CountResponses(ctx, formID)
	if err != nil {
		return nil, Pagination{}, err
	}
	if items == nil {
		items = []domain.Response{}
	}
	return items, Pagination{
		CurrentPage:    page,
		TotalPages:     int(math.Ceil(float64(total) / float64(limit))),
		TotalResponses: total,
		HasNextPage:    query.Offset+len(items) < total,
		HasPrevPage:    page > 1,
	}, nil
}

func normalizeSortKey(key string) string {
	switch key {
	case SortSubmittedAt, SortTotalScore, SortMaxTotalScore, SortOverallPercentage, SortCreatedAt:
		return key
	}
	return SortSubmittedAt
}

// Analytics aggregates every stored response of a form.
func (s *ResponseService) Analytics(ctx context.Context, formID string) (domain.AnalyticsReport, error) {
	formID = domain.NormalizeID(formID)
	if !domain.IsValidID(formID) {
		return domain.AnalyticsReport{}, domain.ErrInvalidFormID
	}
	form, err := s.forms.GetForm(ctx, formID)
	if err != nil {
		return domain.AnalyticsReport{}, err
	}
	responses, err := s.responses.AllResponses(ctx, formID)
	if err != nil {
		return domain.AnalyticsReport{}, err
	}
	return Aggregate(form, responses, s.opts.clock()), nil
}

// Get returns a response with its parent form embedded when it still exists.
func (s *ResponseService) Get(ctx context.Context, responseID string) (domain.ResponseWithForm, error) {
	responseID = domain.NormalizeID(responseID)
	if !domain.IsValidID(responseID) {
		return domain.ResponseWithForm{}, domain.ErrInvalidResponseID
	}
	resp, err := s.responses.GetResponse(ctx, responseID)
	if err != nil {
		return domain.ResponseWithForm{}, err
	}
	out := domain.ResponseWithForm{Response: resp}
	form, err := s.forms.GetForm(ctx, resp.FormID)
	switch {
	case err == nil:
		out.Form = &domain.EmbeddedForm{
			ID:          form.ID,
			Title:       form.Title,
			Description: form.Description,
			Questions:   form.Questions,
		}
	case errors.Is(err, domain.ErrFormNotFound):
	default:
		return domain.ResponseWithForm{}, err
	}
	return out, nil
}

func (s *ResponseService) Delete(ctx context.Context, responseID string) error {
	responseID = domain.NormalizeID(responseID)
	if !domain.IsValidID(responseID) {
		return domain.ErrInvalidResponseID
	}
	if err := s.responses.DeleteResponse(ctx, responseID); err != nil {
		return err
	}
	s.opts.publish(ctx, EventResponseDeleted, map[string]string{"id": responseID})
	return nil
}

// Watch subscribes to the submissions of a form. The caller must invoke the
// returned cancel function to avoid leaks.
func (s *ResponseService) Watch(ctx context.Context, formID string) (<-chan domain.SubmissionEvent, func(), error) {
	formID = domain.NormalizeID(formID)
	if !domain.IsValidID(formID) {
		return nil, nil, domain.ErrInvalidFormID
	}
	if s.opts.feeds == nil {
		return nil, nil, errors.New("submission feeds are not configured")
	}
	if _, err := s.forms.GetForm(ctx, formID); err != nil {
		return nil, nil, err
	}
	feed := s.opts.feeds.GetOrCreate(formID)
	ch, unsubscribe := feed.Subscribe()
	cancel := func() {
		unsubscribe()
		s.opts.feeds.DeleteIfEmpty(formID)
	}
	return ch, cancel, nil
}
