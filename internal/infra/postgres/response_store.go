package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"form-builder-service/internal/app"
	"form-builder-service/internal/domain"
	"github.com/uptrace/bun"
)

type responseRow struct {
	bun.BaseModel `bun:"table:responses,alias:r"`

	ID                string                  `bun:"id,pk"`
	FormID            string                  `bun:"form_id,notnull"`
	Responses         []domain.QuestionResult `bun:"responses,type:jsonb,notnull"`
	TotalScore        int                     `bun:"total_score,notnull"`
	MaxTotalScore     int                     `bun:"max_total_score,notnull"`
	OverallPercentage int                     `bun:"overall_percentage,notnull"`
	SubmittedAt       time.Time               `bun:"submitted_at,notnull"`
	UserInfo          *domain.UserInfo        `bun:"user_info,type:jsonb"`
	Metadata          *domain.Metadata        `bun:"metadata,type:jsonb"`
	CreatedAt         time.Time               `bun:"created_at,notnull"`
	UpdatedAt         time.Time               `bun:"updated_at,notnull"`
}

var _ bun.BeforeAppendModelHook = (*responseRow)(nil)

// BeforeAppendModel re-derives the totals from the per-question entries on
// every write.
func (r *responseRow) BeforeAppendModel(_ context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.InsertQuery, *bun.UpdateQuery:
		resp := r.toDomain()
		resp.Recalculate()
		r.Responses = resp.Responses
		r.TotalScore = resp.TotalScore
		r.MaxTotalScore = resp.MaxTotalScore
		r.OverallPercentage = resp.OverallPercentage
	}
	return nil
}

func newResponseRow(resp domain.Response) *responseRow {
	results := resp.Responses
	if results == nil {
		results = []domain.QuestionResult{}
	}
	return &responseRow{
		ID:                resp.ID,
		FormID:            resp.FormID,
		Responses:         results,
		TotalScore:        resp.TotalScore,
		MaxTotalScore:     resp.MaxTotalScore,
		OverallPercentage: resp.OverallPercentage,
		SubmittedAt:       resp.SubmittedAt,
		UserInfo:          resp.UserInfo,
		Metadata:          resp.Metadata,
		CreatedAt:         resp.CreatedAt,
		UpdatedAt:         resp.UpdatedAt,
	}
}

func (r responseRow) toDomain() domain.Response {
	results := r.Responses
	if results == nil {
		results = []domain.QuestionResult{}
	}
	return domain.Response{
		ID:                r.ID,
		FormID:            r.FormID,
		Responses:         results,
		TotalScore:        r.TotalScore,
		MaxTotalScore:     r.MaxTotalScore,
		OverallPercentage: r.OverallPercentage,
		SubmittedAt:       r.SubmittedAt,
		UserInfo:          r.UserInfo,
		Metadata:          r.Metadata,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

// sortColumns maps the accepted sort keys to columns. Anything else sorts by
// submission time.
var sortColumns = map[string]string{
	app.SortSubmittedAt:       "submitted_at",
	app.SortTotalScore:        "total_score",
	app.SortMaxTotalScore:     "max_total_score",
	app.SortOverallPercentage: "overall_percentage",
	app.SortCreatedAt:         "created_at",
}

func sortColumn(key string) string {
	if col, ok := sortColumns[key]; ok {
		return col
	}
	return "submitted_at"
}

// ResponseStore implements app.ResponseRepository on Postgres with bun.
type ResponseStore struct {
	db *bun.DB
}

func NewResponseStore(db *bun.DB) *ResponseStore {
	return &ResponseStore{db: db}
}

func (s *ResponseStore) CreateResponse(ctx context.Context, resp *domain.Response) error {
	row := newResponseRow(*resp)
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("insert response: %w", err)
	}
	*resp = row.toDomain()
	return nil
}

func (s *ResponseStore) GetResponse(ctx context.Context, responseID string) (domain.Response, error) {
	var row responseRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", responseID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Response{}, domain.ErrResponseNotFound
	}
	if err != nil {
		return domain.Response{}, fmt.Errorf("select response: %w", err)
	}
	return row.toDomain(), nil
}

func (s *ResponseStore) DeleteResponse(ctx context.Context, responseID string) error {
	res, err := s.db.NewDelete().Model((*responseRow)(nil)).Where("id = ?", responseID).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete response: %w", err)
	}
	return affected(res, domain.ErrResponseNotFound)
}

func (s *ResponseStore) ListResponses(ctx context.Context, formID string, q app.ResponseQuery) ([]domain.Response, error) {
	direction := "ASC"
	if q.Descending {
		direction = "DESC"
	}
	var rows []responseRow
	err := s.db.NewSelect().Model(&rows).
		Where("form_id = ?", formID).
		OrderExpr("? "+direction+", id "+direction, bun.Ident(sortColumn(q.SortBy))).
		Offset(q.Offset).
		Limit(q.Limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	return toDomainResponses(rows), nil
}

func (s *ResponseStore) CountResponses(ctx context.Context, formID string) (int, error) {
	n, err := s.db.NewSelect().Model((*responseRow)(nil)).Where("form_id = ?", formID).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count responses: %w", err)
	}
	return n, nil
}

func (s *ResponseStore) AllResponses(ctx context.Context, formID string) ([]domain.Response, error) {
	var rows []responseRow
	err := s.db.NewSelect().Model(&rows).
		Where("form_id = ?", formID).
		Order("created_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load responses: %w", err)
	}
	return toDomainResponses(rows), nil
}

func toDomainResponses(rows []responseRow) []domain.Response {
	out := make([]domain.Response, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out
}
