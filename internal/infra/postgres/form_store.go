package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"form-builder-service/internal/domain"
	"github.com/uptrace/bun"
)

type formRow struct {
	bun.BaseModel `bun:"table:forms,alias:f"`

	ID          string            `bun:"id,pk"`
	Title       string            `bun:"title,notnull"`
	Description string            `bun:"description,notnull"`
	HeaderImage string            `bun:"header_image,notnull"`
	Questions   []domain.Question `bun:"questions,type:jsonb,notnull"`
	IsPublished bool              `bun:"is_published,notnull"`
	CreatedAt   time.Time         `bun:"created_at,notnull"`
	UpdatedAt   time.Time         `bun:"updated_at,notnull"`
}

func newFormRow(f domain.Form) *formRow {
	questions := f.Questions
	if questions == nil {
		questions = []domain.Question{}
	}
	return &formRow{
		ID:          f.ID,
		Title:       f.Title,
		Description: f.Description,
		HeaderImage: f.HeaderImage,
		Questions:   questions,
		IsPublished: f.IsPublished,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

func (r formRow) toDomain() domain.Form {
	questions := r.Questions
	if questions == nil {
		questions = []domain.Question{}
	}
	return domain.Form{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		HeaderImage: r.HeaderImage,
		Questions:   questions,
		IsPublished: r.IsPublished,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// FormStore implements app.FormRepository on Postgres with bun.
type FormStore struct {
	db *bun.DB
}

func NewFormStore(db *bun.DB) *FormStore {
	return &FormStore{db: db}
}

func (s *FormStore) GetForm(ctx context.Context, formID string) (domain.Form, error) {
	var row formRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", formID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Form{}, domain.ErrFormNotFound
	}
	if err != nil {
		return domain.Form{}, fmt.Errorf("select form: %w", err)
	}
	return row.toDomain(), nil
}

func (s *FormStore) ListForms(ctx context.Context) ([]domain.Form, error) {
	return s.list(ctx, false)
}

func (s *FormStore) ListPublishedForms(ctx context.Context) ([]domain.Form, error) {
	return s.list(ctx, true)
}

func (s *FormStore) list(ctx context.Context, publishedOnly bool) ([]domain.Form, error) {
	var rows []formRow
	q := s.db.NewSelect().Model(&rows).Order("updated_at DESC", "id DESC")
	if publishedOnly {
		q = q.Where("is_published")
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list forms: %w", err)
	}
	out := make([]domain.Form, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *FormStore) CreateForm(ctx context.Context, form *domain.Form) error {
	if _, err := s.db.NewInsert().Model(newFormRow(*form)).Exec(ctx); err != nil {
		return fmt.Errorf("insert form: %w", err)
	}
	return nil
}

func (s *FormStore) UpdateForm(ctx context.Context, form *domain.Form) error {
	res, err := s.db.NewUpdate().Model(newFormRow(*form)).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("update form: %w", err)
	}
	return affected(res, domain.ErrFormNotFound)
}

func (s *FormStore) DeleteForm(ctx context.Context, formID string) error {
	res, err := s.db.NewDelete().Model((*formRow)(nil)).Where("id = ?", formID).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete form: %w", err)
	}
	return affected(res, domain.ErrFormNotFound)
}

func affected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
