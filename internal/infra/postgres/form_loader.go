package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"form-builder-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// FormLoader loads form definitions straight from the forms table. It backs the
// read cache used while grading submissions.
type FormLoader struct {
	pool *pgxpool.Pool
}

func NewFormLoader(pool *pgxpool.Pool) *FormLoader {
	return &FormLoader{pool: pool}
}

func (l *FormLoader) GetForm(ctx context.Context, formID string) (domain.Form, error) {
	var (
		form domain.Form
		raw  []byte
	)
	err := l.pool.QueryRow(ctx, `
		SELECT id, title, description, header_image, questions, is_published, created_at, updated_at
		FROM forms WHERE id=$1`, formID,
	).Scan(&form.ID, &form.Title, &form.Description, &form.HeaderImage, &raw, &form.IsPublished, &form.CreatedAt, &form.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Form{}, domain.ErrFormNotFound
	}
	if err != nil {
		return domain.Form{}, fmt.Errorf("load form: %w", err)
	}
	if err := json.Unmarshal(raw, &form.Questions); err != nil {
		return domain.Form{}, fmt.Errorf("unmarshal questions: %w", err)
	}
	if form.Questions == nil {
		form.Questions = []domain.Question{}
	}
	return form, nil
}
