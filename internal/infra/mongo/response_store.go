package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"form-builder-service/internal/app"
	"form-builder-service/internal/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type responseDoc struct {
	ID                bson.ObjectID    `bson:"_id"`
	FormID            bson.ObjectID    `bson:"formId"`
	Responses         []resultDoc      `bson:"responses"`
	TotalScore        int              `bson:"totalScore"`
	MaxTotalScore     int              `bson:"maxTotalScore"`
	OverallPercentage int              `bson:"overallPercentage"`
	SubmittedAt       time.Time        `bson:"submittedAt"`
	UserInfo          *domain.UserInfo `bson:"userInfo,omitempty"`
	Metadata          *domain.Metadata `bson:"metadata,omitempty"`
	CreatedAt         time.Time        `bson:"createdAt"`
	UpdatedAt         time.Time        `bson:"updatedAt"`
}

// resultDoc keeps the submitted answer verbatim as a JSON string. Answers
// are arbitrary JSON and are never interpreted as Extended JSON.
type resultDoc struct {
	QuestionIndex int    `bson:"questionIndex"`
	QuestionType  string `bson:"questionType"`
	UserAnswers   string `bson:"userAnswers"`
	Score         int    `bson:"score"`
	MaxScore      int    `bson:"maxScore"`
	Percentage    int    `bson:"percentage"`
}

func encodeAnswer(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "null"
	}
	return string(raw)
}

func decodeAnswer(v string) json.RawMessage {
	if v == "" {
		return nil
	}
	return json.RawMessage(v)
}

func newResponseDoc(resp domain.Response) (responseDoc, error) {
	id, err := bson.ObjectIDFromHex(resp.ID)
	if err != nil {
		return responseDoc{}, domain.ErrInvalidResponseID
	}
	formID, err := bson.ObjectIDFromHex(resp.FormID)
	if err != nil {
		return responseDoc{}, domain.ErrInvalidFormID
	}

	// Totals are always re-derived before a save.
	resp.Recalculate()

	results := make([]resultDoc, 0, len(resp.Responses))
	for _, r := range resp.Responses {
		results = append(results, resultDoc{
			QuestionIndex: r.QuestionIndex,
			QuestionType:  string(r.QuestionType),
			UserAnswers:   encodeAnswer(r.UserAnswers),
			Score:         r.Score,
			MaxScore:      r.MaxScore,
			Percentage:    r.Percentage,
		})
	}
	return responseDoc{
		ID:                id,
		FormID:            formID,
		Responses:         results,
		TotalScore:        resp.TotalScore,
		MaxTotalScore:     resp.MaxTotalScore,
		OverallPercentage: resp.OverallPercentage,
		SubmittedAt:       resp.SubmittedAt,
		UserInfo:          resp.UserInfo,
		Metadata:          resp.Metadata,
		CreatedAt:         resp.CreatedAt,
		UpdatedAt:         resp.UpdatedAt,
	}, nil
}

func (d responseDoc) toDomain() domain.Response {
	results := make([]domain.QuestionResult, 0, len(d.Responses))
	for _, r := range d.Responses {
		results = append(results, domain.QuestionResult{
			QuestionIndex: r.QuestionIndex,
			QuestionType:  domain.QuestionType(r.QuestionType),
			UserAnswers:   decodeAnswer(r.UserAnswers),
			Score:         r.Score,
			MaxScore:      r.MaxScore,
			Percentage:    r.Percentage,
		})
	}
	return domain.Response{
		ID:                d.ID.Hex(),
		FormID:            d.FormID.Hex(),
		Responses:         results,
		TotalScore:        d.TotalScore,
		MaxTotalScore:     d.MaxTotalScore,
		OverallPercentage: d.OverallPercentage,
		SubmittedAt:       d.SubmittedAt,
		UserInfo:          d.UserInfo,
		Metadata:          d.Metadata,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

var sortFields = map[string]string{
	app.SortSubmittedAt:       "submittedAt",
	app.SortTotalScore:        "totalScore",
	app.SortMaxTotalScore:     "maxTotalScore",
	app.SortOverallPercentage: "overallPercentage",
	app.SortCreatedAt:         "createdAt",
}

func sortField(key string) string {
	if f, ok := sortFields[key]; ok {
		return f
	}
	return "submittedAt"
}

// ResponseStore implements app.ResponseRepository on MongoDB.
type ResponseStore struct {
	collection *mongo.Collection
}

func NewResponseStore(database *mongo.Database) *ResponseStore {
	return &ResponseStore{collection: database.Collection(ResponsesCollection)}
}

// InitializeIndexes creates the index backing per-form listings.
func (s *ResponseStore) InitializeIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "formId", Value: 1}, {Key: "submittedAt", Value: -1}}},
	}
	if _, err := s.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create response indexes: %w", err)
	}
	return nil
}

func (s *ResponseStore) CreateResponse(ctx context.Context, resp *domain.Response) error {
	doc, err := newResponseDoc(*resp)
	if err != nil {
		return err
	}
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to create response: %w", err)
	}
	resp.Recalculate()
	return nil
}

func (s *ResponseStore) GetResponse(ctx context.Context, responseID string) (domain.Response, error) {
	id, err := bson.ObjectIDFromHex(responseID)
	if err != nil {
		return domain.Response{}, domain.ErrResponseNotFound
	}
	var doc responseDoc
	err = s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Response{}, domain.ErrResponseNotFound
	}
	if err != nil {
		return domain.Response{}, fmt.Errorf("failed to get response: %w", err)
	}
	return doc.toDomain(), nil
}

func (s *ResponseStore) DeleteResponse(ctx context.Context, responseID string) error {
	id, err := bson.ObjectIDFromHex(responseID)
	if err != nil {
		return domain.ErrResponseNotFound
	}
	result, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete response: %w", err)
	}
	if result.DeletedCount == 0 {
		return domain.ErrResponseNotFound
	}
	return nil
}

func (s *ResponseStore) ListResponses(ctx context.Context, formID string, q app.ResponseQuery) ([]domain.Response, error) {
	filter, ok := formFilter(formID)
	if !ok {
		return []domain.Response{}, nil
	}
	dir := 1
	if q.Descending {
		dir = -1
	}
	findOpts := options.Find().
		SetSort(bson.D{{Key: sortField(q.SortBy), Value: dir}, {Key: "_id", Value: dir}}).
		SetSkip(int64(q.Offset)).
		SetLimit(int64(q.Limit))
	return s.find(ctx, filter, findOpts)
}

func (s *ResponseStore) CountResponses(ctx context.Context, formID string) (int, error) {
	filter, ok := formFilter(formID)
	if !ok {
		return 0, nil
	}
	n, err := s.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count responses: %w", err)
	}
	return int(n), nil
}

func (s *ResponseStore) AllResponses(ctx context.Context, formID string) ([]domain.Response, error) {
	filter, ok := formFilter(formID)
	if !ok {
		return []domain.Response{}, nil
	}
	return s.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
}

func (s *ResponseStore) find(ctx context.Context, filter bson.M, opts *options.FindOptionsBuilder) ([]domain.Response, error) {
	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find responses: %w", err)
	}
	defer cursor.Close(ctx)

	out := []domain.Response{}
	for cursor.Next(ctx) {
		var doc responseDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		out = append(out, doc.toDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate responses: %w", err)
	}
	return out, nil
}

func formFilter(formID string) (bson.M, bool) {
	id, err := bson.ObjectIDFromHex(formID)
	if err != nil {
		return nil, false
	}
	return bson.M{"formId": id}, true
}
