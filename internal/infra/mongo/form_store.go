package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"form-builder-service/internal/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type formDoc struct {
	ID          bson.ObjectID     `bson:"_id"`
	Title       string            `bson:"title"`
	Description string            `bson:"description"`
	HeaderImage string            `bson:"headerImage"`
	Questions   []domain.Question `bson:"questions"`
	IsPublished bool              `bson:"isPublished"`
	CreatedAt   time.Time         `bson:"createdAt"`
	UpdatedAt   time.Time         `bson:"updatedAt"`
}

func newFormDoc(f domain.Form) (formDoc, error) {
	id, err := bson.ObjectIDFromHex(f.ID)
	if err != nil {
		return formDoc{}, domain.ErrInvalidFormID
	}
	questions := f.Questions
	if questions == nil {
		questions = []domain.Question{}
	}
	return formDoc{
		ID:          id,
		Title:       f.Title,
		Description: f.Description,
		HeaderImage: f.HeaderImage,
		Questions:   questions,
		IsPublished: f.IsPublished,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}, nil
}

func (d formDoc) toDomain() domain.Form {
	questions := d.Questions
	if questions == nil {
		questions = []domain.Question{}
	}
	return domain.Form{
		ID:          d.ID.Hex(),
		Title:       d.Title,
		Description: d.Description,
		HeaderImage: d.HeaderImage,
		Questions:   questions,
		IsPublished: d.IsPublished,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

// FormStore implements app.FormRepository on MongoDB.
type FormStore struct {
	collection *mongo.Collection
}

func NewFormStore(database *mongo.Database) *FormStore {
	return &FormStore{collection: database.Collection(FormsCollection)}
}

// InitializeIndexes creates the indexes used by the listings.
func (s *FormStore) InitializeIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "updatedAt", Value: -1}}},
		{Keys: bson.D{{Key: "isPublished", Value: 1}, {Key: "updatedAt", Value: -1}}},
	}
	if _, err := s.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create form indexes: %w", err)
	}
	return nil
}

func (s *FormStore) GetForm(ctx context.Context, formID string) (domain.Form, error) {
	id, err := bson.ObjectIDFromHex(formID)
	if err != nil {
		return domain.Form{}, domain.ErrFormNotFound
	}
	var doc formDoc
	err = s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Form{}, domain.ErrFormNotFound
	}
	if err != nil {
		return domain.Form{}, fmt.Errorf("failed to get form: %w", err)
	}
	return doc.toDomain(), nil
}

func (s *FormStore) ListForms(ctx context.Context) ([]domain.Form, error) {
	return s.find(ctx, bson.M{})
}

func (s *FormStore) ListPublishedForms(ctx context.Context) ([]domain.Form, error) {
	return s.find(ctx, bson.M{"isPublished": true})
}

func (s *FormStore) find(ctx context.Context, filter bson.M) ([]domain.Form, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := s.collection.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to find forms: %w", err)
	}
	defer cursor.Close(ctx)

	forms := []domain.Form{}
	for cursor.Next(ctx) {
		var doc formDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode form: %w", err)
		}
		forms = append(forms, doc.toDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate forms: %w", err)
	}
	return forms, nil
}

func (s *FormStore) CreateForm(ctx context.Context, form *domain.Form) error {
	doc, err := newFormDoc(*form)
	if err != nil {
		return err
	}
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to create form: %w", err)
	}
	return nil
}

func (s *FormStore) UpdateForm(ctx context.Context, form *domain.Form) error {
	doc, err := newFormDoc(*form)
	if err != nil {
		return err
	}
	result, err := s.collection.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc)
	if err != nil {
		return fmt.Errorf("failed to update form: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrFormNotFound
	}
	return nil
}

func (s *FormStore) DeleteForm(ctx context.Context, formID string) error {
	id, err := bson.ObjectIDFromHex(formID)
	if err != nil {
		return domain.ErrFormNotFound
	}
	result, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete form: %w", err)
	}
	if result.DeletedCount == 0 {
		return domain.ErrFormNotFound
	}
	return nil
}
