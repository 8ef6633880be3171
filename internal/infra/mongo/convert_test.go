package mongo

import (
	"encoding/json"
	"testing"
	"time"

	"form-builder-service/internal/app"
	"form-builder-service/internal/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestAnswersStoredVerbatim(t *testing.T) {
	cases := map[string]string{
		"cloze":         `["fox","dog"]`,
		"comprehension": `[1,0,2]`,
		"categorize":    `[{"category":"A"},{"category":"B"}]`,
		"wrapped":       `{"answer":["fox"]}`,
		"null":          `null`,
		"date operator": `{"$date":"garbage"}`,
		"oid operator":  `{"$oid":"zz"}`,
		"huge float":    `1e400`,
		"number int":    `{"$numberInt":"5"}`,
		"big integer":   `12345678901234567890`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			resp := domain.Response{
				ID:     domain.NewID(),
				FormID: domain.NewID(),
				Responses: []domain.QuestionResult{
					{QuestionType: domain.QuestionCloze, UserAnswers: json.RawMessage(in)},
				},
			}
			doc, err := newResponseDoc(resp)
			if err != nil {
				t.Fatalf("to doc: %v", err)
			}
			raw, err := bson.Marshal(doc)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			var decoded responseDoc
			if err := bson.Unmarshal(raw, &decoded); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got := string(decoded.toDomain().Responses[0].UserAnswers); got != in {
				t.Fatalf("expected %s, got %s", in, got)
			}
		})
	}
}

func TestMissingAnswerStoredAsNull(t *testing.T) {
	if got := encodeAnswer(nil); got != "null" {
		t.Fatalf("expected null, got %q", got)
	}
	if got := decodeAnswer(""); got != nil {
		t.Fatalf("expected nil, got %s", got)
	}
}

func TestResponseDocRoundTrip(t *testing.T) {
	resp := domain.Response{
		ID:          domain.NewID(),
		FormID:      domain.NewID(),
		SubmittedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Responses: []domain.QuestionResult{
			{QuestionIndex: 0, QuestionType: domain.QuestionCloze, UserAnswers: json.RawMessage(`["fox"]`), Score: 1, MaxScore: 1},
			{QuestionIndex: 1, QuestionType: domain.QuestionComprehension, UserAnswers: json.RawMessage(`[0]`), Score: 0, MaxScore: 2},
		},
		Metadata: &domain.Metadata{DeviceType: "mobile"},
	}
	doc, err := newResponseDoc(resp)
	if err != nil {
		t.Fatalf("to doc: %v", err)
	}
	if doc.TotalScore != 1 || doc.MaxTotalScore != 3 || doc.OverallPercentage != 33 {
		t.Fatalf("expected totals re-derived, got %d/%d %d%%", doc.TotalScore, doc.MaxTotalScore, doc.OverallPercentage)
	}

	raw, err := bson.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded responseDoc
	if err := bson.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	back := decoded.toDomain()
	if back.ID != resp.ID || back.FormID != resp.FormID || back.Metadata.DeviceType != "mobile" {
		t.Fatalf("identity lost: %+v", back)
	}
	if string(back.Responses[0].UserAnswers) != `["fox"]` || back.Responses[1].QuestionType != domain.QuestionComprehension {
		t.Fatalf("answers lost: %s %+v", back.Responses[0].UserAnswers, back.Responses[1])
	}
}

func TestNewFormDocRejectsForeignIDs(t *testing.T) {
	if _, err := newFormDoc(domain.Form{ID: "form-1"}); err != domain.ErrInvalidFormID {
		t.Fatalf("expected invalid id, got %v", err)
	}
	doc, err := newFormDoc(domain.Form{ID: domain.NewID(), Title: "x"})
	if err != nil {
		t.Fatalf("to doc: %v", err)
	}
	if doc.Questions == nil || doc.toDomain().Questions == nil {
		t.Fatalf("expected non-nil questions")
	}
	if sortField("bogus") != "submittedAt" || sortField(app.SortTotalScore) != "totalScore" {
		t.Fatalf("unexpected sort field mapping")
	}
}
