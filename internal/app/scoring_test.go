package app_test

import (
	"encoding/json"
	"testing"

	"form-builder-service/internal/app"
	"form-builder-service/internal/domain"
)

func intPtr(v int) *int { return &v }

func clozeQuestion(text string) domain.Question {
	return domain.Question{
		ID:   "q-cloze",
		Type: domain.QuestionCloze,
		Cloze: &domain.ClozeData{
			Question: "Fill in",
			Text:     text,
			Blanks:   domain.ParseClozeBlanks(text),
		},
	}
}

func comprehensionQuestion(correct ...int) domain.Question {
	subs := make([]domain.ComprehensionQuestion, 0, len(correct))
	for _, c := range correct {
		subs = append(subs, domain.ComprehensionQuestion{
			Question:      "Pick one",
			Options:       []string{"a", "b", "c"},
			CorrectAnswer: intPtr(c),
		})
	}
	return domain.Question{
		ID:            "q-comp",
		Type:          domain.QuestionComprehension,
		Comprehension: &domain.ComprehensionData{Passage: "Read this", Questions: subs},
	}
}

func categorizeQuestion(correct ...string) domain.Question {
	items := make([]domain.CategorizeItem, 0, len(correct))
	for _, c := range correct {
		items = append(items, domain.CategorizeItem{Text: "item", CorrectCategory: c})
	}
	return domain.Question{
		ID:   "q-cat",
		Type: domain.QuestionCategorize,
		Categorize: &domain.CategorizeData{
			Question:   "Sort these",
			Categories: []string{"A", "B"},
			Items:      items,
		},
	}
}

func TestScoreQuestion(t *testing.T) {
	tests := []struct {
		name      string
		question  domain.Question
		answer    string
		wantScore int
		wantMax   int
	}{
		{"cloze exact", clozeQuestion("The [fox] jumps."), `["fox"]`, 1, 1},
		{"cloze case and whitespace", clozeQuestion("The [fox] jumps."), `["  Fox "]`, 1, 1},
		{"cloze partial", clozeQuestion("[a] [b] [c]"), `["a","x","C"]`, 2, 3},
		{"cloze wrapped answer", clozeQuestion("The [fox] jumps."), `{"answer":["fox"]}`, 1, 1},
		{"cloze user answer envelope", clozeQuestion("The [fox] jumps."), `{"userAnswer":["fox"]}`, 1, 1},
		{"cloze not an array", clozeQuestion("The [fox] jumps."), `"fox"`, 0, 1},
		{"cloze empty key", clozeQuestion("no blanks"), `["fox"]`, 0, 1},
		{"comprehension wrong", comprehensionQuestion(1), `[0]`, 0, 1},
		{"comprehension right", comprehensionQuestion(1, 2), `[1, 2]`, 2, 2},
		{"comprehension string index", comprehensionQuestion(1), `["1"]`, 0, 1},
		{"comprehension missing", comprehensionQuestion(1), `null`, 0, 1},
		{"comprehension empty key", comprehensionQuestion(), `[0]`, 0, 1},
		{"categorize wrong", categorizeQuestion("A"), `[{"category":"B"}]`, 0, 1},
		{"categorize right", categorizeQuestion("A", "B"), `[{"category":"A"},{"category":"B"}]`, 2, 2},
		{"categorize extra entries", categorizeQuestion("A"), `[{"category":"A"},{"category":"B"}]`, 1, 1},
		{"categorize missing category", categorizeQuestion("A"), `[{}]`, 0, 1},
		{"categorize malformed", categorizeQuestion("A"), `{"category":"A"}`, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, max := app.ScoreQuestion(tt.question, json.RawMessage(tt.answer))
			if score != tt.wantScore || max != tt.wantMax {
				t.Fatalf("expected %d/%d, got %d/%d", tt.wantScore, tt.wantMax, score, max)
			}
		})
	}
}

func TestGradeSubmissionUnknownSlot(t *testing.T) {
	questions := []domain.Question{clozeQuestion("The [fox] jumps.")}
	answers := []json.RawMessage{json.RawMessage(`["fox"]`), json.RawMessage(`["extra"]`)}

	results := app.GradeSubmission(questions, answers)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Percentage != 100 || results[0].QuestionType != domain.QuestionCloze {
		t.Fatalf("unexpected first result: %+v", results[0])
	}
	extra := results[1]
	if extra.QuestionType != domain.QuestionUnknown || extra.Score != 0 || extra.MaxScore != 1 || extra.QuestionIndex != 1 {
		t.Fatalf("unexpected unknown result: %+v", extra)
	}
}

func TestGradeSubmissionTotals(t *testing.T) {
	questions := []domain.Question{
		clozeQuestion("[a] [b]"),
		comprehensionQuestion(0, 1, 2),
		categorizeQuestion("A"),
	}
	answers := []json.RawMessage{
		json.RawMessage(`["a","b"]`),
		json.RawMessage(`[0, 0, 2]`),
		json.RawMessage(`[{"category":"B"}]`),
	}
	resp := domain.Response{Responses: app.GradeSubmission(questions, answers)}
	resp.Recalculate()

	if resp.TotalScore != 4 || resp.MaxTotalScore != 6 || resp.OverallPercentage != 67 {
		t.Fatalf("unexpected totals: %d/%d %d%%", resp.TotalScore, resp.MaxTotalScore, resp.OverallPercentage)
	}
}
