package domain

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParseClozeBlanks(t *testing.T) {
	blanks := ParseClozeBlanks("The [quick] brown [fox] jumps over [the lazy] dog.")
	want := []string{"quick", "fox", "the lazy"}
	if len(blanks) != len(want) {
		t.Fatalf("expected %d blanks, got %d", len(want), len(blanks))
	}
	for i, b := range blanks {
		if b.Word != want[i] || b.Position != i {
			t.Fatalf("blank %d: expected %q@%d, got %+v", i, want[i], i, b)
		}
	}

	if got := ParseClozeBlanks("no markers, [] either"); len(got) != 0 {
		t.Fatalf("expected no blanks, got %+v", got)
	}
}

func TestWithoutAnswerKeys(t *testing.T) {
	correct := 1
	form := Form{
		ID:    NewID(),
		Title: "Mixed",
		Questions: []Question{
			{ID: "c1", Type: QuestionCategorize, Categorize: &CategorizeData{
				Question: "Sort", Categories: []string{"A", "B"},
				Items: []CategorizeItem{{Text: "x", CorrectCategory: "A"}},
			}},
			{ID: "z1", Type: QuestionCloze, Cloze: &ClozeData{
				Question: "Fill", Text: "The [fox] jumps.", Blanks: ParseClozeBlanks("The [fox] jumps."),
			}},
			{ID: "m1", Type: QuestionComprehension, Comprehension: &ComprehensionData{
				Passage: "Read", Questions: []ComprehensionQuestion{{Question: "Q", Options: []string{"a", "b"}, CorrectAnswer: &correct}},
			}},
		},
	}

	view := form.WithoutAnswerKeys()
	raw, err := json.Marshal(view)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(raw)
	for _, leaked := range []string{"correctCategory", "correctAnswer", `"word"`, "[fox]"} {
		if strings.Contains(body, leaked) {
			t.Fatalf("respondent view leaks %s: %s", leaked, body)
		}
	}

	if form.Questions[0].Categorize.Items[0].CorrectCategory != "A" || form.Questions[1].Cloze.Blanks[0].Word != "fox" || form.Questions[2].Comprehension.Questions[0].CorrectAnswer == nil {
		t.Fatalf("expected original form untouched")
	}
	if view.Questions[1].Cloze.Text != "The [___] jumps." || len(view.Questions[1].Cloze.Blanks) != 1 {
		t.Fatalf("unexpected cloze view: %+v", view.Questions[1].Cloze)
	}
}

func TestPublishable(t *testing.T) {
	if (Form{Title: "x"}).Publishable() {
		t.Fatalf("form without questions must not be publishable")
	}
	if (Form{Questions: []Question{{Type: QuestionCloze}}}).Publishable() {
		t.Fatalf("form without title must not be publishable")
	}
	if !(Form{Title: "x", Questions: []Question{{Type: QuestionCloze}}}).Publishable() {
		t.Fatalf("expected publishable form")
	}
}

func TestCloneSharesNoPayloads(t *testing.T) {
	correct := 0
	form := Form{
		ID: NewID(),
		Questions: []Question{
			{Type: QuestionCategorize, Categorize: &CategorizeData{
				Categories: []string{"A"}, Items: []CategorizeItem{{Text: "x", CorrectCategory: "A"}},
			}},
			{Type: QuestionCloze, Cloze: &ClozeData{Text: "[fox]", Blanks: ParseClozeBlanks("[fox]")}},
			{Type: QuestionComprehension, Comprehension: &ComprehensionData{
				Questions: []ComprehensionQuestion{{Options: []string{"a"}, CorrectAnswer: &correct}},
			}},
		},
	}

	cp := form.Clone()
	cp.Questions[0].Categorize.Items[0].CorrectCategory = "B"
	cp.Questions[0].Categorize.Categories[0] = "Z"
	cp.Questions[1].Cloze.Blanks[0].Word = "dog"
	cp.Questions[1].Cloze.Text = "[dog]"
	*cp.Questions[2].Comprehension.Questions[0].CorrectAnswer = 3
	cp.Questions[2].Comprehension.Questions[0].Options[0] = "z"

	if form.Questions[0].Categorize.Items[0].CorrectCategory != "A" || form.Questions[0].Categorize.Categories[0] != "A" {
		t.Fatalf("categorize payload shared: %+v", form.Questions[0].Categorize)
	}
	if form.Questions[1].Cloze.Blanks[0].Word != "fox" || form.Questions[1].Cloze.Text != "[fox]" {
		t.Fatalf("cloze payload shared: %+v", form.Questions[1].Cloze)
	}
	sub := form.Questions[2].Comprehension.Questions[0]
	if *sub.CorrectAnswer != 0 || sub.Options[0] != "a" {
		t.Fatalf("comprehension payload shared: %+v", sub)
	}

	empty := Form{Questions: []Question{}}
	if empty.Clone().Questions == nil {
		t.Fatalf("expected empty questions to stay non-nil")
	}
}
