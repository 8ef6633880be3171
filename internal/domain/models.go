package domain

import (
	"regexp"
	"slices"
	"time"
)

// QuestionType discriminates the Question union.
type QuestionType string

const (
	QuestionCategorize    QuestionType = "categorize"
	QuestionCloze         QuestionType = "cloze"
	QuestionComprehension QuestionType = "comprehension"
	// QuestionUnknown marks a response entry with no matching form question.
	QuestionUnknown QuestionType = "unknown"
)

// Valid reports whether t is one of the three question kinds.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionCategorize, QuestionCloze, QuestionComprehension:
		return true
	}
	return false
}

// Form is an ordered set of questions plus metadata and publish status.
type Form struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	HeaderImage string     `json:"headerImage,omitempty"`
	Questions   []Question `json:"questions"`
	IsPublished bool       `json:"isPublished"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Publishable reports whether the form satisfies the publish invariant.
func (f Form) Publishable() bool {
	return f.Title != "" && len(f.Questions) > 0
}

// Summary is the reduced view served by the published-forms listing.
func (f Form) Summary() FormSummary {
	return FormSummary{
		ID:          f.ID,
		Title:       f.Title,
		Description: f.Description,
		HeaderImage: f.HeaderImage,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// FormSummary omits questions and publish state.
type FormSummary struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	HeaderImage string    `json:"headerImage,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Question is one typed prompt. Exactly one payload matching Type is expected;
// the others stay nil.
type Question struct {
	ID            string             `json:"id" bson:"id"`
	Type          QuestionType       `json:"type" bson:"type"`
	Categorize    *CategorizeData    `json:"categorizeData,omitempty" bson:"categorizeData,omitempty"`
	Cloze         *ClozeData         `json:"clozeData,omitempty" bson:"clozeData,omitempty"`
	Comprehension *ComprehensionData `json:"comprehensionData,omitempty" bson:"comprehensionData,omitempty"`
}

// Prompt returns the text shown for the question: the prompt for categorize and
// cloze questions, the passage for comprehension questions.
func (q Question) Prompt() string {
	switch q.Type {
	case QuestionCategorize:
		if q.Categorize != nil {
			return q.Categorize.Question
		}
	case QuestionCloze:
		if q.Cloze != nil {
			return q.Cloze.Question
		}
	case QuestionComprehension:
		if q.Comprehension != nil {
			return q.Comprehension.Passage
		}
	}
	return ""
}

// CategorizeData is a drag-and-drop question: each item belongs to one category.
type CategorizeData struct {
	Question   string           `json:"question" bson:"question"`
	Image      string           `json:"image,omitempty" bson:"image,omitempty"`
	Categories []string         `json:"categories" bson:"categories"`
	Items      []CategorizeItem `json:"items" bson:"items"`
}

type CategorizeItem struct {
	Text            string `json:"text" bson:"text"`
	CorrectCategory string `json:"correctCategory,omitempty" bson:"correctCategory"`
}

// ClozeData is a fill-in-the-blank question. Blanks are derived from [word]
// markers in Text.
type ClozeData struct {
	Question string       `json:"question" bson:"question"`
	Image    string       `json:"image,omitempty" bson:"image,omitempty"`
	Text     string       `json:"text" bson:"text"`
	Blanks   []ClozeBlank `json:"blanks" bson:"blanks"`
}

// ClozeBlank is one expected word; Position is the occurrence index in Text.
type ClozeBlank struct {
	Word     string `json:"word,omitempty" bson:"word"`
	Position int    `json:"position" bson:"position"`
}

var blankMarker = regexp.MustCompile(`\[([^\]]+)\]`)

// ParseClozeBlanks extracts the [word] markers of text in order of occurrence.
func ParseClozeBlanks(text string) []ClozeBlank {
	matches := blankMarker.FindAllStringSubmatch(text, -1)
	blanks := make([]ClozeBlank, 0, len(matches))
	for i, m := range matches {
		blanks = append(blanks, ClozeBlank{Word: m[1], Position: i})
	}
	return blanks
}

// ComprehensionData is a passage followed by multiple-choice sub-questions.
type ComprehensionData struct {
	Passage   string                  `json:"passage" bson:"passage"`
	Image     string                  `json:"image,omitempty" bson:"image,omitempty"`
	Questions []ComprehensionQuestion `json:"questions" bson:"questions"`
}

// ComprehensionQuestion's CorrectAnswer is an index into Options.
type ComprehensionQuestion struct {
	Question      string   `json:"question" bson:"question"`
	Options       []string `json:"options" bson:"options"`
	CorrectAnswer *int     `json:"correctAnswer,omitempty" bson:"correctAnswer"`
}

// Clone returns a deep copy of the form: questions and their payloads share
// no memory with f.
func (f Form) Clone() Form {
	out := f
	out.Questions = slices.Clone(f.Questions)
	for i, q := range out.Questions {
		if q.Categorize != nil {
			data := *q.Categorize
			data.Categories = slices.Clone(data.Categories)
			data.Items = slices.Clone(data.Items)
			out.Questions[i].Categorize = &data
		}
		if q.Cloze != nil {
			data := *q.Cloze
			data.Blanks = slices.Clone(data.Blanks)
			out.Questions[i].Cloze = &data
		}
		if q.Comprehension != nil {
			data := *q.Comprehension
			data.Questions = slices.Clone(data.Questions)
			for j, sub := range data.Questions {
				data.Questions[j].Options = slices.Clone(sub.Options)
				if sub.CorrectAnswer != nil {
					answer := *sub.CorrectAnswer
					data.Questions[j].CorrectAnswer = &answer
				}
			}
			out.Questions[i].Comprehension = &data
		}
	}
	return out
}

// WithoutAnswerKeys returns a deep copy of the form safe to show respondents:
// correct categories, blank words and correct options are removed.
func (f Form) WithoutAnswerKeys() Form {
	out := f
	out.Questions = make([]Question, len(f.Questions))
	for i, q := range f.Questions {
		cp := Question{ID: q.ID, Type: q.Type}
		if q.Categorize != nil {
			data := *q.Categorize
			data.Categories = append([]string(nil), q.Categorize.Categories...)
			data.Items = make([]CategorizeItem, len(q.Categorize.Items))
			for j, item := range q.Categorize.Items {
				data.Items[j] = CategorizeItem{Text: item.Text}
			}
			cp.Categorize = &data
		}
		if q.Cloze != nil {
			data := *q.Cloze
			data.Text = blankMarker.ReplaceAllString(q.Cloze.Text, "[___]")
			data.Blanks = make([]ClozeBlank, len(q.Cloze.Blanks))
			for j, blank := range q.Cloze.Blanks {
				data.Blanks[j] = ClozeBlank{Position: blank.Position}
			}
			cp.Cloze = &data
		}
		if q.Comprehension != nil {
			data := *q.Comprehension
			data.Questions = make([]ComprehensionQuestion, len(q.Comprehension.Questions))
			for j, sub := range q.Comprehension.Questions {
				data.Questions[j] = ComprehensionQuestion{
					Question: sub.Question,
					Options:  append([]string(nil), sub.Options...),
				}
			}
			cp.Comprehension = &data
		}
		out.Questions[i] = cp
	}
	return out
}
