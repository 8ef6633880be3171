package app

import (
	"bytes"
	"encoding/json"
	"strings"

	"form-builder-service/internal/domain"
)

// GradeSubmission grades each submitted answer against the question at the
// same index. Answers without a matching question are graded as unknown.
func GradeSubmission(questions []domain.Question, answers []json.RawMessage) []domain.QuestionResult {
	results := make([]domain.QuestionResult, 0, len(answers))
	for i, answer := range answers {
		result := domain.QuestionResult{
			QuestionIndex: i,
			QuestionType:  domain.QuestionUnknown,
			UserAnswers:   answer,
			MaxScore:      1,
		}
		if i < len(questions) {
			result.QuestionType = questions[i].Type
			result.Score, result.MaxScore = ScoreQuestion(questions[i], answer)
		}
		result.Percentage = domain.Percentage(result.Score, result.MaxScore)
		results = append(results, result)
	}
	return results
}

// ScoreQuestion returns the number of correctly answered sub-items and the
// number of scorable sub-items. maxScore is never below 1. Malformed
// submissions score 0.
func ScoreQuestion(q domain.Question, submitted json.RawMessage) (score, maxScore int) {
	entries, ok := answerEntries(submitted)

	switch q.Type {
	case domain.QuestionCategorize:
		var items []domain.CategorizeItem
		if q.Categorize != nil {
			items = q.Categorize.Items
		}
		maxScore = atLeastOne(len(items))
		if !ok {
			return 0, maxScore
		}
		for i := 0; i < len(entries) && i < len(items); i++ {
			var placed struct {
				Category *string `json:"category"`
			}
			if json.Unmarshal(entries[i], &placed) != nil || placed.Category == nil {
				continue
			}
			if *placed.Category == items[i].CorrectCategory {
				score++
			}
		}
	case domain.QuestionCloze:
		var blanks []domain.ClozeBlank
		if q.Cloze != nil {
			blanks = q.Cloze.Blanks
		}
		maxScore = atLeastOne(len(blanks))
		if !ok {
			return 0, maxScore
		}
		for i := 0; i < len(entries) && i < len(blanks); i++ {
			var word string
			if json.Unmarshal(entries[i], &word) != nil {
				continue
			}
			if strings.EqualFold(strings.TrimSpace(word), strings.TrimSpace(blanks[i].Word)) {
				score++
			}
		}
	case domain.QuestionComprehension:
		var subs []domain.ComprehensionQuestion
		if q.Comprehension != nil {
			subs = q.Comprehension.Questions
		}
		maxScore = atLeastOne(len(subs))
		if !ok {
			return 0, maxScore
		}
		for i := 0; i < len(entries) && i < len(subs); i++ {
			var selected float64
			if json.Unmarshal(entries[i], &selected) != nil || subs[i].CorrectAnswer == nil {
				continue
			}
			if selected == float64(*subs[i].CorrectAnswer) {
				score++
			}
		}
	default:
		maxScore = 1
	}
	return score, maxScore
}

// answerEntries unwraps {"answer": ...} and {"userAnswer": ...} envelopes and
// splits the payload into array elements.
func answerEntries(raw json.RawMessage) ([]json.RawMessage, bool) {
	raw = unwrapAnswer(raw)
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil || entries == nil {
		return nil, false
	}
	return entries, true
}

func unwrapAnswer(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return raw
	}
	var envelope struct {
		Answer     json.RawMessage `json:"answer"`
		UserAnswer json.RawMessage `json:"userAnswer"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return raw
	}
	if present(envelope.Answer) {
		return envelope.Answer
	}
	if present(envelope.UserAnswer) {
		return envelope.UserAnswer
	}
	return raw
}

func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
