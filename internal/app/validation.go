package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"form-builder-service/internal/domain"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 1000
	minOptions           = 2
)

// FormInput is the body of a form create or update request. Questions stays raw
// so that a non-array value can be reported instead of failing to decode.
type FormInput struct {
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	HeaderImage *string         `json:"headerImage"`
	Questions   json.RawMessage `json:"questions"`
}

// SubmissionInput is the body of a response submission.
type SubmissionInput struct {
	FormID    string           `json:"formId"`
	Responses json.RawMessage  `json:"responses"`
	SessionID string           `json:"sessionId,omitempty"`
	Metadata  *domain.Metadata `json:"metadata,omitempty"`

	// UserInfo is filled from the request by the transport layer.
	UserInfo *domain.UserInfo `json:"-"`
}

// ValidateForm checks the top-level form fields and the nested question
// shapes. It returns the normalized questions: ids assigned, cloze blanks
// derived from the text and payloads of other variants dropped.
func ValidateForm(in FormInput) ([]domain.Question, error) {
	var errs []string

	title := deref(in.Title)
	if strings.TrimSpace(title) == "" {
		errs = append(errs, "Form title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		errs = append(errs, fmt.Sprintf("Form title must not exceed %d characters", maxTitleLength))
	}
	if utf8.RuneCountInString(deref(in.Description)) > maxDescriptionLength {
		errs = append(errs, fmt.Sprintf("Form description must not exceed %d characters", maxDescriptionLength))
	}
	if img := deref(in.HeaderImage); img != "" && !isValidURL(img) {
		errs = append(errs, "Header image must be a valid URL")
	}

	var questions []domain.Question
	if present(in.Questions) {
		if !isJSONArray(in.Questions) {
			errs = append(errs, "Questions must be an array")
		} else if err := json.Unmarshal(in.Questions, &questions); err != nil {
			errs = append(errs, "Questions are malformed: "+err.Error())
		}
	}
	if len(errs) > 0 {
		return nil, domain.NewValidationError(errs)
	}

	for i := range questions {
		errs = append(errs, normalizeQuestion(&questions[i], i+1)...)
	}
	if err := domain.NewValidationError(errs); err != nil {
		return nil, err
	}
	if questions == nil {
		questions = []domain.Question{}
	}
	return questions, nil
}

// normalizeQuestion validates one question and prepares it for storage. n is
// the 1-based position used in messages.
func normalizeQuestion(q *domain.Question, n int) []string {
	var errs []string
	if q.ID == "" {
		q.ID = domain.NewID()
	}

	switch q.Type {
	case domain.QuestionCategorize:
		q.Cloze, q.Comprehension = nil, nil
		data := q.Categorize
		if data == nil {
			return []string{fmt.Sprintf("Question %d: categorizeData is required for categorize questions", n)}
		}
		if strings.TrimSpace(data.Question) == "" {
			errs = append(errs, fmt.Sprintf("Question %d: question text is required", n))
		}
		if data.Image != "" && !isValidURL(data.Image) {
			errs = append(errs, fmt.Sprintf("Question %d: image must be a valid URL", n))
		}
		known := make(map[string]bool, len(data.Categories))
		for j, c := range data.Categories {
			if strings.TrimSpace(c) == "" {
				errs = append(errs, fmt.Sprintf("Question %d, category %d: name is required", n, j+1))
			}
			known[c] = true
		}
		for j, item := range data.Items {
			if strings.TrimSpace(item.Text) == "" {
				errs = append(errs, fmt.Sprintf("Question %d, item %d: text is required", n, j+1))
			}
			switch {
			case item.CorrectCategory == "":
				errs = append(errs, fmt.Sprintf("Question %d, item %d: correct category is required", n, j+1))
			case !known[item.CorrectCategory]:
				errs = append(errs, fmt.Sprintf("Question %d, item %d: correct category %q is not one of the categories", n, j+1, item.CorrectCategory))
			}
		}
		if data.Categories == nil {
			data.Categories = []string{}
		}
		if data.Items == nil {
			data.Items = []domain.CategorizeItem{}
		}
	case domain.QuestionCloze:
		q.Categorize, q.Comprehension = nil, nil
		data := q.Cloze
		if data == nil {
			return []string{fmt.Sprintf("Question %d: clozeData is required for cloze questions", n)}
		}
		if strings.TrimSpace(data.Question) == "" {
			errs = append(errs, fmt.Sprintf("Question %d: question text is required", n))
		}
		if strings.TrimSpace(data.Text) == "" {
			errs = append(errs, fmt.Sprintf("Question %d: cloze text is required", n))
		}
		if data.Image != "" && !isValidURL(data.Image) {
			errs = append(errs, fmt.Sprintf("Question %d: image must be a valid URL", n))
		}
		data.Blanks = domain.ParseClozeBlanks(data.Text)
	case domain.QuestionComprehension:
		q.Categorize, q.Cloze = nil, nil
		data := q.Comprehension
		if data == nil {
			return []string{fmt.Sprintf("Question %d: comprehensionData is required for comprehension questions", n)}
		}
		if strings.TrimSpace(data.Passage) == "" {
			errs = append(errs, fmt.Sprintf("Question %d: passage is required", n))
		}
		if data.Image != "" && !isValidURL(data.Image) {
			errs = append(errs, fmt.Sprintf("Question %d: image must be a valid URL", n))
		}
		for j, sub := range data.Questions {
			if strings.TrimSpace(sub.Question) == "" {
				errs = append(errs, fmt.Sprintf("Question %d, MCQ %d: question text is required", n, j+1))
			}
			if len(sub.Options) < minOptions {
				errs = append(errs, fmt.Sprintf("Question %d, MCQ %d: at least %d options are required", n, j+1, minOptions))
			}
			switch {
			case sub.CorrectAnswer == nil:
				errs = append(errs, fmt.Sprintf("Question %d, MCQ %d: correct answer is required", n, j+1))
			case *sub.CorrectAnswer < 0 || *sub.CorrectAnswer >= len(sub.Options):
				errs = append(errs, fmt.Sprintf("Question %d, MCQ %d: correct answer must index one of the options", n, j+1))
			}
		}
		if data.Questions == nil {
			data.Questions = []domain.ComprehensionQuestion{}
		}
	default:
		errs = append(errs, fmt.Sprintf("Question %d: type must be one of categorize, cloze, comprehension", n))
	}
	return errs
}

// ValidateSubmission checks the structure of a submission and returns the
// individual answers. Answer shapes are not checked; they are graded instead.
func ValidateSubmission(in SubmissionInput) ([]json.RawMessage, error) {
	var errs []string
	if in.FormID == "" {
		errs = append(errs, "Form ID is required")
	} else if !domain.IsValidID(in.FormID) {
		errs = append(errs, "Form ID must be a valid 24-character hexadecimal identifier")
	}

	var answers []json.RawMessage
	if !present(in.Responses) || !isJSONArray(in.Responses) {
		errs = append(errs, "Responses must be an array")
	} else if err := json.Unmarshal(in.Responses, &answers); err != nil {
		errs = append(errs, "Responses must be an array")
	} else if len(answers) == 0 {
		errs = append(errs, "At least one response is required")
	}

	if in.Metadata != nil && in.Metadata.DeviceType != "" && !validDeviceType(in.Metadata.DeviceType) {
		errs = append(errs, "Device type must be one of "+strings.Join(domain.DeviceTypes, ", "))
	}
	if in.Metadata != nil && in.Metadata.TimeSpent != nil && *in.Metadata.TimeSpent < 0 {
		errs = append(errs, "Time spent must not be negative")
	}

	if err := domain.NewValidationError(errs); err != nil {
		return nil, err
	}
	return answers, nil
}

func validDeviceType(v string) bool {
	for _, t := range domain.DeviceTypes {
		if t == v {
			return true
		}
	}
	return false
}

func isValidURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return false
	}
	if u.Scheme == "http" || u.Scheme == "https" {
		return u.Host != ""
	}
	return u.Opaque != "" || u.Host != "" || u.Path != ""
}

func isJSONArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
