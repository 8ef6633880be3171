package domain

import (
	"errors"
	"strings"
)

var (
	// ErrFormNotFound is returned when no form exists for an identifier.
	ErrFormNotFound = errors.New("form not found")
	// ErrResponseNotFound is returned when no response exists for an identifier.
	ErrResponseNotFound = errors.New("response not found")
	// ErrInvalidFormID indicates a malformed form identifier.
	ErrInvalidFormID = errors.New("invalid form ID format")
	// ErrInvalidResponseID indicates a malformed response identifier.
	ErrInvalidResponseID = errors.New("invalid response ID format")
	// ErrFormNotPublished rejects submissions and respondent views of draft forms.
	ErrFormNotPublished = errors.New("form is not published and cannot accept responses")
	// ErrPublishIncomplete rejects publishing a form without a title or questions.
	ErrPublishIncomplete = errors.New("cannot publish form: form must have a title and at least one question")
)

// ValidationError carries itemized request validation failures.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages, "; ")
}

// NewValidationError returns nil when there are no messages.
func NewValidationError(messages []string) error {
	if len(messages) == 0 {
		return nil
	}
	return &ValidationError{Messages: messages}
}
