package domain

import (
	"encoding/json"
	"math"
	"time"
)

// DeviceType values accepted in response metadata.
var DeviceTypes = []string{"desktop", "tablet", "mobile"}

// Response is one respondent's graded submission. Entries in Responses are
// aligned positionally with the form's questions at submission time.
type Response struct {
	ID                string           `json:"id"`
	FormID            string           `json:"formId"`
	Responses         []QuestionResult `json:"responses"`
	TotalScore        int              `json:"totalScore"`
	MaxTotalScore     int              `json:"maxTotalScore"`
	OverallPercentage int              `json:"overallPercentage"`
	SubmittedAt       time.Time        `json:"submittedAt"`
	UserInfo          *UserInfo        `json:"userInfo,omitempty"`
	Metadata          *Metadata        `json:"metadata,omitempty"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

// QuestionResult is the graded outcome for one submitted answer.
type QuestionResult struct {
	QuestionIndex int             `json:"questionIndex"`
	QuestionType  QuestionType    `json:"questionType"`
	UserAnswers   json.RawMessage `json:"userAnswers,omitempty"`
	Score         int             `json:"score"`
	MaxScore      int             `json:"maxScore"`
	Percentage    int             `json:"percentage"`
}

// FullyCorrect reports whether every scorable sub-item was answered correctly.
func (r QuestionResult) FullyCorrect() bool {
	return r.Score == r.MaxScore
}

type UserInfo struct {
	IPAddress string `json:"ipAddress,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

type Metadata struct {
	TimeSpent   *int   `json:"timeSpent,omitempty"`
	DeviceType  string `json:"deviceType,omitempty"`
	BrowserInfo string `json:"browserInfo,omitempty"`
}

// Recalculate re-derives entry percentages and the aggregate scores from the
// per-entry Score and MaxScore. It is idempotent.
func (r *Response) Recalculate() {
	total, max := 0, 0
	for i := range r.Responses {
		entry := &r.Responses[i]
		total += entry.Score
		max += entry.MaxScore
		entry.Percentage = Percentage(entry.Score, entry.MaxScore)
	}
	r.TotalScore = total
	r.MaxTotalScore = max
	r.OverallPercentage = Percentage(total, max)
}

// Percentage is round(score/max*100), or 0 when max is 0.
func Percentage(score, max int) int {
	if max <= 0 {
		return 0
	}
	return int(math.Round(float64(score) / float64(max) * 100))
}

// ResponseWithForm is a response with its parent form's content embedded.
// Form is nil when the form has since been deleted.
type ResponseWithForm struct {
	Response
	Form *EmbeddedForm `json:"form"`
}

type EmbeddedForm struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Questions   []Question `json:"questions"`
}

// SubmissionEvent is broadcast to feed subscribers and the event bus after a
// response is stored.
type SubmissionEvent struct {
	FormID        string    `json:"formId"`
	ResponseID    string    `json:"responseId"`
	TotalScore    int       `json:"totalScore"`
	MaxTotalScore int       `json:"maxTotalScore"`
	Percentage    int       `json:"percentage"`
	SubmittedAt   time.Time `json:"submittedAt"`
}
