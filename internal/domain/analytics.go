package domain

import "time"

// AnalyticsReport summarizes every stored response of one form.
type AnalyticsReport struct {
	TotalResponses       int                 `json:"totalResponses"`
	AverageScore         float64             `json:"averageScore"`
	AveragePercentage    float64             `json:"averagePercentage"`
	CompletionRate       float64             `json:"completionRate"`
	QuestionAnalytics    []QuestionAnalytics `json:"questionAnalytics"`
	ResponseDistribution []ScoreBand         `json:"responseDistribution"`
	SubmissionTrend      []TrendPoint        `json:"submissionTrend"`
	LastSubmission       *time.Time          `json:"lastSubmission"`
}

type QuestionAnalytics struct {
	QuestionID     string       `json:"questionId"`
	QuestionText   string       `json:"questionText"`
	QuestionType   QuestionType `json:"questionType"`
	TotalAnswers   int          `json:"totalAnswers"`
	CorrectAnswers int          `json:"correctAnswers"`
	Accuracy       float64      `json:"accuracy"`
}

// ScoreBand counts responses whose overall percentage falls in Range.
type ScoreBand struct {
	Range string `json:"range"`
	Count int    `json:"count"`
}

// TrendPoint counts submissions on one calendar day (YYYY-MM-DD).
type TrendPoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}
