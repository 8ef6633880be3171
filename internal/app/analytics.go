package app

import (
	"math"
	"time"

	"form-builder-service/internal/domain"
)

const trendDays = 7

var bandLabels = [4]string{"0-25%", "26-50%", "51-75%", "76-100%"}

// Aggregate reduces the stored responses of a form into a report. now anchors
// the trailing seven-day submission trend; days are compared in now's location.
func Aggregate(form domain.Form, responses []domain.Response, now time.Time) domain.AnalyticsReport {
	if len(responses) == 0 {
		return domain.AnalyticsReport{
			QuestionAnalytics:    []domain.QuestionAnalytics{},
			ResponseDistribution: []domain.ScoreBand{},
			SubmissionTrend:      []domain.TrendPoint{},
		}
	}

	var sumScore, sumMax int
	var last time.Time
	bands := make([]domain.ScoreBand, len(bandLabels))
	for i, label := range bandLabels {
		bands[i].Range = label
	}

	for _, r := range responses {
		sumScore += r.TotalScore
		sumMax += r.MaxTotalScore
		if r.SubmittedAt.After(last) {
			last = r.SubmittedAt
		}
		bands[bandIndex(r)].Count++
	}

	report := domain.AnalyticsReport{
		TotalResponses:       len(responses),
		AverageScore:         round2(float64(sumScore) / float64(len(responses))),
		CompletionRate:       100,
		QuestionAnalytics:    questionAnalytics(form, responses),
		ResponseDistribution: bands,
		SubmissionTrend:      submissionTrend(responses, now),
	}
	if sumMax > 0 {
		report.AveragePercentage = round2(float64(sumScore) / float64(sumMax) * 100)
	}
	if !last.IsZero() {
		report.LastSubmission = &last
	}
	return report
}

func questionAnalytics(form domain.Form, responses []domain.Response) []domain.QuestionAnalytics {
	out := make([]domain.QuestionAnalytics, 0, len(form.Questions))
	for i, q := range form.Questions {
		qa := domain.QuestionAnalytics{
			QuestionID:   q.ID,
			QuestionText: q.Prompt(),
			QuestionType: q.Type,
		}
		for _, r := range responses {
			if i >= len(r.Responses) {
				continue
			}
			qa.TotalAnswers++
			if r.Responses[i].FullyCorrect() {
				qa.CorrectAnswers++
			}
		}
		if qa.TotalAnswers > 0 {
			qa.Accuracy = float64(qa.CorrectAnswers) / float64(qa.TotalAnswers) * 100
		}
		out = append(out, qa)
	}
	return out
}

func bandIndex(r domain.Response) int {
	var pct float64
	if r.MaxTotalScore > 0 {
		pct = float64(r.TotalScore) / float64(r.MaxTotalScore) * 100
	}
	switch {
	case pct <= 25:
		return 0
	case pct <= 50:
		return 1
	case pct <= 75:
		return 2
	default:
		return 3
	}
}

func submissionTrend(responses []domain.Response, now time.Time) []domain.TrendPoint {
	loc := now.Location()
	counts := make(map[string]int, trendDays)
	for _, r := range responses {
		counts[r.SubmittedAt.In(loc).Format(time.DateOnly)]++
	}

	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, loc)
	trend := make([]domain.TrendPoint, 0, trendDays)
	for i := trendDays - 1; i >= 0; i-- {
		day := today.AddDate(0, 0, -i).Format(time.DateOnly)
		trend = append(trend, domain.TrendPoint{Date: day, Count: counts[day]})
	}
	return trend
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
