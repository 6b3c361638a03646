package applications

import (
	"math"

	"github.com/grantportal/backend/internal/models"
)

// Score bounds for reviews.
const (
	MinScore = 1
	MaxScore = 5
)

// Summarize aggregates reviews. The average is rounded to two decimals and omitted when there are none.
func Summarize(reviews []models.Review) models.ReviewSummary {
	s := models.ReviewSummary{Count: len(reviews), Reviews: reviews}
	if s.Reviews == nil {
		s.Reviews = []models.Review{}
	}
	if len(reviews) == 0 {
		return s
	}
	total := 0
	for _, r := range reviews {
		total += r.Score
	}
	avg := math.Round(float64(total)/float64(len(reviews))*100) / 100
	s.AverageScore = &avg
	return s
}
