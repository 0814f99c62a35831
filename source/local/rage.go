package local

import (
	"math"
	"sync"

	"github.com/jonreiter/govader"
)

var analyzer = sync.OnceValue(govader.NewSentimentIntensityAnalyzer)

// RageScore rates a headline from 0 (calm) to 100 (inflammatory), one decimal.
// It weighs the VADER negative share against the overall intensity.
func RageScore(text string) float64 {
	if text == "" {
		return 0
	}
	s := analyzer().PolarityScores(text)
	score := (s.Negative*0.6 + math.Abs(s.Compound)*0.4) * 100
	return math.Round(score*10) / 10
}
