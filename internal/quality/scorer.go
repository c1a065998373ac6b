package quality

import (
	"math"

	"github.com/Checker-Finance/screener/pkg/model"
)

const (
	maxROEPoints = 25
	maxDEPoints  = 20
)

// Score combines return-on-equity and debt-to-equity into a normalized 0-100
// quality score with letter grade. Nil inputs mean the provider omitted the
// metric; with both absent the result is {nil score, empty grade}.
//
// The score is earned points over the maximum points of the metrics actually
// available, so an instrument missing one metric is not penalized relative to
// one with both.
func Score(roe, debtToEquity *float64) model.QualityScore {
	earned, available := 0, 0

	if roe != nil {
		earned += roePoints(*roe)
		available += maxROEPoints
	}
	if debtToEquity != nil {
		earned += dePoints(*debtToEquity)
		available += maxDEPoints
	}

	if available == 0 {
		return model.QualityScore{}
	}

	score := int(math.Round(float64(earned) / float64(available) * 100))
	return model.QualityScore{Score: &score, Grade: grade(score)}
}

// roePoints rewards higher return on equity, in percent.
func roePoints(roe float64) int {
	switch {
	case roe >= 20:
		return 25
	case roe >= 15:
		return 20
	case roe >= 10:
		return 12
	case roe > 0:
		return 5
	default:
		return 0
	}
}

// dePoints rewards lower leverage. A negative ratio flags negative equity and
// scores zero outright.
func dePoints(de float64) int {
	switch {
	case de < 0:
		return 0
	case de <= 0.5:
		return 20
	case de <= 1.0:
		return 15
	case de <= 2.0:
		return 8
	case de <= 3.0:
		return 3
	default:
		return 0
	}
}

func grade(score int) string {
	switch {
	case score >= 80:
		return "A"
	case score >= 60:
		return "B"
	case score >= 40:
		return "C"
	default:
		return "D"
	}
}
