// Package grades implements the per-submission grade tree: a polymorphic
// tree of sections and leaf scores whose structure (names, point values,
// hint lists) is shared across every submission while the scoring state is
// per submission.
package grades

import (
	"math"
	"strconv"
)

// ScoreNumber is a point value that serializes as an integer whenever it
// is integral, and as a float otherwise.
type ScoreNumber float64

// MarshalJSON emits 14 rather than 14.0 for integral values.
func (n ScoreNumber) MarshalJSON() ([]byte, error) {
	return []byte(FormatScore(float64(n))), nil
}

// FormatScore renders a point value as a decimal string, dropping the
// fractional part when it is zero.
func FormatScore(v float64) string {
	if isIntegral(v) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatScoreSigned is FormatScore with an explicit leading sign, used for
// hint values and point adjustments.
func FormatScoreSigned(v float64) string {
	s := FormatScore(v)
	if v >= 0 {
		return "+" + s
	}
	return s
}

func isIntegral(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v) && v == math.Trunc(v)
}
