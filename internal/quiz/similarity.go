package quiz

import (
	"math"
	"strings"
)

// cosineSimilarity is 0 for zero-magnitude vectors. Callers check that the
// sizes match.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func containsKeyword(answer string, keywords []string) bool {
	lower := strings.ToLower(answer)
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// AdjustedSimilarity applies the keyword bonus to sim, capped at 1.
func (c GradingConfig) AdjustedSimilarity(sim float64, answer string, keywords []string) float64 {
	if containsKeyword(answer, keywords) {
		sim += c.KeywordBonus
	}
	return math.Min(sim, 1)
}

// Credit maps an adjusted similarity onto the fraction of points awarded.
func (c GradingConfig) Credit(adjusted float64) float64 {
	switch {
	case adjusted >= c.FullThreshold:
		return 1
	case adjusted >= c.PartialThreshold:
		return c.PartialCredit
	default:
		return 0
	}
}

// Points converts credit into awarded points, rounded half up to the
// configured granularity and never above maxPoints.
func (c GradingConfig) Points(credit float64, maxPoints int) float64 {
	return math.Min(roundHalfUp(credit*float64(maxPoints), c.PointGranularity), float64(maxPoints))
}

// roundHalfUp rounds a non-negative x to the nearest multiple of step. The
// epsilon absorbs binary representation error at exact halves.
func roundHalfUp(x, step float64) float64 {
	if step <= 0 {
		return x
	}
	inv := math.Round(1 / step)
	return math.Floor(x*inv+0.5+1e-9) / inv
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
