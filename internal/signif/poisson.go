// Package signif turns coincidence counts into Poisson significances and
// scans a channel's parameter grid for its most significant point.
package signif

import (
	"math"

	"gonum.org/v1/gonum/mathext"
	"gonum.org/v1/gonum/stat/distuv"
)

// MaxSignificance is assigned when coincidences are observed against an
// expected count of zero. It is finite so scores still order and compare.
const MaxSignificance = math.MaxFloat64

// Significance returns -log10 P(X >= observed) for X ~ Poisson(expected),
// the one-sided upper-tail probability. It is 0 when observed does not
// exceed expected, and MaxSignificance (with degenerate = true) when
// observed > 0 and expected is 0. The result is never negative or NaN and
// is non-decreasing in observed.
func Significance(observed int, expected float64) (sig float64, degenerate bool) {
	if observed <= 0 || math.IsNaN(expected) {
		return 0, false
	}
	if expected <= 0 {
		return MaxSignificance, true
	}
	k := float64(observed)
	if k <= expected {
		return 0, false
	}

	// P(X >= k) for Poisson(mu) equals the regularized lower incomplete
	// gamma function P(k, mu).
	p := mathext.GammaIncReg(k, expected)
	if p > 0 && !math.IsNaN(p) {
		return clamp(-math.Log10(p)), false
	}
	return clamp(-logTail(observed, expected) / math.Ln10), false
}

// logTail computes ln P(X >= k) in log space for k > mu, where the tail is
// dominated by its first term:
//
//	P(X >= k) = pmf(k) * (1 + mu/(k+1) + mu²/((k+1)(k+2)) + ...)
func logTail(k int, mu float64) float64 {
	logPMF := distuv.Poisson{Lambda: mu}.LogProb(float64(k))
	sum, term := 1.0, 1.0
	for i := 1; i < 10000; i++ {
		term *= mu / float64(k+i)
		sum += term
		if term < 1e-17*sum {
			break
		}
	}
	return logPMF + math.Log(sum)
}

func clamp(s float64) float64 {
	switch {
	case math.IsNaN(s) || s < 0:
		return 0
	case s > MaxSignificance:
		return MaxSignificance
	}
	return s
}
