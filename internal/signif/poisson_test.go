package signif

import (
	"math"
	"testing"
)

func TestSignificance_KnownValues(t *testing.T) {
	testCases := []struct {
		name     string
		observed int
		expected float64
		want     float64
	}{
		// P(X >= 1) = 1 - e^-mu
		{"one_of_small_mean", 1, 0.0002, -math.Log10(-math.Expm1(-0.0002))},
		{"one_of_half", 1, 0.5, -math.Log10(-math.Expm1(-0.5))},
		// P(X >= 2 | 0.5) = 1 - e^-0.5 (1 + 0.5)
		{"two_of_half", 2, 0.5, -math.Log10(1 - math.Exp(-0.5)*1.5)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, degenerate := Significance(tc.observed, tc.expected)
			if degenerate {
				t.Error("unexpected degenerate flag")
			}
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("Significance(%d, %v) = %v, want %v", tc.observed, tc.expected, got, tc.want)
			}
		})
	}
}

func TestSignificance_NotOverRepresented(t *testing.T) {
	for _, tc := range []struct {
		observed int
		expected float64
	}{{0, 0}, {0, 3}, {2, 2}, {1, 5}, {-1, 1}, {3, math.NaN()}} {
		got, degenerate := Significance(tc.observed, tc.expected)
		if got != 0 || degenerate {
			t.Errorf("Significance(%d, %v) = %v, %v; want 0, false", tc.observed, tc.expected, got, degenerate)
		}
	}
}

func TestSignificance_ZeroExpected(t *testing.T) {
	got, degenerate := Significance(1, 0)
	if !degenerate {
		t.Error("expected degenerate flag")
	}
	if got != MaxSignificance || math.IsInf(got, 0) {
		t.Errorf("Significance(1, 0) = %v, want MaxSignificance", got)
	}
}

func TestSignificance_Monotonic(t *testing.T) {
	for _, mu := range []float64{0.001, 0.3, 3, 40} {
		prev := 0.0
		for k := 0; k <= 400; k++ {
			s, _ := Significance(k, mu)
			if math.IsNaN(s) || math.IsInf(s, 0) || s < 0 {
				t.Fatalf("Significance(%d, %v) = %v", k, mu, s)
			}
			if s < prev-1e-9 {
				t.Fatalf("not monotonic at k=%d mu=%v: %v < %v", k, mu, s, prev)
			}
			prev = s
		}
	}
}

func TestSignificance_DeepTailStaysFinite(t *testing.T) {
	// P(X >= 400 | 0.001) ~ 1e-2050, far below float64 range.
	got, _ := Significance(400, 0.001)
	want := -logTail(400, 0.001) / math.Ln10
	if math.IsInf(got, 0) || got < 2000 {
		t.Fatalf("Significance(400, 0.001) = %v", got)
	}
	if math.Abs(got-want) > 1e-6 {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestLogTail_MatchesDirectSum(t *testing.T) {
	k, mu := 5, 1.5
	direct := 0.0
	for j := 0; j < k; j++ {
		lg, _ := math.Lgamma(float64(j + 1))
		direct += math.Exp(float64(j)*math.Log(mu) - mu - lg)
	}
	want := math.Log(1 - direct)
	if got := logTail(k, mu); math.Abs(got-want) > 1e-9 {
		t.Errorf("logTail(%d, %v) = %v, want %v", k, mu, got, want)
	}
}
