package grid

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RangeSpec defines a floating-point parameter range.
type RangeSpec struct {
	Min  float64
	Max  float64
	Step float64
}

// ParseRangeSpec parses a "min:max:step" string into a RangeSpec.
// Returns an error if the format is invalid or values cannot be parsed.
func ParseRangeSpec(s string) (RangeSpec, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return RangeSpec{}, fmt.Errorf("invalid range format %q: expected min:max:step", s)
	}

	min, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return RangeSpec{}, fmt.Errorf("invalid min value %q: %w", parts[0], err)
	}

	max, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return RangeSpec{}, fmt.Errorf("invalid max value %q: %w", parts[1], err)
	}

	step, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil {
		return RangeSpec{}, fmt.Errorf("invalid step value %q: %w", parts[2], err)
	}

	if step <= 0 {
		return RangeSpec{}, fmt.Errorf("step must be positive, got %f", step)
	}

	return RangeSpec{Min: min, Max: max, Step: step}, nil
}

// GenerateRange generates values from min to max (inclusive) stepping by
// step, rounded to 1e-3 to avoid accumulation drift. Returns nil when the
// range is empty or would exceed maxPoints values.
func GenerateRange(min, max, step float64) []float64 {
	if step <= 0 || min > max {
		return nil
	}

	expectedCount := int((max-min)/step) + 1
	if expectedCount > maxPoints || expectedCount < 0 {
		return nil
	}

	var result []float64
	for i := 0; i < expectedCount+1 && len(result) < maxPoints; i++ {
		rounded := math.Round((min+float64(i)*step)*1000) / 1000
		if rounded <= max {
			result = append(result, rounded)
		}
	}
	return result
}

// Geometric returns n values spaced geometrically from min to max
// inclusive, the usual spacing for SNR thresholds.
func Geometric(min, max float64, n int) ([]float64, error) {
	switch {
	case n <= 0:
		return nil, fmt.Errorf("geometric range needs at least one value, got %d", n)
	case min <= 0 || max < min:
		return nil, fmt.Errorf("geometric range needs 0 < min <= max, got %g..%g", min, max)
	case n > maxPoints:
		return nil, fmt.Errorf("geometric range of %d values exceeds safe limit of %d", n, maxPoints)
	case n == 1:
		return []float64{min}, nil
	}
	ratio := math.Pow(max/min, 1/float64(n-1))
	out := make([]float64, n)
	for i := range out {
		out[i] = min * math.Pow(ratio, float64(i))
	}
	out[n-1] = max
	return out, nil
}

// ParseCSVFloat64s parses a comma-separated list of float64 values.
// Returns nil, nil for empty input strings.
func ParseCSVFloat64s(s string) ([]float64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float '%s': %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// ParseParamList parses a comma-separated list of floats or a
// range. A string containing a colon is treated as "min:max:step";
// "geom:min:max:n" yields geometric spacing.
func ParseParamList(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	if rest, ok := strings.CutPrefix(s, "geom:"); ok {
		parts := strings.Split(rest, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid geometric range %q: expected geom:min:max:n", s)
		}
		min, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid min value %q: %w", parts[0], err)
		}
		max, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid max value %q: %w", parts[1], err)
		}
		n, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil {
			return nil, fmt.Errorf("invalid count %q: %w", parts[2], err)
		}
		return Geometric(min, max, n)
	}

	if strings.Contains(s, ":") {
		spec, err := ParseRangeSpec(s)
		if err != nil {
			return nil, err
		}
		return GenerateRange(spec.Min, spec.Max, spec.Step), nil
	}

	return ParseCSVFloat64s(s)
}

// Parse builds a grid from two ParseParamList strings.
func Parse(thresholds, windows string) (Grid, error) {
	th, err := ParseParamList(thresholds)
	if err != nil {
		return nil, fmt.Errorf("thresholds: %w", err)
	}
	ws, err := ParseParamList(windows)
	if err != nil {
		return nil, fmt.Errorf("windows: %w", err)
	}
	return Cartesian(th, ws)
}
