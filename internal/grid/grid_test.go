package grid

import (
	"reflect"
	"testing"
)

func TestDefault(t *testing.T) {
	g := Default()
	if len(g) != len(DefaultThresholds)*len(DefaultWindows) {
		t.Fatalf("len = %d, want %d", len(g), len(DefaultThresholds)*len(DefaultWindows))
	}
	if g[0] != (ParameterPoint{Threshold: 8, Window: 0.1}) {
		t.Errorf("first point = %v", g[0])
	}
	if g[len(g)-1] != (ParameterPoint{Threshold: 50, Window: 1.0}) {
		t.Errorf("last point = %v", g[len(g)-1])
	}
	if err := g.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestCartesian_CanonicalOrder(t *testing.T) {
	g, err := Cartesian([]float64{10, 8, 10}, []float64{0.4, 0.1})
	if err != nil {
		t.Fatal(err)
	}
	want := Grid{
		{Threshold: 8, Window: 0.1},
		{Threshold: 8, Window: 0.4},
		{Threshold: 10, Window: 0.1},
		{Threshold: 10, Window: 0.4},
	}
	if !reflect.DeepEqual(g, want) {
		t.Errorf("got %v, want %v", g, want)
	}
	if !reflect.DeepEqual(g.Thresholds(), []float64{8, 10}) {
		t.Errorf("Thresholds() = %v", g.Thresholds())
	}
	if !reflect.DeepEqual(g.Windows(), []float64{0.1, 0.4}) {
		t.Errorf("Windows() = %v", g.Windows())
	}
	if g.MaxWindow() != 0.4 {
		t.Errorf("MaxWindow() = %v", g.MaxWindow())
	}
}

func TestCartesian_Errors(t *testing.T) {
	if _, err := Cartesian(nil, []float64{1}); err == nil {
		t.Error("expected error for empty thresholds")
	}
	if _, err := Cartesian([]float64{1}, nil); err == nil {
		t.Error("expected error for empty windows")
	}
	big := make([]float64, 101)
	for i := range big {
		big[i] = float64(i + 1)
	}
	if _, err := Cartesian(big, big); err == nil {
		t.Error("expected error for oversized grid")
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		grid    Grid
		wantErr bool
	}{
		{"ok", Grid{{Threshold: 1, Window: 1}}, false},
		{"empty", Grid{}, true},
		{"zero_threshold", Grid{{Threshold: 0, Window: 1}}, true},
		{"negative_window", Grid{{Threshold: 1, Window: -1}}, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.grid.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
