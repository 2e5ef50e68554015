package security

import (
	"strings"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "unknown"},
		{"6f1c2a3e-9d7b-4c1e-8f00-123456789abc", "6f1c2a3e-9d7b-4c1e-8f00-123456789abc"},
		{"H1:AUX-A", "H1_AUX-A"},
		{"../../etc/passwd", "etc_passwd"},
		{"run\"\r\nX-Injected: 1", "run_X-Injected_1"},
		{"a  b", "a_b"},
		{"__..", "unknown"},
		{"résumé", "r_sum"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeFilename_Truncates(t *testing.T) {
	got := SanitizeFilename(strings.Repeat("a", 500))
	if len(got) != maxFilenameLen {
		t.Errorf("len = %d, want %d", len(got), maxFilenameLen)
	}
}
