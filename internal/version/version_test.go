package version

import "testing"

func TestString(t *testing.T) {
	defer func(v, sha, bt string) { Version, GitSHA, BuildTime = v, sha, bt }(Version, GitSHA, BuildTime)

	Version, GitSHA, BuildTime = "1.2.0", "abc1234", "2026-03-01T00:00:00Z"
	want := "veto 1.2.0 (commit abc1234, built 2026-03-01T00:00:00Z)"
	if got := String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
