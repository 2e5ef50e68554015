package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) {
		called = true
	})
	Logf("test message")
	if !called {
		t.Error("Custom logger was not called")
	}

	// nil installs a no-op logger
	called = false
	SetLogger(nil)
	Logf("test message")
	if called {
		t.Error("No-op logger should not have triggered callback")
	}
}

func TestLogf_Default(t *testing.T) {
	if Logf == nil {
		t.Error("Logf should not be nil by default")
	}

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Logf panicked: %v", r)
		}
	}()

	Logf("test message: %s", "value")
}

func TestComponent(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var lines []string
	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})

	logf := Component("veto")
	logf("round %d committed", 3)

	// SetLogger after Component still takes effect
	var later []string
	SetLogger(func(format string, v ...interface{}) {
		later = append(later, fmt.Sprintf(format, v...))
	})
	logf("stopped")

	if len(lines) != 1 || lines[0] != "[veto] round 3 committed" {
		t.Errorf("unexpected lines: %q", lines)
	}
	if len(later) != 1 || later[0] != "[veto] stopped" {
		t.Errorf("unexpected later lines: %q", later)
	}
}
