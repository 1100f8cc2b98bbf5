package core

import (
	"bytes"
	"strings"
	"testing"
)

func TestConsoleLogger_Threshold(t *testing.T) {
	cases := []struct {
		level     string
		wantDebug bool
		wantInfo  bool
	}{
		{"DEBUG", true, true},
		{"info", false, true},
		{"ERROR", false, false},
		// Unrecognised levels fall back to INFO.
		{"warning", false, true},
		{"", false, true},
	}
	for _, tc := range cases {
		var buf bytes.Buffer
		logger := NewConsoleLogger(&buf, tc.level)
		logger.Debug("debug line")
		logger.Info("info line")

		out := buf.String()
		if got := strings.Contains(out, "debug line"); got != tc.wantDebug {
			t.Errorf("level %q: debug printed=%v, want %v", tc.level, got, tc.wantDebug)
		}
		if got := strings.Contains(out, "info line"); got != tc.wantInfo {
			t.Errorf("level %q: info printed=%v, want %v", tc.level, got, tc.wantInfo)
		}
	}
}

func TestLogger_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewConsoleLogger(&buf, "INFO").With(map[string]interface{}{"component": "chat"})
	logger.Info("turn settled", "messages", 2)

	if !strings.Contains(buf.String(), "| component=chat messages=2") {
		t.Errorf("unexpected line %q", buf.String())
	}
}
