// SPDX-License-Identifier: MIT
package log

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	prev := GetLevel()
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(prev)
	})
	return &buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
		ok   bool
	}{
		{"debug", LevelDebug, true},
		{"INFO", LevelInfo, true},
		{"warning", LevelWarn, true},
		{"Error", LevelError, true},
		{"", LevelInfo, true},
		{"loud", LevelInfo, false},
	}
	for _, tt := range tests {
		got, ok := ParseLevel(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseLevel(%q) = %s, %v; want %s, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := captureOutput(t)
	SetLevel(LevelWarn)

	Debugf("hidden %d", 1)
	Infof("hidden %d", 2)
	Warnf("shown %d", 3)
	Errorf("shown %d", 4)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("output contains filtered messages: %q", out)
	}
	if !strings.Contains(out, "[WARN]  shown 3") || !strings.Contains(out, "[ERROR] shown 4") {
		t.Errorf("output missing messages: %q", out)
	}
}

func TestLimiter(t *testing.T) {
	buf := captureOutput(t)
	SetLevel(LevelDebug)

	now := time.Unix(0, 0)
	l := NewLimiter(time.Second)
	l.now = func() time.Time { return now }

	l.Warnf("overrun")
	l.Warnf("overrun")
	l.Warnf("overrun")
	now = now.Add(2 * time.Second)
	l.Warnf("overrun")

	out := buf.String()
	if got := strings.Count(out, "overrun"); got != 2 {
		t.Errorf("logged %d times, want 2: %q", got, out)
	}
	if !strings.Contains(out, "(2 similar suppressed)") {
		t.Errorf("missing suppression count: %q", out)
	}
}
