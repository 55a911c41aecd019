package utils

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
		"":        LevelInfo,
		"verbose": LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v; want %v", in, got, want)
		}
	}
}

func TestLoggerFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerTo(&buf)
	log.SetLevel(LevelWarn)

	log.Debug("debug %d", 1)
	log.Info("info %d", 2)
	log.Warn("warn %d", 3)
	log.Error("error %d", 4)

	out := buf.String()
	for _, s := range []string{"debug 1", "info 2"} {
		if strings.Contains(out, s) {
			t.Errorf("output should not contain %q: %s", s, out)
		}
	}
	for _, s := range []string{"warn 3", "error 4"} {
		if !strings.Contains(out, s) {
			t.Errorf("output should contain %q: %s", s, out)
		}
	}
}
