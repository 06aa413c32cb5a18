package util

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLogger(t *testing.T) {
	cases := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"ERROR", zerolog.ErrorLevel},
		{"not-a-level", zerolog.InfoLevel},
	}
	for _, tc := range cases {
		if got := NewLogger(tc.level).GetLevel(); got != tc.want {
			t.Fatalf("level %q: expected %s, got %s", tc.level, tc.want, got)
		}
	}
}
