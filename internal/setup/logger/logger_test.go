package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestNew_Level(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l := New(tt.level, false)
			if l.GetLevel() != tt.want {
				t.Errorf("level: got %v, want %v", l.GetLevel(), tt.want)
			}
			if log.Logger.GetLevel() != tt.want {
				t.Errorf("global logger level: got %v, want %v", log.Logger.GetLevel(), tt.want)
			}
		})
	}
}
