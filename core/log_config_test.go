package core

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestLogLevel(t *testing.T) {
	tests := []struct {
		mode string
		want zerolog.Level
	}{
		{"off", zerolog.Disabled},
		{"0", zerolog.Disabled},
		{" OFF ", zerolog.Disabled},
		{"full", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
		{"anything", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := LogLevel(tt.mode); got != tt.want {
			t.Errorf("LogLevel(%q) = %v; want %v", tt.mode, got, tt.want)
		}
	}
}
