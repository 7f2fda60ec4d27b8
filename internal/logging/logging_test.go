package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestQuietBeforeSetup(t *testing.T) {
	if got := zerolog.GlobalLevel(); got != zerolog.WarnLevel {
		t.Errorf("level before Setup = %v, want %v", got, zerolog.WarnLevel)
	}
}

func TestSetupLevels(t *testing.T) {
	tests := []struct {
		verbosity int
		want      zerolog.Level
	}{
		{0, zerolog.WarnLevel},
		{1, zerolog.InfoLevel},
		{2, zerolog.DebugLevel},
		{3, zerolog.TraceLevel},
		{7, zerolog.TraceLevel},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		Setup(tt.verbosity, &buf)
		if got := zerolog.GlobalLevel(); got != tt.want {
			t.Errorf("Setup(%d) level = %v, want %v", tt.verbosity, got, tt.want)
		}
	}
}

func TestGetTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	Setup(1, &buf)
	logger := Get("install")
	logger.Info().Msg("hello")

	out := buf.String()
	if !strings.Contains(out, "install") {
		t.Errorf("output %q missing component name", out)
	}
	if !strings.Contains(out, "hello") {
		t.Errorf("output %q missing message", out)
	}
}
