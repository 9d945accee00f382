package logger_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Golani45/uthgard/pkg/logger"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{name: "debug", input: "debug", want: slog.LevelDebug},
		{name: "info", input: "info", want: slog.LevelInfo},
		{name: "warn", input: "warn", want: slog.LevelWarn},
		{name: "error", input: "error", want: slog.LevelError},
		{name: "empty defaults to info", input: "", want: slog.LevelInfo},
		{name: "unknown defaults to info", input: "trace", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := logger.ParseLevel(tt.input)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	l := logger.New("info", "text")
	require.NotNil(t, l)
}

func TestNewWithWriter_TextFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := logger.NewWithWriter(&buf, "info", "text")
	l.Info("tick complete", "keeps", 24)

	output := buf.String()
	assert.Contains(t, output, "level=INFO")
	assert.Contains(t, output, "tick complete")
	assert.Contains(t, output, "keeps=24")
}

func TestNewWithWriter_JSONFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := logger.NewWithWriter(&buf, "info", "json")
	l.Info("tick complete")

	output := buf.String()
	assert.Contains(t, output, `"level":"INFO"`)
	assert.Contains(t, output, `"msg":"tick complete"`)
}

func TestWithComponent(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := logger.WithComponent(logger.NewWithWriter(&buf, "info", "text"), "engine")
	l.Info("tick complete")

	assert.Contains(t, buf.String(), "component=engine")
}

func TestWithKeep(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := logger.WithKeep(logger.NewWithWriter(&buf, "info", "json"), "caer-benowyc")
	l.Info("baseline advanced")

	assert.Contains(t, buf.String(), `"keep":"caer-benowyc"`)
}

func TestNewWithWriter_LevelFiltering(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := logger.NewWithWriter(&buf, "warn", "text")
	l.Info("suppressed")
	l.Warn("kept")

	output := buf.String()
	assert.NotContains(t, output, "suppressed")
	assert.Contains(t, output, "kept")
}
