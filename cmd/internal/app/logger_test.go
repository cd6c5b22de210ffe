package app

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want slog.Level
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: "warn", want: slog.LevelWarn},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "unknown", want: slog.LevelInfo},
		{in: "", want: slog.LevelInfo},
	}

	for _, tc := range cases {
		got := parseLogLevel(tc.in)
		if got != tc.want {
			t.Fatalf("parseLogLevel(%q)=%v want=%v", tc.in, got, tc.want)
		}
	}
}

func TestNewLogger_Formats(t *testing.T) {
	t.Parallel()

	var jsonBuf, textBuf bytes.Buffer

	newLogger(&jsonBuf, "info", "json").Info("session.issue", "username", "amy")
	newLogger(&textBuf, "info", "TEXT").Info("session.issue", "username", "amy")

	if !strings.HasPrefix(jsonBuf.String(), "{") || !strings.Contains(jsonBuf.String(), `"msg":"session.issue"`) {
		t.Fatalf("expected json output, got %q", jsonBuf.String())
	}
	if !strings.Contains(textBuf.String(), "msg=session.issue") || !strings.Contains(textBuf.String(), "username=amy") {
		t.Fatalf("expected text output, got %q", textBuf.String())
	}
}

func TestNewLogger_FiltersBelowLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := newLogger(&buf, "warn", "json")
	log.Info("job.done")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn, got %q", buf.String())
	}
	log.Warn("job.skip")
	if !strings.Contains(buf.String(), "job.skip") {
		t.Fatalf("warn should pass, got %q", buf.String())
	}
}
