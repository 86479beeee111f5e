package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{" info ", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestInitJSON(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	var buf bytes.Buffer
	logger := Init(&buf, slog.LevelInfo, true)
	logger.Debug("hidden")
	slog.Info("build finished", "errors", 2)

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("expected one JSON record, got error: %v\noutput: %s", err, buf.String())
	}
	if m["msg"] != "build finished" {
		t.Errorf("msg = %v", m["msg"])
	}
	if m["errors"] != float64(2) {
		t.Errorf("errors = %v", m["errors"])
	}
}

func TestInitText(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	var buf bytes.Buffer
	Init(&buf, slog.LevelDebug, false).Debug("rule matched", "rule", "^Error ")

	out := buf.String()
	if !strings.Contains(out, `msg="rule matched"`) || !strings.Contains(out, "level=DEBUG") {
		t.Errorf("unexpected text output: %s", out)
	}
}
