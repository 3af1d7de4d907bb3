package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"log/slog"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		m := map[string]any{}
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("bad json %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestJSONHandler(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewLogger("info", "json", &buf)
	if err != nil {
		t.Fatal(err)
	}

	log.Debug("hidden")
	log.With("backend", "software").WithGroup("frame").Info("submitted",
		"number", 7,
		"viewport", image.Pt(64, 48),
		slog.Group("stats", "batches", 3),
	)
	log.Warn("load failed", "err", errors.New("boom"))

	lines := decodeLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2: %s", len(lines), buf.String())
	}
	first := lines[0]
	want := map[string]any{
		"level":               "info",
		"msg":                 "submitted",
		"backend":             "software",
		"frame.number":        float64(7),
		"frame.viewport":      "(64,48)",
		"frame.stats.batches": float64(3),
	}
	for k, v := range want {
		if first[k] != v {
			t.Errorf("%s = %v, want %v", k, first[k], v)
		}
	}
	if lines[1]["level"] != "warn" || lines[1]["err"] != "boom" {
		t.Errorf("warn line = %v", lines[1])
	}
}

func TestConsoleHandler(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewLogger("debug", "console", &buf)
	if err != nil {
		t.Fatal(err)
	}
	log.Debug("atlas reset", "size", 1024)
	out := buf.String()
	if !strings.Contains(out, "DEBUG") || !strings.Contains(out, "atlas reset") || !strings.Contains(out, "1024") {
		t.Errorf("output = %q", out)
	}
}

func TestEnabled(t *testing.T) {
	h, err := New("warn", "json", &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	for _, tt := range []struct {
		level slog.Level
		want  bool
	}{
		{slog.LevelDebug, false},
		{slog.LevelInfo, false},
		{slog.LevelWarn, true},
		{slog.LevelError, true},
	} {
		if got := h.Enabled(context.Background(), tt.level); got != tt.want {
			t.Errorf("Enabled(%v) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestNewErrors(t *testing.T) {
	if _, err := New("loud", "json", nil); err == nil {
		t.Error("unknown level should fail")
	}
	if _, err := New("info", "xml", nil); err == nil {
		t.Error("unknown format should fail")
	}
}
