package stage

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func restoreLogger(t *testing.T) {
	t.Helper()
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })
}

func silent(l *slog.Logger) bool {
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if l.Enabled(context.Background(), level) {
			return false
		}
	}
	return true
}

func TestLoggerDefaultsToDiscard(t *testing.T) {
	restoreLogger(t)
	SetLogger(nil)
	if l := Logger(); l == nil || !silent(l) {
		t.Errorf("Logger() = %v, want a silent logger", l)
	}
}

func TestSetLoggerRoutesOutput(t *testing.T) {
	restoreLogger(t)
	var buf bytes.Buffer
	custom := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	SetLogger(custom)

	if Logger() != custom {
		t.Fatal("Logger() did not return the installed logger")
	}
	Logger().Warn("atlas full", "glyphs", 3)
	if out := buf.String(); !strings.Contains(out, "atlas full") || !strings.Contains(out, "glyphs=3") {
		t.Errorf("output = %q", out)
	}

	SetLogger(nil)
	if !silent(Logger()) {
		t.Error("SetLogger(nil) should restore the silent logger")
	}
}

func TestLoggerConcurrentAccess(t *testing.T) {
	restoreLogger(t)
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if l := Logger(); l == nil {
				t.Error("Logger() returned nil")
			} else {
				l.Debug("read")
			}
		}()
		go func() {
			defer wg.Done()
			SetLogger(slog.Default())
			SetLogger(nil)
		}()
	}
	wg.Wait()
}
