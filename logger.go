package stage

import (
	"log/slog"
	"sync/atomic"
)

var (
	discard = slog.New(slog.DiscardHandler)
	logger  atomic.Pointer[slog.Logger]
)

func init() {
	logger.Store(discard)
}

// SetLogger installs l as the logger for stage and its sub-packages. The
// default discards everything; passing nil restores it. Loader workers log
// concurrently, so SetLogger may be called at any time.
//
// Levels:
//   - Debug: cache and atlas diagnostics (evictions, repacks)
//   - Info: lifecycle (engine start and stop, backend selection)
//   - Warn: recoverable conditions such as notdef fallback, atlas
//     exhaustion, failed loads and device loss
//
// For example:
//
//	stage.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = discard
	}
	logger.Store(l)
}

// Logger returns the logger installed by SetLogger.
func Logger() *slog.Logger {
	return logger.Load()
}
