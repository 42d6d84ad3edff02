// Package cli implements the wheelwright command-line interface.
//
// The CLI resolves Python requirements against a package index through a
// two-tier metadata cache and writes the result in one of several formats.
// It is built on cobra, logs with charmbracelet/log and styles terminal
// output with lipgloss.
//
// # Commands
//
//   - resolve: Resolve requirements and print the selection (text, json,
//     lock, dot or svg)
//   - lock: Resolve requirements and write a lock file
//   - cache: Inspect and manage the metadata cache
//   - history: List and show past local resolutions
//   - serve: Run the HTTP resolution API
//   - completion: Generate shell completion scripts
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Loggers are
// passed through context.Context to the resolution runner.
//
// # Environment
//
//	WHEELWRIGHT_INDEX_URL  package index JSON API root
//	WHEELWRIGHT_CACHE_DIR  cache root (default $XDG_CACHE_HOME/wheelwright)
//	REDIS_URL              use redis as the persisted metadata tier
//	MONGODB_URI            store API server resolutions in MongoDB
package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger creates a logger writing to w at level, with "15:04:05.00"
// timestamps.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress times one operation. Not safe for concurrent use.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg at info level with keyvals and the elapsed time, rounded
// to the millisecond.
func (p *progress) done(msg string, keyvals ...any) {
	keyvals = append(keyvals, "elapsed", time.Since(p.start).Round(time.Millisecond))
	p.logger.Info(msg, keyvals...)
}

type ctxKey int

const loggerKey ctxKey = 0

// withLogger attaches l to ctx.
func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext returns the logger attached to ctx, or log.Default().
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
