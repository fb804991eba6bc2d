// Package logger provides the structured logging engine for beamfleet.
// Uses log/slog writing to stderr and, optionally, a rotation-free
// append-only file.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Logger wraps slog.Logger with beamfleet-specific utilities.
type Logger struct {
	*slog.Logger
	auditW io.Writer // append-only audit log writer (nil = disabled)
}

// Init initialises the logger. level is one of debug|info|warn|error;
// format is json|text. fleetHome, if non-empty, is where audit.log is
// appended.
func Init(level, format, logFile, fleetHome string, debug bool) (*Logger, error) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	if debug {
		lvl = slog.LevelDebug
	}

	writers := []io.Writer{os.Stderr}

	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0750); err == nil {
			if f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640); err == nil {
				writers = append(writers, f)
			}
		}
	}

	out := io.MultiWriter(writers...)

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: lvl, AddSource: debug}
	if format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	base := slog.New(handler)
	slog.SetDefault(base)

	var auditW io.Writer
	if fleetHome != "" {
		auditPath := filepath.Join(fleetHome, "audit.log")
		if af, err := os.OpenFile(auditPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640); err == nil {
			auditW = af
		}
	}

	return &Logger{Logger: base, auditW: auditW}, nil
}

// AuditEntry represents a single audit log event — one per operation
// invocation on the operation surface (spec §6).
type AuditEntry struct {
	Timestamp time.Time `json:"ts"`
	Op        string    `json:"op"`
	Node      string    `json:"node,omitempty"`
	Result    string    `json:"result"` // ok | err
	Detail    string    `json:"detail,omitempty"`
}

// Audit writes an append-only audit log entry and mirrors it to the
// structured logger at info level.
func (l *Logger) Audit(entry AuditEntry) {
	l.Info("audit", "op", entry.Op, "node", entry.Node, "result", entry.Result)
	if l.auditW == nil {
		return
	}
	line := fmt.Sprintf(`{"ts":%q,"op":%q,"node":%q,"result":%q,"detail":%q}`+"\n",
		entry.Timestamp.UTC().Format(time.RFC3339),
		entry.Op, entry.Node, entry.Result, entry.Detail,
	)
	_, _ = l.auditW.Write([]byte(line))
}
