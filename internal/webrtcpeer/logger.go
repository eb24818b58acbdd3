package webrtcpeer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pion/logging"
)

// levelTrace sits below slog's debug level; pion's trace output is very
// chatty.
const levelTrace = slog.LevelDebug - 4

type loggerFactory struct {
	log *slog.Logger
}

// NewLoggerFactory routes pion's scoped loggers into log, tagging every
// record with the pion scope ("ice", "dtls", "sctp", ...).
func NewLoggerFactory(log *slog.Logger) logging.LoggerFactory {
	return loggerFactory{log: log}
}

func (f loggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return &slogLeveledLogger{log: f.log.With("pion_scope", scope)}
}

type slogLeveledLogger struct {
	log *slog.Logger
}

func (l *slogLeveledLogger) emit(level slog.Level, msg string) {
	l.log.Log(context.Background(), level, msg)
}

func (l *slogLeveledLogger) Trace(msg string) { l.emit(levelTrace, msg) }
func (l *slogLeveledLogger) Tracef(format string, args ...interface{}) {
	l.emit(levelTrace, fmt.Sprintf(format, args...))
}
func (l *slogLeveledLogger) Debug(msg string) { l.emit(slog.LevelDebug, msg) }
func (l *slogLeveledLogger) Debugf(format string, args ...interface{}) {
	l.emit(slog.LevelDebug, fmt.Sprintf(format, args...))
}
func (l *slogLeveledLogger) Info(msg string) { l.emit(slog.LevelInfo, msg) }
func (l *slogLeveledLogger) Infof(format string, args ...interface{}) {
	l.emit(slog.LevelInfo, fmt.Sprintf(format, args...))
}
func (l *slogLeveledLogger) Warn(msg string) { l.emit(slog.LevelWarn, msg) }
func (l *slogLeveledLogger) Warnf(format string, args ...interface{}) {
	l.emit(slog.LevelWarn, fmt.Sprintf(format, args...))
}
func (l *slogLeveledLogger) Error(msg string) { l.emit(slog.LevelError, msg) }
func (l *slogLeveledLogger) Errorf(format string, args ...interface{}) {
	l.emit(slog.LevelError, fmt.Sprintf(format, args...))
}
