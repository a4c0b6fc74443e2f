// internal/progress/progress.go
package progress

import (
	"context"
	"log/slog"
)

// Progress receives human-oriented step events. Implementations must be safe to call
// from multiple goroutines and must never fail.
type Progress interface {
	Start(msg string)
	Update(msg string)
	Success(msg string)
	Error(msg string)
	Warning(msg string)
	Info(msg string)
}

// Logger writes each event as a slog record carrying a "step" attribute.
// Start, Update and Info are debug records unless verbose is set.
type Logger struct {
	logger  *slog.Logger
	verbose bool
}

// NewLogger returns a Logger writing to logger, or slog.Default when nil.
func NewLogger(logger *slog.Logger, verbose bool) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger, verbose: verbose}
}

func (l *Logger) chatty() slog.Level {
	if l.verbose {
		return slog.LevelInfo
	}
	return slog.LevelDebug
}

func (l *Logger) log(level slog.Level, step, msg string) {
	l.logger.Log(context.Background(), level, msg, "step", step)
}

func (l *Logger) Start(msg string)   { l.log(l.chatty(), "start", msg) }
func (l *Logger) Update(msg string)  { l.log(l.chatty(), "update", msg) }
func (l *Logger) Success(msg string) { l.log(slog.LevelInfo, "success", msg) }
func (l *Logger) Error(msg string)   { l.log(slog.LevelError, "error", msg) }
func (l *Logger) Warning(msg string) { l.log(slog.LevelWarn, "warning", msg) }
func (l *Logger) Info(msg string)    { l.log(l.chatty(), "info", msg) }

// Nop discards every event.
type Nop struct{}

func (Nop) Start(string)   {}
func (Nop) Update(string)  {}
func (Nop) Success(string) {}
func (Nop) Error(string)   {}
func (Nop) Warning(string) {}
func (Nop) Info(string)    {}

var (
	_ Progress = (*Logger)(nil)
	_ Progress = Nop{}
)
