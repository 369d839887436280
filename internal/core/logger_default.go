package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/pterm/pterm"
)

// DefaultLogger prints human-oriented lines through pterm prefix printers,
// or slog text records when Structured is set.
type DefaultLogger struct {
	level      LogLevel
	handler    *slog.Logger
	output     io.Writer
	structured bool
	attrs      []any
}

func NewDefaultLogger(output io.Writer, level LogLevel) *DefaultLogger {
	return newLogger(output, level, false)
}

// NewStructuredLogger logs slog text records only, for non-interactive runs.
func NewStructuredLogger(output io.Writer, level LogLevel) *DefaultLogger {
	return newLogger(output, level, true)
}

func newLogger(output io.Writer, level LogLevel, structured bool) *DefaultLogger {
	var slogLevel slog.Level
	switch level {
	case LevelTrace, LevelDebug:
		slogLevel = slog.LevelDebug
	case LevelInfo:
		slogLevel = slog.LevelInfo
	case LevelWarn:
		slogLevel = slog.LevelWarn
	case LevelError:
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	handler := slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{
		Level: slogLevel,
	}))

	return &DefaultLogger{
		level:      level,
		handler:    handler,
		output:     output,
		structured: structured,
	}
}

func (l *DefaultLogger) Trace(msg string, args ...any) {
	if l.level <= LevelTrace {
		l.emit(pterm.Debug, "TRACE: "+msg, slog.LevelDebug, args)
	}
}

func (l *DefaultLogger) Debug(msg string, args ...any) {
	if l.level <= LevelDebug {
		l.emit(pterm.Debug, msg, slog.LevelDebug, args)
	}
}

func (l *DefaultLogger) Info(msg string, args ...any) {
	if l.level <= LevelInfo {
		l.emit(pterm.Info, msg, slog.LevelInfo, args)
	}
}

func (l *DefaultLogger) Warn(msg string, args ...any) {
	if l.level <= LevelWarn {
		l.emit(pterm.Warning, msg, slog.LevelWarn, args)
	}
}

func (l *DefaultLogger) Error(msg string, args ...any) {
	if l.level <= LevelError {
		l.emit(pterm.Error, msg, slog.LevelError, args)
	}
}

func (l *DefaultLogger) emit(printer pterm.PrefixPrinter, msg string, level slog.Level, args []any) {
	if l.structured {
		l.handler.Log(context.Background(), level, msg, args...)
		return
	}
	// pterm suppresses Debug output unless debug messages are enabled globally.
	printer.Debugger = false
	printer.WithWriter(l.output).Println(msg + formatAttrs(append(l.attrs[:len(l.attrs):len(l.attrs)], args...)))
}

func formatAttrs(args []any) string {
	if len(args) == 0 {
		return ""
	}
	var b strings.Builder
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			fmt.Fprintf(&b, " %v", args[i])
			break
		}
		value := fmt.Sprint(args[i+1])
		if strings.Contains(value, "\n") {
			fmt.Fprintf(&b, "\n%s", value)
			continue
		}
		fmt.Fprintf(&b, " %v=%s", args[i], value)
	}
	return b.String()
}

func (l *DefaultLogger) With(args ...any) Logger {
	return &DefaultLogger{
		level:      l.level,
		handler:    l.handler.With(args...),
		output:     l.output,
		structured: l.structured,
		attrs:      append(l.attrs[:len(l.attrs):len(l.attrs)], args...),
	}
}

func (l *DefaultLogger) SetLevel(level LogLevel) {
	l.level = level
}
