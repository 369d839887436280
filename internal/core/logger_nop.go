package core

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Trace(msg string, args ...any) {}
func (NopLogger) Debug(msg string, args ...any) {}
func (NopLogger) Info(msg string, args ...any)  {}
func (NopLogger) Warn(msg string, args ...any)  {}
func (NopLogger) Error(msg string, args ...any) {}
func (n NopLogger) With(args ...any) Logger     { return n }
func (NopLogger) SetLevel(level LogLevel)       {}
