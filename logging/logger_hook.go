package logging

import (
	"log/slog"
)

// LoggerHook creates test case loggers by wrapping the group logger.
// It lets the engine stay unaware of log capturing.
type LoggerHook interface {
	// LoggerForCase wraps base to create the logger of one test case.
	LoggerForCase(base *slog.Logger, testCase string) *slog.Logger
}

// CapturingLoggerHook creates loggers that capture logs via CapturingHandler.
type CapturingLoggerHook struct {
	collector *LogCollector
}

// NewCapturingLoggerHook creates a hook capturing every test case's logs.
func NewCapturingLoggerHook(collector *LogCollector) LoggerHook {
	return &CapturingLoggerHook{
		collector: collector,
	}
}

// LoggerForCase wraps the base logger with a CapturingHandler keyed by testCase.
func (p *CapturingLoggerHook) LoggerForCase(base *slog.Logger, testCase string) *slog.Logger {
	return slog.New(NewCapturingHandler(base.Handler(), p.collector, testCase))
}
