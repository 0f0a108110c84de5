package telemetry

import (
	"log"
	"strings"

	"go.uber.org/zap"
)

// Logger is the printf-style logger threaded through the server. Messages
// conventionally start with a bracketed component tag such as "[session]".
type Logger interface {
	Printf(format string, args ...any)
}

type LoggerFunc func(format string, args ...any)

func (f LoggerFunc) Printf(format string, args ...any) {
	if f != nil {
		f(format, args...)
	}
}

// Discard returns a Logger that drops everything.
func Discard() Logger { return LoggerFunc(nil) }

// WrapLogger adapts a standard library logger. A nil logger discards.
func WrapLogger(logger *log.Logger) Logger {
	if logger == nil {
		return Discard()
	}
	return LoggerFunc(logger.Printf)
}

// WrapZap adapts a zap logger. A leading "[component] " tag is lifted out of
// the message into a "component" field.
func WrapZap(logger *zap.Logger) Logger {
	if logger == nil {
		return Discard()
	}
	sugar := logger.Sugar()
	return LoggerFunc(func(format string, args ...any) {
		component, rest := splitComponent(format)
		if component == "" {
			sugar.Infof(format, args...)
			return
		}
		sugar.With("component", component).Infof(rest, args...)
	})
}

func splitComponent(format string) (string, string) {
	if !strings.HasPrefix(format, "[") {
		return "", format
	}
	end := strings.Index(format, "] ")
	if end <= 1 || strings.ContainsAny(format[1:end], " %") {
		return "", format
	}
	return format[1:end], format[end+2:]
}

// Metrics receives named counters and gauges; *logging.Metrics implements it.
type Metrics interface {
	Add(key string, delta uint64)
	Store(key string, value uint64)
}
