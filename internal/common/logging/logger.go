package logging

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap/zapcore"
)

// NewDefaultLogger creates a logger with default configuration using zap
func NewDefaultLogger() Logger {
	config := DefaultLogConfig()
	logger, err := NewZapLogger(config)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize default zap logger: %v", err))
	}
	return logger
}

// InitGlobalLogger initializes the global logger from LOG_LEVEL, writing to
// stdout and, when a rolling writer is supplied, to the log directory as well.
func InitGlobalLogger(fileWriter io.Writer) {
	level := ParseLevel(os.Getenv("LOG_LEVEL"))

	output := io.Writer(os.Stdout)
	if fileWriter != nil {
		output = io.MultiWriter(os.Stdout, zapcore.AddSync(fileWriter))
	}

	logger, err := NewZapLogger(LogConfig{
		Level:  level,
		Output: output,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	SetGlobalLogger(logger)

	logger.Info("Logger initialized",
		Field{"level", level.String()},
		Field{"file_output", fileWriter != nil},
	)
}

// MustSync flushes any buffered log entries for zap loggers.
// This should be called before application exit.
func MustSync() {
	logger := GetGlobalLogger()
	if zapLogger, ok := logger.(*ZapAdapter); ok {
		_ = zapLogger.Sync()
	}
}

// WithFields is a convenience function to add fields to the global logger
func WithFields(fields ...Field) Logger {
	return GetGlobalLogger().WithFields(fields...)
}
