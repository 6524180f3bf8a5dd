package logger

import (
	"sync"

	"github.com/mstgnz/gompesa/infra/config"
)

var (
	globalLogger *SystemLogger
	mu           sync.Mutex
)

// InitGlobalLogger initializes the global system logger from the environment
func InitGlobalLogger() *SystemLogger {
	mu.Lock()
	defer mu.Unlock()

	if globalLogger == nil {
		cfg := SystemLoggerConfig{
			EnableConsole: true,
			JSON:          config.GetBoolEnv("LOG_JSON", false),
			MinLevel:      ParseLevel(config.GetEnv("LOGGING_LEVEL", "info")),
			Service:       "gompesa",
			Version:       "1.0.0",
			Environment:   config.GetEnv("ENVIRONMENT", "development"),
		}

		// Adjust log level based on environment
		if cfg.Environment == "development" && config.GetEnv("LOGGING_LEVEL", "") == "" {
			cfg.MinLevel = LevelDebug
		}

		globalLogger = NewSystemLogger(cfg)
	}
	return globalLogger
}

// SetGlobalLogger replaces the global logger
func SetGlobalLogger(l *SystemLogger) {
	mu.Lock()
	defer mu.Unlock()
	globalLogger = l
}

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() *SystemLogger {
	mu.Lock()
	l := globalLogger
	mu.Unlock()

	if l == nil {
		return InitGlobalLogger()
	}
	return l
}

// Convenience functions for global logging

// Debug logs a debug message using the global logger
func Debug(message string, ctx ...LogContext) {
	GetGlobalLogger().Debug(message, ctx...)
}

// Info logs an info message using the global logger
func Info(message string, ctx ...LogContext) {
	GetGlobalLogger().Info(message, ctx...)
}

// Warn logs a warning message using the global logger
func Warn(message string, ctx ...LogContext) {
	GetGlobalLogger().Warn(message, ctx...)
}

// Error logs an error message using the global logger
func Error(message string, err error, ctx ...LogContext) {
	GetGlobalLogger().Error(message, err, ctx...)
}

// WithProvider creates a context logger with provider
func WithProvider(provider string) *ContextLogger {
	return GetGlobalLogger().WithContext(LogContext{Provider: provider})
}
