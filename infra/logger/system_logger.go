package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LogLevel represents the severity level of a log entry
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
	LevelFatal LogLevel = "fatal"
)

// SystemLoggerConfig represents configuration for system logger
type SystemLoggerConfig struct {
	EnableConsole bool     `yaml:"enable_console"`
	JSON          bool     `yaml:"json"`
	MinLevel      LogLevel `yaml:"min_level"`
	Service       string   `yaml:"service"`
	Version       string   `yaml:"version"`
	Environment   string   `yaml:"environment"`

	// Output overrides the destination, mostly for tests. Defaults to stdout.
	Output io.Writer `yaml:"-"`
}

// LogContext holds contextual information for logging
type LogContext struct {
	Provider  string
	RequestID string
	Fields    map[string]any
}

// SystemLogger writes structured log entries through zerolog
type SystemLogger struct {
	zl       zerolog.Logger
	minLevel LogLevel
}

// NewSystemLogger creates a new system logger
func NewSystemLogger(config SystemLoggerConfig) *SystemLogger {
	if !config.EnableConsole {
		return Nop()
	}

	out := config.Output
	if out == nil {
		out = os.Stdout
	}
	if !config.JSON {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "2006-01-02 15:04:05", NoColor: config.Output != nil}
	}

	minLevel := config.MinLevel
	if minLevel == "" {
		minLevel = LevelInfo
	}

	zl := zerolog.New(out).
		Level(toZerolog(minLevel)).
		With().
		Timestamp().
		Str("service", config.Service).
		Str("version", config.Version).
		Str("environment", config.Environment).
		Logger()

	return &SystemLogger{zl: zl, minLevel: minLevel}
}

// Nop returns a logger that discards everything
func Nop() *SystemLogger {
	return &SystemLogger{zl: zerolog.Nop(), minLevel: LevelFatal}
}

// ParseLevel maps a textual level to a LogLevel, falling back to info
func ParseLevel(level string) LogLevel {
	switch LogLevel(strings.ToLower(strings.TrimSpace(level))) {
	case LevelDebug:
		return LevelDebug
	case LevelWarn:
		return LevelWarn
	case LevelError:
		return LevelError
	case LevelFatal:
		return LevelFatal
	default:
		return LevelInfo
	}
}

// Debug logs a debug message
func (sl *SystemLogger) Debug(message string, ctx ...LogContext) {
	sl.log(LevelDebug, message, nil, ctx...)
}

// Info logs an info message
func (sl *SystemLogger) Info(message string, ctx ...LogContext) {
	sl.log(LevelInfo, message, nil, ctx...)
}

// Warn logs a warning message
func (sl *SystemLogger) Warn(message string, ctx ...LogContext) {
	sl.log(LevelWarn, message, nil, ctx...)
}

// Error logs an error message
func (sl *SystemLogger) Error(message string, err error, ctx ...LogContext) {
	sl.log(LevelError, message, err, ctx...)
}

// Fatal logs a fatal message and exits
func (sl *SystemLogger) Fatal(message string, err error, ctx ...LogContext) {
	sl.log(LevelError, message, err, ctx...)
	os.Exit(1)
}

// Enabled reports whether entries of the given level are written
func (sl *SystemLogger) Enabled(level LogLevel) bool {
	return levelOrder[level] >= levelOrder[sl.minLevel]
}

var levelOrder = map[LogLevel]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
	LevelFatal: 4,
}

func (sl *SystemLogger) log(level LogLevel, message string, err error, ctx ...LogContext) {
	if !sl.Enabled(level) {
		return
	}

	event := sl.zl.WithLevel(toZerolog(level))
	if err != nil {
		event = event.Err(err)
	}

	if len(ctx) > 0 {
		logCtx := ctx[0]
		if logCtx.Provider != "" {
			event = event.Str("provider", logCtx.Provider)
		}
		if logCtx.RequestID != "" {
			event = event.Str("request_id", logCtx.RequestID)
		}
		for key, value := range logCtx.Fields {
			switch v := value.(type) {
			case time.Duration:
				event = event.Dur(key, v)
			case error:
				event = event.AnErr(key, v)
			default:
				event = event.Interface(key, v)
			}
		}
	}

	event.Msg(message)
}

func toZerolog(level LogLevel) zerolog.Level {
	switch level {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	case LevelFatal:
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithContext creates a new logger with context
func (sl *SystemLogger) WithContext(ctx LogContext) *ContextLogger {
	return &ContextLogger{
		systemLogger: sl,
		context:      ctx,
	}
}

// ContextLogger wraps SystemLogger with context
type ContextLogger struct {
	systemLogger *SystemLogger
	context      LogContext
}

// Debug logs a debug message with context
func (cl *ContextLogger) Debug(message string) {
	cl.systemLogger.Debug(message, cl.context)
}

// Info logs an info message with context
func (cl *ContextLogger) Info(message string) {
	cl.systemLogger.Info(message, cl.context)
}

// Warn logs a warning message with context
func (cl *ContextLogger) Warn(message string) {
	cl.systemLogger.Warn(message, cl.context)
}

// Error logs an error message with context
func (cl *ContextLogger) Error(message string, err error) {
	cl.systemLogger.Error(message, err, cl.context)
}

// AddField adds a field to the context
func (cl *ContextLogger) AddField(key string, value any) *ContextLogger {
	fields := make(map[string]any, len(cl.context.Fields)+1)
	for k, v := range cl.context.Fields {
		fields[k] = v
	}
	fields[key] = value
	return &ContextLogger{
		systemLogger: cl.systemLogger,
		context:      LogContext{Provider: cl.context.Provider, RequestID: cl.context.RequestID, Fields: fields},
	}
}

// SetRequestID sets the request ID in context
func (cl *ContextLogger) SetRequestID(requestID string) *ContextLogger {
	cl.context.RequestID = requestID
	return cl
}
