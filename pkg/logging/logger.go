package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// ServiceName is attached to every startup log line
const ServiceName = "github-render-webhook"

// LogLevel represents logging levels
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// NewLogger creates and configures a new structured logger
func NewLogger(level LogLevel) *logrus.Logger {
	return newLogger(os.Stdout, level)
}

func newLogger(out io.Writer, level LogLevel) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)

	// Use JSON formatter for structured logging
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})

	logger.SetLevel(parseLogLevel(level))

	return logger
}

// SetLevel applies a configured level name, keeping the current level for unknown names
func SetLevel(logger *logrus.Logger, level string) {
	if parsed, err := logrus.ParseLevel(level); err == nil {
		logger.SetLevel(parsed)
	}
}

// parseLogLevel converts string log level to logrus.Level
func parseLogLevel(level LogLevel) logrus.Level {
	switch level {
	case LogLevelDebug:
		return logrus.DebugLevel
	case LogLevelInfo:
		return logrus.InfoLevel
	case LogLevelWarn:
		return logrus.WarnLevel
	case LogLevelError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// LogStartup logs service startup information
func LogStartup(logger *logrus.Logger, port int, path string) {
	logger.WithFields(logrus.Fields{
		"event":   "startup",
		"service": ServiceName,
		"port":    port,
		"path":    path,
	}).Info("Github hook listening")
}

// LogConfigurationLoaded logs successful configuration loading
func LogConfigurationLoaded(logger *logrus.Logger, repos, groups int, operator bool, renderType string) {
	logger.WithFields(logrus.Fields{
		"event":       "configuration_loaded",
		"repos":       repos,
		"groups":      groups,
		"operator":    operator,
		"render_type": renderType,
	}).Info("Configuration loaded")
}

// LogShutdownInitiated logs when shutdown is initiated
func LogShutdownInitiated(logger *logrus.Logger, signal string) {
	logger.WithFields(logrus.Fields{
		"event":  "shutdown_initiated",
		"signal": signal,
	}).Warn("Shutdown initiated")
}

// LogShutdownComplete logs when shutdown completes
func LogShutdownComplete(logger *logrus.Logger, duration float64) {
	logger.WithFields(logrus.Fields{
		"event":            "shutdown_complete",
		"duration_seconds": duration,
	}).Info("Shutdown complete")
}

// WithJob returns a logger carrying the identifiers of one webhook delivery
func WithJob(logger *logrus.Logger, deliveryID, event, repository string) *logrus.Entry {
	return logger.WithFields(logrus.Fields{
		"delivery_id": deliveryID,
		"event":       event,
		"repository":  repository,
	})
}
