package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// LevelEnvVar overrides the configured log level.
const LevelEnvVar = "SECRETVM_LOG_LEVEL"

// Logger is a wrapper around charmbracelet/log.Logger
type Logger struct {
	*log.Logger
}

var (
	instance *Logger
	once     sync.Once
)

// GetLogger returns the singleton logger instance.
// Output goes to stderr: stdout belongs to command results.
func GetLogger() *Logger {
	once.Do(func() {
		instance = New(os.Stderr)
	})
	return instance
}

// New builds a standalone logger writing to w. Tests use it to capture output.
func New(w io.Writer) *Logger {
	return &Logger{
		Logger: log.NewWithOptions(w, log.Options{
			Level:           log.WarnLevel,
			ReportTimestamp: true,
			TimeFormat:      "15:04:05",
			Prefix:          "secretvm",
		}),
	}
}

// ParseLevel maps a level name to a log.Level. Unknown names map to warn.
func ParseLevel(level string) log.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DebugLevel
	case "info":
		return log.InfoLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	case "fatal":
		return log.FatalLevel
	default:
		return log.WarnLevel
	}
}

// SetLogLevel sets the log level from a string
func (l *Logger) SetLogLevel(level string) {
	l.SetLevel(ParseLevel(level))
	l.Debug("Log level set", "level", level)
}

// Configure applies the level from the environment, falling back to the
// level found in the config file.
func (l *Logger) Configure(configLevel string) {
	if env := os.Getenv(LevelEnvVar); env != "" {
		l.SetLogLevel(env)
		return
	}
	if configLevel != "" {
		l.SetLogLevel(configLevel)
	}
}
