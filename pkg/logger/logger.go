package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

const (
	DefaultLogDir  = "~/.local/share/trade-monitor/logs"
	DefaultLogFile = "debug.log"
)

type Logger struct {
	zlog    zerolog.Logger
	level   zerolog.Level
	file    *os.File
	writers []io.Writer
	hasFile bool
	mu      sync.RWMutex
}

type Option func(*Logger) error

// WithConsole enables console logging
func WithConsole() Option {
	return func(l *Logger) error {
		l.writers = append(l.writers, zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
		return nil
	}
}

// WithLevel sets the logging level
func WithLevel(level zerolog.Level) Option {
	return func(l *Logger) error {
		l.level = level
		return nil
	}
}

// WithWriter adds a raw JSON writer, mostly useful for tests and the panel.
func WithWriter(w io.Writer) Option {
	return func(l *Logger) error {
		l.writers = append(l.writers, w)
		return nil
	}
}

// WithFile sets up file logging with an explicit path
func WithFile(path string) Option {
	return func(l *Logger) error {
		l.hasFile = true
		if path == "" {
			return nil
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		l.file = f
		l.writers = append(l.writers, zerolog.ConsoleWriter{
			Out:        f,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		})
		return nil
	}
}

// getDefaultLogPath returns the expanded default log path
func getDefaultLogPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	logDir := strings.Replace(DefaultLogDir, "~", homeDir, 1)
	return filepath.Join(logDir, DefaultLogFile), nil
}

// NewLogger creates a new logger with the given options.
// Without a WithFile option the default log path is used.
func NewLogger(opts ...Option) (*Logger, error) {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	logger := &Logger{level: zerolog.InfoLevel}

	for _, opt := range opts {
		if err := opt(logger); err != nil {
			return nil, fmt.Errorf("failed to apply logger option: %w", err)
		}
	}

	if !logger.hasFile {
		defaultPath, err := getDefaultLogPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get default log path: %w", err)
		}
		if err := WithFile(defaultPath)(logger); err != nil {
			return nil, fmt.Errorf("failed to apply logger option: %w", err)
		}
	}

	logger.rebuild()
	return logger, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{zlog: zerolog.Nop(), level: zerolog.Disabled, hasFile: true}
}

func (l *Logger) rebuild() {
	var out io.Writer = os.Stderr
	if len(l.writers) == 1 {
		out = l.writers[0]
	} else if len(l.writers) > 1 {
		out = zerolog.MultiLevelWriter(l.writers...)
	}
	l.zlog = zerolog.New(out).Level(l.level).With().Timestamp().Logger()
}

// Close closes the logger and any open files
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// addSourceContext adds file and line information to the event
func addSourceContext(e *zerolog.Event) *zerolog.Event {
	_, file, line, ok := runtime.Caller(2)
	if ok {
		return e.Str("file", filepath.Base(file)).Int("line", line)
	}
	return e
}

func (l *Logger) current() *zerolog.Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return &l.zlog
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, fields ...interface{}) {
	event := addSourceContext(l.current().Debug())
	logFields(event, fields...)
	event.Msg(msg)
}

// Info logs an info message
func (l *Logger) Info(msg string, fields ...interface{}) {
	event := addSourceContext(l.current().Info())
	logFields(event, fields...)
	event.Msg(msg)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, fields ...interface{}) {
	event := addSourceContext(l.current().Warn())
	logFields(event, fields...)
	event.Msg(msg)
}

// Error logs an error message
func (l *Logger) Error(msg string, err error, fields ...interface{}) {
	event := addSourceContext(l.current().Error())
	if err != nil {
		event = event.Stack().Err(err)
	}
	logFields(event, fields...)
	event.Msg(msg)
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(msg string, err error, fields ...interface{}) {
	event := addSourceContext(l.current().Fatal())
	if err != nil {
		event = event.Stack().Err(err)
	}
	logFields(event, fields...)
	event.Msg(msg)
}

// AddWriter adds a writer to the logger
func (l *Logger) AddWriter(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writers = append(l.writers, w)
	l.rebuild()
}

// logFields adds fields to the log event
func logFields(event *zerolog.Event, fields ...interface{}) {
	for i := 0; i < len(fields); i += 2 {
		if i+1 >= len(fields) {
			break
		}
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		value := fields[i+1]
		event.Interface(key, value)
	}
}
