package logger

import (
	"io"
	"os"
	"strings"
	"syscall"
	"time"

	"codeberg.org/mutker/devdash/internal/errors"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

var log = zerolog.New(io.Discard)

type LogLevel int8

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

type LogEvent struct {
	*zerolog.Event
}

func (e *LogEvent) Msg(msg string) {
	e.Event.Msg(msg)
}

func (e *LogEvent) Send() {
	e.Event.Send()
}

// Options controls where and how much the process logs.
type Options struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	IsService  bool
}

// Init initializes the logger based on the given configuration
func Init(opts Options) {
	console := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}

	if opts.IsService {
		console.TimeFormat = ""
		console.FormatTimestamp = func(_ interface{}) string {
			return ""
		}
	}

	var output io.Writer = console
	if opts.File != "" {
		output = zerolog.MultiLevelWriter(console, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
		})
	}

	log = zerolog.New(output).With().Timestamp().Logger()

	SetLogLevel(ParseLevel(opts.Level))
}

// ParseLevel maps a configured level name to a LogLevel, defaulting to info.
func ParseLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// SetLogLevel sets the global log level
func SetLogLevel(level LogLevel) {
	zerolog.SetGlobalLevel(zerolog.Level(level))
}

// IsService checks if the application is running as a service
func IsService() bool {
	if _, err := os.Stdin.Stat(); err != nil {
		return true
	}
	if os.Getenv("SERVICE_NAME") != "" || os.Getenv("INVOCATION_ID") != "" {
		return true
	}
	if os.Getppid() == 1 {
		return true
	}

	return syscall.Getpgrp() == syscall.Getpid()
}

// Debug logs a debug message
func Debug() *LogEvent {
	return &LogEvent{log.Debug()}
}

// Info logs an info message
func Info() *LogEvent {
	return &LogEvent{log.Info()}
}

// Warn logs a warning message
func Warn() *LogEvent {
	return &LogEvent{log.Warn()}
}

// Error logs an error message
func Error() *LogEvent {
	return &LogEvent{log.Error()}
}

// ErrorWithCode logs an error message with a specific error code
func ErrorWithCode(err errors.Error) *LogEvent {
	return withCode(log.Error(), err)
}

// Fatal logs a fatal message and exits the program
func Fatal() *LogEvent {
	return &LogEvent{log.Fatal()}
}

// FatalWithCode logs a fatal message with a specific error code and exits the program
func FatalWithCode(err errors.Error) *LogEvent {
	return withCode(log.Fatal(), err)
}

func withCode(e *zerolog.Event, err errors.Error) *LogEvent {
	return &LogEvent{e.
		Str("error_code", string(err.Code())).
		Str("error_message", err.Error()).
		AnErr("error", err.Unwrap())}
}

// New returns a Logger that tags every event with the component name.
// It resolves the process logger lazily so components created before Init
// still write to the configured output.
func New(component string) Logger {
	return &namedLogger{component: component}
}

type namedLogger struct {
	component string
}

func (n *namedLogger) logger() zerolog.Logger {
	return log.With().Str("component", n.component).Logger()
}

func (n *namedLogger) Debug() *LogEvent {
	l := n.logger()
	return &LogEvent{l.Debug()}
}

func (n *namedLogger) Info() *LogEvent {
	l := n.logger()
	return &LogEvent{l.Info()}
}

func (n *namedLogger) Warn() *LogEvent {
	l := n.logger()
	return &LogEvent{l.Warn()}
}

func (n *namedLogger) Error() *LogEvent {
	l := n.logger()
	return &LogEvent{l.Error()}
}

func (n *namedLogger) ErrorWithCode(err errors.Error) *LogEvent {
	l := n.logger()
	return withCode(l.Error(), err)
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return &nopLogger{zl: zerolog.Nop()}
}

type nopLogger struct {
	zl zerolog.Logger
}

func (n *nopLogger) Debug() *LogEvent { return &LogEvent{n.zl.Debug()} }
func (n *nopLogger) Info() *LogEvent  { return &LogEvent{n.zl.Info()} }
func (n *nopLogger) Warn() *LogEvent  { return &LogEvent{n.zl.Warn()} }
func (n *nopLogger) Error() *LogEvent { return &LogEvent{n.zl.Error()} }

func (n *nopLogger) ErrorWithCode(_ errors.Error) *LogEvent {
	return &LogEvent{n.zl.Error()}
}
