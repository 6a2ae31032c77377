// Package log provides named, leveled loggers backed by go-logging. Every
// package of the renderer obtains its logger with New and the command line
// chooses the sink and verbosity once at startup.
package log

import (
	"io"
	"os"
	"strings"

	"github.com/op/go-logging"
)

// Level is a logging verbosity threshold.
type Level int

// Levels accepted by SetLevel, from most to least verbose.
const (
	Debug Level = iota
	Info
	Notice
	Warning
	Error
)

var format = logging.MustStringFormatter(
	`%{color}[%{time:15:04:05.000}] [%{module}] [%{level}]%{color:reset} %{message}`,
)

var (
	leveledBackend logging.LeveledBackend
	current        = Info
)

// Logger is the subset of the go-logging API the renderer uses.
type Logger interface {
	Debug(v ...any)
	Debugf(format string, v ...any)

	Info(v ...any)
	Infof(format string, v ...any)

	Notice(v ...any)
	Noticef(format string, v ...any)

	Warning(v ...any)
	Warningf(format string, v ...any)

	Error(v ...any)
	Errorf(format string, v ...any)
}

// New returns the logger for a named module.
func New(module string) Logger {
	return logging.MustGetLogger(module)
}

// SetSink redirects every module logger to sink, keeping the current level.
func SetSink(sink io.Writer) {
	backend := logging.NewLogBackend(sink, "", 0)
	formatted := logging.NewBackendFormatter(backend, format)
	leveledBackend = logging.AddModuleLevel(formatted)
	leveledBackend.SetLevel(toBackend(current), "")
	logging.SetBackend(leveledBackend)
}

// SetLevel changes the verbosity of every module logger.
func SetLevel(level Level) {
	current = level
	leveledBackend.SetLevel(toBackend(level), "")
}

// ParseLevel maps a level name such as "debug" or "warning" to a Level.
func ParseLevel(name string) (Level, error) {
	lvl, err := logging.LogLevel(strings.ToUpper(name))
	if err != nil {
		return Info, err
	}
	switch lvl {
	case logging.DEBUG:
		return Debug, nil
	case logging.NOTICE:
		return Notice, nil
	case logging.WARNING:
		return Warning, nil
	case logging.ERROR, logging.CRITICAL:
		return Error, nil
	default:
		return Info, nil
	}
}

func toBackend(level Level) logging.Level {
	switch level {
	case Debug:
		return logging.DEBUG
	case Notice:
		return logging.NOTICE
	case Warning:
		return logging.WARNING
	case Error:
		return logging.ERROR
	default:
		return logging.INFO
	}
}

func init() {
	SetSink(os.Stderr)
}
