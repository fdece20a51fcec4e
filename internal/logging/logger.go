package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"
)

// LogLevel represents the severity of a log message.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger defines a minimal, printf-style logging contract.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Nop returns a logger that discards all output.
func Nop() Logger {
	return nopLogger{}
}

type componentLogger struct {
	out       *log.Logger
	component string
	level     LogLevel
	mu        *sync.Mutex
}

var (
	defaultOut   = log.New(os.Stderr, "", 0)
	defaultMu    sync.Mutex
	defaultLevel = INFO
	levelOnce    sync.Once
)

func baseLevel() LogLevel {
	levelOnce.Do(func() {
		switch os.Getenv("WIDGET_LOG_LEVEL") {
		case "debug":
			defaultLevel = DEBUG
		case "warn":
			defaultLevel = WARN
		case "error":
			defaultLevel = ERROR
		}
	})
	return defaultLevel
}

// NewComponentLogger creates a logger scoped to a component.
func NewComponentLogger(component string) Logger {
	return &componentLogger{
		out:       defaultOut,
		component: component,
		level:     baseLevel(),
		mu:        &defaultMu,
	}
}

// NewWriterLogger creates a component logger writing to w. Used in tests.
func NewWriterLogger(component string, w io.Writer) Logger {
	return &componentLogger{
		out:       log.New(w, "", 0),
		component: component,
		level:     DEBUG,
		mu:        &sync.Mutex{},
	}
}

func (l *componentLogger) log(level LogLevel, format string, args ...any) {
	if level < l.level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	ts := time.Now().Format("2006-01-02 15:04:05.000")

	l.mu.Lock()
	defer l.mu.Unlock()
	l.out.Printf("[%s] [%s] [%s] %s", ts, level, l.component, msg)
}

func (l *componentLogger) Debug(format string, args ...any) { l.log(DEBUG, format, args...) }
func (l *componentLogger) Info(format string, args ...any)  { l.log(INFO, format, args...) }
func (l *componentLogger) Warn(format string, args ...any)  { l.log(WARN, format, args...) }
func (l *componentLogger) Error(format string, args ...any) { l.log(ERROR, format, args...) }
