package client

import (
	"fmt"
	"log"
	"strings"
)

type LogLevel int

const (
	LogLevelNone LogLevel = iota
	LogLevelError
	LogLevelInfo
	LogLevelDebug
)
const LogLevelDefault = LogLevelError

// ParseLogLevel accepts "none", "error", "info" or "debug".
func ParseLogLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "off":
		return LogLevelNone, nil
	case "", "error":
		return LogLevelError, nil
	case "info":
		return LogLevelInfo, nil
	case "debug":
		return LogLevelDebug, nil
	default:
		return LogLevelDefault, fmt.Errorf("unknown log level %q", s)
	}
}

func (l LogLevel) String() string {
	switch l {
	case LogLevelNone:
		return "none"
	case LogLevelError:
		return "error"
	case LogLevelInfo:
		return "info"
	case LogLevelDebug:
		return "debug"
	default:
		return fmt.Sprintf("LogLevel(%d)", int(l))
	}
}

type logger struct {
	level LogLevel
	out   *log.Logger
}

func newLogger(level LogLevel, out *log.Logger) *logger {
	if out == nil {
		out = log.Default()
	}
	return &logger{level: level, out: out}
}

func (l *logger) logf(level LogLevel, format string, v ...any) {
	if l != nil && l.level >= level {
		l.out.Printf(format, v...)
	}
}

func (l *logger) errorf(format string, v ...any) { l.logf(LogLevelError, format, v...) }
func (l *logger) infof(format string, v ...any)  { l.logf(LogLevelInfo, format, v...) }
func (l *logger) debugf(format string, v ...any) { l.logf(LogLevelDebug, format, v...) }
