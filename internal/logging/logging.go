// Package logging provides the leveled log sink handed to every endpoint.
//
// Components receive a [Logger] explicitly instead of using a global. The
// implementation is logrus with caller reporting, so each entry carries the
// file and function it came from.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger is a leveled log sink. Tracef is the "verbose" level.
type Logger interface {
	Tracef(format string, args ...any)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	WithField(key string, value any) *logrus.Entry
}

var (
	_ Logger = (*logrus.Logger)(nil)
	_ Logger = (*logrus.Entry)(nil)
)

// New returns a logger writing text entries at or above level to w.
//
// Level is one of verbose, trace, debug, info, warning, warn or error.
func New(level string, w io.Writer) (*logrus.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(lvl)
	l.SetReportCaller(true)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l, nil
}

func ParseLevel(level string) (logrus.Level, error) {
	switch s := strings.ToLower(strings.TrimSpace(level)); s {
	case "verbose":
		return logrus.TraceLevel, nil
	case "trace", "debug", "info", "warning", "warn", "error":
		return logrus.ParseLevel(s)
	default:
		return logrus.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// Discard returns a logger that drops everything.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.PanicLevel)
	return l
}
