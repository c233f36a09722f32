// Package logging configures logrus and carries request scoped loggers.
package logging

import (
	"context"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

type contextKey struct{}

// Configure sets up the standard logrus logger from a level and a format.
//
// The format is either "text" or "json".
func Configure(level string, format string) error {
	parsedLevel, err := logrus.ParseLevel(level)

	if err != nil {
		return err
	}

	logrus.SetLevel(parsedLevel)
	logrus.SetOutput(os.Stderr)

	if strings.EqualFold(format, "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return nil
}

// WithEntry returns a context carrying a logger entry.
func WithEntry(ctx context.Context, entry *logrus.Entry) context.Context {
	return context.WithValue(ctx, contextKey{}, entry)
}

// FromContext returns the request logger, or the standard logger if there is none.
func FromContext(ctx context.Context) *logrus.Entry {
	if entry, ok := ctx.Value(contextKey{}).(*logrus.Entry); ok {
		return entry
	}

	return logrus.NewEntry(logrus.StandardLogger())
}
