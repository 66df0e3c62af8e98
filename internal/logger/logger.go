package logger

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var Logger *logrus.Logger

func init() {
	Logger = logrus.New()
	Logger.SetOutput(os.Stdout)
	Logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	Logger.SetLevel(logrus.InfoLevel)

	// LOG_LEVEL=debug wins over the default until configuration is loaded
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		_ = SetLevel(level)
	}
}

// SetLevel parses a level name (case-insensitive) and applies it to the shared logger.
// An invalid name leaves the current level untouched and returns the parse error.
func SetLevel(level string) error {
	parsed, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return err
	}
	Logger.SetLevel(parsed)
	return nil
}

// UseJSON switches the shared logger to the JSON formatter, used when logs are shipped.
func UseJSON() {
	Logger.SetFormatter(&logrus.JSONFormatter{})
}

// WithComponent adds a component field to the logger
func WithComponent(component string) *logrus.Entry {
	return Logger.WithField("component", component)
}

// WithSession tags an entry with both the component and the UI session id.
func WithSession(component, sessionID string) *logrus.Entry {
	return Logger.WithFields(logrus.Fields{
		"component": component,
		"session":   sessionID,
	})
}
