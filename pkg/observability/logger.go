// Package observability provides logging, metrics, and health endpoints
// for the gateway.
package observability

import (
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// NewLogger creates a structured JSON logger. Unknown levels fall back to
// info rather than failing startup.
func NewLogger(level string, output io.Writer) *logrus.Logger {
	if output == nil {
		output = os.Stdout
	}

	log := logrus.New()
	log.SetOutput(output)
	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
	})

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	log.SetLevel(parsed)

	return log
}
