package app

import (
	"context"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Context holds application-wide configuration and state
type Context struct {
	context.Context

	// Output preferences
	OutputFormat string
	Verbose      bool
	Quiet        bool

	// Out receives formatted reports
	Out io.Writer

	// RunID identifies one invocation in logs and reports
	RunID string

	// Logger carries the run_id field on every entry
	Logger *logrus.Entry
}

// NewContext creates a new application context logging to stderr
func NewContext(verbose, quiet bool) *Context {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return NewContextWithLogger(logger, verbose, quiet)
}

// NewContextWithLogger creates a context around an existing logger. The
// logger's level is adjusted to the verbosity flags; quiet wins over verbose.
func NewContextWithLogger(logger *logrus.Logger, verbose, quiet bool) *Context {
	switch {
	case quiet:
		logger.SetLevel(logrus.ErrorLevel)
	case verbose:
		logger.SetLevel(logrus.DebugLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	runID := uuid.New().String()
	return &Context{
		Context:      context.Background(),
		OutputFormat: "table",
		Verbose:      verbose,
		Quiet:        quiet,
		Out:          os.Stdout,
		RunID:        runID,
		Logger:       logger.WithField("run_id", runID),
	}
}

// Log outputs a debug message, shown with --verbose
func (c *Context) Log(message string) {
	c.Logger.Debug(message)
}

// Warn outputs a warning unless quiet
func (c *Context) Warn(message string) {
	c.Logger.Warn(message)
}
