// Package logging builds the structured logrus loggers used throughout
// Titan-AAS. Unlike a package-level global, New is called once per
// composition boundary (the process's composition root, and any
// long-lived component that wants its own named logger) and the
// resulting *logrus.Logger is passed down as a constructor argument —
// the same "no hidden singleton" rule applied to the event bus, the MQTT
// publisher, and the peer registry.
package logging

import (
	"bytes"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Level mirrors logrus's levels as a small, config-friendly enum.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Config configures a logger built by New.
type Config struct {
	Level      Level
	Format     string // "json" or "text"
	Service    string
	TimeFormat string
}

// DefaultConfig returns sensible defaults: info level, text format, RFC3339
// timestamps.
func DefaultConfig(service string) Config {
	return Config{
		Level:      LevelInfo,
		Format:     "text",
		Service:    service,
		TimeFormat: time.RFC3339,
	}
}

// New builds a logrus.Logger configured from cfg, with output routed
// through an OutputSplitter (errors to stderr, everything else to
// stdout). cfg.Service is not attached here; Base returns the entry that
// carries the service name.
func New(cfg Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(parseLevel(cfg.Level))

	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339
	}

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: timeFormat})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{TimestampFormat: timeFormat, FullTimestamp: true})
	}

	logger.SetOutput(&OutputSplitter{})
	return logger
}

// Base returns the logger's standing *logrus.Entry carrying the service
// name, the starting point every component should derive its own
// `.WithField("component", ...)` entry from.
func Base(logger *logrus.Logger, service string) *logrus.Entry {
	return logger.WithField("service", service)
}

func parseLevel(l Level) logrus.Level {
	switch l {
	case LevelDebug:
		return logrus.DebugLevel
	case LevelWarn:
		return logrus.WarnLevel
	case LevelError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// OutputSplitter routes logrus-formatted records to stderr when they
// carry "level=error" (text format) or "level":"error" (JSON format) and
// to stdout otherwise, so container log collectors can apply different
// handling to each stream.
type OutputSplitter struct{}

// Write implements io.Writer.
func (s *OutputSplitter) Write(p []byte) (int, error) {
	if bytes.Contains(p, []byte("level=error")) || bytes.Contains(p, []byte(`"level":"error"`)) {
		return os.Stderr.Write(p)
	}
	return os.Stdout.Write(p)
}
