// Package logger builds the slog loggers shared by the reposcope server,
// ingestion workers and CLI commands.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	charmlog "github.com/charmbracelet/log"
)

// Format names a log output format, as set by log.format in config.toml.
type Format string

const (
	// FormatPretty renders colorized, human-friendly output via charmbracelet/log.
	FormatPretty Format = "pretty"

	// FormatJSON renders one JSON object per record.
	FormatJSON Format = "json"

	// FormatText renders slog's logfmt-style text output.
	FormatText Format = "text"
)

// ComponentKey is the attribute that tags records with the subsystem that
// emitted them.
const ComponentKey = "component"

// ParseFormat validates a configured format name. The empty string selects
// FormatPretty.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatPretty, nil
	case FormatPretty, FormatJSON, FormatText:
		return f, nil
	default:
		return "", fmt.Errorf("unknown log format %q (want pretty, json or text)", s)
	}
}

type config struct {
	level   slog.Level
	format  Format
	source  bool
	writers []io.Writer
}

func (c *config) writer() io.Writer {
	switch len(c.writers) {
	case 0:
		return os.Stdout
	case 1:
		return c.writers[0]
	default:
		return io.MultiWriter(c.writers...)
	}
}

// New builds a *slog.Logger from the given options. Without options it writes
// Info and above as text to stdout.
func New(opts ...Option) *slog.Logger {
	c := &config{level: slog.LevelInfo, format: FormatText}
	for _, opt := range opts {
		opt(c)
	}

	w := c.writer()
	handlerOpts := &slog.HandlerOptions{Level: c.level, AddSource: c.source}

	switch c.format {
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	case FormatPretty:
		return slog.New(charmlog.NewWithOptions(w, charmlog.Options{
			ReportTimestamp: true,
			ReportCaller:    c.source,
			TimeFormat:      time.Kitchen,
			Level:           charmlog.Level(c.level),
		}))
	default:
		return slog.New(slog.NewTextHandler(w, handlerOpts))
	}
}

// Component returns l tagged with the subsystem name, e.g. "ingest" or "api".
func Component(l *slog.Logger, name string) *slog.Logger {
	if l == nil {
		l = Nop()
	}
	return l.With(ComponentKey, name)
}

// Nop returns a logger that discards every record.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
