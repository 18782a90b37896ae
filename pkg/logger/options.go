package logger

import (
	"io"
	"log/slog"
)

// Option configures a Logger created with New.
type Option func(*config)

// WithDebug lowers the level to Debug.
func WithDebug(debug bool) Option {
	return func(c *config) {
		c.level = slog.LevelInfo
		if debug {
			c.level = slog.LevelDebug
		}
	}
}

// WithLevel sets the minimum level directly.
func WithLevel(level slog.Level) Option {
	return func(c *config) {
		c.level = level
	}
}

// WithFormat selects the handler. Unknown names fall back to text; callers
// that need to reject them use ParseFormat first.
func WithFormat(format Format) Option {
	return func(c *config) {
		f, err := ParseFormat(string(format))
		if err != nil {
			f = FormatText
		}
		c.format = f
	}
}

// WithPretty is shorthand for WithFormat("pretty").
func WithPretty(pretty bool) Option {
	return toggle(FormatPretty, pretty)
}

// WithJSON is shorthand for WithFormat("json").
func WithJSON(json bool) Option {
	return toggle(FormatJSON, json)
}

func toggle(f Format, on bool) Option {
	return func(c *config) {
		switch {
		case on:
			c.format = f
		case c.format == f:
			c.format = FormatText
		}
	}
}

// WithWriter overrides the output writer. Defaults to os.Stdout.
func WithWriter(w io.Writer) Option {
	return func(c *config) {
		c.writers = []io.Writer{w}
	}
}

// WithWriters tees output to every writer.
func WithWriters(w ...io.Writer) Option {
	return func(c *config) {
		c.writers = w
	}
}

// WithSource includes source file:line in log output.
func WithSource(source bool) Option {
	return func(c *config) {
		c.source = source
	}
}
