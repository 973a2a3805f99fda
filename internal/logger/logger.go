package logger

import (
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Options controls root logger construction
type Options struct {
	Level  string
	JSON   bool
	Output io.Writer
}

// New builds the root logger. Components derive their own with Named.
func New(opts Options) hclog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:       "drive-catalog",
		Level:      ParseLevel(opts.Level),
		Output:     out,
		JSONFormat: opts.JSON,
		TimeFormat: "2006-01-02 15:04:05",
	})
}

// ParseLevel maps a config level name to an hclog level, defaulting to info
func ParseLevel(level string) hclog.Level {
	l := hclog.LevelFromString(strings.TrimSpace(level))
	if l == hclog.NoLevel {
		return hclog.Info
	}
	return l
}
