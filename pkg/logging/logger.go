// Package logging sets up the console logger shared by the commands.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LevelEnv overrides the configured level
const LevelEnv = "MIBITOOLS_LOG_LEVEL"

// InitLogger returns a console logger tagged with app and installs it as the
// global zerolog logger. verbose selects debug, level (when set) wins over it,
// and LevelEnv wins over both.
func InitLogger(app string, verbose bool, level string) zerolog.Logger {
	return NewLogger(os.Stderr, app, resolveLevel(verbose, level, os.Getenv(LevelEnv)))
}

// NewLogger builds the console logger on w
func NewLogger(w io.Writer, app string, level zerolog.Level) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
	}
	logger := zerolog.New(output).Level(level).With().Timestamp().Str("app", app).Logger()
	log.Logger = logger
	return logger
}

func resolveLevel(verbose bool, configured, env string) zerolog.Level {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	for _, s := range []string{configured, env} {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if l, err := zerolog.ParseLevel(strings.ToLower(s)); err == nil {
			level = l
		}
	}
	return level
}
