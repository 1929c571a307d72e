// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures the global logger for humans. Unknown levels fall back to info.
func Setup(level string, w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	_, isFile := w.(*os.File)
	setup(level, zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: !isFile})
}

// SetupJSON configures the global logger to write one JSON object per line.
func SetupJSON(level string, w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	setup(level, w)
}

// SetupFor picks JSON output in production and console output otherwise.
func SetupFor(production bool, level string, w io.Writer) {
	if production {
		SetupJSON(level, w)
		return
	}
	Setup(level, w)
}

func setup(level string, w io.Writer) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
}

// Component returns a sub-logger tagged with the component name.
func Component(name string) *zerolog.Logger {
	l := log.Logger.With().Str("component", name).Logger()
	return &l
}
