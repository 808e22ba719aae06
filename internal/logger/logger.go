package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	stdLogger zerolog.Logger
	level     = zerolog.InfoLevel
)

func init() {
	SetOutput(os.Stderr)
}

// SetOutput redirects log lines. Stdout stays reserved for reports.
func SetOutput(w io.Writer) {
	stdLogger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.DateTime, NoColor: true}).
		Level(level).
		With().
		Timestamp().
		Str("app", "porty").
		Logger()
}

// SetLevel accepts zerolog level names; unknown names fall back to info.
func SetLevel(name string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	level = lvl
	stdLogger = stdLogger.Level(lvl)
}

func Debugf(format string, v ...interface{}) {
	stdLogger.Debug().Msgf(format, v...)
}

func Infof(format string, v ...interface{}) {
	stdLogger.Info().Msgf(format, v...)
}

func Errorf(format string, v ...interface{}) {
	stdLogger.Error().Msgf(format, v...)
}
