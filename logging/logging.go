package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures the global logger. Console output unless json is set.
func Setup(json, debug bool) {
	SetupTo(os.Stdout, json, debug)
}

func SetupTo(w io.Writer, json, debug bool) {
	if json {
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339})
	}

	if debug {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}
}

// SetupLambda writes JSON without timestamps; CloudWatch stamps ingestion time.
func SetupLambda(debug bool) {
	log.Logger = zerolog.New(os.Stdout)
	if debug {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}
}
