// Package logging implements the Structured Logger (C4): a
// zerolog-based console/JSON logger composed with a batched database
// sink.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// baseWriter is whatever Init configured as the primary destination
// (console or JSON). AttachSinks folds it back in alongside the DB and
// file sinks so neither call disturbs the other's formatting choice.
var baseWriter io.Writer

// Init configures the global zerolog logger: pretty console output in
// development, JSON with a service field in production. Mirrors the
// teacher's pkg/utils/logger.go exactly.
func Init(environment, logLevel, serviceName string) {
	level := strings.ToLower(logLevel)
	switch level {
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		if environment == "development" {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		} else {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		}
	}

	if environment == "development" {
		baseWriter = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
			NoColor:    false,
		}
		log.Logger = log.Output(baseWriter)
	} else {
		baseWriter = os.Stderr
		log.Logger = zerolog.New(baseWriter).
			With().
			Timestamp().
			Str("service", serviceName).
			Logger()
	}

	log.Info().
		Str("level", zerolog.GlobalLevel().String()).
		Str("environment", environment).
		Msg("logger initialized")
}

// AttachSinks adds the DB batching sink and/or the rotating file sink
// as additional destinations for every entry the global logger already
// emits, without disturbing the console/JSON formatting Init chose.
// Either argument may be nil; call once per process, after both sinks
// (which need an open DB connection and a writable log directory) are
// ready. Must be called after Init.
func AttachSinks(db *DBSink, file *FileSink) {
	if baseWriter == nil {
		return
	}
	writers := []io.Writer{baseWriter}
	if db != nil {
		writers = append(writers, db)
	}
	if file != nil {
		writers = append(writers, file)
	}
	if len(writers) == 1 {
		return
	}
	log.Logger = log.Logger.Output(zerolog.MultiLevelWriter(writers...))
}
