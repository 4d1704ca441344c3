// Package ulog is the process-wide structured logger, grounded on
// cmn/nlog's package-level severity API (Infof/Warningf/Errorf) but
// backed by zerolog rather than a hand-rolled buffered writer, for
// timestamped, leveled, structured output.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package ulog

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu     sync.RWMutex
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
)

// Init replaces the process-wide logger, e.g. to switch to JSON output
// for cmd/udad or to redirect to a file.
func Init(w io.Writer, level zerolog.Level) {
	mu.Lock()
	defer mu.Unlock()
	logger = zerolog.New(w).Level(level).With().Timestamp().Logger()
}

func current() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func Debugf(format string, args ...any) { current().Debug().Msgf(format, args...) }
func Infof(format string, args ...any)  { current().Info().Msgf(format, args...) }
func Warnf(format string, args ...any)  { current().Warn().Msgf(format, args...) }
func Errorf(format string, args ...any) { current().Error().Msgf(format, args...) }

// WithSession returns a child logger tagged with a session/connection
// identifier, used by server.serveConn to label every log line it
// produces with which connection emitted it.
func WithSession(id string) zerolog.Logger {
	return current().With().Str("session", id).Logger()
}
