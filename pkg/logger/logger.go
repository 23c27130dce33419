/*
 * Copyright 2026 FleetMind Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// zerologger implements Logger without any global state; every process
// constructs its own instance and passes it down explicitly.
type zerologger struct {
	logger zerolog.Logger
}

// New creates a Logger from the provided configuration. A nil config uses
// env-driven defaults.
func New(config *Config) (Logger, error) {
	if config == nil {
		config = DefaultConfig()
	}

	var output io.Writer = os.Stdout
	if config.Output == "stderr" {
		output = os.Stderr
	}

	level := zerolog.InfoLevel

	if config.Debug {
		level = zerolog.DebugLevel
	} else if config.Level != "" {
		var err error

		level, err = zerolog.ParseLevel(config.Level)
		if err != nil {
			return nil, err
		}
	}

	timeFormat := time.RFC3339
	if config.TimeFormat != "" {
		timeFormat = config.TimeFormat
	}

	zerolog.TimeFieldFormat = timeFormat

	zlog := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()

	return &zerologger{logger: zlog}, nil
}

// NewTestLogger returns a Logger suitable for tests: debug level, writes to
// stderr so `go test -v` interleaves output with test names.
func NewTestLogger() Logger {
	zlog := zerolog.New(os.Stderr).
		Level(zerolog.DebugLevel).
		With().
		Timestamp().
		Logger()

	return &zerologger{logger: zlog}
}

func (l *zerologger) Trace() *zerolog.Event { return l.logger.Trace() }
func (l *zerologger) Debug() *zerolog.Event { return l.logger.Debug() }
func (l *zerologger) Info() *zerolog.Event  { return l.logger.Info() }
func (l *zerologger) Warn() *zerolog.Event  { return l.logger.Warn() }
func (l *zerologger) Error() *zerolog.Event { return l.logger.Error() }
func (l *zerologger) Fatal() *zerolog.Event { return l.logger.Fatal() }

func (l *zerologger) With() zerolog.Context {
	return l.logger.With()
}

func (l *zerologger) WithComponent(component string) Logger {
	return &zerologger{logger: l.logger.With().Str("component", component).Logger()}
}
