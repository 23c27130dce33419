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

// Package lifecycle holds process-level startup helpers shared by the
// registry binaries.
package lifecycle

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/fleetmind/registry/pkg/logger"
)

// CreateComponentLogger builds a Logger from cfg tagged with the component
// name. A nil config uses env-driven defaults.
func CreateComponentLogger(component string, cfg *logger.Config) (logger.Logger, error) {
	log, err := logger.New(cfg)
	if err != nil {
		return nil, err
	}

	return log.WithComponent(component), nil
}

// SignalContext returns a context canceled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
