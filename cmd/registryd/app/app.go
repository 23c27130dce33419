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

// Package app boots the registry daemon: configuration, persistence, event
// bus, background monitors, and the HTTP/WebSocket API.
package app

import (
	"context"
	"net/http"

	"github.com/fleetmind/registry/pkg/api"
	"github.com/fleetmind/registry/pkg/config"
	"github.com/fleetmind/registry/pkg/db"
	"github.com/fleetmind/registry/pkg/eventbus"
	"github.com/fleetmind/registry/pkg/gateway"
	"github.com/fleetmind/registry/pkg/kv"
	"github.com/fleetmind/registry/pkg/lifecycle"
	"github.com/fleetmind/registry/pkg/registry"
)

// Options contains runtime configuration derived from CLI flags.
type Options struct {
	ConfigPath string
}

// Run boots the registry daemon and blocks until shutdown.
func Run(ctx context.Context, opts Options) error {
	ctx, stop := lifecycle.SignalContext(ctx)
	defer stop()

	var cfg Config

	if err := config.NewConfig(nil).LoadAndValidate(ctx, opts.ConfigPath, &cfg); err != nil {
		return err
	}

	log, err := lifecycle.CreateComponentLogger("registryd", cfg.Logging)
	if err != nil {
		return err
	}

	pool, err := db.NewPool(ctx, &cfg.Database, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	store := db.NewStore(pool, log)
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	var bus eventbus.Publisher

	if cfg.NatsURL != "" {
		bus, err = eventbus.NewNatsPublisher(ctx, cfg.NatsURL, log)
		if err != nil {
			return err
		}
	} else {
		log.Warn().Msg("no NATS URL configured, events are in-process only")

		bus = eventbus.NewMemoryBus(log)
	}

	defer func() {
		if err := bus.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing event bus")
		}
	}()

	var remote kv.KVStore

	if cfg.NatsURL != "" && cfg.KVBucket != "" {
		remote, err = kv.NewNatsStore(ctx, cfg.NatsURL, cfg.KVBucket, cfg.DiscoveryCacheTTL)
		if err != nil {
			return err
		}

		defer func() {
			if err := remote.Close(); err != nil {
				log.Warn().Err(err).Msg("error closing KV store")
			}
		}()
	}

	disco := registry.NewDiscoveryCache(cfg.DiscoveryCacheTTL, remote, log)
	core := registry.NewCore(store, bus, disco, log)

	if err := core.Rehydrate(ctx); err != nil {
		return err
	}

	monitors := registry.NewMonitors(core, registry.NewHTTPProber(http.DefaultClient, "/health"), cfg.Monitors, log)
	monitors.Start(ctx)

	defer monitors.Wait()

	gw := gateway.New(bus, log)
	defer gw.Close()

	server := api.NewServer(core, gw, log)

	log.Info().Str("listen_addr", cfg.ListenAddr).Msg("registry daemon started")

	return server.Serve(ctx, cfg.ListenAddr)
}
