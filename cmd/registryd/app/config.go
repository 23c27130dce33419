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

package app

import (
	"errors"
	"time"

	"github.com/fleetmind/registry/pkg/db"
	"github.com/fleetmind/registry/pkg/logger"
	"github.com/fleetmind/registry/pkg/registry"
)

// Config is the registryd configuration file.
type Config struct {
	// ListenAddr is the HTTP API bind address.
	ListenAddr string `json:"listen_addr" env:"REGISTRY_LISTEN_ADDR"`

	// NatsURL enables the durable JetStream event stream and, together with
	// KVBucket, the shared discovery cache layer. Empty runs events
	// in-memory only.
	NatsURL  string `json:"nats_url" env:"REGISTRY_NATS_URL"`
	KVBucket string `json:"kv_bucket" env:"REGISTRY_KV_BUCKET"`

	// DiscoveryCacheTTL bounds how long discovery results are served from
	// cache after a write to the matching kind.
	DiscoveryCacheTTL time.Duration `json:"discovery_cache_ttl" env:"REGISTRY_DISCOVERY_CACHE_TTL"`

	Database db.Config              `json:"database"`
	Monitors registry.MonitorConfig `json:"monitors"`
	Logging  *logger.Config         `json:"logging"`
}

// Validate implements config.Validator.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8090"
	}

	if c.DiscoveryCacheTTL <= 0 {
		c.DiscoveryCacheTTL = 30 * time.Second
	}

	defaults := registry.DefaultMonitorConfig()

	if c.Monitors.DecayInterval <= 0 {
		c.Monitors.DecayInterval = defaults.DecayInterval
	}

	if c.Monitors.ProbeInterval <= 0 {
		c.Monitors.ProbeInterval = defaults.ProbeInterval
	}

	if c.Monitors.EvictionInterval <= 0 {
		c.Monitors.EvictionInterval = defaults.EvictionInterval
	}

	if c.Monitors.MetricsInterval <= 0 {
		c.Monitors.MetricsInterval = defaults.MetricsInterval
	}

	if c.Monitors.ProbeTimeout <= 0 {
		c.Monitors.ProbeTimeout = defaults.ProbeTimeout
	}

	if c.Database.Host == "" || c.Database.Database == "" {
		return errors.New("database.host and database.database are required")
	}

	return nil
}
