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

package registry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fleetmind/registry/pkg/logger"
	"github.com/fleetmind/registry/pkg/models"
)

// Heartbeat decay thresholds. Tuned empirically; the monitor tests are
// written against these exact values.
const (
	decayStaleAge     = time.Minute
	decayOldAge       = 2 * time.Minute
	decayDeadAge      = 5 * time.Minute
	decayStalePenalty = 10
	decayOldPenalty   = 20
)

// MonitorConfig holds the four loop intervals plus the probe timeout.
type MonitorConfig struct {
	DecayInterval    time.Duration `json:"decay_interval"`
	ProbeInterval    time.Duration `json:"probe_interval"`
	EvictionInterval time.Duration `json:"eviction_interval"`
	MetricsInterval  time.Duration `json:"metrics_interval"`
	ProbeTimeout     time.Duration `json:"probe_timeout"`
}

// DefaultMonitorConfig matches the documented intervals.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		DecayInterval:    30 * time.Second,
		ProbeInterval:    60 * time.Second,
		EvictionInterval: 5 * time.Minute,
		MetricsInterval:  60 * time.Second,
		ProbeTimeout:     5 * time.Second,
	}
}

// Monitors runs the four background sweeps. Each loop is an independent
// supervised goroutine stopped by context cancellation; a failure on one
// entity is logged and never aborts the sweep, and no monitor error crashes
// the process.
type Monitors struct {
	core   *Core
	prober Prober
	config MonitorConfig
	logger logger.Logger

	wg sync.WaitGroup
}

// NewMonitors wires the monitors against a core.
func NewMonitors(core *Core, prober Prober, config MonitorConfig, log logger.Logger) *Monitors {
	return &Monitors{
		core:   core,
		prober: prober,
		config: config,
		logger: log.WithComponent("monitors"),
	}
}

// Start launches the four loops. They stop when ctx is canceled; Wait blocks
// until they have all exited.
func (m *Monitors) Start(ctx context.Context) {
	m.run(ctx, m.config.DecayInterval, "heartbeat-decay", m.DecaySweep)
	m.run(ctx, m.config.ProbeInterval, "health-probe", m.ProbeSweep)
	m.run(ctx, m.config.EvictionInterval, "cache-eviction", m.EvictionSweep)
	m.run(ctx, m.config.MetricsInterval, "metrics-aggregation", m.MetricsSweep)
}

// Wait blocks until every loop has exited.
func (m *Monitors) Wait() {
	m.wg.Wait()
}

func (m *Monitors) run(ctx context.Context, interval time.Duration, name string, sweep func(context.Context)) {
	m.wg.Add(1)

	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		m.logger.Info().Str("monitor", name).Dur("interval", interval).Msg("monitor started")

		for {
			select {
			case <-ctx.Done():
				m.logger.Info().Str("monitor", name).Msg("monitor stopped")

				return
			case <-ticker.C:
				m.safeSweep(ctx, name, sweep)
			}
		}
	}()
}

// safeSweep recovers per tick so one panicking sweep does not kill the loop;
// the monitor resumes on the next interval.
func (m *Monitors) safeSweep(ctx context.Context, name string, sweep func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().Interface("panic", r).Str("monitor", name).Msg("sweep panicked")
		}
	}()

	sweep(ctx)
}

// DecaySweep ages every entry's health by heartbeat staleness: past one
// minute costs 10 points, past two costs 20, and past five the score is
// zeroed and an online entry is forced to error.
func (m *Monitors) DecaySweep(ctx context.Context) {
	now := time.Now().UTC()

	for _, entry := range m.core.snapshotEntries() {
		base := entry.Base()
		if base.LastHeartbeat == nil {
			continue
		}

		age := now.Sub(*base.LastHeartbeat)

		score := base.HealthScore
		forceStatus := models.EntityStatus("")

		switch {
		case age > decayDeadAge:
			score = 0

			if base.Status == models.StatusOnline {
				forceStatus = models.StatusError
			}
		case age > decayOldAge:
			score -= decayOldPenalty
		case age > decayStaleAge:
			score -= decayStalePenalty
		default:
			continue
		}

		if score < 0 {
			score = 0
		}

		if err := m.core.applyHealth(ctx, base.ID, score, forceStatus, ""); err != nil {
			m.logger.Warn().
				Err(err).
				Str("entity_id", base.ID).
				Msg("decay update failed, continuing sweep")
		}
	}
}

// ProbeSweep actively checks every NetworkService's health endpoint. One
// unreachable service never blocks probing the rest.
func (m *Monitors) ProbeSweep(ctx context.Context) {
	for _, entry := range m.core.snapshotEntries() {
		svc, ok := entry.(*models.NetworkService)
		if !ok {
			continue
		}

		probeCtx, cancel := context.WithTimeout(ctx, m.config.ProbeTimeout)
		err := m.prober.Probe(probeCtx, svc.Host, svc.Port)

		cancel()

		// A failed probe is critical outright; an unreachable service must
		// never report unknown just because it has not heartbeated yet.
		score := float64(100)
		forceHealth := models.HealthStatus("")

		if err != nil {
			score = 0
			forceHealth = models.HealthCritical

			m.logger.Debug().
				Err(err).
				Str("entity_id", svc.ID).
				Msg("health probe failed")
		}

		if applyErr := m.core.applyHealth(ctx, svc.ID, score, "", forceHealth); applyErr != nil {
			m.logger.Warn().
				Err(applyErr).
				Str("entity_id", svc.ID).
				Msg("probe result update failed, continuing sweep")
		}
	}
}

// EvictionSweep drops expired memoized discovery results. The canonical
// entity cache is never touched here.
func (m *Monitors) EvictionSweep(_ context.Context) {
	m.core.disco.DeleteExpired()
}

// MetricsSweep persists an aggregated metrics snapshot. Persistence failure
// is logged, not fatal.
func (m *Monitors) MetricsSweep(ctx context.Context) {
	snapshot := m.core.MetricsSnapshot(ctx)

	if err := m.core.store.StoreMetricsSnapshot(ctx, snapshot); err != nil {
		m.logger.Warn().Err(err).Msg("failed to persist metrics snapshot")

		return
	}

	event := &models.Event{
		ID:        uuid.New().String(),
		Type:      models.EventMetricUpdated,
		Timestamp: time.Now().UTC(),
		Data: map[string]any{
			"total_entities":   snapshot.TotalEntities,
			"online_entities":  snapshot.OnlineEntities,
			"average_health":   snapshot.AverageHealthScore,
			"success_rate":     snapshot.SuccessRate,
		},
	}

	if err := m.core.bus.Publish(ctx, event); err != nil {
		m.logger.Warn().Err(err).Msg("failed to publish metrics event")
	}

	m.logger.Debug().
		Int("total_entities", snapshot.TotalEntities).
		Float64("avg_health", snapshot.AverageHealthScore).
		Msg("metrics snapshot stored")
}
