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
	"fmt"
	"time"

	"github.com/fleetmind/registry/pkg/models"
)

// Statistics aggregates the current registry contents.
func (c *Core) Statistics(_ context.Context) *models.Statistics {
	c.count("statistics")

	entries := c.snapshotEntries()

	stats := &models.Statistics{
		TotalEntities:   len(entries),
		CountsByKind:    make(map[models.EntityKind]int),
		CountsByStatus:  make(map[models.EntityStatus]int),
		CountsByHealth:  make(map[models.HealthStatus]int),
		RequestCounters: c.counterSnapshot(),
		GeneratedAt:     time.Now().UTC(),
	}

	var scoreSum float64

	for _, entry := range entries {
		base := entry.Base()
		stats.CountsByKind[entry.GetKind()]++
		stats.CountsByStatus[base.Status]++
		stats.CountsByHealth[base.HealthStatus]++
		scoreSum += base.HealthScore
	}

	if len(entries) > 0 {
		stats.AverageHealthScore = scoreSum / float64(len(entries))
	}

	return stats
}

// MetricsSnapshot computes the row the metrics-aggregation monitor persists.
func (c *Core) MetricsSnapshot(_ context.Context) *models.MetricsSnapshot {
	entries := c.snapshotEntries()
	counters := c.counterSnapshot()

	snapshot := &models.MetricsSnapshot{
		Timestamp:       time.Now().UTC(),
		UptimeSeconds:   time.Since(c.startedAt).Seconds(),
		TotalEntities:   len(entries),
		RequestCounters: counters,
	}

	var scoreSum, successSum float64

	var workers int

	for _, entry := range entries {
		base := entry.Base()
		scoreSum += base.HealthScore

		if base.Status == models.StatusOnline {
			snapshot.OnlineEntities++
		}

		if w := workerOf(entry); w != nil {
			successSum += w.SuccessRate
			workers++
		}
	}

	if len(entries) > 0 {
		snapshot.AverageHealthScore = scoreSum / float64(len(entries))
	}

	if workers > 0 {
		snapshot.SuccessRate = successSum / float64(workers)
	}

	return snapshot
}

// HealthSummary reports the registry's own operational health for the health
// endpoint. A reachable persistence backend and event bus mean "ok"; the
// registry keeps serving reads from cache even when persistence is down, so a
// degraded state is reported rather than a failure.
func (c *Core) HealthSummary(ctx context.Context) *models.HealthSummary {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	persistenceHealthy := true
	persistenceDetail := ""

	if err := c.store.Ping(pingCtx); err != nil {
		persistenceHealthy = false
		persistenceDetail = err.Error()
	}

	summary := &models.HealthSummary{
		Status:          "ok",
		HealthScore:     100,
		UptimeSeconds:   time.Since(c.startedAt).Seconds(),
		RequestCounters: c.counterSnapshot(),
		Components: []models.ComponentState{
			{Name: "persistence", Healthy: persistenceHealthy, Detail: persistenceDetail},
			{Name: "entity_cache", Healthy: true},
			{Name: "discovery_cache", Healthy: true, Detail: itemCountDetail(c.disco)},
		},
	}

	if !persistenceHealthy {
		summary.Status = "degraded"
		summary.HealthScore = 50
	}

	return summary
}

func itemCountDetail(d *DiscoveryCache) string {
	if d == nil {
		return ""
	}

	return fmt.Sprintf("%d cached queries", d.ItemCount())
}
