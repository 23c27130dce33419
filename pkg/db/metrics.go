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

package db

import (
	"context"
	"fmt"

	"github.com/fleetmind/registry/pkg/models"
)

const insertMetricsSnapshotSQL = `
INSERT INTO registry_metrics (
	timestamp, uptime_seconds, total_entities, online_entities,
	average_health_score, success_rate, request_counters
) VALUES ($1,$2,$3,$4,$5,$6,$7)`

// StoreMetricsSnapshot appends one aggregated metrics row.
func (s *Store) StoreMetricsSnapshot(ctx context.Context, snapshot *models.MetricsSnapshot) error {
	if snapshot == nil {
		return ErrSnapshotNil
	}

	counters, err := marshalJSON(snapshot.RequestCounters)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFailedToInsert, err)
	}

	_, err = s.pool.Exec(ctx, insertMetricsSnapshotSQL,
		snapshot.Timestamp, snapshot.UptimeSeconds, snapshot.TotalEntities,
		snapshot.OnlineEntities, snapshot.AverageHealthScore, snapshot.SuccessRate,
		counters)
	if err != nil {
		return fmt.Errorf("%w: metrics snapshot: %w", ErrFailedToInsert, err)
	}

	return nil
}
