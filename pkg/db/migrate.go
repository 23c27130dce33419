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
)

const baseColumnsDDL = `
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	status TEXT NOT NULL,
	health_status TEXT NOT NULL,
	health_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	capabilities JSONB NOT NULL DEFAULT '[]',
	tags JSONB NOT NULL DEFAULT '[]',
	metadata JSONB NOT NULL DEFAULT '{}',
	last_heartbeat TIMESTAMPTZ,
	registered_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	version TEXT NOT NULL DEFAULT '',
	doc JSONB NOT NULL`

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS workers (` + baseColumnsDDL + `,
	group_id TEXT,
	supergroup_id TEXT,
	supervisor_id TEXT,
	current_load DOUBLE PRECISION NOT NULL DEFAULT 0,
	max_concurrent_tasks INTEGER NOT NULL DEFAULT 0,
	current_tasks INTEGER NOT NULL DEFAULT 0,
	total_interactions BIGINT NOT NULL DEFAULT 0,
	total_cost DOUBLE PRECISION NOT NULL DEFAULT 0,
	success_rate DOUBLE PRECISION NOT NULL DEFAULT 0
)`,
	`CREATE TABLE IF NOT EXISTS supervisors (` + baseColumnsDDL + `,
	group_id TEXT,
	supergroup_id TEXT,
	supervisor_id TEXT,
	current_load DOUBLE PRECISION NOT NULL DEFAULT 0,
	max_concurrent_tasks INTEGER NOT NULL DEFAULT 0,
	current_tasks INTEGER NOT NULL DEFAULT 0,
	total_interactions BIGINT NOT NULL DEFAULT 0,
	total_cost DOUBLE PRECISION NOT NULL DEFAULT 0,
	success_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
	tier TEXT NOT NULL DEFAULT '',
	subordinate_ids JSONB NOT NULL DEFAULT '[]',
	managed_group_ids JSONB NOT NULL DEFAULT '[]',
	authority_level INTEGER NOT NULL DEFAULT 1
)`,
	`CREATE TABLE IF NOT EXISTS groups (` + baseColumnsDDL + `,
	supergroup_id TEXT,
	member_ids JSONB NOT NULL DEFAULT '[]',
	capacity INTEGER NOT NULL DEFAULT 0,
	budget_allocated DOUBLE PRECISION NOT NULL DEFAULT 0,
	budget_consumed DOUBLE PRECISION NOT NULL DEFAULT 0,
	performance_score DOUBLE PRECISION NOT NULL DEFAULT 0
)`,
	`CREATE TABLE IF NOT EXISTS supergroups (` + baseColumnsDDL + `,
	group_ids JSONB NOT NULL DEFAULT '[]',
	total_member_count INTEGER NOT NULL DEFAULT 0,
	total_budget DOUBLE PRECISION NOT NULL DEFAULT 0
)`,
	`CREATE TABLE IF NOT EXISTS datastores (` + baseColumnsDDL + `,
	engine TEXT NOT NULL DEFAULT '',
	host TEXT NOT NULL DEFAULT '',
	port INTEGER NOT NULL DEFAULT 0,
	max_connections INTEGER NOT NULL DEFAULT 0,
	current_connections INTEGER NOT NULL DEFAULT 0,
	storage_used BIGINT NOT NULL DEFAULT 0
)`,
	`CREATE TABLE IF NOT EXISTS network_services (` + baseColumnsDDL + `,
	service_class TEXT NOT NULL DEFAULT '',
	host TEXT NOT NULL DEFAULT '',
	port INTEGER NOT NULL DEFAULT 0,
	protocol TEXT NOT NULL DEFAULT '',
	endpoints JSONB NOT NULL DEFAULT '[]',
	current_load DOUBLE PRECISION NOT NULL DEFAULT 0,
	error_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
	uptime_percentage DOUBLE PRECISION NOT NULL DEFAULT 0
)`,
	`CREATE TABLE IF NOT EXISTS registry_metrics (
	timestamp TIMESTAMPTZ NOT NULL,
	uptime_seconds DOUBLE PRECISION NOT NULL,
	total_entities INTEGER NOT NULL,
	online_entities INTEGER NOT NULL,
	average_health_score DOUBLE PRECISION NOT NULL,
	success_rate DOUBLE PRECISION NOT NULL,
	request_counters JSONB NOT NULL DEFAULT '{}'
)`,
	`CREATE INDEX IF NOT EXISTS idx_workers_group ON workers (group_id)`,
	`CREATE INDEX IF NOT EXISTS idx_workers_supergroup ON workers (supergroup_id)`,
	`CREATE INDEX IF NOT EXISTS idx_groups_supergroup ON groups (supergroup_id)`,
	`CREATE INDEX IF NOT EXISTS idx_registry_metrics_ts ON registry_metrics (timestamp)`,
}

// Migrate bootstraps the schema. Statements are idempotent so startup can run
// this unconditionally.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("%w: %w", ErrFailedToInit, err)
		}
	}

	s.logger.Info().Int("statements", len(migrations)).Msg("schema migrations applied")

	return nil
}
