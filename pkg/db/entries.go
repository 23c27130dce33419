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

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fleetmind/registry/pkg/logger"
	"github.com/fleetmind/registry/pkg/models"
)

// Store is the pgx-backed implementation of Service. Each entity kind maps to
// its own table; relational fields are stored both as foreign-key columns and
// denormalized id-list columns for fast hierarchy reads, and every row keeps
// the full entry document for rehydration.
type Store struct {
	pool   *pgxpool.Pool
	logger logger.Logger
}

// NewStore wraps an existing pool.
func NewStore(pool *pgxpool.Pool, log logger.Logger) *Store {
	return &Store{pool: pool, logger: log.WithComponent("db")}
}

var kindTables = map[models.EntityKind]string{
	models.KindWorker:         "workers",
	models.KindSupervisor:     "supervisors",
	models.KindGroup:          "groups",
	models.KindSuperGroup:     "supergroups",
	models.KindDatastore:      "datastores",
	models.KindNetworkService: "network_services",
}

const (
	upsertWorkerSQL = `
INSERT INTO workers (
	id, name, status, health_status, health_score,
	capabilities, tags, metadata, last_heartbeat,
	registered_at, updated_at, version,
	group_id, supergroup_id, supervisor_id,
	current_load, max_concurrent_tasks, current_tasks,
	total_interactions, total_cost, success_rate, doc
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22
)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	status = EXCLUDED.status,
	health_status = EXCLUDED.health_status,
	health_score = EXCLUDED.health_score,
	capabilities = EXCLUDED.capabilities,
	tags = EXCLUDED.tags,
	metadata = EXCLUDED.metadata,
	last_heartbeat = EXCLUDED.last_heartbeat,
	updated_at = EXCLUDED.updated_at,
	version = EXCLUDED.version,
	group_id = EXCLUDED.group_id,
	supergroup_id = EXCLUDED.supergroup_id,
	supervisor_id = EXCLUDED.supervisor_id,
	current_load = EXCLUDED.current_load,
	max_concurrent_tasks = EXCLUDED.max_concurrent_tasks,
	current_tasks = EXCLUDED.current_tasks,
	total_interactions = EXCLUDED.total_interactions,
	total_cost = EXCLUDED.total_cost,
	success_rate = EXCLUDED.success_rate,
	doc = EXCLUDED.doc`

	upsertSupervisorSQL = `
INSERT INTO supervisors (
	id, name, status, health_status, health_score,
	capabilities, tags, metadata, last_heartbeat,
	registered_at, updated_at, version,
	group_id, supergroup_id, supervisor_id,
	current_load, max_concurrent_tasks, current_tasks,
	total_interactions, total_cost, success_rate,
	tier, subordinate_ids, managed_group_ids, authority_level, doc
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26
)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	status = EXCLUDED.status,
	health_status = EXCLUDED.health_status,
	health_score = EXCLUDED.health_score,
	capabilities = EXCLUDED.capabilities,
	tags = EXCLUDED.tags,
	metadata = EXCLUDED.metadata,
	last_heartbeat = EXCLUDED.last_heartbeat,
	updated_at = EXCLUDED.updated_at,
	version = EXCLUDED.version,
	group_id = EXCLUDED.group_id,
	supergroup_id = EXCLUDED.supergroup_id,
	supervisor_id = EXCLUDED.supervisor_id,
	current_load = EXCLUDED.current_load,
	max_concurrent_tasks = EXCLUDED.max_concurrent_tasks,
	current_tasks = EXCLUDED.current_tasks,
	total_interactions = EXCLUDED.total_interactions,
	total_cost = EXCLUDED.total_cost,
	success_rate = EXCLUDED.success_rate,
	tier = EXCLUDED.tier,
	subordinate_ids = EXCLUDED.subordinate_ids,
	managed_group_ids = EXCLUDED.managed_group_ids,
	authority_level = EXCLUDED.authority_level,
	doc = EXCLUDED.doc`

	upsertGroupSQL = `
INSERT INTO groups (
	id, name, status, health_status, health_score,
	capabilities, tags, metadata, last_heartbeat,
	registered_at, updated_at, version,
	supergroup_id, member_ids, capacity,
	budget_allocated, budget_consumed, performance_score, doc
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19
)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	status = EXCLUDED.status,
	health_status = EXCLUDED.health_status,
	health_score = EXCLUDED.health_score,
	capabilities = EXCLUDED.capabilities,
	tags = EXCLUDED.tags,
	metadata = EXCLUDED.metadata,
	last_heartbeat = EXCLUDED.last_heartbeat,
	updated_at = EXCLUDED.updated_at,
	version = EXCLUDED.version,
	supergroup_id = EXCLUDED.supergroup_id,
	member_ids = EXCLUDED.member_ids,
	capacity = EXCLUDED.capacity,
	budget_allocated = EXCLUDED.budget_allocated,
	budget_consumed = EXCLUDED.budget_consumed,
	performance_score = EXCLUDED.performance_score,
	doc = EXCLUDED.doc`

	upsertSuperGroupSQL = `
INSERT INTO supergroups (
	id, name, status, health_status, health_score,
	capabilities, tags, metadata, last_heartbeat,
	registered_at, updated_at, version,
	group_ids, total_member_count, total_budget, doc
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16
)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	status = EXCLUDED.status,
	health_status = EXCLUDED.health_status,
	health_score = EXCLUDED.health_score,
	capabilities = EXCLUDED.capabilities,
	tags = EXCLUDED.tags,
	metadata = EXCLUDED.metadata,
	last_heartbeat = EXCLUDED.last_heartbeat,
	updated_at = EXCLUDED.updated_at,
	version = EXCLUDED.version,
	group_ids = EXCLUDED.group_ids,
	total_member_count = EXCLUDED.total_member_count,
	total_budget = EXCLUDED.total_budget,
	doc = EXCLUDED.doc`

	upsertDatastoreSQL = `
INSERT INTO datastores (
	id, name, status, health_status, health_score,
	capabilities, tags, metadata, last_heartbeat,
	registered_at, updated_at, version,
	engine, host, port, max_connections, current_connections, storage_used, doc
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19
)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	status = EXCLUDED.status,
	health_status = EXCLUDED.health_status,
	health_score = EXCLUDED.health_score,
	capabilities = EXCLUDED.capabilities,
	tags = EXCLUDED.tags,
	metadata = EXCLUDED.metadata,
	last_heartbeat = EXCLUDED.last_heartbeat,
	updated_at = EXCLUDED.updated_at,
	version = EXCLUDED.version,
	engine = EXCLUDED.engine,
	host = EXCLUDED.host,
	port = EXCLUDED.port,
	max_connections = EXCLUDED.max_connections,
	current_connections = EXCLUDED.current_connections,
	storage_used = EXCLUDED.storage_used,
	doc = EXCLUDED.doc`

	upsertNetworkServiceSQL = `
INSERT INTO network_services (
	id, name, status, health_status, health_score,
	capabilities, tags, metadata, last_heartbeat,
	registered_at, updated_at, version,
	service_class, host, port, protocol, endpoints,
	current_load, error_rate, uptime_percentage, doc
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21
)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	status = EXCLUDED.status,
	health_status = EXCLUDED.health_status,
	health_score = EXCLUDED.health_score,
	capabilities = EXCLUDED.capabilities,
	tags = EXCLUDED.tags,
	metadata = EXCLUDED.metadata,
	last_heartbeat = EXCLUDED.last_heartbeat,
	updated_at = EXCLUDED.updated_at,
	version = EXCLUDED.version,
	service_class = EXCLUDED.service_class,
	host = EXCLUDED.host,
	port = EXCLUDED.port,
	protocol = EXCLUDED.protocol,
	endpoints = EXCLUDED.endpoints,
	current_load = EXCLUDED.current_load,
	error_rate = EXCLUDED.error_rate,
	uptime_percentage = EXCLUDED.uptime_percentage,
	doc = EXCLUDED.doc`
)

// UpsertEntry writes the entry to its kind's table with
// insert-or-update-on-conflict semantics keyed by id.
func (s *Store) UpsertEntry(ctx context.Context, entry models.Entry) error {
	if entry == nil {
		return ErrEntryNil
	}

	base := entry.Base()
	if base.ID == "" {
		return ErrEntryIDRequired
	}

	doc, err := marshalJSON(entry)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFailedToInsert, err)
	}

	baseArgs, err := baseColumnArgs(base)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFailedToInsert, err)
	}

	var (
		sql  string
		args []any
	)

	switch e := entry.(type) {
	case *models.Supervisor:
		subs, err := marshalJSON(e.SubordinateIDs)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrFailedToInsert, err)
		}

		managed, err := marshalJSON(e.ManagedGroupIDs)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrFailedToInsert, err)
		}

		sql = upsertSupervisorSQL
		args = append(baseArgs,
			e.GroupID, e.SuperGroupID, e.SupervisorID,
			e.CurrentLoad, e.MaxConcurrentTasks, e.CurrentTasks,
			e.TotalInteractions, e.TotalCost, e.SuccessRate,
			string(e.Tier), subs, managed, e.AuthorityLevel, doc)
	case *models.Worker:
		sql = upsertWorkerSQL
		args = append(baseArgs,
			e.GroupID, e.SuperGroupID, e.SupervisorID,
			e.CurrentLoad, e.MaxConcurrentTasks, e.CurrentTasks,
			e.TotalInteractions, e.TotalCost, e.SuccessRate, doc)
	case *models.Group:
		members, err := marshalJSON(e.MemberIDs)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrFailedToInsert, err)
		}

		sql = upsertGroupSQL
		args = append(baseArgs,
			e.SuperGroupID, members, e.Capacity,
			e.BudgetAllocated, e.BudgetConsumed, e.PerformanceScore, doc)
	case *models.SuperGroup:
		groups, err := marshalJSON(e.GroupIDs)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrFailedToInsert, err)
		}

		sql = upsertSuperGroupSQL
		args = append(baseArgs,
			groups, e.TotalMemberCount, e.TotalBudget, doc)
	case *models.Datastore:
		sql = upsertDatastoreSQL
		args = append(baseArgs,
			e.Engine, e.Host, e.Port,
			e.MaxConnections, e.CurrentConnections, e.StorageUsed, doc)
	case *models.NetworkService:
		endpoints, err := marshalJSON(e.Endpoints)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrFailedToInsert, err)
		}

		sql = upsertNetworkServiceSQL
		args = append(baseArgs,
			string(e.ServiceClass), e.Host, e.Port, e.Protocol, endpoints,
			e.CurrentLoad, e.ErrorRate, e.UptimePercentage, doc)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownEntityKind, entry)
	}

	if _, err := s.pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("%w: upserting %s %s: %w", ErrFailedToInsert, base.Kind, base.ID, err)
	}

	return nil
}

// DeleteEntry removes the row for id from the kind's table. Deleting an
// absent row is not an error; the core owns existence checks.
func (s *Store) DeleteEntry(ctx context.Context, kind models.EntityKind, id string) error {
	table, ok := kindTables[kind]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEntityKind, kind)
	}

	if _, err := s.pool.Exec(ctx, "DELETE FROM "+table+" WHERE id = $1", id); err != nil {
		return fmt.Errorf("%w: deleting %s %s: %w", ErrFailedToQuery, kind, id, err)
	}

	return nil
}

// ListEntries reads every stored entry, decoding each row's document back
// into its concrete type. Used once at startup to rehydrate the cache.
func (s *Store) ListEntries(ctx context.Context) ([]models.Entry, error) {
	var entries []models.Entry

	for _, kind := range models.AllKinds() {
		table := kindTables[kind]

		rows, err := s.pool.Query(ctx, "SELECT doc FROM "+table)
		if err != nil {
			return nil, fmt.Errorf("%w: listing %s: %w", ErrFailedToQuery, table, err)
		}

		for rows.Next() {
			var doc []byte

			if err := rows.Scan(&doc); err != nil {
				rows.Close()

				return nil, fmt.Errorf("%w: %s row: %w", ErrFailedToScan, table, err)
			}

			entry, err := models.DecodeEntry(kind, doc)
			if err != nil {
				s.logger.Warn().Err(err).Str("table", table).Msg("skipping undecodable entry")

				continue
			}

			entries = append(entries, entry)
		}

		err = rows.Err()

		rows.Close()

		if err != nil {
			return nil, fmt.Errorf("%w: iterating %s: %w", ErrFailedToQuery, table, err)
		}
	}

	return entries, nil
}

// Ping verifies the backend is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()

	return nil
}

func baseColumnArgs(base *models.BaseEntry) ([]any, error) {
	capabilities, err := marshalJSON(base.Capabilities)
	if err != nil {
		return nil, err
	}

	tags, err := marshalJSON(base.Tags)
	if err != nil {
		return nil, err
	}

	metadata, err := marshalJSON(base.Metadata)
	if err != nil {
		return nil, err
	}

	return []any{
		base.ID, base.Name, string(base.Status), string(base.HealthStatus), base.HealthScore,
		capabilities, tags, metadata, base.LastHeartbeat,
		base.RegisteredAt, base.UpdatedAt, base.Version,
	}, nil
}
