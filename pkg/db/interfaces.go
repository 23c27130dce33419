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

// Package db is the durable persistence adapter for the registry. Writes are
// synchronous (write-through from the registry core); reads happen only at
// process start to rehydrate the in-memory cache.
package db

import (
	"context"

	"github.com/fleetmind/registry/pkg/models"
)

//go:generate mockgen -destination=mock_db.go -package=db github.com/fleetmind/registry/pkg/db Service

// Service represents all database operations used by the registry.
type Service interface {
	// UpsertEntry inserts or updates the entry in its kind's table.
	UpsertEntry(ctx context.Context, entry models.Entry) error

	// DeleteEntry removes the entry from its kind's table.
	DeleteEntry(ctx context.Context, kind models.EntityKind, id string) error

	// ListEntries returns every stored entry across all kinds (rehydrate).
	ListEntries(ctx context.Context) ([]models.Entry, error)

	// StoreMetricsSnapshot appends an aggregated metrics row.
	StoreMetricsSnapshot(ctx context.Context, snapshot *models.MetricsSnapshot) error

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	Close() error
}
