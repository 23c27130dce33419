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

// Package registry implements the registry core: the canonical in-memory
// entity cache with synchronous write-through to persistence, event emission
// on every mutation, filtered discovery with memoized results, and the
// background monitors that keep entity health current.
//
// The core exclusively owns the entity cache. The cache is updated first so
// discovery is immediately consistent; if the subsequent persistence write
// fails the cache change is reverted and the caller sees ErrPersistenceFailure,
// so the cache never holds state the caller believes durable when it is not.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fleetmind/registry/pkg/db"
	"github.com/fleetmind/registry/pkg/eventbus"
	"github.com/fleetmind/registry/pkg/logger"
	"github.com/fleetmind/registry/pkg/models"
)

const heartbeatHealthBonus = 10

// Core orchestrates the entity cache, persistence, and event publishing. It
// is constructed explicitly and passed by reference; there is no package-level
// instance.
type Core struct {
	mu      sync.RWMutex
	entries map[string]models.Entry

	store db.Service
	bus   eventbus.Publisher
	disco *DiscoveryCache

	logger    logger.Logger
	startedAt time.Time

	countersMu sync.Mutex
	counters   map[string]int64
}

// NewCore wires a Core. kvStore may be nil; the discovery cache then runs
// local-only.
func NewCore(store db.Service, bus eventbus.Publisher, disco *DiscoveryCache, log logger.Logger) *Core {
	return &Core{
		entries:   make(map[string]models.Entry),
		store:     store,
		bus:       bus,
		disco:     disco,
		logger:    log.WithComponent("registry"),
		startedAt: time.Now(),
		counters:  make(map[string]int64),
	}
}

// Rehydrate loads every persisted entry into the cache. Called once at
// startup, before the core serves requests.
func (c *Core) Rehydrate(ctx context.Context) error {
	entries, err := c.store.ListEntries(ctx)
	if err != nil {
		return fmt.Errorf("%w: rehydrating cache: %w", models.ErrPersistenceFailure, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, entry := range entries {
		c.entries[entry.Base().ID] = entry
	}

	c.logger.Info().Int("entries", len(entries)).Msg("cache rehydrated from persistence")

	return nil
}

// Register stores a new entry. The id must be unused across all kinds; a
// duplicate fails with ErrAlreadyRegistered and leaves the original untouched.
func (c *Core) Register(ctx context.Context, entry models.Entry) (models.Entry, error) {
	c.count("register")

	if entry == nil {
		return nil, fmt.Errorf("%w: entry is nil", models.ErrValidationFailed)
	}

	base := entry.Base()
	if base.ID == "" {
		base.ID = uuid.New().String()
	}

	if base.Status == "" {
		base.Status = models.StatusStarting
	}

	now := time.Now().UTC()
	base.RegisteredAt = now
	base.UpdatedAt = now
	base.HealthStatus = models.HealthStatusForScore(base.HealthScore, base.LastHeartbeat != nil)

	if err := entry.Validate(); err != nil {
		return nil, err
	}

	stored := entry.Clone()

	c.mu.Lock()
	if _, exists := c.entries[base.ID]; exists {
		c.mu.Unlock()

		return nil, fmt.Errorf("%w: %s", models.ErrAlreadyRegistered, base.ID)
	}

	c.entries[base.ID] = stored
	c.mu.Unlock()

	if err := c.store.UpsertEntry(ctx, stored); err != nil {
		// Roll the cache insert back so cache and store never diverge.
		c.mu.Lock()
		delete(c.entries, base.ID)
		c.mu.Unlock()

		return nil, fmt.Errorf("%w: registering %s: %w", models.ErrPersistenceFailure, base.ID, err)
	}

	c.disco.Invalidate(stored.GetKind())

	c.emit(ctx, models.EventRegistered, stored, map[string]any{
		"name":   base.Name,
		"status": base.Status,
	})

	c.logger.Info().
		Str("entity_id", base.ID).
		Str("kind", string(stored.GetKind())).
		Msg("entity registered")

	return stored.Clone(), nil
}

// Unregister removes the entry from cache and persistence.
func (c *Core) Unregister(ctx context.Context, id string) error {
	c.count("unregister")

	c.mu.Lock()
	entry, ok := c.entries[id]
	if !ok {
		c.mu.Unlock()

		return fmt.Errorf("%w: %s", models.ErrNotFound, id)
	}

	delete(c.entries, id)
	c.mu.Unlock()

	if err := c.store.DeleteEntry(ctx, entry.GetKind(), id); err != nil {
		c.mu.Lock()
		c.entries[id] = entry
		c.mu.Unlock()

		return fmt.Errorf("%w: unregistering %s: %w", models.ErrPersistenceFailure, id, err)
	}

	c.disco.Invalidate(entry.GetKind())

	c.emit(ctx, models.EventUnregistered, entry, nil)

	c.logger.Info().
		Str("entity_id", id).
		Str("kind", string(entry.GetKind())).
		Msg("entity unregistered")

	return nil
}

// Get returns a copy of the entry. Callers hold copies that may go stale;
// they must never be written back except through Update.
func (c *Core) Get(_ context.Context, id string) (models.Entry, error) {
	c.count("get")

	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrNotFound, id)
	}

	return entry.Clone(), nil
}

// Heartbeat records liveness: resets the heartbeat timer, bumps the health
// score by +10 capped at 100, and brings an offline entry back online.
// Repeating it saturates the score at 100 and never errors.
func (c *Core) Heartbeat(ctx context.Context, id string) error {
	c.count("heartbeat")

	c.mu.Lock()
	entry, ok := c.entries[id]
	if !ok {
		c.mu.Unlock()

		return fmt.Errorf("%w: %s", models.ErrNotFound, id)
	}

	snapshot := entry.Clone()

	now := time.Now().UTC()
	base := entry.Base()
	base.LastHeartbeat = &now
	base.UpdatedAt = now

	base.HealthScore += heartbeatHealthBonus
	if base.HealthScore > 100 {
		base.HealthScore = 100
	}

	base.HealthStatus = models.HealthStatusForScore(base.HealthScore, true)

	wasOffline := base.Status == models.StatusOffline
	if wasOffline {
		base.Status = models.StatusOnline
	}

	updated := entry.Clone()
	c.mu.Unlock()

	if err := c.store.UpsertEntry(ctx, updated); err != nil {
		c.restore(id, snapshot)

		return fmt.Errorf("%w: heartbeat for %s: %w", models.ErrPersistenceFailure, id, err)
	}

	c.disco.Invalidate(updated.GetKind())

	data := map[string]any{"health_score": updated.Base().HealthScore}
	if wasOffline {
		data["status"] = models.StatusOnline
	}

	c.emit(ctx, models.EventHeartbeat, updated, data)

	return nil
}

// restore puts a rollback snapshot back in the cache.
func (c *Core) restore(id string, snapshot models.Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[id] = snapshot
}

// emit publishes exactly one event for a mutation. Publish failures are
// logged, not surfaced: the mutation itself already succeeded durably.
func (c *Core) emit(ctx context.Context, eventType models.EventType, entry models.Entry, data map[string]any) {
	event := &models.Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		EntityID:   entry.Base().ID,
		EntityKind: entry.GetKind(),
		Timestamp:  time.Now().UTC(),
		Data:       data,
	}

	if err := c.bus.Publish(ctx, event); err != nil {
		c.logger.Error().
			Err(err).
			Str("event_type", string(eventType)).
			Str("entity_id", event.EntityID).
			Msg("failed to publish event")
	}
}

func (c *Core) count(op string) {
	c.countersMu.Lock()
	defer c.countersMu.Unlock()

	c.counters[op]++
}

func (c *Core) counterSnapshot() map[string]int64 {
	c.countersMu.Lock()
	defer c.countersMu.Unlock()

	out := make(map[string]int64, len(c.counters))
	for k, v := range c.counters {
		out[k] = v
	}

	return out
}

// snapshotEntries returns clones of every cached entry; used by monitors and
// aggregate reads so they never touch live cache objects.
func (c *Core) snapshotEntries() []models.Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.Entry, 0, len(c.entries))
	for _, entry := range c.entries {
		out = append(out, entry.Clone())
	}

	return out
}
