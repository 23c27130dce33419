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

// UpdateRequest carries the externally updatable fields. Structural fields
// (id, kind, registered_at) are immutable; anything not in this whitelist
// cannot be changed through Update. Nil pointers mean "leave unchanged";
// non-nil slices and maps replace the previous value wholesale.
type UpdateRequest struct {
	Status            *models.EntityStatus `json:"status,omitempty"`
	HealthScore       *float64             `json:"health_score,omitempty"`
	Metadata          map[string]string    `json:"metadata,omitempty"`
	Capabilities      *[]string            `json:"capabilities,omitempty"`
	Tags              *[]string            `json:"tags,omitempty"`
	CurrentLoad       *float64             `json:"current_load,omitempty"`
	CurrentTasks      *int                 `json:"current_tasks,omitempty"`
	TotalInteractions *int64               `json:"total_interactions,omitempty"`
	TotalCost         *float64             `json:"total_cost,omitempty"`
	SuccessRate       *float64             `json:"success_rate,omitempty"`
}

// Update applies the partial fields to the entry. Validation runs on the
// merged result before anything is visible; a violation rejects the whole
// update and leaves the entry untouched.
func (c *Core) Update(ctx context.Context, id string, req *UpdateRequest) (models.Entry, error) {
	c.count("update")

	if req == nil {
		return nil, fmt.Errorf("%w: update request is nil", models.ErrValidationFailed)
	}

	c.mu.Lock()
	entry, ok := c.entries[id]
	if !ok {
		c.mu.Unlock()

		return nil, fmt.Errorf("%w: %s", models.ErrNotFound, id)
	}

	snapshot := entry.Clone()

	candidate := entry.Clone()
	changes := applyUpdate(candidate, req)

	if err := candidate.Validate(); err != nil {
		c.mu.Unlock()

		return nil, err
	}

	candidate.Base().UpdatedAt = time.Now().UTC()
	c.entries[id] = candidate
	c.mu.Unlock()

	if err := c.store.UpsertEntry(ctx, candidate); err != nil {
		c.restore(id, snapshot)

		return nil, fmt.Errorf("%w: updating %s: %w", models.ErrPersistenceFailure, id, err)
	}

	c.disco.Invalidate(candidate.GetKind())

	c.emit(ctx, models.EventStatusChanged, candidate, map[string]any{"changes": changes})
	c.emitCapabilityDiff(ctx, snapshot, candidate)

	return candidate.Clone(), nil
}

// applyUpdate merges the request into the clone and returns a before/after
// diff per changed field.
func applyUpdate(entry models.Entry, req *UpdateRequest) map[string]any {
	changes := make(map[string]any)
	base := entry.Base()

	record := func(field string, from, to any) {
		changes[field] = map[string]any{"from": from, "to": to}
	}

	if req.Status != nil && *req.Status != base.Status {
		record("status", base.Status, *req.Status)
		base.Status = *req.Status
	}

	if req.HealthScore != nil && *req.HealthScore != base.HealthScore {
		record("health_score", base.HealthScore, *req.HealthScore)
		base.HealthScore = *req.HealthScore
		base.HealthStatus = models.HealthStatusForScore(base.HealthScore, base.LastHeartbeat != nil)
	}

	if req.Metadata != nil {
		record("metadata", base.Metadata, req.Metadata)
		base.Metadata = req.Metadata
	}

	if req.Capabilities != nil {
		record("capabilities", base.Capabilities, *req.Capabilities)
		base.Capabilities = *req.Capabilities
	}

	if req.Tags != nil {
		record("tags", base.Tags, *req.Tags)
		base.Tags = *req.Tags
	}

	applyWorkerUpdate(entry, req, record)

	return changes
}

func applyWorkerUpdate(entry models.Entry, req *UpdateRequest, record func(string, any, any)) {
	worker := workerOf(entry)
	if worker == nil {
		return
	}

	if req.CurrentLoad != nil && *req.CurrentLoad != worker.CurrentLoad {
		record("current_load", worker.CurrentLoad, *req.CurrentLoad)
		worker.CurrentLoad = *req.CurrentLoad
	}

	if req.CurrentTasks != nil && *req.CurrentTasks != worker.CurrentTasks {
		record("current_tasks", worker.CurrentTasks, *req.CurrentTasks)
		worker.CurrentTasks = *req.CurrentTasks
	}

	if req.TotalInteractions != nil && *req.TotalInteractions != worker.TotalInteractions {
		record("total_interactions", worker.TotalInteractions, *req.TotalInteractions)
		worker.TotalInteractions = *req.TotalInteractions
	}

	if req.TotalCost != nil && *req.TotalCost != worker.TotalCost {
		record("total_cost", worker.TotalCost, *req.TotalCost)
		worker.TotalCost = *req.TotalCost
	}

	if req.SuccessRate != nil && *req.SuccessRate != worker.SuccessRate {
		record("success_rate", worker.SuccessRate, *req.SuccessRate)
		worker.SuccessRate = *req.SuccessRate
	}
}

// workerOf unwraps the Worker record inside workers and supervisors.
func workerOf(entry models.Entry) *models.Worker {
	switch e := entry.(type) {
	case *models.Worker:
		return e
	case *models.Supervisor:
		return &e.Worker
	default:
		return nil
	}
}

func (c *Core) emitCapabilityDiff(ctx context.Context, before, after models.Entry) {
	prev := toSet(before.Base().Capabilities)
	next := toSet(after.Base().Capabilities)

	for capability := range next {
		if !prev[capability] {
			c.emit(ctx, models.EventCapabilityAdded, after, map[string]any{"capability": capability})
		}
	}

	for capability := range prev {
		if !next[capability] {
			c.emit(ctx, models.EventCapabilityRemoved, after, map[string]any{"capability": capability})
		}
	}
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}

	return set
}

// applyHealth force-sets an entry's health score (and optionally status) on
// behalf of the background monitors. forceStatus == "" keeps the current
// status; forceHealth == "" derives the health status from the score. Emits
// health_changed when the score moved and status_changed when the status did.
func (c *Core) applyHealth(ctx context.Context, id string, score float64, forceStatus models.EntityStatus, forceHealth models.HealthStatus) error {
	c.mu.Lock()
	entry, ok := c.entries[id]
	if !ok {
		c.mu.Unlock()

		return fmt.Errorf("%w: %s", models.ErrNotFound, id)
	}

	snapshot := entry.Clone()
	base := entry.Base()

	prevScore := base.HealthScore
	prevStatus := base.Status

	nextHealth := models.HealthStatusForScore(score, base.LastHeartbeat != nil)
	if forceHealth != "" {
		nextHealth = forceHealth
	}

	if prevScore == score && nextHealth == base.HealthStatus && (forceStatus == "" || forceStatus == prevStatus) {
		c.mu.Unlock()

		return nil
	}

	base.HealthScore = score
	base.HealthStatus = nextHealth

	if forceStatus != "" {
		base.Status = forceStatus
	}

	base.UpdatedAt = time.Now().UTC()

	updated := entry.Clone()
	c.mu.Unlock()

	if err := c.store.UpsertEntry(ctx, updated); err != nil {
		c.restore(id, snapshot)

		return fmt.Errorf("%w: health update for %s: %w", models.ErrPersistenceFailure, id, err)
	}

	c.disco.Invalidate(updated.GetKind())

	if score != prevScore {
		c.emit(ctx, models.EventHealthChanged, updated, map[string]any{
			"from": prevScore,
			"to":   score,
		})
	}

	if updated.Base().Status != prevStatus {
		c.emit(ctx, models.EventStatusChanged, updated, map[string]any{
			"changes": map[string]any{
				"status": map[string]any{"from": prevStatus, "to": updated.Base().Status},
			},
		})
	}

	return nil
}
