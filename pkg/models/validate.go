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

package models

import "fmt"

func (b *BaseEntry) validateBase() error {
	if b.ID == "" {
		return fmt.Errorf("%w: id is required", ErrValidationFailed)
	}

	if b.Name == "" {
		return fmt.Errorf("%w: name is required", ErrValidationFailed)
	}

	if b.HealthScore < 0 || b.HealthScore > 100 {
		return fmt.Errorf("%w: health_score %.1f out of range [0,100]", ErrValidationFailed, b.HealthScore)
	}

	if !b.UpdatedAt.IsZero() && !b.RegisteredAt.IsZero() && b.UpdatedAt.Before(b.RegisteredAt) {
		return fmt.Errorf("%w: updated_at precedes registered_at", ErrValidationFailed)
	}

	return nil
}

// Validate on BaseEntry alone covers kinds with no extra invariants; the
// concrete types below layer theirs on top.
func (b *BaseEntry) Validate() error {
	return b.validateBase()
}

func (w *Worker) Validate() error {
	if err := w.validateBase(); err != nil {
		return err
	}

	if w.CurrentLoad < 0 || w.CurrentLoad > 100 {
		return fmt.Errorf("%w: current_load %.1f out of range [0,100]", ErrValidationFailed, w.CurrentLoad)
	}

	if w.MaxConcurrentTasks < 0 || w.CurrentTasks < 0 {
		return fmt.Errorf("%w: task counters must be non-negative", ErrValidationFailed)
	}

	if w.CurrentTasks > w.MaxConcurrentTasks {
		return fmt.Errorf("%w: current_tasks %d exceeds max_concurrent_tasks %d",
			ErrValidationFailed, w.CurrentTasks, w.MaxConcurrentTasks)
	}

	return nil
}

func (s *Supervisor) Validate() error {
	if err := s.Worker.Validate(); err != nil {
		return err
	}

	switch s.Tier {
	case TierExecutive, TierGroup, TierTeam:
	default:
		return fmt.Errorf("%w: unknown supervisor tier %q", ErrValidationFailed, s.Tier)
	}

	if s.AuthorityLevel < 1 || s.AuthorityLevel > 10 {
		return fmt.Errorf("%w: authority_level %d out of range [1,10]", ErrValidationFailed, s.AuthorityLevel)
	}

	return nil
}

func (g *Group) Validate() error {
	if err := g.validateBase(); err != nil {
		return err
	}

	if g.Capacity < 0 {
		return fmt.Errorf("%w: capacity must be non-negative", ErrValidationFailed)
	}

	if g.BudgetAllocated < 0 || g.BudgetConsumed < 0 {
		return fmt.Errorf("%w: budgets must be non-negative", ErrValidationFailed)
	}

	return nil
}

func (s *SuperGroup) Validate() error {
	if err := s.validateBase(); err != nil {
		return err
	}

	if s.TotalBudget < 0 {
		return fmt.Errorf("%w: total_budget must be non-negative", ErrValidationFailed)
	}

	return nil
}

func (d *Datastore) Validate() error {
	if err := d.validateBase(); err != nil {
		return err
	}

	if d.Host == "" || d.Port <= 0 {
		return fmt.Errorf("%w: datastore requires host and port", ErrValidationFailed)
	}

	if d.CurrentConnections < 0 || (d.MaxConnections > 0 && d.CurrentConnections > d.MaxConnections) {
		return fmt.Errorf("%w: current_connections %d exceeds max_connections %d",
			ErrValidationFailed, d.CurrentConnections, d.MaxConnections)
	}

	return nil
}

func (n *NetworkService) Validate() error {
	if err := n.validateBase(); err != nil {
		return err
	}

	if n.Host == "" || n.Port <= 0 {
		return fmt.Errorf("%w: network service requires host and port", ErrValidationFailed)
	}

	for _, ep := range n.Endpoints {
		if ep.Path == "" || ep.Method == "" {
			return fmt.Errorf("%w: endpoint requires path and method", ErrValidationFailed)
		}
	}

	if n.ErrorRate < 0 || n.ErrorRate > 100 {
		return fmt.Errorf("%w: error_rate %.1f out of range [0,100]", ErrValidationFailed, n.ErrorRate)
	}

	return nil
}
