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

import "time"

// Statistics is the aggregate view served by the statistics endpoint.
type Statistics struct {
	TotalEntities      int                  `json:"total_entities"`
	CountsByKind       map[EntityKind]int   `json:"counts_by_kind"`
	CountsByStatus     map[EntityStatus]int `json:"counts_by_status"`
	CountsByHealth     map[HealthStatus]int `json:"counts_by_health"`
	AverageHealthScore float64              `json:"average_health_score"`
	RequestCounters    map[string]int64     `json:"request_counters"`
	GeneratedAt        time.Time            `json:"generated_at"`
}

// MetricsSnapshot is the row persisted by the metrics-aggregation monitor.
type MetricsSnapshot struct {
	Timestamp          time.Time        `json:"timestamp"`
	UptimeSeconds      float64          `json:"uptime_seconds"`
	TotalEntities      int              `json:"total_entities"`
	OnlineEntities     int              `json:"online_entities"`
	AverageHealthScore float64          `json:"average_health_score"`
	SuccessRate        float64          `json:"success_rate"`
	RequestCounters    map[string]int64 `json:"request_counters"`
}

// ComponentState describes one registry dependency on the health endpoint.
type ComponentState struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

// HealthSummary is the registry's own operational health.
type HealthSummary struct {
	Status          string           `json:"status"`
	HealthScore     float64          `json:"health_score"`
	Components      []ComponentState `json:"components"`
	UptimeSeconds   float64          `json:"uptime_seconds"`
	RequestCounters map[string]int64 `json:"request_counters"`
}

// HierarchyMember is a leaf (worker or supervisor) in the organizational tree.
type HierarchyMember struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Kind        EntityKind   `json:"kind"`
	Status      EntityStatus `json:"status"`
	HealthScore float64      `json:"health_score"`
}

// HierarchyGroup is a group with its resolved members.
type HierarchyGroup struct {
	ID      string            `json:"id"`
	Name    string            `json:"name"`
	Members []HierarchyMember `json:"members"`
}

// HierarchyNode is a supergroup with its resolved groups.
type HierarchyNode struct {
	ID     string           `json:"id"`
	Name   string           `json:"name"`
	Groups []HierarchyGroup `json:"groups"`
}

// Hierarchy is the full organizational tree: supergroups, their groups, and
// any groups not attached to a supergroup.
type Hierarchy struct {
	SuperGroups    []HierarchyNode  `json:"supergroups"`
	OrphanedGroups []HierarchyGroup `json:"orphaned_groups,omitempty"`
}
