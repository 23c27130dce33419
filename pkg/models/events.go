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

// EventType classifies registry change events.
type EventType string

const (
	EventRegistered        EventType = "registered"
	EventUnregistered      EventType = "unregistered"
	EventStatusChanged     EventType = "status_changed"
	EventHeartbeat         EventType = "heartbeat"
	EventHealthChanged     EventType = "health_changed"
	EventCapabilityAdded   EventType = "capability_added"
	EventCapabilityRemoved EventType = "capability_removed"
	EventAssignmentChanged EventType = "assignment_changed"
	EventMetricUpdated     EventType = "metric_updated"
	EventError             EventType = "error"
)

// Event is the single change record emitted for every registry mutation.
type Event struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	EntityID   string         `json:"entity_id"`
	EntityKind EntityKind     `json:"entity_kind"`
	Timestamp  time.Time      `json:"timestamp"`
	Data       map[string]any `json:"data,omitempty"`
}
