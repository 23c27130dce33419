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

// Package models defines the registry's entity model: a closed set of six
// entity kinds sharing a common base record, the change-event types emitted
// on every mutation, and the registry error taxonomy.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// EntityKind discriminates the six concrete entry types.
type EntityKind string

const (
	KindWorker         EntityKind = "worker"
	KindSupervisor     EntityKind = "supervisor"
	KindGroup          EntityKind = "group"
	KindSuperGroup     EntityKind = "supergroup"
	KindDatastore      EntityKind = "datastore"
	KindNetworkService EntityKind = "network_service"
)

// AllKinds lists every valid entity kind, in a stable order.
func AllKinds() []EntityKind {
	return []EntityKind{
		KindWorker,
		KindSupervisor,
		KindGroup,
		KindSuperGroup,
		KindDatastore,
		KindNetworkService,
	}
}

// EntityStatus is the operational status of an entry.
type EntityStatus string

const (
	StatusOnline      EntityStatus = "online"
	StatusOffline     EntityStatus = "offline"
	StatusStarting    EntityStatus = "starting"
	StatusStopping    EntityStatus = "stopping"
	StatusError       EntityStatus = "error"
	StatusMaintenance EntityStatus = "maintenance"
	StatusDegraded    EntityStatus = "degraded"
)

// HealthStatus is derived from the health score; callers never set it
// directly.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthWarning  HealthStatus = "warning"
	HealthCritical HealthStatus = "critical"
	HealthUnknown  HealthStatus = "unknown"
)

// HealthStatusForScore maps a 0-100 health score to a HealthStatus.
// A zero score means critical once the entry has heartbeated at least once,
// unknown before that.
func HealthStatusForScore(score float64, hasHeartbeat bool) HealthStatus {
	switch {
	case score >= 80:
		return HealthHealthy
	case score >= 50:
		return HealthWarning
	case score >= 1:
		return HealthCritical
	case hasHeartbeat:
		return HealthCritical
	default:
		return HealthUnknown
	}
}

// SupervisorTier is the management tier of a Supervisor.
type SupervisorTier string

const (
	TierExecutive SupervisorTier = "executive"
	TierGroup     SupervisorTier = "group"
	TierTeam      SupervisorTier = "team"
)

// ServiceClass categorizes a NetworkService.
type ServiceClass string

const (
	ClassCoreSystem     ServiceClass = "core-system"
	ClassMeshComponent  ServiceClass = "mesh-component"
	ClassBusinessFacing ServiceClass = "business-facing"
)

// BaseEntry carries the fields common to every entity kind. ID and Kind are
// immutable after registration.
type BaseEntry struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Kind          EntityKind        `json:"kind"`
	Status        EntityStatus      `json:"status"`
	HealthStatus  HealthStatus      `json:"health_status"`
	HealthScore   float64           `json:"health_score"`
	Capabilities  []string          `json:"capabilities,omitempty"`
	Tags          []string          `json:"tags,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	LastHeartbeat *time.Time        `json:"last_heartbeat,omitempty"`
	RegisteredAt  time.Time         `json:"registered_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
	Version       string            `json:"version,omitempty"`
}

// Entry is the closed union over the six concrete entity types. Only types in
// this package implement it.
type Entry interface {
	Base() *BaseEntry
	GetKind() EntityKind
	Validate() error
	Clone() Entry
}

// Worker is an autonomous work-performing entity.
type Worker struct {
	BaseEntry

	GroupID            string  `json:"group_id,omitempty"`
	SuperGroupID       string  `json:"supergroup_id,omitempty"`
	SupervisorID       string  `json:"supervisor_id,omitempty"`
	CurrentLoad        float64 `json:"current_load"`
	MaxConcurrentTasks int     `json:"max_concurrent_tasks"`
	CurrentTasks       int     `json:"current_tasks"`
	TotalInteractions  int64   `json:"total_interactions"`
	TotalCost          float64 `json:"total_cost"`
	SuccessRate        float64 `json:"success_rate"`
}

// Supervisor is a Worker with management authority over subordinates and
// groups.
type Supervisor struct {
	Worker

	Tier            SupervisorTier `json:"tier"`
	SubordinateIDs  []string       `json:"subordinate_ids,omitempty"`
	ManagedGroupIDs []string       `json:"managed_group_ids,omitempty"`
	AuthorityLevel  int            `json:"authority_level"`
}

// Group is an organizational unit of workers and supervisors.
type Group struct {
	BaseEntry

	SuperGroupID     string   `json:"supergroup_id,omitempty"`
	MemberIDs        []string `json:"member_ids,omitempty"`
	Capacity         int      `json:"capacity"`
	BudgetAllocated  float64  `json:"budget_allocated"`
	BudgetConsumed   float64  `json:"budget_consumed"`
	PerformanceScore float64  `json:"performance_score"`
}

// SuperGroup aggregates groups.
type SuperGroup struct {
	BaseEntry

	GroupIDs         []string `json:"group_ids,omitempty"`
	TotalMemberCount int      `json:"total_member_count"`
	TotalBudget      float64  `json:"total_budget"`
}

// Datastore is a registered storage backend.
type Datastore struct {
	BaseEntry

	Engine             string `json:"engine"`
	Host               string `json:"host"`
	Port               int    `json:"port"`
	MaxConnections     int    `json:"max_connections"`
	CurrentConnections int    `json:"current_connections"`
	StorageUsed        int64  `json:"storage_used"`
}

// Endpoint describes one route exposed by a NetworkService.
type Endpoint struct {
	Path   string `json:"path"`
	Method string `json:"method"`
}

// NetworkService is a registered network-reachable service.
type NetworkService struct {
	BaseEntry

	ServiceClass     ServiceClass `json:"service_class"`
	Host             string       `json:"host"`
	Port             int          `json:"port"`
	Protocol         string       `json:"protocol"`
	Endpoints        []Endpoint   `json:"endpoints,omitempty"`
	CurrentLoad      float64      `json:"current_load"`
	ErrorRate        float64      `json:"error_rate"`
	UptimePercentage float64      `json:"uptime_percentage"`
}

func (b *BaseEntry) Base() *BaseEntry     { return b }
func (b *BaseEntry) GetKind() EntityKind  { return b.Kind }
func (w *Worker) GetKind() EntityKind     { return KindWorker }
func (s *Supervisor) GetKind() EntityKind { return KindSupervisor }
func (g *Group) GetKind() EntityKind      { return KindGroup }
func (s *SuperGroup) GetKind() EntityKind { return KindSuperGroup }
func (d *Datastore) GetKind() EntityKind  { return KindDatastore }

func (n *NetworkService) GetKind() EntityKind { return KindNetworkService }

func (w *Worker) Clone() Entry {
	c := *w
	cloneBase(&c.BaseEntry)

	return &c
}

func (s *Supervisor) Clone() Entry {
	c := *s
	cloneBase(&c.BaseEntry)
	c.SubordinateIDs = cloneStrings(s.SubordinateIDs)
	c.ManagedGroupIDs = cloneStrings(s.ManagedGroupIDs)

	return &c
}

func (g *Group) Clone() Entry {
	c := *g
	cloneBase(&c.BaseEntry)
	c.MemberIDs = cloneStrings(g.MemberIDs)

	return &c
}

func (s *SuperGroup) Clone() Entry {
	c := *s
	cloneBase(&c.BaseEntry)
	c.GroupIDs = cloneStrings(s.GroupIDs)

	return &c
}

func (d *Datastore) Clone() Entry {
	c := *d
	cloneBase(&c.BaseEntry)

	return &c
}

func (n *NetworkService) Clone() Entry {
	c := *n
	cloneBase(&c.BaseEntry)
	c.Endpoints = append([]Endpoint(nil), n.Endpoints...)

	return &c
}

func cloneBase(b *BaseEntry) {
	b.Capabilities = cloneStrings(b.Capabilities)
	b.Tags = cloneStrings(b.Tags)

	if b.Metadata != nil {
		m := make(map[string]string, len(b.Metadata))
		for k, v := range b.Metadata {
			m[k] = v
		}

		b.Metadata = m
	}

	if b.LastHeartbeat != nil {
		hb := *b.LastHeartbeat
		b.LastHeartbeat = &hb
	}
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}

	return append([]string(nil), in...)
}

// NewEntry returns a zero-valued concrete entry for the given kind.
func NewEntry(kind EntityKind) (Entry, error) {
	switch kind {
	case KindWorker:
		return &Worker{BaseEntry: BaseEntry{Kind: kind}}, nil
	case KindSupervisor:
		return &Supervisor{Worker: Worker{BaseEntry: BaseEntry{Kind: kind}}}, nil
	case KindGroup:
		return &Group{BaseEntry: BaseEntry{Kind: kind}}, nil
	case KindSuperGroup:
		return &SuperGroup{BaseEntry: BaseEntry{Kind: kind}}, nil
	case KindDatastore:
		return &Datastore{BaseEntry: BaseEntry{Kind: kind}}, nil
	case KindNetworkService:
		return &NetworkService{BaseEntry: BaseEntry{Kind: kind}}, nil
	default:
		return nil, fmt.Errorf("%w: unknown entity kind %q", ErrValidationFailed, kind)
	}
}

// DecodeEntry unmarshals raw JSON into the concrete type selected by kind.
// The kind discriminator always wins over any kind field in the payload.
func DecodeEntry(kind EntityKind, raw []byte) (Entry, error) {
	entry, err := NewEntry(kind)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(raw, entry); err != nil {
		return nil, fmt.Errorf("%w: decoding %s entry: %v", ErrValidationFailed, kind, err)
	}

	entry.Base().Kind = kind

	return entry, nil
}

// entryEnvelope is the wire form used wherever an Entry crosses a process
// boundary: the discriminator rides next to the payload.
type entryEnvelope struct {
	Kind  EntityKind      `json:"kind"`
	Entry json.RawMessage `json:"entry"`
}

// EncodeEntry wraps an Entry in its discriminated envelope.
func EncodeEntry(entry Entry) ([]byte, error) {
	raw, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("encoding %s entry: %w", entry.GetKind(), err)
	}

	return json.Marshal(entryEnvelope{Kind: entry.GetKind(), Entry: raw})
}

// DecodeEntryEnvelope is the inverse of EncodeEntry.
func DecodeEntryEnvelope(data []byte) (Entry, error) {
	var env entryEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: decoding entry envelope: %v", ErrValidationFailed, err)
	}

	return DecodeEntry(env.Kind, env.Entry)
}
