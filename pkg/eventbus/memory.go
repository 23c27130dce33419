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

package eventbus

import (
	"context"
	"sync"

	"github.com/fleetmind/registry/pkg/logger"
	"github.com/fleetmind/registry/pkg/models"
)

// MemoryBus is an in-process Publisher with no durable stream. It backs tests
// and single-node deployments that run without NATS.
type MemoryBus struct {
	mu       sync.Mutex
	events   []*models.Event
	handlers *handlerSet
}

// NewMemoryBus creates an empty in-process bus.
func NewMemoryBus(log logger.Logger) *MemoryBus {
	return &MemoryBus{handlers: newHandlerSet(log)}
}

func (b *MemoryBus) Publish(_ context.Context, event *models.Event) error {
	b.mu.Lock()
	b.events = append(b.events, event)
	b.mu.Unlock()

	b.handlers.dispatch(event)

	return nil
}

func (b *MemoryBus) Subscribe(handler Handler) func() {
	return b.handlers.subscribe(handler)
}

func (b *MemoryBus) Close() error { return nil }

// Events returns a snapshot of everything published so far.
func (b *MemoryBus) Events() []*models.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]*models.Event(nil), b.events...)
}

// EventsOfType filters the snapshot by event type.
func (b *MemoryBus) EventsOfType(t models.EventType) []*models.Event {
	var out []*models.Event

	for _, ev := range b.Events() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}

	return out
}

var _ Publisher = (*MemoryBus)(nil)
