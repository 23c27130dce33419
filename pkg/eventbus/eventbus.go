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

// Package eventbus publishes registry change events. Every event is appended
// to a durable JetStream stream on a subject keyed by entity kind and event
// type, and handed to locally registered in-process handlers. Publish order
// per entity is preserved: the registry core is the single publisher and each
// entity's events share a subject prefix.
package eventbus

import (
	"context"
	"fmt"
	"sync"

	"github.com/fleetmind/registry/pkg/logger"
	"github.com/fleetmind/registry/pkg/models"
)

// Handler receives every published event. Handlers run synchronously on the
// publish path and are panic-isolated; a failing handler cannot take down the
// pipeline.
type Handler func(event *models.Event)

// Publisher is the event-publishing boundary used by the registry core.
type Publisher interface {
	// Publish appends the event to the durable stream and dispatches it to
	// local handlers.
	Publish(ctx context.Context, event *models.Event) error

	// Subscribe registers a local handler; the returned function removes it.
	Subscribe(handler Handler) (unsubscribe func())

	Close() error
}

// SubjectFor returns the stream subject an event is published on. Events not
// tied to an entity (e.g. metric snapshots) file under the "system" kind
// token; NATS subjects cannot carry empty tokens.
func SubjectFor(event *models.Event) string {
	kind := string(event.EntityKind)
	if kind == "" {
		kind = "system"
	}

	return fmt.Sprintf("registry.events.%s.%s", kind, event.Type)
}

// handlerSet manages local subscriptions; shared by the NATS and in-memory
// publishers.
type handlerSet struct {
	mu       sync.RWMutex
	next     int
	handlers map[int]Handler
	logger   logger.Logger
}

func newHandlerSet(log logger.Logger) *handlerSet {
	return &handlerSet{handlers: make(map[int]Handler), logger: log}
}

func (h *handlerSet) subscribe(handler Handler) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.next
	h.next++
	h.handlers[id] = handler

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()

		delete(h.handlers, id)
	}
}

func (h *handlerSet) dispatch(event *models.Event) {
	h.mu.RLock()
	handlers := make([]Handler, 0, len(h.handlers))

	for _, handler := range h.handlers {
		handlers = append(handlers, handler)
	}
	h.mu.RUnlock()

	for _, handler := range handlers {
		h.invoke(handler, event)
	}
}

func (h *handlerSet) invoke(handler Handler, event *models.Event) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error().
				Interface("panic", r).
				Str("event_id", event.ID).
				Str("event_type", string(event.Type)).
				Msg("event handler panicked")
		}
	}()

	handler(event)
}
