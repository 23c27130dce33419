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
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/fleetmind/registry/pkg/logger"
	"github.com/fleetmind/registry/pkg/models"
)

const (
	// StreamName is the durable JetStream stream holding every registry event.
	StreamName = "REGISTRY_EVENTS"

	// streamSubjects covers registry.events.<kind>.<type>.
	streamSubjects = "registry.events.>"
)

// NatsPublisher is the JetStream-backed Publisher.
type NatsPublisher struct {
	nc       *nats.Conn
	js       jetstream.JetStream
	handlers *handlerSet
	logger   logger.Logger
}

// NewNatsPublisher connects to NATS, ensures the events stream exists, and
// returns a ready publisher.
func NewNatsPublisher(ctx context.Context, natsURL string, log logger.Logger) (*NatsPublisher, error) {
	nc, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()

		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     StreamName,
		Subjects: []string{streamSubjects},
	})
	if err != nil {
		nc.Close()

		return nil, fmt.Errorf("failed to ensure events stream: %w", err)
	}

	return &NatsPublisher{
		nc:       nc,
		js:       js,
		handlers: newHandlerSet(log),
		logger:   log.WithComponent("eventbus"),
	}, nil
}

// Publish appends the event to the stream, then dispatches to local handlers.
// Local dispatch happens even when the stream append fails so realtime
// subscribers are not starved by a NATS outage; the error is still returned.
func (p *NatsPublisher) Publish(ctx context.Context, event *models.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", event.ID, err)
	}

	_, pubErr := p.js.Publish(ctx, SubjectFor(event), payload)
	if pubErr != nil {
		p.logger.Error().
			Err(pubErr).
			Str("event_id", event.ID).
			Str("subject", SubjectFor(event)).
			Msg("failed to publish event to stream")
	}

	p.handlers.dispatch(event)

	if pubErr != nil {
		return fmt.Errorf("failed to publish event %s: %w", event.ID, pubErr)
	}

	return nil
}

func (p *NatsPublisher) Subscribe(handler Handler) func() {
	return p.handlers.subscribe(handler)
}

func (p *NatsPublisher) Close() error {
	p.nc.Close()

	return nil
}

var _ Publisher = (*NatsPublisher)(nil)
