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

package client

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fleetmind/registry/pkg/models"
)

const (
	reconnectInitialDelay = time.Second
	reconnectMaxDelay     = 30 * time.Second
)

// EventFilter narrows the event stream a subscription receives. Empty fields
// mean "all".
type EventFilter struct {
	EntityKinds []models.EntityKind `json:"entity_kinds,omitempty"`
	EventTypes  []models.EventType  `json:"event_types,omitempty"`
}

// EventHandler receives each event delivered over the subscription.
type EventHandler func(event *models.Event)

// Subscribe dials the registry's websocket endpoint, applies filter, and
// invokes handler for each event until ctx is canceled. Dropped connections
// are redialed with exponential backoff indefinitely, re-issuing the filter
// on each reconnect; events published while disconnected are not replayed.
func (c *Client) Subscribe(ctx context.Context, filter EventFilter, handler EventHandler) error {
	wsURL := websocketURL(c.baseURL) + "/api/events/ws"
	delay := reconnectInitialDelay

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := c.runSubscription(ctx, wsURL, filter, handler)
		if err == nil || ctx.Err() != nil {
			return ctx.Err()
		}

		c.logger.Warn().Err(err).Dur("retry_in", delay).Msg("event subscription dropped, reconnecting")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > reconnectMaxDelay {
			delay = reconnectMaxDelay
		}
	}
}

// runSubscription holds one websocket connection open, returning when it
// drops or ctx is canceled.
func (c *Client) runSubscription(ctx context.Context, wsURL string, filter EventFilter, handler EventHandler) error {
	dialCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, wsURL, nil)

	cancel()

	if err != nil {
		return err
	}

	defer conn.Close()

	// The gateway delivers nothing until a subscribe frame arrives; an empty
	// filter subscribes to everything.
	sub := map[string]any{
		"command":      "subscribe",
		"entity_kinds": filter.EntityKinds,
		"event_types":  filter.EventTypes,
	}

	if err := conn.WriteJSON(sub); err != nil {
		return err
	}

	// Unblock ReadMessage when the caller cancels.
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var event models.Event
		if err := json.Unmarshal(data, &event); err != nil {
			c.logger.Warn().Err(err).Msg("dropping undecodable event")

			continue
		}

		handler(&event)
	}
}

func websocketURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return base
	}
}
