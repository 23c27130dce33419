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
	"time"
)

const defaultHeartbeatInterval = 30 * time.Second

// StartHeartbeat launches a goroutine that heartbeats the entry with the
// given ID every interval until ctx is canceled, StopHeartbeat(id) is called,
// or the entry is unregistered through this client. Heartbeat failures are
// logged and the loop keeps going; a missing entry stops it.
func (c *Client) StartHeartbeat(ctx context.Context, id string, interval time.Duration) {
	if interval <= 0 {
		interval = defaultHeartbeatInterval
	}

	loopCtx, cancel := context.WithCancel(ctx)

	c.heartbeatsMu.Lock()

	if c.heartbeats == nil {
		c.heartbeats = make(map[string]context.CancelFunc)
	}

	if prev, ok := c.heartbeats[id]; ok {
		prev()
	}

	c.heartbeats[id] = cancel
	c.heartbeatsMu.Unlock()

	go c.heartbeatLoop(loopCtx, id, interval)
}

// StopHeartbeat stops the heartbeat loop for id, if one is running.
func (c *Client) StopHeartbeat(id string) {
	c.stopHeartbeat(id)
}

func (c *Client) heartbeatLoop(ctx context.Context, id string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Heartbeat(ctx, id); err != nil {
				if ctx.Err() != nil {
					return
				}

				c.logger.Warn().Err(err).Str("entity_id", id).Msg("heartbeat failed")
			}
		}
	}
}

func (c *Client) stopHeartbeat(id string) {
	c.heartbeatsMu.Lock()
	defer c.heartbeatsMu.Unlock()

	if cancel, ok := c.heartbeats[id]; ok {
		cancel()
		delete(c.heartbeats, id)
	}
}

func (c *Client) stopAllHeartbeats() {
	c.heartbeatsMu.Lock()
	defer c.heartbeatsMu.Unlock()

	for id, cancel := range c.heartbeats {
		cancel()
		delete(c.heartbeats, id)
	}
}
