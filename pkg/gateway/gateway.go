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

// Package gateway fans registry events out to long-lived websocket
// subscribers. Each connection carries its own subscription filter; a slow or
// dead consumer is marked and pruned without ever blocking the fan-out.
package gateway

import (
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/fleetmind/registry/pkg/eventbus"
	"github.com/fleetmind/registry/pkg/logger"
	"github.com/fleetmind/registry/pkg/models"
)

const sendBufferSize = 64

// ControlMessage is the subscribe/unsubscribe frame clients send.
type ControlMessage struct {
	Command     string              `json:"command"`
	EntityKinds []models.EntityKind `json:"entity_kinds,omitempty"`
	EventTypes  []models.EventType  `json:"event_types,omitempty"`
}

const (
	commandSubscribe   = "subscribe"
	commandUnsubscribe = "unsubscribe"
)

// Gateway tracks live websocket connections and delivers matching events.
type Gateway struct {
	mu    sync.RWMutex
	conns map[string]*connection

	upgrader    websocket.Upgrader
	logger      logger.Logger
	unsubscribe func()
}

// New builds a Gateway and registers it on the event bus.
func New(bus eventbus.Publisher, log logger.Logger) *Gateway {
	g := &Gateway{
		conns: make(map[string]*connection),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: log.WithComponent("gateway"),
	}

	g.unsubscribe = bus.Subscribe(g.fanOut)

	return g
}

// HandleWebSocket upgrades the request and serves the connection until the
// client disconnects.
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Error().
			Err(err).
			Str("remote_addr", r.RemoteAddr).
			Msg("failed to upgrade to websocket")

		return
	}

	conn := newConnection(ws, g.logger)

	g.mu.Lock()
	g.conns[conn.id] = conn
	g.mu.Unlock()

	g.logger.Info().
		Str("connection_id", conn.id).
		Str("remote_addr", r.RemoteAddr).
		Msg("websocket connection established")

	go conn.writeLoop()

	// Reader runs on this goroutine; returns on disconnect.
	conn.readLoop()

	g.remove(conn.id)
}

// fanOut delivers one event to every live connection whose filter matches.
// Sends are non-blocking: a full buffer marks the connection dead and it is
// pruned after the iteration.
func (g *Gateway) fanOut(event *models.Event) {
	g.mu.RLock()
	conns := make([]*connection, 0, len(g.conns))

	for _, conn := range g.conns {
		conns = append(conns, conn)
	}
	g.mu.RUnlock()

	var dead []string

	for _, conn := range conns {
		if conn.isDead() {
			dead = append(dead, conn.id)

			continue
		}

		if !conn.matches(event) {
			continue
		}

		select {
		case <-conn.done:
			dead = append(dead, conn.id)
		case conn.send <- event:
		default:
			g.logger.Warn().
				Str("connection_id", conn.id).
				Msg("send buffer full, dropping connection")
			conn.markDead()
			dead = append(dead, conn.id)
		}
	}

	for _, id := range dead {
		g.remove(id)
	}
}

func (g *Gateway) remove(id string) {
	g.mu.Lock()
	conn, ok := g.conns[id]

	if ok {
		delete(g.conns, id)
	}
	g.mu.Unlock()

	if ok {
		conn.close()

		g.logger.Info().Str("connection_id", id).Msg("websocket connection closed")
	}
}

// ConnectionCount reports live connections for the health endpoint.
func (g *Gateway) ConnectionCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.conns)
}

// Close detaches from the event bus and drops every connection.
func (g *Gateway) Close() {
	if g.unsubscribe != nil {
		g.unsubscribe()
	}

	g.mu.Lock()
	conns := g.conns
	g.conns = make(map[string]*connection)
	g.mu.Unlock()

	for _, conn := range conns {
		conn.close()
	}
}

// connection is one subscriber: a websocket, a buffered send channel consumed
// by its writer goroutine, and a mutable filter.
type connection struct {
	id   string
	ws   *websocket.Conn
	send chan *models.Event
	done chan struct{}

	mu     sync.Mutex
	kinds  map[models.EntityKind]bool
	types  map[models.EventType]bool
	all    bool
	dead   bool
	closed bool

	logger logger.Logger
}

func newConnection(ws *websocket.Conn, log logger.Logger) *connection {
	return &connection{
		id:     uuid.New().String(),
		ws:     ws,
		send:   make(chan *models.Event, sendBufferSize),
		done:   make(chan struct{}),
		kinds:  make(map[models.EntityKind]bool),
		types:  make(map[models.EventType]bool),
		logger: log,
	}
}

// matches applies the subscription filter: the connection must have
// subscribed (to the event's kind or to all kinds), and when event types were
// named the event's type must be among them.
func (c *connection) matches(event *models.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.all && !c.kinds[event.EntityKind] {
		return false
	}

	if len(c.types) > 0 && !c.types[event.Type] {
		return false
	}

	return true
}

func (c *connection) apply(msg *ControlMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch msg.Command {
	case commandSubscribe:
		if len(msg.EntityKinds) == 0 {
			c.all = true
		}

		for _, kind := range msg.EntityKinds {
			c.kinds[kind] = true
		}

		for _, t := range msg.EventTypes {
			c.types[t] = true
		}
	case commandUnsubscribe:
		if len(msg.EntityKinds) == 0 {
			c.all = false
			c.kinds = make(map[models.EntityKind]bool)
			c.types = make(map[models.EventType]bool)

			return
		}

		for _, kind := range msg.EntityKinds {
			delete(c.kinds, kind)
		}
	default:
		c.logger.Warn().Str("command", msg.Command).Msg("unknown control command")
	}
}

func (c *connection) readLoop() {
	for {
		var msg ControlMessage

		if err := c.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn().
					Err(err).
					Str("connection_id", c.id).
					Msg("websocket read failed")
			}

			c.markDead()

			return
		}

		c.apply(&msg)
	}
}

func (c *connection) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case event := <-c.send:
			if err := c.ws.WriteJSON(event); err != nil {
				c.logger.Warn().
					Err(err).
					Str("connection_id", c.id).
					Msg("websocket write failed")
				c.markDead()

				return
			}
		}
	}
}

func (c *connection) isDead() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.dead
}

func (c *connection) markDead() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dead = true
}

func (c *connection) close() {
	c.mu.Lock()
	alreadyClosed := c.closed
	c.closed = true
	c.dead = true
	c.mu.Unlock()

	if alreadyClosed {
		return
	}

	close(c.done)
	_ = c.ws.Close()
}
