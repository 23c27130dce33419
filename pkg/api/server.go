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

// Package api exposes the registration/discovery API over HTTP and the
// realtime event channel over websocket.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fleetmind/registry/pkg/gateway"
	mw "github.com/fleetmind/registry/pkg/http"
	"github.com/fleetmind/registry/pkg/logger"
	"github.com/fleetmind/registry/pkg/models"
	"github.com/fleetmind/registry/pkg/registry"
)

// Server routes API requests to the registry core and the gateway.
type Server struct {
	core    *registry.Core
	gateway *gateway.Gateway
	router  *http.ServeMux
	logger  logger.Logger
}

// NewServer wires the routes. gw may be nil when the realtime channel is
// disabled.
func NewServer(core *registry.Core, gw *gateway.Gateway, log logger.Logger) *Server {
	s := &Server{
		core:    core,
		gateway: gw,
		router:  http.NewServeMux(),
		logger:  log.WithComponent("api"),
	}

	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("POST /api/entries", s.handleRegister)
	s.router.HandleFunc("GET /api/entries", s.handleDiscover)
	s.router.HandleFunc("GET /api/entries/{id}", s.handleGet)
	s.router.HandleFunc("PATCH /api/entries/{id}", s.handleUpdate)
	s.router.HandleFunc("DELETE /api/entries/{id}", s.handleUnregister)
	s.router.HandleFunc("POST /api/entries/{id}/heartbeat", s.handleHeartbeat)
	s.router.HandleFunc("GET /api/hierarchy", s.handleHierarchy)
	s.router.HandleFunc("GET /api/statistics", s.handleStatistics)
	s.router.HandleFunc("GET /api/health", s.handleHealth)

	if s.gateway != nil {
		s.router.HandleFunc("GET /api/events/ws", s.gateway.HandleWebSocket)
	}
}

// Handler returns the root handler for an http.Server.
func (s *Server) Handler() http.Handler {
	return mw.Recover(s.logger)(mw.AccessLog(s.logger)(s.router))
}

// Serve runs an http.Server on addr until ctx is canceled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.logger.Info().Str("addr", addr).Msg("api server listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err
	}
}

// statusForError maps the registry error taxonomy onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, models.ErrAlreadyRegistered):
		return http.StatusConflict
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrValidationFailed):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrPersistenceFailure):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
