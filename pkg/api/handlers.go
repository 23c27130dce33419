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

package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/fleetmind/registry/pkg/models"
	"github.com/fleetmind/registry/pkg/registry"
)

// registerRequest is the register envelope: the kind discriminator plus the
// raw entry payload.
type registerRequest struct {
	Kind  models.EntityKind `json:"kind"`
	Entry json.RawMessage   `json:"entry"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("reading request body: %w", err))

		return
	}

	var req registerRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("%w: malformed register request: %w", models.ErrValidationFailed, err))

		return
	}

	entry, err := models.DecodeEntry(req.Kind, req.Entry)
	if err != nil {
		s.writeError(w, statusForError(err), err)

		return
	}

	stored, err := s.core.Register(r.Context(), entry)
	if err != nil {
		s.writeError(w, statusForError(err), err)

		return
	}

	s.writeJSON(w, http.StatusCreated, stored)
}

func (s *Server) handleUnregister(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := s.core.Unregister(r.Context(), id); err != nil {
		s.writeError(w, statusForError(err), err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	entry, err := s.core.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, statusForError(err), err)

		return
	}

	s.writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req registry.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("%w: malformed update request: %w", models.ErrValidationFailed, err))

		return
	}

	entry, err := s.core.Update(r.Context(), r.PathValue("id"), &req)
	if err != nil {
		s.writeError(w, statusForError(err), err)

		return
	}

	s.writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	if err := s.core.Heartbeat(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, statusForError(err), err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	q := registry.Query{
		Kind:         models.EntityKind(r.URL.Query().Get("kind")),
		Status:       models.EntityStatus(r.URL.Query().Get("status")),
		Capability:   r.URL.Query().Get("capability"),
		Tag:          r.URL.Query().Get("tag"),
		GroupID:      r.URL.Query().Get("group_id"),
		SuperGroupID: r.URL.Query().Get("supergroup_id"),
	}

	var err error

	q.Limit, err = parseIntParam(r, "limit")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)

		return
	}

	q.Offset, err = parseIntParam(r, "offset")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)

		return
	}

	entries, err := s.core.Discover(r.Context(), q)
	if err != nil {
		s.writeError(w, statusForError(err), err)

		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

func (s *Server) handleHierarchy(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.core.Hierarchy(r.Context()))
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.core.Statistics(r.Context()))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	summary := s.core.HealthSummary(r.Context())

	if s.gateway != nil {
		summary.Components = append(summary.Components, models.ComponentState{
			Name:    "gateway",
			Healthy: true,
			Detail:  fmt.Sprintf("%d connections", s.gateway.ConnectionCount()),
		})
	}

	status := http.StatusOK
	if summary.Status != "ok" {
		status = http.StatusServiceUnavailable
	}

	s.writeJSON(w, status, summary)
}

func parseIntParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", models.ErrValidationFailed, name)
	}

	return v, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}
