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
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetmind/registry/pkg/models"
	"github.com/fleetmind/registry/pkg/registry"
	"github.com/fleetmind/registry/pkg/retry"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := New(Config{
		BaseURL:     server.URL,
		CallTimeout: 2 * time.Second,
		CacheTTL:    time.Minute,
		RegisterRetry: retry.Config{
			MaxAttempts:  3,
			InitialDelay: time.Millisecond,
			Multiplier:   1.0,
		},
	})
	require.NoError(t, err)
	t.Cleanup(c.Close)

	return c
}

func sampleWorker(id string) *models.Worker {
	return &models.Worker{
		BaseEntry: models.BaseEntry{
			ID:          id,
			Name:        "worker-" + id,
			Kind:        models.KindWorker,
			Status:      models.StatusOnline,
			HealthScore: 70,
		},
		MaxConcurrentTasks: 4,
	}
}

func writeEntry(t *testing.T, w http.ResponseWriter, status int, entry models.Entry) {
	t.Helper()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(entry))
}

func TestRegisterRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, `{"error":"persistence failure"}`, http.StatusServiceUnavailable)

			return
		}

		writeEntry(t, w, http.StatusCreated, sampleWorker("w1"))
	})

	c := newTestClient(t, handler)

	stored, err := c.RegisterWorker(context.Background(), sampleWorker("w1"))
	require.NoError(t, err)
	assert.Equal(t, "w1", stored.Base().ID)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRegisterDoesNotRetryConflicts(t *testing.T) {
	var calls atomic.Int32

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"already registered"}`, http.StatusConflict)
	})

	c := newTestClient(t, handler)

	_, err := c.Register(context.Background(), sampleWorker("w1"))
	require.ErrorIs(t, err, models.ErrAlreadyRegistered)
	assert.Equal(t, int32(1), calls.Load(), "conflicts are permanent, retrying cannot help")
}

func TestRegisterExhaustsRetries(t *testing.T) {
	var calls atomic.Int32

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"down"}`, http.StatusServiceUnavailable)
	})

	c := newTestClient(t, handler)

	_, err := c.Register(context.Background(), sampleWorker("w1"))
	require.ErrorIs(t, err, models.ErrPersistenceFailure)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetMapsNotFound(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	})

	c := newTestClient(t, handler)

	_, err := c.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestGetDecodesConcreteType(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeEntry(t, w, http.StatusOK, &models.Datastore{
			BaseEntry: models.BaseEntry{ID: "d1", Name: "pg", Kind: models.KindDatastore},
			Host:      "db.internal",
			Port:      5432,
		})
	})

	c := newTestClient(t, handler)

	entry, err := c.Get(context.Background(), "d1")
	require.NoError(t, err)

	ds, ok := entry.(*models.Datastore)
	require.True(t, ok, "entry must decode to its concrete type")
	assert.Equal(t, 5432, ds.Port)
}

func TestDiscoverCachesResults(t *testing.T) {
	var calls atomic.Int32

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		raw, err := json.Marshal(sampleWorker("w1"))
		require.NoError(t, err)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"entries":[` + string(raw) + `],"count":1}`))
	})

	c := newTestClient(t, handler)
	ctx := context.Background()
	q := registry.Query{Kind: models.KindWorker}

	first, err := c.Discover(ctx, q)
	require.NoError(t, err)
	require.Len(t, first, 1)

	_, err = c.Discover(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "repeated query must hit the cache")

	_, err = c.DiscoverFresh(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load(), "DiscoverFresh must bypass the cache")
}

func TestDiscoverCacheHitsAreIsolated(t *testing.T) {
	var calls atomic.Int32

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		raw, err := json.Marshal(sampleWorker("w1"))
		require.NoError(t, err)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"entries":[` + string(raw) + `],"count":1}`))
	})

	c := newTestClient(t, handler)
	ctx := context.Background()
	q := registry.Query{Kind: models.KindWorker}

	first, err := c.Discover(ctx, q)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Scribbling on a result must not leak into later cache hits.
	first[0].Base().Name = "scribbled"

	second, err := c.Discover(ctx, q)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "worker-w1", second[0].Base().Name)
}

func TestDiscoverSendsQueryParams(t *testing.T) {
	var gotQuery string

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery

		_, _ = w.Write([]byte(`{"entries":[],"count":0}`))
	})

	c := newTestClient(t, handler)

	_, err := c.DiscoverFresh(context.Background(), registry.Query{
		Kind:       models.KindWorker,
		Capability: "translate",
		Limit:      5,
	})
	require.NoError(t, err)
	assert.Contains(t, gotQuery, "kind=worker")
	assert.Contains(t, gotQuery, "capability=translate")
	assert.Contains(t, gotQuery, "limit=5")
}

func TestHeartbeatLoop(t *testing.T) {
	var beats atomic.Int32

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		beats.Add(1)
		w.WriteHeader(http.StatusNoContent)
	})

	c := newTestClient(t, handler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c.StartHeartbeat(ctx, "w1", 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return beats.Load() >= 3
	}, 2*time.Second, 5*time.Millisecond)

	c.StopHeartbeat("w1")
	time.Sleep(30 * time.Millisecond)

	settled := beats.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, beats.Load(), "stopped loop must not beat again")
}

func TestRegisterStartsHeartbeatLoop(t *testing.T) {
	var beats atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/entries", func(w http.ResponseWriter, _ *http.Request) {
		writeEntry(t, w, http.StatusCreated, sampleWorker("w1"))
	})
	mux.HandleFunc("POST /api/entries/{id}/heartbeat", func(w http.ResponseWriter, _ *http.Request) {
		beats.Add(1)
		w.WriteHeader(http.StatusNoContent)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	c, err := New(Config{
		BaseURL:           server.URL,
		CallTimeout:       2 * time.Second,
		HeartbeatInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(c.Close)

	_, err = c.Register(context.Background(), sampleWorker("w1"))
	require.NoError(t, err)

	// The loop must run without any explicit StartHeartbeat call.
	require.Eventually(t, func() bool {
		return beats.Load() >= 3
	}, 2*time.Second, 5*time.Millisecond)

	c.StopHeartbeat("w1")
	time.Sleep(30 * time.Millisecond)

	settled := beats.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, beats.Load())
}

func TestUnregisterStopsHeartbeat(t *testing.T) {
	var beats atomic.Int32

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)

			return
		}

		beats.Add(1)
		w.WriteHeader(http.StatusNoContent)
	})

	c := newTestClient(t, handler)

	ctx := context.Background()
	c.StartHeartbeat(ctx, "w1", 10*time.Millisecond)

	require.NoError(t, c.Unregister(ctx, "w1"))
	time.Sleep(30 * time.Millisecond)

	settled := beats.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, beats.Load())
}

func TestCallTimeoutSurfacesErrTimeout(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := New(Config{
		BaseURL:     server.URL,
		CallTimeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)

	err = c.Heartbeat(context.Background(), "w1")
	assert.ErrorIs(t, err, models.ErrTimeout)
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
