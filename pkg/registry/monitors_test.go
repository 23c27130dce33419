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

package registry

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/fleetmind/registry/pkg/db"
	"github.com/fleetmind/registry/pkg/logger"
	"github.com/fleetmind/registry/pkg/models"
)

func newTestMonitors(core *Core, prober Prober) *Monitors {
	return NewMonitors(core, prober, DefaultMonitorConfig(), logger.NewTestLogger())
}

// registerWithHeartbeatAge registers a worker whose last heartbeat lies age in
// the past.
func registerWithHeartbeatAge(t *testing.T, core *Core, id string, score float64, age time.Duration) {
	t.Helper()

	w := testWorker(id)
	w.HealthScore = score

	_, err := core.Register(context.Background(), w)
	require.NoError(t, err)

	past := time.Now().UTC().Add(-age)

	core.mu.Lock()
	core.entries[id].Base().LastHeartbeat = &past
	core.mu.Unlock()
}

func TestDecaySweepThresholds(t *testing.T) {
	cases := []struct {
		name       string
		age        time.Duration
		score      float64
		wantScore  float64
		wantStatus models.EntityStatus
	}{
		{"fresh heartbeat untouched", 30 * time.Second, 70, 70, models.StatusOnline},
		{"stale past one minute", 90 * time.Second, 70, 60, models.StatusOnline},
		{"old past two minutes", 3 * time.Minute, 70, 50, models.StatusOnline},
		{"dead past five minutes", 6 * time.Minute, 70, 0, models.StatusError},
		{"score floors at zero", 3 * time.Minute, 15, 0, models.StatusOnline},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			core, _ := newTestCore(permissiveStore(t))
			registerWithHeartbeatAge(t, core, "w1", tc.score, tc.age)

			newTestMonitors(core, nil).DecaySweep(context.Background())

			got, err := core.Get(context.Background(), "w1")
			require.NoError(t, err)
			assert.InDelta(t, tc.wantScore, got.Base().HealthScore, 0.001)
			assert.Equal(t, tc.wantStatus, got.Base().Status)
		})
	}
}

func TestDecaySweepSkipsNeverHeartbeated(t *testing.T) {
	core, bus := newTestCore(permissiveStore(t))

	_, err := core.Register(context.Background(), testWorker("w1"))
	require.NoError(t, err)

	newTestMonitors(core, nil).DecaySweep(context.Background())

	got, err := core.Get(context.Background(), "w1")
	require.NoError(t, err)
	assert.InDelta(t, 70, got.Base().HealthScore, 0.001)
	assert.Empty(t, bus.EventsOfType(models.EventHealthChanged))
}

func TestDecaySweepDeadEntryEmitsSingleStatusChange(t *testing.T) {
	core, bus := newTestCore(permissiveStore(t))
	registerWithHeartbeatAge(t, core, "w1", 70, 6*time.Minute)

	monitors := newTestMonitors(core, nil)
	ctx := context.Background()

	monitors.DecaySweep(ctx)
	// A second pass over an already-dead entry must be a no-op.
	monitors.DecaySweep(ctx)

	statusEvents := bus.EventsOfType(models.EventStatusChanged)
	require.Len(t, statusEvents, 1)

	healthEvents := bus.EventsOfType(models.EventHealthChanged)
	assert.Len(t, healthEvents, 1)
}

func TestDecaySweepToleratesPerEntityFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := db.NewMockService(ctrl)
	store.EXPECT().UpsertEntry(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	// Both decay writes fail; the sweep must attempt each one regardless.
	store.EXPECT().UpsertEntry(gomock.Any(), gomock.Any()).Return(errBackendDown).Times(2)

	core, _ := newTestCore(store)
	registerWithHeartbeatAge(t, core, "w1", 70, 3*time.Minute)
	registerWithHeartbeatAge(t, core, "w2", 70, 3*time.Minute)

	newTestMonitors(core, nil).DecaySweep(context.Background())

	for _, id := range []string{"w1", "w2"} {
		got, err := core.Get(context.Background(), id)
		require.NoError(t, err)
		assert.InDelta(t, 70, got.Base().HealthScore, 0.001, "failed write rolls back %s", id)
	}
}

func TestProbeSweepScoresServices(t *testing.T) {
	core, _ := newTestCore(permissiveStore(t))
	ctx := context.Background()

	svc := func(id string) *models.NetworkService {
		return &models.NetworkService{
			BaseEntry: models.BaseEntry{ID: id, Name: id, Status: models.StatusOnline, HealthScore: 50},
			Host:      id + ".internal",
			Port:      8080,
		}
	}

	for _, s := range []*models.NetworkService{svc("up"), svc("down")} {
		_, err := core.Register(ctx, s)
		require.NoError(t, err)
	}

	// A worker must never be probed.
	_, err := core.Register(ctx, testWorker("w1"))
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	prober := NewMockProber(ctrl)
	prober.EXPECT().Probe(gomock.Any(), "up.internal", 8080).Return(nil)
	prober.EXPECT().Probe(gomock.Any(), "down.internal", 8080).Return(errBackendDown)

	newTestMonitors(core, prober).ProbeSweep(ctx)

	up, err := core.Get(ctx, "up")
	require.NoError(t, err)
	assert.InDelta(t, 100, up.Base().HealthScore, 0.001)

	down, err := core.Get(ctx, "down")
	require.NoError(t, err)
	assert.InDelta(t, 0, down.Base().HealthScore, 0.001)
}

func TestProbeSweepFailureIsCriticalWithoutHeartbeat(t *testing.T) {
	core, _ := newTestCore(permissiveStore(t))
	ctx := context.Background()

	// Never heartbeated: health status must still come out critical, not
	// unknown, when the probe fails.
	_, err := core.Register(ctx, &models.NetworkService{
		BaseEntry: models.BaseEntry{ID: "svc1", Name: "svc1", Status: models.StatusOnline, HealthScore: 50},
		Host:      "svc1.internal",
		Port:      8080,
	})
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	prober := NewMockProber(ctrl)
	prober.EXPECT().Probe(gomock.Any(), "svc1.internal", 8080).Return(errBackendDown)

	newTestMonitors(core, prober).ProbeSweep(ctx)

	got, err := core.Get(ctx, "svc1")
	require.NoError(t, err)
	assert.Nil(t, got.Base().LastHeartbeat)
	assert.InDelta(t, 0, got.Base().HealthScore, 0.001)
	assert.Equal(t, models.HealthCritical, got.Base().HealthStatus)
}

func TestMonitorLoopSurvivesPanickingSweep(t *testing.T) {
	core, _ := newTestCore(permissiveStore(t))
	m := newTestMonitors(core, nil)

	var ticks atomic.Int64

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.run(ctx, time.Millisecond, "panicky", func(context.Context) {
		ticks.Add(1)
		panic("sweep blew up")
	})

	// The loop must keep ticking past the first panic.
	require.Eventually(t, func() bool { return ticks.Load() >= 3 },
		time.Second, time.Millisecond)

	cancel()
	m.Wait()
}

func TestMetricsSweepPersistsSnapshot(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := db.NewMockService(ctrl)
	store.EXPECT().UpsertEntry(gomock.Any(), gomock.Any()).Return(nil)

	var captured *models.MetricsSnapshot

	store.EXPECT().
		StoreMetricsSnapshot(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, s *models.MetricsSnapshot) error {
			captured = s

			return nil
		})

	core, bus := newTestCore(store)

	_, err := core.Register(context.Background(), testWorker("w1"))
	require.NoError(t, err)

	newTestMonitors(core, nil).MetricsSweep(context.Background())

	require.NotNil(t, captured)
	assert.Equal(t, 1, captured.TotalEntities)
	assert.Equal(t, 1, captured.OnlineEntities)
	assert.InDelta(t, 70, captured.AverageHealthScore, 0.001)

	require.Len(t, bus.EventsOfType(models.EventMetricUpdated), 1)
}

func TestMonitorsStopOnContextCancel(t *testing.T) {
	core, _ := newTestCore(permissiveStore(t))

	cfg := MonitorConfig{
		DecayInterval:    time.Millisecond,
		ProbeInterval:    time.Millisecond,
		EvictionInterval: time.Millisecond,
		MetricsInterval:  time.Millisecond,
		ProbeTimeout:     time.Millisecond,
	}

	ctrl := gomock.NewController(t)
	prober := NewMockProber(ctrl)
	prober.EXPECT().Probe(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	m := NewMonitors(core, prober, cfg, logger.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)

	time.Sleep(10 * time.Millisecond)
	cancel()

	done := make(chan struct{})

	go func() {
		m.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitors did not stop after context cancellation")
	}
}
