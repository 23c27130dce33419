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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/fleetmind/registry/pkg/db"
	"github.com/fleetmind/registry/pkg/eventbus"
	"github.com/fleetmind/registry/pkg/logger"
	"github.com/fleetmind/registry/pkg/models"
)

var errBackendDown = errors.New("backend down")

// newTestCore builds a Core over the given store with an in-memory bus and a
// local-only discovery cache.
func newTestCore(store db.Service) (*Core, *eventbus.MemoryBus) {
	log := logger.NewTestLogger()
	bus := eventbus.NewMemoryBus(log)
	disco := NewDiscoveryCache(time.Minute, nil, log)

	return NewCore(store, bus, disco, log), bus
}

// permissiveStore accepts any persistence call; for tests exercising core
// semantics rather than store interaction.
func permissiveStore(t *testing.T) *db.MockService {
	t.Helper()

	ctrl := gomock.NewController(t)
	store := db.NewMockService(ctrl)
	store.EXPECT().UpsertEntry(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	store.EXPECT().DeleteEntry(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	store.EXPECT().ListEntries(gomock.Any()).Return(nil, nil).AnyTimes()
	store.EXPECT().StoreMetricsSnapshot(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	store.EXPECT().Ping(gomock.Any()).Return(nil).AnyTimes()

	return store
}

func testWorker(id string) *models.Worker {
	return &models.Worker{
		BaseEntry: models.BaseEntry{
			ID:          id,
			Name:        "worker-" + id,
			Status:      models.StatusOnline,
			HealthScore: 70,
		},
		GroupID:            "group-1",
		MaxConcurrentTasks: 4,
	}
}

func TestRegisterAssignsDefaults(t *testing.T) {
	core, bus := newTestCore(permissiveStore(t))

	stored, err := core.Register(context.Background(), &models.Worker{
		BaseEntry: models.BaseEntry{Name: "anonymous"},
	})
	require.NoError(t, err)

	base := stored.Base()
	assert.NotEmpty(t, base.ID, "missing id should be generated")
	assert.Equal(t, models.StatusStarting, base.Status)
	assert.Equal(t, models.HealthUnknown, base.HealthStatus)
	assert.False(t, base.RegisteredAt.IsZero())

	events := bus.EventsOfType(models.EventRegistered)
	require.Len(t, events, 1)
	assert.Equal(t, base.ID, events[0].EntityID)
	assert.Equal(t, models.KindWorker, events[0].EntityKind)
}

func TestRegisterDuplicateID(t *testing.T) {
	core, _ := newTestCore(permissiveStore(t))
	ctx := context.Background()

	_, err := core.Register(ctx, testWorker("dup"))
	require.NoError(t, err)

	second := testWorker("dup")
	second.Name = "impostor"

	_, err = core.Register(ctx, second)
	require.ErrorIs(t, err, models.ErrAlreadyRegistered)

	got, err := core.Get(ctx, "dup")
	require.NoError(t, err)
	assert.Equal(t, "worker-dup", got.Base().Name, "original must be untouched")
}

func TestRegisterValidationFailure(t *testing.T) {
	// No persistence expectations: an invalid entry must never reach the store.
	ctrl := gomock.NewController(t)
	store := db.NewMockService(ctrl)
	core, bus := newTestCore(store)

	w := testWorker("bad")
	w.Name = ""

	_, err := core.Register(context.Background(), w)
	require.ErrorIs(t, err, models.ErrValidationFailed)
	assert.Empty(t, bus.Events())
}

func TestRegisterRollsBackOnPersistenceFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := db.NewMockService(ctrl)
	store.EXPECT().UpsertEntry(gomock.Any(), gomock.Any()).Return(errBackendDown)

	core, bus := newTestCore(store)
	ctx := context.Background()

	_, err := core.Register(ctx, testWorker("w1"))
	require.ErrorIs(t, err, models.ErrPersistenceFailure)

	_, err = core.Get(ctx, "w1")
	assert.ErrorIs(t, err, models.ErrNotFound, "failed register must not leave the entry cached")
	assert.Empty(t, bus.Events())
}

func TestHeartbeatBumpsScore(t *testing.T) {
	core, bus := newTestCore(permissiveStore(t))
	ctx := context.Background()

	_, err := core.Register(ctx, testWorker("w1"))
	require.NoError(t, err)

	require.NoError(t, core.Heartbeat(ctx, "w1"))

	got, err := core.Get(ctx, "w1")
	require.NoError(t, err)

	base := got.Base()
	assert.InDelta(t, 80, base.HealthScore, 0.001)
	assert.Equal(t, models.HealthHealthy, base.HealthStatus)
	require.NotNil(t, base.LastHeartbeat)

	require.Len(t, bus.EventsOfType(models.EventHeartbeat), 1)
}

func TestHeartbeatSaturatesAt100(t *testing.T) {
	core, _ := newTestCore(permissiveStore(t))
	ctx := context.Background()

	w := testWorker("w1")
	w.HealthScore = 95

	_, err := core.Register(ctx, w)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, core.Heartbeat(ctx, "w1"), "repeated heartbeats must never error")
	}

	got, err := core.Get(ctx, "w1")
	require.NoError(t, err)
	assert.InDelta(t, 100, got.Base().HealthScore, 0.001)
}

func TestHeartbeatRevivesOfflineEntry(t *testing.T) {
	core, bus := newTestCore(permissiveStore(t))
	ctx := context.Background()

	w := testWorker("w1")
	w.Status = models.StatusOffline

	_, err := core.Register(ctx, w)
	require.NoError(t, err)

	require.NoError(t, core.Heartbeat(ctx, "w1"))

	got, err := core.Get(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusOnline, got.Base().Status)

	events := bus.EventsOfType(models.EventHeartbeat)
	require.Len(t, events, 1)
	assert.Equal(t, models.StatusOnline, events[0].Data["status"])
}

func TestHeartbeatUnknownID(t *testing.T) {
	core, _ := newTestCore(permissiveStore(t))

	err := core.Heartbeat(context.Background(), "ghost")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestHeartbeatRollsBackOnPersistenceFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := db.NewMockService(ctrl)
	store.EXPECT().UpsertEntry(gomock.Any(), gomock.Any()).Return(nil)
	store.EXPECT().UpsertEntry(gomock.Any(), gomock.Any()).Return(errBackendDown)

	core, _ := newTestCore(store)
	ctx := context.Background()

	_, err := core.Register(ctx, testWorker("w1"))
	require.NoError(t, err)

	err = core.Heartbeat(ctx, "w1")
	require.ErrorIs(t, err, models.ErrPersistenceFailure)

	got, err := core.Get(ctx, "w1")
	require.NoError(t, err)
	assert.InDelta(t, 70, got.Base().HealthScore, 0.001, "score must revert on rollback")
	assert.Nil(t, got.Base().LastHeartbeat)
}

func TestUnregisterRemovesEntry(t *testing.T) {
	core, bus := newTestCore(permissiveStore(t))
	ctx := context.Background()

	_, err := core.Register(ctx, testWorker("w1"))
	require.NoError(t, err)

	require.NoError(t, core.Unregister(ctx, "w1"))

	_, err = core.Get(ctx, "w1")
	assert.ErrorIs(t, err, models.ErrNotFound)

	err = core.Unregister(ctx, "w1")
	assert.ErrorIs(t, err, models.ErrNotFound)

	require.Len(t, bus.EventsOfType(models.EventUnregistered), 1)
}

func TestUnregisterRollsBackOnPersistenceFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := db.NewMockService(ctrl)
	store.EXPECT().UpsertEntry(gomock.Any(), gomock.Any()).Return(nil)
	store.EXPECT().DeleteEntry(gomock.Any(), models.KindWorker, "w1").Return(errBackendDown)

	core, _ := newTestCore(store)
	ctx := context.Background()

	_, err := core.Register(ctx, testWorker("w1"))
	require.NoError(t, err)

	err = core.Unregister(ctx, "w1")
	require.ErrorIs(t, err, models.ErrPersistenceFailure)

	_, err = core.Get(ctx, "w1")
	assert.NoError(t, err, "entry must stay cached when the delete did not persist")
}

func TestGetReturnsClone(t *testing.T) {
	core, _ := newTestCore(permissiveStore(t))
	ctx := context.Background()

	_, err := core.Register(ctx, testWorker("w1"))
	require.NoError(t, err)

	first, err := core.Get(ctx, "w1")
	require.NoError(t, err)

	first.Base().Name = "scribbled"

	second, err := core.Get(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, "worker-w1", second.Base().Name)
}

func TestRehydrateLoadsPersistedEntries(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := db.NewMockService(ctrl)
	store.EXPECT().ListEntries(gomock.Any()).Return([]models.Entry{
		testWorker("w1"),
		&models.Group{BaseEntry: models.BaseEntry{ID: "g1", Name: "alpha", Kind: models.KindGroup}},
	}, nil)

	core, _ := newTestCore(store)
	ctx := context.Background()

	require.NoError(t, core.Rehydrate(ctx))

	got, err := core.Get(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, models.KindWorker, got.GetKind())

	_, err = core.Get(ctx, "g1")
	assert.NoError(t, err)
}

func TestRehydrateSurfacesPersistenceFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := db.NewMockService(ctrl)
	store.EXPECT().ListEntries(gomock.Any()).Return(nil, errBackendDown)

	core, _ := newTestCore(store)

	err := core.Rehydrate(context.Background())
	assert.ErrorIs(t, err, models.ErrPersistenceFailure)
}
