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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/fleetmind/registry/pkg/db"
	"github.com/fleetmind/registry/pkg/models"
)

func ptr[T any](v T) *T { return &v }

func TestUpdateAppliesPartialFields(t *testing.T) {
	core, bus := newTestCore(permissiveStore(t))
	ctx := context.Background()

	_, err := core.Register(ctx, testWorker("w1"))
	require.NoError(t, err)

	updated, err := core.Update(ctx, "w1", &UpdateRequest{
		Status:      ptr(models.StatusMaintenance),
		CurrentLoad: ptr(42.5),
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusMaintenance, updated.Base().Status)
	assert.InDelta(t, 42.5, updated.(*models.Worker).CurrentLoad, 0.001)
	assert.Equal(t, "worker-w1", updated.Base().Name, "unlisted fields stay put")

	events := bus.EventsOfType(models.EventStatusChanged)
	require.Len(t, events, 1)

	changes, ok := events[0].Data["changes"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, changes, "status")
	assert.Contains(t, changes, "current_load")
}

func TestUpdateRejectsCapacityViolation(t *testing.T) {
	core, bus := newTestCore(permissiveStore(t))
	ctx := context.Background()

	w := testWorker("w1")
	w.MaxConcurrentTasks = 4
	w.CurrentTasks = 2

	_, err := core.Register(ctx, w)
	require.NoError(t, err)

	_, err = core.Update(ctx, "w1", &UpdateRequest{CurrentTasks: ptr(5)})
	require.ErrorIs(t, err, models.ErrValidationFailed)

	got, err := core.Get(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.(*models.Worker).CurrentTasks, "rejected update must not change state")
	assert.Empty(t, bus.EventsOfType(models.EventStatusChanged))
}

func TestUpdateUnknownID(t *testing.T) {
	core, _ := newTestCore(permissiveStore(t))

	_, err := core.Update(context.Background(), "ghost", &UpdateRequest{Status: ptr(models.StatusOnline)})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestUpdateRollsBackOnPersistenceFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := db.NewMockService(ctrl)
	store.EXPECT().UpsertEntry(gomock.Any(), gomock.Any()).Return(nil)
	store.EXPECT().UpsertEntry(gomock.Any(), gomock.Any()).Return(errBackendDown)

	core, _ := newTestCore(store)
	ctx := context.Background()

	_, err := core.Register(ctx, testWorker("w1"))
	require.NoError(t, err)

	_, err = core.Update(ctx, "w1", &UpdateRequest{Status: ptr(models.StatusDegraded)})
	require.ErrorIs(t, err, models.ErrPersistenceFailure)

	got, err := core.Get(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusOnline, got.Base().Status)
}

func TestUpdateEmitsCapabilityDiff(t *testing.T) {
	core, bus := newTestCore(permissiveStore(t))
	ctx := context.Background()

	w := testWorker("w1")
	w.Capabilities = []string{"translate", "summarize"}

	_, err := core.Register(ctx, w)
	require.NoError(t, err)

	_, err = core.Update(ctx, "w1", &UpdateRequest{
		Capabilities: ptr([]string{"summarize", "classify"}),
	})
	require.NoError(t, err)

	added := bus.EventsOfType(models.EventCapabilityAdded)
	require.Len(t, added, 1)
	assert.Equal(t, "classify", added[0].Data["capability"])

	removed := bus.EventsOfType(models.EventCapabilityRemoved)
	require.Len(t, removed, 1)
	assert.Equal(t, "translate", removed[0].Data["capability"])
}

func TestUpdateHealthScoreDerivesStatus(t *testing.T) {
	core, _ := newTestCore(permissiveStore(t))
	ctx := context.Background()

	_, err := core.Register(ctx, testWorker("w1"))
	require.NoError(t, err)

	updated, err := core.Update(ctx, "w1", &UpdateRequest{HealthScore: ptr(55.0)})
	require.NoError(t, err)

	assert.Equal(t, models.HealthWarning, updated.Base().HealthStatus)
}
