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

package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetmind/registry/pkg/models"
)

func TestKindTablesCoverEveryKind(t *testing.T) {
	for _, kind := range models.AllKinds() {
		table, ok := kindTables[kind]
		assert.True(t, ok, "kind %s has no table", kind)
		assert.NotEmpty(t, table)
	}
}

func TestMarshalJSONEmptyCollections(t *testing.T) {
	var nilSlice []string

	got, err := marshalJSON(nilSlice)
	require.NoError(t, err)
	assert.Equal(t, "[]", got, "nil slices must store as empty arrays, not null")

	var nilEndpoints []models.Endpoint

	got, err = marshalJSON(nilEndpoints)
	require.NoError(t, err)
	assert.Equal(t, "[]", got)

	var nilMap map[string]string

	got, err = marshalJSON(nilMap)
	require.NoError(t, err)
	assert.Equal(t, "{}", got, "nil maps must store as empty objects, not null")
}

func TestMarshalJSONPopulated(t *testing.T) {
	got, err := marshalJSON([]string{"a", "b"})
	require.NoError(t, err)
	assert.JSONEq(t, `["a","b"]`, got)
}

func TestBaseColumnArgsShape(t *testing.T) {
	worker := &models.Worker{
		BaseEntry: models.BaseEntry{
			ID:           "w1",
			Name:         "worker-w1",
			Status:       models.StatusOnline,
			HealthStatus: models.HealthHealthy,
			HealthScore:  90,
			Capabilities: []string{"translate"},
		},
	}

	args, err := baseColumnArgs(worker.Base())
	require.NoError(t, err)
	require.Len(t, args, 12, "base columns are shared by every upsert statement")

	assert.Equal(t, "w1", args[0])
	assert.Equal(t, "online", args[2])
	assert.JSONEq(t, `["translate"]`, args[5].(string))
	assert.JSONEq(t, `[]`, args[6].(string), "absent tags still serialize")
}
