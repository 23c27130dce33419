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

package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validBase(id string) BaseEntry {
	return BaseEntry{ID: id, Name: "name-" + id, HealthScore: 50}
}

func TestValidateBase(t *testing.T) {
	now := time.Now()

	cases := []struct {
		name    string
		entry   Entry
		wantErr bool
	}{
		{"valid", &Worker{BaseEntry: validBase("w1")}, false},
		{"missing id", &Worker{BaseEntry: BaseEntry{Name: "n"}}, true},
		{"missing name", &Worker{BaseEntry: BaseEntry{ID: "w1"}}, true},
		{"score above range", &Worker{BaseEntry: BaseEntry{ID: "w1", Name: "n", HealthScore: 101}}, true},
		{"score below range", &Worker{BaseEntry: BaseEntry{ID: "w1", Name: "n", HealthScore: -1}}, true},
		{
			"updated before registered",
			&Worker{BaseEntry: BaseEntry{
				ID: "w1", Name: "n",
				RegisteredAt: now, UpdatedAt: now.Add(-time.Hour),
			}},
			true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.entry.Validate()
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrValidationFailed)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateWorkerCapacity(t *testing.T) {
	w := &Worker{BaseEntry: validBase("w1"), MaxConcurrentTasks: 4, CurrentTasks: 4}
	assert.NoError(t, w.Validate())

	w.CurrentTasks = 5
	assert.ErrorIs(t, w.Validate(), ErrValidationFailed)

	w.CurrentTasks = 0
	w.CurrentLoad = 120
	assert.ErrorIs(t, w.Validate(), ErrValidationFailed)
}

func TestValidateSupervisor(t *testing.T) {
	s := &Supervisor{
		Worker:         Worker{BaseEntry: validBase("s1")},
		Tier:           TierTeam,
		AuthorityLevel: 5,
	}
	assert.NoError(t, s.Validate())

	s.Tier = "intern"
	assert.ErrorIs(t, s.Validate(), ErrValidationFailed)

	s.Tier = TierExecutive
	s.AuthorityLevel = 11
	assert.ErrorIs(t, s.Validate(), ErrValidationFailed)
}

func TestValidateGroupBudgets(t *testing.T) {
	g := &Group{BaseEntry: validBase("g1"), Capacity: 10, BudgetAllocated: 100}
	assert.NoError(t, g.Validate())

	g.BudgetConsumed = -1
	assert.ErrorIs(t, g.Validate(), ErrValidationFailed)
}

func TestValidateDatastore(t *testing.T) {
	d := &Datastore{BaseEntry: validBase("d1"), Host: "db", Port: 5432}
	assert.NoError(t, d.Validate())

	d.Port = 0
	assert.ErrorIs(t, d.Validate(), ErrValidationFailed)

	d.Port = 5432
	d.MaxConnections = 10
	d.CurrentConnections = 11
	assert.ErrorIs(t, d.Validate(), ErrValidationFailed)
}

func TestValidateNetworkService(t *testing.T) {
	n := &NetworkService{
		BaseEntry: validBase("n1"),
		Host:      "svc",
		Port:      8080,
		Endpoints: []Endpoint{{Path: "/health", Method: "GET"}},
	}
	assert.NoError(t, n.Validate())

	n.Endpoints = append(n.Endpoints, Endpoint{Path: "/broken"})
	assert.ErrorIs(t, n.Validate(), ErrValidationFailed)

	n.Endpoints = n.Endpoints[:1]
	n.ErrorRate = 101
	assert.ErrorIs(t, n.Validate(), ErrValidationFailed)
}
