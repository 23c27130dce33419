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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEntryDiscriminatorWins(t *testing.T) {
	// The payload claims to be a group; the discriminator says worker.
	raw := []byte(`{"id":"w1","name":"n","kind":"group","max_concurrent_tasks":2}`)

	entry, err := DecodeEntry(KindWorker, raw)
	require.NoError(t, err)

	worker, ok := entry.(*Worker)
	require.True(t, ok)
	assert.Equal(t, KindWorker, worker.Kind)
	assert.Equal(t, 2, worker.MaxConcurrentTasks)
}

func TestDecodeEntryUnknownKind(t *testing.T) {
	_, err := DecodeEntry("zeppelin", []byte(`{}`))
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestDecodeEntryMalformedPayload(t *testing.T) {
	_, err := DecodeEntry(KindWorker, []byte(`{"current_tasks":"three"}`))
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestEntryEnvelopeRoundTrip(t *testing.T) {
	svc := &NetworkService{
		BaseEntry: BaseEntry{ID: "n1", Name: "edge", Status: StatusOnline},
		Host:      "edge.internal",
		Port:      443,
		Endpoints: []Endpoint{{Path: "/v1/ask", Method: "POST"}},
	}

	raw, err := EncodeEntry(svc)
	require.NoError(t, err)

	decoded, err := DecodeEntryEnvelope(raw)
	require.NoError(t, err)

	got, ok := decoded.(*NetworkService)
	require.True(t, ok)
	assert.Equal(t, "n1", got.ID)
	assert.Equal(t, KindNetworkService, got.Kind)
	require.Len(t, got.Endpoints, 1)
	assert.Equal(t, "/v1/ask", got.Endpoints[0].Path)
}

func TestSupervisorIsNotAWorker(t *testing.T) {
	raw := []byte(`{"id":"s1","name":"boss","tier":"team","authority_level":3}`)

	entry, err := DecodeEntry(KindSupervisor, raw)
	require.NoError(t, err)

	assert.Equal(t, KindSupervisor, entry.GetKind())
	_, isWorker := entry.(*Worker)
	assert.False(t, isWorker)
}

func TestCloneIsDeep(t *testing.T) {
	s := &Supervisor{
		Worker: Worker{
			BaseEntry: BaseEntry{
				ID:           "s1",
				Name:         "boss",
				Capabilities: []string{"plan"},
				Metadata:     map[string]string{"region": "eu"},
			},
		},
		SubordinateIDs: []string{"w1"},
	}

	clone := s.Clone().(*Supervisor)
	clone.Capabilities[0] = "scheme"
	clone.Metadata["region"] = "us"
	clone.SubordinateIDs[0] = "w2"

	assert.Equal(t, "plan", s.Capabilities[0])
	assert.Equal(t, "eu", s.Metadata["region"])
	assert.Equal(t, "w1", s.SubordinateIDs[0])
}

func TestHealthStatusForScore(t *testing.T) {
	cases := []struct {
		score        float64
		hasHeartbeat bool
		want         HealthStatus
	}{
		{100, false, HealthHealthy},
		{80, false, HealthHealthy},
		{79.9, false, HealthWarning},
		{50, false, HealthWarning},
		{49, false, HealthCritical},
		{1, false, HealthCritical},
		{0, true, HealthCritical},
		{0, false, HealthUnknown},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, HealthStatusForScore(tc.score, tc.hasHeartbeat),
			"score=%v heartbeat=%v", tc.score, tc.hasHeartbeat)
	}
}
