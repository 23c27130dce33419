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

// Package kv provides the distributed key-value layer used to share warm
// discovery results between registry instances. Entries expire by bucket-level
// TTL; correctness never depends on this layer being present.
package kv

import (
	"context"
)

//go:generate mockgen -destination=mock_kv.go -package=kv github.com/fleetmind/registry/pkg/kv KVStore

// KVStore is a minimal TTL'd key-value store.
type KVStore interface {
	// Get retrieves the value for key; found is false when the key is
	// absent or expired.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Put stores value under key. Expiry is governed by the bucket TTL.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key; deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the underlying connection.
	Close() error
}
