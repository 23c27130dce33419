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

import "errors"

var (
	// ErrAlreadyRegistered is returned when a register call reuses an id.
	ErrAlreadyRegistered = errors.New("entity already registered")

	// ErrNotFound is returned for any operation on an unknown id.
	ErrNotFound = errors.New("entity not found")

	// ErrValidationFailed is returned when an entry violates a model
	// invariant. Never retried.
	ErrValidationFailed = errors.New("validation failed")

	// ErrPersistenceFailure is returned when the durable store rejects a
	// write; in-memory state has been rolled back when callers see it.
	ErrPersistenceFailure = errors.New("persistence failure")

	// ErrTimeout is a client-observed deadline exceeded; transient.
	ErrTimeout = errors.New("operation timed out")

	// ErrConnectionLost signals a dropped realtime channel.
	ErrConnectionLost = errors.New("connection lost")
)
