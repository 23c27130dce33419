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
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/fleetmind/registry/pkg/kv"
	"github.com/fleetmind/registry/pkg/logger"
	"github.com/fleetmind/registry/pkg/models"
)

// DiscoveryCache memoizes discovery results. Invalidation is deliberately
// coarse: any mutation of a kind bumps that kind's generation, which changes
// every cache key for queries touching the kind. Stale generations simply age
// out by TTL. Finer per-filter invalidation would change the staleness
// guarantees callers rely on, so it is not done here.
//
// The local layer is a process-local TTL cache; when a kv store is configured
// the result is mirrored there so sibling registry instances share warm
// queries. The kv layer is best-effort: errors are logged and ignored.
type DiscoveryCache struct {
	local  *gocache.Cache
	remote kv.KVStore
	logger logger.Logger

	genMu       sync.Mutex
	generations map[models.EntityKind]uint64
}

// NewDiscoveryCache builds the cache. remote may be nil.
func NewDiscoveryCache(ttl time.Duration, remote kv.KVStore, log logger.Logger) *DiscoveryCache {
	return &DiscoveryCache{
		local:       gocache.New(ttl, 0),
		remote:      remote,
		logger:      log.WithComponent("discovery-cache"),
		generations: make(map[models.EntityKind]uint64),
	}
}

// Key builds the cache key for a query, folding in the kind generation(s) so
// invalidation is just a generation bump. Filter values are hashed rather
// than embedded: JetStream KV keys only allow [-/_=.a-zA-Z0-9], and filter
// strings carry arbitrary characters.
func (d *DiscoveryCache) Key(q Query) string {
	d.genMu.Lock()

	var gen uint64
	if q.Kind != "" {
		gen = d.generations[q.Kind]
	} else {
		// Kind-less queries span every kind; fold all generations in.
		for _, kind := range models.AllKinds() {
			gen += d.generations[kind]
		}
	}
	d.genMu.Unlock()

	kind := string(q.Kind)
	if kind == "" {
		kind = "all"
	}

	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s|%d|%d",
		q.Status, q.Capability, q.Tag, q.GroupID, q.SuperGroupID, q.Limit, q.Offset)

	return fmt.Sprintf("discover.%s.%d.%016x", kind, gen, h.Sum64())
}

// Invalidate bumps the generation for kind. An empty kind invalidates all.
func (d *DiscoveryCache) Invalidate(kind models.EntityKind) {
	d.genMu.Lock()
	defer d.genMu.Unlock()

	if kind == "" {
		for _, k := range models.AllKinds() {
			d.generations[k]++
		}

		return
	}

	d.generations[kind]++
}

// Get checks the local layer, then the remote one.
func (d *DiscoveryCache) Get(ctx context.Context, key string) ([]models.Entry, bool) {
	if v, ok := d.local.Get(key); ok {
		if entries, ok := v.([]models.Entry); ok {
			return cloneEntries(entries), true
		}
	}

	if d.remote == nil {
		return nil, false
	}

	raw, found, err := d.remote.Get(ctx, key)
	if err != nil {
		d.logger.Warn().Err(err).Str("key", key).Msg("remote discovery cache read failed")

		return nil, false
	}

	if !found {
		return nil, false
	}

	entries, err := decodeEntryList(raw)
	if err != nil {
		d.logger.Warn().Err(err).Str("key", key).Msg("remote discovery cache entry undecodable")

		return nil, false
	}

	d.local.SetDefault(key, entries)

	return cloneEntries(entries), true
}

// Put stores the result in both layers.
func (d *DiscoveryCache) Put(ctx context.Context, key string, entries []models.Entry) {
	d.local.SetDefault(key, cloneEntries(entries))

	if d.remote == nil {
		return
	}

	raw, err := encodeEntryList(entries)
	if err != nil {
		d.logger.Warn().Err(err).Str("key", key).Msg("failed to encode discovery result for remote cache")

		return
	}

	if err := d.remote.Put(ctx, key, raw); err != nil {
		d.logger.Warn().Err(err).Str("key", key).Msg("remote discovery cache write failed")
	}
}

// DeleteExpired drops expired local entries; called by the cache-eviction
// monitor. The remote layer expires via its bucket TTL.
func (d *DiscoveryCache) DeleteExpired() {
	d.local.DeleteExpired()
}

// ItemCount reports live local entries (for the health endpoint).
func (d *DiscoveryCache) ItemCount() int {
	return d.local.ItemCount()
}

func cloneEntries(entries []models.Entry) []models.Entry {
	out := make([]models.Entry, len(entries))
	for i, e := range entries {
		out[i] = e.Clone()
	}

	return out
}

func encodeEntryList(entries []models.Entry) ([]byte, error) {
	envelopes := make([]json.RawMessage, len(entries))

	for i, e := range entries {
		raw, err := models.EncodeEntry(e)
		if err != nil {
			return nil, err
		}

		envelopes[i] = raw
	}

	return json.Marshal(envelopes)
}

func decodeEntryList(raw []byte) ([]models.Entry, error) {
	var envelopes []json.RawMessage
	if err := json.Unmarshal(raw, &envelopes); err != nil {
		return nil, err
	}

	entries := make([]models.Entry, len(envelopes))

	for i, env := range envelopes {
		entry, err := models.DecodeEntryEnvelope(env)
		if err != nil {
			return nil, err
		}

		entries[i] = entry
	}

	return entries, nil
}
