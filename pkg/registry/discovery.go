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
	"sort"

	"github.com/fleetmind/registry/pkg/models"
)

// Query is a filtered discovery request. Zero values mean "no filter".
type Query struct {
	Kind         models.EntityKind   `json:"kind,omitempty"`
	Status       models.EntityStatus `json:"status,omitempty"`
	Capability   string              `json:"capability,omitempty"`
	Tag          string              `json:"tag,omitempty"`
	GroupID      string              `json:"group_id,omitempty"`
	SuperGroupID string              `json:"supergroup_id,omitempty"`
	Limit        int                 `json:"limit,omitempty"`
	Offset       int                 `json:"offset,omitempty"`
}

// Discover returns the entries matching the query, ordered by health score
// descending with online entries first among ties, windowed by limit/offset.
// Results are memoized per (kind, filter set) until any entity of that kind
// mutates or the TTL passes. A single bad entity never fails the query.
func (c *Core) Discover(ctx context.Context, q Query) ([]models.Entry, error) {
	c.count("discover")

	if q.Kind != "" {
		if _, err := models.NewEntry(q.Kind); err != nil {
			return nil, err
		}
	}

	key := c.disco.Key(q)

	if cached, ok := c.disco.Get(ctx, key); ok {
		return cached, nil
	}

	results := c.discoverUncached(&q)

	c.disco.Put(ctx, key, results)

	return results, nil
}

// DiscoverFresh answers from the authoritative map without reading, writing,
// or invalidating the discovery cache; other callers' memoized results are
// unaffected.
func (c *Core) DiscoverFresh(_ context.Context, q Query) ([]models.Entry, error) {
	c.count("discover")

	if q.Kind != "" {
		if _, err := models.NewEntry(q.Kind); err != nil {
			return nil, err
		}
	}

	return c.discoverUncached(&q), nil
}

func (c *Core) discoverUncached(q *Query) []models.Entry {
	c.mu.RLock()
	matched := make([]models.Entry, 0)

	for _, entry := range c.entries {
		if matchesQuery(entry, q) {
			matched = append(matched, entry.Clone())
		}
	}
	c.mu.RUnlock()

	sortByHealth(matched)

	return window(matched, q.Offset, q.Limit)
}

func matchesQuery(entry models.Entry, q *Query) bool {
	base := entry.Base()

	if q.Kind != "" && entry.GetKind() != q.Kind {
		return false
	}

	if q.Status != "" && base.Status != q.Status {
		return false
	}

	if q.Capability != "" && !containsString(base.Capabilities, q.Capability) {
		return false
	}

	if q.Tag != "" && !containsString(base.Tags, q.Tag) {
		return false
	}

	if q.GroupID != "" && groupIDOf(entry) != q.GroupID {
		return false
	}

	if q.SuperGroupID != "" && superGroupIDOf(entry) != q.SuperGroupID {
		return false
	}

	return true
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}

	return false
}

func groupIDOf(entry models.Entry) string {
	if w := workerOf(entry); w != nil {
		return w.GroupID
	}

	return ""
}

func superGroupIDOf(entry models.Entry) string {
	switch e := entry.(type) {
	case *models.Worker:
		return e.SuperGroupID
	case *models.Supervisor:
		return e.SuperGroupID
	case *models.Group:
		return e.SuperGroupID
	default:
		return ""
	}
}

// sortByHealth orders by health score descending; among equal scores online
// entries sort first.
func sortByHealth(entries []models.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].Base(), entries[j].Base()

		if a.HealthScore != b.HealthScore {
			return a.HealthScore > b.HealthScore
		}

		return a.Status == models.StatusOnline && b.Status != models.StatusOnline
	})
}

func window(entries []models.Entry, offset, limit int) []models.Entry {
	if offset < 0 {
		offset = 0
	}

	if offset >= len(entries) {
		return []models.Entry{}
	}

	entries = entries[offset:]

	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}

	return entries
}

// Hierarchy resolves the supergroup → group → member tree from the cache.
// Dangling ids (members unregistered since the list was written) are skipped.
func (c *Core) Hierarchy(_ context.Context) *models.Hierarchy {
	c.count("hierarchy")

	c.mu.RLock()
	defer c.mu.RUnlock()

	tree := &models.Hierarchy{}
	attached := make(map[string]bool)

	for _, entry := range c.entries {
		sg, ok := entry.(*models.SuperGroup)
		if !ok {
			continue
		}

		node := models.HierarchyNode{ID: sg.ID, Name: sg.Name}

		for _, groupID := range sg.GroupIDs {
			if group, ok := c.entries[groupID].(*models.Group); ok {
				node.Groups = append(node.Groups, c.resolveGroup(group))
				attached[groupID] = true
			}
		}

		tree.SuperGroups = append(tree.SuperGroups, node)
	}

	for id, entry := range c.entries {
		if group, ok := entry.(*models.Group); ok && !attached[id] {
			tree.OrphanedGroups = append(tree.OrphanedGroups, c.resolveGroup(group))
		}
	}

	sort.Slice(tree.SuperGroups, func(i, j int) bool {
		return tree.SuperGroups[i].ID < tree.SuperGroups[j].ID
	})
	sort.Slice(tree.OrphanedGroups, func(i, j int) bool {
		return tree.OrphanedGroups[i].ID < tree.OrphanedGroups[j].ID
	})

	return tree
}

// resolveGroup expects c.mu held.
func (c *Core) resolveGroup(group *models.Group) models.HierarchyGroup {
	hg := models.HierarchyGroup{ID: group.ID, Name: group.Name}

	for _, memberID := range group.MemberIDs {
		member, ok := c.entries[memberID]
		if !ok {
			continue
		}

		base := member.Base()
		hg.Members = append(hg.Members, models.HierarchyMember{
			ID:          base.ID,
			Name:        base.Name,
			Kind:        member.GetKind(),
			Status:      base.Status,
			HealthScore: base.HealthScore,
		})
	}

	return hg
}
