/*
 * Copyright 2024 The Cowrite Authors. All rights reserved.
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

// Package presence provides ephemeral tracking of who is looking at which
// document. Presence state never touches the database; a restart clears it.
package presence

import (
	"hash/fnv"
	"sort"
	"time"

	"github.com/cowrite-team/cowrite/api/types"
	"github.com/cowrite-team/cowrite/pkg/cmap"
)

// colorPalette is the set of display colors assigned to users. The color of
// a user is stable across connections so reconnects keep their hue.
var colorPalette = []string{
	"#FF6B6B", "#4ECDC4", "#45B7D1", "#96CEB4",
	"#FFEAA7", "#DDA0DD", "#FD79A8", "#A29BFE",
}

// Tracker keeps the last-written presence of each connection in memory.
// Entries older than the TTL are treated as gone and reaped by Sweep.
type Tracker struct {
	presences *cmap.Map[string, *types.Presence]
	ttl       time.Duration
}

// NewTracker creates an instance of Tracker with the given entry TTL.
func NewTracker(ttl time.Duration) *Tracker {
	return &Tracker{
		presences: cmap.New[string, *types.Presence](),
		ttl:       ttl,
	}
}

// ColorOf returns the display color of the given user.
func ColorOf(userID string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return colorPalette[h.Sum32()%uint32(len(colorPalette))]
}

// Update stores the given presence keyed by its connection, stamping the
// activity time and the user's color. Last write wins.
func (t *Tracker) Update(presence *types.Presence) *types.Presence {
	updated := presence.DeepCopy()
	updated.LastActivity = time.Now()
	updated.Color = ColorOf(updated.UserID)

	t.presences.Set(updated.ConnectionID, updated)
	return updated
}

// Remove deletes the presence of the given connection. It returns the removed
// presence, or nil if the connection was not tracked.
func (t *Tracker) Remove(connectionID string) *types.Presence {
	var removed *types.Presence
	t.presences.Delete(connectionID, func(p *types.Presence, exists bool) bool {
		if exists {
			removed = p
		}
		return exists
	})
	return removed
}

// List returns the live presences of the given document, ordered by
// connection so repeated calls are stable. Expired entries are skipped.
func (t *Tracker) List(docID types.ID) []*types.Presence {
	deadline := time.Now().Add(-t.ttl)

	var presences []*types.Presence
	for _, p := range t.presences.Values() {
		if p.DocumentID != docID {
			continue
		}
		if p.LastActivity.Before(deadline) {
			continue
		}
		presences = append(presences, p.DeepCopy())
	}

	sort.Slice(presences, func(i, j int) bool {
		return presences[i].ConnectionID < presences[j].ConnectionID
	})
	return presences
}

// Sweep removes entries whose last activity is older than the TTL and
// returns them so the caller can broadcast the departures.
func (t *Tracker) Sweep() []*types.Presence {
	deadline := time.Now().Add(-t.ttl)

	var swept []*types.Presence
	for _, connID := range t.presences.Keys() {
		t.presences.Delete(connID, func(p *types.Presence, exists bool) bool {
			if !exists || !p.LastActivity.Before(deadline) {
				return false
			}
			swept = append(swept, p)
			return true
		})
	}
	return swept
}

// Len returns the number of tracked connections.
func (t *Tracker) Len() int {
	return t.presences.Len()
}
