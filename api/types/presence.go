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

package types

import (
	"time"
)

// Selection is the range of text a user has selected. From and To are
// zero-based offsets; From may be greater than To for backwards selections.
type Selection struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Presence is the ephemeral cursor state of one connection to a document.
// It is keyed by connection, last-write-wins and never enters the operation
// log; it may be briefly inconsistent across observers.
type Presence struct {
	ConnectionID   string     `json:"connection_id"`
	DocumentID     ID         `json:"document_id"`
	UserID         string     `json:"user_id"`
	CursorPosition int        `json:"cursor_position"`
	Selection      *Selection `json:"selection,omitempty"`
	Color          string     `json:"color"`
	LastActivity   time.Time  `json:"last_activity"`
}

// DeepCopy returns a deep copy of the presence.
func (p *Presence) DeepCopy() *Presence {
	if p == nil {
		return nil
	}
	copied := *p
	if p.Selection != nil {
		sel := *p.Selection
		copied.Selection = &sel
	}
	return &copied
}
