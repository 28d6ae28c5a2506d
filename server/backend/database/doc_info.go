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

package database

import (
	"time"

	"github.com/cowrite-team/cowrite/api/types"
)

// DocInfo is the authoritative server-side record of a document. Version
// increases by exactly one per accepted operation and never skips; only the
// reconciler mutates it.
type DocInfo struct {
	ID        types.ID  `json:"id" bson:"_id"`
	Key       types.Key `json:"key" bson:"key"`
	Content   string    `json:"content" bson:"content"`
	Version   int64     `json:"version" bson:"version"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// DeepCopy returns a deep copy of the DocInfo.
func (info *DocInfo) DeepCopy() *DocInfo {
	if info == nil {
		return nil
	}
	copied := *info
	return &copied
}

// ToSummary converts the DocInfo to a client-facing summary.
func (info *DocInfo) ToSummary() *types.DocumentSummary {
	return &types.DocumentSummary{
		ID:        info.ID,
		Key:       info.Key,
		Content:   info.Content,
		Version:   info.Version,
		CreatedAt: info.CreatedAt,
		UpdatedAt: info.UpdatedAt,
	}
}
