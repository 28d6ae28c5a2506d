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
	"github.com/cowrite-team/cowrite/pkg/ot"
)

// OperationInfo is one entry of a document's append-only operation log.
// Entries are immutable once written and ordered by ServerVersion.
type OperationInfo struct {
	ID            types.ID  `json:"id" bson:"_id"`
	DocID         types.ID  `json:"doc_id" bson:"doc_id"`
	UserID        string    `json:"user_id" bson:"user_id"`
	Type          string    `json:"type" bson:"type"`
	Position      int       `json:"position" bson:"position"`
	Content       string    `json:"content" bson:"content"`
	ClientVersion int64     `json:"client_version" bson:"client_version"`
	ServerVersion int64     `json:"server_version" bson:"server_version"`
	Timestamp     time.Time `json:"timestamp" bson:"timestamp"`
	Conflicted    bool      `json:"conflicted" bson:"conflicted"`
	Noop          bool      `json:"noop" bson:"noop"`
}

// FromOperation converts an accepted operation to a log entry.
func FromOperation(docID types.ID, op *ot.Operation) *OperationInfo {
	return &OperationInfo{
		ID:            types.ID(op.ID),
		DocID:         docID,
		UserID:        op.UserID,
		Type:          string(op.Type),
		Position:      op.Position,
		Content:       op.Content,
		ClientVersion: op.ClientVersion,
		ServerVersion: op.ServerVersion,
		Timestamp:     op.Timestamp,
		Conflicted:    op.Conflicted,
		Noop:          op.Noop,
	}
}

// ToOperation converts the log entry back to an operation.
func (info *OperationInfo) ToOperation() *ot.Operation {
	return &ot.Operation{
		ID:            info.ID.String(),
		DocumentID:    info.DocID.String(),
		UserID:        info.UserID,
		Type:          ot.Type(info.Type),
		Position:      info.Position,
		Content:       info.Content,
		ClientVersion: info.ClientVersion,
		ServerVersion: info.ServerVersion,
		Timestamp:     info.Timestamp,
		Conflicted:    info.Conflicted,
		Noop:          info.Noop,
	}
}

// DeepCopy returns a deep copy of the OperationInfo.
func (info *OperationInfo) DeepCopy() *OperationInfo {
	if info == nil {
		return nil
	}
	copied := *info
	return &copied
}
