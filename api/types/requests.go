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

	"github.com/cowrite-team/cowrite/pkg/errors"
	"github.com/cowrite-team/cowrite/pkg/ot"
	"github.com/cowrite-team/cowrite/pkg/validation"
)

var (
	// ErrInvalidOperationShape is returned when a submitted operation does
	// not have the required shape.
	ErrInvalidOperationShape = errors.InvalidArgument(
		"invalid operation shape",
	).WithCode("ErrInvalidOperationShape")

	// ErrInvalidPresence is returned when a presence update is malformed.
	ErrInvalidPresence = errors.InvalidArgument(
		"invalid presence update",
	).WithCode("ErrInvalidPresence")
)

// CreateDocumentRequest is the request shape for creating a document.
type CreateDocumentRequest struct {
	Key Key `json:"key" validate:"required,slug"`
}

// Validate validates the request.
func (r *CreateDocumentRequest) Validate() error {
	if err := validation.ValidateStruct(r); err != nil {
		return ErrInvalidKey
	}
	return nil
}

// DocumentSummary is the response shape of a document's authoritative state.
type DocumentSummary struct {
	ID        ID        `json:"id"`
	Key       Key       `json:"key"`
	Content   string    `json:"content"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SubmitOperationRequest is the request shape for submitting an operation.
// ClientVersion is the version the author believed the document was at; it is
// also carried on the operation and the two must agree.
type SubmitOperationRequest struct {
	Operation     *ot.Operation `json:"operation" validate:"required"`
	ClientVersion int64         `json:"client_version" validate:"gte=0"`
}

// Validate validates the request shape. Bounds against the current document
// content are checked by the reconciler, not here.
func (r *SubmitOperationRequest) Validate() error {
	if err := validation.ValidateStruct(r); err != nil {
		return ErrInvalidOperationShape
	}
	switch r.Operation.Type {
	case ot.Insert, ot.Delete, ot.Replace:
	default:
		return ErrInvalidOperationShape
	}
	if r.Operation.Position < 0 {
		return ErrInvalidOperationShape
	}
	return nil
}

// SubmitOperationResponse is the response shape of an accepted operation.
type SubmitOperationResponse struct {
	Operation     *ot.Operation `json:"operation"`
	ServerVersion int64         `json:"server_version"`
	AppliedAt     time.Time     `json:"applied_at"`
	Conflicted    bool          `json:"conflicted"`
}

// SyncResponse is the response shape of an incremental catch-up.
type SyncResponse struct {
	Content     string          `json:"content"`
	Version     int64           `json:"version"`
	Operations  []*ot.Operation `json:"operations"`
	FromVersion int64           `json:"from_version"`
	ToVersion   int64           `json:"to_version"`
}

// PresenceUpdate is the inbound shape of a presence refresh on a watch
// stream.
type PresenceUpdate struct {
	CursorPosition int        `json:"cursor_position" validate:"gte=0"`
	Selection      *Selection `json:"selection,omitempty"`
}

// Validate validates the presence update.
func (r *PresenceUpdate) Validate() error {
	if err := validation.ValidateStruct(r); err != nil {
		return ErrInvalidPresence
	}
	return nil
}
