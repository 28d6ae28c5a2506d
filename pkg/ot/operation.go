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

// Package ot implements operational transformation over flat text documents.
// An Operation is the atomic edit unit; Transform rewrites a concurrent
// operation so it can be applied after another one with consistent results.
package ot

import (
	"time"

	"github.com/rs/xid"

	"github.com/cowrite-team/cowrite/pkg/errors"
)

// Type represents the type of an operation.
type Type string

// Below are the types of operations.
const (
	// Insert splices new text into the document at a position.
	Insert Type = "insert"

	// Delete removes the operation's content starting at a position.
	Delete Type = "delete"

	// Replace removes a span equal to its own content length at a position
	// and splices the new content in. Its net length change is always zero.
	Replace Type = "replace"
)

var (
	// ErrInvalidOperationType is returned when the operation type is unknown.
	ErrInvalidOperationType = errors.InvalidArgument(
		"invalid operation type",
	).WithCode("ErrInvalidOperationType")

	// ErrPositionOutOfRange is returned when the position is outside the
	// content the operation is about to be applied to.
	ErrPositionOutOfRange = errors.InvalidArgument(
		"position out of range",
	).WithCode("ErrPositionOutOfRange")

	// ErrEmptyInsertContent is returned when an insert carries no content.
	ErrEmptyInsertContent = errors.InvalidArgument(
		"insert content must not be empty",
	).WithCode("ErrEmptyInsertContent")

	// ErrSpanOutOfRange is returned when a delete or replace span extends
	// past the end of the content.
	ErrSpanOutOfRange = errors.InvalidArgument(
		"span extends past end of content",
	).WithCode("ErrSpanOutOfRange")
)

// Operation is the unit of change of a document. Position and Content are
// expressed in the author's local version space at ClientVersion;
// ServerVersion is assigned by the reconciler once the operation is accepted.
type Operation struct {
	ID            string    `json:"id" bson:"id"`
	DocumentID    string    `json:"document_id" bson:"document_id"`
	UserID        string    `json:"user_id" bson:"user_id"`
	Type          Type      `json:"type" bson:"type"`
	Position      int       `json:"position" bson:"position"`
	Content       string    `json:"content,omitempty" bson:"content,omitempty"`
	ClientVersion int64     `json:"client_version" bson:"client_version"`
	ServerVersion int64     `json:"server_version,omitempty" bson:"server_version,omitempty"`
	Timestamp     time.Time `json:"timestamp" bson:"timestamp"`

	// Conflicted is true if the operation was transformed against operations
	// its author had not seen. It is never used to decide ordering; arrival
	// order at the reconciler is the ordering authority.
	Conflicted bool `json:"conflicted,omitempty" bson:"conflicted,omitempty"`

	// Noop is true if transformation degraded the operation into doing
	// nothing: its entire target was already removed or overridden by
	// concurrent operations. A no-op is still committed and versioned so the
	// author learns its fate, but applying it leaves the buffer unchanged.
	Noop bool `json:"noop,omitempty" bson:"noop,omitempty"`
}

// New creates a new operation authored against the given client version.
func New(
	documentID string,
	userID string,
	opType Type,
	position int,
	content string,
	clientVersion int64,
) *Operation {
	return &Operation{
		ID:            xid.New().String(),
		DocumentID:    documentID,
		UserID:        userID,
		Type:          opType,
		Position:      position,
		Content:       content,
		ClientVersion: clientVersion,
		Timestamp:     time.Now(),
	}
}

// Span returns the number of characters the operation removes from the
// buffer. An insert removes nothing. A delete removes the length of the text
// it carries, falling back to a single character when it is content-less. A
// replace removes exactly as many characters as it inserts. An operation
// degraded to a no-op removes nothing.
func (op *Operation) Span() int {
	if op.Noop {
		return 0
	}

	switch op.Type {
	case Insert:
		return 0
	case Replace:
		return len(op.Content)
	case Delete:
		if op.Content == "" {
			return 1
		}
		return len(op.Content)
	}
	return 0
}

// IsNoop returns true if applying the operation leaves the buffer unchanged.
// Transformation can degrade a delete or replace into a no-op when its entire
// target was already removed or overridden by concurrent operations.
func (op *Operation) IsNoop() bool {
	if op.Noop {
		return true
	}
	return op.Type == Insert && op.Content == ""
}

// Validate checks the operation against the length of the buffer it is about
// to be applied to. It must be re-run against the current buffer immediately
// before application because the buffer may have changed since the operation
// was conceived.
func (op *Operation) Validate(contentLength int) error {
	switch op.Type {
	case Insert, Delete, Replace:
	default:
		return ErrInvalidOperationType
	}

	if op.Position < 0 || op.Position > contentLength {
		return ErrPositionOutOfRange
	}

	if op.Type == Insert && op.Content == "" {
		return ErrEmptyInsertContent
	}

	if op.Position+op.Span() > contentLength {
		return ErrSpanOutOfRange
	}

	return nil
}

// DeepCopy returns a deep copy of the operation.
func (op *Operation) DeepCopy() *Operation {
	if op == nil {
		return nil
	}
	copied := *op
	return &copied
}
