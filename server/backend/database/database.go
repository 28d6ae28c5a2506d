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

// Package database provides the persistence boundary of the server.
package database

import (
	"context"

	"github.com/cowrite-team/cowrite/api/types"
	"github.com/cowrite-team/cowrite/pkg/errors"
)

var (
	// ErrDocumentNotFound is returned when the document could not be found.
	ErrDocumentNotFound = errors.NotFound(
		"document not found",
	).WithCode("ErrDocumentNotFound")

	// ErrDocumentAlreadyExists is returned when a document with the given
	// key already exists.
	ErrDocumentAlreadyExists = errors.AlreadyExists(
		"document already exists",
	).WithCode("ErrDocumentAlreadyExists")

	// ErrConflictOnUpdate is returned when the version-checked update of a
	// document fails because the expected version no longer matches.
	ErrConflictOnUpdate = errors.FailedPrecond(
		"conflict on update",
	).WithCode("ErrConflictOnUpdate")

	// ErrOperationNotFound is returned when an operation log entry could not
	// be found.
	ErrOperationNotFound = errors.NotFound(
		"operation not found",
	).WithCode("ErrOperationNotFound")
)

// Database reads and saves document state and the operation log. The
// reconciler exclusively owns the document state of a given document; this
// interface only requires the atomicity guarantee on CreateOperationInfo.
type Database interface {
	// Close closes all resources of this database.
	Close() error

	// CreateDocInfo creates a new document with version 0 and empty content.
	CreateDocInfo(ctx context.Context, key types.Key) (*DocInfo, error)

	// FindDocInfoByID returns the document of the given ID.
	FindDocInfoByID(ctx context.Context, id types.ID) (*DocInfo, error)

	// FindDocInfoByKey returns the document of the given key.
	FindDocInfoByKey(ctx context.Context, key types.Key) (*DocInfo, error)

	// CreateOperationInfo appends the operation to the document's log and
	// persists the new content and version atomically. expectedVersion is
	// the version loaded inside the reconciler's critical section; if the
	// stored version differs, ErrConflictOnUpdate is returned and nothing is
	// written.
	CreateOperationInfo(
		ctx context.Context,
		docID types.ID,
		info *OperationInfo,
		newContent string,
		expectedVersion int64,
	) error

	// FindOperationsSince returns the log entries of the document whose
	// server version is greater than the given version, ascending.
	FindOperationsSince(
		ctx context.Context,
		docID types.ID,
		version int64,
	) ([]*OperationInfo, error)
}
