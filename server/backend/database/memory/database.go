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

// Package memory implements the database interface using an in-memory
// database. It is the default store and also serves the tests.
package memory

import (
	"context"
	"fmt"
	gotime "time"

	"github.com/hashicorp/go-memdb"

	"github.com/cowrite-team/cowrite/api/types"
	"github.com/cowrite-team/cowrite/server/backend/database"
)

// DB is an in-memory database.
type DB struct {
	db *memdb.MemDB
}

// New returns a new in-memory database.
func New() (*DB, error) {
	memDB, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf("new memdb: %w", err)
	}

	return &DB{
		db: memDB,
	}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return nil
}

// CreateDocInfo creates a new document with version 0 and empty content.
func (d *DB) CreateDocInfo(
	_ context.Context,
	key types.Key,
) (*database.DocInfo, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblDocuments, "key", key.String())
	if err != nil {
		return nil, fmt.Errorf("find document of %s: %w", key, err)
	}
	if raw != nil {
		return nil, fmt.Errorf("create document of %s: %w", key, database.ErrDocumentAlreadyExists)
	}

	now := gotime.Now()
	info := &database.DocInfo{
		ID:        types.NewID(),
		Key:       key,
		Content:   "",
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := txn.Insert(tblDocuments, info); err != nil {
		return nil, fmt.Errorf("create document of %s: %w", key, err)
	}
	txn.Commit()

	return info.DeepCopy(), nil
}

// FindDocInfoByID returns the document of the given ID.
func (d *DB) FindDocInfoByID(
	_ context.Context,
	id types.ID,
) (*database.DocInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblDocuments, "id", id.String())
	if err != nil {
		return nil, fmt.Errorf("find document of %s: %w", id, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("find document of %s: %w", id, database.ErrDocumentNotFound)
	}

	return raw.(*database.DocInfo).DeepCopy(), nil
}

// FindDocInfoByKey returns the document of the given key.
func (d *DB) FindDocInfoByKey(
	_ context.Context,
	key types.Key,
) (*database.DocInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblDocuments, "key", key.String())
	if err != nil {
		return nil, fmt.Errorf("find document of %s: %w", key, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("find document of %s: %w", key, database.ErrDocumentNotFound)
	}

	return raw.(*database.DocInfo).DeepCopy(), nil
}

// CreateOperationInfo appends the operation to the document's log and
// persists the new content and version in the same write transaction, which
// gives the required atomicity.
func (d *DB) CreateOperationInfo(
	_ context.Context,
	docID types.ID,
	info *database.OperationInfo,
	newContent string,
	expectedVersion int64,
) error {
	txn := d.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblDocuments, "id", docID.String())
	if err != nil {
		return fmt.Errorf("find document of %s: %w", docID, err)
	}
	if raw == nil {
		return fmt.Errorf("find document of %s: %w", docID, database.ErrDocumentNotFound)
	}

	docInfo := raw.(*database.DocInfo).DeepCopy()
	if docInfo.Version != expectedVersion {
		return fmt.Errorf(
			"create operation of %s at %d: %w",
			docID, expectedVersion, database.ErrConflictOnUpdate,
		)
	}

	if err := txn.Insert(tblOperations, info.DeepCopy()); err != nil {
		return fmt.Errorf("create operation of %s: %w", docID, err)
	}

	docInfo.Content = newContent
	docInfo.Version = info.ServerVersion
	docInfo.UpdatedAt = gotime.Now()
	if err := txn.Insert(tblDocuments, docInfo); err != nil {
		return fmt.Errorf("update document of %s: %w", docID, err)
	}

	txn.Commit()
	return nil
}

// FindOperationsSince returns the log entries of the document whose server
// version is greater than the given version, ascending.
func (d *DB) FindOperationsSince(
	_ context.Context,
	docID types.ID,
	version int64,
) ([]*database.OperationInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	iterator, err := txn.LowerBound(
		tblOperations,
		"doc_id_server_version",
		docID.String(),
		version+1,
	)
	if err != nil {
		return nil, fmt.Errorf("find operations of %s: %w", docID, err)
	}

	var infos []*database.OperationInfo
	for raw := iterator.Next(); raw != nil; raw = iterator.Next() {
		info := raw.(*database.OperationInfo)
		if info.DocID != docID {
			break
		}
		infos = append(infos, info.DeepCopy())
	}

	return infos, nil
}
