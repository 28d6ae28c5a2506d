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

// Package documents provides the reconciler, the single write path of a
// document: submitted operations are transformed against the history the
// author had not seen, validated, applied and appended to the log under a
// per-document lock.
package documents

import (
	"context"
	goerrors "errors"
	"fmt"
	"time"

	"github.com/cowrite-team/cowrite/api/types"
	"github.com/cowrite-team/cowrite/pkg/errors"
	"github.com/cowrite-team/cowrite/pkg/ot"
	"github.com/cowrite-team/cowrite/server/backend"
	"github.com/cowrite-team/cowrite/server/backend/database"
	"github.com/cowrite-team/cowrite/server/backend/sync"
	"github.com/cowrite-team/cowrite/server/logging"
)

var (
	// ErrVersionAhead is returned when an operation claims a client version
	// newer than the document. Such a version cannot exist yet.
	ErrVersionAhead = errors.InvalidArgument(
		"client version is ahead of the document",
	).WithCode("ErrVersionAhead")

	// ErrOperationConflict is returned when an operation no longer fits the
	// document after transformation against concurrent history.
	ErrOperationConflict = errors.FailedPrecond(
		"operation conflicts with committed history",
	).WithCode("ErrOperationConflict")

	// ErrPersistenceFailed is returned when the store could not commit an
	// accepted operation. Nothing was written; the submission can be retried.
	ErrPersistenceFailed = errors.Unavailable(
		"could not persist the operation",
	).WithCode("ErrPersistenceFailed")
)

// CreateDocument creates a new document with the given key.
func CreateDocument(
	ctx context.Context,
	be *backend.Backend,
	key types.Key,
) (*types.DocumentSummary, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	info, err := be.DB.CreateDocInfo(ctx, key)
	if err != nil {
		return nil, err
	}

	return info.ToSummary(), nil
}

// FindDocument returns the authoritative state of the document of the key.
func FindDocument(
	ctx context.Context,
	be *backend.Backend,
	key types.Key,
) (*types.DocumentSummary, error) {
	info, err := be.DB.FindDocInfoByKey(ctx, key)
	if err != nil {
		return nil, err
	}

	return info.ToSummary(), nil
}

// SubmitOperation runs the reconciliation cycle for one operation: under the
// document's lock it transforms the operation against every committed
// operation the author had not seen, validates the result against the
// current content, applies it and appends it to the log. The new state and
// the log entry are persisted atomically, then the accepted operation is
// broadcast to watchers.
func SubmitOperation(
	ctx context.Context,
	be *backend.Backend,
	docID types.ID,
	op *ot.Operation,
) (*types.SubmitOperationResponse, error) {
	start := time.Now()
	be.Metrics.AddReceivedOperations()

	locker := be.Lockers.Locker(reconcileKey(docID))
	if err := locker.Lock(); err != nil {
		return nil, err
	}
	defer func() {
		if err := locker.Unlock(); err != nil {
			logging.From(ctx).Error(err)
		}
	}()

	docInfo, err := be.DB.FindDocInfoByID(ctx, docID)
	if err != nil {
		return nil, err
	}

	if op.ClientVersion > docInfo.Version {
		return nil, fmt.Errorf(
			"client version %d, document version %d: %w",
			op.ClientVersion, docInfo.Version, ErrVersionAhead,
		)
	}

	accepted := op.DeepCopy()
	if op.ClientVersion < docInfo.Version {
		infos, err := be.DB.FindOperationsSince(ctx, docID, op.ClientVersion)
		if err != nil {
			return nil, err
		}

		prior := make([]*ot.Operation, 0, len(infos))
		for _, info := range infos {
			prior = append(prior, info.ToOperation())
		}

		// The committed side of the log always wins ties.
		accepted = ot.TransformAll(accepted, prior, ot.PriorityRemote)
		be.Metrics.AddConflictedOperations()
	}

	if err := accepted.Validate(len(docInfo.Content)); err != nil {
		if accepted.Conflicted {
			return nil, fmt.Errorf("%s: %w", err.Error(), ErrOperationConflict)
		}
		return nil, err
	}

	newContent, err := ot.Apply(docInfo.Content, accepted)
	if err != nil {
		return nil, err
	}

	accepted.ServerVersion = docInfo.Version + 1
	appliedAt := time.Now()
	accepted.Timestamp = appliedAt

	if err := be.DB.CreateOperationInfo(
		ctx,
		docID,
		database.FromOperation(docID, accepted),
		newContent,
		docInfo.Version,
	); err != nil {
		if goerrors.Is(err, database.ErrConflictOnUpdate) {
			return nil, err
		}
		return nil, fmt.Errorf("%v: %w", err, ErrPersistenceFailed)
	}

	publisher := accepted.UserID
	event := sync.DocEvent{
		Type:       sync.DocOperationEvent,
		Publisher:  publisher,
		DocumentID: docID,
		Operation:  accepted,
	}
	be.Background.AttachGoroutine(func(ctx context.Context) {
		be.PubSub.Publish(ctx, publisher, event)
	}, "publish-operation")

	be.Metrics.ObserveReconcileResponseSeconds(time.Since(start).Seconds())

	return &types.SubmitOperationResponse{
		Operation:     accepted,
		ServerVersion: accepted.ServerVersion,
		AppliedAt:     appliedAt,
		Conflicted:    accepted.Conflicted,
	}, nil
}

// SyncSince returns the operations committed after the given version along
// with the current content and version. The read lock keeps the content and
// the log consistent with each other.
func SyncSince(
	ctx context.Context,
	be *backend.Backend,
	docID types.ID,
	fromVersion int64,
) (*types.SyncResponse, error) {
	locker := be.Lockers.Locker(reconcileKey(docID))
	if err := locker.RLock(); err != nil {
		return nil, err
	}
	defer func() {
		if err := locker.RUnlock(); err != nil {
			logging.From(ctx).Error(err)
		}
	}()

	docInfo, err := be.DB.FindDocInfoByID(ctx, docID)
	if err != nil {
		return nil, err
	}

	// A caller at or past the current version needs nothing; hand back the
	// authoritative state so it can resynchronize either way.
	if fromVersion >= docInfo.Version {
		return &types.SyncResponse{
			Content:     docInfo.Content,
			Version:     docInfo.Version,
			Operations:  []*ot.Operation{},
			FromVersion: fromVersion,
			ToVersion:   docInfo.Version,
		}, nil
	}

	infos, err := be.DB.FindOperationsSince(ctx, docID, fromVersion)
	if err != nil {
		return nil, err
	}

	ops := make([]*ot.Operation, 0, len(infos))
	for _, info := range infos {
		ops = append(ops, info.ToOperation())
	}

	return &types.SyncResponse{
		Content:     docInfo.Content,
		Version:     docInfo.Version,
		Operations:  ops,
		FromVersion: fromVersion,
		ToVersion:   docInfo.Version,
	}, nil
}

func reconcileKey(docID types.ID) sync.Key {
	return sync.NewKey(fmt.Sprintf("reconcile-%s", docID))
}
