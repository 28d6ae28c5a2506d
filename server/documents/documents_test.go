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

package documents_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cowrite-team/cowrite/api/types"
	"github.com/cowrite-team/cowrite/pkg/errors"
	"github.com/cowrite-team/cowrite/pkg/ot"
	"github.com/cowrite-team/cowrite/server/backend"
	"github.com/cowrite-team/cowrite/server/documents"
	"github.com/cowrite-team/cowrite/server/profiling/prometheus"
)

func setUpBackend(t *testing.T) *backend.Backend {
	t.Helper()

	metrics, err := prometheus.NewMetrics()
	assert.NoError(t, err)

	be, err := backend.New(&backend.Config{
		Hostname:                "test",
		PresenceTTL:             "30s",
		PresenceCleanupInterval: "10s",
	}, nil, metrics)
	assert.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, be.Shutdown())
	})
	return be
}

func submit(
	t *testing.T,
	be *backend.Backend,
	docID types.ID,
	op *ot.Operation,
) *types.SubmitOperationResponse {
	t.Helper()

	res, err := documents.SubmitOperation(context.Background(), be, docID, op)
	assert.NoError(t, err)
	return res
}

func TestSubmitOperation(t *testing.T) {
	ctx := context.Background()

	t.Run("monotonic versioning test", func(t *testing.T) {
		be := setUpBackend(t)
		doc, err := documents.CreateDocument(ctx, be, "versioning")
		assert.NoError(t, err)
		assert.Equal(t, int64(0), doc.Version)

		for i := 0; i < 5; i++ {
			res := submit(t, be, doc.ID, ot.New(
				doc.ID.String(), "user-a", ot.Insert, i, fmt.Sprintf("%d", i), int64(i),
			))
			assert.Equal(t, int64(i+1), res.ServerVersion)
			assert.False(t, res.Conflicted)
		}

		sync, err := documents.SyncSince(ctx, be, doc.ID, 0)
		assert.NoError(t, err)
		assert.Equal(t, "01234", sync.Content)
		assert.Equal(t, int64(5), sync.Version)
		assert.Len(t, sync.Operations, 5)
		for i, op := range sync.Operations {
			assert.Equal(t, int64(i+1), op.ServerVersion)
		}
	})

	t.Run("concurrent inserts converge test", func(t *testing.T) {
		be := setUpBackend(t)
		doc, err := documents.CreateDocument(ctx, be, "concurrent-inserts")
		assert.NoError(t, err)

		submit(t, be, doc.ID, ot.New(doc.ID.String(), "user-a", ot.Insert, 0, "Hello World", 0))

		// both authored against version 1
		resA := submit(t, be, doc.ID, ot.New(doc.ID.String(), "user-a", ot.Insert, 5, " Beautiful", 1))
		assert.False(t, resA.Conflicted)

		resB := submit(t, be, doc.ID, ot.New(doc.ID.String(), "user-b", ot.Insert, 11, "!", 1))
		assert.True(t, resB.Conflicted)
		assert.Equal(t, 21, resB.Operation.Position)

		found, err := documents.FindDocument(ctx, be, "concurrent-inserts")
		assert.NoError(t, err)
		assert.Equal(t, "Hello Beautiful World!", found.Content)
		assert.Equal(t, int64(3), found.Version)
	})

	t.Run("replaying the log rebuilds the content test", func(t *testing.T) {
		be := setUpBackend(t)
		doc, err := documents.CreateDocument(ctx, be, "replay")
		assert.NoError(t, err)

		submit(t, be, doc.ID, ot.New(doc.ID.String(), "user-a", ot.Insert, 0, "abc def", 0))
		submit(t, be, doc.ID, ot.New(doc.ID.String(), "user-b", ot.Delete, 3, " ", 1))
		submit(t, be, doc.ID, ot.New(doc.ID.String(), "user-a", ot.Replace, 0, "xyz", 1))

		sync, err := documents.SyncSince(ctx, be, doc.ID, 0)
		assert.NoError(t, err)

		replayed, err := ot.ApplyAll("", sync.Operations)
		assert.NoError(t, err)
		assert.Equal(t, sync.Content, replayed)
	})

	t.Run("client version ahead is rejected test", func(t *testing.T) {
		be := setUpBackend(t)
		doc, err := documents.CreateDocument(ctx, be, "version-ahead")
		assert.NoError(t, err)

		_, err = documents.SubmitOperation(ctx, be, doc.ID, ot.New(
			doc.ID.String(), "user-a", ot.Insert, 0, "x", 5,
		))
		assert.ErrorIs(t, err, documents.ErrVersionAhead)
		assert.Equal(t, errors.ErrCodeInvalidArgument, errors.StatusOf(err))
	})

	t.Run("conflicting edit that no longer fits is rejected test", func(t *testing.T) {
		be := setUpBackend(t)
		doc, err := documents.CreateDocument(ctx, be, "conflict")
		assert.NoError(t, err)

		submit(t, be, doc.ID, ot.New(doc.ID.String(), "user-a", ot.Insert, 0, "abcd", 0))
		submit(t, be, doc.ID, ot.New(doc.ID.String(), "user-a", ot.Delete, 0, "abcd", 1))

		// authored against "abcd", but the content is empty now
		_, err = documents.SubmitOperation(ctx, be, doc.ID, ot.New(
			doc.ID.String(), "user-b", ot.Replace, 2, "ZZ", 1,
		))
		assert.ErrorIs(t, err, documents.ErrOperationConflict)
		assert.Equal(t, errors.ErrCodeFailedPrecondition, errors.StatusOf(err))

		found, err := documents.FindDocument(ctx, be, "conflict")
		assert.NoError(t, err)
		assert.Equal(t, "", found.Content)
		assert.Equal(t, int64(2), found.Version)
	})

	t.Run("stale content-less delete still removes its character test", func(t *testing.T) {
		be := setUpBackend(t)
		doc, err := documents.CreateDocument(ctx, be, "span-one-delete")
		assert.NoError(t, err)

		submit(t, be, doc.ID, ot.New(doc.ID.String(), "user-a", ot.Insert, 0, "abcdef", 0))
		submit(t, be, doc.ID, ot.New(doc.ID.String(), "user-a", ot.Insert, 5, "X", 1))

		// authored against version 1, untouched by the insert at 5
		res := submit(t, be, doc.ID, ot.New(doc.ID.String(), "user-b", ot.Delete, 0, "", 1))
		assert.True(t, res.Conflicted)
		assert.False(t, res.Operation.IsNoop())

		found, err := documents.FindDocument(ctx, be, "span-one-delete")
		assert.NoError(t, err)
		assert.Equal(t, "bcdeXf", found.Content)
	})

	t.Run("fully covered delete commits as no-op test", func(t *testing.T) {
		be := setUpBackend(t)
		doc, err := documents.CreateDocument(ctx, be, "covered-delete")
		assert.NoError(t, err)

		submit(t, be, doc.ID, ot.New(doc.ID.String(), "user-a", ot.Insert, 0, "abcd", 0))
		submit(t, be, doc.ID, ot.New(doc.ID.String(), "user-a", ot.Delete, 0, "abcd", 1))

		res := submit(t, be, doc.ID, ot.New(doc.ID.String(), "user-b", ot.Delete, 1, "bc", 1))
		assert.True(t, res.Conflicted)
		assert.True(t, res.Operation.IsNoop())
		assert.Equal(t, int64(3), res.ServerVersion)

		found, err := documents.FindDocument(ctx, be, "covered-delete")
		assert.NoError(t, err)
		assert.Equal(t, "", found.Content)
	})
}

func TestSyncSince(t *testing.T) {
	ctx := context.Background()

	t.Run("catch up from a snapshot test", func(t *testing.T) {
		be := setUpBackend(t)
		doc, err := documents.CreateDocument(ctx, be, "catch-up")
		assert.NoError(t, err)

		submit(t, be, doc.ID, ot.New(doc.ID.String(), "user-a", ot.Insert, 0, "one", 0))
		snapshot, err := documents.SyncSince(ctx, be, doc.ID, 0)
		assert.NoError(t, err)

		submit(t, be, doc.ID, ot.New(doc.ID.String(), "user-a", ot.Insert, 3, " two", 1))
		submit(t, be, doc.ID, ot.New(doc.ID.String(), "user-a", ot.Insert, 7, " three", 2))

		sync, err := documents.SyncSince(ctx, be, doc.ID, snapshot.Version)
		assert.NoError(t, err)
		assert.Equal(t, snapshot.Version, sync.FromVersion)
		assert.Len(t, sync.Operations, 2)

		caughtUp, err := ot.ApplyAll(snapshot.Content, sync.Operations)
		assert.NoError(t, err)
		assert.Equal(t, sync.Content, caughtUp)
	})

	t.Run("sync from the current version is empty test", func(t *testing.T) {
		be := setUpBackend(t)
		doc, err := documents.CreateDocument(ctx, be, "up-to-date")
		assert.NoError(t, err)

		submit(t, be, doc.ID, ot.New(doc.ID.String(), "user-a", ot.Insert, 0, "x", 0))

		sync, err := documents.SyncSince(ctx, be, doc.ID, 1)
		assert.NoError(t, err)
		assert.Empty(t, sync.Operations)
		assert.Equal(t, int64(1), sync.ToVersion)
	})

	t.Run("sync from a future version returns the current state test", func(t *testing.T) {
		be := setUpBackend(t)
		doc, err := documents.CreateDocument(ctx, be, "future")
		assert.NoError(t, err)

		submit(t, be, doc.ID, ot.New(doc.ID.String(), "user-a", ot.Insert, 0, "x", 0))

		sync, err := documents.SyncSince(ctx, be, doc.ID, 3)
		assert.NoError(t, err)
		assert.Equal(t, "x", sync.Content)
		assert.Equal(t, int64(1), sync.Version)
		assert.Empty(t, sync.Operations)
		assert.Equal(t, int64(1), sync.ToVersion)
	})
}
