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

package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cowrite-team/cowrite/api/types"
	"github.com/cowrite-team/cowrite/pkg/ot"
	"github.com/cowrite-team/cowrite/server/backend/database"
	"github.com/cowrite-team/cowrite/server/backend/database/memory"
)

func acceptedOperation(
	docID types.ID,
	opType ot.Type,
	position int,
	content string,
	serverVersion int64,
) *database.OperationInfo {
	op := ot.New(docID.String(), "test-user", opType, position, content, serverVersion-1)
	op.ServerVersion = serverVersion
	return database.FromOperation(docID, op)
}

func TestDB(t *testing.T) {
	ctx := context.Background()

	t.Run("create and find document test", func(t *testing.T) {
		db, err := memory.New()
		assert.NoError(t, err)

		info, err := db.CreateDocInfo(ctx, "sample-document")
		assert.NoError(t, err)
		assert.Equal(t, types.Key("sample-document"), info.Key)
		assert.Equal(t, int64(0), info.Version)
		assert.Equal(t, "", info.Content)

		found, err := db.FindDocInfoByID(ctx, info.ID)
		assert.NoError(t, err)
		assert.Equal(t, info.ID, found.ID)

		found, err = db.FindDocInfoByKey(ctx, "sample-document")
		assert.NoError(t, err)
		assert.Equal(t, info.ID, found.ID)

		_, err = db.CreateDocInfo(ctx, "sample-document")
		assert.ErrorIs(t, err, database.ErrDocumentAlreadyExists)

		_, err = db.FindDocInfoByKey(ctx, "missing-document")
		assert.ErrorIs(t, err, database.ErrDocumentNotFound)
	})

	t.Run("version checked commit test", func(t *testing.T) {
		db, err := memory.New()
		assert.NoError(t, err)

		info, err := db.CreateDocInfo(ctx, "sample-document")
		assert.NoError(t, err)

		err = db.CreateOperationInfo(
			ctx, info.ID,
			acceptedOperation(info.ID, ot.Insert, 0, "Hello", 1),
			"Hello", 0,
		)
		assert.NoError(t, err)

		found, err := db.FindDocInfoByID(ctx, info.ID)
		assert.NoError(t, err)
		assert.Equal(t, int64(1), found.Version)
		assert.Equal(t, "Hello", found.Content)

		// A commit against a stale expected version must not write anything.
		err = db.CreateOperationInfo(
			ctx, info.ID,
			acceptedOperation(info.ID, ot.Insert, 5, "!", 2),
			"Hello!", 0,
		)
		assert.ErrorIs(t, err, database.ErrConflictOnUpdate)

		found, err = db.FindDocInfoByID(ctx, info.ID)
		assert.NoError(t, err)
		assert.Equal(t, int64(1), found.Version)
		assert.Equal(t, "Hello", found.Content)

		ops, err := db.FindOperationsSince(ctx, info.ID, 0)
		assert.NoError(t, err)
		assert.Len(t, ops, 1)
	})

	t.Run("find operations since test", func(t *testing.T) {
		db, err := memory.New()
		assert.NoError(t, err)

		info, err := db.CreateDocInfo(ctx, "sample-document")
		assert.NoError(t, err)

		content := ""
		for i, text := range []string{"a", "b", "c", "d"} {
			version := int64(i + 1)
			content += text
			assert.NoError(t, db.CreateOperationInfo(
				ctx, info.ID,
				acceptedOperation(info.ID, ot.Insert, i, text, version),
				content, version-1,
			))
		}

		ops, err := db.FindOperationsSince(ctx, info.ID, 2)
		assert.NoError(t, err)
		assert.Len(t, ops, 2)
		assert.Equal(t, int64(3), ops[0].ServerVersion)
		assert.Equal(t, int64(4), ops[1].ServerVersion)

		ops, err = db.FindOperationsSince(ctx, info.ID, 4)
		assert.NoError(t, err)
		assert.Len(t, ops, 0)

		// Operations of other documents must not leak in.
		other, err := db.CreateDocInfo(ctx, "other-document")
		assert.NoError(t, err)
		assert.NoError(t, db.CreateOperationInfo(
			ctx, other.ID,
			acceptedOperation(other.ID, ot.Insert, 0, "z", 1),
			"z", 0,
		))

		ops, err = db.FindOperationsSince(ctx, info.ID, 0)
		assert.NoError(t, err)
		assert.Len(t, ops, 4)
	})
}
