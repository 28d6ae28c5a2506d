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

package mongo_test

import (
	"context"
	"fmt"
	"testing"
	gotime "time"

	"github.com/rs/xid"
	"github.com/stretchr/testify/assert"

	"github.com/cowrite-team/cowrite/api/types"
	"github.com/cowrite-team/cowrite/server/backend/database"
	"github.com/cowrite-team/cowrite/server/backend/database/mongo"
)

func setupTestClient(t *testing.T) *mongo.Client {
	config := &mongo.Config{
		ConnectionTimeout: "5s",
		ConnectionURI:     "mongodb://localhost:27017",
		Database:          fmt.Sprintf("test-cowrite-%s", xid.New()),
		PingTimeout:       "5s",
	}
	assert.NoError(t, config.Validate())

	cli, err := mongo.Dial(config)
	if err != nil {
		t.Skipf("mongo is not available: %v", err)
	}

	t.Cleanup(func() {
		assert.NoError(t, cli.Close())
	})
	return cli
}

func operationInfo(docID types.ID, content string, serverVersion int64) *database.OperationInfo {
	return &database.OperationInfo{
		ID:            types.NewID(),
		DocID:         docID,
		UserID:        "test-user",
		Type:          "insert",
		Position:      0,
		Content:       content,
		ClientVersion: serverVersion - 1,
		ServerVersion: serverVersion,
		Timestamp:     gotime.Now(),
	}
}

func TestClient(t *testing.T) {
	ctx := context.Background()

	t.Run("commit operation test", func(t *testing.T) {
		cli := setupTestClient(t)

		info, err := cli.CreateDocInfo(ctx, "commit-doc")
		assert.NoError(t, err)

		assert.NoError(t, cli.CreateOperationInfo(
			ctx, info.ID, operationInfo(info.ID, "Hello", 1), "Hello", 0,
		))

		found, err := cli.FindDocInfoByID(ctx, info.ID)
		assert.NoError(t, err)
		assert.Equal(t, int64(1), found.Version)
		assert.Equal(t, "Hello", found.Content)

		ops, err := cli.FindOperationsSince(ctx, info.ID, 0)
		assert.NoError(t, err)
		assert.Len(t, ops, 1)
		assert.Equal(t, int64(1), ops[0].ServerVersion)
	})

	t.Run("stale version commits nothing visible test", func(t *testing.T) {
		cli := setupTestClient(t)

		info, err := cli.CreateDocInfo(ctx, "stale-doc")
		assert.NoError(t, err)
		assert.NoError(t, cli.CreateOperationInfo(
			ctx, info.ID, operationInfo(info.ID, "Hello", 1), "Hello", 0,
		))

		// expected version 1 but claims to produce version 3: the
		// version-checked update matches nothing
		err = cli.CreateOperationInfo(
			ctx, info.ID, operationInfo(info.ID, "x", 3), "x", 2,
		)
		assert.ErrorIs(t, err, database.ErrConflictOnUpdate)

		found, err := cli.FindDocInfoByID(ctx, info.ID)
		assert.NoError(t, err)
		assert.Equal(t, int64(1), found.Version)
		assert.Equal(t, "Hello", found.Content)

		// the entry written before the failed commit must not be readable
		ops, err := cli.FindOperationsSince(ctx, info.ID, 0)
		assert.NoError(t, err)
		assert.Len(t, ops, 1)
		assert.Equal(t, int64(1), ops[0].ServerVersion)
	})

	t.Run("retry after failed commit test", func(t *testing.T) {
		cli := setupTestClient(t)

		info, err := cli.CreateDocInfo(ctx, "retry-doc")
		assert.NoError(t, err)

		// leave an uncommitted entry behind at version 1
		err = cli.CreateOperationInfo(
			ctx, info.ID, operationInfo(info.ID, "orphan", 1), "orphan", 5,
		)
		assert.ErrorIs(t, err, database.ErrConflictOnUpdate)

		// the next commit at version 1 overwrites it and succeeds
		assert.NoError(t, cli.CreateOperationInfo(
			ctx, info.ID, operationInfo(info.ID, "World", 1), "World", 0,
		))

		found, err := cli.FindDocInfoByID(ctx, info.ID)
		assert.NoError(t, err)
		assert.Equal(t, "World", found.Content)

		ops, err := cli.FindOperationsSince(ctx, info.ID, 0)
		assert.NoError(t, err)
		assert.Len(t, ops, 1)
		assert.Equal(t, "World", ops[0].Content)
	})
}
