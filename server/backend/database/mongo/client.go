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

// Package mongo implements the database interface using MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	gotime "time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/cowrite-team/cowrite/api/types"
	"github.com/cowrite-team/cowrite/server/backend/database"
)

// Client is a client that connects to MongoDB and reads or saves document
// state and the operation log.
type Client struct {
	config *Config
	client *mongo.Client
}

// Dial creates an instance of Client and dials the given MongoDB.
func Dial(conf *Config) (*Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), conf.ParseConnectionTimeout())
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(conf.ConnectionURI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}

	ctxPing, cancelPing := context.WithTimeout(ctx, conf.ParsePingTimeout())
	defer cancelPing()

	if err := client.Ping(ctxPing, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	if err := ensureIndexes(ctx, client.Database(conf.Database)); err != nil {
		return nil, err
	}

	return &Client{
		config: conf,
		client: client,
	}, nil
}

// Close all resources of this client.
func (c *Client) Close() error {
	if err := c.client.Disconnect(context.Background()); err != nil {
		return fmt.Errorf("close mongo client: %w", err)
	}

	return nil
}

// CreateDocInfo creates a new document with version 0 and empty content.
func (c *Client) CreateDocInfo(
	ctx context.Context,
	key types.Key,
) (*database.DocInfo, error) {
	now := gotime.Now()
	info := &database.DocInfo{
		ID:        types.NewID(),
		Key:       key,
		Content:   "",
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := c.collection(ColDocuments).InsertOne(ctx, info); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("create document of %s: %w", key, database.ErrDocumentAlreadyExists)
		}
		return nil, fmt.Errorf("create document of %s: %w", key, err)
	}

	return info, nil
}

// FindDocInfoByID returns the document of the given ID.
func (c *Client) FindDocInfoByID(
	ctx context.Context,
	id types.ID,
) (*database.DocInfo, error) {
	result := c.collection(ColDocuments).FindOne(ctx, bson.M{
		"_id": id,
	})

	info := &database.DocInfo{}
	if err := result.Decode(info); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("find document of %s: %w", id, database.ErrDocumentNotFound)
		}
		return nil, fmt.Errorf("find document of %s: %w", id, err)
	}

	return info, nil
}

// FindDocInfoByKey returns the document of the given key.
func (c *Client) FindDocInfoByKey(
	ctx context.Context,
	key types.Key,
) (*database.DocInfo, error) {
	result := c.collection(ColDocuments).FindOne(ctx, bson.M{
		"key": key,
	})

	info := &database.DocInfo{}
	if err := result.Decode(info); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("find document of %s: %w", key, database.ErrDocumentNotFound)
		}
		return nil, fmt.Errorf("find document of %s: %w", key, err)
	}

	return info, nil
}

// CreateOperationInfo appends the operation to the document's log and
// persists the new content and version. The log entry is written first; the
// version-checked update of the document is the single commit point, so a
// failure in between leaves the entry invisible rather than the history
// torn: reads are bounded by the document's committed version, which the
// failed commit never advanced. Reconciliation is serialized per document,
// so an existing entry at this version can only be the leftover of such a
// failed commit and is safe to overwrite.
func (c *Client) CreateOperationInfo(
	ctx context.Context,
	docID types.ID,
	info *database.OperationInfo,
	newContent string,
	expectedVersion int64,
) error {
	if _, err := c.collection(ColOperations).DeleteOne(ctx, bson.M{
		"doc_id":         docID,
		"server_version": info.ServerVersion,
	}); err != nil {
		return fmt.Errorf("clear stale operation of %s: %w", docID, err)
	}
	if _, err := c.collection(ColOperations).InsertOne(ctx, info); err != nil {
		return fmt.Errorf("create operation of %s: %w", docID, err)
	}

	res, err := c.collection(ColDocuments).UpdateOne(ctx, bson.M{
		"_id":     docID,
		"version": expectedVersion,
	}, bson.M{
		"$set": bson.M{
			"content":    newContent,
			"version":    info.ServerVersion,
			"updated_at": gotime.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("update document of %s: %w", docID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf(
			"update document of %s at %d: %w",
			docID, expectedVersion, database.ErrConflictOnUpdate,
		)
	}

	return nil
}

// FindOperationsSince returns the log entries of the document whose server
// version is greater than the given version, ascending. Only committed
// entries are returned: the document's version is the upper bound, which
// keeps entries written by a commit that never completed out of sight.
func (c *Client) FindOperationsSince(
	ctx context.Context,
	docID types.ID,
	version int64,
) ([]*database.OperationInfo, error) {
	docInfo, err := c.FindDocInfoByID(ctx, docID)
	if err != nil {
		return nil, err
	}

	cursor, err := c.collection(ColOperations).Find(ctx, bson.M{
		"doc_id": docID,
		"server_version": bson.M{
			"$gt":  version,
			"$lte": docInfo.Version,
		},
	}, options.Find().SetSort(bson.D{{Key: "server_version", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find operations of %s: %w", docID, err)
	}

	var infos []*database.OperationInfo
	if err := cursor.All(ctx, &infos); err != nil {
		return nil, fmt.Errorf("decode operations of %s: %w", docID, err)
	}

	return infos, nil
}

func (c *Client) collection(name string) *mongo.Collection {
	return c.client.Database(c.config.Database).Collection(name)
}
