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

// Package backend provides the backend implementation of the server.
package backend

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cowrite-team/cowrite/server/backend/background"
	"github.com/cowrite-team/cowrite/server/backend/database"
	"github.com/cowrite-team/cowrite/server/backend/database/memory"
	"github.com/cowrite-team/cowrite/server/backend/database/mongo"
	"github.com/cowrite-team/cowrite/server/backend/sync"
	"github.com/cowrite-team/cowrite/server/logging"
	"github.com/cowrite-team/cowrite/server/presence"
	"github.com/cowrite-team/cowrite/server/profiling/prometheus"
)

// Backend manages Cowrite's shared remaining resources: the database, the
// per-document lockers, the event pub/sub and the presence tracker. It is
// shared by all RPC handlers.
type Backend struct {
	Config *Config

	// DB is the database instance used by the reconciler.
	DB database.Database

	// Lockers is the lockers used to serialize reconciliation per document.
	Lockers *sync.LockerManager

	// PubSub is the pub/sub instance used to notify watch connections.
	PubSub *sync.PubSub

	// Presence is the in-memory presence tracker.
	Presence *presence.Tracker

	// Background is used to manage goroutines that outlive requests.
	Background *background.Background

	// Metrics is the metrics of the server.
	Metrics *prometheus.Metrics
}

// New creates a new instance of Backend. If a Mongo config is given, the
// document state lives in MongoDB; otherwise an in-memory database is used.
func New(
	conf *Config,
	mongoConf *mongo.Config,
	metrics *prometheus.Metrics,
) (*Backend, error) {
	hostname := conf.Hostname
	if hostname == "" {
		var err error
		hostname, err = os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("os.Hostname: %w", err)
		}
		conf.Hostname = hostname
	}

	var db database.Database
	var err error
	if mongoConf != nil {
		db, err = mongo.Dial(mongoConf)
		if err != nil {
			return nil, err
		}
	} else {
		db, err = memory.New()
		if err != nil {
			return nil, err
		}
	}

	dbInfo := "memory"
	if mongoConf != nil {
		dbInfo = mongoConf.ConnectionURI
	}

	logging.DefaultLogger().Infof(
		"backend created: db: %s, presence ttl: %s",
		dbInfo,
		conf.PresenceTTL,
	)

	return &Backend{
		Config:     conf,
		DB:         db,
		Lockers:    sync.New(),
		PubSub:     sync.NewPubSub(),
		Presence:   presence.NewTracker(conf.ParsePresenceTTL()),
		Background: background.New(metrics),
		Metrics:    metrics,
	}, nil
}

// Start starts the background tasks of this backend.
func (b *Backend) Start() {
	b.Background.AttachGoroutine(func(ctx context.Context) {
		b.sweepPresences(ctx)
	}, "presence-sweep")
}

// Shutdown closes all resources of this instance.
func (b *Backend) Shutdown() error {
	b.Background.Close()

	if err := b.DB.Close(); err != nil {
		return err
	}

	logging.DefaultLogger().Infof("backend stopped: db closed")
	return nil
}

// sweepPresences periodically removes expired presence entries and
// broadcasts the departures to the remaining watchers.
func (b *Backend) sweepPresences(ctx context.Context) {
	interval := b.Config.ParsePresenceCleanupInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, swept := range b.Presence.Sweep() {
				b.PubSub.Publish(ctx, swept.ConnectionID, sync.DocEvent{
					Type:       sync.DocPresenceClearedEvent,
					Publisher:  swept.ConnectionID,
					DocumentID: swept.DocumentID,
					Presence:   swept,
				})
			}
		case <-b.Background.Closing():
			return
		case <-ctx.Done():
			return
		}
	}
}
