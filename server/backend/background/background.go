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

// Package background provides a managed set of goroutines that outlive a
// single request, such as event broadcasting and presence sweeping.
package background

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cowrite-team/cowrite/server/logging"
	"github.com/cowrite-team/cowrite/server/profiling/prometheus"
)

// routineID is used to identify background routines in logs.
type routineID int32

// Background is a service that manages goroutines detached from request
// lifetimes. Shutdown waits for all attached goroutines to return.
type Background struct {
	// closing is closed by backend to notify goroutines that the server is
	// shutting down.
	closing chan struct{}

	// wgMu blocks concurrent attach while Close is in progress.
	wgMu sync.RWMutex

	// wg is used to wait for the goroutines that depends on the server state
	// to exit when stopping the server.
	wg sync.WaitGroup

	// routineID is the ID of the last attached routine.
	routineID int32

	metrics *prometheus.Metrics
}

// New creates an instance of Background.
func New(metrics *prometheus.Metrics) *Background {
	return &Background{
		closing: make(chan struct{}),
		metrics: metrics,
	}
}

func (b *Background) nextRoutineID() routineID {
	return routineID(atomic.AddInt32(&b.routineID, 1))
}

// AttachGoroutine creates a goroutine on a given function and tracks it using
// the background's WaitGroup.
func (b *Background) AttachGoroutine(
	f func(ctx context.Context),
	taskType string,
) {
	b.wgMu.RLock() // this blocks with ongoing close(b.closing)
	defer b.wgMu.RUnlock()
	select {
	case <-b.closing:
		logging.DefaultLogger().Warn("server has closed; skipping AttachGoroutine")
		return
	default:
	}
	b.wg.Add(1)
	b.metrics.AddBackgroundGoroutines(taskType)

	routineLogger := logging.New(fmt.Sprintf("background-%d", b.nextRoutineID()))
	go func() {
		defer b.wg.Done()
		defer b.metrics.RemoveBackgroundGoroutines(taskType)
		f(logging.With(context.Background(), routineLogger))
	}()
}

// Closing returns a channel closed when the server begins shutting down.
func (b *Background) Closing() <-chan struct{} {
	return b.closing
}

// Close stops background service and waits for attached goroutines to return.
func (b *Background) Close() {
	b.wgMu.Lock()
	close(b.closing)
	b.wgMu.Unlock()

	b.wg.Wait()
}
