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

package sync

import (
	"context"
	gosync "sync"
	gotime "time"

	"github.com/rs/xid"
	"go.uber.org/zap"

	"github.com/cowrite-team/cowrite/api/types"
	"github.com/cowrite-team/cowrite/pkg/cmap"
	"github.com/cowrite-team/cowrite/pkg/ot"
	"github.com/cowrite-team/cowrite/server/logging"
)

const (
	// publishTimeout is the timeout for publishing an event to a slow
	// subscriber before the event is dropped for that subscriber.
	publishTimeout = 100 * gotime.Millisecond
)

// DocEventType represents the type of events that occur on a document.
type DocEventType string

const (
	// DocOperationEvent is fired when an operation is accepted by the
	// reconciler.
	DocOperationEvent DocEventType = "operation"

	// DocPresenceEvent is fired when a connection refreshes its presence.
	DocPresenceEvent DocEventType = "presence"

	// DocPresenceClearedEvent is fired when a connection disconnects or its
	// presence expires.
	DocPresenceClearedEvent DocEventType = "presence-cleared"
)

// DocEvent represents an event that occurs on a document.
type DocEvent struct {
	Type       DocEventType    `json:"type"`
	Publisher  string          `json:"publisher"`
	DocumentID types.ID        `json:"document_id"`
	Operation  *ot.Operation   `json:"operation,omitempty"`
	Presence   *types.Presence `json:"presence,omitempty"`
}

// Subscription represents a subscription of a subscriber to a document.
type Subscription struct {
	id         string
	subscriber string
	mu         gosync.Mutex
	closed     bool
	events     chan DocEvent
}

// NewSubscription creates a new instance of Subscription.
func NewSubscription(subscriber string) *Subscription {
	return &Subscription{
		id:         xid.New().String(),
		subscriber: subscriber,
		events:     make(chan DocEvent, 16),
	}
}

// ID returns the id of this subscription.
func (s *Subscription) ID() string {
	return s.id
}

// Events returns the DocEvent channel of this subscription.
func (s *Subscription) Events() chan DocEvent {
	return s.events
}

// Subscriber returns the subscriber of this subscription.
func (s *Subscription) Subscriber() string {
	return s.subscriber
}

// Close closes all resources of this Subscription.
func (s *Subscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.events)
	}
}

// Publish publishes the given event to the subscriber. It returns false if
// the subscription is closed or the subscriber is too slow to keep up.
func (s *Subscription) Publish(event DocEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	select {
	case s.events <- event:
		return true
	case <-gotime.After(publishTimeout):
		return false
	}
}

// subscriptions is the set of subscriptions of one document.
type subscriptions struct {
	docID       types.ID
	internalMap *cmap.Map[string, *Subscription]
}

func newSubscriptions(docID types.ID) *subscriptions {
	return &subscriptions{
		docID:       docID,
		internalMap: cmap.New[string, *Subscription](),
	}
}

func (s *subscriptions) Set(sub *Subscription) {
	s.internalMap.Set(sub.ID(), sub)
}

func (s *subscriptions) Values() []*Subscription {
	return s.internalMap.Values()
}

func (s *subscriptions) Delete(id string) {
	s.internalMap.Delete(id, func(sub *Subscription, exists bool) bool {
		if exists {
			sub.Close()
		}
		return exists
	})
}

func (s *subscriptions) Len() int {
	return s.internalMap.Len()
}

// PubSub is the in-memory implementation of the transport boundary, used for
// a single server.
type PubSub struct {
	subscriptionsMap *cmap.Map[types.ID, *subscriptions]
}

// NewPubSub creates an instance of PubSub.
func NewPubSub() *PubSub {
	return &PubSub{
		subscriptionsMap: cmap.New[types.ID, *subscriptions](),
	}
}

// Subscribe subscribes to the given document.
func (m *PubSub) Subscribe(
	ctx context.Context,
	subscriber string,
	docID types.ID,
) (*Subscription, error) {
	if logging.Enabled(zap.DebugLevel) {
		logging.From(ctx).Debugf(`Subscribe(%s,%s) Start`, docID, subscriber)
	}

	subs := m.subscriptionsMap.Upsert(docID, func(subs *subscriptions, exists bool) *subscriptions {
		if !exists {
			return newSubscriptions(docID)
		}
		return subs
	})

	sub := NewSubscription(subscriber)
	subs.Set(sub)

	if logging.Enabled(zap.DebugLevel) {
		logging.From(ctx).Debugf(`Subscribe(%s,%s) End`, docID, subscriber)
	}
	return sub, nil
}

// Unsubscribe unsubscribes the given subscription from the document.
func (m *PubSub) Unsubscribe(
	ctx context.Context,
	docID types.ID,
	sub *Subscription,
) {
	if logging.Enabled(zap.DebugLevel) {
		logging.From(ctx).Debugf(`Unsubscribe(%s,%s) Start`, docID, sub.Subscriber())
	}

	sub.Close()

	if subs, ok := m.subscriptionsMap.Get(docID); ok {
		subs.Delete(sub.ID())

		m.subscriptionsMap.Delete(docID, func(subs *subscriptions, exists bool) bool {
			return exists && subs.Len() == 0
		})
	}

	if logging.Enabled(zap.DebugLevel) {
		logging.From(ctx).Debugf(`Unsubscribe(%s,%s) End`, docID, sub.Subscriber())
	}
}

// Publish publishes the given event to the subscribers of the event's
// document except the publisher itself.
func (m *PubSub) Publish(
	ctx context.Context,
	publisherID string,
	event DocEvent,
) {
	docID := event.DocumentID

	if logging.Enabled(zap.DebugLevel) {
		logging.From(ctx).Debugf(`Publish(%s,%s) Start`, docID, publisherID)
	}

	if subs, ok := m.subscriptionsMap.Get(docID); ok {
		for _, sub := range subs.Values() {
			if sub.Subscriber() == publisherID {
				continue
			}

			if ok := sub.Publish(event); !ok {
				logging.From(ctx).Warnf(
					`Publish(%s,%s) to %s timeout or closed`,
					docID, publisherID, sub.Subscriber(),
				)
			}
		}
	}

	if logging.Enabled(zap.DebugLevel) {
		logging.From(ctx).Debugf(`Publish(%s,%s) End`, docID, publisherID)
	}
}

// Subscribers returns the subscriber ids of the given document.
func (m *PubSub) Subscribers(docID types.ID) []string {
	subs, ok := m.subscriptionsMap.Get(docID)
	if !ok {
		return nil
	}

	var ids []string
	for _, sub := range subs.Values() {
		ids = append(ids, sub.Subscriber())
	}
	return ids
}
