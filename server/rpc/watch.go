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

package rpc

import (
	gocontext "context"
	gojson "encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/xid"

	"github.com/cowrite-team/cowrite/api/types"
	"github.com/cowrite-team/cowrite/server/backend/sync"
	"github.com/cowrite-team/cowrite/server/documents"
	"github.com/cowrite-team/cowrite/server/logging"
)

const (
	// writeWait is the time allowed to write an event to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// pingPeriod is how often the server pings the peer. Must be less than
	// pongWait.
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// origin checks belong to the proxy in front of this server
		return true
	},
}

// watchDocument upgrades the connection to a websocket and streams document
// events to the peer. Inbound frames are presence refreshes; everything else
// about the document flows through the regular HTTP endpoints.
func (s *Server) watchDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := userFrom(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	key := types.Key(r.PathValue("key"))
	if err := s.authorizer(userID, key.String()); err != nil {
		writeError(ctx, w, err)
		return
	}

	doc, err := documents.FindDocument(ctx, s.backend, key)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.From(ctx).Warnf("upgrade watch connection: %v", err)
		return
	}

	connID := xid.New().String()
	logger := logging.New("watch", logging.NewField("conn", connID))

	sub, err := s.backend.PubSub.Subscribe(ctx, connID, doc.ID)
	if err != nil {
		_ = conn.Close()
		return
	}
	s.backend.Metrics.AddWatchConnections()

	joined := s.backend.Presence.Update(&types.Presence{
		ConnectionID: connID,
		DocumentID:   doc.ID,
		UserID:       userID,
	})
	s.backend.PubSub.Publish(ctx, connID, sync.DocEvent{
		Type:       sync.DocPresenceEvent,
		Publisher:  connID,
		DocumentID: doc.ID,
		Presence:   joined,
	})

	done := make(chan struct{})
	go s.writePump(conn, sub, done, logger)
	s.readPump(conn, connID, userID, doc.ID, logger)

	// the read side has returned; tear everything down
	close(done)
	s.backend.PubSub.Unsubscribe(ctx, doc.ID, sub)
	s.backend.Metrics.RemoveWatchConnections()

	if left := s.backend.Presence.Remove(connID); left != nil {
		s.backend.PubSub.Publish(ctx, connID, sync.DocEvent{
			Type:       sync.DocPresenceClearedEvent,
			Publisher:  connID,
			DocumentID: doc.ID,
			Presence:   left,
		})
	}
	_ = conn.Close()
}

// readPump reads presence refreshes from the peer until the connection
// closes.
func (s *Server) readPump(
	conn *websocket.Conn,
	connID string,
	userID string,
	docID types.ID,
	logger logging.Logger,
) {
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warnf("read watch connection: %v", err)
			}
			return
		}

		update := &types.PresenceUpdate{}
		if err := gojson.Unmarshal(message, update); err != nil {
			logger.Warnf("decode presence update: %v", err)
			continue
		}
		if err := update.Validate(); err != nil {
			logger.Warnf("validate presence update: %v", err)
			continue
		}

		refreshed := s.backend.Presence.Update(&types.Presence{
			ConnectionID:   connID,
			DocumentID:     docID,
			UserID:         userID,
			CursorPosition: update.CursorPosition,
			Selection:      update.Selection,
		})
		s.backend.PubSub.Publish(gocontext.Background(), connID, sync.DocEvent{
			Type:       sync.DocPresenceEvent,
			Publisher:  connID,
			DocumentID: docID,
			Presence:   refreshed,
		})
	}
}

// writePump forwards document events to the peer and keeps the connection
// alive with pings.
func (s *Server) writePump(
	conn *websocket.Conn,
	sub *sync.Subscription,
	done <-chan struct{},
	logger logging.Logger,
) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-sub.Events():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				logger.Warnf("write watch event: %v", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
