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

// Package rpc provides the HTTP API of the server.
package rpc

import (
	"context"
	gojson "encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/xid"

	pkgerrors "github.com/cowrite-team/cowrite/pkg/errors"

	"github.com/cowrite-team/cowrite/api/types"
	"github.com/cowrite-team/cowrite/server/backend"
	"github.com/cowrite-team/cowrite/server/documents"
	"github.com/cowrite-team/cowrite/server/logging"
)

// Server is an HTTP server that processes the request from the client.
type Server struct {
	conf       *Config
	backend    *backend.Backend
	authorizer Authorizer
	httpServer *http.Server
}

// NewServer creates a new instance of Server.
func NewServer(conf *Config, be *backend.Backend, authorizer Authorizer) (*Server, error) {
	if authorizer == nil {
		authorizer = allowAll
	}

	s := &Server{
		conf:       conf,
		backend:    be,
		authorizer: authorizer,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/documents", s.createDocument)
	mux.HandleFunc("GET /v1/documents/{key}", s.findDocument)
	mux.HandleFunc("POST /v1/documents/{key}/operations", s.submitOperation)
	mux.HandleFunc("GET /v1/documents/{key}/sync", s.syncSince)
	mux.HandleFunc("GET /v1/documents/{key}/presences", s.listPresences)
	mux.HandleFunc("GET /v1/documents/{key}/watch", s.watchDocument)
	mux.HandleFunc("GET /healthz", s.health)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", conf.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// Start starts this server by opening a new listener.
func (s *Server) Start() error {
	go func() {
		logging.DefaultLogger().Infof("serving rpc on %d", s.conf.Port)
		if err := s.httpServer.ListenAndServe(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				logging.DefaultLogger().Error("HTTP server ListenAndServe: %v", err)
			}
		}
	}()
	return nil
}

// Shutdown shuts down this server.
func (s *Server) Shutdown(graceful bool) {
	if graceful {
		if err := s.httpServer.Shutdown(context.Background()); err != nil {
			logging.DefaultLogger().Error("HTTP server Shutdown: %v", err)
		}
		return
	}

	if err := s.httpServer.Close(); err != nil {
		logging.DefaultLogger().Error("HTTP server Close: %v", err)
	}
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) createDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := userFrom(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	req := &types.CreateDocumentRequest{}
	if err := gojson.NewDecoder(r.Body).Decode(req); err != nil {
		writeError(ctx, w, types.ErrInvalidKey)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := s.authorizer(userID, req.Key.String()); err != nil {
		writeError(ctx, w, err)
		return
	}

	doc, err := documents.CreateDocument(ctx, s.backend, req.Key)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusCreated, doc)
}

func (s *Server) findDocument(w http.ResponseWriter, r *http.Request) {
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

	writeJSON(ctx, w, http.StatusOK, doc)
}

func (s *Server) submitOperation(w http.ResponseWriter, r *http.Request) {
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

	req := &types.SubmitOperationRequest{}
	if err := gojson.NewDecoder(r.Body).Decode(req); err != nil {
		writeError(ctx, w, types.ErrInvalidOperationShape)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(ctx, w, err)
		return
	}
	if req.Operation.ClientVersion != req.ClientVersion {
		writeError(ctx, w, types.ErrInvalidOperationShape)
		return
	}

	doc, err := documents.FindDocument(ctx, s.backend, key)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	op := req.Operation
	if op.ID == "" {
		op.ID = xid.New().String()
	}
	op.DocumentID = doc.ID.String()
	op.UserID = userID

	// reconciler-owned fields; never trusted from the wire
	op.ServerVersion = 0
	op.Conflicted = false
	op.Noop = false

	res, err := documents.SubmitOperation(ctx, s.backend, doc.ID, op)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, res)
}

func (s *Server) syncSince(w http.ResponseWriter, r *http.Request) {
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

	fromVersion := int64(0)
	if raw := r.URL.Query().Get("from"); raw != "" {
		fromVersion, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || fromVersion < 0 {
			writeError(ctx, w, pkgerrors.InvalidArgument(
				"from must be a non-negative integer",
			).WithCode("ErrInvalidSyncVersion"))
			return
		}
	}

	doc, err := documents.FindDocument(ctx, s.backend, key)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	res, err := documents.SyncSince(ctx, s.backend, doc.ID, fromVersion)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, res)
}

func (s *Server) listPresences(w http.ResponseWriter, r *http.Request) {
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

	writeJSON(ctx, w, http.StatusOK, s.backend.Presence.List(doc.ID))
}

// writeJSON writes the given value as a JSON response.
func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := gojson.NewEncoder(w).Encode(v); err != nil {
		logging.From(ctx).Error(err)
	}
}

// errorResponse is the JSON shape of an error response.
type errorResponse struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// writeError maps the error's status to an HTTP status code and writes the
// error as a JSON response.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch pkgerrors.StatusOf(err) {
	case pkgerrors.ErrCodeInvalidArgument:
		status = http.StatusBadRequest
	case pkgerrors.ErrCodeNotFound:
		status = http.StatusNotFound
	case pkgerrors.ErrCodeAlreadyExists, pkgerrors.ErrCodeFailedPrecondition:
		status = http.StatusConflict
	case pkgerrors.ErrCodePermissionDenied:
		status = http.StatusForbidden
	case pkgerrors.ErrCodeUnavailable:
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		logging.From(ctx).Error(err)
	}

	writeJSON(ctx, w, status, &errorResponse{
		Code:    pkgerrors.CodeOf(err),
		Message: err.Error(),
	})
}
