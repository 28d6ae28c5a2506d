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
	"net/http"

	"github.com/cowrite-team/cowrite/pkg/errors"
)

// userHeader carries the identity asserted by the authentication layer in
// front of this server. The server trusts it as-is.
const userHeader = "X-Cowrite-User"

// ErrUnauthenticated is returned when a request carries no user identity.
var ErrUnauthenticated = errors.PermissionDenied(
	"request has no user identity",
).WithCode("ErrUnauthenticated")

// Authorizer decides whether the given user may act on the document of the
// given key. Authentication itself happens outside this server; the default
// authorizer admits every identified user.
type Authorizer func(userID string, docKey string) error

func allowAll(string, string) error {
	return nil
}

// userFrom extracts the user identity from the request.
func userFrom(r *http.Request) (string, error) {
	userID := r.Header.Get(userHeader)
	if userID == "" {
		return "", ErrUnauthenticated
	}
	return userID, nil
}
