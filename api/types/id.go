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

// Package types provides the types shared between the server and its clients.
package types

import (
	"github.com/rs/xid"

	"github.com/cowrite-team/cowrite/pkg/errors"
	"github.com/cowrite-team/cowrite/pkg/validation"
)

// ErrInvalidID is returned when the given ID is not valid.
var ErrInvalidID = errors.InvalidArgument("invalid ID").WithCode("ErrInvalidID")

// ErrInvalidKey is returned when the given document key is not valid.
var ErrInvalidKey = errors.InvalidArgument("invalid document key").WithCode("ErrInvalidKey")

// ID is the unique identifier of a stored entity.
type ID string

// NewID creates a new random ID.
func NewID() ID {
	return ID(xid.New().String())
}

// String returns the string representation of the ID.
func (id ID) String() string {
	return string(id)
}

// Validate returns an error if the ID is not well formed.
func (id ID) Validate() error {
	if _, err := xid.FromString(id.String()); err != nil {
		return ErrInvalidID
	}
	return nil
}

// Key is the human-facing key of a document.
type Key string

// String returns the string representation of the key.
func (k Key) String() string {
	return string(k)
}

// Validate returns an error if the key is not a valid slug.
func (k Key) Validate() error {
	if k == "" {
		return ErrInvalidKey
	}
	if err := validation.ValidateValue(k.String(), "slug"); err != nil {
		return ErrInvalidKey
	}
	return nil
}
