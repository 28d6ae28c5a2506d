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

package errors

// StatusCode represents the status of an error. It is used to classify
// errors so transport layers can map them to their own status codes.
type StatusCode int

// Below are the status codes used by this package.
const (
	// ErrCodeOK means no error.
	ErrCodeOK StatusCode = iota

	// ErrCodeInvalidArgument means the client provided an invalid input.
	ErrCodeInvalidArgument

	// ErrCodeNotFound means a requested resource does not exist.
	ErrCodeNotFound

	// ErrCodeAlreadyExists means a resource the client tried to create
	// already exists.
	ErrCodeAlreadyExists

	// ErrCodePermissionDenied means the caller lacks necessary permissions.
	ErrCodePermissionDenied

	// ErrCodeFailedPrecondition means the system is not in the state
	// required for the operation.
	ErrCodeFailedPrecondition

	// ErrCodeUnavailable means the service is temporarily unavailable and
	// the operation can be retried.
	ErrCodeUnavailable

	// ErrCodeInternal means an unexpected server-side failure.
	ErrCodeInternal
)

// String returns the string representation of the status code.
func (c StatusCode) String() string {
	switch c {
	case ErrCodeOK:
		return "OK"
	case ErrCodeInvalidArgument:
		return "InvalidArgument"
	case ErrCodeNotFound:
		return "NotFound"
	case ErrCodeAlreadyExists:
		return "AlreadyExists"
	case ErrCodePermissionDenied:
		return "PermissionDenied"
	case ErrCodeFailedPrecondition:
		return "FailedPrecondition"
	case ErrCodeUnavailable:
		return "Unavailable"
	case ErrCodeInternal:
		return "Internal"
	default:
		return "Unknown"
	}
}
