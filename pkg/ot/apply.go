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

package ot

// Apply applies the given operation to the content and returns the new
// content. The operation is validated against the content first; a validated
// application is deterministic.
func Apply(content string, op *Operation) (string, error) {
	if err := op.Validate(len(content)); err != nil {
		return "", err
	}

	if op.IsNoop() {
		return content, nil
	}

	switch op.Type {
	case Insert:
		return content[:op.Position] + op.Content + content[op.Position:], nil
	case Delete:
		return content[:op.Position] + content[op.Position+op.Span():], nil
	case Replace:
		return content[:op.Position] + op.Content + content[op.Position+op.Span():], nil
	}

	return "", ErrInvalidOperationType
}

// ApplyAll reduces the given operations over the content left to right.
// Replaying a version-ordered operation log from an empty string reproduces
// the authoritative content exactly.
func ApplyAll(content string, ops []*Operation) (string, error) {
	var err error
	for _, op := range ops {
		if content, err = Apply(content, op); err != nil {
			return "", err
		}
	}
	return content, nil
}
