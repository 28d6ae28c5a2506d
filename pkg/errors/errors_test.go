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

package errors_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cowrite-team/cowrite/pkg/errors"
)

func TestStatusOf(t *testing.T) {
	t.Run("status of direct error test", func(t *testing.T) {
		err := errors.NotFound("document not found")
		assert.Equal(t, errors.ErrCodeNotFound, errors.StatusOf(err))
	})

	t.Run("status of wrapped error test", func(t *testing.T) {
		err := fmt.Errorf("submit operation: %w", errors.FailedPrecond("conflict"))
		assert.Equal(t, errors.ErrCodeFailedPrecondition, errors.StatusOf(err))
	})

	t.Run("status of plain error test", func(t *testing.T) {
		assert.Equal(t, errors.StatusCode(0), errors.StatusOf(fmt.Errorf("plain")))
	})

	t.Run("status of nil test", func(t *testing.T) {
		assert.Equal(t, errors.ErrCodeOK, errors.StatusOf(nil))
	})
}

func TestCodeOf(t *testing.T) {
	err := errors.InvalidArgument("position out of range").WithCode("ErrPositionOutOfRange")
	assert.Equal(t, "ErrPositionOutOfRange", errors.CodeOf(err))
	assert.Equal(t, "ErrPositionOutOfRange", errors.CodeOf(fmt.Errorf("wrap: %w", err)))
	assert.Equal(t, "", errors.CodeOf(fmt.Errorf("plain")))
}
