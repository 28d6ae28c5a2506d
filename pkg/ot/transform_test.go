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

package ot_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cowrite-team/cowrite/pkg/ot"
)

// applyBoth applies a then the transform of b against a.
func applyBoth(t *testing.T, base string, a, b *ot.Operation, priority ot.Priority) string {
	t.Helper()

	content, err := ot.Apply(base, a)
	assert.NoError(t, err)

	content, err = ot.Apply(content, ot.Transform(a, b, priority))
	assert.NoError(t, err)
	return content
}

func TestTransformInsertInsert(t *testing.T) {
	t.Run("insert before insert shifts test", func(t *testing.T) {
		a := ot.New("d1", "u1", ot.Insert, 2, "ab", 0)
		b := ot.New("d1", "u2", ot.Insert, 4, "cd", 0)

		transformed := ot.Transform(a, b, ot.PriorityRemote)
		assert.Equal(t, 6, transformed.Position)
		// The pending operation is never mutated.
		assert.Equal(t, 4, b.Position)
	})

	t.Run("insert after insert does not shift test", func(t *testing.T) {
		a := ot.New("d1", "u1", ot.Insert, 6, "Beautiful ", 0)
		b := ot.New("d1", "u2", ot.Insert, 5, " ", 0)

		transformed := ot.Transform(a, b, ot.PriorityRemote)
		assert.Equal(t, 5, transformed.Position)
	})

	t.Run("same position tie-break test", func(t *testing.T) {
		a := ot.New("d1", "u1", ot.Insert, 5, "x", 0)
		b := ot.New("d1", "u2", ot.Insert, 5, "y", 0)

		// Remote priority puts the applied insert's content first.
		assert.Equal(t, 6, ot.Transform(a, b, ot.PriorityRemote).Position)
		assert.Equal(t, 5, ot.Transform(a, b, ot.PriorityLocal).Position)
	})

	t.Run("convergence of same-position inserts test", func(t *testing.T) {
		base := "Hello"
		a := ot.New("d1", "u1", ot.Insert, 5, "x", 0)
		b := ot.New("d1", "u2", ot.Insert, 5, "y", 0)

		first := applyBoth(t, base, a, b, ot.PriorityRemote)
		second := applyBoth(t, base, b, a, ot.PriorityLocal)
		assert.Equal(t, first, second)
		assert.Equal(t, "Helloxy", first)
	})
}

func TestTransformInsertDelete(t *testing.T) {
	t.Run("insert before delete shifts test", func(t *testing.T) {
		a := ot.New("d1", "u1", ot.Insert, 1, "zz", 0)
		b := ot.New("d1", "u2", ot.Delete, 3, "de", 0)

		transformed := ot.Transform(a, b, ot.PriorityRemote)
		assert.Equal(t, 5, transformed.Position)
	})

	t.Run("insert after delete span does not shift test", func(t *testing.T) {
		a := ot.New("d1", "u1", ot.Insert, 7, "zz", 0)
		b := ot.New("d1", "u2", ot.Delete, 3, "de", 0)

		transformed := ot.Transform(a, b, ot.PriorityRemote)
		assert.Equal(t, 3, transformed.Position)
		assert.Equal(t, "de", transformed.Content)
	})

	t.Run("insert inside delete span is swallowed test", func(t *testing.T) {
		// base: XXXabcdYY, the insert lands between b and c.
		base := "XXXabcdYY"
		a := ot.New("d1", "u1", ot.Insert, 5, "xy", 0)
		b := ot.New("d1", "u2", ot.Delete, 3, "abcd", 0)

		transformed := ot.Transform(a, b, ot.PriorityRemote)
		assert.Equal(t, 3, transformed.Position)
		assert.Equal(t, "abxycd", transformed.Content)
		assert.True(t, transformed.Conflicted)

		content := applyBoth(t, base, a, b, ot.PriorityRemote)
		assert.Equal(t, "XXXYY", content)
	})
}

func TestTransformDeleteInsert(t *testing.T) {
	t.Run("delete before insert shifts back test", func(t *testing.T) {
		a := ot.New("d1", "u1", ot.Delete, 0, "XX", 0)
		b := ot.New("d1", "u2", ot.Insert, 10, "zz", 0)

		transformed := ot.Transform(a, b, ot.PriorityRemote)
		assert.Equal(t, 8, transformed.Position)
	})

	t.Run("delete after insert does not shift test", func(t *testing.T) {
		a := ot.New("d1", "u1", ot.Delete, 5, "cd", 0)
		b := ot.New("d1", "u2", ot.Insert, 3, "zz", 0)

		transformed := ot.Transform(a, b, ot.PriorityRemote)
		assert.Equal(t, 3, transformed.Position)
	})

	t.Run("insertion point inside deleted span is clamped test", func(t *testing.T) {
		base := "XXXabcdYY"
		a := ot.New("d1", "u1", ot.Delete, 3, "abcd", 0)
		b := ot.New("d1", "u2", ot.Insert, 5, "zz", 0)

		transformed := ot.Transform(a, b, ot.PriorityRemote)
		assert.Equal(t, 3, transformed.Position)
		assert.True(t, transformed.Conflicted)

		content := applyBoth(t, base, a, b, ot.PriorityRemote)
		assert.Equal(t, "XXXzzYY", content)
	})
}

func TestTransformDeleteDelete(t *testing.T) {
	t.Run("non-overlapping deletes shift test", func(t *testing.T) {
		a := ot.New("d1", "u1", ot.Delete, 0, "XX", 0)
		b := ot.New("d1", "u2", ot.Delete, 10, "zz", 0)

		transformed := ot.Transform(a, b, ot.PriorityRemote)
		assert.Equal(t, 8, transformed.Position)
		assert.Equal(t, "zz", transformed.Content)
	})

	t.Run("overlapping deletes keep the residual test", func(t *testing.T) {
		base := "0123456789"
		a := ot.New("d1", "u1", ot.Delete, 3, "3456", 0)
		b := ot.New("d1", "u2", ot.Delete, 5, "5678", 0)

		transformed := ot.Transform(a, b, ot.PriorityRemote)
		assert.Equal(t, 3, transformed.Position)
		assert.Equal(t, "78", transformed.Content)
		assert.True(t, transformed.Conflicted)

		first := applyBoth(t, base, a, b, ot.PriorityRemote)
		second := applyBoth(t, base, b, a, ot.PriorityLocal)
		assert.Equal(t, "0129", first)
		assert.Equal(t, first, second)
	})

	t.Run("fully covered delete becomes noop test", func(t *testing.T) {
		base := "0123456789"
		a := ot.New("d1", "u1", ot.Delete, 2, "2345", 0)
		b := ot.New("d1", "u2", ot.Delete, 3, "34", 0)

		transformed := ot.Transform(a, b, ot.PriorityRemote)
		assert.True(t, transformed.IsNoop())
		assert.Equal(t, 0, transformed.Span())

		content := applyBoth(t, base, a, b, ot.PriorityRemote)
		assert.Equal(t, "016789", content)
	})
}

func TestTransformReplace(t *testing.T) {
	t.Run("replace never shifts positions test", func(t *testing.T) {
		a := ot.New("d1", "u1", ot.Replace, 0, "AB", 0)
		b := ot.New("d1", "u2", ot.Insert, 5, "zz", 0)

		transformed := ot.Transform(a, b, ot.PriorityRemote)
		assert.Equal(t, 5, transformed.Position)
	})

	t.Run("overlapping replaces resolved by priority test", func(t *testing.T) {
		a := ot.New("d1", "u1", ot.Replace, 2, "XY", 0)
		b := ot.New("d1", "u2", ot.Replace, 3, "ZW", 0)

		// The applied replace wins under remote priority; the loser's content
		// is discarded rather than merged.
		lost := ot.Transform(a, b, ot.PriorityRemote)
		assert.True(t, lost.IsNoop())
		assert.True(t, lost.Conflicted)

		won := ot.Transform(a, b, ot.PriorityLocal)
		assert.Equal(t, "ZW", won.Content)
		assert.Equal(t, 3, won.Position)
	})

	t.Run("disjoint replaces untouched test", func(t *testing.T) {
		a := ot.New("d1", "u1", ot.Replace, 0, "XY", 0)
		b := ot.New("d1", "u2", ot.Replace, 4, "ZW", 0)

		transformed := ot.Transform(a, b, ot.PriorityRemote)
		assert.Equal(t, 4, transformed.Position)
		assert.Equal(t, "ZW", transformed.Content)
		assert.False(t, transformed.Conflicted)
	})

	t.Run("delete before replace shifts back test", func(t *testing.T) {
		a := ot.New("d1", "u1", ot.Delete, 0, "ab", 0)
		b := ot.New("d1", "u2", ot.Replace, 5, "ZW", 0)

		transformed := ot.Transform(a, b, ot.PriorityRemote)
		assert.Equal(t, 3, transformed.Position)
	})
}

func TestTransformAll(t *testing.T) {
	t.Run("folds over prior operations in order test", func(t *testing.T) {
		// Two committed inserts before the pending one.
		prior := []*ot.Operation{
			ot.New("d1", "u1", ot.Insert, 0, "ab", 0),
			ot.New("d1", "u1", ot.Insert, 0, "cd", 1),
		}
		pending := ot.New("d1", "u2", ot.Insert, 1, "z", 0)

		transformed := ot.TransformAll(pending, prior, ot.PriorityRemote)
		assert.Equal(t, 5, transformed.Position)
		assert.True(t, transformed.Conflicted)
	})

	t.Run("empty history leaves operation untouched test", func(t *testing.T) {
		pending := ot.New("d1", "u2", ot.Insert, 1, "z", 0)
		transformed := ot.TransformAll(pending, nil, ot.PriorityRemote)
		assert.Equal(t, 1, transformed.Position)
		assert.False(t, transformed.Conflicted)
	})

	t.Run("content-less delete survives unrelated history test", func(t *testing.T) {
		base := "abcdef"
		prior := ot.New("d1", "u1", ot.Insert, 5, "X", 0)

		content, err := ot.Apply(base, prior)
		assert.NoError(t, err)
		assert.Equal(t, "abcdeXf", content)

		// A span-1 delete at position 0 was not touched by the insert at 5;
		// it must still remove its character after transformation.
		pending := ot.New("d1", "u2", ot.Delete, 0, "", 0)
		transformed := ot.TransformAll(pending, []*ot.Operation{prior}, ot.PriorityRemote)
		assert.True(t, transformed.Conflicted)
		assert.False(t, transformed.IsNoop())
		assert.Equal(t, 1, transformed.Span())

		content, err = ot.Apply(content, transformed)
		assert.NoError(t, err)
		assert.Equal(t, "bcdeXf", content)
	})

	t.Run("content-less delete covered by prior delete is noop test", func(t *testing.T) {
		prior := ot.New("d1", "u1", ot.Delete, 0, "abcd", 0)
		pending := ot.New("d1", "u2", ot.Delete, 2, "", 0)

		transformed := ot.TransformAll(pending, []*ot.Operation{prior}, ot.PriorityRemote)
		assert.True(t, transformed.IsNoop())
		assert.Equal(t, 0, transformed.Span())
	})

	t.Run("hello world scenario test", func(t *testing.T) {
		base := "Hello World"
		opA := ot.New("d1", "user-a", ot.Insert, 6, "Beautiful ", 0)

		content, err := ot.Apply(base, opA)
		assert.NoError(t, err)
		assert.Equal(t, "Hello Beautiful World", content)

		opB := ot.New("d1", "user-b", ot.Insert, 5, " ", 0)
		transformed := ot.TransformAll(opB, []*ot.Operation{opA}, ot.PriorityRemote)
		assert.Equal(t, 5, transformed.Position)
		assert.True(t, transformed.Conflicted)

		content, err = ot.Apply(content, transformed)
		assert.NoError(t, err)
		assert.Equal(t, "Hello  Beautiful World", content)
	})
}
