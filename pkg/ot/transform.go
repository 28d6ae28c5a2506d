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

// Priority is the tie-break used when two operations target the exact same
// position with no natural ordering. It decides whose content goes first.
type Priority string

// Below are the priorities of transformation.
const (
	// PriorityLocal gives precedence to the operation being transformed.
	PriorityLocal Priority = "local"

	// PriorityRemote gives precedence to the already-applied operation.
	// The reconciler transforms late-arriving operations with this priority
	// so that committed operations take precedence.
	PriorityRemote Priority = "remote"
)

// Transform rewrites pending so that it can be applied after applied with a
// result consistent with "both edits happened". applied must already be part
// of the authoritative content. The returned operation is a copy; pending is
// never mutated.
func Transform(applied, pending *Operation, priority Priority) *Operation {
	transformed := pending.DeepCopy()

	switch applied.Type {
	case Insert:
		transformAgainstInsert(applied, transformed, priority)
	case Delete:
		transformAgainstDelete(applied, transformed)
	case Replace:
		transformAgainstReplace(applied, transformed, priority)
	}

	return transformed
}

// TransformAll folds Transform over an ordered list of prior operations.
// This is how a client's pending operation is brought up to date against
// everything the server accepted while the client was still composing it.
// The result is marked conflicted if any prior operation was folded in.
func TransformAll(pending *Operation, prior []*Operation, priority Priority) *Operation {
	transformed := pending.DeepCopy()
	for _, applied := range prior {
		transformed = Transform(applied, transformed, priority)
	}
	if len(prior) > 0 {
		transformed.Conflicted = true
	}
	return transformed
}

// transformAgainstInsert shifts pending for an insert that has already been
// applied.
func transformAgainstInsert(applied, pending *Operation, priority Priority) {
	shift := len(applied.Content)

	switch pending.Type {
	case Insert:
		// Equal positions have no natural ordering; PriorityRemote puts the
		// applied insert's content first.
		if applied.Position < pending.Position ||
			(applied.Position == pending.Position && priority == PriorityRemote) {
			pending.Position += shift
		}

	case Delete, Replace:
		span := pending.Span()
		switch {
		case applied.Position <= pending.Position:
			pending.Position += shift
		case applied.Position >= pending.Position+span:
			// Insert strictly after the span; nothing moves.
		default:
			// The insert landed strictly inside the span the pending
			// operation is about to remove. A pending delete swallows the
			// inserted text so the removed region stays contiguous; splitting
			// the delete around the insert is not expressible as a single
			// log entry. A pending replace keeps its own span, so the
			// position stays put and revalidation bounds it.
			if pending.Type == Delete && pending.Content != "" {
				offset := applied.Position - pending.Position
				pending.Content = pending.Content[:offset] + applied.Content + pending.Content[offset:]
				pending.Conflicted = true
			}
		}
	}
}

// transformAgainstDelete shifts pending for a delete that has already been
// applied.
func transformAgainstDelete(applied, pending *Operation) {
	span := applied.Span()
	if span == 0 {
		return
	}
	appliedEnd := applied.Position + span

	switch pending.Type {
	case Insert:
		switch {
		case appliedEnd <= pending.Position:
			pending.Position -= span
		case applied.Position < pending.Position:
			// The insertion point was consumed by the deletion; re-anchor it
			// to the start of the removed range so the insertion survives.
			pending.Position = applied.Position
			pending.Conflicted = true
		}

	case Delete:
		pendingEnd := pending.Position + pending.Span()
		switch {
		case appliedEnd <= pending.Position:
			pending.Position -= span
		case pendingEnd <= applied.Position:
			// Entirely before the deletion; nothing moves.
		default:
			// Overlapping concurrent deletes: keep only the residual portion
			// of the pending delete's target so no character is deleted
			// twice or left behind by accident. A content-less delete spans a
			// single character, so any overlap covers it whole.
			prefix := max(0, applied.Position-pending.Position)
			suffix := max(0, pendingEnd-appliedEnd)

			residual := ""
			if pending.Content != "" {
				residual = pending.Content[:prefix] +
					pending.Content[len(pending.Content)-suffix:]
			}
			pending.Content = residual
			pending.Position = min(pending.Position, applied.Position)
			pending.Conflicted = true
			if residual == "" {
				pending.Noop = true
			}
		}

	case Replace:
		pendingEnd := pending.Position + pending.Span()
		switch {
		case appliedEnd <= pending.Position:
			pending.Position -= span
		case pendingEnd <= applied.Position:
			// Entirely before the deletion; nothing moves.
		case pending.Position >= applied.Position:
			// The replace started inside the removed range; re-anchor it.
			// Revalidation against the current content decides whether the
			// span still fits.
			pending.Position = applied.Position
			pending.Conflicted = true
		}
	}
}

// transformAgainstReplace handles a replace that has already been applied.
// A replace removes exactly as many characters as it inserts, so it never
// shifts positions; only an overlapping pending replace needs resolution.
func transformAgainstReplace(applied, pending *Operation, priority Priority) {
	if pending.Type != Replace {
		return
	}

	appliedEnd := applied.Position + applied.Span()
	pendingEnd := pending.Position + pending.Span()
	if applied.Position >= pendingEnd || pending.Position >= appliedEnd {
		return
	}

	// Overlapping replacements are resolved outright; the loser's content is
	// discarded rather than merged.
	if priority == PriorityRemote {
		pending.Content = ""
		pending.Conflicted = true
		pending.Noop = true
	}
}
