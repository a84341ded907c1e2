// Package history implements a bounded undo/redo journal of deep snapshots,
// used for batch-edited collaborative state such as budget tables.
package history

// DefaultDepth is the default stack bound.
const DefaultDepth = 20

// History keeps up to depth snapshots of T. Snapshots are taken through the
// caller-supplied clone so stack entries never alias live state.
type History[T any] struct {
	depth int
	clone func(T) T
	undo  []T
	redo  []T
}

// New returns an empty history. A non-positive depth falls back to
// DefaultDepth. clone must produce a deep copy.
func New[T any](depth int, clone func(T) T) *History[T] {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &History[T]{depth: depth, clone: clone}
}

// Push records current as an undo point. Pushing beyond the bound evicts the
// oldest snapshot. A new edit invalidates the redo branch, so the redo stack
// is cleared.
func (h *History[T]) Push(current T) {
	h.undo = append(h.undo, h.clone(current))
	if len(h.undo) > h.depth {
		h.undo = h.undo[len(h.undo)-h.depth:]
	}
	h.redo = nil
}

// Undo pops the most recent undo snapshot, pushes current onto the redo
// stack and returns the popped snapshot. Reports false on an empty stack,
// leaving everything untouched.
func (h *History[T]) Undo(current T) (T, bool) {
	if len(h.undo) == 0 {
		var zero T
		return zero, false
	}
	restored := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, h.clone(current))
	return restored, true
}

// Redo is the mirror of Undo.
func (h *History[T]) Redo(current T) (T, bool) {
	if len(h.redo) == 0 {
		var zero T
		return zero, false
	}
	restored := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, h.clone(current))
	return restored, true
}

// UndoLen returns the undo stack depth.
func (h *History[T]) UndoLen() int { return len(h.undo) }

// RedoLen returns the redo stack depth.
func (h *History[T]) RedoLen() int { return len(h.redo) }

// CanUndo reports whether an undo point exists.
func (h *History[T]) CanUndo() bool { return len(h.undo) > 0 }

// CanRedo reports whether a redo point exists.
func (h *History[T]) CanRedo() bool { return len(h.redo) > 0 }
