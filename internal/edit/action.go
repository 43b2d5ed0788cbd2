// Package edit implements the note edit session: a reversible action model
// over title/content/list-item edits, a bounded undo log with debounced
// batching, and the projection of a note into ordered editor rows.
package edit

import (
	"fmt"

	"github.com/notekeep/notekeep/internal/model"
)

// Field selects which editable text region a location addresses.
type Field int

const (
	FieldTitle Field = iota
	FieldContent
	FieldItem
)

// Loc addresses an editable text region. Item is the actual position of a
// list item and is only meaningful for FieldItem.
type Loc struct {
	Field Field
	Item  int
}

// Focus is a cursor location inside an editable region.
type Focus struct {
	Loc Loc
	Pos int
}

// Buffer is the passive edit surface actions replay against. The session
// implements it; actions never reach past it.
type Buffer interface {
	// Text returns the current text of the addressed region.
	Text(loc Loc) string
	// Replace substitutes the [start,end) span of the addressed region.
	Replace(loc Loc, start, end int, text string)
	// InsertItem inserts a list item at the given actual position, shifting
	// later items by one.
	InsertItem(pos int, content string, checked bool)
	// RemoveItem removes the list item at the given actual position.
	RemoveItem(pos int)
	// SetChecked updates the checked flag of the items at the given actual
	// positions. byUser marks a user-initiated change, which may trigger
	// display-side repositioning; replays always pass false.
	SetChecked(positions []int, checked bool, byUser bool)
	// SwapItems exchanges the items at two actual positions.
	SwapItems(a, b int)
	// Reorder permutes items: the item at actual position i moves to perm[i].
	Reorder(perm []int)
	// SetNote substitutes the whole note snapshot (type conversion).
	SetNote(n model.Note)
	// SetFocus moves the cursor.
	SetFocus(f Focus)
}

// Action is one reversible edit. Apply replays the action against a buffer;
// Invert returns the exact inverse action.
type Action interface {
	Apply(b Buffer)
	Invert() Action
}

// TextChange replaces the [Start,End) span of a region with New; Old is the
// replaced text, so End == Start+len(Old).
type TextChange struct {
	Loc   Loc
	Start int
	End   int
	Old   string
	New   string
}

func (a TextChange) Apply(b Buffer) { b.Replace(a.Loc, a.Start, a.End, a.New) }

func (a TextChange) Invert() Action {
	return TextChange{Loc: a.Loc, Start: a.Start, End: a.Start + len(a.New), Old: a.New, New: a.Old}
}

// merge coalesces a follow-up change into this one when the two spans are
// contiguous in the same region: appended text (next starts where this one's
// new text ends) or backward deletion (next's old text ends where this one
// starts). Returns false when not adjacent.
func (a TextChange) merge(next TextChange) (TextChange, bool) {
	if next.Loc != a.Loc {
		return TextChange{}, false
	}
	if next.Start == a.Start+len(a.New) {
		return TextChange{
			Loc:   a.Loc,
			Start: a.Start,
			End:   a.End + len(next.Old),
			Old:   a.Old + next.Old,
			New:   a.New + next.New,
		}, true
	}
	if next.Start+len(next.Old) == a.Start {
		return TextChange{
			Loc:   a.Loc,
			Start: next.Start,
			End:   next.Start + len(next.Old) + len(a.Old),
			Old:   next.Old + a.Old,
			New:   next.New + a.New,
		}, true
	}
	return TextChange{}, false
}

// ItemAdd inserts a list item at an actual position.
type ItemAdd struct {
	Pos     int
	Content string
	Checked bool
}

func (a ItemAdd) Apply(b Buffer) { b.InsertItem(a.Pos, a.Content, a.Checked) }

func (a ItemAdd) Invert() Action {
	return ItemRemove{Pos: a.Pos, Content: a.Content, Checked: a.Checked}
}

// ItemRemove removes a list item, carrying its content and checked flag so
// the inverse re-insertion lands at the same index with the same state.
type ItemRemove struct {
	Pos     int
	Content string
	Checked bool
}

func (a ItemRemove) Apply(b Buffer) { b.RemoveItem(a.Pos) }

func (a ItemRemove) Invert() Action {
	return ItemAdd{Pos: a.Pos, Content: a.Content, Checked: a.Checked}
}

// ItemCheck flips the checked flag of a set of items. ByUser distinguishes a
// user-initiated check from a programmatic replay; the log clears it before
// storing so undo/redo never re-triggers user-only side effects.
type ItemCheck struct {
	Positions []int
	Checked   bool
	ByUser    bool
}

func (a ItemCheck) Apply(b Buffer) { b.SetChecked(a.Positions, a.Checked, a.ByUser) }

func (a ItemCheck) Invert() Action {
	return ItemCheck{Positions: a.Positions, Checked: !a.Checked, ByUser: a.ByUser}
}

// ItemSwap exchanges two items; it is its own inverse.
type ItemSwap struct {
	A, B int
}

func (a ItemSwap) Apply(b Buffer) { b.SwapItems(a.A, a.B) }

func (a ItemSwap) Invert() Action { return a }

// ItemReorder permutes all items: the item at actual position i moves to
// Perm[i]. The inverse carries the inverse permutation.
type ItemReorder struct {
	Perm []int
}

func (a ItemReorder) Apply(b Buffer) { b.Reorder(a.Perm) }

func (a ItemReorder) Invert() Action {
	inv := make([]int, len(a.Perm))
	for i, p := range a.Perm {
		inv[p] = i
	}
	return ItemReorder{Perm: inv}
}

// NoteConvert substitutes the full note snapshot. Text/list conversion is
// regenerative, so no minimal diff is attempted.
type NoteConvert struct {
	Before model.Note
	After  model.Note
}

func (a NoteConvert) Apply(b Buffer) { b.SetNote(a.After) }

func (a NoteConvert) Invert() Action { return NoteConvert{Before: a.After, After: a.Before} }

// FocusChange records where the cursor should land after redo (After) and
// after undo (Before). It mutates no data.
type FocusChange struct {
	Before Focus
	After  Focus
}

func (a FocusChange) Apply(b Buffer) { b.SetFocus(a.After) }

func (a FocusChange) Invert() Action { return FocusChange{Before: a.After, After: a.Before} }

// Batch groups actions into one logical undo step. The inverse applies the
// member inverses in reverse order.
type Batch struct {
	Actions []Action
}

func (a Batch) Apply(b Buffer) {
	for _, act := range a.Actions {
		act.Apply(b)
	}
}

func (a Batch) Invert() Action {
	inv := make([]Action, len(a.Actions))
	for i, act := range a.Actions {
		inv[len(a.Actions)-1-i] = act.Invert()
	}
	return Batch{Actions: inv}
}

// stripUser clears ByUser flags so stored actions replay without
// user-only side effects.
func stripUser(a Action) Action {
	switch act := a.(type) {
	case ItemCheck:
		act.ByUser = false
		return act
	case Batch:
		for i, sub := range act.Actions {
			act.Actions[i] = stripUser(sub)
		}
		return act
	default:
		return a
	}
}

// checkSpan panics when a replace span does not fit the current text.
// Span violations mean a corrupted log and are programming errors.
func checkSpan(text string, start, end int) {
	if start < 0 || end < start || end > len(text) {
		panic(fmt.Sprintf("edit: span [%d,%d) out of range for text of len %d", start, end, len(text)))
	}
}
