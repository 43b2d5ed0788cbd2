package edit

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/notekeep/notekeep/internal/model"
	"github.com/notekeep/notekeep/internal/repository"
)

// SessionConfig tunes a session's undo log and clock.
type SessionConfig struct {
	MaxUndo    int
	BatchDelay time.Duration
	Clock      func() time.Time
}

// Bundle is a key-value store for suspending and restoring in-memory session
// state across a host lifecycle. The session never depends on the host.
type Bundle interface {
	Put(key string, value []byte)
	Get(key string) ([]byte, bool)
}

// Session is the in-memory edit state of one open note: the note snapshot,
// its labels, the canonical list-item projection and the undo log. All
// mutation happens on a single logical sequence per open note; the session
// is not safe for concurrent use.
type Session struct {
	ID uuid.UUID

	notes      repository.NoteRepository
	labelsRepo repository.LabelRepository
	log        *Log
	clock      func() time.Time
	prefs      Prefs

	note   model.Note
	labels []model.Label
	items  []model.ListItem // canonical order; items[i].ActualPos == i
	focus  Focus
	dirty  bool
	isNew  bool
}

// NewSession creates an unopened session over the given stores.
func NewSession(notes repository.NoteRepository, labels repository.LabelRepository, prefs Prefs, cfg SessionConfig) (*Session, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Session{
		ID:         id,
		notes:      notes,
		labelsRepo: labels,
		log:        NewLog(cfg.MaxUndo, cfg.BatchDelay),
		clock:      clock,
		prefs:      prefs,
	}, nil
}

// Open loads the note and its labels. A zero noteID creates a fresh blank
// text note, persisted immediately so it has a stable id.
func (s *Session) Open(ctx context.Context, noteID int64) error {
	if noteID == 0 {
		now := s.clock()
		n := model.Note{
			Type:     model.TypeText,
			Metadata: model.BlankMetadata(),
			Added:    now,
			Modified: now,
			Status:   model.StatusActive,
			Pinned:   model.Unpinned,
		}
		id, err := s.notes.Insert(ctx, &n)
		if err != nil {
			return fmt.Errorf("create note: %w", err)
		}
		n.ID = id
		s.note = n
		s.isNew = true
	} else {
		n, err := s.notes.Get(ctx, noteID)
		if err != nil {
			return fmt.Errorf("open note %d: %w", noteID, err)
		}
		s.note = *n
		labelIDs, err := s.notes.GetLabelIDs(ctx, noteID)
		if err != nil {
			return fmt.Errorf("open note %d: %w", noteID, err)
		}
		s.labels = s.labels[:0]
		for _, lid := range labelIDs {
			l, err := s.labelsRepo.Get(ctx, lid)
			if err != nil {
				return fmt.Errorf("open note %d: %w", noteID, err)
			}
			s.labels = append(s.labels, *l)
		}
	}
	s.items = s.note.ListItems()
	s.focus = Focus{Loc: Loc{Field: FieldTitle}, Pos: len(s.note.Title)}
	return nil
}

// Rows returns the current editor row projection.
func (s *Session) Rows() []Row {
	return BuildRows(s.note, s.items, s.labels, s.prefs)
}

// CurrentFocus returns the cursor location.
func (s *Session) CurrentFocus() Focus { return s.focus }

// Note returns the note as it would be persisted right now.
func (s *Session) Note() model.Note { return s.snapshot() }

// Items returns the canonical list-item projection.
func (s *Session) Items() []model.ListItem {
	out := make([]model.ListItem, len(s.items))
	copy(out, s.items)
	return out
}

// Dirty reports whether there are unsaved changes.
func (s *Session) Dirty() bool { return s.dirty }

// CanUndo reports whether an undo step is available.
func (s *Session) CanUndo() bool { return s.log.CanUndo() }

// CanRedo reports whether a redo step is available.
func (s *Session) CanRedo() bool { return s.log.CanRedo() }

func (s *Session) snapshot() model.Note {
	n := s.note
	if n.Type == model.TypeList {
		n = n.WithListItems(s.items)
	}
	return n
}

// ---- Buffer implementation (passive sink for actions) ----

// Text returns the current text of the addressed region.
func (s *Session) Text(loc Loc) string {
	switch loc.Field {
	case FieldTitle:
		return s.note.Title
	case FieldContent:
		return s.note.Content
	default:
		return s.items[loc.Item].Content
	}
}

// Replace substitutes the [start,end) span of the addressed region.
func (s *Session) Replace(loc Loc, start, end int, text string) {
	cur := s.Text(loc)
	checkSpan(cur, start, end)
	out := cur[:start] + text + cur[end:]
	switch loc.Field {
	case FieldTitle:
		s.note.Title = out
	case FieldContent:
		s.note.Content = out
	default:
		s.items[loc.Item].Content = out
	}
	s.dirty = true
}

// InsertItem inserts a list item at pos, shifting later items by one.
func (s *Session) InsertItem(pos int, content string, checked bool) {
	s.items = append(s.items, model.ListItem{})
	copy(s.items[pos+1:], s.items[pos:])
	s.items[pos] = model.ListItem{Content: content, Checked: checked}
	s.reindex()
	s.dirty = true
}

// RemoveItem removes the list item at pos.
func (s *Session) RemoveItem(pos int) {
	s.items = append(s.items[:pos], s.items[pos+1:]...)
	s.reindex()
	s.dirty = true
}

// SetChecked updates checked flags. The byUser flag carries no structural
// effect here; visible repositioning under move-checked-to-bottom falls out
// of the row projection.
func (s *Session) SetChecked(positions []int, checked bool, byUser bool) {
	for _, p := range positions {
		s.items[p].Checked = checked
	}
	s.dirty = true
}

// SwapItems exchanges two items in the canonical order.
func (s *Session) SwapItems(a, b int) {
	s.items[a], s.items[b] = s.items[b], s.items[a]
	s.reindex()
	s.dirty = true
}

// Reorder moves the item at actual position i to perm[i].
func (s *Session) Reorder(perm []int) {
	if len(perm) != len(s.items) {
		panic(fmt.Sprintf("edit: reorder permutation of len %d over %d items", len(perm), len(s.items)))
	}
	out := make([]model.ListItem, len(s.items))
	for i, it := range s.items {
		out[perm[i]] = it
	}
	s.items = out
	s.reindex()
	s.dirty = true
}

// SetNote substitutes the whole note snapshot.
func (s *Session) SetNote(n model.Note) {
	s.note = n
	s.items = n.ListItems()
	s.dirty = true
}

// SetFocus moves the cursor.
func (s *Session) SetFocus(f Focus) { s.focus = f }

func (s *Session) reindex() {
	for i := range s.items {
		s.items[i].ActualPos = i
	}
}

// ---- user edit entry points ----

// OnTextChanged records a user edit replacing the [start,end) span at loc
// with text. Consecutive edits coalesce into one undo step until the batch
// debounce expires. A newline typed inside a list item splits it.
func (s *Session) OnTextChanged(loc Loc, start, end int, text string) {
	cur := s.Text(loc)
	checkSpan(cur, start, end)
	if loc.Field == FieldItem && strings.Contains(text, "\n") {
		s.splitItem(loc.Item, start, end, text)
		return
	}
	if !s.log.Batching() {
		s.log.StartBatch()
		anchor := Focus{Loc: loc, Pos: start}
		s.log.Append(FocusChange{Before: anchor, After: anchor})
	}
	act := TextChange{Loc: loc, Start: start, End: end, Old: cur[start:end], New: text}
	act.Apply(s)
	s.focus = Focus{Loc: loc, Pos: start + len(text)}
	s.log.Append(act)
}

// splitItem turns a newline-bearing edit inside an item into a batch: the
// item is truncated to its first line and every subsequent line becomes a
// new sibling item, the last one taking over the text after the edit span.
func (s *Session) splitItem(pos, start, end int, text string) {
	cur := s.items[pos].Content
	lines := strings.Split(text, "\n")
	suffix := cur[end:]
	inherit := s.prefs.MoveCheckedToBottom && s.items[pos].Checked

	anchor := Focus{Loc: Loc{Field: FieldItem, Item: pos}, Pos: start}
	acts := []Action{
		FocusChange{Before: anchor, After: anchor},
		TextChange{
			Loc:   Loc{Field: FieldItem, Item: pos},
			Start: start,
			End:   len(cur),
			Old:   cur[start:],
			New:   lines[0],
		},
	}
	for i := 1; i < len(lines); i++ {
		content := lines[i]
		if i == len(lines)-1 {
			content += suffix
		}
		acts = append(acts, ItemAdd{Pos: pos + i, Content: content, Checked: inherit})
	}
	lastPos := pos + len(lines) - 1
	acts = append(acts, FocusChange{
		Before: anchor,
		After:  Focus{Loc: Loc{Field: FieldItem, Item: lastPos}, Pos: len(lines[len(lines)-1])},
	})

	b := Batch{Actions: acts}
	b.Apply(s)
	s.log.Append(b)
}

// OnItemBackspace handles backspace at the very start of an item: the item
// merges into its predecessor. At the first item, focus just moves to the
// end of the title.
func (s *Session) OnItemBackspace(pos int) {
	if pos == 0 {
		s.focus = Focus{Loc: Loc{Field: FieldTitle}, Pos: len(s.note.Title)}
		return
	}
	prev, cur := s.items[pos-1], s.items[pos]
	junction := len(prev.Content)
	anchor := Focus{Loc: Loc{Field: FieldItem, Item: pos}}
	b := Batch{Actions: []Action{
		FocusChange{Before: anchor, After: anchor},
		TextChange{
			Loc:   Loc{Field: FieldItem, Item: pos - 1},
			Start: junction,
			End:   junction,
			Old:   "",
			New:   cur.Content,
		},
		ItemRemove{Pos: pos, Content: cur.Content, Checked: cur.Checked},
		FocusChange{
			Before: anchor,
			After:  Focus{Loc: Loc{Field: FieldItem, Item: pos - 1}, Pos: junction},
		},
	}}
	b.Apply(s)
	s.log.Append(b)
}

// CheckItem sets the checked flag of one item on behalf of the user.
func (s *Session) CheckItem(pos int, checked bool) {
	if s.items[pos].Checked == checked {
		return
	}
	act := ItemCheck{Positions: []int{pos}, Checked: checked, ByUser: true}
	act.Apply(s)
	s.log.Append(act)
}

// CheckAll sets every item's checked flag, recording only the items that
// actually change.
func (s *Session) CheckAll(checked bool) {
	var positions []int
	for i, it := range s.items {
		if it.Checked != checked {
			positions = append(positions, i)
		}
	}
	if len(positions) == 0 {
		return
	}
	act := ItemCheck{Positions: positions, Checked: checked, ByUser: true}
	act.Apply(s)
	s.log.Append(act)
}

// AddItem appends a blank item and focuses it.
func (s *Session) AddItem() {
	pos := len(s.items)
	act := ItemAdd{Pos: pos}
	act.Apply(s)
	s.log.Append(act)
	s.focus = Focus{Loc: Loc{Field: FieldItem, Item: pos}}
}

// DeleteItem removes the item at pos.
func (s *Session) DeleteItem(pos int) {
	it := s.items[pos]
	act := ItemRemove{Pos: pos, Content: it.Content, Checked: it.Checked}
	act.Apply(s)
	s.log.Append(act)
}

// DeleteCheckedItems removes all checked items as one undo step. Removals
// run from the highest position down so every leaf inverse re-inserts at a
// still-valid index.
func (s *Session) DeleteCheckedItems() {
	var acts []Action
	for i := len(s.items) - 1; i >= 0; i-- {
		if s.items[i].Checked {
			acts = append(acts, ItemRemove{Pos: i, Content: s.items[i].Content, Checked: true})
		}
	}
	if len(acts) == 0 {
		return
	}
	b := Batch{Actions: acts}
	b.Apply(s)
	s.log.Append(b)
}

// MoveItem swaps the items at two actual positions (one drag step).
func (s *Session) MoveItem(a, b int) {
	if a == b {
		return
	}
	act := ItemSwap{A: a, B: b}
	act.Apply(s)
	s.log.Append(act)
}

// SortItems reorders items alphabetically (case-insensitive, stable) as a
// single reversible permutation.
func (s *Session) SortItems() {
	order := make([]int, len(s.items))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return strings.ToLower(s.items[order[a]].Content) < strings.ToLower(s.items[order[b]].Content)
	})
	// order[k] is the old position ending up at k; invert into perm[i] = new pos.
	perm := make([]int, len(order))
	identity := true
	for k, old := range order {
		perm[old] = k
		if old != k {
			identity = false
		}
	}
	if identity {
		return
	}
	act := ItemReorder{Perm: perm}
	act.Apply(s)
	s.log.Append(act)
}

// ConvertToList converts a text note into a list note.
func (s *Session) ConvertToList() {
	if s.note.Type == model.TypeList {
		return
	}
	before := s.snapshot()
	act := NoteConvert{Before: before, After: before.AsListNote()}
	act.Apply(s)
	s.log.Append(act)
}

// ConvertToText converts a list note into a text note, optionally dropping
// checked items.
func (s *Session) ConvertToText(keepChecked bool) {
	if s.note.Type == model.TypeText {
		return
	}
	before := s.snapshot()
	act := NoteConvert{Before: before, After: before.AsTextNote(keepChecked)}
	act.Apply(s)
	s.log.Append(act)
}

// ---- undo / redo ----

// Undo reverts the latest undo step, restoring focus to where the edit
// began. It reports whether anything was undone.
func (s *Session) Undo() bool {
	act, ok := s.log.Undo()
	if !ok {
		return false
	}
	inv := act.Invert()
	inv.Apply(s)
	s.settleFocus(inv)
	return true
}

// Redo re-applies the latest undone step, restoring focus to where the edit
// ended. It reports whether anything was redone.
func (s *Session) Redo() bool {
	act, ok := s.log.Redo()
	if !ok {
		return false
	}
	act.Apply(s)
	s.settleFocus(act)
	return true
}

// settleFocus places the cursor after a replayed action that carries no
// trailing focus change: after the last text change it touched.
func (s *Session) settleFocus(a Action) {
	if endsWithFocus(a) {
		return
	}
	if tc, ok := lastTextChange(a); ok {
		s.focus = Focus{Loc: tc.Loc, Pos: tc.Start + len(tc.New)}
	}
}

func endsWithFocus(a Action) bool {
	switch act := a.(type) {
	case FocusChange:
		return true
	case Batch:
		if len(act.Actions) == 0 {
			return false
		}
		return endsWithFocus(act.Actions[len(act.Actions)-1])
	default:
		return false
	}
}

func lastTextChange(a Action) (TextChange, bool) {
	switch act := a.(type) {
	case TextChange:
		return act, true
	case Batch:
		for i := len(act.Actions) - 1; i >= 0; i-- {
			if tc, ok := lastTextChange(act.Actions[i]); ok {
				return tc, true
			}
		}
	}
	return TextChange{}, false
}

// ---- persistence ----

// Save persists the note if it has unsaved changes. The write is shielded
// from cancellation so a teardown transition cannot abort the commit.
func (s *Session) Save(ctx context.Context) error {
	if !s.dirty {
		return nil
	}
	ctx = context.WithoutCancel(ctx)
	n := s.snapshot()
	n.Modified = s.clock()
	if err := s.notes.Update(ctx, &n); err != nil {
		return fmt.Errorf("save note %d: %w", n.ID, err)
	}
	s.note.Modified = n.Modified
	s.dirty = false
	return nil
}

// Close saves pending changes and discards a freshly created note that was
// left completely blank.
func (s *Session) Close(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)
	n := s.snapshot()
	if s.isNew && n.IsBlank() {
		if err := s.notes.Delete(ctx, n.ID); err != nil {
			return fmt.Errorf("discard blank note %d: %w", n.ID, err)
		}
		s.dirty = false
		return nil
	}
	return s.Save(ctx)
}

// ---- suspend / restore ----

type sessionState struct {
	Note  model.Note       `json:"note"`
	Items []model.ListItem `json:"items"`
	Focus Focus            `json:"focus"`
	Dirty bool             `json:"dirty"`
	IsNew bool             `json:"isNew"`
}

const stateKey = "edit.session"

// SaveState serializes the session's restorable state into the bundle.
// The undo log is intentionally not persisted.
func (s *Session) SaveState(b Bundle) error {
	st := sessionState{Note: s.note, Items: s.items, Focus: s.focus, Dirty: s.dirty, IsNew: s.isNew}
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	b.Put(stateKey, data)
	return nil
}

// RestoreState rebuilds the session from a bundle written by SaveState.
func (s *Session) RestoreState(b Bundle) error {
	data, ok := b.Get(stateKey)
	if !ok {
		return fmt.Errorf("restore: %s missing", stateKey)
	}
	var st sessionState
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	s.note, s.items, s.focus, s.dirty, s.isNew = st.Note, st.Items, st.Focus, st.Dirty, st.IsNew
	return nil
}
