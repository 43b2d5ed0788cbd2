// Package model defines domain entities used by services and repositories.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// NoteType distinguishes plain text notes from checklist notes.
type NoteType int

const (
	TypeText NoteType = 0
	TypeList NoteType = 1
)

// Valid reports whether the value is a known note type.
func (t NoteType) Valid() bool { return t == TypeText || t == TypeList }

// NoteStatus is the lifecycle state of a note.
type NoteStatus int

const (
	StatusActive   NoteStatus = 0
	StatusArchived NoteStatus = 1
	StatusDeleted  NoteStatus = 2
)

// Valid reports whether the value is a known status.
func (s NoteStatus) Valid() bool {
	return s == StatusActive || s == StatusArchived || s == StatusDeleted
}

// PinnedStatus is the pin state of a note. CantPin is used for any
// non-active note, which cannot be pinned.
type PinnedStatus int

const (
	CantPin  PinnedStatus = 0
	Unpinned PinnedStatus = 1
	Pinned   PinnedStatus = 2
)

// Valid reports whether the value is a known pinned status.
func (p PinnedStatus) Valid() bool {
	return p == CantPin || p == Unpinned || p == Pinned
}

// Metadata is the type-specific part of a note. Text notes carry blank
// metadata; list notes carry the ordered checked flags of their items.
type Metadata struct {
	Type    string `json:"type"`
	Checked []bool `json:"checked,omitempty"`
}

const (
	metadataBlank = "blank"
	metadataList  = "list"
)

// BlankMetadata returns metadata for a text note.
func BlankMetadata() Metadata { return Metadata{Type: metadataBlank} }

// ListMetadata returns metadata for a list note with the given checked flags.
func ListMetadata(checked []bool) Metadata {
	return Metadata{Type: metadataList, Checked: checked}
}

// ParseMetadata decodes the JSON-encoded metadata string used by the
// persistence and backup layers.
func ParseMetadata(s string) (Metadata, error) {
	var m Metadata
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return Metadata{}, fmt.Errorf("metadata: %w", err)
	}
	switch m.Type {
	case metadataBlank, metadataList:
		return m, nil
	default:
		return Metadata{}, fmt.Errorf("metadata: unknown type %q", m.Type)
	}
}

// Encode returns the JSON-encoded metadata string.
func (m Metadata) Encode() string {
	b, _ := json.Marshal(m)
	return string(b)
}

// Reminder is a note reminder with optional RRULE recurrence.
type Reminder struct {
	Start      time.Time // first occurrence set by the user
	Recurrence string    // RRULE string, empty for one-shot reminders
	Next       time.Time // next trigger time
	Count      int       // number of times triggered so far
	Done       bool      // set when a non-recurring reminder has fired
}

// Note is a single stored note, either text or list.
type Note struct {
	ID       int64
	Type     NoteType
	Title    string
	Content  string // newline-joined text, or list item source lines
	Metadata Metadata
	Added    time.Time
	Modified time.Time
	Status   NoteStatus
	Pinned   PinnedStatus
	Reminder *Reminder
}

// ListItem is one row of a list note, derived from content and metadata.
// ActualPos is the item's index in the canonical (unreordered) list and
// stays stable when a display mode re-sorts the visible order.
type ListItem struct {
	Content   string
	Checked   bool
	ActualPos int
}

// Label is a user-defined tag attachable to notes.
type Label struct {
	ID     int64
	Name   string
	Hidden bool
}

// NormalizeLabelName collapses runs of whitespace and trims the ends.
func NormalizeLabelName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// CheckInvariant validates the pinned/status coupling: a note may carry a
// real pin state only while active.
func (n *Note) CheckInvariant() error {
	if n.Status == StatusActive && n.Pinned == CantPin {
		return fmt.Errorf("note %d: active note with CantPin", n.ID)
	}
	if n.Status != StatusActive && n.Pinned != CantPin {
		return fmt.Errorf("note %d: inactive note with pin state %d", n.ID, n.Pinned)
	}
	return nil
}

// WithStatus returns a copy with the new status, adjusting the pinned state
// so the invariant holds.
func (n Note) WithStatus(status NoteStatus) Note {
	n.Status = status
	if status == StatusActive {
		if n.Pinned == CantPin {
			n.Pinned = Unpinned
		}
	} else {
		n.Pinned = CantPin
	}
	return n
}

// IsBlank reports whether the note has no user content at all.
func (n *Note) IsBlank() bool {
	if strings.TrimSpace(n.Title) != "" {
		return false
	}
	if n.Type == TypeList {
		for _, it := range n.ListItems() {
			if strings.TrimSpace(it.Content) != "" {
				return false
			}
		}
		return true
	}
	return strings.TrimSpace(n.Content) == ""
}

// ListItems projects the content and metadata of a list note into items.
// Missing checked flags default to unchecked; extra flags are ignored.
func (n *Note) ListItems() []ListItem {
	if n.Type != TypeList {
		return nil
	}
	lines := strings.Split(n.Content, "\n")
	items := make([]ListItem, len(lines))
	for i, line := range lines {
		checked := i < len(n.Metadata.Checked) && n.Metadata.Checked[i]
		items[i] = ListItem{Content: line, Checked: checked, ActualPos: i}
	}
	return items
}

// WithListItems returns a copy of a list note with content and metadata
// regenerated from the given items, in canonical order.
func (n Note) WithListItems(items []ListItem) Note {
	lines := make([]string, len(items))
	checked := make([]bool, len(items))
	for i, it := range items {
		lines[i] = it.Content
		checked[i] = it.Checked
	}
	n.Content = strings.Join(lines, "\n")
	n.Metadata = ListMetadata(checked)
	return n
}

// bullet prefixes stripped when converting text lines into list items.
var bulletPrefixes = []string{"- ", "* ", "+ "}

// AsListNote converts a text note into a list note, one item per line.
// Leading bullet characters are stripped. Converting a list note returns it
// unchanged.
func (n Note) AsListNote() Note {
	if n.Type == TypeList {
		return n
	}
	lines := strings.Split(n.Content, "\n")
	for i, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		for _, p := range bulletPrefixes {
			if strings.HasPrefix(trimmed, p) {
				trimmed = trimmed[len(p):]
				break
			}
		}
		lines[i] = trimmed
	}
	n.Type = TypeList
	n.Content = strings.Join(lines, "\n")
	n.Metadata = ListMetadata(make([]bool, len(lines)))
	return n
}

// AsTextNote converts a list note into a text note by joining item lines.
// When keepChecked is false, checked items are dropped. Converting a text
// note returns it unchanged.
func (n Note) AsTextNote(keepChecked bool) Note {
	if n.Type == TypeText {
		return n
	}
	var lines []string
	for _, it := range n.ListItems() {
		if !keepChecked && it.Checked {
			continue
		}
		lines = append(lines, it.Content)
	}
	n.Type = TypeText
	n.Content = strings.Join(lines, "\n")
	n.Metadata = BlankMetadata()
	return n
}
