// Package backup implements the versioned JSON backup format: envelope
// detection (legacy, plain, encrypted), schema validation and the merge of
// imported notes and labels into the local store.
package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/notekeep/notekeep/internal/model"
	"github.com/notekeep/notekeep/internal/reminder"
)

// Version bounds of the backup schema.
const (
	VersionMin     = 1
	VersionCurrent = 4
)

// Status is the outcome of an import, always returned as a value.
type Status int

const (
	// StatusSuccess means the document was imported in full.
	StatusSuccess Status = iota
	// StatusBadFormat means malformed JSON or a missing/mistyped field.
	StatusBadFormat
	// StatusBadData means a version below the minimum or an unsupported
	// value for a known field.
	StatusBadData
	// StatusFutureVersion means a newer-than-known version; a best-effort
	// import was performed with the fields the current schema understands.
	StatusFutureVersion
	// StatusKeyMissingOrIncorrect means the backup is encrypted and no key
	// was supplied, or the supplied key failed authentication.
	StatusKeyMissingOrIncorrect
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusBadFormat:
		return "bad format"
	case StatusBadData:
		return "bad data"
	case StatusFutureVersion:
		return "future version"
	case StatusKeyMissingOrIncorrect:
		return "key missing or incorrect"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Document is a parsed backup body.
type Document struct {
	Version int                      `json:"version"`
	Notes   map[int64]NoteSurrogate  `json:"notes"`
	Labels  map[int64]LabelSurrogate `json:"labels"`
}

// NoteSurrogate is the serialization shape of a note: the note minus its id
// (the map key) plus its label-id list.
type NoteSurrogate struct {
	Type     int                `json:"type"`
	Title    string             `json:"title"`
	Content  string             `json:"content"`
	Metadata string             `json:"metadata"`
	Added    time.Time          `json:"added"`
	Modified time.Time          `json:"modified"`
	Status   int                `json:"status"`
	Pinned   int                `json:"pinned"`
	Reminder *ReminderSurrogate `json:"reminder,omitempty"`
	Labels   []int64            `json:"labels,omitempty"`
}

// ReminderSurrogate is the serialization shape of a reminder.
type ReminderSurrogate struct {
	Start      time.Time `json:"start"`
	Recurrence *string   `json:"recurrence"`
	Next       time.Time `json:"next"`
	Count      int       `json:"count"`
	Done       bool      `json:"done"`
}

// LabelSurrogate is the serialization shape of a label.
type LabelSurrogate struct {
	Name   string `json:"name"`
	Hidden bool   `json:"hidden,omitempty"`
}

// envelope probes the outermost wrapper shape of a backup.
type envelope struct {
	NotesData *json.RawMessage   `json:"notesData"`
	Encrypted *EncryptedEnvelope `json:"encryptedNotesData"`
}

// EncryptedEnvelope wraps an encrypted backup body. All fields are base64.
type EncryptedEnvelope struct {
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// raw* mirror the wire shapes with pointer fields so missing required
// fields are detectable.

type rawDocument struct {
	Version *int                       `json:"version"`
	Notes   map[string]json.RawMessage `json:"notes"`
	Labels  map[string]json.RawMessage `json:"labels"`
}

type rawNote struct {
	Type     *int         `json:"type"`
	Title    *string      `json:"title"`
	Content  *string      `json:"content"`
	Metadata *string      `json:"metadata"`
	Added    *time.Time   `json:"added"`
	Modified *time.Time   `json:"modified"`
	Status   *int         `json:"status"`
	Pinned   *int         `json:"pinned"`
	Reminder *rawReminder `json:"reminder"`
	Labels   []int64      `json:"labels"`
}

type rawReminder struct {
	Start      *time.Time `json:"start"`
	Recurrence *string    `json:"recurrence"`
	Next       *time.Time `json:"next"`
	Count      *int       `json:"count"`
	Done       *bool      `json:"done"`
}

type rawLabel struct {
	Name   *string `json:"name"`
	Hidden bool    `json:"hidden"`
}

// parseDocument decodes and validates a plaintext backup body. When
// implicitVersion is set (bare legacy document) a missing version field
// defaults to the oldest supported version. Unknown fields are ignored at
// any version; unknown values of known enum-like fields are BadData.
func parseDocument(data []byte, implicitVersion bool) (*Document, Status) {
	var raw rawDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, StatusBadFormat
	}

	version := VersionMin
	switch {
	case raw.Version != nil:
		version = *raw.Version
	case !implicitVersion:
		return nil, StatusBadFormat
	}
	if version < VersionMin {
		return nil, StatusBadData
	}
	st := StatusSuccess
	if version > VersionCurrent {
		st = StatusFutureVersion
	}

	doc := &Document{
		Version: version,
		Notes:   make(map[int64]NoteSurrogate, len(raw.Notes)),
		Labels:  make(map[int64]LabelSurrogate, len(raw.Labels)),
	}

	for key, msg := range raw.Labels {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, StatusBadFormat
		}
		var rl rawLabel
		if err := json.Unmarshal(msg, &rl); err != nil {
			return nil, StatusBadFormat
		}
		if rl.Name == nil {
			return nil, StatusBadFormat
		}
		doc.Labels[id] = LabelSurrogate{Name: *rl.Name, Hidden: rl.Hidden}
	}

	for key, msg := range raw.Notes {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, StatusBadFormat
		}
		var rn rawNote
		if err := json.Unmarshal(msg, &rn); err != nil {
			return nil, StatusBadFormat
		}
		ns, vst := validateNote(rn)
		if vst != StatusSuccess {
			return nil, vst
		}
		doc.Notes[id] = ns
	}
	return doc, st
}

func validateNote(rn rawNote) (NoteSurrogate, Status) {
	if rn.Type == nil || rn.Title == nil || rn.Content == nil || rn.Metadata == nil ||
		rn.Added == nil || rn.Modified == nil || rn.Status == nil || rn.Pinned == nil {
		return NoteSurrogate{}, StatusBadFormat
	}
	if !model.NoteType(*rn.Type).Valid() ||
		!model.NoteStatus(*rn.Status).Valid() ||
		!model.PinnedStatus(*rn.Pinned).Valid() {
		return NoteSurrogate{}, StatusBadData
	}
	if _, err := model.ParseMetadata(*rn.Metadata); err != nil {
		var syn *json.SyntaxError
		var typ *json.UnmarshalTypeError
		if errors.As(err, &syn) || errors.As(err, &typ) {
			return NoteSurrogate{}, StatusBadFormat
		}
		return NoteSurrogate{}, StatusBadData
	}

	ns := NoteSurrogate{
		Type:     *rn.Type,
		Title:    *rn.Title,
		Content:  *rn.Content,
		Metadata: *rn.Metadata,
		Added:    *rn.Added,
		Modified: *rn.Modified,
		Status:   *rn.Status,
		Pinned:   *rn.Pinned,
		Labels:   rn.Labels,
	}
	if rn.Reminder != nil {
		r := rn.Reminder
		if r.Start == nil || r.Next == nil || r.Count == nil || r.Done == nil {
			return NoteSurrogate{}, StatusBadFormat
		}
		if r.Recurrence != nil {
			if err := reminder.ValidateRecurrence(*r.Recurrence); err != nil {
				return NoteSurrogate{}, StatusBadFormat
			}
		}
		ns.Reminder = &ReminderSurrogate{
			Start:      *r.Start,
			Recurrence: r.Recurrence,
			Next:       *r.Next,
			Count:      *r.Count,
			Done:       *r.Done,
		}
	}
	return ns, StatusSuccess
}

// toNote converts a validated surrogate into a domain note, normalizing the
// status/pinned coupling.
func (ns NoteSurrogate) toNote() model.Note {
	meta, _ := model.ParseMetadata(ns.Metadata)
	n := model.Note{
		Type:     model.NoteType(ns.Type),
		Title:    ns.Title,
		Content:  ns.Content,
		Metadata: meta,
		Added:    ns.Added,
		Modified: ns.Modified,
		Status:   model.NoteStatus(ns.Status),
		Pinned:   model.PinnedStatus(ns.Pinned),
	}
	if n.Status != model.StatusActive {
		n.Pinned = model.CantPin
	} else if n.Pinned == model.CantPin {
		n.Pinned = model.Unpinned
	}
	if ns.Reminder != nil {
		rec := ""
		if ns.Reminder.Recurrence != nil {
			rec = *ns.Reminder.Recurrence
		}
		n.Reminder = &model.Reminder{
			Start:      ns.Reminder.Start,
			Recurrence: rec,
			Next:       ns.Reminder.Next,
			Count:      ns.Reminder.Count,
			Done:       ns.Reminder.Done,
		}
	}
	return n
}

// noteSurrogate builds the serialization shape from a domain note.
func noteSurrogate(n model.Note, labelIDs []int64) NoteSurrogate {
	ns := NoteSurrogate{
		Type:     int(n.Type),
		Title:    n.Title,
		Content:  n.Content,
		Metadata: n.Metadata.Encode(),
		Added:    n.Added,
		Modified: n.Modified,
		Status:   int(n.Status),
		Pinned:   int(n.Pinned),
		Labels:   labelIDs,
	}
	if n.Reminder != nil {
		ns.Reminder = &ReminderSurrogate{
			Start: n.Reminder.Start,
			Next:  n.Reminder.Next,
			Count: n.Reminder.Count,
			Done:  n.Reminder.Done,
		}
		if n.Reminder.Recurrence != "" {
			rec := n.Reminder.Recurrence
			ns.Reminder.Recurrence = &rec
		}
	}
	return ns
}
