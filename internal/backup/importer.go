package backup

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/notekeep/notekeep/internal/crypto/backupcrypto"
	"github.com/notekeep/notekeep/internal/errs"
	"github.com/notekeep/notekeep/internal/model"
	"github.com/notekeep/notekeep/internal/reminder"
	"github.com/notekeep/notekeep/internal/repository"
)

// Importer merges a backup document into the local store. Every format,
// version and key problem is reported through a Status; the error return is
// reserved for store failures.
type Importer struct {
	notes  repository.NoteRepository
	labels repository.LabelRepository
	sched  reminder.Scheduler
	log    *zap.Logger

	lastSalt []byte
}

// NewImporter constructs an importer over the given stores and scheduler.
func NewImporter(notes repository.NoteRepository, labels repository.LabelRepository, sched reminder.Scheduler, log *zap.Logger) *Importer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Importer{notes: notes, labels: labels, sched: sched, log: log}
}

// Salt returns the salt of the most recently seen encrypted backup, kept so
// a key can be derived once the user supplies the password.
func (im *Importer) Salt() []byte { return im.lastSalt }

// KeyFromPassword derives the decryption key for the last seen encrypted
// backup from a password.
func (im *Importer) KeyFromPassword(password []byte) ([]byte, error) {
	if im.lastSalt == nil {
		return nil, errors.New("no encrypted backup seen")
	}
	return backupcrypto.DeriveKey(password, im.lastSalt), nil
}

// Import detects the envelope shape of data, decrypting with key when
// needed, validates the document and merges it into the store.
func (im *Importer) Import(ctx context.Context, data, key []byte) (Status, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return StatusBadFormat, nil
	}

	if env.Encrypted != nil {
		plain, st := im.decrypt(env.Encrypted, key)
		if st != StatusSuccess {
			return st, nil
		}
		data = plain
		env = envelope{}
		if err := json.Unmarshal(data, &env); err != nil {
			return StatusBadFormat, nil
		}
		if env.Encrypted != nil {
			// nested encryption is not a recognized shape
			return StatusBadData, nil
		}
	}

	var doc *Document
	var st Status
	if env.NotesData != nil {
		doc, st = parseDocument(*env.NotesData, false)
	} else {
		doc, st = parseDocument(data, true)
	}
	if st != StatusSuccess && st != StatusFutureVersion {
		return st, nil
	}

	if err := im.merge(ctx, doc); err != nil {
		return st, err
	}
	im.log.Info("backup imported",
		zap.Int("version", doc.Version),
		zap.Int("notes", len(doc.Notes)),
		zap.Int("labels", len(doc.Labels)),
		zap.Stringer("status", st),
	)
	return st, nil
}

// decrypt opens the encrypted envelope. Authentication failure reports the
// same status as a missing key; nothing more is revealed about why.
func (im *Importer) decrypt(env *EncryptedEnvelope, key []byte) ([]byte, Status) {
	salt, err := base64.StdEncoding.DecodeString(env.Salt)
	if err != nil {
		return nil, StatusBadData
	}
	im.lastSalt = salt
	if len(key) == 0 {
		return nil, StatusKeyMissingOrIncorrect
	}
	nonce, err := base64.StdEncoding.DecodeString(env.Nonce)
	if err != nil {
		return nil, StatusBadData
	}
	ct, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, StatusBadData
	}
	if len(nonce) != backupcrypto.NonceLen {
		return nil, StatusBadData
	}
	plain, err := backupcrypto.Decrypt(key, nonce, ct)
	if err != nil {
		return nil, StatusKeyMissingOrIncorrect
	}
	return plain, StatusSuccess
}

// merge applies the document: labels first (producing the id remap), then
// notes, then an alarm recompute over the final reminder state.
func (im *Importer) merge(ctx context.Context, doc *Document) error {
	idMap, err := im.mergeLabels(ctx, doc.Labels)
	if err != nil {
		return err
	}
	if err := im.mergeNotes(ctx, doc.Notes, idMap); err != nil {
		return err
	}
	return im.sched.RecomputeAll(ctx)
}

// mergeLabels merges incoming labels under deterministic rules and returns
// the old-id to new-id map. Ids are processed in ascending order so name
// collision suffixes come out the same on every run.
func (im *Importer) mergeLabels(ctx context.Context, labels map[int64]LabelSurrogate) (map[int64]int64, error) {
	idMap := make(map[int64]int64, len(labels))
	for _, id := range sortedKeys(labels) {
		in := labels[id]
		name := model.NormalizeLabelName(in.Name)

		local, err := im.labels.Get(ctx, id)
		switch {
		case err == nil && local.Name == name:
			// same label, unmodified since export
			idMap[id] = id
		case err == nil:
			// id taken by a different label: insert under a fresh id
			newID, err := im.insertLabel(ctx, 0, name, in.Hidden)
			if err != nil {
				return nil, err
			}
			idMap[id] = newID
		case errors.Is(err, errs.ErrNotFound):
			newID, err := im.insertLabel(ctx, id, name, in.Hidden)
			if err != nil {
				return nil, err
			}
			idMap[id] = newID
		default:
			return nil, fmt.Errorf("merge label %d: %w", id, err)
		}
	}
	return idMap, nil
}

// insertLabel inserts a label, appending " (N)" for the smallest N that
// makes the name unique.
func (im *Importer) insertLabel(ctx context.Context, id int64, name string, hidden bool) (int64, error) {
	unique := name
	for n := 2; ; n++ {
		_, err := im.labels.GetByName(ctx, unique)
		if errors.Is(err, errs.ErrNotFound) {
			break
		}
		if err != nil {
			return 0, err
		}
		unique = fmt.Sprintf("%s (%d)", name, n)
	}
	return im.labels.Insert(ctx, &model.Label{ID: id, Name: unique, Hidden: hidden})
}

// mergeNotes merges incoming notes using the label id map. A note with a
// locally unknown id is inserted keeping its id. A note whose id and both
// dates match a local note merges in place; any other id collision, and any
// reminder conflict, inserts the incoming note as a brand-new row.
func (im *Importer) mergeNotes(ctx context.Context, notes map[int64]NoteSurrogate, idMap map[int64]int64) error {
	for _, id := range sortedKeys(notes) {
		in := notes[id]
		n := in.toNote()
		labelIDs := remapLabels(in.Labels, idMap)

		local, err := im.notes.Get(ctx, id)
		if errors.Is(err, errs.ErrNotFound) {
			n.ID = id
			newID, err := im.notes.Insert(ctx, &n)
			if err != nil {
				return fmt.Errorf("import note %d: %w", id, err)
			}
			if err := im.notes.SetLabelIDs(ctx, newID, labelIDs); err != nil {
				return fmt.Errorf("import note %d: %w", id, err)
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("merge note %d: %w", id, err)
		}

		if local.Added.Equal(n.Added) && local.Modified.Equal(n.Modified) {
			merged := *local
			conflict := false
			switch {
			case merged.Reminder == nil:
				merged.Reminder = n.Reminder
			case n.Reminder != nil && !sameReminder(merged.Reminder, n.Reminder):
				conflict = true
			}
			if !conflict {
				existing, err := im.notes.GetLabelIDs(ctx, id)
				if err != nil {
					return fmt.Errorf("merge note %d: %w", id, err)
				}
				if err := im.notes.Update(ctx, &merged); err != nil {
					return fmt.Errorf("merge note %d: %w", id, err)
				}
				if err := im.notes.SetLabelIDs(ctx, id, unionIDs(existing, labelIDs)); err != nil {
					return fmt.Errorf("merge note %d: %w", id, err)
				}
				continue
			}
		}

		// concurrent edits or reminder conflict: never overwrite, fresh row
		n.ID = 0
		newID, err := im.notes.Insert(ctx, &n)
		if err != nil {
			return fmt.Errorf("import note %d: %w", id, err)
		}
		if err := im.notes.SetLabelIDs(ctx, newID, labelIDs); err != nil {
			return fmt.Errorf("import note %d: %w", id, err)
		}
	}
	return nil
}

func sameReminder(a, b *model.Reminder) bool {
	return a.Start.Equal(b.Start) && a.Recurrence == b.Recurrence
}

func remapLabels(ids []int64, idMap map[int64]int64) []int64 {
	var out []int64
	for _, id := range ids {
		if mapped, ok := idMap[id]; ok {
			out = append(out, mapped)
		}
	}
	return out
}

func unionIDs(a, b []int64) []int64 {
	seen := make(map[int64]bool, len(a)+len(b))
	var out []int64
	for _, id := range append(append([]int64(nil), a...), b...) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
