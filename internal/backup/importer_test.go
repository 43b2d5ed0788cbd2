package backup

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/notekeep/notekeep/internal/crypto/backupcrypto"
	"github.com/notekeep/notekeep/internal/model"
)

func newImporter(store *memStore) (*Importer, *nopScheduler) {
	sched := &nopScheduler{}
	return NewImporter(memNotes{s: store}, memLabels{s: store}, sched, nil), sched
}

func mustImport(t *testing.T, im *Importer, data []byte, key []byte, want Status) {
	t.Helper()
	st, err := im.Import(context.Background(), data, key)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if st != want {
		t.Fatalf("status %v, want %v", st, want)
	}
}

const sampleNote = `{
	"type": 1,
	"title": "groceries",
	"content": "milk\neggs",
	"metadata": "{\"type\":\"list\",\"checked\":[true,false]}",
	"added": "2024-01-02T10:00:00Z",
	"modified": "2024-01-03T11:00:00Z",
	"status": 0,
	"pinned": 2,
	"labels": [7]
}`

func TestImportPlainEnvelope(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	im, sched := newImporter(store)

	data := []byte(fmt.Sprintf(`{"notesData":{
		"version": 3,
		"labels": {"7": {"name": "shopping", "hidden": true}},
		"notes": {"5": %s}
	}}`, sampleNote))
	mustImport(t, im, data, nil, StatusSuccess)

	n, ok := store.notes[5]
	if !ok {
		t.Fatalf("note 5 not imported: %+v", store.notes)
	}
	if n.Type != model.TypeList || n.Title != "groceries" || n.Content != "milk\neggs" {
		t.Fatalf("note fields: %+v", n)
	}
	if len(n.Metadata.Checked) != 2 || !n.Metadata.Checked[0] {
		t.Fatalf("metadata: %+v", n.Metadata)
	}
	if n.Pinned != model.Pinned || n.Status != model.StatusActive {
		t.Fatalf("pin/status: %+v", n)
	}

	l, ok := store.labels[7]
	if !ok || l.Name != "shopping" || !l.Hidden {
		t.Fatalf("label 7: %+v", l)
	}
	if refs := store.refs[5]; len(refs) != 1 || refs[0] != 7 {
		t.Fatalf("label refs: %v", refs)
	}
	if sched.recomputes != 1 {
		t.Fatalf("alarms recomputed %d times", sched.recomputes)
	}
}

func TestImportBareLegacyDocument(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	im, _ := newImporter(store)

	// The oldest exports are the bare document with no version field.
	data := []byte(fmt.Sprintf(`{"notes": {"1": %s}}`, sampleNote))
	mustImport(t, im, data, nil, StatusSuccess)
	if _, ok := store.notes[1]; !ok {
		t.Fatalf("legacy note not imported")
	}
}

func TestImportStatuses(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		data string
		want Status
	}{
		{"malformed json", `{"notesData":`, StatusBadFormat},
		{"wrapped missing version", `{"notesData":{"notes":{}}}`, StatusBadFormat},
		{"version zero", `{"notesData":{"version":0}}`, StatusBadData},
		{"negative version", `{"version":-1}`, StatusBadData},
		{"non-numeric note key", `{"version":2,"notes":{"abc":{}}}`, StatusBadFormat},
		{"note missing fields", `{"version":2,"notes":{"1":{"type":0}}}`, StatusBadFormat},
		{"unknown note type", `{"version":2,"notes":{"1":` + noteWith(`"type": 9`) + `}}`, StatusBadData},
		{"unknown status", `{"version":2,"notes":{"1":` + noteWith(`"status": 7`) + `}}`, StatusBadData},
		{"unknown pinned", `{"version":2,"notes":{"1":` + noteWith(`"pinned": 5`) + `}}`, StatusBadData},
		{"metadata syntax error", `{"version":2,"notes":{"1":` + noteWith(`"metadata": "{"`) + `}}`, StatusBadFormat},
		{"metadata unknown type", `{"version":2,"notes":{"1":` + noteWith(`"metadata": "{\"type\":\"video\"}"`) + `}}`, StatusBadData},
		{"label missing name", `{"version":2,"labels":{"1":{"hidden":true}}}`, StatusBadFormat},
		{"bad reminder rule", `{"version":2,"notes":{"1":` + noteWith(`"reminder": {"start":"2024-01-01T00:00:00Z","recurrence":"FREQ=NOPE","next":"2024-01-01T00:00:00Z","count":0,"done":false}`) + `}}`, StatusBadFormat},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			store := newMemStore()
			im, _ := newImporter(store)
			mustImport(t, im, []byte(tc.data), nil, tc.want)
			if len(store.notes) != 0 {
				t.Fatalf("rejected import must store nothing: %+v", store.notes)
			}
		})
	}
}

// noteWith replaces one field of the sample note.
func noteWith(field string) string {
	var m map[string]json.RawMessage
	if err := json.Unmarshal([]byte(sampleNote), &m); err != nil {
		panic(err)
	}
	var kv map[string]json.RawMessage
	if err := json.Unmarshal([]byte("{"+field+"}"), &kv); err != nil {
		panic(err)
	}
	for k, v := range kv {
		m[k] = v
	}
	out, _ := json.Marshal(m)
	return string(out)
}

func TestImportFutureVersionBestEffort(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	im, _ := newImporter(store)

	data := []byte(fmt.Sprintf(`{"notesData":{
		"version": %d,
		"notes": {"1": %s},
		"holograms": {"1": {"shape": "cube"}}
	}}`, VersionCurrent+1, sampleNote))
	mustImport(t, im, data, nil, StatusFutureVersion)
	if _, ok := store.notes[1]; !ok {
		t.Fatalf("future version must still import known fields")
	}
}

func TestImportEncrypted(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	ex := NewExporter(memNotes{s: store}, memLabels{s: store}, nil)
	seedStore(t, store)
	enc, err := ex.ExportEncrypted(context.Background(), []byte("hunter2"))
	if err != nil {
		t.Fatalf("ExportEncrypted: %v", err)
	}

	target := newMemStore()
	im, _ := newImporter(target)

	// Probe without a key: refused, but the salt is now known.
	mustImport(t, im, enc, nil, StatusKeyMissingOrIncorrect)
	if len(im.Salt()) != backupcrypto.SaltLen {
		t.Fatalf("salt not recorded: %v", im.Salt())
	}

	wrong, err := im.KeyFromPassword([]byte("wrong"))
	if err != nil {
		t.Fatalf("KeyFromPassword: %v", err)
	}
	mustImport(t, im, enc, wrong, StatusKeyMissingOrIncorrect)

	key, err := im.KeyFromPassword([]byte("hunter2"))
	if err != nil {
		t.Fatalf("KeyFromPassword: %v", err)
	}
	mustImport(t, im, enc, key, StatusSuccess)
	if len(target.notes) != len(store.notes) {
		t.Fatalf("imported %d notes, want %d", len(target.notes), len(store.notes))
	}
}

func TestImportEncryptedBadEnvelope(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	im, _ := newImporter(store)

	data := []byte(`{"encryptedNotesData":{"salt":"!!!","nonce":"","ciphertext":""}}`)
	mustImport(t, im, data, []byte("irrelevant"), StatusBadData)

	// Wrong nonce size with valid base64.
	salt := base64.StdEncoding.EncodeToString(make([]byte, backupcrypto.SaltLen))
	short := base64.StdEncoding.EncodeToString([]byte("short"))
	data = []byte(fmt.Sprintf(`{"encryptedNotesData":{"salt":%q,"nonce":%q,"ciphertext":""}}`, salt, short))
	key := make([]byte, backupcrypto.KeyLen)
	mustImport(t, im, data, key, StatusBadData)
}

func TestImportNestedEncryptionRejected(t *testing.T) {
	t.Parallel()

	inner := []byte(`{"encryptedNotesData":{"salt":"","nonce":"","ciphertext":""}}`)
	salt := make([]byte, backupcrypto.SaltLen)
	key := backupcrypto.DeriveKey([]byte("pw"), salt)
	nonce, ct, err := backupcrypto.Encrypt(key, inner)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	data, _ := json.Marshal(map[string]EncryptedEnvelope{"encryptedNotesData": {
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ct),
	}})

	store := newMemStore()
	im, _ := newImporter(store)
	mustImport(t, im, data, key, StatusBadData)
}

func TestMergeLabelsDeterministic(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	// Local state: id 1 is "work" (matches backup), id 2 is taken by an
	// unrelated label, and the name "home" already exists under id 9.
	store.labels[1] = &model.Label{ID: 1, Name: "work"}
	store.labels[2] = &model.Label{ID: 2, Name: "other"}
	store.labels[9] = &model.Label{ID: 9, Name: "home"}
	store.nextLabel = 10

	im, _ := newImporter(store)
	data := []byte(`{"notesData":{"version":4,"labels":{
		"1": {"name": "work"},
		"2": {"name": "home", "hidden": true},
		"3": {"name": "errands"}
	}}}`)
	mustImport(t, im, data, nil, StatusSuccess)

	// id 1 reused as-is.
	if store.labels[1].Name != "work" {
		t.Fatalf("label 1: %+v", store.labels[1])
	}
	// id 2 collided, so "home" went in under a fresh id with a suffix.
	l, err := memLabels{s: store}.GetByName(context.Background(), "home (2)")
	if err != nil {
		t.Fatalf("suffixed label missing: %v", err)
	}
	if !l.Hidden {
		t.Fatalf("hidden flag lost on collision insert: %+v", l)
	}
	if l.ID == 2 {
		t.Fatalf("collision must not reuse the taken id")
	}
	// id 3 was free and kept.
	if store.labels[3] == nil || store.labels[3].Name != "errands" {
		t.Fatalf("label 3: %+v", store.labels[3])
	}
}

func TestMergeNotesDateEqualityRules(t *testing.T) {
	t.Parallel()

	added := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	modified := time.Date(2024, 1, 3, 11, 0, 0, 0, time.UTC)

	local := model.Note{
		ID: 5, Type: model.TypeText, Title: "local title", Content: "local body",
		Metadata: model.BlankMetadata(), Added: added, Modified: modified,
		Status: model.StatusActive, Pinned: model.Unpinned,
	}

	t.Run("equal dates merge in place", func(t *testing.T) {
		t.Parallel()
		store := newMemStore()
		n := local
		store.notes[5] = &n
		store.refs[5] = []int64{1}
		store.labels[1] = &model.Label{ID: 1, Name: "a"}
		store.labels[2] = &model.Label{ID: 2, Name: "b"}
		store.nextNoteID = 6

		im, _ := newImporter(store)
		data := []byte(`{"notesData":{"version":4,
			"labels": {"2": {"name": "b"}},
			"notes": {"5": {
				"type": 0, "title": "incoming", "content": "incoming body",
				"metadata": "{\"type\":\"blank\"}",
				"added": "2024-01-02T10:00:00Z", "modified": "2024-01-03T11:00:00Z",
				"status": 0, "pinned": 1, "labels": [2],
				"reminder": {"start":"2024-06-01T08:00:00Z","recurrence":null,"next":"2024-06-01T08:00:00Z","count":0,"done":false}
			}}}}`)
		mustImport(t, im, data, nil, StatusSuccess)

		if len(store.notes) != 1 {
			t.Fatalf("in-place merge must not add rows: %d", len(store.notes))
		}
		got := store.notes[5]
		if got.Title != "local title" {
			t.Fatalf("local content must win: %+v", got)
		}
		if got.Reminder == nil || !got.Reminder.Start.Equal(time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)) {
			t.Fatalf("incoming reminder must be adopted when local has none: %+v", got.Reminder)
		}
		if refs := store.refs[5]; len(refs) != 2 || refs[0] != 1 || refs[1] != 2 {
			t.Fatalf("label union: %v", refs)
		}
	})

	t.Run("different dates insert a fresh row", func(t *testing.T) {
		t.Parallel()
		store := newMemStore()
		n := local
		store.notes[5] = &n
		store.nextNoteID = 6

		im, _ := newImporter(store)
		data := []byte(`{"notesData":{"version":4,"notes":{"5": {
			"type": 0, "title": "diverged", "content": "x",
			"metadata": "{\"type\":\"blank\"}",
			"added": "2024-01-02T10:00:00Z", "modified": "2030-01-01T00:00:00Z",
			"status": 0, "pinned": 1
		}}}}`)
		mustImport(t, im, data, nil, StatusSuccess)

		if len(store.notes) != 2 {
			t.Fatalf("diverged note must land as a new row: %+v", store.notes)
		}
		if store.notes[5].Title != "local title" {
			t.Fatalf("local note overwritten: %+v", store.notes[5])
		}
		if store.notes[6].Title != "diverged" {
			t.Fatalf("fresh row: %+v", store.notes[6])
		}
	})

	t.Run("reminder conflict inserts a fresh row", func(t *testing.T) {
		t.Parallel()
		store := newMemStore()
		n := local
		n.Reminder = &model.Reminder{Start: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}
		store.notes[5] = &n
		store.nextNoteID = 6

		im, _ := newImporter(store)
		data := []byte(`{"notesData":{"version":4,"notes":{"5": {
			"type": 0, "title": "incoming", "content": "x",
			"metadata": "{\"type\":\"blank\"}",
			"added": "2024-01-02T10:00:00Z", "modified": "2024-01-03T11:00:00Z",
			"status": 0, "pinned": 1,
			"reminder": {"start":"2024-07-01T00:00:00Z","recurrence":null,"next":"2024-07-01T00:00:00Z","count":0,"done":false}
		}}}}`)
		mustImport(t, im, data, nil, StatusSuccess)

		if len(store.notes) != 2 {
			t.Fatalf("conflicting reminder must not overwrite: %+v", store.notes)
		}
		if !store.notes[5].Reminder.Start.Equal(n.Reminder.Start) {
			t.Fatalf("local reminder changed: %+v", store.notes[5].Reminder)
		}
	})
}

func TestImportNormalizesPinState(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	im, _ := newImporter(store)

	// Archived but pinned in the backup; the import normalizes.
	data := []byte(`{"notesData":{"version":4,"notes":{"1": {
		"type": 0, "title": "t", "content": "",
		"metadata": "{\"type\":\"blank\"}",
		"added": "2024-01-02T10:00:00Z", "modified": "2024-01-03T11:00:00Z",
		"status": 1, "pinned": 2
	}}}}`)
	mustImport(t, im, data, nil, StatusSuccess)
	if got := store.notes[1]; got.Pinned != model.CantPin {
		t.Fatalf("archived note must lose its pin: %+v", got)
	}
}

func seedStore(t *testing.T, store *memStore) {
	t.Helper()
	ctx := context.Background()
	labels := memLabels{s: store}
	notes := memNotes{s: store}
	lid, err := labels.Insert(ctx, &model.Label{Name: "shopping", Hidden: true})
	if err != nil {
		t.Fatalf("seed label: %v", err)
	}
	added := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	id, err := notes.Insert(ctx, &model.Note{
		Type: model.TypeList, Title: "groceries", Content: "milk\neggs",
		Metadata: model.ListMetadata([]bool{true, false}),
		Added:    added, Modified: added.Add(time.Hour),
		Status: model.StatusActive, Pinned: model.Pinned,
		Reminder: &model.Reminder{
			Start:      time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC),
			Recurrence: "FREQ=WEEKLY",
			Next:       time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC),
		},
	})
	if err != nil {
		t.Fatalf("seed note: %v", err)
	}
	if err := notes.SetLabelIDs(ctx, id, []int64{lid}); err != nil {
		t.Fatalf("seed refs: %v", err)
	}
	if _, err := notes.Insert(ctx, &model.Note{
		Type: model.TypeText, Title: "ideas", Content: "plain text",
		Metadata: model.BlankMetadata(),
		Added:    added, Modified: added,
		Status: model.StatusArchived, Pinned: model.CantPin,
	}); err != nil {
		t.Fatalf("seed note: %v", err)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	t.Parallel()

	source := newMemStore()
	seedStore(t, source)
	ex := NewExporter(memNotes{s: source}, memLabels{s: source}, nil)

	data, err := ex.Export(context.Background())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	target := newMemStore()
	im, _ := newImporter(target)
	mustImport(t, im, data, nil, StatusSuccess)

	if len(target.notes) != len(source.notes) || len(target.labels) != len(source.labels) {
		t.Fatalf("round trip sizes: notes %d/%d labels %d/%d",
			len(target.notes), len(source.notes), len(target.labels), len(source.labels))
	}
	for id, want := range source.notes {
		got, ok := target.notes[id]
		if !ok {
			t.Fatalf("note %d missing after round trip", id)
		}
		if got.Title != want.Title || got.Content != want.Content || got.Type != want.Type ||
			got.Status != want.Status || got.Pinned != want.Pinned {
			t.Fatalf("note %d differs:\n got %+v\nwant %+v", id, got, want)
		}
		if (got.Reminder == nil) != (want.Reminder == nil) {
			t.Fatalf("note %d reminder presence differs", id)
		}
		if want.Reminder != nil && got.Reminder.Recurrence != want.Reminder.Recurrence {
			t.Fatalf("note %d recurrence %q, want %q", id, got.Reminder.Recurrence, want.Reminder.Recurrence)
		}
	}
	for id, want := range source.labels {
		got, ok := target.labels[id]
		if !ok || got.Name != want.Name || got.Hidden != want.Hidden {
			t.Fatalf("label %d differs: %+v vs %+v", id, got, want)
		}
	}
	if refs := target.refs[1]; len(refs) != 1 {
		t.Fatalf("label refs lost: %v", refs)
	}
}
