package model

import (
	"strings"
	"testing"
)

func TestParseMetadata(t *testing.T) {
	t.Parallel()

	m, err := ParseMetadata(`{"type":"blank"}`)
	if err != nil {
		t.Fatalf("blank: %v", err)
	}
	if m.Type != "blank" || len(m.Checked) != 0 {
		t.Fatalf("bad blank metadata: %+v", m)
	}

	m, err = ParseMetadata(`{"type":"list","checked":[true,false]}`)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if m.Type != "list" || len(m.Checked) != 2 || !m.Checked[0] || m.Checked[1] {
		t.Fatalf("bad list metadata: %+v", m)
	}

	if _, err := ParseMetadata(`{"type":"video"}`); err == nil {
		t.Fatalf("want error on unknown type")
	}
	if _, err := ParseMetadata(`{`); err == nil {
		t.Fatalf("want error on bad json")
	}
}

func TestMetadataEncodeRoundTrip(t *testing.T) {
	t.Parallel()

	m := ListMetadata([]bool{false, true})
	got, err := ParseMetadata(m.Encode())
	if err != nil {
		t.Fatalf("ParseMetadata: %v", err)
	}
	if got.Type != "list" || len(got.Checked) != 2 || got.Checked[0] || !got.Checked[1] {
		t.Fatalf("round trip lost data: %+v", got)
	}
}

func TestNormalizeLabelName(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"  work  ":        "work",
		"two   words":     "two words",
		"\ttabs\nand\n x": "tabs and x",
		"":                "",
	}
	for in, want := range cases {
		if got := NormalizeLabelName(in); got != want {
			t.Fatalf("NormalizeLabelName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCheckInvariant(t *testing.T) {
	t.Parallel()

	ok := Note{Status: StatusActive, Pinned: Unpinned}
	if err := ok.CheckInvariant(); err != nil {
		t.Fatalf("active unpinned: %v", err)
	}
	ok = Note{Status: StatusArchived, Pinned: CantPin}
	if err := ok.CheckInvariant(); err != nil {
		t.Fatalf("archived cantpin: %v", err)
	}

	bad := Note{Status: StatusActive, Pinned: CantPin}
	if err := bad.CheckInvariant(); err == nil {
		t.Fatalf("want error for active CantPin")
	}
	bad = Note{Status: StatusDeleted, Pinned: Pinned}
	if err := bad.CheckInvariant(); err == nil {
		t.Fatalf("want error for trashed pinned")
	}
}

func TestWithStatusAdjustsPin(t *testing.T) {
	t.Parallel()

	n := Note{Status: StatusActive, Pinned: Pinned}

	archived := n.WithStatus(StatusArchived)
	if archived.Pinned != CantPin {
		t.Fatalf("archiving should clear pin, got %d", archived.Pinned)
	}
	if err := archived.CheckInvariant(); err != nil {
		t.Fatalf("invariant after archive: %v", err)
	}

	restored := archived.WithStatus(StatusActive)
	if restored.Pinned != Unpinned {
		t.Fatalf("restore should yield Unpinned, got %d", restored.Pinned)
	}
}

func TestIsBlank(t *testing.T) {
	t.Parallel()

	blank := Note{Type: TypeText, Metadata: BlankMetadata()}
	if !blank.IsBlank() {
		t.Fatalf("empty text note should be blank")
	}
	titled := Note{Type: TypeText, Title: "x"}
	if titled.IsBlank() {
		t.Fatalf("titled note is not blank")
	}
	// A list whose items are all whitespace still counts as blank.
	list := Note{Type: TypeList, Content: " \n\t", Metadata: ListMetadata([]bool{false, false})}
	if !list.IsBlank() {
		t.Fatalf("whitespace-only list should be blank")
	}
	list.Content = " \nmilk"
	if list.IsBlank() {
		t.Fatalf("list with an item is not blank")
	}
}

func TestListItemsProjection(t *testing.T) {
	t.Parallel()

	n := Note{
		Type:     TypeList,
		Content:  "a\nb\nc",
		Metadata: ListMetadata([]bool{true}),
	}
	items := n.ListItems()
	if len(items) != 3 {
		t.Fatalf("want 3 items, got %d", len(items))
	}
	if !items[0].Checked || items[1].Checked || items[2].Checked {
		t.Fatalf("missing checked flags should default to unchecked: %+v", items)
	}
	for i, it := range items {
		if it.ActualPos != i {
			t.Fatalf("item %d: ActualPos %d", i, it.ActualPos)
		}
	}

	text := Note{Type: TypeText, Content: "a\nb"}
	if text.ListItems() != nil {
		t.Fatalf("text note must not project items")
	}
}

func TestWithListItems(t *testing.T) {
	t.Parallel()

	n := Note{Type: TypeList}
	n = n.WithListItems([]ListItem{
		{Content: "one", Checked: true},
		{Content: "two"},
	})
	if n.Content != "one\ntwo" {
		t.Fatalf("content: %q", n.Content)
	}
	if len(n.Metadata.Checked) != 2 || !n.Metadata.Checked[0] || n.Metadata.Checked[1] {
		t.Fatalf("checked: %+v", n.Metadata.Checked)
	}
}

func TestAsListNoteStripsBullets(t *testing.T) {
	t.Parallel()

	n := Note{Type: TypeText, Content: "- milk\n  * eggs\nplain\n+ bread"}
	got := n.AsListNote()
	if got.Type != TypeList {
		t.Fatalf("type not converted")
	}
	want := "milk\neggs\nplain\nbread"
	if got.Content != want {
		t.Fatalf("content %q, want %q", got.Content, want)
	}
	if len(got.Metadata.Checked) != 4 {
		t.Fatalf("checked flags: %+v", got.Metadata.Checked)
	}

	// Converting twice is a no-op.
	again := got.AsListNote()
	if again.Content != got.Content {
		t.Fatalf("second conversion changed content")
	}
}

func TestAsTextNote(t *testing.T) {
	t.Parallel()

	n := Note{Type: TypeList, Content: "a\nb\nc", Metadata: ListMetadata([]bool{false, true, false})}

	kept := n.AsTextNote(true)
	if kept.Type != TypeText || kept.Content != "a\nb\nc" {
		t.Fatalf("keepChecked: %+v", kept)
	}
	if kept.Metadata.Type != "blank" {
		t.Fatalf("metadata not reset: %+v", kept.Metadata)
	}

	dropped := n.AsTextNote(false)
	if dropped.Content != "a\nc" {
		t.Fatalf("dropChecked content %q", dropped.Content)
	}
	if strings.Contains(dropped.Content, "b") {
		t.Fatalf("checked item survived: %q", dropped.Content)
	}
}
