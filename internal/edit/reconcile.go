package edit

import (
	"github.com/notekeep/notekeep/internal/model"
)

// DateMode selects which timestamp, if any, heads the editor.
type DateMode int

const (
	DateNone DateMode = iota
	DateAdded
	DateModified
)

// Prefs are the display preferences the row projection depends on.
type Prefs struct {
	ShowDate            DateMode
	MoveCheckedToBottom bool
}

// RowKind discriminates editor rows.
type RowKind int

const (
	RowDate RowKind = iota
	RowTitle
	RowContent
	RowItem
	RowItemAdd
	RowCheckedHeader
	RowChips
)

// Row is one positionally ordered editor row. ActualPos is only meaningful
// for RowItem and is the item's index in the canonical order, never its
// visible index.
type Row struct {
	Kind      RowKind
	Text      string
	ActualPos int
	Checked   bool

	CheckedCount int // RowCheckedHeader

	Reminder *model.Reminder // RowChips
	Labels   []model.Label   // RowChips
}

// BuildRows deterministically projects a note, its items and chips into the
// ordered editor row list. Items keep their ActualPos through any visible
// reordering, so position-addressed undo actions stay valid.
func BuildRows(note model.Note, items []model.ListItem, labels []model.Label, prefs Prefs) []Row {
	var rows []Row

	switch prefs.ShowDate {
	case DateAdded:
		rows = append(rows, Row{Kind: RowDate, Text: note.Added.Format("2006-01-02 15:04")})
	case DateModified:
		rows = append(rows, Row{Kind: RowDate, Text: note.Modified.Format("2006-01-02 15:04")})
	}

	rows = append(rows, Row{Kind: RowTitle, Text: note.Title})

	if note.Type == model.TypeText {
		rows = append(rows, Row{Kind: RowContent, Text: note.Content})
	} else if prefs.MoveCheckedToBottom {
		checkedCount := 0
		for _, it := range items {
			if it.Checked {
				checkedCount++
				continue
			}
			rows = append(rows, itemRow(it))
		}
		rows = append(rows, Row{Kind: RowItemAdd})
		if checkedCount > 0 {
			rows = append(rows, Row{Kind: RowCheckedHeader, CheckedCount: checkedCount})
			for _, it := range items {
				if it.Checked {
					rows = append(rows, itemRow(it))
				}
			}
		}
	} else {
		for _, it := range items {
			rows = append(rows, itemRow(it))
		}
		rows = append(rows, Row{Kind: RowItemAdd})
	}

	if note.Reminder != nil || len(labels) > 0 {
		rows = append(rows, Row{Kind: RowChips, Reminder: note.Reminder, Labels: labels})
	}
	return rows
}

func itemRow(it model.ListItem) Row {
	return Row{Kind: RowItem, Text: it.Content, ActualPos: it.ActualPos, Checked: it.Checked}
}
