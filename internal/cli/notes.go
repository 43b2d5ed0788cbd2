package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/notekeep/notekeep/internal/model"
	"github.com/notekeep/notekeep/internal/search"
)

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("bad note id %q", arg)
	}
	return id, nil
}

func parseStatus(s string) (model.NoteStatus, error) {
	switch s {
	case "active":
		return model.StatusActive, nil
	case "archived":
		return model.StatusArchived, nil
	case "trash":
		return model.StatusDeleted, nil
	default:
		return 0, fmt.Errorf("bad status %q (want active, archived or trash)", s)
	}
}

func statusName(s model.NoteStatus) string {
	switch s {
	case model.StatusArchived:
		return "archived"
	case model.StatusDeleted:
		return "trash"
	default:
		return "active"
	}
}

// noteView is the JSON shape printed by show/list/search.
type noteView struct {
	ID       int64    `json:"id"`
	Type     string   `json:"type"`
	Title    string   `json:"title"`
	Content  string   `json:"content,omitempty"`
	Items    []string `json:"items,omitempty"`
	Status   string   `json:"status"`
	Pinned   bool     `json:"pinned"`
	Added    string   `json:"added"`
	Modified string   `json:"modified"`
	Labels   []int64  `json:"labels,omitempty"`
	Reminder string   `json:"reminder,omitempty"`
}

func viewNote(n *model.Note, labelIDs []int64) noteView {
	v := noteView{
		ID:       n.ID,
		Type:     "text",
		Title:    n.Title,
		Status:   statusName(n.Status),
		Pinned:   n.Pinned == model.Pinned,
		Added:    n.Added.Format("2006-01-02 15:04"),
		Modified: n.Modified.Format("2006-01-02 15:04"),
		Labels:   labelIDs,
	}
	if n.Type == model.TypeList {
		v.Type = "list"
		for _, it := range n.ListItems() {
			mark := "[ ]"
			if it.Checked {
				mark = "[x]"
			}
			v.Items = append(v.Items, mark+" "+it.Content)
		}
	} else {
		v.Content = n.Content
	}
	if rem := n.Reminder; rem != nil {
		v.Reminder = rem.Next.Format("2006-01-02 15:04")
		if rem.Recurrence != "" {
			v.Reminder += " (" + rem.Recurrence + ")"
		}
	}
	return v
}

func newAddCmd(app *App) *cobra.Command {
	var title string
	var asList bool
	cmd := &cobra.Command{
		Use:   "add [content]",
		Short: "Create a note (content from the argument or stdin)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var content string
			if len(args) == 1 {
				content = args[0]
			} else {
				b, err := readAll("-")
				if err != nil {
					return err
				}
				content = strings.TrimRight(string(b), "\n")
			}
			note := &model.Note{
				Type:    model.TypeText,
				Title:   title,
				Content: content,
				Status:  model.StatusActive,
				Pinned:  model.Unpinned,
			}
			if asList {
				*note = note.AsListNote()
			}
			id, err := app.Notes.Create(cmd.Context(), note)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "note title")
	cmd.Flags().BoolVarP(&asList, "list", "l", false, "create a checklist, one item per line")
	return cmd
}

func newListCmd(app *App) *cobra.Command {
	var status string
	var labelID int64
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notes, pinned first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := parseStatus(status)
			if err != nil {
				return err
			}
			var notes []model.Note
			if labelID != 0 {
				notes, err = app.Notes.ListByLabel(cmd.Context(), labelID, st)
			} else {
				notes, err = app.Notes.List(cmd.Context(), st)
			}
			if err != nil {
				return err
			}
			views := make([]noteView, 0, len(notes))
			for i := range notes {
				views = append(views, viewNote(&notes[i], nil))
			}
			return printJSON(cmd.OutOrStdout(), views)
		},
	}
	cmd.Flags().StringVarP(&status, "status", "s", "active", "active, archived or trash")
	cmd.Flags().Int64Var(&labelID, "label", 0, "restrict to a label id")
	return cmd
}

func newShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a single note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			n, labelIDs, err := app.Notes.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), viewNote(n, labelIDs))
		},
	}
}

// List previews show at least previewMinItems rows and grow to
// previewMaxItems when matches would otherwise be hidden.
const (
	previewMinItems = 3
	previewMaxItems = 6
)

// searchView is one search hit with match-highlighted previews.
type searchView struct {
	ID             int64    `json:"id"`
	Type           string   `json:"type"`
	Title          string   `json:"title"`
	Preview        string   `json:"preview,omitempty"`
	Items          []string `json:"items,omitempty"`
	More           int      `json:"more,omitempty"`
	MoreAllChecked bool     `json:"more_all_checked,omitempty"`
	Status         string   `json:"status"`
}

// markMatches brackets each match span so highlights survive plain output.
func markMatches(s string, matches []search.Match) string {
	if len(matches) == 0 {
		return s
	}
	var b strings.Builder
	prev := 0
	for _, m := range matches {
		b.WriteString(s[prev:m.Start])
		b.WriteString("[")
		b.WriteString(s[m.Start:m.End])
		b.WriteString("]")
		prev = m.End
	}
	b.WriteString(s[prev:])
	return b.String()
}

func searchPreview(n *model.Note, query string) searchView {
	v := searchView{
		ID:     n.ID,
		Type:   "text",
		Title:  markMatches(n.Title, search.FindMatches(n.Title, query, search.MaxTitleMatches)),
		Status: statusName(n.Status),
	}
	if n.Type != model.TypeList {
		matches := search.FindMatches(n.Content, query, search.MaxContentMatches)
		preview, shifted := search.Ellipsize(n.Content, matches, search.DefaultStartThreshold, search.DefaultMinContext)
		v.Preview = markMatches(preview, shifted)
		return v
	}

	v.Type = "list"
	items := n.ListItems()
	highlighted := make([]bool, len(items))
	matches := make([][]search.Match, len(items))
	for i, it := range items {
		matches[i] = search.FindMatches(it.Content, query, search.MaxItemMatches)
		highlighted[i] = len(matches[i]) > 0
	}
	pick := search.SelectPreviewItems(items, highlighted, previewMinItems, previewMaxItems)
	for _, i := range pick.Shown {
		mark := "[ ]"
		if items[i].Checked {
			mark = "[x]"
		}
		v.Items = append(v.Items, mark+" "+markMatches(items[i].Content, matches[i]))
	}
	v.More = pick.Overflow
	v.MoreAllChecked = pick.OverflowAllChecked
	return v
}

func newSearchCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search titles and content of non-trashed notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			notes, err := app.Notes.Search(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			views := make([]searchView, 0, len(notes))
			for i := range notes {
				views = append(views, searchPreview(&notes[i], args[0]))
			}
			return printJSON(cmd.OutOrStdout(), views)
		},
	}
}

func newPinCmd(app *App) *cobra.Command {
	var unpin bool
	cmd := &cobra.Command{
		Use:   "pin <id>",
		Short: "Pin or unpin an active note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return app.Notes.SetPinned(cmd.Context(), id, !unpin)
		},
	}
	cmd.Flags().BoolVarP(&unpin, "undo", "u", false, "unpin instead")
	return cmd
}

func setStatusCmd(app *App, use, short string, status model.NoteStatus) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return app.Notes.SetStatus(cmd.Context(), id, status)
		},
	}
}

func newArchiveCmd(app *App) *cobra.Command {
	return setStatusCmd(app, "archive", "Move a note to the archive", model.StatusArchived)
}

func newTrashCmd(app *App) *cobra.Command {
	return setStatusCmd(app, "trash", "Move a note to the trash", model.StatusDeleted)
}

func newRestoreCmd(app *App) *cobra.Command {
	return setStatusCmd(app, "restore", "Restore a note to active", model.StatusActive)
}

func newDeleteCmd(app *App) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "delete [id...]",
		Short: "Permanently delete trashed notes",
		RunE: func(cmd *cobra.Command, args []string) error {
			if all {
				return app.Notes.EmptyTrash(cmd.Context())
			}
			if len(args) == 0 {
				return fmt.Errorf("pass note ids or --all")
			}
			ids := make([]int64, 0, len(args))
			for _, a := range args {
				id, err := parseID(a)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			return app.Notes.DeleteForever(cmd.Context(), ids...)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "empty the whole trash")
	return cmd
}

func newPurgeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete trashed notes older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := app.Notes.PurgeTrash(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d\n", n)
			return nil
		},
	}
}
