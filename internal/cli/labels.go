package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLabelCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "label",
		Short: "Manage labels",
	}
	cmd.AddCommand(
		newLabelAddCmd(app),
		newLabelListCmd(app),
		newLabelRenameCmd(app),
		newLabelHideCmd(app),
		newLabelRmCmd(app),
		newLabelSetCmd(app),
	)
	return cmd
}

func newLabelAddCmd(app *App) *cobra.Command {
	var hidden bool
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a label",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := app.Labels.Create(cmd.Context(), args[0], hidden)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().BoolVar(&hidden, "hidden", false, "exclude labeled notes from active listings")
	return cmd
}

func newLabelListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List labels by name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			labels, err := app.Labels.List(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), labels)
		},
	}
}

func newLabelRenameCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <name>",
		Short: "Rename a label",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return app.Labels.Rename(cmd.Context(), id, args[1])
		},
	}
}

func newLabelHideCmd(app *App) *cobra.Command {
	var show bool
	cmd := &cobra.Command{
		Use:   "hide <id>",
		Short: "Hide or unhide a label",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return app.Labels.SetHidden(cmd.Context(), id, !show)
		},
	}
	cmd.Flags().BoolVar(&show, "undo", false, "unhide instead")
	return cmd
}

func newLabelRmCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id...>",
		Short: "Delete labels and detach them from notes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, a := range args {
				id, err := parseID(a)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			return app.Labels.Delete(cmd.Context(), ids...)
		},
	}
}

func newLabelSetCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "set <note-id> [label-id...]",
		Short: "Replace a note's labels",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			noteID, err := parseID(args[0])
			if err != nil {
				return err
			}
			labelIDs := make([]int64, 0, len(args)-1)
			for _, a := range args[1:] {
				id, err := parseID(a)
				if err != nil {
					return err
				}
				labelIDs = append(labelIDs, id)
			}
			return app.Labels.SetNoteLabels(cmd.Context(), noteID, labelIDs)
		},
	}
}
