package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// timeLayouts accepted by `remind set`, tried in order.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseWhen(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("bad time %q (want e.g. 2006-01-02 15:04)", s)
}

func newRemindCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Manage note reminders",
	}
	cmd.AddCommand(newRemindSetCmd(app), newRemindCancelCmd(app), newRemindDoneCmd(app))
	return cmd
}

func newRemindSetCmd(app *App) *cobra.Command {
	var rule string
	cmd := &cobra.Command{
		Use:   "set <id> <when>",
		Short: "Set or replace a note's reminder",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			when, err := parseWhen(args[1])
			if err != nil {
				return err
			}
			return app.Notes.SetReminder(cmd.Context(), id, when, rule)
		},
	}
	cmd.Flags().StringVar(&rule, "rrule", "", "RRULE recurrence, e.g. FREQ=DAILY;INTERVAL=2")
	return cmd
}

func newRemindCancelCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Remove a note's reminder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return app.Notes.RemoveReminder(cmd.Context(), id)
		},
	}
}

func newRemindDoneCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "done <id>",
		Short: "Mark the current occurrence as handled",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return app.Notes.MarkReminderDone(cmd.Context(), id)
		},
	}
}
