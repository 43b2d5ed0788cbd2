package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/notekeep/notekeep/internal/backup"
)

// defaultBackupName names an export written without --out.
func defaultBackupName(now time.Time) string {
	return "notekeep-" + now.Format("20060102-150405") + ".json"
}

func newExportCmd(app *App) *cobra.Command {
	var out string
	var password string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write all notes and labels as a JSON backup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ex := backup.NewExporter(app.noteRepo, app.labelRepo, app.Log)
			var data []byte
			var err error
			if password != "" {
				data, err = ex.ExportEncrypted(cmd.Context(), []byte(password))
			} else {
				data, err = ex.Export(cmd.Context())
			}
			if err != nil {
				return err
			}
			if out == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if out == "" {
				out = defaultBackupName(time.Now())
			}
			if err := os.WriteFile(out, data, 0o600); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default a timestamped name), - for stdout")
	cmd.Flags().StringVarP(&password, "password", "p", "", "encrypt the backup with this password")
	return cmd
}

func newImportCmd(app *App) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Merge a JSON backup into the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readAll(args[0])
			if err != nil {
				return err
			}
			im := backup.NewImporter(app.noteRepo, app.labelRepo, app.Sched, app.Log)

			var key []byte
			status, err := im.Import(cmd.Context(), data, nil)
			if status == backup.StatusKeyMissingOrIncorrect && password != "" {
				// The first probe recorded the envelope salt; derive and retry.
				if key, err = im.KeyFromPassword([]byte(password)); err != nil {
					return err
				}
				status, err = im.Import(cmd.Context(), data, key)
			}
			if err != nil {
				return err
			}
			if status != backup.StatusSuccess && status != backup.StatusFutureVersion {
				return fmt.Errorf("import failed: %s", status)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "password for encrypted backups")
	return cmd
}
