package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"handvault/internal/importer"
	"handvault/internal/parser"
)

var (
	importSite string
	noProgress bool
)

var importCmd = &cobra.Command{
	Use:   "import [paths...]",
	Short: "Import hand history files or directories",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		im := importer.New(cfg, st, parser.NewRegistry())
		defer im.Close()
		if !noProgress {
			im.Progress = func(p importer.Progress) {
				fmt.Fprintf(cmd.OutOrStdout(), "[%d/%d] %s: %d stored\n",
					p.Current, p.Total, p.Path, p.Stored)
			}
		}

		added := false
		for _, path := range args {
			if im.AddBulkImportFileOrDir(cmd.Context(), path, importSite) {
				added = true
			}
		}
		if !added {
			return fmt.Errorf("no importable files found")
		}

		t, err := im.RunImport(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(),
			"%d hands: %d stored, %d duplicates, %d partial, %d skipped, %d errors in %s\n",
			t.Hands, t.Stored, t.Duplicates, t.Partial, t.Skipped, t.Errors,
			t.Elapsed.Round(time.Millisecond))
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importSite, "site", "auto", "site format, or auto to probe each file")
	importCmd.Flags().BoolVar(&noProgress, "no-progress", false, "suppress per-file progress output")
}
