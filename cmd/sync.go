package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"prmerit/internal/errs"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Record historical merged pull requests from the code host",
	Long:  "Walks closed pull requests newest-first and records every merged one. Recording is idempotent; evaluation happens separately via backfill.",
	RunE: withApp(func(cmd *cobra.Command, svcs services) error {
		orgID, _ := cmd.Flags().GetUint64("org-id")
		repoID, _ := cmd.Flags().GetUint64("repo-id")
		months, _ := cmd.Flags().GetInt("months")
		if orgID == 0 || repoID == 0 {
			return fmt.Errorf("--org-id and --repo-id are required")
		}

		result, err := svcs.Pipeline.SyncRepo(cmd.Context(), orgID, repoID, months)
		if err != nil {
			return errs.Wrap(err, "sync repository")
		}

		fmt.Fprintf(cmd.OutOrStdout(), "pages=%d fetched=%d merged=%d inserted=%d updated=%d\n",
			result.Pages, result.Fetched, result.Matched, result.Inserted, result.Updated)
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().Uint64("org-id", 0, "Organization id")
	syncCmd.Flags().Uint64("repo-id", 0, "Tracked repository id")
	syncCmd.Flags().Int("months", 0, "Lookback window in months (0 uses the configured default)")
}
