package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"prmerit/internal/errs"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Evaluate recorded pull requests that have no evaluation under the active ruleset",
	RunE: withApp(func(cmd *cobra.Command, svcs services) error {
		orgID, _ := cmd.Flags().GetUint64("org-id")
		repoID, _ := cmd.Flags().GetUint64("repo-id")
		if orgID == 0 {
			return fmt.Errorf("--org-id is required")
		}

		result, err := svcs.Pipeline.Backfill(cmd.Context(), orgID, repoID)
		if err != nil {
			return errs.Wrap(err, "backfill")
		}

		fmt.Fprintf(cmd.OutOrStdout(), "total=%d processed=%d failed=%d\n", result.Total, result.Processed, result.Failed)
		for _, item := range result.Items {
			if item.Err != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "  #%d failed: %s\n", item.Number, item.Err)
			}
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(backfillCmd)
	backfillCmd.Flags().Uint64("org-id", 0, "Organization id")
	backfillCmd.Flags().Uint64("repo-id", 0, "Tracked repository id (0 for all)")
}
