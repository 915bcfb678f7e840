package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"prmerit/internal/bootstrap/logging"
	"prmerit/internal/errs"
)

var initDbCmd = &cobra.Command{
	Use:   "initdb",
	Short: "Create or migrate the database schema",
	RunE: withApp(func(cmd *cobra.Command, svcs services) error {
		ctx := cmd.Context()
		if err := svcs.App.InitSchema(ctx); err != nil {
			return errs.Wrap(err, "init schema")
		}
		logging.Info(ctx, "database ready", slog.String("dsn", svcs.App.Config.Database.DSN))
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(initDbCmd)
}
