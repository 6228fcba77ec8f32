package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/fieldsurvey/pkg/types"
)

func newClearCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop every cached table, surveys included",
		Long: "Drop all cached metadata and surveys. Refuses while UNSYNCED surveys\n" +
			"exist unless --force is given.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, false)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			pending, err := a.surveys.List(ctx, types.SyncStatusUnsynced)
			if err != nil {
				return err
			}
			if len(pending) > 0 && !force {
				return userError("%d surveys are not synced; run 'fieldsurvey sync' or pass --force", len(pending))
			}
			if err := a.store.ClearDatabase(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Local cache cleared")
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "clear even when unsynced surveys exist")
	return cmd
}
