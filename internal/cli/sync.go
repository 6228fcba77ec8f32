package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/fieldsurvey/internal/reconcile"
)

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push UNSYNCED surveys to Salesforce",
		Long: "Push every UNSYNCED survey. Surveys that fail stay UNSYNCED and are\n" +
			"retried by the next sync. Exits 1 when any survey failed.",
		Args: cobra.NoArgs,
		RunE: runSync,
	}
}

func runSync(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.close()

	errOut := cmd.ErrOrStderr()
	r := reconcile.New(a.store, a.client,
		reconcile.WithLogger(a.log.Sugar()),
		reconcile.WithFields(a.cache),
		reconcile.WithProgress(func(p reconcile.Progress) {
			state := "ok"
			if p.Err != nil {
				state = "failed"
			}
			fmt.Fprintf(errOut, "  [%d/%d] survey %d %s\n", p.Done, p.Total, p.LocalID, state)
		}))

	res, err := r.Run(cmd.Context())
	if err != nil {
		return err
	}

	if flags.jsonMode {
		failures := make([]map[string]any, 0, len(res.Failures))
		for _, f := range res.Failures {
			failures = append(failures, map[string]any{"localId": f.LocalID, "error": f.Err.Error()})
		}
		if err := printJSON(cmd.OutOrStdout(), map[string]any{
			"succeeded": res.Succeeded,
			"failed":    res.Failed,
			"failures":  failures,
		}); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Synced %d surveys, %d failed\n", res.Succeeded, res.Failed)
		for _, f := range res.Failures {
			fmt.Fprintf(cmd.OutOrStdout(), "  survey %d: %v\n", f.LocalID, f.Err)
		}
	}

	if res.Failed > 0 {
		return userError("%d surveys failed to sync", res.Failed)
	}
	return nil
}
