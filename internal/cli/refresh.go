package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/fieldsurvey/internal/describe"
)

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Download record types, layouts, picklists and labels",
		Long: "Replace the cached metadata with a fresh copy from Salesforce.\n" +
			"Requires instance_url and access_token.",
		Args: cobra.NoArgs,
		RunE: runRefresh,
	}
}

func runRefresh(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.close()

	errOut := cmd.ErrOrStderr()
	cache := describe.New(a.store, a.client, a.settings,
		describe.WithLogger(a.log.Sugar()),
		describe.WithProgress(func(step describe.Step) {
			fmt.Fprintln(errOut, "  done:", step)
		}))

	if err := cache.Refresh(cmd.Context()); err != nil {
		var re *describe.RefreshError
		if errors.As(err, &re) {
			a.log.Sugar().Debugw("refresh failure detail", "error", re.Err)
			return &ExitError{Code: exitSysError, Err: errors.New(re.Message)}
		}
		return err
	}

	rts, err := cache.RecordTypes(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Metadata refreshed: %d record types\n", len(rts))
	return nil
}
