package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newRecordTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "record-types",
		Short: "List cached record types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, false)
			if err != nil {
				return err
			}
			defer a.close()

			rts, err := a.cache.RecordTypes(cmd.Context())
			if err != nil {
				return err
			}
			if flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), rts)
			}
			if len(rts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No record types cached; run 'fieldsurvey refresh'.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDEVELOPER NAME\tLABEL\tTITLE FIELD")
			for _, rt := range rts {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", rt.ID, rt.DeveloperName, rt.Label, rt.CompactLayoutTitle)
			}
			return tw.Flush()
		},
	}
}

func newLayoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "layout <record-type-id>",
		Short: "Show the cached edit layout of a record type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, false)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			layoutID, err := a.cache.LayoutForRecordType(ctx, args[0])
			if err != nil {
				return err
			}
			detail, err := a.cache.BuildLayoutDetail(ctx, layoutID)
			if err != nil {
				return err
			}
			if flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), detail)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Layout %s\n", detail.ID)
			for _, s := range detail.Sections {
				fmt.Fprintf(out, "\n[%s] (%d columns)\n", s.Title, s.Columns)
				for _, f := range s.Data {
					marker := ""
					if f.Required {
						marker = " *"
					}
					fmt.Fprintf(out, "  %-30s %-12s %s%s\n", f.Name, f.Type, f.Label, marker)
				}
			}
			return nil
		},
	}
}
