package cli

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/fieldsurvey/internal/survey"
	"github.com/mesh-intelligence/fieldsurvey/pkg/types"
)

func newSurveyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "survey",
		Short: "Create, edit and inspect local surveys",
	}
	cmd.AddCommand(
		newSurveyNewCmd(),
		newSurveySetCmd(),
		newSurveyShowCmd(),
		newSurveyListCmd(),
		newSurveyDeleteCmd(),
		newSurveyExportCmd(),
		newSurveyImportCmd(),
	)
	return cmd
}

func parseLocalID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, userError("invalid survey id %q", arg)
	}
	return id, nil
}

func newSurveyNewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "new <record-type-id>",
		Short: "Start a new survey",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, false)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			if _, err := a.cache.LayoutForRecordType(ctx, args[0]); err != nil {
				return userError("unknown record type %q (run 'fieldsurvey record-types')", args[0])
			}
			r, err := a.surveys.New(ctx, args[0])
			if err != nil {
				return err
			}
			if flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), r)
			}
			id, _ := r.LocalID()
			fmt.Fprintf(cmd.OutOrStdout(), "Created survey %d\n", id)
			return nil
		},
	}
}

func newSurveySetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <id> <field>=<value>...",
		Short: "Set survey fields",
		Long: "Set one or more fields of a survey. Values are converted using the\n" +
			"cached field types; the survey is marked UNSYNCED.",
		Example: "  fieldsurvey survey set 3 Site_Name__c='North ridge' Visited__c=true",
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseLocalID(args[0])
			if err != nil {
				return err
			}

			a, err := openApp(cmd, false)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			fieldTypes, err := a.cache.FieldTypes(ctx)
			if err != nil {
				return err
			}

			var values types.Record
			for _, arg := range args[1:] {
				name, raw, ok := strings.Cut(arg, "=")
				if !ok || name == "" {
					return userError("invalid assignment %q (expected field=value)", arg)
				}
				fieldType, known := fieldTypes[name]
				if !known && name != types.RecordTypeIDField {
					return userError("unknown field %q", name)
				}
				v, err := survey.ParseValue(fieldType, raw)
				if err != nil {
					return err
				}
				values.Set(name, v)
			}

			if err := a.surveys.SetFields(ctx, id, values); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated survey %d\n", id)
			return nil
		},
	}
}

func newSurveyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one survey",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseLocalID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd, false)
			if err != nil {
				return err
			}
			defer a.close()

			r, err := a.surveys.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), r)
		},
	}
}

func newSurveyListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List local surveys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, false)
			if err != nil {
				return err
			}
			defer a.close()

			rows, err := a.surveys.List(cmd.Context(), strings.ToUpper(status))
			if err != nil {
				return err
			}
			if flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), rows)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTATUS\tREMOTE ID\tRECORD TYPE\tUPDATED")
			for _, r := range rows {
				id, _ := r.LocalID()
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", id,
					r.Text(types.SyncStatusField),
					r.Text(types.RemoteIDField),
					r.Text(types.RecordTypeIDField),
					r.Text(types.UpdatedAtField))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only surveys with this sync status (SYNCED or UNSYNCED)")
	return cmd
}

func newSurveyDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a local survey",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseLocalID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd, false)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.surveys.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted survey %d\n", id)
			return nil
		},
	}
}

func newSurveyExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "Write all surveys to a JSON Lines file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, false)
			if err != nil {
				return err
			}
			defer a.close()

			n, err := a.surveys.Export(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d surveys to %s\n", n, args[0])
			return nil
		},
	}
}

func newSurveyImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Add the surveys of a JSON Lines file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, false)
			if err != nil {
				return err
			}
			defer a.close()

			n, err := a.surveys.Import(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d surveys from %s\n", n, args[0])
			return nil
		},
	}
}
