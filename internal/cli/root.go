// Package cli implements the fieldsurvey command-line interface.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/fieldsurvey/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	jsonMode  bool
}

var flags rootFlags

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

func userError(format string, args ...any) error {
	return &ExitError{Code: exitUserError, Err: fmt.Errorf(format, args...)}
}

// NewRootCmd creates the top-level "fieldsurvey" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "fieldsurvey",
		Short: "Offline survey cache synchronized with Salesforce",
		Long: "fieldsurvey caches Salesforce survey metadata and records in a local\n" +
			"SQLite database and pushes locally edited surveys back when online.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "data directory (default: data_dir from config or platform data dir)")
	root.PersistentFlags().BoolVar(&flags.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newRefreshCmd())
	root.AddCommand(newRecordTypesCmd())
	root.AddCommand(newLayoutCmd())
	root.AddCommand(newSurveyCmd())
	root.AddCommand(newSyncCmd())
	root.AddCommand(newClearCmd())

	return root
}

// Run executes the command line and returns the process exit code.
func Run(args []string, stdout, stderr io.Writer) int {
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err == nil {
		return exitSuccess
	}
	fmt.Fprintln(stderr, "Error:", err)
	return exitCode(err)
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	os.Exit(Run(os.Args[1:], os.Stdout, os.Stderr))
}

// exitCode maps an error to an exit code. Bad input and missing entities are
// user errors; everything else is a system error.
func exitCode(err error) int {
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	if errors.Is(err, types.ErrInvalidArgument) || errors.Is(err, types.ErrNotFound) {
		return exitUserError
	}
	var se *types.StorageError
	if errors.As(err, &se) || errors.Is(err, types.ErrRemote) {
		return exitSysError
	}
	// Cobra reports usage problems (unknown command, bad args) as plain errors.
	return exitUserError
}
