package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/fieldsurvey/internal/paths"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration and local storage",
		Long:  "Create the configuration directory with a default config.yaml, then create the local cache.",
		Args:  cobra.NoArgs,
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	configDir, err := resolveConfigDir()
	if err != nil {
		return &ExitError{Code: exitSysError, Err: fmt.Errorf("resolve config dir: %w", err)}
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return &ExitError{Code: exitSysError, Err: fmt.Errorf("create config directory: %w", err)}
	}
	dataDir := flags.dataDir
	if dataDir != "" {
		if dataDir, err = filepath.Abs(dataDir); err != nil {
			return &ExitError{Code: exitSysError, Err: err}
		}
	}
	created, err := writeConfigIfMissing(paths.ConfigFile(configDir), dataDir)
	if err != nil {
		return &ExitError{Code: exitSysError, Err: fmt.Errorf("write config: %w", err)}
	}

	a, err := openApp(cmd, false)
	if err != nil {
		return &ExitError{Code: exitSysError, Err: err}
	}
	defer a.close()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "fieldsurvey initialized")
	if created {
		fmt.Fprintln(out, "  config:", paths.ConfigFile(configDir), "(created)")
	} else {
		fmt.Fprintln(out, "  config:", paths.ConfigFile(configDir))
	}
	fmt.Fprintln(out, "  data:  ", a.dataDir)
	return nil
}
