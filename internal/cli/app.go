package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/fieldsurvey/internal/describe"
	"github.com/mesh-intelligence/fieldsurvey/internal/logging"
	"github.com/mesh-intelligence/fieldsurvey/internal/remote"
	"github.com/mesh-intelligence/fieldsurvey/internal/settings"
	"github.com/mesh-intelligence/fieldsurvey/internal/sqlite"
	"github.com/mesh-intelligence/fieldsurvey/internal/survey"
	"github.com/mesh-intelligence/fieldsurvey/pkg/types"
)

// app bundles the components one command works with.
type app struct {
	cfg      appConfig
	dataDir  string
	log      *zap.Logger
	store    *sqlite.Store
	settings *settings.FileStore
	client   *remote.Client
	cache    *describe.Cache
	surveys  *survey.Service
}

// openApp loads configuration and attaches the local store. With withRemote
// set it also builds the Salesforce client, which requires instance_url and
// access_token. The caller must call close.
func openApp(cmd *cobra.Command, withRemote bool) (*app, error) {
	configDir, err := resolveConfigDir()
	if err != nil {
		return nil, fmt.Errorf("resolve config dir: %w", err)
	}
	cfg, err := loadConfig(configDir)
	if err != nil {
		return nil, err
	}
	dataDir, err := resolveDataDir(cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}

	a := &app{
		cfg:     cfg,
		dataDir: dataDir,
		log:     logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr()),
	}
	sugar := a.log.Sugar()

	if withRemote {
		a.client, err = remote.New(remote.Config{
			InstanceURL: cfg.InstanceURL,
			AccessToken: cfg.AccessToken,
			APIVersion:  cfg.APIVersion,
			ObjectName:  cfg.ObjectName,
			Language:    cfg.Language,
			Timeout:     cfg.HTTPTimeout,
			MaxRetries:  cfg.MaxRetries,
		}, remote.WithLogger(sugar))
		if err != nil {
			return nil, &ExitError{Code: exitUserError, Err: fmt.Errorf("remote config: %w", err)}
		}
	}

	a.store = sqlite.NewStore(sqlite.WithLogger(sugar))
	if err := a.store.Attach(types.Config{
		Backend:     types.BackendSQLite,
		DataDir:     dataDir,
		BusyTimeout: cfg.BusyTimeout,
	}); err != nil {
		return nil, fmt.Errorf("attach local store: %w", err)
	}

	a.settings, err = settings.Open(filepath.Join(dataDir, settings.DirName))
	if err != nil {
		a.store.Detach()
		return nil, err
	}

	var metadata types.MetadataClient
	if a.client != nil {
		metadata = a.client
	}
	a.cache = describe.New(a.store, metadata, a.settings, describe.WithLogger(sugar))
	a.surveys = survey.NewService(a.store, a.cache, survey.WithLogger(sugar))
	return a, nil
}

func (a *app) close() {
	a.store.Detach()
	_ = a.log.Sync()
}
