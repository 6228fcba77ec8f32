package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/fieldsurvey/internal/logging"
	"github.com/mesh-intelligence/fieldsurvey/internal/paths"
	"github.com/mesh-intelligence/fieldsurvey/internal/remote"
	"github.com/mesh-intelligence/fieldsurvey/pkg/types"
)

// Config keys.
const (
	cfgKeyInstanceURL = "instance_url"
	cfgKeyAccessToken = "access_token"
	cfgKeyAPIVersion  = "api_version"
	cfgKeyObjectName  = "object_name"
	cfgKeyLanguage    = "language"
	cfgKeyDataDir     = "data_dir"
	cfgKeyLogLevel    = "log_level"
	cfgKeyLogFormat   = "log_format"
	cfgKeyHTTPTimeout = "http_timeout"
	cfgKeyMaxRetries  = "max_retries"
	cfgKeyBusyTimeout = "busy_timeout"
)

// envPrefix prefixes environment overrides, e.g. FIELDSURVEY_ACCESS_TOKEN.
const envPrefix = "FIELDSURVEY"

// appConfig is the resolved configuration.
type appConfig struct {
	InstanceURL string        `mapstructure:"instance_url"`
	AccessToken string        `mapstructure:"access_token"`
	APIVersion  string        `mapstructure:"api_version"`
	ObjectName  string        `mapstructure:"object_name"`
	Language    string        `mapstructure:"language"`
	DataDir     string        `mapstructure:"data_dir"`
	LogLevel    string        `mapstructure:"log_level"`
	LogFormat   string        `mapstructure:"log_format"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
	MaxRetries  uint64        `mapstructure:"max_retries"`
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`
}

// configFile is the structure written to a new config.yaml. The access
// token is left out; supply it through FIELDSURVEY_ACCESS_TOKEN.
type configFile struct {
	InstanceURL string `yaml:"instance_url"`
	APIVersion  string `yaml:"api_version"`
	ObjectName  string `yaml:"object_name"`
	Language    string `yaml:"language"`
	DataDir     string `yaml:"data_dir,omitempty"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	HTTPTimeout string `yaml:"http_timeout"`
	MaxRetries  uint64 `yaml:"max_retries"`
	BusyTimeout string `yaml:"busy_timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(cfgKeyInstanceURL, "")
	v.SetDefault(cfgKeyAccessToken, "")
	v.SetDefault(cfgKeyAPIVersion, remote.DefaultAPIVersion)
	v.SetDefault(cfgKeyObjectName, remote.DefaultObjectName)
	v.SetDefault(cfgKeyLanguage, remote.DefaultLanguage)
	v.SetDefault(cfgKeyDataDir, "")
	v.SetDefault(cfgKeyLogLevel, "info")
	v.SetDefault(cfgKeyLogFormat, logging.FormatConsole)
	v.SetDefault(cfgKeyHTTPTimeout, remote.DefaultTimeout)
	v.SetDefault(cfgKeyMaxRetries, remote.DefaultMaxRetries)
	v.SetDefault(cfgKeyBusyTimeout, types.DefaultBusyTimeout)
}

// loadConfig reads config.yaml from configDir, applies FIELDSURVEY_*
// environment overrides and returns the result. A missing config.yaml is not
// an error.
func loadConfig(configDir string) (appConfig, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return appConfig{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg appConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return appConfig{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// writeConfigIfMissing creates config.yaml with default values if the file
// does not exist. An existing file is left alone.
func writeConfigIfMissing(path, dataDir string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat config file: %w", err)
	}

	cfg := configFile{
		APIVersion:  remote.DefaultAPIVersion,
		ObjectName:  remote.DefaultObjectName,
		Language:    remote.DefaultLanguage,
		DataDir:     dataDir,
		LogLevel:    "info",
		LogFormat:   logging.FormatConsole,
		HTTPTimeout: remote.DefaultTimeout.String(),
		MaxRetries:  remote.DefaultMaxRetries,
		BusyTimeout: types.DefaultBusyTimeout.String(),
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	header := []byte("# fieldsurvey configuration. Environment variables FIELDSURVEY_<KEY> override these values.\n")
	if err := os.WriteFile(path, append(header, data...), 0o600); err != nil {
		return false, err
	}
	return true, nil
}

// resolveConfigDir returns the config directory from flag, env, or default.
func resolveConfigDir() (string, error) {
	return paths.ResolveConfigDir(flags.configDir)
}

// resolveDataDir returns the data directory from flag, config, or default.
func resolveDataDir(cfg appConfig) (string, error) {
	return paths.ResolveDataDir(flags.dataDir, cfg.DataDir)
}
