// Package config loads the store configuration from config.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/neurodata/internal/paths"
	"github.com/mesh-intelligence/neurodata/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	// envPrefix maps NEURODATA_SYNC_STRATEGY to sync_strategy and so on.
	envPrefix = "NEURODATA"
)

// Config keys.
const (
	KeyBackend                 = "backend"
	KeyDataDir                 = "data_dir"
	KeyAllowExternalReferences = "allow_external_references"
	KeySyncStrategy            = "sync_strategy"
)

// defaultConfigYAML is written to config.yaml the first time a config
// directory is used.
const defaultConfigYAML = `# neurodata store configuration

# Storage backend
backend: sqlite

# Data directory (optional; NEURODATA_DATA_DIR or the platform default otherwise)
# data_dir:

# Allow references between collections
allow_external_references: false

# When JSONL files are written: immediate or on_close
sync_strategy: immediate
`

// Load reads config.yaml from configDir, creating the directory and a
// default file if missing, and returns a validated Config. Environment
// variables with the NEURODATA_ prefix override file values. DataDir is
// resolved with paths.ResolveDataDir, with dataDir taking precedence.
func Load(configDir, dataDir string) (types.Config, error) {
	v, err := read(configDir)
	if err != nil {
		return types.Config{}, err
	}

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.DataDir, err = paths.ResolveDataDir(dataDir, cfg.DataDir)
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve data dir: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return types.Config{}, fmt.Errorf("invalid config in %s: %w", filepath.Join(configDir, configFileExt), err)
	}
	return cfg, nil
}

func read(configDir string) (*viper.Viper, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(KeyBackend, types.BackendSQLite)
	v.SetDefault(KeyDataDir, "")
	v.SetDefault(KeyAllowExternalReferences, false)
	v.SetDefault(KeySyncStrategy, types.SyncImmediate)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// ensureDefaultConfigFile writes the default config.yaml unless one exists.
func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, configFileExt)

	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}
