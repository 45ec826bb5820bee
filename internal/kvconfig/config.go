// Package kvconfig loads store configuration from a JSON-with-comments
// file, with CLI flag overrides layered on top (spec.md §6).
package kvconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/tailscale/hujson"
)

// Config holds the options cmd/kvstorecli needs to open a store.
type Config struct {
	DataDir      string `json:"data_dir"`      //nolint:tagliatelle
	UserDataSize uint64 `json:"user_data_size"` //nolint:tagliatelle
	LogPath      string `json:"log_path"`       //nolint:tagliatelle
}

// DefaultConfig mirrors the teacher's DefaultConfig: sensible defaults that
// validate on their own.
func DefaultConfig() Config {
	return Config{
		DataDir:      ".kvstore",
		UserDataSize: 1 << 20,
		LogPath:      ".kvstore/kvstore.log",
	}
}

var errDataDirEmpty = errors.New("kvconfig: data_dir must not be empty")

// Load reads configFile (if non-empty and present) and layers cliOverrides
// on top of the defaults, the same precedence shape as the teacher's
// LoadConfig (defaults → file → CLI overrides), minus the
// global/project-file distinction this single-user CLI doesn't need.
func Load(configFile string, cliOverrides Config, override OverrideSet) (Config, error) {
	cfg := DefaultConfig()

	if configFile != "" {
		fileCfg, err := loadFile(configFile)
		if err != nil {
			return Config{}, err
		}

		cfg = mergeConfig(cfg, fileCfg)
	}

	if override.DataDir {
		cfg.DataDir = cliOverrides.DataDir
	}

	if override.UserDataSize {
		cfg.UserDataSize = cliOverrides.UserDataSize
	}

	if override.LogPath {
		cfg.LogPath = cliOverrides.LogPath
	}

	if cfg.DataDir == "" {
		return Config{}, errDataDirEmpty
	}

	return cfg, nil
}

// OverrideSet records which CLI flags the user actually passed, so an
// unset flag doesn't clobber a value already set in the config file.
type OverrideSet struct {
	DataDir      bool
	UserDataSize bool
	LogPath      bool
}

func loadFile(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, nil
		}

		return Config{}, fmt.Errorf("kvconfig: read %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("kvconfig: %s: invalid JSONC: %w", path, err)
	}

	var cfg Config

	err = json.Unmarshal(standardized, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("kvconfig: %s: invalid JSON: %w", path, err)
	}

	return cfg, nil
}

func mergeConfig(base, overlay Config) Config {
	if overlay.DataDir != "" {
		base.DataDir = overlay.DataDir
	}

	if overlay.UserDataSize != 0 {
		base.UserDataSize = overlay.UserDataSize
	}

	if overlay.LogPath != "" {
		base.LogPath = overlay.LogPath
	}

	return base
}
