package config

import (
	"fmt"
	"os"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/v2"
)

// LoadWithOverrides loads configuration for a source directory with CLI flag
// overrides applied on top of every other source. An explicit configPath
// skips discovery.
//
// Overrides use the same (nested) shape as the TOML config file,
// for example:
//
//	overrides := map[string]any{
//	  "selection": map[string]any{"primary": "last"},
//	  "detection": map[string]any{"exclude": []any{"vendor/**"}},
//	}
//
// Precedence: defaults → config file → env → overrides.
func LoadWithOverrides(sourceDir, configPath string, overrides map[string]any) (*Config, error) {
	if configPath == "" {
		configPath = Discover(sourceDir)
	} else if !fileExists(configPath) {
		return nil, fmt.Errorf("config file %s: %w", configPath, os.ErrNotExist)
	}
	return loadWithConfigPathAndOverrides(configPath, overrides)
}

func loadWithConfigPathAndOverrides(configPath string, overrides map[string]any) (*Config, error) {
	k := koanf.New(".")

	// 1) Defaults
	if err := loadDefaults(k); err != nil {
		return nil, err
	}
	// 2) Config file, then env (KEELSON_* prefix)
	if err := loadConfigFile(k, configPath); err != nil {
		return nil, err
	}
	if err := loadEnv(k); err != nil {
		return nil, err
	}
	// 3) Flags
	if err := loadOverrides(k, overrides); err != nil {
		return nil, err
	}

	// 4) Validate merged raw config and decode.
	cfg, err := decodeConfig(k.Raw())
	if err != nil {
		if configPath != "" {
			return nil, &FileError{Path: configPath, Err: err}
		}
		return nil, err
	}

	cfg.ConfigFile = configPath
	return cfg, nil
}

func loadOverrides(k *koanf.Koanf, overrides map[string]any) error {
	if len(overrides) == 0 {
		return nil
	}
	return k.Load(confmap.Provider(overrides, ""), nil)
}
