// Package config loads the wafcli TOML configuration.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

var ErrCredentialsFileRequired = errors.New("config: credentials_file is required")

// CLIConfig names the credential source and optional endpoint overrides for
// the wafcli tool.
type CLIConfig struct {
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	ConnectString   string `toml:"connect_string"`
	CredentialsFile string `toml:"credentials_file"`
}

func Load(path string) (CLIConfig, error) {
	var cfg CLIConfig
	if err := loadToml(path, &cfg); err != nil {
		return CLIConfig{}, err
	}
	if cfg.CredentialsFile == "" {
		return CLIConfig{}, ErrCredentialsFileRequired
	}
	if cfg.Port != 0 && (cfg.Port < 1 || cfg.Port > 65535) {
		return CLIConfig{}, fmt.Errorf("config: port out of range: %d", cfg.Port)
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := toml.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}
