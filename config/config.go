// Package config loads the node's YAML configuration file and layers the
// --port command-line flag over it, the way Klingon's node package layers
// its CLI flags over config.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the default configuration file name, looked for in DataDir.
const FileName = "simplechain.yaml"

// DefaultPort is the listen port used when neither the config file nor the
// --port flag specify one (spec §6 CLI surface).
const DefaultPort = 5000

// LoggingConfig controls the node's structured logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Config holds everything needed to start one node, short of the port,
// which --port may override after loading.
type Config struct {
	// Port is the HTTP listen port; also selects the persisted state and
	// wallet file names (blockchain-<port>.txt, wallet-<port>.txt).
	Port int `yaml:"port"`

	// DataDir is the directory state and wallet files are written to.
	DataDir string `yaml:"data_dir"`

	// Peers lists peer endpoints to seed the peer registry with on a
	// fresh node (ignored once a state file already lists peers).
	Peers []string `yaml:"peers"`

	Logging LoggingConfig `yaml:"logging"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Port:    DefaultPort,
		DataDir: ".",
		Peers:   []string{},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads path if it exists and overlays it onto Default(); a missing
// file is not an error — it means run with defaults, mirroring LoadConfig's
// "create one with default values" behavior, except simplechain does not
// write the file back on a cold start (a node may never want one).
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML, creating its directory if necessary.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("config: create directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// PathIn returns the conventional config file path within dataDir.
func PathIn(dataDir string) string {
	return filepath.Join(dataDir, FileName)
}
