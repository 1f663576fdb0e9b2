package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// WhitelistEntry seeds the token registry at startup. Amounts are decimal
// strings in the asset's smallest unit; an empty MaxAmount means unbounded.
type WhitelistEntry struct {
	Asset     string `toml:"Asset"`
	MaxAmount string `toml:"MaxAmount"`
}

type Config struct {
	RPCAddress  string           `toml:"RPCAddress"`
	DataDir     string           `toml:"DataDir"`
	NetworkName string           `toml:"NetworkName"`
	AdminAddr   string           `toml:"AdminAddress"`
	SwapFeeBps  uint64           `toml:"SwapFeeBps"`
	Whitelist   []WhitelistEntry `toml:"Whitelist"`
}

const defaultConfigTemplate = `RPCAddress = "127.0.0.1:8645"
DataDir = "./piggyvault-data"
NetworkName = "piggyvault-local"
AdminAddress = ""
SwapFeeBps = 30
`

// Load loads the configuration from the given path, creating a commented
// default file when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func createDefault(path string) (*Config, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	if err := os.WriteFile(path, []byte(defaultConfigTemplate), 0o644); err != nil {
		return nil, err
	}
	cfg := &Config{}
	if _, err := toml.Decode(defaultConfigTemplate, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = "127.0.0.1:8645"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./piggyvault-data"
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "piggyvault-local"
	}
	if cfg.SwapFeeBps == 0 {
		cfg.SwapFeeBps = 30
	}
}

func validate(cfg *Config) error {
	if cfg.SwapFeeBps > 50 {
		return fmt.Errorf("config: SwapFeeBps %d exceeds the 50 bps ceiling", cfg.SwapFeeBps)
	}
	for _, entry := range cfg.Whitelist {
		if strings.TrimSpace(entry.Asset) == "" {
			return fmt.Errorf("config: whitelist entry with empty asset")
		}
	}
	return nil
}
