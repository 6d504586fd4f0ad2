package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models missionctl.yml.
type Config struct {
	Team struct {
		Name string `yaml:"name"`
	} `yaml:"team"`
	Storage struct {
		DataDir    string `yaml:"data_dir"`
		ReportsDir string `yaml:"reports_dir"`
	} `yaml:"storage"`
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Auth struct {
		APIKeys []APIKey `yaml:"api_keys"`
	} `yaml:"auth"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// APIKey maps a static key to the team member who owns it.
type APIKey struct {
	Key   string `yaml:"key"`
	Owner string `yaml:"owner"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Types          []string `yaml:"types"`
	Secret         string   `yaml:"secret"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Enabled        *bool    `yaml:"enabled"`
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "missionctl.yml")
}

// Default returns the default Config rooted at a workspace.
func Default(workspace string) *Config {
	var cfg Config
	cfg.Team.Name = "mission-control"
	cfg.Storage.DataDir = filepath.Join(workspace, "data")
	cfg.Storage.ReportsDir = filepath.Join(workspace, "data", "reports")
	cfg.Server.Addr = "127.0.0.1:8080"
	cfg.Server.BasePath = "/v0"
	cfg.Log.Level = "info"
	cfg.Log.Format = "console"
	return &cfg
}

// Load reads missionctl.yml from the workspace, falling back to defaults
// when the file does not exist.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(workspace), nil
		}
		return nil, err
	}
	cfg, err := FromYAML(data)
	if err != nil {
		return nil, err
	}
	applyDefaults(cfg, workspace)
	return cfg, nil
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config, workspace string) {
	def := Default(workspace)
	if cfg.Team.Name == "" {
		cfg.Team.Name = def.Team.Name
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = def.Storage.DataDir
	}
	if cfg.Storage.ReportsDir == "" {
		cfg.Storage.ReportsDir = filepath.Join(cfg.Storage.DataDir, "reports")
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = def.Server.Addr
	}
	if cfg.Server.BasePath == "" {
		cfg.Server.BasePath = def.Server.BasePath
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = def.Log.Format
	}
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "", "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config.log.level %q is not one of trace, debug, info, warn, error", c.Log.Level)
	}
	switch c.Log.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("config.log.format %q must be json or console", c.Log.Format)
	}
	seen := map[string]struct{}{}
	for i, key := range c.Auth.APIKeys {
		if key.Key == "" {
			return fmt.Errorf("config.auth.api_keys[%d].key is empty", i)
		}
		if key.Owner == "" {
			return fmt.Errorf("config.auth.api_keys[%d].owner is empty", i)
		}
		if _, dup := seen[key.Key]; dup {
			return fmt.Errorf("config.auth.api_keys[%d] duplicates an earlier key", i)
		}
		seen[key.Key] = struct{}{}
	}
	for i, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("config.webhooks[%d].timeout_seconds must be >= 0", i)
		}
	}
	return nil
}

// KeyOwner resolves a configured API key to its owner.
func (c *Config) KeyOwner(key string) (string, bool) {
	for _, k := range c.Auth.APIKeys {
		if k.Key == key {
			return k.Owner, true
		}
	}
	return "", false
}
