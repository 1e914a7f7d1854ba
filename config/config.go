// Package config loads service configuration from an optional YAML file and
// the process environment. Environment variables win over the file, and the
// file wins over the defaults below.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/liamcoop/greenscore/gbdt"
)

// Defaults. New references them and no other code should duplicate them.
const (
	DefaultPort         = "8080"
	DefaultModelBackend = BackendFile
	DefaultModelPath    = "models/credit_risk.model.zst"
	DefaultModelName    = "credit-risk"
	DefaultContainer    = "models"
	DefaultRulesBackend = BackendMemory
	DefaultRulesTTL     = 5 * time.Minute
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendBlob     = "blob"
)

// Server holds HTTP listener settings.
type Server struct {
	Port string `yaml:"port"`
}

// Database holds the Postgres connection shared by the SQL-backed stores.
type Database struct {
	URL string `yaml:"url"`
}

// Store selects a persistence backend. Options are backend specific and are
// decoded by the backend itself.
type Store struct {
	Backend string         `yaml:"backend"`
	Options map[string]any `yaml:"options"`
}

// Rules configures the recommendation rule store and its cache.
type Rules struct {
	Backend  string        `yaml:"backend"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// Config is the top-level configuration.
type Config struct {
	Server   Server      `yaml:"server"`
	Database Database    `yaml:"database"`
	Model    Store       `yaml:"model"`
	Rules    Rules       `yaml:"rules"`
	Training gbdt.Params `yaml:"training"`
}

// New returns a Config with every default populated.
func New() *Config {
	return &Config{
		Server: Server{Port: DefaultPort},
		Model: Store{
			Backend: DefaultModelBackend,
			Options: map[string]any{
				"path":      DefaultModelPath,
				"name":      DefaultModelName,
				"container": DefaultContainer,
			},
		},
		Rules: Rules{
			Backend:  DefaultRulesBackend,
			CacheTTL: DefaultRulesTTL,
		},
		Training: gbdt.DefaultParams(),
	}
}

// Load reads path (when non-empty) over the defaults, then applies
// environment overrides. A missing file is an error; an empty path is not.
func Load(path string) (*Config, error) {
	cfg := New()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %q: %w", path, err)
		}
	}

	cfg.applyEnv()

	if cfg.Model.Options == nil {
		cfg.Model.Options = map[string]any{}
	}
	if _, ok := cfg.Model.Options["dsn"]; !ok && cfg.Database.URL != "" {
		cfg.Model.Options["dsn"] = cfg.Database.URL
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Server.Port, "PORT")
	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.Model.Backend, "MODEL_STORE")
	setString(&c.Rules.Backend, "RULES_STORE")

	for key, env := range map[string]string{
		"path":              "MODEL_PATH",
		"connection_string": "AZURE_STORAGE_CONNECTION_STRING",
		"container":         "MODEL_CONTAINER",
	} {
		if v := os.Getenv(env); v != "" {
			if c.Model.Options == nil {
				c.Model.Options = map[string]any{}
			}
			c.Model.Options[key] = v
		}
	}
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

// Validate checks backend names and that the SQL backends have a database.
func (c *Config) Validate() error {
	var errs []error

	switch c.Model.Backend {
	case BackendMemory, BackendFile, BackendBlob:
	case BackendPostgres:
		if c.Database.URL == "" && c.Model.Options["dsn"] == nil {
			errs = append(errs, fmt.Errorf("model backend %q requires DATABASE_URL", c.Model.Backend))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown model backend %q", c.Model.Backend))
	}

	switch c.Rules.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Database.URL == "" {
			errs = append(errs, fmt.Errorf("rules backend %q requires DATABASE_URL", c.Rules.Backend))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown rules backend %q", c.Rules.Backend))
	}

	if c.Server.Port == "" {
		errs = append(errs, errors.New("server port is empty"))
	}

	return errors.Join(errs...)
}
