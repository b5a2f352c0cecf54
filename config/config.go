// Package config provides configuration types, defaults and persistence
// for remora.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/remoraproj/remora/internal/log"
)

// Profile names one API endpoint and the credentials to reach it. Users
// typically keep one profile per deployment (production, staging, local).
type Profile struct {
	Endpoint string `mapstructure:"endpoint"`
	Token    string `mapstructure:"token"`
}

// ClientConfig holds the knobs of the synchronization layer.
type ClientConfig struct {
	// Autosync commits attribute writes to the server immediately.
	Autosync bool `mapstructure:"autosync"`

	// UpdateMethod selects how local changes are pushed: "patch" sends
	// only the changed fields, "update" sends the full entity.
	UpdateMethod string `mapstructure:"update_method"`

	// VocabularyTTL is how long a fetched vocabulary snapshot stays
	// fresh.
	VocabularyTTL time.Duration `mapstructure:"vocabulary_ttl"`
}

// Config holds all configuration options for remora.
type Config struct {
	DefaultProfile string             `mapstructure:"default_profile"`
	Profiles       map[string]Profile `mapstructure:"profiles"`
	Client         ClientConfig       `mapstructure:"client"`

	// LogFile enables debug logging to the given path.
	LogFile string `mapstructure:"log_file"`
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		DefaultProfile: "default",
		Profiles:       map[string]Profile{},
		Client: ClientConfig{
			Autosync:      true,
			UpdateMethod:  "patch",
			VocabularyTTL: 5 * time.Minute,
		},
	}
}

// Profile resolves a profile by name; the empty name selects the default
// profile.
func (c Config) Profile(name string) (Profile, error) {
	if name == "" {
		name = c.DefaultProfile
	}
	p, ok := c.Profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("profile %q is not configured", name)
	}
	return p, nil
}

// Validate checks the configuration for errors. Empty values fall back to
// defaults and are valid.
func Validate(cfg Config) error {
	switch cfg.Client.UpdateMethod {
	case "", "patch", "update":
	default:
		return fmt.Errorf("client.update_method must be \"patch\" or \"update\", got %q",
			cfg.Client.UpdateMethod)
	}
	if cfg.Client.VocabularyTTL < 0 {
		return fmt.Errorf("client.vocabulary_ttl must not be negative, got %v",
			cfg.Client.VocabularyTTL)
	}
	for name, p := range cfg.Profiles {
		if p.Endpoint == "" {
			return fmt.Errorf("profile %q: endpoint is required", name)
		}
	}
	if len(cfg.Profiles) > 0 && cfg.DefaultProfile != "" {
		if _, ok := cfg.Profiles[cfg.DefaultProfile]; !ok {
			return fmt.Errorf("default_profile %q is not among the configured profiles",
				cfg.DefaultProfile)
		}
	}
	return nil
}

// Load reads the configuration. An explicit path wins; otherwise
// .remora/config.yaml in the working directory is tried, then
// ~/.config/remora/config.yaml. A missing file yields the defaults.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("remora")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := Defaults()
	v.SetDefault("default_profile", defaults.DefaultProfile)
	v.SetDefault("client.autosync", defaults.Client.Autosync)
	v.SetDefault("client.update_method", defaults.Client.UpdateMethod)
	v.SetDefault("client.vocabulary_ttl", defaults.Client.VocabularyTTL)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		if _, err := os.Stat(".remora/config.yaml"); err == nil {
			v.SetConfigFile(".remora/config.yaml")
		} else if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "remora"))
			v.SetConfigName("config")
			v.SetConfigType("yaml")
		}
	}

	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound && !os.IsNotExist(err) {
			log.ErrorErr(log.CatConfig, "failed to read config", err, "path", path)
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := defaults
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	log.Debug(log.CatConfig, "config loaded",
		"file", v.ConfigFileUsed(), "profiles", len(cfg.Profiles))
	return cfg, nil
}

// DefaultConfigTemplate returns the default config as a YAML string with
// comments.
func DefaultConfigTemplate() string {
	return `# Remora Configuration

# Profile used when none is named explicitly
default_profile: default

# Named API profiles
profiles:
  default:
    endpoint: http://localhost:8080/api
    # token: <api token>

# Synchronization layer settings
client:
  autosync: true          # Commit attribute writes to the server immediately
  update_method: patch    # "patch" sends changed fields, "update" the full entity
  vocabulary_ttl: 5m      # How long a vocabulary snapshot stays fresh

# Enable debug logging to a file
# log_file: /tmp/remora.log
`
}

// WriteDefaultConfig creates a config file at the given path with default
// settings and comments. Creates the parent directory if needed.
func WriteDefaultConfig(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}
	log.Info(log.CatConfig, "created default config", "path", configPath)
	return nil
}
