package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	require.Equal(t, "default", cfg.DefaultProfile)
	require.True(t, cfg.Client.Autosync)
	require.Equal(t, "patch", cfg.Client.UpdateMethod)
	require.Equal(t, 5*time.Minute, cfg.Client.VocabularyTTL)
	require.NoError(t, Validate(cfg))
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.Equal(t, Defaults().Client, cfg.Client)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
default_profile: staging
profiles:
  staging:
    endpoint: https://staging.example.org/api
    token: s3cret
client:
  autosync: false
  update_method: update
  vocabulary_ttl: 90s
log_file: /tmp/remora-test.log
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "staging", cfg.DefaultProfile)
	require.False(t, cfg.Client.Autosync)
	require.Equal(t, "update", cfg.Client.UpdateMethod)
	require.Equal(t, 90*time.Second, cfg.Client.VocabularyTTL)
	require.Equal(t, "/tmp/remora-test.log", cfg.LogFile)

	p, err := cfg.Profile("")
	require.NoError(t, err)
	require.Equal(t, "https://staging.example.org/api", p.Endpoint)
	require.Equal(t, "s3cret", p.Token)

	_, err = cfg.Profile("production")
	require.Error(t, err)
}

func TestLoad_PartialFileKeepsRemainingDefaults(t *testing.T) {
	path := writeConfig(t, `
client:
  autosync: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.False(t, cfg.Client.Autosync)
	require.Equal(t, "patch", cfg.Client.UpdateMethod)
	require.Equal(t, 5*time.Minute, cfg.Client.VocabularyTTL)
}

func TestLoad_RejectsInvalidConfig(t *testing.T) {
	path := writeConfig(t, `
client:
  update_method: merge
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"empty update method", func(c *Config) { c.Client.UpdateMethod = "" }, false},
		{"bad update method", func(c *Config) { c.Client.UpdateMethod = "merge" }, true},
		{"negative ttl", func(c *Config) { c.Client.VocabularyTTL = -time.Second }, true},
		{"profile without endpoint", func(c *Config) {
			c.Profiles = map[string]Profile{"default": {}}
		}, true},
		{"default profile missing", func(c *Config) {
			c.Profiles = map[string]Profile{"other": {Endpoint: "https://x"}}
		}, true},
		{"default profile present", func(c *Config) {
			c.Profiles = map[string]Profile{"default": {Endpoint: "https://x"}}
		}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(&cfg)
			err := Validate(cfg)
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, WriteDefaultConfig(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "default", cfg.DefaultProfile)
	p, err := cfg.Profile("")
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8080/api", p.Endpoint)
}
