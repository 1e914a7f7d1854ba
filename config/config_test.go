package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "DATABASE_URL", "MODEL_STORE", "MODEL_PATH",
		"AZURE_STORAGE_CONNECTION_STRING", "MODEL_CONTAINER", "RULES_STORE",
	} {
		t.Setenv(k, "")
	}
}

func TestNewDefaults(t *testing.T) {
	cfg := New()

	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, BackendFile, cfg.Model.Backend)
	assert.Equal(t, DefaultModelPath, cfg.Model.Options["path"])
	assert.Equal(t, BackendMemory, cfg.Rules.Backend)
	assert.Equal(t, DefaultRulesTTL, cfg.Rules.CacheTTL)
	assert.Equal(t, 100, cfg.Training.Trees)
	assert.Equal(t, 4, cfg.Training.MaxDepth)
	assert.InDelta(t, 0.1, cfg.Training.LearningRate, 0)
}

func TestLoadNoFile(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, New().Server, cfg.Server)
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, t.TempDir(), "greenscore.yaml", `
server:
  port: "9090"
model:
  backend: memory
rules:
  cache_ttl: 30s
training:
  trees: 20
  learning_rate: 0.3
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, BackendMemory, cfg.Model.Backend)
	assert.Equal(t, 30*time.Second, cfg.Rules.CacheTTL)
	assert.Equal(t, 20, cfg.Training.Trees)
	assert.InDelta(t, 0.3, cfg.Training.LearningRate, 0)
	assert.Equal(t, 4, cfg.Training.MaxDepth, "unset training fields keep defaults")
}

func TestLoadEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, t.TempDir(), "greenscore.yaml", `
server:
  port: "9090"
model:
  backend: file
  options:
    path: /from/file.zst
`)
	t.Setenv("PORT", "7000")
	t.Setenv("MODEL_PATH", "/from/env.zst")
	t.Setenv("DATABASE_URL", "postgres://localhost/greenscore")
	t.Setenv("RULES_STORE", BackendPostgres)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, "/from/env.zst", cfg.Model.Options["path"])
	assert.Equal(t, BackendPostgres, cfg.Rules.Backend)
	assert.Equal(t, "postgres://localhost/greenscore", cfg.Model.Options["dsn"])
}

func TestLoadBlobEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("MODEL_STORE", BackendBlob)
	t.Setenv("AZURE_STORAGE_CONNECTION_STRING", "UseDevelopmentStorage=true")
	t.Setenv("MODEL_CONTAINER", "artifacts")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, BackendBlob, cfg.Model.Backend)
	assert.Equal(t, "UseDevelopmentStorage=true", cfg.Model.Options["connection_string"])
	assert.Equal(t, "artifacts", cfg.Model.Options["container"])
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "bad yaml",
			yaml:    "server: [",
			wantErr: "parsing config",
		},
		{
			name:    "unknown model backend",
			env:     map[string]string{"MODEL_STORE": "s3"},
			wantErr: `unknown model backend "s3"`,
		},
		{
			name:    "postgres without database",
			env:     map[string]string{"MODEL_STORE": BackendPostgres},
			wantErr: "requires DATABASE_URL",
		},
		{
			name:    "unknown rules backend",
			env:     map[string]string{"RULES_STORE": "redis"},
			wantErr: `unknown rules backend "redis"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.yaml != "" {
				path = writeFile(t, t.TempDir(), "greenscore.yaml", tt.yaml)
			}

			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
