package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "./data", cfg.Paths.DataDir)
	assert.Equal(t, "raw/overview/json", cfg.Paths.ChunksDir)
	assert.Equal(t, 10, cfg.Fusion.BatchSize)
	assert.Equal(t, 1000, cfg.Importer.BatchSize)
	assert.Equal(t, 1, cfg.Pipeline.Concurrency)
	assert.Equal(t, "neo4j", cfg.Database.Driver)
	assert.Equal(t, uint32(3), cfg.CircuitBreaker.MinRequests)
}

func TestLoadFrom_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graphfuse.yaml")
	content := `
fusion:
  batch_size: 4
database:
  driver: memory
pipeline:
  concurrency: 8
oracle:
  model: qwen2.5-14b-instruct
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Fusion.BatchSize)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 8, cfg.Pipeline.Concurrency)
	assert.Equal(t, "qwen2.5-14b-instruct", cfg.Oracle.Model)
}

func TestLoadFrom_EnvOverrides(t *testing.T) {
	t.Setenv("NEO4J_URI", "bolt://graph:7687")
	t.Setenv("NEO4J_PASSWORD", "secret")
	t.Setenv("GRAPHFUSE_IMPORTER_BATCH_SIZE", "250")

	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)
	assert.Equal(t, "bolt://graph:7687", cfg.Database.URI)
	assert.Equal(t, "secret", cfg.Database.Password)
	assert.Equal(t, 250, cfg.Importer.BatchSize)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"fusion batch below two", func(c *Config) { c.Fusion.BatchSize = 1 }},
		{"importer batch zero", func(c *Config) { c.Importer.BatchSize = 0 }},
		{"concurrency zero", func(c *Config) { c.Pipeline.Concurrency = 0 }},
		{"unknown driver", func(c *Config) { c.Database.Driver = "falkordb" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadFrom(viper.New())
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
