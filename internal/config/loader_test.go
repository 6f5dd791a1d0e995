package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(LoaderOptions{ConfigPaths: []string{t.TempDir()}})
	require.NoError(t, err)

	assert.Equal(t, "static", cfg.Provider.Name)
	assert.Equal(t, 60000, cfg.Review.TokenLimit)
	assert.Equal(t, 4, cfg.Review.LLMConcurrency)
	assert.True(t, cfg.Review.Resume)
	assert.True(t, cfg.Store.Enabled)
	assert.Equal(t, "120s", cfg.HTTP.Timeout)
	assert.Equal(t, "info", cfg.Observability.Logging.Level)
	assert.Equal(t, "auto", cfg.Observability.Logging.Format)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	content := `provider:
  name: openai
  model: gpt-4o
review:
  tokenLimit: 30000
  resume: false
observability:
  logging:
    format: json
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rp.yaml"), []byte(content), 0o644))

	cfg, err := Load(LoaderOptions{ConfigPaths: []string{dir}})
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Provider.Name)
	assert.Equal(t, "gpt-4o", cfg.Provider.Model)
	assert.Equal(t, 30000, cfg.Review.TokenLimit)
	assert.False(t, cfg.Review.Resume)
	assert.Equal(t, "json", cfg.Observability.Logging.Format)

	// Untouched values keep their defaults.
	assert.Equal(t, 4, cfg.Review.LLMConcurrency)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rp.yaml"), []byte("provider: [notamap\n"), 0o644))

	_, err := Load(LoaderOptions{ConfigPaths: []string{dir}})
	require.Error(t, err)
}

func TestExpandEnvVarsInAPIKey(t *testing.T) {
	t.Setenv("RP_TEST_SECRET_KEY", "sk-from-env")

	dir := t.TempDir()
	content := `provider:
  apiKey: ${RP_TEST_SECRET_KEY}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rp.yaml"), []byte(content), 0o644))

	cfg, err := Load(LoaderOptions{ConfigPaths: []string{dir}})
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", cfg.Provider.APIKey)
}

func TestExpandEnvStringKeepsUnknownVars(t *testing.T) {
	assert.Equal(t, "${RP_DEFINITELY_NOT_SET_VAR}", expandEnvString("${RP_DEFINITELY_NOT_SET_VAR}"))
	assert.Equal(t, "plain text", expandEnvString("plain text"))
}

func TestLocateConfigFilePrefersEarlierPaths(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(first, "rp.yaml"), []byte("{}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(second, "rp.yaml"), []byte("{}\n"), 0o644))

	found := locateConfigFile("rp", []string{first, second})
	assert.Equal(t, filepath.Join(first, "rp.yaml"), found)
}
