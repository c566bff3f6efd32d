package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	ProviderHost string `json:"provider_host"`
	MinBytes     int64  `json:"min_bytes"`
	Verbose      bool   `json:"verbose"`
}

func writeFile(t testing.TB, path, contents string) {
	err := os.WriteFile(path, []byte(contents), 0600)
	require.NoError(t, err)
}

func TestReadConfigLocalOverride(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.json5"), `{
		// comments are allowed
		provider_host: "textfx.example.com",
		min_bytes: 5000,
	}`)
	writeFile(t, filepath.Join(dir, "config.local.json5"), `{ min_bytes: 15000 }`)

	cfg, err := ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	require.NoError(t, err)
	require.Equal(t, "textfx.example.com", cfg.ProviderHost)
	require.Equal(t, int64(15000), cfg.MinBytes)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "config.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadConfigWithDefaults(t *testing.T) {
	dir := t.TempDir()
	defaults := testConfig{ProviderHost: "default.example.com", MinBytes: 5000}

	cfg, err := ReadConfigWithDefaults(filepath.Join(dir, "config.json5"), defaults)
	require.NoError(t, err)
	require.Equal(t, defaults, cfg)

	writeFile(t, filepath.Join(dir, "config.json5"), `{ provider_host: "custom.example.com" }`)
	cfg, err = ReadConfigWithDefaults(filepath.Join(dir, "config.json5"), defaults)
	require.NoError(t, err)
	require.Equal(t, "custom.example.com", cfg.ProviderHost)
	require.Equal(t, int64(5000), cfg.MinBytes)
}

func TestReadConfigInvalid(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.json5"), `{ provider_host: `)
	_, err := ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	require.Error(t, err)
}
