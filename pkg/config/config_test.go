package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name string `mapstructure:"name"`
	HTTP struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"http"`
	Limit int `mapstructure:"limit"`
}

func TestLoad_FileDefaultsAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "svc.yaml")
	require.NoError(t, os.WriteFile(file, []byte("name: bazaar\nhttp:\n  addr: \":8080\"\n"), 0o644))

	t.Setenv("CFGTEST_SVC_HTTP_ADDR", ":9999")

	var out sample
	_, err := Load("cfgtest-svc", &out, Options{
		File:     file,
		Defaults: map[string]any{"limit": 7, "http.addr": ":1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "bazaar", out.Name)
	assert.Equal(t, ":9999", out.HTTP.Addr)
	assert.Equal(t, 7, out.Limit)
}

func TestLoad_OptionalMissingFile(t *testing.T) {
	t.Chdir(t.TempDir())

	var out sample
	_, err := Load("nothing-here", &out, Options{
		Optional: true,
		Defaults: map[string]any{"name": "fallback"},
	})
	require.NoError(t, err)
	assert.Equal(t, "fallback", out.Name)

	_, err = Load("nothing-here", &out, Options{})
	assert.Error(t, err)
}
