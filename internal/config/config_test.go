package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ascpixi/pyton/internal/config"
)

func TestLoadMissingFileReturnsZeroValue(t *testing.T) {
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, config.Config{}, cfg)
}

func TestLoadParsesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), []byte(
		"artifacts: build\noptimize: true\nmodule_roots:\n  - vendor\n  - lib\n",
	), 0o644))

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "build", cfg.Artifacts)
	assert.True(t, cfg.Optimize)
	assert.Equal(t, []string{"vendor", "lib"}, cfg.ModuleRoots)
}

func TestApplyDefaultsPrefersConfigOverFlagDefault(t *testing.T) {
	artifacts, optimize := config.ApplyDefaults(config.Config{Artifacts: "out"}, "artifacts", false)
	assert.Equal(t, "out", artifacts)
	assert.False(t, optimize)
}

func TestApplyDefaultsKeepsFlagDefaultWhenUnset(t *testing.T) {
	artifacts, optimize := config.ApplyDefaults(config.Config{}, "artifacts", true)
	assert.Equal(t, "artifacts", artifacts)
	assert.True(t, optimize)
}
