package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "TJPE", cfg.API.Tribunal)
	assert.Equal(t, 100, cfg.API.PageSize)
	assert.Equal(t, 5, cfg.API.MaxRetries)
	assert.Equal(t, 120, cfg.API.GateWaitSecs)
	assert.Equal(t, 100, cfg.Collect.MaxPages)
	assert.Equal(t, 1000, cfg.Collect.MaxItems)
	assert.Equal(t, 5000, cfg.Collect.OversizedThreshold)
	assert.Equal(t, 1116, cfg.Collect.PriorityClassCode)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 4390, cfg.BCB.SeriesID)
	assert.Equal(t, 2000, cfg.Cache.ErrorLogCap)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("LITIGIO_API_TRIBUNAL", "TJSP")
	t.Setenv("LITIGIO_COLLECT_MAX_PAGES", "7")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "TJSP", cfg.API.Tribunal)
	assert.Equal(t, 7, cfg.Collect.MaxPages)
}

func TestWorkersClamp(t *testing.T) {
	cfg := &Config{}
	cfg.Collect.WorkersPerToken = 2

	cfg.API.Tokens = nil
	assert.Equal(t, 1, cfg.Workers())

	cfg.API.Tokens = []string{"a", "b"}
	assert.Equal(t, 4, cfg.Workers())

	cfg.API.Tokens = []string{"a", "b", "c", "d", "e", "f"}
	assert.Equal(t, 8, cfg.Workers())
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	cfg.API.BaseURL = "https://api.example"
	cfg.Collect.OutputDir = "out"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no API tokens")

	cfg.API.Tokens = []string{"short"}
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed")

	cfg.API.Tokens = []string{"a-real-looking-token-value"}
	require.NoError(t, cfg.Validate())
}
