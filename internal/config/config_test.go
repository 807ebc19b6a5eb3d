package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unsetAll(t *testing.T) {
	for _, name := range []string{
		"MEMORY_FILE_PATH",
		"SEARCH_TOP_PER_TOKEN",
		"SEARCH_MIN_RELATIVE_SCORE",
		"SEARCH_MAX_PATH_LENGTH",
		"SEARCH_MAX_TOTAL_NODES",
	} {
		require.NoError(t, os.Unsetenv(name))
	}
}

func TestLoad_Defaults(t *testing.T) {
	unsetAll(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Contains(t, cfg.MemoryFilePath, "data/memory.jsonl")
	assert.Equal(t, 1, cfg.Search.TopPerToken)
	assert.Equal(t, 0.3, cfg.Search.MinRelativeScore)
	assert.Equal(t, 5, cfg.Search.MaxPathLength)
	assert.Equal(t, 50, cfg.Search.MaxTotalNodes)
}

func TestLoad_EnvOverrides(t *testing.T) {
	unsetAll(t)
	t.Cleanup(func() { unsetAll(t) })

	require.NoError(t, os.Setenv("MEMORY_FILE_PATH", "/tmp/test-memory.jsonl"))
	require.NoError(t, os.Setenv("SEARCH_TOP_PER_TOKEN", "2"))
	require.NoError(t, os.Setenv("SEARCH_MIN_RELATIVE_SCORE", "0.5"))
	require.NoError(t, os.Setenv("SEARCH_MAX_PATH_LENGTH", "3"))
	require.NoError(t, os.Setenv("SEARCH_MAX_TOTAL_NODES", "10"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/test-memory.jsonl", cfg.MemoryFilePath)
	assert.Equal(t, 2, cfg.Search.TopPerToken)
	assert.Equal(t, 0.5, cfg.Search.MinRelativeScore)
	assert.Equal(t, 3, cfg.Search.MaxPathLength)
	assert.Equal(t, 10, cfg.Search.MaxTotalNodes)
}

func TestLoad_InvalidIntOverrideErrors(t *testing.T) {
	unsetAll(t)
	t.Cleanup(func() { unsetAll(t) })

	require.NoError(t, os.Setenv("SEARCH_TOP_PER_TOKEN", "not-a-number"))
	_, err := Load()
	assert.Error(t, err)
}
