package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/mironmax/mcp-memory-server-concurrent/pkg/engine"
)

// Config holds the process-wide settings loaded from the environment at
// startup (spec §6.3).
type Config struct {
	MemoryFilePath string
	Search         engine.SearchConfig
}

// Load loads configuration from environment variables with defaults
func Load() (*Config, error) {
	cfg := &Config{Search: engine.DefaultSearchConfig()}

	cfg.MemoryFilePath = os.Getenv("MEMORY_FILE_PATH")
	if cfg.MemoryFilePath == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		cfg.MemoryFilePath = filepath.Join(cwd, "data", "memory.jsonl")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.MemoryFilePath), 0755); err != nil {
		return nil, err
	}

	if v, err := intEnv("SEARCH_TOP_PER_TOKEN", cfg.Search.TopPerToken); err != nil {
		return nil, err
	} else {
		cfg.Search.TopPerToken = v
	}

	if v, err := floatEnv("SEARCH_MIN_RELATIVE_SCORE", cfg.Search.MinRelativeScore); err != nil {
		return nil, err
	} else {
		cfg.Search.MinRelativeScore = v
	}

	if v, err := intEnv("SEARCH_MAX_PATH_LENGTH", cfg.Search.MaxPathLength); err != nil {
		return nil, err
	} else {
		cfg.Search.MaxPathLength = v
	}

	if v, err := intEnv("SEARCH_MAX_TOTAL_NODES", cfg.Search.MaxTotalNodes); err != nil {
		return nil, err
	} else {
		cfg.Search.MaxTotalNodes = v
	}

	return cfg, nil
}

func intEnv(name string, def int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return v, nil
}

func floatEnv(name string, def float64) (float64, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return v, nil
}
