package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds the daemon configuration
type Config struct {
	ServerAddr string `toml:"server_addr"`
	MaxWorkers int    `toml:"max_workers"`

	// Task execution
	TaskTimeoutMinutes  int `toml:"task_timeout_minutes"`
	ClaimTimeoutMinutes int `toml:"claim_timeout_minutes"`
	StageTimeoutSeconds int `toml:"stage_timeout_seconds"`
	MaxStageAttempts    int `toml:"max_stage_attempts"`
	RetryBaseDelayMS    int `toml:"retry_base_delay_ms"`

	// Collaborators
	GitHubAPIURL string `toml:"github_api_url"`
	GitHubToken  string `toml:"github_token"`
	LLMAPIURL    string `toml:"llm_api_url"`
	LLMAPIKey    string `toml:"llm_api_key"`
	LLMModel     string `toml:"llm_model"`

	// Optional shared task store. When set, tasks live in PostgreSQL
	// instead of the local SQLite database.
	PostgresURL string `toml:"postgres_url"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		ServerAddr:          "127.0.0.1:8585",
		MaxWorkers:          4,
		TaskTimeoutMinutes:  30,
		ClaimTimeoutMinutes: 45,
		StageTimeoutSeconds: 120,
		MaxStageAttempts:    3,
		RetryBaseDelayMS:    500,
		GitHubAPIURL:        "https://api.github.com",
		LLMAPIURL:           "https://api.openai.com/v1",
		LLMModel:            "gpt-4o-mini",
	}
}

// TaskTimeout returns the end-to-end timeout for a single task.
func (c *Config) TaskTimeout() time.Duration {
	if c.TaskTimeoutMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.TaskTimeoutMinutes) * time.Minute
}

// ClaimTimeout returns how long a task may sit in_progress with a dead
// owner before the reaper makes it eligible for redelivery. Must
// exceed TaskTimeout so a slow but live worker is not reaped mid-run.
func (c *Config) ClaimTimeout() time.Duration {
	if c.ClaimTimeoutMinutes <= 0 {
		return 45 * time.Minute
	}
	return time.Duration(c.ClaimTimeoutMinutes) * time.Minute
}

// StageTimeout returns the per-stage call timeout. Zero disables it.
func (c *Config) StageTimeout() time.Duration {
	if c.StageTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.StageTimeoutSeconds) * time.Second
}

// RetryBaseDelay returns the base delay for stage retry backoff.
func (c *Config) RetryBaseDelay() time.Duration {
	if c.RetryBaseDelayMS <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.RetryBaseDelayMS) * time.Millisecond
}

// DataDir returns the prr data directory.
// Uses PRR_DATA_DIR env var if set, otherwise ~/.prr
func DataDir() string {
	if dir := os.Getenv("PRR_DATA_DIR"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".prr")
}

// GlobalConfigPath returns the path to the global config file
func GlobalConfigPath() string {
	return filepath.Join(DataDir(), "config.toml")
}

// LoadGlobal loads the global configuration from the default path
func LoadGlobal() (*Config, error) {
	return LoadGlobalFrom(GlobalConfigPath())
}

// LoadGlobalFrom loads the configuration from a specific path.
// A missing file is not an error; defaults are returned.
func LoadGlobalFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SaveGlobal saves the global configuration
func SaveGlobal(cfg *Config) error {
	path := GlobalConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
