package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
func LoadConfig(configPath string) (*TrackerConfig, error) {
	v := viper.New()

	// Set defaults matching DefaultTrackerConfig
	v.SetDefault("tracker.database_url", "sqlite://profilekeeper.db")
	v.SetDefault("tracker.max_concurrency", 32)
	v.SetDefault("tracker.rule_cache_ttl", "30s")
	v.SetDefault("tracker.max_merge_candidates", 2000)
	v.SetDefault("tracker.max_batch_size", 1000)

	// Bind environment variables with PK_ prefix
	v.SetEnvPrefix("PK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Load config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &TrackerConfig{
		DatabaseURL:        v.GetString("tracker.database_url"),
		MaxConcurrency:     v.GetInt("tracker.max_concurrency"),
		RuleCacheTTL:       v.GetDuration("tracker.rule_cache_ttl"),
		MaxMergeCandidates: v.GetInt("tracker.max_merge_candidates"),
		MaxBatchSize:       v.GetInt("tracker.max_batch_size"),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig checks positive bounds and a usable database URL.
func validateConfig(cfg *TrackerConfig) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("database_url must be set")
	}
	if cfg.MaxConcurrency <= 0 {
		return fmt.Errorf("max_concurrency must be positive, got %d", cfg.MaxConcurrency)
	}
	if cfg.RuleCacheTTL < 0 {
		return fmt.Errorf("rule_cache_ttl must not be negative, got %v", cfg.RuleCacheTTL)
	}
	if cfg.MaxMergeCandidates <= 0 {
		return fmt.Errorf("max_merge_candidates must be positive, got %d", cfg.MaxMergeCandidates)
	}
	if cfg.MaxBatchSize <= 0 {
		return fmt.Errorf("max_batch_size must be positive, got %d", cfg.MaxBatchSize)
	}
	return nil
}
