// Package config provides configuration management for the profile tracker.
package config

import (
	"time"
)

// TrackerConfig holds configuration for the event-tracking pipeline.
type TrackerConfig struct {
	DatabaseURL        string
	MaxConcurrency     int
	RuleCacheTTL       time.Duration
	MaxMergeCandidates int
	MaxBatchSize       int
}

// DefaultTrackerConfig returns configuration with default values.
func DefaultTrackerConfig() *TrackerConfig {
	return &TrackerConfig{
		DatabaseURL:        "sqlite://profilekeeper.db",
		MaxConcurrency:     32,
		RuleCacheTTL:       30 * time.Second,
		MaxMergeCandidates: 2000,
		MaxBatchSize:       1000,
	}
}
