// Package config handles Huginn configuration via environment variables.
//
// All settings are read from HUGINN_-prefixed environment variables so
// the engine can be tuned per deployment without code changes.
// Configuration is loaded with LoadFromEnv() and checked with
// Validate() before use.
//
// Example Usage:
//
//	cfg := config.LoadFromEnv()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("Invalid config: %v", err)
//	}
//
// Environment Variables:
//   - HUGINN_MATERIALIZE_FACTS=true
//   - HUGINN_MATERIALIZE_THRESHOLD=0.7
//   - HUGINN_FORWARD_MAX_ITERATIONS=10
//   - HUGINN_BACKWARD_MAX_DEPTH=8
//   - HUGINN_DUPLICATE_EDGES="ignore" or "error"
//   - HUGINN_LOG_LEVEL="info"
//
// For the complete list, see the Config struct field documentation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all Huginn configuration loaded from environment
// variables.
//
// Use LoadFromEnv() to create a Config from environment variables.
type Config struct {
	// Graph settings
	Graph GraphConfig

	// Inference engine settings
	Inference InferenceConfig

	// Logging
	Logging LoggingConfig
}

// GraphConfig holds graph store settings.
type GraphConfig struct {
	// DuplicateEdges is the policy for re-inserted edge IDs:
	// "ignore" (idempotent bulk load) or "error".
	DuplicateEdges string
}

// InferenceConfig holds chaining settings.
type InferenceConfig struct {
	// MaterializeFacts promotes high-confidence derived facts into
	// real edges during forward chaining.
	MaterializeFacts bool
	// MaterializeThreshold is the minimum confidence for promotion.
	MaterializeThreshold float64
	// ForwardMaxIterations caps a forward-chaining pass.
	ForwardMaxIterations int
	// BackwardMaxDepth caps proof-search recursion.
	BackwardMaxDepth int
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string
	// Format is "json" or "console".
	Format string
}

// LoadFromEnv creates a Config from environment variables. Unset
// variables fall back to defaults; malformed values fall back too.
func LoadFromEnv() *Config {
	cfg := &Config{}

	cfg.Graph.DuplicateEdges = getEnv("HUGINN_DUPLICATE_EDGES", "ignore")

	cfg.Inference.MaterializeFacts = getEnvBool("HUGINN_MATERIALIZE_FACTS", false)
	cfg.Inference.MaterializeThreshold = getEnvFloat("HUGINN_MATERIALIZE_THRESHOLD", 0.7)
	cfg.Inference.ForwardMaxIterations = getEnvInt("HUGINN_FORWARD_MAX_ITERATIONS", 10)
	cfg.Inference.BackwardMaxDepth = getEnvInt("HUGINN_BACKWARD_MAX_DEPTH", 8)

	cfg.Logging.Level = getEnv("HUGINN_LOG_LEVEL", "info")
	cfg.Logging.Format = getEnv("HUGINN_LOG_FORMAT", "console")

	return cfg
}

// Validate checks the configuration for invalid combinations.
func (c *Config) Validate() error {
	switch c.Graph.DuplicateEdges {
	case "ignore", "error":
	default:
		return fmt.Errorf("invalid HUGINN_DUPLICATE_EDGES %q: must be ignore or error", c.Graph.DuplicateEdges)
	}
	if c.Inference.MaterializeThreshold < 0 || c.Inference.MaterializeThreshold > 1 {
		return fmt.Errorf("invalid HUGINN_MATERIALIZE_THRESHOLD %v: must be in [0,1]", c.Inference.MaterializeThreshold)
	}
	if c.Inference.ForwardMaxIterations < 1 {
		return fmt.Errorf("invalid HUGINN_FORWARD_MAX_ITERATIONS %d: must be >= 1", c.Inference.ForwardMaxIterations)
	}
	if c.Inference.BackwardMaxDepth < 1 {
		return fmt.Errorf("invalid HUGINN_BACKWARD_MAX_DEPTH %d: must be >= 1", c.Inference.BackwardMaxDepth)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid HUGINN_LOG_LEVEL %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid HUGINN_LOG_FORMAT %q", c.Logging.Format)
	}
	return nil
}

// String returns a short human-readable summary.
func (c *Config) String() string {
	return fmt.Sprintf("Config{duplicates=%s, materialize=%v@%.2f, forward<=%d, backward<=%d, log=%s/%s}",
		c.Graph.DuplicateEdges,
		c.Inference.MaterializeFacts, c.Inference.MaterializeThreshold,
		c.Inference.ForwardMaxIterations, c.Inference.BackwardMaxDepth,
		c.Logging.Level, c.Logging.Format)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}
