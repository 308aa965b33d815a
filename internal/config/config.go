// Package config provides centralized configuration loaded from environment
// variables. Shared by every processor subcommand.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Config struct — populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Database
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// Rating model
	DefaultRating     float64
	DefaultVolatility float64
	Beta              float64
	Kappa             float64
	RatingFloor       float64

	// Decay
	DecayDays            int
	DecayRate            float64
	DecayMinimum         float64
	VolatilityGrowthRate float64

	// Aggregation
	Workers int

	// Rulesets restricts processing to the listed ruleset codes; empty
	// means all rulesets.
	Rulesets []int

	// Messaging
	AMQPEnabled    bool
	AMQPHost       string
	AMQPPort       int
	AMQPUsername   string
	AMQPPassword   string
	AMQPVHost      string
	AMQPRoutingKey string

	Environment string // development, staging, production
	Debug       bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	dbURL := envOr("DATABASE_URL", envOr("CONNECTION_STRING", ""))
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL or CONNECTION_STRING must be set")
	}

	cfg := &Config{
		DatabaseURL:    dbURL,
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 2),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		DefaultRating:     envFloat("RATING_DEFAULT", 675),
		DefaultVolatility: envFloat("RATING_DEFAULT_VOLATILITY", 225),
		Beta:              envFloat("RATING_BETA", 112.5),
		Kappa:             envFloat("RATING_KAPPA", 0.0001),
		RatingFloor:       envFloat("RATING_FLOOR", 100),

		DecayDays:            envInt("DECAY_DAYS", 115),
		DecayRate:            envFloat("DECAY_RATE", 2.7),
		DecayMinimum:         envFloat("DECAY_MINIMUM", 810),
		VolatilityGrowthRate: envFloat("DECAY_VOLATILITY_GROWTH", 162),

		Workers:  envInt("WORKERS", 4),
		Rulesets: envRulesets("PROCESS_RULESETS"),

		AMQPEnabled:    envBool("RABBITMQ_ENABLED", false),
		AMQPHost:       envOr("RABBITMQ_HOST", "localhost"),
		AMQPPort:       envInt("RABBITMQ_PORT", 5672),
		AMQPUsername:   envOr("RABBITMQ_USERNAME", ""),
		AMQPPassword:   envOr("RABBITMQ_PASSWORD", ""),
		AMQPVHost:      envOr("RABBITMQ_VHOST", "/"),
		AMQPRoutingKey: envOr("RABBITMQ_ROUTING_KEY", "processing.ratings.tournaments"),

		Environment: envOr("ENVIRONMENT", "development"),
		Debug:       envBool("DEBUG", false),
	}

	if cfg.AMQPEnabled && (cfg.AMQPUsername == "" || cfg.AMQPPassword == "") {
		return nil, fmt.Errorf("RABBITMQ_USERNAME and RABBITMQ_PASSWORD must be set when RABBITMQ_ENABLED=true")
	}
	return cfg, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// AMQPURL builds the AMQP connection URL. The exchange shares its name with
// the routing key.
func (c *Config) AMQPURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/%s",
		url.QueryEscape(c.AMQPUsername),
		url.QueryEscape(c.AMQPPassword),
		c.AMQPHost,
		c.AMQPPort,
		url.QueryEscape(c.AMQPVHost))
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envRulesets(key string) []int {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]int, 0, len(parts))
		for _, p := range parts {
			if n, err := strconv.Atoi(strings.TrimSpace(p)); err == nil {
				result = append(result, n)
			}
		}
		return result
	}
	return nil
}
