package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds engine settings. Values come from the environment (after an
// optional .env file); Default() documents the reference configuration.
type Config struct {
	DBPath    string
	RedisAddr string // empty = sqlite-backed idempotency store

	// Scheduled realm evaluation job.
	ScanInterval time.Duration
	MinMargin    float64 // percent
	MinProfit    float64

	// Classification pipeline.
	PipelineInterval time.Duration
	PipelineStages   []string // subset of pipeline stage names; empty = all
	MarkTTL          time.Duration

	// Price resolution.
	ObservationLimit int // observations per item in the weighted average
	BatchConcurrency int // in-flight store lookups per batch call
}

// Default returns the reference configuration.
func Default() *Config {
	return &Config{
		DBPath:           "pricer.db",
		ScanInterval:     6 * time.Hour,
		MinMargin:        5,
		MinProfit:        100,
		PipelineInterval: 12 * time.Hour,
		MarkTTL:          14 * 24 * time.Hour,
		ObservationLimit: 100,
		BatchConcurrency: 32,
	}
}

// Load builds a Config from the environment, falling back to defaults.
func Load() *Config {
	// Absence of a .env file is the normal deployed case.
	godotenv.Load()

	cfg := Default()
	cfg.DBPath = getEnv("PRICER_DB_PATH", cfg.DBPath)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.ScanInterval = getDuration("PRICER_SCAN_INTERVAL", cfg.ScanInterval)
	cfg.MinMargin = getFloat("PRICER_MIN_MARGIN", cfg.MinMargin)
	cfg.MinProfit = getFloat("PRICER_MIN_PROFIT", cfg.MinProfit)
	cfg.PipelineInterval = getDuration("PRICER_PIPELINE_INTERVAL", cfg.PipelineInterval)
	cfg.MarkTTL = getDuration("PRICER_MARK_TTL", cfg.MarkTTL)
	cfg.ObservationLimit = getInt("PRICER_OBSERVATION_LIMIT", cfg.ObservationLimit)
	cfg.BatchConcurrency = getInt("PRICER_BATCH_CONCURRENCY", cfg.BatchConcurrency)

	if stages := getEnv("PRICER_PIPELINE_STAGES", ""); stages != "" {
		for _, s := range strings.Split(stages, ",") {
			if s = strings.TrimSpace(s); s != "" {
				cfg.PipelineStages = append(cfg.PipelineStages, s)
			}
		}
	}
	return cfg
}

func getEnv(key, defaultValue string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}
