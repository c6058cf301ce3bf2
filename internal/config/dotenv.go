package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads environment variables from a .env file if present.
// Existing environment variables are not overwritten.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

type Config struct {
	RedisURL           string
	GeminiAPIKey       string
	GeminiModel        string
	GeminiBaseURL      string
	TickSeconds        int
	MaxRounds          int
	MaxJobs            int
	MaxActiveCells     int
	MinActiveCells     int
	StateTTLSeconds    int
	VoteOncePerRound   bool
	GenerateMaxRetries int
	BackoffBaseMillis  int
	BackoffMaxMillis   int
}

func Default() Config {
	return Config{
		GeminiModel:        "gemini-pro",
		GeminiBaseURL:      "https://generativelanguage.googleapis.com",
		TickSeconds:        30,
		MaxRounds:          6,
		MaxJobs:            5,
		MaxActiveCells:     10,
		MinActiveCells:     5,
		StateTTLSeconds:    86400,
		VoteOncePerRound:   true,
		GenerateMaxRetries: 3,
		BackoffBaseMillis:  1000,
		BackoffMaxMillis:   10000,
	}
}

func Load() Config {
	cfg := Default()
	if raw := os.Getenv("REDIS_URL"); raw != "" {
		cfg.RedisURL = raw
	}
	if raw := os.Getenv("GEMINI_API_KEY"); raw != "" {
		cfg.GeminiAPIKey = raw
	}
	if raw := os.Getenv("GEMINI_MODEL"); raw != "" {
		cfg.GeminiModel = raw
	}
	if raw := os.Getenv("GEMINI_BASE_URL"); raw != "" {
		cfg.GeminiBaseURL = raw
	}
	if raw := os.Getenv("TICK_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.TickSeconds = value
		}
	}
	if raw := os.Getenv("MAX_ROUNDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 1 {
			cfg.MaxRounds = value
		}
	}
	if raw := os.Getenv("MAX_JOBS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.MaxJobs = value
		}
	}
	if raw := os.Getenv("MAX_ACTIVE_CELLS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.MaxActiveCells = value
		}
	}
	if raw := os.Getenv("MIN_ACTIVE_CELLS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.MinActiveCells = value
		}
	}
	if raw := os.Getenv("STATE_TTL_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.StateTTLSeconds = value
		}
	}
	if raw := os.Getenv("VOTE_ONCE_PER_ROUND"); raw != "" {
		if value, err := strconv.ParseBool(raw); err == nil {
			cfg.VoteOncePerRound = value
		}
	}
	if raw := os.Getenv("GENERATE_MAX_RETRIES"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value >= 0 {
			cfg.GenerateMaxRetries = value
		}
	}
	if raw := os.Getenv("BACKOFF_BASE_MILLIS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.BackoffBaseMillis = value
		}
	}
	if raw := os.Getenv("BACKOFF_MAX_MILLIS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.BackoffMaxMillis = value
		}
	}
	return cfg
}
