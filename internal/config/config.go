package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const DefaultAPIURL = "https://mmb.irbbarcelona.org/biobb-api/rest/v1/"

type Config struct {
	APIURL             string
	UserAgent          string
	HTTPTimeout        time.Duration
	PollTimeout        time.Duration
	PollMaxChecks      int
	MaxTransportErrors int
	OutputDir          string
	RedisURL           string
	HistoryDB          string
}

// Load reads .env files (if any) and then the environment.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil {
		log.Println("[config] -- no .env file found, using system environment variables")
	}
	return FromEnv()
}

func FromEnv() (Config, error) {
	cfg := Config{
		APIURL:    getenv("BIOBB_API_URL", DefaultAPIURL),
		UserAgent: getenv("BIOBB_USER_AGENT", "biobb-api-client"),
		OutputDir: getenv("BIOBB_OUTPUT_DIR", "."),
		RedisURL:  os.Getenv("REDIS_URL"),
		HistoryDB: getenv("BIOBB_HISTORY_DB", "biobb-history.db"),
	}
	var err error
	if cfg.HTTPTimeout, err = durationEnv("BIOBB_HTTP_TIMEOUT", 5*time.Minute); err != nil {
		return cfg, err
	}
	if cfg.PollTimeout, err = durationEnv("BIOBB_POLL_TIMEOUT", 24*time.Hour); err != nil {
		return cfg, err
	}
	if cfg.PollMaxChecks, err = intEnv("BIOBB_POLL_MAX_CHECKS", 0); err != nil {
		return cfg, err
	}
	if cfg.MaxTransportErrors, err = intEnv("BIOBB_MAX_TRANSPORT_ERRORS", 0); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%s: invalid duration %q", key, value)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s: invalid count %q", key, value)
	}
	return n, nil
}
