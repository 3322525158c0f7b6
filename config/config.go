// Package config loads deployment settings from the environment, with an
// optional .env file for local development. Command-line flags in
// cmd/server take precedence over everything here.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries every tunable the server reads at startup.
type Config struct {
	ServerPort    int
	DatabasePath  string // ":memory:" keeps the in-memory store
	SlotCount     int
	AdminUsername string
	SessionSecret string
	SessionTTL    time.Duration
	ToggleLatency time.Duration // simulated round trip on toggles
}

// Load reads .env (when present) and the environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: could not load .env file: %v", err)
	}

	port, _ := strconv.Atoi(getEnv("SERVER_PORT", "8080"))
	slots, _ := strconv.Atoi(getEnv("SLOT_COUNT", "20"))
	ttlHours, _ := strconv.Atoi(getEnv("SESSION_TTL_HOURS", "24"))
	latencyMs, _ := strconv.Atoi(getEnv("TOGGLE_LATENCY_MS", "200"))

	return &Config{
		ServerPort:    port,
		DatabasePath:  getEnv("DATABASE_PATH", ":memory:"),
		SlotCount:     slots,
		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		SessionSecret: getEnv("SESSION_SECRET", "dev-only-parking-session-secret"),
		SessionTTL:    time.Duration(ttlHours) * time.Hour,
		ToggleLatency: time.Duration(latencyMs) * time.Millisecond,
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}
