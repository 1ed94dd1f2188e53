package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Port           string
	AllowedOrigins []string
	WSReadTimeout  time.Duration
	WSWriteTimeout time.Duration
	LogLevel       string
	PingPeriod     time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64

	// Call handling
	RingTimeout      time.Duration
	SimRingDelay     time.Duration
	SimAnswerDelay   time.Duration // 0 disables the simulated remote answer
	HoldCountsAsTalk bool
	SeedFile         string

	// Dashboard push
	TickInterval     time.Duration
	SnapshotInterval time.Duration

	// Alert thresholds
	WrapUpAlert time.Duration
	HoldAlert   time.Duration
	BreakAlert  time.Duration

	// StartCall rate limit per agent
	StartCallRate  float64 // calls per second
	StartCallBurst int

	// MQTT record stream; an empty broker disables it
	MQTTBroker      string
	MQTTClientID    string
	MQTTTopicPrefix string
	MQTTUsername    string
	MQTTPassword    string

	// Auth
	SkipAuth        bool
	Env             string
	VerifySignature bool
	OIDCIssuer      string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Port:            getEnv("PORT", "8080"),
		AllowedOrigins:  strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:5173"), ","),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		SeedFile:        getEnv("SEED_FILE", ""),
		MQTTBroker:      getEnv("MQTT_BROKER", ""),
		MQTTClientID:    getEnv("MQTT_CLIENT_ID", "softphone-engine"),
		MQTTTopicPrefix: getEnv("MQTT_TOPIC_PREFIX", "softphone"),
		MQTTUsername:    getEnv("MQTT_USERNAME", ""),
		MQTTPassword:    getEnv("MQTT_PASSWORD", ""),
		SkipAuth:        getEnv("SKIP_AUTH", "") == "true",
		Env:             getEnv("ENV", ""),
		OIDCIssuer:      getEnv("OIDC_ISSUER", ""),
	}

	// Parse WebSocket timeouts
	wsReadTimeout, err := strconv.Atoi(getEnv("WS_READ_TIMEOUT", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid WS_READ_TIMEOUT: %w", err)
	}
	config.WSReadTimeout = time.Duration(wsReadTimeout) * time.Second

	wsWriteTimeout, err := strconv.Atoi(getEnv("WS_WRITE_TIMEOUT", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid WS_WRITE_TIMEOUT: %w", err)
	}
	config.WSWriteTimeout = time.Duration(wsWriteTimeout) * time.Second

	// Calculate WebSocket constants
	config.PongWait = config.WSReadTimeout
	config.PingPeriod = (config.PongWait * 9) / 10 // Must be less than pongWait
	config.WriteWait = config.WSWriteTimeout
	config.MaxMessageSize = 512

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"RING_TIMEOUT", "30s", &config.RingTimeout},
		{"SIM_RING_DELAY", "2s", &config.SimRingDelay},
		{"SIM_ANSWER_DELAY", "0", &config.SimAnswerDelay},
		{"TICK_INTERVAL", "1s", &config.TickInterval},
		{"SNAPSHOT_INTERVAL", "2s", &config.SnapshotInterval},
		{"WRAPUP_ALERT", "2m", &config.WrapUpAlert},
		{"HOLD_ALERT", "1m", &config.HoldAlert},
		{"BREAK_ALERT", "15m", &config.BreakAlert},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(getEnv(d.key, d.def))
		if err != nil || v < 0 {
			return nil, fmt.Errorf("invalid %s: %q", d.key, getEnv(d.key, d.def))
		}
		*d.dst = v
	}
	if config.TickInterval <= 0 || config.SnapshotInterval <= 0 {
		return nil, fmt.Errorf("TICK_INTERVAL and SNAPSHOT_INTERVAL must be positive")
	}

	config.HoldCountsAsTalk, err = strconv.ParseBool(getEnv("HOLD_COUNTS_AS_TALK", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid HOLD_COUNTS_AS_TALK: %w", err)
	}

	config.StartCallRate, err = strconv.ParseFloat(getEnv("START_CALL_RATE", "1"), 64)
	if err != nil || config.StartCallRate <= 0 {
		return nil, fmt.Errorf("invalid START_CALL_RATE: %q", getEnv("START_CALL_RATE", "1"))
	}
	config.StartCallBurst, err = strconv.Atoi(getEnv("START_CALL_BURST", "3"))
	if err != nil || config.StartCallBurst <= 0 {
		return nil, fmt.Errorf("invalid START_CALL_BURST: %q", getEnv("START_CALL_BURST", "3"))
	}

	// Signatures are verified everywhere except development
	config.VerifySignature = getEnv("VERIFY_JWT_SIGNATURE", "") == "true" ||
		(config.Env != "" && config.Env != "development")

	// Trim spaces from allowed origins
	for i, origin := range config.AllowedOrigins {
		config.AllowedOrigins[i] = strings.TrimSpace(origin)
	}

	return config, nil
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
