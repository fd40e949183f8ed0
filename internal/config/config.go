package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the image generation service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	GeneratorMode    string
	GeneratorBaseURL string
	GeneratorTimeout time.Duration

	PlatformAPIURL     string
	PlatformGatewayURL string
	PlatformBotToken   string
	PlatformAppID      string
	PlatformTimeout    time.Duration

	DatabaseURL string

	DrawRetryLimit   int
	DrawImageDelay   time.Duration
	DrawRequeueDelay time.Duration
	DrawReplyWindow  time.Duration
	DrawHoldOnFatal  bool

	ApprovalTTL             time.Duration
	ApprovalJanitorInterval time.Duration
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:           envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:   envOrDefault("APP_METRICS_NAMESPACE", "atelier"),
		GeneratorMode:      envOrDefault("GENERATOR_MODE", "auto"),
		GeneratorBaseURL:   stringsTrimSpace("GENERATOR_BASE_URL"),
		PlatformAPIURL:     stringsTrimSpace("PLATFORM_API_URL"),
		PlatformGatewayURL: stringsTrimSpace("PLATFORM_GATEWAY_URL"),
		PlatformBotToken:   stringsTrimSpace("PLATFORM_BOT_TOKEN"),
		PlatformAppID:      stringsTrimSpace("PLATFORM_APP_ID"),
		DatabaseURL:        stringsTrimSpace("DATABASE_URL"),

		ShutdownTimeout:  15 * time.Second,
		GeneratorTimeout: 2 * time.Minute,
		PlatformTimeout:  30 * time.Second,

		DrawRetryLimit:   3,
		DrawImageDelay:   500 * time.Millisecond,
		DrawRequeueDelay: 500 * time.Millisecond,
		DrawReplyWindow:  14*time.Minute + 30*time.Second,
		DrawHoldOnFatal:  false,

		ApprovalTTL:             time.Hour,
		ApprovalJanitorInterval: time.Minute,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.GeneratorTimeout, err = durationFromEnv("GENERATOR_TIMEOUT", cfg.GeneratorTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.PlatformTimeout, err = durationFromEnv("PLATFORM_TIMEOUT", cfg.PlatformTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.DrawRetryLimit, err = intFromEnv("DRAW_RETRY_LIMIT", cfg.DrawRetryLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.DrawImageDelay, err = durationFromEnv("DRAW_IMAGE_DELAY", cfg.DrawImageDelay)
	if err != nil {
		return Config{}, err
	}
	cfg.DrawRequeueDelay, err = durationFromEnv("DRAW_REQUEUE_DELAY", cfg.DrawRequeueDelay)
	if err != nil {
		return Config{}, err
	}
	cfg.DrawReplyWindow, err = durationFromEnv("DRAW_REPLY_WINDOW", cfg.DrawReplyWindow)
	if err != nil {
		return Config{}, err
	}
	popOnFatal, err := boolFromEnv("DRAW_POP_ON_FATAL", true)
	if err != nil {
		return Config{}, err
	}
	cfg.DrawHoldOnFatal = !popOnFatal
	cfg.ApprovalTTL, err = durationFromEnv("APPROVAL_TTL", cfg.ApprovalTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.ApprovalJanitorInterval, err = durationFromEnv("APPROVAL_JANITOR_INTERVAL", cfg.ApprovalJanitorInterval)
	if err != nil {
		return Config{}, err
	}

	switch cfg.GeneratorMode {
	case "auto", "http", "mock":
	default:
		return Config{}, fmt.Errorf("GENERATOR_MODE must be auto, http or mock")
	}
	if cfg.DrawRetryLimit <= 0 {
		return Config{}, fmt.Errorf("DRAW_RETRY_LIMIT must be positive")
	}
	if cfg.DrawReplyWindow < time.Minute {
		return Config{}, fmt.Errorf("DRAW_REPLY_WINDOW must be at least 1m")
	}
	if cfg.ApprovalJanitorInterval <= 0 {
		return Config{}, fmt.Errorf("APPROVAL_JANITOR_INTERVAL must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
