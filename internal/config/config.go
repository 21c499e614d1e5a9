// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as the bot credentials, chat ids, workflow tuning, logging, database
// path, rate limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-board-bot")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// BotConfig defines the Telegram-side settings.
type BotConfig struct {
	Token          string // BOT_TOKEN (required)
	ChannelChatID  int64  // CHANNEL_CHAT_ID: the public board channel (required)
	OperatorChatID int64  // OPERATOR_CHAT_ID: receives error reports (0 disables)
	WebhookURL     string // WEBHOOK_URL: public endpoint; empty means long polling
	WebhookSecret  string // WEBHOOK_SECRET: expected X-Telegram-Bot-Api-Secret-Token
	PollTimeout    int    // POLL_TIMEOUT_S: long-poll timeout in seconds
}

// WorkflowConfig tunes the submission workflow.
type WorkflowConfig struct {
	BatchFlushDelay time.Duration // BATCH_FLUSH_DELAY: quiet period closing an album
	MaxAdPhotos     int           // MAX_AD_PHOTOS: photo cap per ad
	DedupeRetention time.Duration // DEDUPE_RETENTION: how long processed update ids are kept
}

// Config holds all configuration values for the application.
type Config struct {
	// Server (webhook endpoint, health, metrics)
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// App
	DBPath string // SQLite path

	Bot      BotConfig
	Workflow WorkflowConfig

	// Rate limiting (per-chat flood control)
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		// App
		DBPath: getenv("DB_PATH", "board.db"),

		Bot: BotConfig{
			Token:          getenv("BOT_TOKEN", ""),
			ChannelChatID:  getint64("CHANNEL_CHAT_ID", 0),
			OperatorChatID: getint64("OPERATOR_CHAT_ID", 0),
			WebhookURL:     getenv("WEBHOOK_URL", ""),
			WebhookSecret:  getenv("WEBHOOK_SECRET", ""),
			PollTimeout:    getint("POLL_TIMEOUT_S", 30),
		},

		Workflow: WorkflowConfig{
			BatchFlushDelay: getdur("BATCH_FLUSH_DELAY", 2*time.Second),
			MaxAdPhotos:     getint("MAX_AD_PHOTOS", 5),
			DedupeRetention: getdur("DEDUPE_RETENTION", 48*time.Hour),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 2.0),
		RateBurst: getint("RATE_BURST", 6),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-board-bot"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if strings.TrimSpace(cfg.Bot.Token) == "" {
		return cfg, errors.New("BOT_TOKEN must not be empty")
	}
	if cfg.Bot.ChannelChatID == 0 {
		return cfg, errors.New("CHANNEL_CHAT_ID must be set")
	}
	if cfg.Bot.PollTimeout < 1 {
		return cfg, errors.New("POLL_TIMEOUT_S must be >= 1")
	}
	if cfg.Workflow.BatchFlushDelay <= 0 {
		return cfg, errors.New("BATCH_FLUSH_DELAY must be > 0")
	}
	if cfg.Workflow.MaxAdPhotos < 1 {
		return cfg, errors.New("MAX_AD_PHOTOS must be >= 1")
	}
	if cfg.Workflow.DedupeRetention <= 0 {
		return cfg, errors.New("DEDUPE_RETENTION must be > 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getint64(k string, def int64) int64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
