package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderGateway   = "gateway"
	ProviderAnthropic = "anthropic"
)

type Config struct {
	Port     int
	LogLevel string

	DatabaseURL string
	SQLitePath  string

	NatsURL   string
	NatsToken string

	LLMProvider    string
	GatewayURL     string
	GatewayAPIKey  string
	GatewayModel   string
	GatewayTimeout time.Duration

	AnthropicAPIKey string
	AnthropicModel  string

	OpenAIAPIKey  string
	RealtimeModel string

	AuthJWTSecret string
	AuthAudience  string

	StartingCredits int
	PurchaseCredits int

	CORSOrigins string

	OTELEndpoint string
	OTELInsecure bool
}

// LoadDotEnv loads KEY=value pairs from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}

func Load() Config {
	return Config{
		Port:     envInt("RAISECOACH_PORT", 8760),
		LogLevel: envStr("LOG_LEVEL", "info"),

		DatabaseURL: envStr("DATABASE_URL", ""),
		SQLitePath:  envStr("SQLITE_PATH", "./data/raisecoach.db"),

		NatsURL:   envStr("NATS_URL", ""),
		NatsToken: envStr("NATS_TOKEN", ""),

		LLMProvider:    strings.ToLower(envStr("LLM_PROVIDER", ProviderGateway)),
		GatewayURL:     envStr("LLM_GATEWAY_URL", "https://ai.gateway.lovable.dev/v1"),
		GatewayAPIKey:  envStr("LLM_API_KEY", ""),
		GatewayModel:   envStr("LLM_MODEL", "google/gemini-2.5-flash"),
		GatewayTimeout: time.Duration(envInt("GATEWAY_TIMEOUT", 120)) * time.Second,

		AnthropicAPIKey: envStr("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  envStr("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),

		OpenAIAPIKey:  envStr("OPENAI_API_KEY", ""),
		RealtimeModel: envStr("REALTIME_MODEL", "gpt-4o-realtime-preview-2024-12-17"),

		AuthJWTSecret: envStr("AUTH_JWT_SECRET", ""),
		AuthAudience:  envStr("AUTH_AUDIENCE", "authenticated"),

		StartingCredits: envInt("STARTING_CREDITS", 1),
		PurchaseCredits: envInt("PURCHASE_CREDITS", 3),

		CORSOrigins: envStr("CORS_ORIGINS", "*"),

		OTELEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure: envBool("OTEL_INSECURE", false),
	}
}

// Validate reports every missing or inconsistent value at once.
func (c Config) Validate() error {
	var errs []error
	switch c.LLMProvider {
	case ProviderGateway:
		if c.GatewayAPIKey == "" {
			errs = append(errs, errors.New("LLM_API_KEY is not configured"))
		}
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			errs = append(errs, errors.New("ANTHROPIC_API_KEY is not configured"))
		}
	default:
		errs = append(errs, fmt.Errorf("LLM_PROVIDER must be %q or %q, got %q", ProviderGateway, ProviderAnthropic, c.LLMProvider))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("RAISECOACH_PORT out of range: %d", c.Port))
	}
	if c.StartingCredits < 0 {
		errs = append(errs, errors.New("STARTING_CREDITS must not be negative"))
	}
	if c.PurchaseCredits <= 0 {
		errs = append(errs, errors.New("PURCHASE_CREDITS must be positive"))
	}
	if c.GatewayTimeout <= 0 {
		errs = append(errs, errors.New("GATEWAY_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

func envStr(key, fallback string) string {
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

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
