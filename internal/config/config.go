// Package config loads service configuration from the environment, with
// an optional YAML file for provider endpoint/model overrides and scoring
// weights.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/promptarena/arena/internal/scoring"
)

type ProviderOverride struct {
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type Config struct {
	Addr     string
	LogLevel string

	OpenAIAPIKey    string
	AnthropicAPIKey string
	GoogleAPIKey    string
	BedrockEnabled  bool

	ProviderTimeout time.Duration
	Providers       map[string]ProviderOverride
	Weights         scoring.Weights

	EmailServiceID   string
	EmailTemplateID  string
	EmailUserID      string
	EmailAccessToken string
	EmailBaseURL     string

	LedgerURL    string
	LedgerSecret string

	RedisURL    string
	DatabaseURL string
	CacheTTL    time.Duration

	AWSRegion     string
	SecretsPrefix string
	SNSTopicARN   string
	SQSQueueURL   string

	OTLPEndpoint   string
	EncryptionKey  string
	AdminTokenHash string

	ShutdownTimeout time.Duration
}

type fileConfig struct {
	Providers map[string]ProviderOverride `yaml:"providers"`
	Scoring   struct {
		Weights scoring.Weights `yaml:"weights"`
	} `yaml:"scoring"`
}

func Load() (*Config, error) {
	cfg := &Config{
		Addr:     getEnv("ADDR", ":8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		GoogleAPIKey:    getEnv("GOOGLE_API_KEY", ""),
		BedrockEnabled:  getEnv("BEDROCK_ENABLED", "false") == "true",

		ProviderTimeout: getDurationEnv("PROVIDER_TIMEOUT", 25*time.Second),
		Providers:       make(map[string]ProviderOverride),
		Weights:         scoring.DefaultWeights(),

		EmailServiceID:   getEnv("EMAIL_SERVICE_ID", ""),
		EmailTemplateID:  getEnv("EMAIL_TEMPLATE_ID", ""),
		EmailUserID:      getEnv("EMAIL_USER_ID", ""),
		EmailAccessToken: getEnv("EMAIL_ACCESS_TOKEN", ""),
		EmailBaseURL:     getEnv("EMAIL_BASE_URL", ""),

		LedgerURL:    getEnv("LEDGER_URL", ""),
		LedgerSecret: getEnv("LEDGER_SECRET", ""),

		RedisURL:    getEnv("REDIS_URL", ""),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		CacheTTL:    getDurationEnv("CACHE_TTL", 10*time.Minute),

		AWSRegion:     getEnv("AWS_REGION", ""),
		SecretsPrefix: getEnv("SECRETS_PREFIX", ""),
		SNSTopicARN:   getEnv("SNS_TOPIC_ARN", ""),
		SQSQueueURL:   getEnv("SQS_QUEUE_URL", ""),

		OTLPEndpoint:   getEnv("OTLP_ENDPOINT", ""),
		EncryptionKey:  getEnv("ENCRYPTION_KEY", ""),
		AdminTokenHash: getEnv("ADMIN_TOKEN_HASH", ""),

		ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
	}

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	for id, override := range fc.Providers {
		c.Providers[id] = override
	}

	if fc.Scoring.Weights.Base != 0 {
		c.Weights = fc.Scoring.Weights
	}

	return nil
}

// ProviderTimeoutFor returns the per-call timeout for one provider,
// honoring a YAML override when present.
func (c *Config) ProviderTimeoutFor(id string) time.Duration {
	if override, ok := c.Providers[id]; ok && override.TimeoutSeconds > 0 {
		return time.Duration(override.TimeoutSeconds) * time.Second
	}
	return c.ProviderTimeout
}

func (c *Config) ProviderBaseURL(id string) string {
	return c.Providers[id].BaseURL
}

func (c *Config) ProviderModel(id string) string {
	return c.Providers[id].Model
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
