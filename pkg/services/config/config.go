package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds every environment-driven setting, read once at process start
// and passed by reference into each component.
type Config struct {
	NewRelicLicenseKey  string `mapstructure:"NEW_RELIC_LICENSE_KEY"`
	NewRelicAccountID   string `mapstructure:"NEW_RELIC_ACCOUNT_ID"`
	TargetRegion        string `mapstructure:"TARGET_REGION"`
	GroupByDimensionKey string `mapstructure:"GROUP_BY_DIMENSION_KEY"`
	GroupByTagKey       string `mapstructure:"GROUP_BY_TAG_KEY"`
	BedrockModelID      string `mapstructure:"BEDROCK_MODEL_ID"`
	BedrockRegion       string `mapstructure:"BEDROCK_REGION"`
	JPYExchangeRate     int    `mapstructure:"JPY_EXCHANGE_RATE"`
}

var envKeys = []string{
	"NEW_RELIC_LICENSE_KEY",
	"NEW_RELIC_ACCOUNT_ID",
	"TARGET_REGION",
	"GROUP_BY_DIMENSION_KEY",
	"GROUP_BY_TAG_KEY",
	"BEDROCK_MODEL_ID",
	"BEDROCK_REGION",
	"JPY_EXCHANGE_RATE",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetDefault("TARGET_REGION", "us-east-1")
	v.SetDefault("GROUP_BY_DIMENSION_KEY", "SERVICE")
	v.SetDefault("BEDROCK_MODEL_ID", "anthropic.claude-3-haiku-20240307-v1:0")
	v.SetDefault("BEDROCK_REGION", "us-east-1")
	v.SetDefault("JPY_EXCHANGE_RATE", 150)

	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment configuration: %w", err)
	}
	return &cfg, nil
}

// HasDeliveryCredentials reports whether the New Relic settings required for
// event delivery are present.
func (c *Config) HasDeliveryCredentials() bool {
	return c.NewRelicLicenseKey != "" && c.NewRelicAccountID != ""
}
