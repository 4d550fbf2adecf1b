package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/currency"
)

// Config holds all configuration for the application
// Following 12-factor app principles, all config is loaded from environment variables
type Config struct {
	Server   ServerConfig
	Auth     AuthConfig
	Gateway  GatewayConfig
	Checkout CheckoutConfig
	Database DatabaseConfig
	Events   EventsConfig
	LogLevel string
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     int
	WriteTimeout    int
	ShutdownTimeout int
	RequestTimeout  int
}

type AuthConfig struct {
	APIKeys      []string // Valid API keys for authentication
	UserIDHeader string   // Header carrying the identity set by the upstream auth layer
}

// GatewayConfig holds the payment gateway credentials.
// KeySecret doubles as the HMAC key for payment signatures and must never be logged.
type GatewayConfig struct {
	KeyID     string
	KeySecret string
	BaseURL   string
	Timeout   int
	Currency  string
}

type CheckoutConfig struct {
	MinAmountMinor       int64
	RewardThresholdMinor int64
	RewardTimeout        int
	VerifyGatewayAmount  bool
}

type DatabaseConfig struct {
	URL string // empty selects the in-memory stores
}

type EventsConfig struct {
	KafkaBrokers    []string
	SettlementTopic string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			Host:            getEnv("HOST", "0.0.0.0"),
			ReadTimeout:     getEnvAsInt("READ_TIMEOUT", 15),
			WriteTimeout:    getEnvAsInt("WRITE_TIMEOUT", 15),
			ShutdownTimeout: getEnvAsInt("SHUTDOWN_TIMEOUT", 30),
			RequestTimeout:  getEnvAsInt("REQUEST_TIMEOUT", 60),
		},
		Auth: AuthConfig{
			APIKeys:      getEnvAsSlice("API_KEYS", []string{"apitest"}),
			UserIDHeader: getEnv("USER_ID_HEADER", "X-User-ID"),
		},
		Gateway: GatewayConfig{
			KeyID:     getEnv("RAZORPAY_KEY_ID", ""),
			KeySecret: getEnv("RAZORPAY_KEY_SECRET", ""),
			BaseURL:   getEnv("RAZORPAY_BASE_URL", "https://api.razorpay.com"),
			Timeout:   getEnvAsInt("RAZORPAY_TIMEOUT", 10),
			Currency:  strings.ToUpper(getEnv("CURRENCY", "INR")),
		},
		Checkout: CheckoutConfig{
			MinAmountMinor:       int64(getEnvAsInt("MIN_AMOUNT_MINOR", 100)),
			RewardThresholdMinor: int64(getEnvAsInt("REWARD_THRESHOLD_MINOR", 20000)),
			RewardTimeout:        getEnvAsInt("REWARD_TIMEOUT", 10),
			VerifyGatewayAmount:  getEnvAsBool("SETTLEMENT_VERIFY_AMOUNT", false),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Events: EventsConfig{
			KafkaBrokers:    getEnvAsSlice("KAFKA_BROKERS", nil),
			SettlementTopic: getEnv("KAFKA_SETTLEMENT_TOPIC", "order.settled"),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if len(c.Auth.APIKeys) == 0 {
		return fmt.Errorf("at least one API key must be configured")
	}

	if c.Auth.UserIDHeader == "" {
		return fmt.Errorf("USER_ID_HEADER is required")
	}

	if c.Gateway.KeySecret == "" {
		return fmt.Errorf("RAZORPAY_KEY_SECRET is required")
	}

	if _, err := currency.ParseISO(c.Gateway.Currency); err != nil {
		return fmt.Errorf("invalid currency %q: %w", c.Gateway.Currency, err)
	}

	timeouts := []struct {
		name  string
		value int
	}{
		{"READ_TIMEOUT", c.Server.ReadTimeout},
		{"WRITE_TIMEOUT", c.Server.WriteTimeout},
		{"SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout},
		{"REQUEST_TIMEOUT", c.Server.RequestTimeout},
		{"RAZORPAY_TIMEOUT", c.Gateway.Timeout},
		{"REWARD_TIMEOUT", c.Checkout.RewardTimeout},
	}
	for _, t := range timeouts {
		if t.value <= 0 {
			return fmt.Errorf("%s must be a positive number of seconds", t.name)
		}
	}

	if c.Checkout.MinAmountMinor <= 0 {
		return fmt.Errorf("MIN_AMOUNT_MINOR must be positive")
	}

	if c.Checkout.RewardThresholdMinor <= 0 {
		return fmt.Errorf("REWARD_THRESHOLD_MINOR must be positive")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// CurrencyUnit returns the parsed checkout currency. Validate guarantees it parses.
func (c GatewayConfig) CurrencyUnit() currency.Unit {
	return currency.MustParseISO(c.Currency)
}

// Helper functions for reading environment variables

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var values []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values
}
