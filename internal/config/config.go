/**
 * @description
 * This package handles the configuration management for the service. It uses
 * the Viper library to read configuration from environment variables, with an
 * optional .env file for local development.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the registry-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort           string `mapstructure:"SERVER_PORT"`
	DatabaseURL          string `mapstructure:"DATABASE_URL"`
	RedisURL             string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL          string `mapstructure:"RABBITMQ_URL"`

	StripeSecretKey       string `mapstructure:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret   string `mapstructure:"STRIPE_WEBHOOK_SECRET"`
	StripeConnectClientID string `mapstructure:"STRIPE_CONNECT_CLIENT_ID"`

	AppBaseURL  string `mapstructure:"APP_BASE_URL"`
	AuthJWKSURL string `mapstructure:"AUTH_JWKS_URL"`

	ResendAPIKey string `mapstructure:"RESEND_API_KEY"`
	EmailFrom    string `mapstructure:"EMAIL_FROM"`

	ConnectStateSecret string `mapstructure:"CONNECT_STATE_SECRET"`

	Currency             string `mapstructure:"CURRENCY"`
	MinContributionCents int64  `mapstructure:"MIN_CONTRIBUTION_CENTS"`

	CheckoutRateLimitRequests      int `mapstructure:"CHECKOUT_RATE_LIMIT_REQUESTS"`
	CheckoutRateLimitWindowSeconds int `mapstructure:"CHECKOUT_RATE_LIMIT_WINDOW_SECONDS"`
	ConnectRateLimitRequests       int `mapstructure:"CONNECT_RATE_LIMIT_REQUESTS"`
	ConnectRateLimitWindowSeconds  int `mapstructure:"CONNECT_RATE_LIMIT_WINDOW_SECONDS"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "bramlijst:rate_limit")
	viper.SetDefault("APP_BASE_URL", "https://bramlijst.nl")
	viper.SetDefault("CURRENCY", "eur")
	viper.SetDefault("MIN_CONTRIBUTION_CENTS", 500)
	viper.SetDefault("CHECKOUT_RATE_LIMIT_REQUESTS", 10)
	viper.SetDefault("CHECKOUT_RATE_LIMIT_WINDOW_SECONDS", 10)
	viper.SetDefault("CONNECT_RATE_LIMIT_REQUESTS", 5)
	viper.SetDefault("CONNECT_RATE_LIMIT_WINDOW_SECONDS", 60)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("STRIPE_SECRET_KEY")
	_ = viper.BindEnv("STRIPE_WEBHOOK_SECRET")
	_ = viper.BindEnv("STRIPE_CONNECT_CLIENT_ID")
	_ = viper.BindEnv("APP_BASE_URL")
	_ = viper.BindEnv("AUTH_JWKS_URL")
	_ = viper.BindEnv("RESEND_API_KEY")
	_ = viper.BindEnv("EMAIL_FROM")
	_ = viper.BindEnv("CONNECT_STATE_SECRET")
	_ = viper.BindEnv("CURRENCY")
	_ = viper.BindEnv("MIN_CONTRIBUTION_CENTS")
	_ = viper.BindEnv("CHECKOUT_RATE_LIMIT_REQUESTS")
	_ = viper.BindEnv("CHECKOUT_RATE_LIMIT_WINDOW_SECONDS")
	_ = viper.BindEnv("CONNECT_RATE_LIMIT_REQUESTS")
	_ = viper.BindEnv("CONNECT_RATE_LIMIT_WINDOW_SECONDS")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	// Platform-provided port (Heroku/Render style) takes precedence.
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}

	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.AppBaseURL = strings.TrimRight(strings.TrimSpace(config.AppBaseURL), "/")
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "bramlijst:rate_limit"
	}

	if config.MinContributionCents <= 0 {
		log.Printf("level=warn component=config msg=\"invalid minimum contribution; using default\" value=%d", config.MinContributionCents)
		config.MinContributionCents = 500
	}
	if config.CheckoutRateLimitRequests <= 0 {
		config.CheckoutRateLimitRequests = 10
	}
	if config.CheckoutRateLimitWindowSeconds <= 0 {
		config.CheckoutRateLimitWindowSeconds = 10
	}
	if config.ConnectRateLimitRequests <= 0 {
		config.ConnectRateLimitRequests = 5
	}
	if config.ConnectRateLimitWindowSeconds <= 0 {
		config.ConnectRateLimitWindowSeconds = 60
	}

	return
}
