package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	Env               string `mapstructure:"ENV"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// MongoDB.
	DatabaseURL  string `mapstructure:"DATABASE_URL"`
	DatabaseName string `mapstructure:"DATABASE_NAME"`

	// Identity.
	JWTSecret string        `mapstructure:"JWT_SECRET"`
	TokenTTL  time.Duration `mapstructure:"TOKEN_TTL"`

	// Redis configuration.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisCacheDB  int    `mapstructure:"REDIS_CACHE_DB"`
	RedisAuthDB   int    `mapstructure:"REDIS_AUTH_DB"`
	RedisQueueDB  int    `mapstructure:"REDIS_QUEUE_DB"`

	// Client sessions and the anonymous quota.
	SessionTTL           time.Duration `mapstructure:"SESSION_TTL"`
	AnonymousPromptLimit int           `mapstructure:"ANONYMOUS_PROMPT_LIMIT"`

	// Conversational backend.
	ChatBackend    string        `mapstructure:"CHAT_BACKEND"`
	ChatBackendURL string        `mapstructure:"CHAT_BACKEND_URL"`
	ChatTimeout    time.Duration `mapstructure:"CHAT_TIMEOUT"`
	GeminiAPIKey   string        `mapstructure:"GEMINI_API_KEY"`
	GeminiModel    string        `mapstructure:"GEMINI_MODEL"`

	// Payment processor. Keys never leave the server.
	PaymentProvider      string `mapstructure:"PAYMENT_PROVIDER"`
	PaymentGatewayURL    string `mapstructure:"PAYMENT_GATEWAY_URL"`
	PaymentGatewayAPIKey string `mapstructure:"PAYMENT_GATEWAY_API_KEY"`
	StripeKey            string `mapstructure:"STRIPE_KEY"`
	StripeWebhookSecret  string `mapstructure:"STRIPE_WEBHOOK_SECRET"`
	CheckoutSuccessURL   string `mapstructure:"CHECKOUT_SUCCESS_URL"`
	CheckoutCancelURL    string `mapstructure:"CHECKOUT_CANCEL_URL"`
	Currency             string `mapstructure:"CURRENCY"`

	// Firebase Cloud Messaging. Empty disables push notifications.
	FirebaseCredentialsFile string `mapstructure:"FIREBASE_CREDENTIALS_FILE"`
}

var AppConfig Config

func LoadConfig() {
	// A local .env is optional; real environment variables win.
	_ = godotenv.Load()

	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	setDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MAX_REQUESTS_PER_MIN", 100)
	v.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	v.SetDefault("DATABASE_NAME", "mia")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("TOKEN_TTL", 24*time.Hour)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_CACHE_DB", 0)
	v.SetDefault("REDIS_AUTH_DB", 1)
	v.SetDefault("REDIS_QUEUE_DB", 2)
	v.SetDefault("SESSION_TTL", 24*time.Hour)
	v.SetDefault("ANONYMOUS_PROMPT_LIMIT", 2)
	v.SetDefault("CHAT_BACKEND", "webhook")
	v.SetDefault("CHAT_BACKEND_URL", "http://localhost:5678/webhook/mia")
	v.SetDefault("CHAT_TIMEOUT", 30*time.Second)
	v.SetDefault("GEMINI_API_KEY", "")
	v.SetDefault("GEMINI_MODEL", "models/gemini-1.5-pro")
	v.SetDefault("PAYMENT_PROVIDER", "gateway")
	v.SetDefault("PAYMENT_GATEWAY_URL", "https://mianoktos.vercel.app/v1/stripe")
	v.SetDefault("PAYMENT_GATEWAY_API_KEY", "")
	v.SetDefault("STRIPE_KEY", "")
	v.SetDefault("STRIPE_WEBHOOK_SECRET", "")
	v.SetDefault("CHECKOUT_SUCCESS_URL", "http://localhost:5173")
	v.SetDefault("CHECKOUT_CANCEL_URL", "http://localhost:5173")
	v.SetDefault("CURRENCY", "mxn")
	// Unset keys are invisible to Unmarshal, so every key needs a default.
	v.SetDefault("FIREBASE_CREDENTIALS_FILE", "")
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}
