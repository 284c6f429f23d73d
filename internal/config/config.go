package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type AppCfg struct{ Env, Port string }
type DBCfg struct{ DSN string }
type RedisCfg struct{ Addr string }

// ProviderCfg carries one provider's webhook and API settings. Secret is
// the webhook signing secret, APIKey authenticates outbound calls.
type ProviderCfg struct {
	Secret          string
	APIKey          string
	BaseURL         string
	Tolerance       time.Duration
	RateLimitPerMin int
}

type FraudCfg struct {
	ReviewThreshold    int
	DeclineThreshold   int
	HighValueMinor     int64
	VeryHighValueMinor int64
}

type ReconCfg struct {
	Interval time.Duration
	Lookback time.Duration
}

type Cfg struct {
	App      AppCfg
	DB       DBCfg
	Redis    RedisCfg
	Stripe   ProviderCfg
	Paystack ProviderCfg
	Fraud    FraudCfg
	Recon    ReconCfg

	// WebhookRetention bounds how long processed webhook audit rows are
	// kept before the purge job removes them.
	WebhookRetention time.Duration
}

func Load() Cfg {
	// .env is a local convenience; absence is not an error.
	_ = godotenv.Load()

	viper.AutomaticEnv()
	viper.SetDefault("APP_ENV", "sandbox")
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("STRIPE_BASE_URL", "https://api.stripe.com")
	viper.SetDefault("STRIPE_TOLERANCE_SECONDS", 300)
	viper.SetDefault("STRIPE_RATE_LIMIT_PER_MIN", 600)
	viper.SetDefault("PAYSTACK_BASE_URL", "https://api.paystack.co")
	viper.SetDefault("PAYSTACK_TOLERANCE_SECONDS", 300)
	viper.SetDefault("PAYSTACK_RATE_LIMIT_PER_MIN", 300)
	viper.SetDefault("FRAUD_REVIEW_THRESHOLD", 40)
	viper.SetDefault("FRAUD_DECLINE_THRESHOLD", 70)
	viper.SetDefault("FRAUD_HIGH_VALUE_MINOR", 50_000)
	viper.SetDefault("FRAUD_VERY_HIGH_VALUE_MINOR", 500_000)
	viper.SetDefault("RECON_INTERVAL_MINUTES", 60)
	viper.SetDefault("RECON_LOOKBACK_HOURS", 24)
	viper.SetDefault("WEBHOOK_RETENTION_DAYS", 90)

	cfg := Cfg{
		App:   AppCfg{Env: viper.GetString("APP_ENV"), Port: viper.GetString("APP_PORT")},
		DB:    DBCfg{DSN: viper.GetString("DB_DSN")},
		Redis: RedisCfg{Addr: viper.GetString("REDIS_ADDR")},
		Stripe: ProviderCfg{
			Secret:          strings.TrimSpace(viper.GetString("STRIPE_WEBHOOK_SECRET")),
			APIKey:          strings.TrimSpace(viper.GetString("STRIPE_API_KEY")),
			BaseURL:         viper.GetString("STRIPE_BASE_URL"),
			Tolerance:       time.Duration(viper.GetInt("STRIPE_TOLERANCE_SECONDS")) * time.Second,
			RateLimitPerMin: viper.GetInt("STRIPE_RATE_LIMIT_PER_MIN"),
		},
		Paystack: ProviderCfg{
			Secret:          strings.TrimSpace(viper.GetString("PAYSTACK_WEBHOOK_SECRET")),
			APIKey:          strings.TrimSpace(viper.GetString("PAYSTACK_API_KEY")),
			BaseURL:         viper.GetString("PAYSTACK_BASE_URL"),
			Tolerance:       time.Duration(viper.GetInt("PAYSTACK_TOLERANCE_SECONDS")) * time.Second,
			RateLimitPerMin: viper.GetInt("PAYSTACK_RATE_LIMIT_PER_MIN"),
		},
		Fraud: FraudCfg{
			ReviewThreshold:    viper.GetInt("FRAUD_REVIEW_THRESHOLD"),
			DeclineThreshold:   viper.GetInt("FRAUD_DECLINE_THRESHOLD"),
			HighValueMinor:     viper.GetInt64("FRAUD_HIGH_VALUE_MINOR"),
			VeryHighValueMinor: viper.GetInt64("FRAUD_VERY_HIGH_VALUE_MINOR"),
		},
		Recon: ReconCfg{
			Interval: time.Duration(viper.GetInt("RECON_INTERVAL_MINUTES")) * time.Minute,
			Lookback: time.Duration(viper.GetInt("RECON_LOOKBACK_HOURS")) * time.Hour,
		},
		WebhookRetention: time.Duration(viper.GetInt("WEBHOOK_RETENTION_DAYS")) * 24 * time.Hour,
	}

	// Fail fast on required settings.
	if cfg.DB.DSN == "" {
		log.Fatal().Msg("DB_DSN is required")
	}
	if cfg.Stripe.Secret == "" && cfg.Paystack.Secret == "" {
		log.Fatal().Msg("at least one provider webhook secret is required")
	}
	return cfg
}
