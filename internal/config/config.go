// Package config loads the service configuration from an optional YAML file
// and PIS_* environment variables.
package config

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "PIS"

type Config struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	AdminAddr       string        `mapstructure:"admin_addr"`
	APIKey          string        `mapstructure:"api_key"`
	DefaultCurrency string        `mapstructure:"default_currency"`
	ProviderTimeout time.Duration `mapstructure:"provider_timeout"`

	CORS        CORS        `mapstructure:"cors"`
	Webhook     Webhook     `mapstructure:"webhook"`
	Ledger      Ledger      `mapstructure:"ledger"`
	Idempotency Idempotency `mapstructure:"idempotency"`
	Redis       Redis       `mapstructure:"redis"`
	Kafka       Kafka       `mapstructure:"kafka"`
	Stripe      Stripe      `mapstructure:"stripe"`
	MTN         MTN         `mapstructure:"mtn"`
	Airtel      Airtel      `mapstructure:"airtel"`
	Breaker     Breaker     `mapstructure:"breaker"`
	Log         Log         `mapstructure:"log"`
}

type CORS struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type Webhook struct {
	Skew    time.Duration  `mapstructure:"skew"`
	Secrets WebhookSecrets `mapstructure:"secrets"`
}

type WebhookSecrets struct {
	Stripe string `mapstructure:"stripe"`
	MTN    string `mapstructure:"mtn"`
	Airtel string `mapstructure:"airtel"`
}

type Ledger struct {
	Backend string `mapstructure:"backend"`
	DSN     string `mapstructure:"dsn"`
}

type Idempotency struct {
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type Kafka struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type Stripe struct {
	SecretKey string `mapstructure:"secret_key"`
	BaseURL   string `mapstructure:"base_url"`
}

type MTN struct {
	APIURL          string `mapstructure:"api_url"`
	ClientID        string `mapstructure:"client_id"`
	ClientSecret    string `mapstructure:"client_secret"`
	SubscriptionKey string `mapstructure:"subscription_key"`
	TargetEnv       string `mapstructure:"target_env"`
	CallbackURL     string `mapstructure:"callback_url"`
}

type Airtel struct {
	APIURL       string `mapstructure:"api_url"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	APIKey       string `mapstructure:"api_key"`
	Country      string `mapstructure:"country"`
	CallbackURL  string `mapstructure:"callback_url"`
}

type Breaker struct {
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
	OpenTimeout      time.Duration `mapstructure:"open_timeout"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var defaults = map[string]any{
	"http_addr":                 ":8080",
	"admin_addr":                ":9090",
	"api_key":                   "",
	"default_currency":          "USD",
	"provider_timeout":          "30s",
	"cors.allowed_origins":      []string{"*"},
	"webhook.skew":              "300s",
	"webhook.secrets.stripe":    "",
	"webhook.secrets.mtn":       "",
	"webhook.secrets.airtel":    "",
	"ledger.backend":            "memory",
	"ledger.dsn":                "",
	"idempotency.backend":       "memory",
	"idempotency.ttl":           "24h",
	"redis.addr":                "localhost:6379",
	"redis.password":            "",
	"redis.db":                  0,
	"kafka.brokers":             []string{},
	"kafka.topic":               "payments.settled",
	"stripe.secret_key":         "",
	"stripe.base_url":           "",
	"mtn.api_url":               "",
	"mtn.client_id":             "",
	"mtn.client_secret":         "",
	"mtn.subscription_key":      "",
	"mtn.target_env":            "sandbox",
	"mtn.callback_url":          "",
	"airtel.api_url":            "",
	"airtel.client_id":          "",
	"airtel.client_secret":      "",
	"airtel.api_key":            "",
	"airtel.country":            "UG",
	"airtel.callback_url":       "",
	"breaker.failure_threshold": 5,
	"breaker.open_timeout":      "30s",
	"log.level":                 "info",
	"log.format":                "json",
}

// Load reads path when given, otherwise an optional config.yaml from the
// working directory. Environment variables win over the file, e.g.
// PIS_WEBHOOK_SECRETS_MTN for webhook.secrets.mtn.
func Load(path string) (Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.APIKey) == "" {
		errs = append(errs, errors.New("api_key is required"))
	}
	if c.Webhook.Skew <= 0 {
		errs = append(errs, errors.New("webhook.skew must be positive"))
	}
	switch c.Ledger.Backend {
	case "memory":
	case "postgres":
		if c.Ledger.DSN == "" {
			errs = append(errs, errors.New("ledger.dsn is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("ledger.backend %q is not memory or postgres", c.Ledger.Backend))
	}
	switch c.Idempotency.Backend {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr is required for the redis idempotency backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("idempotency.backend %q is not memory or redis", c.Idempotency.Backend))
	}
	if c.Idempotency.TTL > 0 && c.Idempotency.TTL < c.Webhook.Skew {
		errs = append(errs, errors.New("idempotency.ttl must not be shorter than webhook.skew"))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("kafka.topic is required when brokers are set"))
	}
	return errors.Join(errs...)
}

// APIKeyMatches compares key against the configured API key in constant time.
func (c Config) APIKeyMatches(key string) bool {
	if c.APIKey == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(c.APIKey)) == 1
}
