// Package config loads the service configuration from YAML, with
// environment overrides for secrets.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	raw := value.Value
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// Config captures the runtime configuration for the service.
type Config struct {
	Listen   string         `yaml:"listen"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	JWT      JWTConfig      `yaml:"jwt"`
	CardRail CardConfig     `yaml:"card_rail"`
	Chain    ChainConfig    `yaml:"chain_rail"`
	Cart     CartConfig     `yaml:"cart"`
	Log      LogConfig      `yaml:"log"`
}

// DatabaseConfig names the backing store.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// RedisConfig names the cart cache.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// JWTConfig holds token verification secrets. Tokens are issued by the
// identity service; only the shared secrets live here.
type JWTConfig struct {
	MemberSecret string `yaml:"member_secret"`
	AdminSecret  string `yaml:"admin_secret"`
}

// CardConfig configures the card payment provider.
type CardConfig struct {
	Endpoint      string `yaml:"endpoint"`
	APIKey        string `yaml:"api_key"`
	WebhookSecret string `yaml:"webhook_secret"`
}

// ChainConfig configures the stablecoin rail. Leaving the recipient
// empty disables the rail and routes every checkout to cards. The
// webhook secret authenticates the watcher's transfer confirmations.
type ChainConfig struct {
	RecipientAddress string `yaml:"recipient_address"`
	TokenSymbol      string `yaml:"token_symbol"`
	WebhookSecret    string `yaml:"webhook_secret"`
}

// CartConfig tunes cart persistence.
type CartConfig struct {
	TTL Duration `yaml:"ttl"`
}

// LogConfig tunes logging output.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Load reads configuration from the supplied path and applies
// environment overrides for secrets.
func Load(path string) (Config, error) {
	cfg := Config{}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()
	dec := yaml.NewDecoder(file)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnvOverrides lets deployments keep secrets out of the YAML file.
func applyEnvOverrides(cfg *Config) {
	overrides := []struct {
		env    string
		target *string
	}{
		{"FANCLUB_DATABASE_DSN", &cfg.Database.DSN},
		{"FANCLUB_REDIS_ADDR", &cfg.Redis.Addr},
		{"FANCLUB_REDIS_PASSWORD", &cfg.Redis.Password},
		{"FANCLUB_JWT_MEMBER_SECRET", &cfg.JWT.MemberSecret},
		{"FANCLUB_JWT_ADMIN_SECRET", &cfg.JWT.AdminSecret},
		{"FANCLUB_CARD_API_KEY", &cfg.CardRail.APIKey},
		{"FANCLUB_CARD_WEBHOOK_SECRET", &cfg.CardRail.WebhookSecret},
		{"FANCLUB_CHAIN_WEBHOOK_SECRET", &cfg.Chain.WebhookSecret},
	}
	for _, o := range overrides {
		if value := strings.TrimSpace(os.Getenv(o.env)); value != "" {
			*o.target = value
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Listen == "" {
		cfg.Listen = ":8318"
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "fanclub.db"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "127.0.0.1:6379"
	}
	if cfg.Cart.TTL.Duration == 0 {
		cfg.Cart.TTL.Duration = 24 * time.Hour
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Chain.TokenSymbol == "" {
		cfg.Chain.TokenSymbol = "USDC"
	}
}

func validate(cfg Config) error {
	if strings.TrimSpace(cfg.JWT.MemberSecret) == "" {
		return fmt.Errorf("config: jwt member secret must be configured")
	}
	if strings.TrimSpace(cfg.JWT.AdminSecret) == "" {
		return fmt.Errorf("config: jwt admin secret must be configured")
	}
	if strings.TrimSpace(cfg.CardRail.Endpoint) == "" {
		return fmt.Errorf("config: card rail endpoint must be configured")
	}
	return nil
}
