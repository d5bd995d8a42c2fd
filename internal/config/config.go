package config

import (
	"fmt"
	"log"
	"sync"

	"github.com/ilyakaznacheev/cleanenv"
)

type Listen struct {
	BindIp string `yaml:"bind_ip" env-default:"0.0.0.0"`
	Port   string `yaml:"port" env-default:"8080"`
}

// AuthConfig controls JWT issuance. Secret is the single source of truth
// for signing and verification — the auth service is built with it, and
// the HTTP middleware verifies tokens through that service rather than
// reading a secret of its own (spec §9: unify the JWT secret source).
type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret" env:"JWT_SECRET" env-default:""`
	JWTExpiryDays int    `yaml:"jwt_expiry_days" env-default:"7"`
}

// BillingConfig holds the token meter's tunables.
type BillingConfig struct {
	MarkupPercent    float64 `yaml:"markup_percent" env-default:"1.30"`
	TrialDays        int     `yaml:"trial_days" env-default:"3"`
	TrialTokenLimit  int64   `yaml:"trial_token_limit" env-default:"100000"`
}

// CryptomusConfig holds the payment-reconciler credentials.
type CryptomusConfig struct {
	MerchantID string `yaml:"merchant_id" env:"CRYPTOMUS_MERCHANT_ID" env-default:""`
	APIKey     string `yaml:"api_key" env:"CRYPTOMUS_API_KEY" env-default:""`
}

// StorageConfig locates the central DB and the per-tenant store root.
type StorageConfig struct {
	DatabaseURL   string `yaml:"database_url" env:"DATABASE_URL" env-default:"./central.db"`
	TenantWorkspace string `yaml:"tenant_workspace" env:"ZEROCLAW_WORKSPACE" env-default:"./tenants"`
}

// TelegramConfig is the default bot username used to build /start deep
// links returned from GET /auth/telegram-link; per-agent bot tokens live
// in the agent's own config blob (entity.TelegramChannelConfig).
type TelegramConfig struct {
	BotUsername string `yaml:"bot_username" env:"ZEROCLAW_TELEGRAM_BOT_USERNAME" env-default:""`
}

type Config struct {
	Listen    Listen          `yaml:"listen"`
	Env       string          `yaml:"env" env-default:"local"`
	Auth      AuthConfig      `yaml:"auth"`
	Billing   BillingConfig   `yaml:"billing"`
	Cryptomus CryptomusConfig `yaml:"cryptomus"`
	Storage   StorageConfig   `yaml:"storage"`
	Telegram  TelegramConfig  `yaml:"telegram"`
}

var instance *Config
var once sync.Once

func MustLoad(path string) *Config {
	var err error
	once.Do(func() {
		instance = &Config{}
		if err = cleanenv.ReadConfig(path, instance); err != nil {
			desc, _ := cleanenv.GetDescription(instance, nil)
			err = fmt.Errorf("config: %s; %s", err, desc)
			instance = nil
			log.Fatal(err)
		}
	})
	return instance
}
