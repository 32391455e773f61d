package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env     string `yaml:"env" env:"NICKPAY_ENV" env-default:"local" env-description:"Environment" env-choices:"local,dev,prod"`
	API     `yaml:"api"`
	Store   `yaml:"store"`
	Feed    `yaml:"feed"`
	DevAuth `yaml:"dev_auth"`
	Sandbox `yaml:"sandbox"`
}

type API struct {
	BaseURL string        `yaml:"base_url" env:"NICKPAY_API_URL" env-default:"http://localhost:8088/api"`
	Timeout time.Duration `yaml:"timeout" env:"NICKPAY_API_TIMEOUT" env-default:"10s"`
}

// Store points at the local secure store. KeyPath holds the random master key;
// it is created on first use.
type Store struct {
	Path    string `yaml:"path" env:"NICKPAY_STORE_PATH" env-default:"nickpay.db"`
	KeyPath string `yaml:"key_path" env:"NICKPAY_STORE_KEY" env-default:"nickpay.key"`
}

type Feed struct {
	PageSize int `yaml:"page_size" env:"NICKPAY_FEED_PAGE_SIZE" env-default:"10"`
}

// DevAuth replaces the remote login with a locally signed token.
// Development only; never enabled unless set explicitly.
type DevAuth struct {
	Enabled bool   `yaml:"enabled" env:"NICKPAY_DEV_AUTH" env-default:"false"`
	Secret  string `yaml:"secret" env:"NICKPAY_DEV_AUTH_SECRET" env-default:"dev-auth-secret"`
}

type Sandbox struct {
	Host            string `yaml:"host" env:"SANDBOX_HOST" env-default:"localhost"`
	Port            int    `yaml:"port" env:"SANDBOX_PORT" env-default:"8088"`
	JWTSecret       string `yaml:"jwt_secret" env:"SANDBOX_JWT_SECRET" env-default:"sandbox-secret"`
	StartingBalance string `yaml:"starting_balance" env:"SANDBOX_STARTING_BALANCE" env-default:"1000"`
}

// Load reads the config file at path, or only the environment when path is empty.
// Environment variables override file values in both cases.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	var cfg Config

	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return &cfg, cfg.validate()
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: config file does not exist: %s", op, path)
	}

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &cfg, cfg.validate()
}

func MustLoad(path string) *Config {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}

	cfg, err := Load(path)
	if err != nil {
		panic("Failed to read config: " + err.Error())
	}

	return cfg
}

func (c *Config) validate() error {
	if c.API.BaseURL == "" {
		return errors.New("config: api.base_url is required")
	}
	if c.Feed.PageSize <= 0 {
		return fmt.Errorf("config: feed.page_size must be positive, got %d", c.Feed.PageSize)
	}
	if c.DevAuth.Enabled && c.DevAuth.Secret == "" {
		return errors.New("config: dev_auth.secret is required when dev_auth is enabled")
	}
	return nil
}
