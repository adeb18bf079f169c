package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application's configuration.
type Config struct {
	Environment string `yaml:"environment"`
	Database    struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Auth struct {
		JWTSecret        string        `yaml:"jwt_secret"`
		AccessTokenTTL   time.Duration `yaml:"access_token_ttl"`
		RefreshExtension time.Duration `yaml:"refresh_extension"`
		SessionCookie    string        `yaml:"session_cookie"`
		RememberMeTTL    time.Duration `yaml:"remember_me_ttl"`
	} `yaml:"auth"`
	RateLimit struct {
		MaxAttempts int           `yaml:"max_attempts"`
		Window      time.Duration `yaml:"window"`
		FailOpen    bool          `yaml:"fail_open"`
	} `yaml:"rate_limit"`
	Storage struct {
		Enabled      bool   `yaml:"enabled"`
		Region       string `yaml:"region"`
		Bucket       string `yaml:"bucket"`
		BaseEndpoint string `yaml:"base_endpoint"`
		AccessKey    string `yaml:"access_key"`
		SecretKey    string `yaml:"secret_key"`
	} `yaml:"storage"`
	Notifications struct {
		Enabled          bool   `yaml:"enabled"`
		TelegramBotToken string `yaml:"telegram_bot_token"`
		AdminChatID      int64  `yaml:"admin_chat_id"`
	} `yaml:"notifications"`
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
}

// LoadConfig reads configuration from the specified YAML file and applies
// environment variable overrides for deployment-specific values.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.applyEnvOverrides()
	config.applyDefaults()

	return config, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("S3_ACCESS_KEY"); v != "" {
		c.Storage.AccessKey = v
	}
	if v := os.Getenv("S3_SECRET_KEY"); v != "" {
		c.Storage.SecretKey = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Notifications.TelegramBotToken = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
}

func (c *Config) applyDefaults() {
	if c.Auth.AccessTokenTTL == 0 {
		c.Auth.AccessTokenTTL = 1 * time.Hour
	}
	if c.Auth.RefreshExtension == 0 {
		c.Auth.RefreshExtension = 1 * time.Hour
	}
	if c.Auth.SessionCookie == "" {
		c.Auth.SessionCookie = "ngdi_session"
	}
	if c.Auth.RememberMeTTL == 0 {
		c.Auth.RememberMeTTL = 30 * 24 * time.Hour
	}
	if c.RateLimit.MaxAttempts == 0 {
		c.RateLimit.MaxAttempts = 5
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = 15 * time.Minute
	}
	if c.Server.Port == "" {
		c.Server.Port = ":8080"
	}
}

// IsProduction reports whether the app runs with production hardening
// (secure cookies, HSTS).
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
