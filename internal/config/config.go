package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port                   string `mapstructure:"port"`
	AllowedOrigin          string `mapstructure:"allowed_origin"`
	DatabaseURL            string `mapstructure:"database_url"`
	AutoMigrate            bool   `mapstructure:"auto_migrate"`
	RedisAddr              string `mapstructure:"redis_addr"`
	RedisPassword          string `mapstructure:"redis_password"`
	RedisDB                int    `mapstructure:"redis_db"`
	AuthSecret             string `mapstructure:"auth_secret"`
	AccessTokenTTLMinutes  int    `mapstructure:"access_token_ttl_minutes"`
	LogLevel               string `mapstructure:"log_level"`
	LogFormat              string `mapstructure:"log_format"`
	Timezone               string `mapstructure:"store_timezone"`
	BarcodeBaseURL         string `mapstructure:"barcode_base_url"`
	BarcodeTimeoutSeconds  int    `mapstructure:"barcode_timeout_seconds"`
	BarcodeCacheTTLMinutes int    `mapstructure:"barcode_cache_ttl_minutes"`
	SeedAdminPassword      string `mapstructure:"seed_admin_password"`
	SeedCashierPassword    string `mapstructure:"seed_cashier_password"`
	SeedGuestPassword      string `mapstructure:"seed_guest_password"`
}

var defaults = map[string]any{
	"port":                      "8080",
	"allowed_origin":            "http://127.0.0.1:3000",
	"database_url":              "",
	"auto_migrate":              true,
	"redis_addr":                "",
	"redis_password":            "",
	"redis_db":                  0,
	"auth_secret":               "",
	"access_token_ttl_minutes":  480,
	"log_level":                 "info",
	"log_format":                "json",
	"store_timezone":            "Asia/Jakarta",
	"barcode_base_url":          "https://world.openfoodfacts.org",
	"barcode_timeout_seconds":   5,
	"barcode_cache_ttl_minutes": 1440,
	"seed_admin_password":       "",
	"seed_cashier_password":     "",
	"seed_guest_password":       "",
}

// Load resolves configuration from the environment, optionally layered over
// the file named by CONFIG_FILE. Keys map to upper-case env names.
func Load() (Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file := strings.TrimSpace(v.GetString("config_file")); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.AuthSecret = strings.TrimSpace(cfg.AuthSecret)
	if cfg.AccessTokenTTLMinutes < 1 {
		cfg.AccessTokenTTLMinutes = 480
	}
	if cfg.BarcodeTimeoutSeconds < 1 {
		cfg.BarcodeTimeoutSeconds = 5
	}
	if cfg.BarcodeCacheTTLMinutes < 1 {
		cfg.BarcodeCacheTTLMinutes = 1440
	}
	if strings.TrimSpace(cfg.Timezone) == "" {
		cfg.Timezone = "Asia/Jakarta"
	}
	return cfg, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}
