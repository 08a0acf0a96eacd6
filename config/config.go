package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the studygen backend.
type Config struct {
	General  GeneralConfig  `mapstructure:"general"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Provider ProviderConfig `mapstructure:"provider"`
	Quota    QuotaConfig    `mapstructure:"quota"`
}

// GeneralConfig contains server-wide settings.
type GeneralConfig struct {
	Listen    string `mapstructure:"listen"`
	Env       string `mapstructure:"env"`
	LogLevel  string `mapstructure:"log_level"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// StorageConfig contains storage and persistence settings.
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains Postgres connection settings.
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// DSN builds a postgres connection string from the configured fields.
func (p PostgresConfig) DSN() (string, error) {
	if strings.TrimSpace(p.URL) != "" {
		return p.URL, nil
	}
	if strings.TrimSpace(p.Host) == "" || strings.TrimSpace(p.DBName) == "" {
		return "", fmt.Errorf("postgres not configured (storage.postgres.host/dbname or url)")
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl), nil
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Addr returns host:port, or "" when redis is not configured.
func (r RedisConfig) Addr() string {
	if strings.TrimSpace(r.Host) == "" || strings.TrimSpace(r.Port) == "" {
		return ""
	}
	return r.Host + ":" + r.Port
}

// ProviderConfig contains text-generation provider settings.
type ProviderConfig struct {
	OpenRouter OpenRouterConfig `mapstructure:"openrouter"`
}

// OpenRouterConfig configures the OpenRouter chat-completions client.
// A missing API key is not a startup error: the server still runs and
// serves deterministic fallback content.
type OpenRouterConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// QuotaConfig controls the per-user daily generation limiter.
type QuotaConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	FreeDailyLimit int  `mapstructure:"free_daily_limit"`
}

// LoadConfig loads config from file and STUDYGEN_* environment variables.
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.SetDefault("general.listen", ":10010")
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("provider.openrouter.base_url", "https://openrouter.ai/api/v1")
	viper.SetDefault("provider.openrouter.model", "deepseek/deepseek-r1:free")
	viper.SetDefault("provider.openrouter.temperature", 0.7)
	viper.SetDefault("provider.openrouter.max_tokens", 4000)
	viper.SetDefault("provider.openrouter.timeout", 30*time.Second)
	viper.SetDefault("quota.enabled", true)
	viper.SetDefault("quota.free_daily_limit", 10)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
		viper.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("STUDYGEN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// A config file is optional; env vars and defaults can carry a deployment.
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	return &config
}
