package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the application configuration
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Review        ReviewConfig        `mapstructure:"review"`
	Sync          SyncConfig          `mapstructure:"sync"`
	Remote        RemoteConfig        `mapstructure:"remote"`
	Telegram      TelegramConfig      `mapstructure:"telegram"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Catalog       CatalogConfig       `mapstructure:"catalog"`
}

type AppConfig struct {
	LogPrefix string `mapstructure:"log_prefix"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type ReviewConfig struct {
	QueueLimit int `mapstructure:"queue_limit"`
}

// SyncConfig controls batching of knowledge writes to the remote store
type SyncConfig struct {
	MaxBatchSize  int           `mapstructure:"max_batch_size"`
	SafetyMargin  int           `mapstructure:"safety_margin"`
	ChunkTimeout  time.Duration `mapstructure:"chunk_timeout"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

type RemoteConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type TelegramConfig struct {
	Token string `mapstructure:"token"`
}

type NotificationsConfig struct {
	StartHour int `mapstructure:"start_hour"`
	EndHour   int `mapstructure:"end_hour"`
}

type CatalogConfig struct {
	WordsPath string `mapstructure:"words_path"`
	RulesPath string `mapstructure:"rules_path"`
}

// Load reads .env, an optional config file and TUTOR_* environment variables.
// An empty path looks for config.yaml in ./config and the working directory.
func Load(configPath string) (*Config, error) {
	// Загружаем .env, если он есть
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("TUTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		log.Println("Config file not found, using defaults")
	} else {
		log.Printf("Loaded config from %s", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail later at runtime
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Sync.MaxBatchSize <= 0 {
		return fmt.Errorf("sync.max_batch_size must be positive, got %d", c.Sync.MaxBatchSize)
	}
	if c.Sync.SafetyMargin < 0 {
		return fmt.Errorf("sync.safety_margin must not be negative, got %d", c.Sync.SafetyMargin)
	}
	if c.Notifications.StartHour < 0 || c.Notifications.EndHour > 23 || c.Notifications.StartHour > c.Notifications.EndHour {
		return fmt.Errorf("invalid notification hours %d-%d", c.Notifications.StartHour, c.Notifications.EndHour)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.log_prefix", "[tutor] ")

	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "data/tutor.db")

	v.SetDefault("review.queue_limit", 15)

	v.SetDefault("sync.max_batch_size", 500)
	v.SetDefault("sync.safety_margin", 50)
	v.SetDefault("sync.chunk_timeout", 10*time.Second)
	v.SetDefault("sync.flush_interval", 5*time.Minute)

	v.SetDefault("remote.base_url", "")
	v.SetDefault("remote.api_key", "")
	v.SetDefault("remote.timeout", 15*time.Second)

	v.SetDefault("telegram.token", "")

	v.SetDefault("notifications.start_hour", 8)
	v.SetDefault("notifications.end_hour", 22)

	v.SetDefault("catalog.words_path", "")
	v.SetDefault("catalog.rules_path", "")
}
