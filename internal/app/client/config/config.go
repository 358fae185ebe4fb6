package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultServerAddress = "localhost:8080"
	defaultLogLevel      = "info"
	defaultEnv           = "local"
	defaultConfigDir     = ".vetsync"
)

type Config struct {
	Env           string `mapstructure:"app_env"`
	ServerAddress string `mapstructure:"server_address"`
	LogLevel      string `mapstructure:"log_level"`
	ConfigDir     string `mapstructure:"config_dir"`
	SessionPath   string `mapstructure:"session_path"`
	DataPath      string `mapstructure:"data_path"`
	EnableTLS     bool   `mapstructure:"enable_tls"`
	Sync          Sync   `mapstructure:"sync"`
}

// Sync — параметры очереди, монитора сети и движка синхронизации.
type Sync struct {
	Interval            time.Duration `mapstructure:"sync_interval_seconds"`
	BatchSize           int           `mapstructure:"sync_batch_size"`
	MaxRetries          int           `mapstructure:"sync_max_retries"`
	InitialBackoff      time.Duration `mapstructure:"sync_initial_backoff_seconds"`
	MaxBackoff          time.Duration `mapstructure:"sync_max_backoff_seconds"`
	Debounce            time.Duration `mapstructure:"sync_debounce_seconds"`
	Cooldown            time.Duration `mapstructure:"sync_cooldown_seconds"`
	FullRefreshInterval time.Duration `mapstructure:"sync_full_refresh_minutes"`
	RequestTimeout      time.Duration `mapstructure:"sync_request_timeout_seconds"`
	NetworkDebounce     time.Duration `mapstructure:"network_debounce_seconds"`
	ProbeInterval       time.Duration `mapstructure:"network_probe_interval_seconds"`
	PurgeAfter          time.Duration `mapstructure:"queue_purge_after_hours"`
}

// MustLoad загружает конфигурацию клиента
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("Ошибка конфигурации: %v", err))
	}
	return cfg
}

// Load читает .env, переменные окружения и значения по умолчанию.
func Load() (*Config, error) {
	envPath := ".env"
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		envPath = "../.env"
	}
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			fmt.Printf("Ошибка загрузки .env файла: %v\n", err)
		}
	}

	viper.AutomaticEnv()

	viper.SetDefault("APP_ENV", defaultEnv)
	viper.SetDefault("SERVER_ADDRESS", defaultServerAddress)
	viper.SetDefault("LOG_LEVEL", defaultLogLevel)
	viper.SetDefault("CONFIG_DIR", defaultConfigDir)
	viper.SetDefault("ENABLE_TLS", false)
	viper.SetDefault("SYNC_INTERVAL_SECONDS", 30)
	viper.SetDefault("SYNC_BATCH_SIZE", 50)
	viper.SetDefault("SYNC_MAX_RETRIES", 5)
	viper.SetDefault("SYNC_INITIAL_BACKOFF_SECONDS", 2)
	viper.SetDefault("SYNC_MAX_BACKOFF_SECONDS", 300)
	viper.SetDefault("SYNC_DEBOUNCE_SECONDS", 2)
	viper.SetDefault("SYNC_COOLDOWN_SECONDS", 1)
	viper.SetDefault("SYNC_FULL_REFRESH_MINUTES", 15)
	viper.SetDefault("SYNC_REQUEST_TIMEOUT_SECONDS", 15)
	viper.SetDefault("NETWORK_DEBOUNCE_SECONDS", 2)
	viper.SetDefault("NETWORK_PROBE_INTERVAL_SECONDS", 15)
	viper.SetDefault("QUEUE_PURGE_AFTER_HOURS", 24)

	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	configDir := viper.GetString("CONFIG_DIR")
	if configDir == defaultConfigDir {
		configDir = filepath.Join(homeDir, configDir)
	}
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, fmt.Errorf("ошибка создания директории конфигурации: %w", err)
	}

	seconds := func(key string) time.Duration {
		return time.Duration(viper.GetInt(key)) * time.Second
	}

	cfg := &Config{
		Env:           viper.GetString("APP_ENV"),
		ServerAddress: viper.GetString("SERVER_ADDRESS"),
		LogLevel:      viper.GetString("LOG_LEVEL"),
		ConfigDir:     configDir,
		SessionPath:   filepath.Join(configDir, "session.json"),
		DataPath:      filepath.Join(configDir, "vetsync.db"),
		EnableTLS:     viper.GetBool("ENABLE_TLS"),
		Sync: Sync{
			Interval:            seconds("SYNC_INTERVAL_SECONDS"),
			BatchSize:           viper.GetInt("SYNC_BATCH_SIZE"),
			MaxRetries:          viper.GetInt("SYNC_MAX_RETRIES"),
			InitialBackoff:      seconds("SYNC_INITIAL_BACKOFF_SECONDS"),
			MaxBackoff:          seconds("SYNC_MAX_BACKOFF_SECONDS"),
			Debounce:            seconds("SYNC_DEBOUNCE_SECONDS"),
			Cooldown:            seconds("SYNC_COOLDOWN_SECONDS"),
			FullRefreshInterval: time.Duration(viper.GetInt("SYNC_FULL_REFRESH_MINUTES")) * time.Minute,
			RequestTimeout:      seconds("SYNC_REQUEST_TIMEOUT_SECONDS"),
			NetworkDebounce:     seconds("NETWORK_DEBOUNCE_SECONDS"),
			ProbeInterval:       seconds("NETWORK_PROBE_INTERVAL_SECONDS"),
			PurgeAfter:          time.Duration(viper.GetInt("QUEUE_PURGE_AFTER_HOURS")) * time.Hour,
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.ServerAddress == "" {
		return fmt.Errorf("server_address не может быть пустым")
	}
	if c.Sync.BatchSize <= 0 {
		return fmt.Errorf("sync_batch_size должен быть положительным")
	}
	if c.Sync.MaxRetries <= 0 {
		return fmt.Errorf("sync_max_retries должен быть положительным")
	}
	if c.Sync.Interval <= 0 {
		return fmt.Errorf("sync_interval_seconds должен быть положительным")
	}
	return nil
}

// BaseURL — адрес сервера со схемой.
func (c *Config) BaseURL() string {
	if c.EnableTLS {
		return "https://" + c.ServerAddress
	}
	return "http://" + c.ServerAddress
}

// IsProd проверяет, prod ли окружение
func (c *Config) IsProd() bool {
	return c.Env == "prod"
}

// IsDev проверяет, dev ли окружение
func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

// IsLocal проверяет, local ли окружение
func (c *Config) IsLocal() bool {
	return c.Env == "local" || c.Env == ""
}
