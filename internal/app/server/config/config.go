package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPath  = "../../.env"
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

type Config struct {
	Env     string
	DB      db
	Server  server
	Logger  logger
	Session session
}

type db struct {
	DatabaseURI string
}

type server struct {
	RunAddress      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// MetricsEnabled публикует /metrics для Prometheus.
	MetricsEnabled bool
}

type logger struct {
	LogLevel string
}

type session struct {
	TTL time.Duration
}

// MustLoad загружает конфигурацию сервера
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return cfg
}

func Load() (*Config, error) {
	// .env необязателен: в контейнере всё приходит через окружение.
	_ = godotenv.Load(".env", envPath)

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("app_env", EnvLocal)
	v.SetDefault("run_address", ":8080")
	v.SetDefault("log_level", "")
	v.SetDefault("read_timeout_seconds", 15)
	v.SetDefault("write_timeout_seconds", 30)
	v.SetDefault("shutdown_timeout_seconds", 10)
	v.SetDefault("metrics_enabled", true)
	v.SetDefault("session_ttl_hours", 24)

	cfg := &Config{
		Env: v.GetString("app_env"),
		DB:  db{DatabaseURI: v.GetString("database_uri")},
		Server: server{
			RunAddress:      v.GetString("run_address"),
			ReadTimeout:     time.Duration(v.GetInt("read_timeout_seconds")) * time.Second,
			WriteTimeout:    time.Duration(v.GetInt("write_timeout_seconds")) * time.Second,
			ShutdownTimeout: time.Duration(v.GetInt("shutdown_timeout_seconds")) * time.Second,
			MetricsEnabled:  v.GetBool("metrics_enabled"),
		},
		Logger:  logger{LogLevel: v.GetString("log_level")},
		Session: session{TTL: time.Duration(v.GetInt("session_ttl_hours")) * time.Hour},
	}

	if cfg.DB.DatabaseURI == "" {
		return nil, errors.New("DATABASE_URI is required")
	}
	if cfg.Server.RunAddress == "" {
		return nil, errors.New("RUN_ADDRESS is required")
	}
	return cfg, nil
}
