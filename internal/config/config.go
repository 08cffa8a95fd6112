// Package config は環境変数からアプリ設定を読み込む。
//
// TODO_ プレフィックスの環境変数（と .env）を koanf で読み、
// 既定値の上に重ねてから validator で検証する。
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "TODO_"

type DBConfig struct {
	Driver          string        `koanf:"driver" validate:"required,oneof=mysql sqlite"`
	Host            string        `koanf:"host" validate:"required_if=Driver mysql"`
	Port            string        `koanf:"port" validate:"required_if=Driver mysql"`
	User            string        `koanf:"user" validate:"required_if=Driver mysql"`
	Password        string        `koanf:"password"`
	Name            string        `koanf:"name" validate:"required_if=Driver mysql"`
	Path            string        `koanf:"path" validate:"required_if=Driver sqlite"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime" validate:"gte=0"`
}

type Config struct {
	Env                string        `koanf:"env" validate:"required,oneof=local development production"`
	LogLevel           string        `koanf:"log_level" validate:"required"`
	HTTPAddr           string        `koanf:"http_addr" validate:"required"`
	HealthAddr         string        `koanf:"health_addr"`
	MetricsAddr        string        `koanf:"metrics_addr"`
	RequestTimeout     time.Duration `koanf:"request_timeout" validate:"gte=0"`
	ShutdownTimeout    time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	CORSAllowedOrigins []string      `koanf:"cors_allowed_origins"`
	TracingEnabled     bool          `koanf:"tracing_enabled"`
	DB                 DBConfig      `koanf:"db" validate:"required"`
}

// Default は外部設定が無いときの値（localhost の todo_db に繋ぐ）。
func Default() Config {
	return Config{
		Env:                "local",
		LogLevel:           "info",
		HTTPAddr:           ":3000",
		HealthAddr:         ":50051",
		MetricsAddr:        ":9464",
		RequestTimeout:     3 * time.Second,
		ShutdownTimeout:    10 * time.Second,
		CORSAllowedOrigins: []string{"*"},
		DB: DBConfig{
			Driver:          "mysql",
			Host:            "localhost",
			Port:            "3306",
			User:            "root",
			Password:        "",
			Name:            "todo_db",
			Path:            "todo.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
	}
}

// Load は Default() に TODO_* 環境変数を重ねて検証済みの Config を返す。
//
//	TODO_HTTP_ADDR   -> http_addr
//	TODO_DB_HOST     -> db.host
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	if rest, ok := strings.CutPrefix(key, "db_"); ok {
		return "db." + rest
	}
	return key
}
