// Package config содержит логику чтения конфигурации сервиса бронирования.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса бронирования.
type Config struct {
	RunAddress         string        `env:"RUN_ADDRESS"`
	DatabaseURI        string        `env:"DATABASE_URI"`
	AdminPassword      string        `env:"ADMIN_PASSWORD"`
	AuthSecret         string        `env:"AUTH_SECRET"`
	TrashRetentionDays int           `env:"TRASH_RETENTION_DAYS"`
	PurgeInterval      time.Duration `env:"PURGE_INTERVAL"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envAdminPassword := cfg.AdminPassword
	envAuthSecret := cfg.AuthSecret
	envRetention := cfg.TrashRetentionDays
	envPurgeInterval := cfg.PurgeInterval

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.AdminPassword, "p", "", "admin password")
	flag.StringVar(&cfg.AuthSecret, "s", "salonbook-secret", "secret for signing auth cookies")
	flag.IntVar(&cfg.TrashRetentionDays, "t", 7, "days a trashed reservation is kept before purge")
	flag.DurationVar(&cfg.PurgeInterval, "i", time.Hour, "interval between automatic trash purges")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envAdminPassword != "" {
		cfg.AdminPassword = envAdminPassword
	}
	if envAuthSecret != "" {
		cfg.AuthSecret = envAuthSecret
	}
	if envRetention != 0 {
		cfg.TrashRetentionDays = envRetention
	}
	if envPurgeInterval != 0 {
		cfg.PurgeInterval = envPurgeInterval
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.TrashRetentionDays <= 0 {
		cfg.TrashRetentionDays = 7
	}
	if cfg.PurgeInterval <= 0 {
		cfg.PurgeInterval = time.Hour
	}

	return cfg, nil
}
