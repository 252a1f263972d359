package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/Dosada05/tournament-engine/storage"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"

	CacheDriverMemory = "memory"
	CacheDriverRedis  = "redis"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	ServerPort int `env:"SERVER_PORT" envDefault:"8080"`

	StorageDriver    string        `env:"STORAGE_DRIVER"     envDefault:"postgres"`
	DatabaseURL      string        `env:"DATABASE_URL"`
	DBConnectTimeout time.Duration `env:"DB_CONNECT_TIMEOUT" envDefault:"5s"`

	CacheDriver      string        `env:"CACHE_DRIVER"       envDefault:"memory"`
	RedisURL         string        `env:"REDIS_URL"`
	CacheSlidingTTL  time.Duration `env:"CACHE_SLIDING_TTL"  envDefault:"20m"`
	CacheAbsoluteTTL time.Duration `env:"CACHE_ABSOLUTE_TTL" envDefault:"2h"`

	PointsPerWin     int `env:"POINTS_PER_WIN"     envDefault:"1"`
	SecretBcryptCost int `env:"SECRET_BCRYPT_COST" envDefault:"10"`
	RetryMaxAttempts int `env:"RETRY_MAX_ATTEMPTS" envDefault:"3"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	R2AccountID       string `env:"R2_ACCOUNT_ID"`
	R2AccessKeyID     string `env:"R2_ACCESS_KEY_ID"`
	R2SecretAccessKey string `env:"R2_SECRET_ACCESS_KEY"`
	R2BucketName      string `env:"R2_BUCKET_NAME"`
	R2PublicBaseURL   string `env:"R2_PUBLIC_BASE_URL"`
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	// Ошибку не считаем фатальной: .env нужен только локально.
	_ = godotenv.Load()
	return Parse()
}

// Parse reads the environment as is, without looking for a .env file.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	cfg.StorageDriver = strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	cfg.CacheDriver = strings.ToLower(strings.TrimSpace(cfg.CacheDriver))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.ServerPort)
	}

	switch c.StorageDriver {
	case StorageDriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL environment variable is not set")
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", StorageDriverPostgres, StorageDriverMemory, c.StorageDriver)
	}

	switch c.CacheDriver {
	case CacheDriverRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL environment variable is not set")
		}
	case CacheDriverMemory:
	default:
		return fmt.Errorf("CACHE_DRIVER must be %q or %q, got %q", CacheDriverMemory, CacheDriverRedis, c.CacheDriver)
	}

	if c.CacheSlidingTTL <= 0 || c.CacheAbsoluteTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}
	if c.CacheSlidingTTL > c.CacheAbsoluteTTL {
		return fmt.Errorf("CACHE_SLIDING_TTL (%s) must not exceed CACHE_ABSOLUTE_TTL (%s)", c.CacheSlidingTTL, c.CacheAbsoluteTTL)
	}
	if c.PointsPerWin <= 0 {
		return fmt.Errorf("POINTS_PER_WIN must be positive, got %d", c.PointsPerWin)
	}
	if c.SecretBcryptCost < 4 || c.SecretBcryptCost > 31 {
		return fmt.Errorf("SECRET_BCRYPT_COST must be between 4 and 31, got %d", c.SecretBcryptCost)
	}
	if c.RetryMaxAttempts <= 0 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be positive, got %d", c.RetryMaxAttempts)
	}
	if c.DBConnectTimeout <= 0 {
		return fmt.Errorf("DB_CONNECT_TIMEOUT must be positive")
	}
	return nil
}

// R2 returns the archive bucket settings; see storage.R2Config.Enabled.
func (c *Config) R2() storage.R2Config {
	return storage.R2Config{
		AccountID:       c.R2AccountID,
		AccessKeyID:     c.R2AccessKeyID,
		SecretAccessKey: c.R2SecretAccessKey,
		BucketName:      c.R2BucketName,
		PublicBaseURL:   c.R2PublicBaseURL,
	}
}
