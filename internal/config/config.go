package config

import (
	"fmt"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort string `env:"SERVER_PORT,default=8080" validate:"required,numeric"`
	DBHost     string `env:"DB_HOST,default=localhost" validate:"required"`
	DBPort     string `env:"DB_PORT,default=5432" validate:"required,numeric"`
	DBUser     string `env:"DB_USER,default=blink" validate:"required"`
	DBPassword string `env:"DB_PASSWORD,default=blink_dev_password"`
	DBName     string `env:"DB_NAME,default=blink" validate:"required"`
	DBSSLMode  string `env:"DB_SSLMODE,default=disable" validate:"oneof=disable allow prefer require verify-ca verify-full"`
	JWTSecret  string `env:"JWT_SECRET,default=dev-secret-change-me" validate:"required"`
	LogLevel   string `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR"`

	// Client side
	RealtimeURL      string        `env:"REALTIME_URL" validate:"omitempty,url"`
	DeleteAccountURL string        `env:"DELETE_ACCOUNT_URL" validate:"omitempty,url"`
	AccessToken      string        `env:"ACCESS_TOKEN"`
	IdentityFile     string        `env:"IDENTITY_FILE,default=.blink_identity"`
	HeartbeatEvery   time.Duration `env:"HEARTBEAT_INTERVAL,default=15s" validate:"gt=0"`
	RefreshWindow    time.Duration `env:"REFRESH_WINDOW,default=250ms" validate:"gte=0"`
	IdleTimeout      time.Duration `env:"IDLE_TIMEOUT,default=30m" validate:"gte=0"`
}

var validate = validator.New()

// Load reads an optional .env file, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// DatabaseURL builds the pgx connection string.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}
