package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const minSecretLength = 32

type Config struct {
	AppEnv                  string        `envconfig:"APP_ENV" default:"development"`
	ServerPort              string        `envconfig:"SERVER_PORT" default:"8080"`
	ServerReadHeaderTimeout time.Duration `envconfig:"SERVER_READ_HEADER_TIMEOUT" default:"15s"`
	ServerWriteTimeout      time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ServerIdleTimeout       time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"120s"`
	RequestTimeout          time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	LogFormat               string        `envconfig:"LOG_FORMAT" default:"pretty"`
	LogLevel                string        `envconfig:"LOG_LEVEL" default:"info"`

	JWTSecret              string        `envconfig:"JWT_SECRET"`
	JWTAccessTTL           time.Duration `envconfig:"JWT_ACCESS_TTL" default:"15m"`
	JWTRefreshTTL          time.Duration `envconfig:"JWT_REFRESH_TTL" default:"168h"`
	PrincipalLookupTimeout time.Duration `envconfig:"PRINCIPAL_LOOKUP_TIMEOUT" default:"2s"`

	StoreDriver  string `envconfig:"STORE_DRIVER" default:"postgres"`
	DatabaseURL  string `envconfig:"DATABASE_URL"`
	DBMaxConns   int32  `envconfig:"DB_MAX_CONNS" default:"10"`
	DBMinConns   int32  `envconfig:"DB_MIN_CONNS" default:"2"`
	SeedDemoData bool   `envconfig:"SEED_DEMO_USERS" default:"false"`

	RedisAddr      string        `envconfig:"REDIS_ADDR"`
	RedisPassword  string        `envconfig:"REDIS_PASSWORD"`
	IdempotencyTTL time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`

	CORSOrigins      []string `envconfig:"CORS_ORIGINS" default:"*"`
	RateLimitRPM     int      `envconfig:"RATE_LIMIT_RPM" default:"100"`
	AuthRateLimitRPM int      `envconfig:"AUTH_RATE_LIMIT_RPM" default:"10"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}

	cfg.JWTSecret = strings.TrimSpace(cfg.JWTSecret)
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	cfg.CORSOrigins = trimAll(cfg.CORSOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if len(c.JWTSecret) < minSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes", minSecretLength)
	}

	if c.JWTAccessTTL <= 0 || c.JWTRefreshTTL <= c.JWTAccessTTL {
		return fmt.Errorf("JWT_REFRESH_TTL must be longer than JWT_ACCESS_TTL")
	}

	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	switch c.StoreDriver {
	case "postgres":
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("STORE_DRIVER must be postgres or memory, got %q", c.StoreDriver)
	}

	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS cannot exceed DB_MAX_CONNS")
	}

	switch c.LogFormat {
	case "pretty", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be pretty or json, got %q", c.LogFormat)
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
