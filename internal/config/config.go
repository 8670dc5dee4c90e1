package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// MinJWTSecretBytes is the shortest accepted HS256 signing secret.
const MinJWTSecretBytes = 32

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	JWTSecret  string        `mapstructure:"JWT_SECRET"`
	JWTIssuer  string        `mapstructure:"JWT_ISSUER"`
	SessionTTL time.Duration `mapstructure:"SESSION_TTL"`
	BcryptCost int           `mapstructure:"BCRYPT_COST"`

	RedisURL       string        `mapstructure:"REDIS_URL"`
	DoctorCacheTTL time.Duration `mapstructure:"DOCTOR_CACHE_TTL"`

	CORSOrigins         []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS        float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst      int           `mapstructure:"RATE_LIMIT_BURST"`
	LoginRateLimitRPS   float64       `mapstructure:"LOGIN_RATE_LIMIT_RPS"`
	LoginRateLimitBurst int           `mapstructure:"LOGIN_RATE_LIMIT_BURST"`
	RequestTimeout      time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	BodyLimit           string        `mapstructure:"BODY_LIMIT"`
	TLSEnabled          bool          `mapstructure:"TLS_ENABLED"`

	DefaultAppointmentMinutes int   `mapstructure:"DEFAULT_APPOINTMENT_MINUTES"`
	DefaultInsurancePlanID    int64 `mapstructure:"DEFAULT_INSURANCE_PLAN_ID"`

	MigrationsDir string `mapstructure:"MIGRATIONS_DIR"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"JWT_SECRET", "JWT_ISSUER", "SESSION_TTL", "BCRYPT_COST",
	"REDIS_URL", "DOCTOR_CACHE_TTL",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"LOGIN_RATE_LIMIT_RPS", "LOGIN_RATE_LIMIT_BURST",
	"REQUEST_TIMEOUT", "BODY_LIMIT", "TLS_ENABLED",
	"DEFAULT_APPOINTMENT_MINUTES", "DEFAULT_INSURANCE_PLAN_ID",
	"MIGRATIONS_DIR",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "4000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("JWT_ISSUER", "clinic")
	v.SetDefault("SESSION_TTL", time.Hour)
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("DOCTOR_CACHE_TTL", 5*time.Minute)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("LOGIN_RATE_LIMIT_RPS", 0.2)
	v.SetDefault("LOGIN_RATE_LIMIT_BURST", 5)
	v.SetDefault("REQUEST_TIMEOUT", 15*time.Second)
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("DEFAULT_APPOINTMENT_MINUTES", 30)
	v.SetDefault("DEFAULT_INSURANCE_PLAN_ID", 1)
	v.SetDefault("MIGRATIONS_DIR", "./migrations")

	// Bind explicitly so Unmarshal sees variables that have no default.
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// A missing .env file is fine.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.CORSOrigins = splitList(cfg.CORSOrigins)

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" && cfg.IsDev() {
		secret, err := randomSecret()
		if err != nil {
			return nil, err
		}
		cfg.JWTSecret = secret
		log.Println("WARNING: JWT_SECRET is not set; using a random per-process secret (development only).")
		log.Println("WARNING: Sessions will not survive a restart. Set JWT_SECRET outside development.")
	}

	return cfg, nil
}

// splitList accepts both a single comma-separated entry and a real list.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func randomSecret() (string, error) {
	buf := make([]byte, MinJWTSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate development jwt secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if len(c.JWTSecret) < MinJWTSecretBytes {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes, got %d", MinJWTSecretBytes, len(c.JWTSecret))
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost)
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("DB_MAX_CONNS must be at least 1, got %d", c.DBMaxConns)
	}
	if c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS (%d), got %d", c.DBMaxConns, c.DBMinConns)
	}
	if c.DefaultAppointmentMinutes <= 0 {
		return fmt.Errorf("DEFAULT_APPOINTMENT_MINUTES must be positive, got %d", c.DefaultAppointmentMinutes)
	}
	if c.DefaultInsurancePlanID <= 0 {
		return fmt.Errorf("DEFAULT_INSURANCE_PLAN_ID must be positive, got %d", c.DefaultInsurancePlanID)
	}
	if c.IsProduction() {
		for _, o := range c.CORSOrigins {
			if o == "*" {
				return fmt.Errorf("CORS_ORIGINS must not contain \"*\" in production")
			}
		}
	}
	return nil
}
