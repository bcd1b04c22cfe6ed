package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

const defaultJWTSecret = "a-very-secret-key-should-be-longer-and-random"

// Config holds application configuration.
type Config struct {
	Port         string
	IsProduction bool

	// Storage
	StoreDriver string
	DatabaseURL string
	SQLitePath  string
	RedisAddr   string // Optional; enables the redis idempotency guard

	// Rate provider
	FXAPIURL        string
	FXAPIKey        string
	FXTTL           time.Duration
	FXTimeout       time.Duration
	FXBasisCurrency string

	// Auth
	JWTSecret         string
	JWTIssuer         string
	JWTExpiryDuration time.Duration

	RateLimit           string
	NormalizeCategories bool
	CORSAllowedOrigins  []string
}

// LoadConfig loads configuration from environment variables and .env file if present.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("IS_PRODUCTION", false)
	v.SetDefault("STORE_DRIVER", StoreSQLite)
	v.SetDefault("PGSQL_URL", "")
	v.SetDefault("SQLITE_PATH", "hivefi.db")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("FX_API_URL", "https://api.frankfurter.app/latest?from=%s&to=%s")
	v.SetDefault("FX_API_KEY", "")
	v.SetDefault("FX_TTL_MINUTES", 30)
	v.SetDefault("FX_TIMEOUT", "20s")
	v.SetDefault("FX_BASIS_CURRENCY", "")
	v.SetDefault("JWT_SECRET", defaultJWTSecret)
	v.SetDefault("JWT_ISSUER", "hivefi-ledger")
	v.SetDefault("JWT_EXPIRY_DURATION", "1h")
	v.SetDefault("RATE_LIMIT", "60-M")
	v.SetDefault("NORMALIZE_CATEGORIES", false)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:                v.GetString("PORT"),
		IsProduction:        v.GetBool("IS_PRODUCTION"),
		StoreDriver:         strings.ToLower(strings.TrimSpace(v.GetString("STORE_DRIVER"))),
		DatabaseURL:         v.GetString("PGSQL_URL"),
		SQLitePath:          v.GetString("SQLITE_PATH"),
		RedisAddr:           v.GetString("REDIS_ADDR"),
		FXAPIURL:            v.GetString("FX_API_URL"),
		FXAPIKey:            v.GetString("FX_API_KEY"),
		FXBasisCurrency:     strings.ToUpper(strings.TrimSpace(v.GetString("FX_BASIS_CURRENCY"))),
		JWTSecret:           v.GetString("JWT_SECRET"),
		JWTIssuer:           v.GetString("JWT_ISSUER"),
		RateLimit:           v.GetString("RATE_LIMIT"),
		NormalizeCategories: v.GetBool("NORMALIZE_CATEGORIES"),
	}

	if cfg.Port == "" {
		cfg.Port = "8080"
		log.Printf("Warning: PORT environment variable not set. Defaulting to %s\n", cfg.Port)
	}

	switch cfg.StoreDriver {
	case StoreSQLite, StoreMemory:
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("PGSQL_URL is required when STORE_DRIVER=%s", StorePostgres)
		}
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q: expected %s, %s or %s", cfg.StoreDriver, StoreSQLite, StorePostgres, StoreMemory)
	}

	ttlMinutes := v.GetInt("FX_TTL_MINUTES")
	if ttlMinutes < 1 {
		log.Printf("Warning: FX_TTL_MINUTES must be at least 1 (got %d). Using 1.\n", ttlMinutes)
		ttlMinutes = 1
	}
	cfg.FXTTL = time.Duration(ttlMinutes) * time.Minute

	cfg.FXTimeout = parseDuration(v, "FX_TIMEOUT", 20*time.Second)
	cfg.JWTExpiryDuration = parseDuration(v, "JWT_EXPIRY_DURATION", time.Hour)

	if cfg.JWTSecret == defaultJWTSecret {
		if cfg.IsProduction {
			return nil, fmt.Errorf("JWT_SECRET must be set in production")
		}
		log.Println("Warning: JWT_SECRET environment variable not set. Using default insecure key.")
	}

	for _, origin := range strings.Split(v.GetString("CORS_ALLOWED_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, origin)
		}
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string, fallback time.Duration) time.Duration {
	raw := v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		if raw != "" {
			log.Printf("Warning: Invalid value for %s ('%s'). Defaulting to %s.\n", key, raw, fallback)
		}
		return fallback
	}
	return d
}
