package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"park_api/internal/billing"
)

type Config struct {
	ServerPort string
	LogLevel   string

	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string

	MigrationsPath string
	MigrateOnStart bool

	JWTSecret     string
	JWTExpiration time.Duration

	Billing billing.Policy
}

func Load() *Config {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	dbPort, _ := strconv.Atoi(getEnv("DB_PORT", "5432"))
	jwtExpHours, _ := strconv.Atoi(getEnv("JWT_EXPIRATION_HOURS", "24"))

	return &Config{
		ServerPort: getEnv("SERVER_PORT", "8080"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     dbPort,
		DBUser:     getEnv("DB_USER", "park_api"),
		DBPassword: getEnv("DB_PASSWORD", "park_api"),
		DBName:     getEnv("DB_NAME", "park_api"),
		DBSslMode:  getEnv("DB_SSLMODE", "disable"),

		MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		MigrateOnStart: getEnv("MIGRATE_ON_START", "true") == "true",

		JWTSecret:     getEnv("JWT_SECRET", "change-me"),
		JWTExpiration: time.Duration(jwtExpHours) * time.Hour,

		Billing: loadBillingPolicy(),
	}
}

// loadBillingPolicy reads the facility billing configuration. The
// recognized options are BILLING_GRACE_MINUTES, BILLING_BASE_RATE,
// BILLING_HOURLY_RATE and BILLING_DISCOUNT_TIERS ("hours:fraction"
// pairs, comma separated).
func loadBillingPolicy() billing.Policy {
	policy := billing.DefaultPolicy()

	if v := os.Getenv("BILLING_GRACE_MINUTES"); v != "" {
		if minutes, err := strconv.Atoi(v); err == nil && minutes >= 0 {
			policy.GraceMinutes = minutes
		} else {
			log.Warn().Str("value", v).Msg("invalid BILLING_GRACE_MINUTES, keeping default")
		}
	}
	if v := os.Getenv("BILLING_BASE_RATE"); v != "" {
		if rate, err := strconv.ParseFloat(v, 64); err == nil && rate >= 0 {
			policy.BaseRate = rate
		} else {
			log.Warn().Str("value", v).Msg("invalid BILLING_BASE_RATE, keeping default")
		}
	}
	if v := os.Getenv("BILLING_HOURLY_RATE"); v != "" {
		if rate, err := strconv.ParseFloat(v, 64); err == nil && rate >= 0 {
			policy.HourlyRate = rate
		} else {
			log.Warn().Str("value", v).Msg("invalid BILLING_HOURLY_RATE, keeping default")
		}
	}
	if v := os.Getenv("BILLING_DISCOUNT_TIERS"); v != "" {
		tiers, err := billing.ParseDiscountTiers(v)
		if err != nil {
			log.Warn().Err(err).Msg("invalid BILLING_DISCOUNT_TIERS, keeping default")
		} else {
			policy.DiscountTiers = tiers
		}
	}
	return policy
}

func getEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
