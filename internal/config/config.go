package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database     DatabaseConfig
	Server       ServerConfig
	Auth         AuthConfig
	Geo          GeoConfig
	Risk         RiskConfig
	Alerts       AlertConfig
	Notification NotificationConfig
	Cleanup      CleanupConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	MigrationsDir     string
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	TrustedProxies []string
}

type AuthConfig struct {
	// JWTSecret verifies tokens issued by the external authentication
	// provider. This service never issues tokens itself.
	JWTSecret string
}

type GeoConfig struct {
	CityDBPath    string
	ASNDBPath     string
	LookupTimeout time.Duration
}

// RiskConfig holds the scoring policy. Weights must sum to 1.0.
type RiskConfig struct {
	DeviceNoveltyWeight float64
	GeoNoveltyWeight    float64
	VelocityWeight      float64
	FailureRateWeight   float64

	SuspicionThreshold int
	MaxTravelSpeedKmh  float64

	// Trailing window for the historical failure rate factor: last
	// HistoryWindowAttempts attempts or HistoryWindowDuration, whichever
	// covers less.
	HistoryWindowAttempts int
	HistoryWindowDuration time.Duration

	// Number of most recent successful logins used to establish the
	// account's home country.
	CountryHistoryLogins int
}

type AlertConfig struct {
	CooldownWindow      time.Duration
	BruteForceWindow    time.Duration
	BruteForceThreshold int
}

type NotificationConfig struct {
	Enabled     bool
	AWSRegion   string
	FromAddress string
	ToAddress   string
}

type CleanupConfig struct {
	Interval                 time.Duration
	UntrustedDeviceRetention time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "sentinel"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
			MigrationsDir:     getEnv("DB_MIGRATIONS_DIR", "migrations"),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseList(getEnv("ALLOWED_ORIGINS", "")),
			TrustedProxies: parseList(getEnv("TRUSTED_PROXIES", "")),
		},
		Auth: AuthConfig{
			JWTSecret: jwtSecret,
		},
		Geo: GeoConfig{
			CityDBPath:    getEnv("GEOIP_CITY_DB", ""),
			ASNDBPath:     getEnv("GEOIP_ASN_DB", ""),
			LookupTimeout: getEnvAsDuration("GEOIP_LOOKUP_TIMEOUT", 400*time.Millisecond),
		},
		Risk: RiskConfig{
			DeviceNoveltyWeight:   getEnvAsFloat("RISK_WEIGHT_DEVICE_NOVELTY", 0.35),
			GeoNoveltyWeight:      getEnvAsFloat("RISK_WEIGHT_GEO_NOVELTY", 0.25),
			VelocityWeight:        getEnvAsFloat("RISK_WEIGHT_VELOCITY", 0.25),
			FailureRateWeight:     getEnvAsFloat("RISK_WEIGHT_FAILURE_RATE", 0.15),
			SuspicionThreshold:    getEnvAsInt("RISK_SUSPICION_THRESHOLD", 70),
			MaxTravelSpeedKmh:     getEnvAsFloat("RISK_MAX_TRAVEL_SPEED_KMH", 1000),
			HistoryWindowAttempts: getEnvAsInt("RISK_HISTORY_WINDOW_ATTEMPTS", 20),
			HistoryWindowDuration: getEnvAsDuration("RISK_HISTORY_WINDOW_DURATION", 24*time.Hour),
			CountryHistoryLogins:  getEnvAsInt("RISK_COUNTRY_HISTORY_LOGINS", 30),
		},
		Alerts: AlertConfig{
			CooldownWindow:      getEnvAsDuration("ALERT_COOLDOWN_WINDOW", 1*time.Hour),
			BruteForceWindow:    getEnvAsDuration("ALERT_BRUTE_FORCE_WINDOW", 15*time.Minute),
			BruteForceThreshold: getEnvAsInt("ALERT_BRUTE_FORCE_THRESHOLD", 5),
		},
		Notification: NotificationConfig{
			Enabled:     getEnvAsBool("NOTIFY_ENABLED", false),
			AWSRegion:   getEnv("NOTIFY_AWS_REGION", "us-east-1"),
			FromAddress: getEnv("NOTIFY_FROM_ADDRESS", ""),
			ToAddress:   getEnv("NOTIFY_TO_ADDRESS", ""),
		},
		Cleanup: CleanupConfig{
			Interval:                 getEnvAsDuration("CLEANUP_INTERVAL", 1*time.Hour),
			UntrustedDeviceRetention: getEnvAsDuration("CLEANUP_UNTRUSTED_DEVICE_RETENTION", 90*24*time.Hour),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	if err := cfg.Risk.Validate(); err != nil {
		return nil, err
	}

	if cfg.Notification.Enabled && (cfg.Notification.FromAddress == "" || cfg.Notification.ToAddress == "") {
		return nil, fmt.Errorf("NOTIFY_FROM_ADDRESS and NOTIFY_TO_ADDRESS are required when NOTIFY_ENABLED=true")
	}

	return cfg, nil
}

// Validate checks that the scoring policy is internally consistent.
func (c *RiskConfig) Validate() error {
	sum := c.DeviceNoveltyWeight + c.GeoNoveltyWeight + c.VelocityWeight + c.FailureRateWeight
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("risk factor weights must sum to 1.0 (got %.4f)", sum)
	}

	if c.SuspicionThreshold < 0 || c.SuspicionThreshold > 100 {
		return fmt.Errorf("RISK_SUSPICION_THRESHOLD must be in [0,100] (got %d)", c.SuspicionThreshold)
	}

	if c.MaxTravelSpeedKmh <= 0 {
		return fmt.Errorf("RISK_MAX_TRAVEL_SPEED_KMH must be positive (got %.1f)", c.MaxTravelSpeedKmh)
	}

	return nil
}

// validateJWTSecret enforces minimum security standards for the shared secret
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func parseList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
