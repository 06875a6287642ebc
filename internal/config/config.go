// Package config provides application configuration loaded from environment variables.
// Use the package-level Get() function to obtain the singleton Config instance.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sub-config structs
// ──────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        // e.g. "8080"
	Env          string        // "development" | "production"
	ReadTimeout  time.Duration // default 10s
	WriteTimeout time.Duration // default 10s
	// AllowedOrigins restricts CORS and WebSocket origins in production.
	AllowedOrigins []string
	// BackofficePort serves the operations server; default "8081".
	BackofficePort string
	// BackofficeAllowedIPs limits the operations server; empty allows all.
	BackofficeAllowedIPs []string
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	DSN             string        // full postgres DSN
	MaxOpenConns    int           // default 25
	MaxIdleConns    int           // default 10
	ConnMaxLifetime time.Duration // default 5m
	AutoMigrate     bool          // apply embedded migrations at boot
}

// JWTConfig holds the secret used to verify access tokens issued elsewhere.
type JWTConfig struct {
	AccessSecret string // must be set
}

// RedisConfig holds the event bus connection.
type RedisConfig struct {
	Addr     string // default "localhost:6379"
	Password string
	DB       int
	Channel  string // default "system"
}

// RemoteConfig holds the base URL and timeout of an external HTTP service.
type RemoteConfig struct {
	BaseURL string
	Timeout time.Duration
}

// SettlementConfig holds the tunables of the bet lifecycle.
type SettlementConfig struct {
	StreakLength      int             // max-stake bets in a row that earn the award; default 5
	StreakReward      decimal.Decimal // tokens minted for the award; default 100
	QuoteBackdate     time.Duration   // age of a new market's opening quote; default 5m
	CloseInterval     time.Duration   // close sweep period; default 30s
	ReconcileInterval time.Duration   // reconciliation period; default 5m
	SideEffectTimeout time.Duration   // budget for post-commit work; default 5s
}

// ──────────────────────────────────────────────────────────────────────────────
// Top-level Config
// ──────────────────────────────────────────────────────────────────────────────

// Config is the root configuration object for the entire application.
type Config struct {
	Server     ServerConfig
	DB         DBConfig
	JWT        JWTConfig
	Redis      RedisConfig
	AMM        RemoteConfig
	Ledger     RemoteConfig
	Settlement SettlementConfig
}

// IsProd returns true when running in the production environment.
func (c *Config) IsProd() bool {
	return c.Server.Env == "production"
}

// Validate checks that all required configuration values are present and valid.
func (c *Config) Validate() error {
	var errs []error

	if c.JWT.AccessSecret == "" {
		errs = append(errs, errors.New("JWT_ACCESS_SECRET must be set"))
	}
	if c.IsProd() && c.DB.DSN == "" {
		errs = append(errs, errors.New("DATABASE_DSN must be set in production"))
	}
	if c.AMM.BaseURL == "" {
		errs = append(errs, errors.New("AMM_BASE_URL must be set"))
	}
	if c.Ledger.BaseURL == "" {
		errs = append(errs, errors.New("LEDGER_BASE_URL must be set"))
	}
	if c.Redis.Channel == "" {
		errs = append(errs, errors.New("REDIS_CHANNEL must not be empty"))
	}
	if c.Settlement.StreakLength < 1 {
		errs = append(errs, fmt.Errorf("SETTLEMENT_STREAK_LENGTH must be >= 1, got %d", c.Settlement.StreakLength))
	}
	if c.Settlement.StreakReward.IsNegative() {
		errs = append(errs, fmt.Errorf("SETTLEMENT_STREAK_REWARD must not be negative, got %s", c.Settlement.StreakReward))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Singleton
// ──────────────────────────────────────────────────────────────────────────────

var (
	instance *Config
	once     sync.Once
	loadErr  error
)

// Get returns the singleton Config, loading it once from environment variables
// (and a .env file when present).
// Panics if loading fails; call this early in main() to catch misconfigurations
// at startup.
func Get() *Config {
	once.Do(func() {
		_ = godotenv.Load()
		instance, loadErr = Load()
	})
	if loadErr != nil {
		panic(fmt.Sprintf("config: failed to load: %v", loadErr))
	}
	return instance
}

// MustLoad loads and validates configuration. Intended for use in main().
// Panics on any error so misconfiguration is caught immediately at boot.
func MustLoad() *Config {
	cfg := Get()
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("config: validation failed: %v", err))
	}
	return cfg
}

// ──────────────────────────────────────────────────────────────────────────────
// Loader
// ──────────────────────────────────────────────────────────────────────────────

// Load reads a fresh Config from the current environment.
func Load() (*Config, error) {
	cfg := &Config{}

	// ── Server ────────────────────────────────────────────────────────────────
	cfg.Server = ServerConfig{
		Port:                 getEnv("SERVER_PORT", "8080"),
		Env:                  getEnv("ENVIRONMENT", "development"),
		ReadTimeout:          getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:         getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
		AllowedOrigins:       getList("CORS_ALLOWED_ORIGINS"),
		BackofficePort:       getEnv("BACKOFFICE_PORT", "8081"),
		BackofficeAllowedIPs: getList("BACKOFFICE_ALLOWED_IPS"),
	}

	// ── Database ──────────────────────────────────────────────────────────────
	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		dsn = fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			getEnv("DB_HOST", "localhost"),
			getEnv("DB_PORT", "5432"),
			getEnv("DB_USER", "postgres"),
			getEnv("DB_PASSWORD", ""),
			getEnv("DB_NAME", "settlement"),
			getEnv("DB_SSLMODE", "disable"),
		)
	}

	maxOpen, err := getInt("DB_MAX_OPEN_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("DB_MAX_OPEN_CONNS: %w", err)
	}
	maxIdle, err := getInt("DB_MAX_IDLE_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("DB_MAX_IDLE_CONNS: %w", err)
	}
	autoMigrate, err := getBool("DB_AUTO_MIGRATE", true)
	if err != nil {
		return nil, fmt.Errorf("DB_AUTO_MIGRATE: %w", err)
	}

	cfg.DB = DBConfig{
		DSN:             dsn,
		MaxOpenConns:    maxOpen,
		MaxIdleConns:    maxIdle,
		ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		AutoMigrate:     autoMigrate,
	}

	// ── JWT ───────────────────────────────────────────────────────────────────
	cfg.JWT = JWTConfig{
		AccessSecret: getEnv("JWT_ACCESS_SECRET", ""),
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	redisDB, err := getInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("REDIS_DB: %w", err)
	}
	cfg.Redis = RedisConfig{
		Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       redisDB,
		Channel:  getEnv("REDIS_CHANNEL", "system"),
	}

	// ── External services ─────────────────────────────────────────────────────
	cfg.AMM = RemoteConfig{
		BaseURL: getEnv("AMM_BASE_URL", "http://localhost:8090"),
		Timeout: getDuration("AMM_TIMEOUT", 5*time.Second),
	}
	cfg.Ledger = RemoteConfig{
		BaseURL: getEnv("LEDGER_BASE_URL", "http://localhost:8091"),
		Timeout: getDuration("LEDGER_TIMEOUT", 5*time.Second),
	}

	// ── Settlement ────────────────────────────────────────────────────────────
	streak, err := getInt("SETTLEMENT_STREAK_LENGTH", 5)
	if err != nil {
		return nil, fmt.Errorf("SETTLEMENT_STREAK_LENGTH: %w", err)
	}
	reward, err := getDecimal("SETTLEMENT_STREAK_REWARD", decimal.NewFromInt(100))
	if err != nil {
		return nil, fmt.Errorf("SETTLEMENT_STREAK_REWARD: %w", err)
	}

	cfg.Settlement = SettlementConfig{
		StreakLength:      streak,
		StreakReward:      reward,
		QuoteBackdate:     getDuration("SETTLEMENT_QUOTE_BACKDATE", 5*time.Minute),
		CloseInterval:     getDuration("SETTLEMENT_CLOSE_INTERVAL", 30*time.Second),
		ReconcileInterval: getDuration("SETTLEMENT_RECONCILE_INTERVAL", 5*time.Minute),
		SideEffectTimeout: getDuration("SETTLEMENT_SIDE_EFFECT_TIMEOUT", 5*time.Second),
	}

	return cfg, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Helper functions
// ──────────────────────────────────────────────────────────────────────────────

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", v)
	}
	return n, nil
}

func getBool(key string, defaultVal bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid boolean %q", v)
	}
	return b, nil
}

func getDecimal(key string, defaultVal decimal.Decimal) (decimal.Decimal, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal %q", v)
	}
	return d, nil
}

// getDuration parses an env var as a Go duration string (e.g. "15m", "2s").
// Falls back to defaultVal if the variable is unset or unparsable.
func getDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// getList splits a comma-separated variable, dropping empty items.
func getList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
