package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/wallfair/settlement/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_ACCESS_SECRET", "secret")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Redis.Channel != "system" {
		t.Errorf("Redis.Channel = %q, want system", cfg.Redis.Channel)
	}
	if cfg.Settlement.StreakLength != 5 {
		t.Errorf("StreakLength = %d, want 5", cfg.Settlement.StreakLength)
	}
	if cfg.Settlement.QuoteBackdate != 5*time.Minute {
		t.Errorf("QuoteBackdate = %s, want 5m", cfg.Settlement.QuoteBackdate)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SETTLEMENT_STREAK_LENGTH", "3")
	t.Setenv("SETTLEMENT_STREAK_REWARD", "12.5")
	t.Setenv("SETTLEMENT_CLOSE_INTERVAL", "1m")
	t.Setenv("AMM_BASE_URL", "http://amm:9000")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Settlement.StreakLength != 3 {
		t.Errorf("StreakLength = %d, want 3", cfg.Settlement.StreakLength)
	}
	if cfg.Settlement.StreakReward.String() != "12.5" {
		t.Errorf("StreakReward = %s, want 12.5", cfg.Settlement.StreakReward)
	}
	if cfg.Settlement.CloseInterval != time.Minute {
		t.Errorf("CloseInterval = %s, want 1m", cfg.Settlement.CloseInterval)
	}
	if cfg.AMM.BaseURL != "http://amm:9000" {
		t.Errorf("AMM.BaseURL = %q", cfg.AMM.BaseURL)
	}
}

func TestLoad_InvalidInteger(t *testing.T) {
	t.Setenv("REDIS_DB", "zero")
	if _, err := config.Load(); err == nil {
		t.Fatal("expected error for non-numeric REDIS_DB")
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	t.Setenv("JWT_ACCESS_SECRET", "")
	t.Setenv("SETTLEMENT_STREAK_LENGTH", "0")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	err = cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"JWT_ACCESS_SECRET", "SETTLEMENT_STREAK_LENGTH"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoad_AllowedOrigins(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := strings.Join(cfg.Server.AllowedOrigins, "|")
	if got != "https://a.example|https://b.example" {
		t.Errorf("AllowedOrigins = %q", got)
	}
}
