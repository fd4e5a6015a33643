package config_test

import (
	"os"
	"testing"

	"github.com/relaysys/portkern/internal/config"
)

func Test_FromEnv_Applies_Defaults_When_Unset(t *testing.T) {
	os.Unsetenv("PORTKERN_HTTP_ADDR")
	os.Unsetenv("ENV")
	os.Unsetenv("PORTKERN_REDIS_ADDR")
	os.Unsetenv("PORTKERN_REDIS_DB")

	cfg := config.FromEnv()
	if cfg.HTTPAddr != ":8088" {
		t.Errorf("HTTPAddr: got %q, want %q", cfg.HTTPAddr, ":8088")
	}
	if cfg.Env != "prod" {
		t.Errorf("Env: got %q, want %q", cfg.Env, "prod")
	}
	if cfg.RedisAddr != "" {
		t.Errorf("RedisAddr: got %q, want empty", cfg.RedisAddr)
	}
}

func Test_FromEnv_Reads_Overrides(t *testing.T) {
	t.Setenv("PORTKERN_HTTP_ADDR", ":9090")
	t.Setenv("ENV", "dev")
	t.Setenv("PORTKERN_REDIS_ADDR", "localhost:6379")
	t.Setenv("PORTKERN_REDIS_DB", "2")

	cfg := config.FromEnv()
	if cfg.HTTPAddr != ":9090" || cfg.Env != "dev" || cfg.RedisAddr != "localhost:6379" || cfg.RedisDB != 2 {
		t.Fatalf("FromEnv: got %+v", cfg)
	}
}
