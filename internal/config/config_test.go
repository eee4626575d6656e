package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	c := Config{App: AppConfig{Env: "local", Port: 8080}}
	c.ApplyDefaults()
	return c
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "APP_ENV is required") {
		t.Fatalf("expected APP_ENV error, got %v", err)
	}
}

func TestApplyDefaults(t *testing.T) {
	c := validConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Backend.BaseURL != DefaultBackendBaseURL || c.Backend.Timeout != 5*time.Second {
		t.Fatalf("unexpected backend defaults %+v", c.Backend)
	}
	if c.Polling.CallsInterval != 3*time.Second || c.Polling.TranscriptInterval != 2*time.Second {
		t.Fatalf("unexpected polling defaults %+v", c.Polling)
	}
	if c.Player.Command[0] != "ffplay" {
		t.Fatalf("unexpected player default %v", c.Player.Command)
	}
	if c.AuditToPostgres() || c.PublishToRedis() {
		t.Fatalf("optional stores must be off by default")
	}
}

func TestValidate_TranscriptIntervalShorterThanPoll(t *testing.T) {
	c := validConfig()
	c.Polling.TranscriptInterval = c.Polling.CallsInterval
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for transcript interval >= poll interval")
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := Config{
		App: AppConfig{Env: "production", Port: 8080},
		DB:  DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "console"},
	}
	c.ApplyDefaults()
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_LocalDefaultsSSLMode(t *testing.T) {
	c := Config{
		App: AppConfig{Env: "local", Port: 8080},
		DB:  DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "console"},
	}
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("BACKEND_BASE_URL", "http://backend:5000/api")
	t.Setenv("POLL_INTERVAL", "4s")
	t.Setenv("TRANSCRIPT_POLL_INTERVAL", "1500ms")
	t.Setenv("PLAYER_COMMAND", "mpv --no-video")
	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("REDIS_PORT", "6379")

	c, err := Load()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if c.HTTPAddr() != ":9090" || c.RedisAddr() != "redis:6379" {
		t.Fatalf("unexpected addrs %q %q", c.HTTPAddr(), c.RedisAddr())
	}
	if c.Polling.TranscriptInterval != 1500*time.Millisecond {
		t.Fatalf("unexpected transcript interval %v", c.Polling.TranscriptInterval)
	}
	if len(c.Player.Command) != 2 || c.Player.Command[0] != "mpv" {
		t.Fatalf("unexpected player command %v", c.Player.Command)
	}
	if !c.PublishToRedis() {
		t.Fatalf("expected redis publishing enabled")
	}
}

func TestLoad_BadDuration(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("BACKEND_TIMEOUT", "soon")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "BACKEND_TIMEOUT") {
		t.Fatalf("expected BACKEND_TIMEOUT error, got %v", err)
	}
}
