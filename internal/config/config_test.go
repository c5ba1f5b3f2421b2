package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
port: "8080"
databaseURL: "postgres://localhost/giftai"
redisAddr: "localhost:6379"
jwtSecret: "secret"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PDFDir != "generated-pdfs" {
		t.Fatalf("pdf dir default: %q", cfg.PDFDir)
	}
	if cfg.RenderStream != "giftai:render" || cfg.RenderConcurrency != 2 || cfg.RenderMaxRetries != 3 {
		t.Fatalf("render defaults: %+v", cfg)
	}
	if ttl, err := ParseSessionTTL(cfg.SessionTTL); err != nil || ttl != 24*time.Hour {
		t.Fatalf("session ttl default: %v %v", ttl, err)
	}
	if cfg.GenerateRatePerMinute != 5 {
		t.Fatalf("rate limit default: %d", cfg.GenerateRatePerMinute)
	}
	if cfg.SessionBackend != "jwt" {
		t.Fatalf("session backend default: %q", cfg.SessionBackend)
	}
}

func TestLoadSessionBackends(t *testing.T) {
	// Redis-backed sessions do not need a signing secret.
	path := writeConfig(t, `
port: "8080"
databaseURL: "postgres://localhost/giftai"
redisAddr: "localhost:6379"
sessionBackend: "redis"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("redis backend: %v", err)
	}
	if cfg.SessionBackend != "redis" {
		t.Fatalf("backend not kept: %q", cfg.SessionBackend)
	}

	path = writeConfig(t, `
port: "8080"
databaseURL: "postgres://localhost/giftai"
redisAddr: "localhost:6379"
sessionBackend: "cookies"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("unknown session backend must be rejected")
	}

	path = writeConfig(t, `
port: "8080"
databaseURL: "postgres://localhost/giftai"
redisAddr: "localhost:6379"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("jwt backend without a secret must be rejected")
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, `
port: "8080"
databaseURL: "postgres://file/giftai"
redisAddr: "localhost:6379"
jwtSecret: "file-secret"
openaiAPIKey: "file-key"
`)
	t.Setenv("DATABASE_URL", "postgres://env/giftai")
	t.Setenv("OPENAI_API_KEY", "env-key")
	t.Setenv("GIFTAI_JWT_SECRET", "env-secret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DatabaseURL != "postgres://env/giftai" {
		t.Fatalf("database url not overridden: %q", cfg.DatabaseURL)
	}
	if cfg.OpenAIAPIKey != "env-key" || cfg.JWTSecret != "env-secret" {
		t.Fatalf("secrets not overridden: %+v", cfg)
	}
}

func TestLoadRejectsIncompleteConfig(t *testing.T) {
	path := writeConfig(t, `
port: "8080"
redisAddr: "localhost:6379"
jwtSecret: "secret"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing databaseURL")
	}
}

func TestParseDurations(t *testing.T) {
	if d, err := ParseSessionTTL("1h"); err != nil || d != time.Hour {
		t.Fatalf("parse ttl: %v %v", d, err)
	}
	if _, err := ParseSessionTTL("soon"); err == nil {
		t.Fatal("bad ttl must be rejected")
	}
	if d, err := ParseGenerationTimeout(""); err != nil || d != 0 {
		t.Fatalf("empty timeout: %v %v", d, err)
	}
	if d, err := ParseGenerationTimeout("5m"); err != nil || d != 5*time.Minute {
		t.Fatalf("parse timeout: %v %v", d, err)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, `
port: "8080"
databaseURL: "postgres://localhost/giftai"
redisAddr: "localhost:6379"
jwtSecret: "secret"
sessionTTL: "yesterday"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed sessionTTL")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
