package config

import (
	"strings"
	"testing"
)

func TestEnsureDSNPassthrough(t *testing.T) {
	cfg := DBConfig{DSN: "postgres://settle:secret@db:5432/settlements"}
	if err := cfg.ensureDSN(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DSN != "postgres://settle:secret@db:5432/settlements" {
		t.Fatalf("DSN should be untouched, got %s", cfg.DSN)
	}
}

func TestEnsureDSNFromLegacyParts(t *testing.T) {
	cfg := DBConfig{
		LegacyHost:     "db.internal",
		LegacyPort:     5432,
		LegacyUser:     "settle",
		LegacyPassword: "secret",
		LegacyName:     "settlements",
		LegacySSLMode:  "disable",
	}
	if err := cfg.ensureDSN(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, fragment := range []string{"postgres://", "settle:secret@", "db.internal:5432", "/settlements", "sslmode=disable"} {
		if !strings.Contains(cfg.DSN, fragment) {
			t.Fatalf("DSN %q missing %q", cfg.DSN, fragment)
		}
	}
}

func TestEnsureDSNMissingParts(t *testing.T) {
	cfg := DBConfig{LegacyHost: "db.internal"}
	err := cfg.ensureDSN()
	if err == nil {
		t.Fatal("expected error for missing DB settings")
	}
	if !strings.Contains(err.Error(), EnvDBUser) || !strings.Contains(err.Error(), EnvDBName) {
		t.Fatalf("error should name missing vars: %v", err)
	}
}

func TestAppEnvHelpers(t *testing.T) {
	app := AppConfig{Env: "Dev"}
	if !app.IsDev() || app.IsProd() {
		t.Fatalf("expected dev env, got %+v", app)
	}
	app.Env = "PROD"
	if app.IsDev() || !app.IsProd() {
		t.Fatalf("expected prod env, got %+v", app)
	}
}
