package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
}

func TestLoadReadsEnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("STORE_TIMEZONE", "Asia/Makassar")
	t.Setenv("AUTO_MIGRATE", "false")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "-5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Address() != ":9090" {
		t.Fatalf("expected :9090, got %q", cfg.Address())
	}
	if cfg.RedisDB != 3 {
		t.Fatalf("expected redis db 3, got %d", cfg.RedisDB)
	}
	if cfg.Timezone != "Asia/Makassar" {
		t.Fatalf("expected Asia/Makassar, got %q", cfg.Timezone)
	}
	if cfg.AutoMigrate {
		t.Fatalf("expected auto migrate disabled")
	}
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("expected ttl fallback 480, got %d", cfg.AccessTokenTTLMinutes)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BarcodeBaseURL != "https://world.openfoodfacts.org" {
		t.Fatalf("unexpected barcode base url %q", cfg.BarcodeBaseURL)
	}
	if cfg.Timezone != "Asia/Jakarta" {
		t.Fatalf("unexpected default timezone %q", cfg.Timezone)
	}
}

func TestLoadReadsSeedPasswords(t *testing.T) {
	t.Setenv("SEED_ADMIN_PASSWORD", "admin-rahasia")
	t.Setenv("SEED_GUEST_PASSWORD", "tamu-rahasia")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SeedAdminPassword != "admin-rahasia" || cfg.SeedGuestPassword != "tamu-rahasia" {
		t.Fatalf("expected seed passwords from env, got %+v", cfg)
	}
	if cfg.SeedCashierPassword != "" {
		t.Fatalf("expected empty cashier seed password, got %q", cfg.SeedCashierPassword)
	}
}
