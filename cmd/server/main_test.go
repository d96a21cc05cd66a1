package main

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"tokobuning/backend/internal/cache"
	"tokobuning/backend/internal/config"
	"tokobuning/backend/internal/logging"
)

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	if err := validateSecurityConfig(config.Config{AuthSecret: "short", AccessTokenTTLMinutes: 60}); err == nil {
		t.Fatalf("expected short secret to be rejected")
	}
	err := validateSecurityConfig(config.Config{AuthSecret: "0123456789abcdef0123456789abcdef", AccessTokenTTLMinutes: 7 * 24 * 60})
	if err == nil {
		t.Fatalf("expected week-long token ttl to be rejected")
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "0123456789abcdef0123456789abcdef", AccessTokenTTLMinutes: 480})
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}

func TestOpenRepositoryDefaultsToMemory(t *testing.T) {
	repo, closers, err := openRepository(context.Background(), config.Config{}, logging.Discard())
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	if len(closers) != 0 {
		t.Fatalf("memory repository needs no closers")
	}
	users, err := repo.ListUsers(context.Background())
	if err != nil || len(users) == 0 {
		t.Fatalf("expected seeded users, got %d (%v)", len(users), err)
	}
}

func TestOpenLookupCacheWithoutRedisIsNoop(t *testing.T) {
	c, closers := openLookupCache(context.Background(), config.Config{}, logging.Discard())
	if _, ok := c.(cache.NoopLookupCache); !ok {
		t.Fatalf("expected noop cache, got %T", c)
	}
	if len(closers) != 0 {
		t.Fatalf("noop cache needs no closers")
	}
}

func TestOpenRepositoryWarnsOnDefaultSeedPasswords(t *testing.T) {
	logger, hook := test.NewNullLogger()
	cfg := config.Config{SeedAdminPassword: "a", SeedCashierPassword: "b"}

	if _, _, err := openRepository(context.Background(), cfg, logger); err != nil {
		t.Fatalf("open repository: %v", err)
	}
	var warned bool
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			warned = true
			accounts, _ := entry.Data["accounts"].([]string)
			if len(accounts) != 1 || accounts[0] != "guest" {
				t.Fatalf("expected guest in warning, got %v", entry.Data["accounts"])
			}
		}
	}
	if !warned {
		t.Fatalf("expected default credential warning")
	}

	hook.Reset()
	cfg.SeedGuestPassword = "c"
	if _, _, err := openRepository(context.Background(), cfg, logger); err != nil {
		t.Fatalf("open repository: %v", err)
	}
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			t.Fatalf("unexpected warning with all seed passwords set: %s", entry.Message)
		}
	}
}
