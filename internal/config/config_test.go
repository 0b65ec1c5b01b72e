package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "mysql:\n  host: db\n  database: layaway\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.MySQL.Host != "db" {
		t.Fatalf("expected mysql host db, got %q", cfg.MySQL.Host)
	}
	if cfg.Financing.CountryCode != "593" {
		t.Fatalf("expected default country code, got %q", cfg.Financing.CountryCode)
	}
	if cfg.Kafka.Topic.DeliveryNotice == "" {
		t.Fatal("expected default delivery topic")
	}
}

func TestLoadConfigRejectsOutOfRangeRate(t *testing.T) {
	path := writeConfig(t, "financing:\n  default_interest_rate: 41\n")

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for rate above 40")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
