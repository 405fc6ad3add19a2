package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load with defaults: %v", err)
	}

	if cfg.Alert.DefaultThreshold != 30000 {
		t.Errorf("default threshold = %v", cfg.Alert.DefaultThreshold)
	}
	if len(cfg.Alert.Watch) != 1 || cfg.Alert.Watch[0] != "bitcoin" {
		t.Errorf("default watch = %v", cfg.Alert.Watch)
	}
	if cfg.Upstream.Currency != "usd" {
		t.Errorf("default currency = %v", cfg.Upstream.Currency)
	}
	if !cfg.History.RecordOnAlertOnly() {
		t.Error("default record mode should be alert-only")
	}
	if cfg.History.DSN != "" {
		t.Errorf("default DSN should be empty, got %q", cfg.History.DSN)
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
upstream:
  assets:
    - bitcoin
    - solana
  currency: eur
alert:
  default_threshold: 25000
  watch:
    - bitcoin
    - solana
history:
  record_mode: all
  query_limit: 100
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Alert.DefaultThreshold != 25000 {
		t.Errorf("threshold = %v", cfg.Alert.DefaultThreshold)
	}
	if len(cfg.Alert.Watch) != 2 {
		t.Errorf("watch = %v", cfg.Alert.Watch)
	}
	if cfg.Upstream.Currency != "eur" {
		t.Errorf("currency = %v", cfg.Upstream.Currency)
	}
	if cfg.History.RecordOnAlertOnly() {
		t.Error("record mode should be all")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		if err != nil {
			t.Fatal(err)
		}
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "zero threshold", mutate: func(c *Config) { c.Alert.DefaultThreshold = 0 }},
		{name: "negative threshold", mutate: func(c *Config) { c.Alert.DefaultThreshold = -5 }},
		{name: "no assets", mutate: func(c *Config) { c.Upstream.Assets = nil }},
		{name: "no currency", mutate: func(c *Config) { c.Upstream.Currency = "" }},
		{name: "no watch", mutate: func(c *Config) { c.Alert.Watch = nil }},
		{name: "watch not tracked", mutate: func(c *Config) { c.Alert.Watch = []string{"solana"} }},
		{name: "bad record mode", mutate: func(c *Config) { c.History.RecordMode = "sometimes" }},
		{name: "bad query limit", mutate: func(c *Config) { c.History.QueryLimit = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
