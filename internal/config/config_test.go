package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidateCatchesBadValues(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*Config)
	}{
		{"zero min iv", func(c *Config) { c.MinIV = 0 }},
		{"max iv below min", func(c *Config) { c.MaxIV = 0.01 }},
		{"inverted moneyness", func(c *Config) { c.MoneynessMax = 0.1 }},
		{"inverted table range", func(c *Config) { c.TableMaxPrice = 50 }},
		{"zero cache", func(c *Config) { c.DistributionCacheSize = 0 }},
		{"tolerances out of order", func(c *Config) { c.ToleranceOld = 0.001 }},
		{"layer thresholds inverted", func(c *Config) { c.LayerMediumTicks = 3 }},
	}
	for _, tc := range cases {
		cfg := Default()
		tc.mut(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation failure", tc.name)
		}
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"cone_multiplier": 0.9, "max_strikes_per_expiry": 60}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ConeMultiplier != 0.9 {
		t.Fatalf("cone multiplier not overridden: %f", cfg.ConeMultiplier)
	}
	if cfg.MaxStrikesPerExpiry != 60 {
		t.Fatalf("strike budget not overridden: %d", cfg.MaxStrikesPerExpiry)
	}
	// Untouched fields keep their defaults.
	if cfg.MinIV != Default().MinIV {
		t.Fatalf("unrelated field changed: %f", cfg.MinIV)
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"min_iv": 0}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
