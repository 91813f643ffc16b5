package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	c := Defaults()
	c.JWT.AccessSecret = "access"
	c.JWT.RefreshSecret = "refresh"
	return c
}

func TestDefaultsNeedSecrets(t *testing.T) {
	c := Defaults()
	err := c.Validate()
	if err == nil {
		t.Fatal("Validate accepted missing JWT secrets")
	}
	for _, want := range []string{"FURBITO_JWT_ACCESS_SECRET", "FURBITO_JWT_REFRESH_SECRET"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}

	c = validConfig()
	if err := c.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidateRejectsBadTuning(t *testing.T) {
	cases := map[string]func(*Config){
		"inverted probabilities": func(c *Config) { c.Odds.MinProb, c.Odds.MaxProb = 0.9, 0.1 },
		"zero margin":            func(c *Config) { c.Odds.Margin = 0 },
		"odds floor at one":      func(c *Config) { c.Odds.MinOdds = 1 },
		"negative step":          func(c *Config) { c.Odds.Step = -0.05 },
		"negative cutoff":        func(c *Config) { c.Engine.CancelCutoff = -time.Minute },
		"negative bonus":         func(c *Config) { c.Engine.OpeningBalance = -1 },
		"inverted spin range":    func(c *Config) { c.Engine.SpinMin, c.Engine.SpinMax = 50, 10 },
		"sync without interval":  func(c *Config) { c.Sync.Interval = 0 },
		"prod without dsn":       func(c *Config) { c.Server.Env = "production"; c.DB.DSN = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := validConfig()
			mutate(&c)
			if err := c.Validate(); err == nil {
				t.Error("Validate accepted the config")
			}
		})
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "furbito.toml")
	body := `
[server]
port = "9090"

[engine]
opening_balance = 250.0

[sync]
interval = "30m"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FURBITO_SERVER_PORT", "7070")
	t.Setenv("FURBITO_CANCEL_CUTOFF", "2h")
	t.Setenv("FURBITO_SYNC_ENABLED", "false")

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Server.Port != "7070" {
		t.Errorf("port = %q, env should win over file", c.Server.Port)
	}
	if c.Engine.OpeningBalance != 250 {
		t.Errorf("opening balance = %v, want 250 from file", c.Engine.OpeningBalance)
	}
	if c.Sync.Interval != 30*time.Minute {
		t.Errorf("sync interval = %s, want 30m from file", c.Sync.Interval)
	}
	if c.Engine.CancelCutoff != 2*time.Hour || c.Sync.Enabled {
		t.Errorf("env overrides not applied: cutoff %s, sync enabled %v", c.Engine.CancelCutoff, c.Sync.Enabled)
	}
	if c.Server.BackofficePort != "8081" {
		t.Errorf("backoffice port = %q, want default", c.Server.BackofficePort)
	}
}

func TestLoad_MalformedEnv(t *testing.T) {
	t.Setenv("FURBITO_DB_MAX_OPEN_CONNS", "many")
	t.Setenv("FURBITO_JWT_ACCESS_TTL", "soon")
	_, err := Load("")
	if err == nil {
		t.Fatal("Load accepted malformed values")
	}
	for _, key := range []string{"FURBITO_DB_MAX_OPEN_CONNS", "FURBITO_JWT_ACCESS_TTL"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q does not name %s", err, key)
		}
	}
}

func TestOrigins(t *testing.T) {
	s := ServerConfig{AllowedOrigins: " https://furbito.app, ,https://admin.furbito.app "}
	got := s.Origins()
	if len(got) != 2 || got[0] != "https://furbito.app" || got[1] != "https://admin.furbito.app" {
		t.Errorf("Origins = %q", got)
	}
	if (ServerConfig{}).Origins() != nil {
		t.Error("empty AllowedOrigins should yield no origins")
	}
}
