package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "policypipe.yaml")
	if err := os.WriteFile(p, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadConfig_MergesDefaults(t *testing.T) {
	t.Setenv("POLICYPIPE_SIGNING_SECRET", "")
	p := writeConfig(t, `
listen: ":9090"
signing_secret: s3cret
signed_url_ttl: 5m
chrome:
  department: Field Services
layout:
  margin_mm: 10
diff:
  threshold: 30
log:
  level: debug
`)
	cfg, err := LoadConfig(p)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != ":9090" || cfg.SignedURLTTL != 5*time.Minute || cfg.SigningSecret != "s3cret" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.DBPath != "policypipe.db" || cfg.BlobRoot != "blobs" {
		t.Errorf("defaults lost: %+v", cfg)
	}
	if cfg.Layout.MarginMM != 10 || cfg.Layout.PageWidthMM != 210 {
		t.Errorf("layout = %+v", cfg.Layout)
	}
	if cfg.Diff.Threshold != 30 || cfg.Diff.BlockSize != 5 {
		t.Errorf("diff = %+v", cfg.Diff)
	}
	chrome := cfg.Chrome.Chrome()
	if chrome.Department != "Field Services" || chrome.Classification != "INTERNAL USE ONLY" {
		t.Errorf("chrome = %+v", chrome)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
	if cfg.MaxUploadBytes() != 25*1024*1024 {
		t.Errorf("max upload = %d", cfg.MaxUploadBytes())
	}
}

func TestLoadConfig_SecretFromEnv(t *testing.T) {
	t.Setenv("POLICYPIPE_SIGNING_SECRET", "from-env")
	cfg, err := LoadConfig(writeConfig(t, "listen: \":8081\"\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SigningSecret != "from-env" {
		t.Errorf("secret = %q", cfg.SigningSecret)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Setenv("POLICYPIPE_SIGNING_SECRET", "")
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file accepted")
	}
	if _, err := LoadConfig(writeConfig(t, "listen: [")); err == nil {
		t.Error("bad yaml accepted")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"ok", func(*Config) {}, ""},
		{"no secret", func(c *Config) { c.SigningSecret = "" }, "signing_secret"},
		{"no db", func(c *Config) { c.DBPath = "" }, "db_path"},
		{"no blobs", func(c *Config) { c.BlobRoot = "" }, "blob_root"},
		{"zero ttl", func(c *Config) { c.SignedURLTTL = 0 }, "signed_url_ttl"},
		{"huge margins", func(c *Config) { c.Layout.MarginMM = 120 }, "layout"},
		{"negative threshold", func(c *Config) { c.Diff.Threshold = -1 }, "diff"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.SigningSecret = "k"
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}
