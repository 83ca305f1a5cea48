// Package config loads the policypipe service configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gaurav-prasanna/policypipe/core"
	"github.com/gaurav-prasanna/policypipe/core/compose"
	"github.com/gaurav-prasanna/policypipe/core/diff"
	"github.com/gaurav-prasanna/policypipe/core/normalize"
	"github.com/gaurav-prasanna/policypipe/internal/logger"
)

// Config holds the full policypipe configuration.
type Config struct {
	Listen        string            `yaml:"listen"`
	DBPath        string            `yaml:"db_path"`
	BlobRoot      string            `yaml:"blob_root"`
	PublicBaseURL string            `yaml:"public_base_url"`
	SigningSecret string            `yaml:"signing_secret"`
	SignedURLTTL  time.Duration     `yaml:"signed_url_ttl"`
	MaxUploadMB   int               `yaml:"max_upload_mb"`
	Layout        core.Layout       `yaml:"layout"`
	Chrome        ChromeConfig      `yaml:"chrome"`
	Diff          diff.Options      `yaml:"diff"`
	Rasterizer    compose.RodConfig `yaml:"rasterizer"`
	Normalizer    normalize.Options `yaml:"normalizer"`
	Log           logger.Config     `yaml:"log"`
}

// ChromeConfig is the per-deployment page furniture.
type ChromeConfig struct {
	Department     string `yaml:"department"`
	LogoURL        string `yaml:"logo_url"`
	Classification string `yaml:"classification"`
}

// Chrome converts to the renderer's type. Metadata is filled per document.
func (c ChromeConfig) Chrome() core.Chrome {
	return core.Chrome{
		Department:     c.Department,
		LogoURL:        c.LogoURL,
		Classification: c.Classification,
	}
}

// DefaultConfig returns sane defaults. The signing secret has none.
func DefaultConfig() *Config {
	return &Config{
		Listen:        ":8080",
		DBPath:        "policypipe.db",
		BlobRoot:      "blobs",
		PublicBaseURL: "http://localhost:8080",
		SignedURLTTL:  15 * time.Minute,
		MaxUploadMB:   25,
		Layout:        core.DefaultLayout(),
		Chrome: ChromeConfig{
			Department:     "Department of Corrections",
			Classification: "INTERNAL USE ONLY",
		},
		Diff:       diff.DefaultOptions(),
		Rasterizer: compose.RodConfig{DeviceScale: 2, Quality: 92, Timeout: 60 * time.Second},
		Normalizer: normalize.DefaultOptions(),
		Log:        logger.Config{Level: "info"},
	}
}

// LoadConfig reads and parses a YAML config file. Returns DefaultConfig merged with the file.
// POLICYPIPE_SIGNING_SECRET overrides the file's secret.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if s := os.Getenv("POLICYPIPE_SIGNING_SECRET"); s != "" {
		cfg.SigningSecret = s
	}
	return cfg, cfg.Validate()
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.BlobRoot == "" {
		return fmt.Errorf("blob_root is required")
	}
	if c.SigningSecret == "" {
		return fmt.Errorf("signing_secret is required")
	}
	if c.SignedURLTTL <= 0 {
		return fmt.Errorf("signed_url_ttl must be > 0")
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("max_upload_mb must be > 0")
	}
	l := c.Layout
	if l.PageWidthMM <= 0 || l.PageHeightMM <= 0 {
		return fmt.Errorf("layout: page size must be > 0")
	}
	if l.ContentWidthMM() <= 0 || l.ContentHeightMM() <= 0 {
		return fmt.Errorf("layout: margins and bands leave no room for content")
	}
	if c.Diff.BlockSize < 0 || c.Diff.Threshold < 0 {
		return fmt.Errorf("diff: block_size and threshold must not be negative")
	}
	if c.Normalizer.LeadWindow < 0 {
		return fmt.Errorf("normalizer: lead_window must not be negative")
	}
	return nil
}

// MaxUploadBytes returns the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 { return int64(c.MaxUploadMB) * 1024 * 1024 }
