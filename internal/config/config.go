// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config reads findit settings from viper (flags, FINDIT_*
// environment variables, findit.yaml) and fills credentials from the
// secrets directory when neither names them.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/pdiddy/findit/internal/metadata"
	"github.com/pdiddy/findit/internal/secrets"
	"github.com/pdiddy/findit/pkg/types"
)

// EnvPrefix is prepended to environment variable names, e.g.
// FINDIT_NCBI_API_KEY or FINDIT_LOG_LEVEL.
const EnvPrefix = "FINDIT"

// New returns a viper instance with defaults and environment binding set.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// SetDefaults registers every key so that Unmarshal sees environment
// overrides for keys absent from the config file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("timeout", types.DefaultTimeout)
	v.SetDefault("max_redirects", types.DefaultMaxRedirects)
	v.SetDefault("user_agent", types.DefaultUserAgent)
	v.SetDefault("eutils_base_url", metadata.DefaultEutilsBaseURL)
	v.SetDefault("crossref_base_url", metadata.DefaultCrossRefBaseURL)
	v.SetDefault("ncbi_api_key", "")
	v.SetDefault("crossref_mailto", "")
	v.SetDefault("rate_limit", 0.0)
	v.SetDefault("cache_dir", defaultCacheDir())
	v.SetDefault("metrics_file", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Load decodes v into a Config. Credentials missing from v are taken from
// creds, keyed by the secrets file names.
func Load(v *viper.Viper, creds map[string]string) (types.Config, error) {
	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decoding configuration: %w", err)
	}

	if cfg.Upstream.APIKey == "" {
		cfg.Upstream.APIKey = creds[secrets.NCBIAPIKey]
	}
	if cfg.Upstream.Mailto == "" {
		cfg.Upstream.Mailto = creds[secrets.CrossRefMailto]
	}
	cfg.CacheDir = expandHome(cfg.CacheDir)

	if err := validate(cfg); err != nil {
		return types.Config{}, err
	}
	return cfg, nil
}

// ResultsDB is the result cache database under the cache directory.
func ResultsDB(cfg types.Config) string {
	return filepath.Join(cfg.CacheDir, "results.db")
}

// UpstreamDB is the upstream payload cache database.
func UpstreamDB(cfg types.Config) string {
	return filepath.Join(cfg.CacheDir, "upstream.db")
}

func validate(cfg types.Config) error {
	switch {
	case cfg.HTTP.Timeout <= 0:
		return fmt.Errorf("timeout must be positive, got %s", cfg.HTTP.Timeout)
	case cfg.HTTP.MaxRedirects < 0:
		return fmt.Errorf("max_redirects must not be negative, got %d", cfg.HTTP.MaxRedirects)
	case cfg.Upstream.RateLimit < 0:
		return fmt.Errorf("rate_limit must not be negative, got %g", cfg.Upstream.RateLimit)
	case cfg.CacheDir == "":
		return fmt.Errorf("cache_dir is empty")
	}
	switch cfg.Log.Format {
	case "", "json", "console", "pretty":
	default:
		return fmt.Errorf("log.format must be json, console or pretty, got %q", cfg.Log.Format)
	}
	return nil
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "findit")
	}
	return filepath.Join(".cache", "findit")
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
