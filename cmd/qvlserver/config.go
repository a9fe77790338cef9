package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds the demo server's runtime configuration. Every field
// except the fixed HTTP timeouts has an environment variable override
// (QVLSERVER_* prefix) so the server
// can run unmodified in a container; an optional YAML file layered on
// top of the environment defaults covers the fields a deployment wants
// checked into a config repo instead of set per-process.
type Config struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"-"`
	WriteTimeout time.Duration `yaml:"-"`
	IdleTimeout  time.Duration `yaml:"-"`

	JWTSecret string `yaml:"jwt_secret"`

	EnableCORS     bool     `yaml:"enable_cors"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`

	PCSBaseURL string `yaml:"pcs_base_url"`

	CollateralRefreshCron string `yaml:"collateral_refresh_cron"`
}

// loadConfig builds the server's Config from environment defaults, then
// overlays a YAML file named by QVLSERVER_CONFIG (if set) or
// ./qvlserver.yaml (if present). A missing optional file is not an
// error; a present-but-unparseable one is.
func loadConfig() (*Config, error) {
	cfg := &Config{
		Host:                  envOr("QVLSERVER_HOST", "0.0.0.0"),
		Port:                  envInt("QVLSERVER_PORT", 8443),
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		IdleTimeout:           60 * time.Second,
		JWTSecret:             envOr("QVLSERVER_JWT_SECRET", "qvlserver-demo-secret"),
		EnableCORS:            envBool("QVLSERVER_ENABLE_CORS", true),
		AllowedOrigins:        envList("QVLSERVER_ALLOWED_ORIGINS", []string{"*"}),
		RateLimitPerMinute:    envInt("QVLSERVER_RATE_LIMIT_PER_MINUTE", 120),
		PCSBaseURL:            os.Getenv("QVLSERVER_PCS_BASE_URL"),
		CollateralRefreshCron: envOr("QVLSERVER_COLLATERAL_REFRESH_CRON", "0 */6 * * *"),
	}

	path := os.Getenv("QVLSERVER_CONFIG")
	if path == "" {
		path = "qvlserver.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrapf(err, "read config file %s", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config file %s", path)
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
