package core

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const DefaultExpiryMarginSeconds = 60

// AuthConfig describes the authority used for token exchanges.
type AuthConfig struct {
	Authority     string   `koanf:"authority" mapstructure:"authority"`
	TenantID      string   `koanf:"tenant_id" mapstructure:"tenant_id"`
	ClientID      string   `koanf:"client_id" mapstructure:"client_id"`
	ClientSecret  string   `koanf:"client_secret" mapstructure:"client_secret"`
	Scopes        []string `koanf:"scopes" mapstructure:"scopes"`
	MarginSeconds int      `koanf:"margin_seconds" mapstructure:"margin_seconds"`
}

// Margin returns the expiry safety margin applied before a credential is
// considered stale.
func (c AuthConfig) Margin() time.Duration {
	if c.MarginSeconds <= 0 {
		return DefaultExpiryMarginSeconds * time.Second
	}
	return time.Duration(c.MarginSeconds) * time.Second
}

type GraphConfig struct {
	BaseURL        string `koanf:"base_url" mapstructure:"base_url"`
	TimeoutSeconds int    `koanf:"timeout_seconds" mapstructure:"timeout_seconds"`
	MaxBodyBytes   int64  `koanf:"max_body_bytes" mapstructure:"max_body_bytes"`
}

func (c GraphConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type StoreConfig struct {
	Path   string `koanf:"path" mapstructure:"path"`
	Driver string `koanf:"driver" mapstructure:"driver"`
	DSN    string `koanf:"dsn" mapstructure:"dsn"`
}

type Config struct {
	ServiceName string      `koanf:"service_name" mapstructure:"service_name"`
	Auth        AuthConfig  `koanf:"auth" mapstructure:"auth"`
	Graph       GraphConfig `koanf:"graph" mapstructure:"graph"`
	Store       StoreConfig `koanf:"store" mapstructure:"store"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "ms-tools",
		Auth: AuthConfig{
			Authority:     "https://login.microsoftonline.com",
			TenantID:      "common",
			MarginSeconds: DefaultExpiryMarginSeconds,
		},
		Graph: GraphConfig{
			BaseURL:        "https://graph.microsoft.com/v1.0",
			TimeoutSeconds: 30,
			MaxBodyBytes:   4 << 20,
		},
		Store: StoreConfig{
			Path: "ms-tools-credentials.json",
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if strings.TrimSpace(c.Auth.Authority) == "" {
		return fmt.Errorf("core: auth.authority is required")
	}
	if c.Auth.MarginSeconds < 0 {
		return fmt.Errorf("core: auth.margin_seconds must not be negative")
	}
	if strings.TrimSpace(c.Graph.BaseURL) == "" {
		return fmt.Errorf("core: graph.base_url is required")
	}
	return nil
}

// EnvRawConfigLoader maps MSTOOLS_* environment variables into the raw
// config shape consumed by cfgx.
type EnvRawConfigLoader struct {
	Prefix string
}

func (l EnvRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	prefix := strings.TrimSpace(l.Prefix)
	if prefix == "" {
		prefix = "MSTOOLS_"
	}

	raw := map[string]any{}
	auth := map[string]any{}
	graph := map[string]any{}
	store := map[string]any{}

	if value, ok := lookupEnv(prefix + "SERVICE_NAME"); ok {
		raw["service_name"] = value
	}
	if value, ok := lookupEnv(prefix + "AUTHORITY"); ok {
		auth["authority"] = value
	}
	if value, ok := lookupEnv(prefix + "TENANT_ID"); ok {
		auth["tenant_id"] = value
	}
	if value, ok := lookupEnv(prefix + "CLIENT_ID"); ok {
		auth["client_id"] = value
	}
	if value, ok := lookupEnv(prefix + "CLIENT_SECRET"); ok {
		auth["client_secret"] = value
	}
	if value, ok := lookupEnv(prefix + "SCOPES"); ok {
		scopes := []string{}
		for _, scope := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(scope); trimmed != "" {
				scopes = append(scopes, trimmed)
			}
		}
		auth["scopes"] = scopes
	}
	if value, ok := lookupEnvInt(prefix + "MARGIN_SECONDS"); ok {
		auth["margin_seconds"] = value
	}
	if value, ok := lookupEnv(prefix + "GRAPH_BASE_URL"); ok {
		graph["base_url"] = value
	}
	if value, ok := lookupEnvInt(prefix + "GRAPH_TIMEOUT_SECONDS"); ok {
		graph["timeout_seconds"] = value
	}
	if value, ok := lookupEnv(prefix + "STORE_PATH"); ok {
		store["path"] = value
	}
	if value, ok := lookupEnv(prefix + "STORE_DRIVER"); ok {
		store["driver"] = value
	}
	if value, ok := lookupEnv(prefix + "STORE_DSN"); ok {
		store["dsn"] = value
	}

	if len(auth) > 0 {
		raw["auth"] = auth
	}
	if len(graph) > 0 {
		raw["graph"] = graph
	}
	if len(store) > 0 {
		raw["store"] = store
	}
	return raw, nil
}

func lookupEnv(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", false
	}
	return trimmed, true
}

func lookupEnvInt(key string) (int, bool) {
	value, ok := lookupEnv(key)
	if !ok {
		return 0, false
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, false
	}
	return parsed, true
}
