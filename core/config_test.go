package core

import (
	"context"
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
	if cfg.Auth.Margin() != 60*time.Second {
		t.Fatalf("expected 60s default margin got %v", cfg.Auth.Margin())
	}
	if cfg.Graph.Timeout() != 30*time.Second {
		t.Fatalf("expected 30s default timeout got %v", cfg.Graph.Timeout())
	}
}

func TestConfigValidateRejectsMissingFields(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "service name", mutate: func(c *Config) { c.ServiceName = " " }},
		{name: "authority", mutate: func(c *Config) { c.Auth.Authority = "" }},
		{name: "graph base url", mutate: func(c *Config) { c.Graph.BaseURL = "" }},
		{name: "negative margin", mutate: func(c *Config) { c.Auth.MarginSeconds = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestEnvRawConfigLoader(t *testing.T) {
	t.Setenv("MSTOOLS_TENANT_ID", "contoso.onmicrosoft.com")
	t.Setenv("MSTOOLS_CLIENT_ID", "client-id")
	t.Setenv("MSTOOLS_CLIENT_SECRET", "client-secret")
	t.Setenv("MSTOOLS_SCOPES", "User.Read, Team.ReadBasic.All")
	t.Setenv("MSTOOLS_MARGIN_SECONDS", "120")
	t.Setenv("MSTOOLS_STORE_PATH", "/tmp/creds.json")

	raw, err := EnvRawConfigLoader{}.LoadRaw(context.Background())
	if err != nil {
		t.Fatalf("expected load to succeed, got %v", err)
	}

	auth, ok := raw["auth"].(map[string]any)
	if !ok {
		t.Fatalf("expected auth section, got %#v", raw)
	}
	if auth["tenant_id"] != "contoso.onmicrosoft.com" {
		t.Fatalf("unexpected tenant %v", auth["tenant_id"])
	}
	if auth["margin_seconds"] != 120 {
		t.Fatalf("unexpected margin %v", auth["margin_seconds"])
	}
	scopes, ok := auth["scopes"].([]string)
	if !ok || len(scopes) != 2 || scopes[1] != "Team.ReadBasic.All" {
		t.Fatalf("unexpected scopes %#v", auth["scopes"])
	}

	store, ok := raw["store"].(map[string]any)
	if !ok || store["path"] != "/tmp/creds.json" {
		t.Fatalf("unexpected store section %#v", raw["store"])
	}
}

func TestCfgxConfigProviderAppliesDefaults(t *testing.T) {
	provider := NewCfgxConfigProvider(StaticRawConfigLoader{Values: map[string]any{
		"auth": map[string]any{
			"tenant_id": "tenant-from-loader",
			"client_id": "client-from-loader",
		},
	}})

	cfg, err := provider.Load(context.Background(), DefaultConfig())
	if err != nil {
		t.Fatalf("expected load to succeed, got %v", err)
	}
	if cfg.Auth.TenantID != "tenant-from-loader" {
		t.Fatalf("unexpected tenant %q", cfg.Auth.TenantID)
	}
	if cfg.Graph.BaseURL != "https://graph.microsoft.com/v1.0" {
		t.Fatalf("defaults should fill graph base url, got %q", cfg.Graph.BaseURL)
	}
}

func TestGoOptionsResolverPrecedence(t *testing.T) {
	defaults := DefaultConfig()
	loaded := Config{
		Auth: AuthConfig{TenantID: "loaded-tenant", ClientID: "loaded-client"},
	}
	runtime := Config{
		Auth: AuthConfig{TenantID: "runtime-tenant"},
	}

	resolved, err := GoOptionsResolver{}.Resolve(defaults, loaded, runtime)
	if err != nil {
		t.Fatalf("expected resolve to succeed, got %v", err)
	}
	if resolved.Auth.TenantID != "runtime-tenant" {
		t.Fatalf("runtime layer should win, got %q", resolved.Auth.TenantID)
	}
	if resolved.Auth.ClientID != "loaded-client" {
		t.Fatalf("loaded layer should survive, got %q", resolved.Auth.ClientID)
	}
	if resolved.ServiceName != defaults.ServiceName {
		t.Fatalf("defaults should fill service name, got %q", resolved.ServiceName)
	}
}
