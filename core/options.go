package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	opts "github.com/goliatone/go-options"
)

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

// StaticRawConfigLoader serves a literal raw config map.
type StaticRawConfigLoader struct {
	Values map[string]any
}

func (l StaticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

// CfgxConfigProvider builds a validated Config from a raw loader.
type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = StaticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// GoOptionsResolver merges defaults, loaded, and runtime configuration in
// ascending precedence.
type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}

	auth := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Auth.Authority) != "" {
		auth["authority"] = cfg.Auth.Authority
	}
	if includeZero || strings.TrimSpace(cfg.Auth.TenantID) != "" {
		auth["tenant_id"] = cfg.Auth.TenantID
	}
	if strings.TrimSpace(cfg.Auth.ClientID) != "" {
		auth["client_id"] = cfg.Auth.ClientID
	}
	if strings.TrimSpace(cfg.Auth.ClientSecret) != "" {
		auth["client_secret"] = cfg.Auth.ClientSecret
	}
	if len(cfg.Auth.Scopes) > 0 {
		auth["scopes"] = append([]string(nil), cfg.Auth.Scopes...)
	}
	if includeZero || cfg.Auth.MarginSeconds > 0 {
		auth["margin_seconds"] = cfg.Auth.MarginSeconds
	}
	if len(auth) > 0 {
		layer["auth"] = auth
	}

	graph := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Graph.BaseURL) != "" {
		graph["base_url"] = cfg.Graph.BaseURL
	}
	if includeZero || cfg.Graph.TimeoutSeconds > 0 {
		graph["timeout_seconds"] = cfg.Graph.TimeoutSeconds
	}
	if includeZero || cfg.Graph.MaxBodyBytes > 0 {
		graph["max_body_bytes"] = cfg.Graph.MaxBodyBytes
	}
	if len(graph) > 0 {
		layer["graph"] = graph
	}

	store := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Store.Path) != "" {
		store["path"] = cfg.Store.Path
	}
	if strings.TrimSpace(cfg.Store.Driver) != "" {
		store["driver"] = cfg.Store.Driver
	}
	if strings.TrimSpace(cfg.Store.DSN) != "" {
		store["dsn"] = cfg.Store.DSN
	}
	if len(store) > 0 {
		layer["store"] = store
	}
	return layer
}
