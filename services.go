package mstools

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/Ashishkumar667/ms-tools/auth"
	"github.com/Ashishkumar667/ms-tools/core"
	"github.com/Ashishkumar667/ms-tools/graph"
	"github.com/Ashishkumar667/ms-tools/ratelimit"
	"github.com/Ashishkumar667/ms-tools/resolve"
	"github.com/Ashishkumar667/ms-tools/security"
	filestore "github.com/Ashishkumar667/ms-tools/store/file"
	sqlstore "github.com/Ashishkumar667/ms-tools/store/sql"
)

type Config = core.Config

type AuthConfig = core.AuthConfig

type GraphConfig = core.GraphConfig

type StoreConfig = core.StoreConfig

type AccessCredential = core.AccessCredential

type RequestCredentials = core.RequestCredentials

type CredentialRecord = core.CredentialRecord

type MeetingCriteria = resolve.MeetingCriteria

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// Service wires the credential manager, the application token cache, the
// Graph client, and the identifier resolver behind one surface. It satisfies
// the command and query handler dependencies directly.
type Service struct {
	config    core.Config
	observer  core.Observer
	logger    core.Logger
	provider  core.LoggerProvider
	store     core.CredentialStore
	exchanger core.TokenExchanger
	manager   *auth.Manager
	appTokens *auth.AppTokenCache
	graph     *graph.Client
	resolver  *resolve.Resolver
	sweeper   *auth.RefreshSweeper
}

type Option func(*settings)

type settings struct {
	logger          core.Logger
	loggerProvider  core.LoggerProvider
	metrics         core.MetricsRecorder
	configProvider  core.ConfigProvider
	optionsResolver core.OptionsResolver
	store           core.CredentialStore
	exchanger       core.TokenExchanger
	httpClient      core.HTTPDoer
	secretProvider  core.SecretProvider
	secretKey       string
	cacheService    repositorycache.CacheService
	enqueuer        core.JobEnqueuer
	locker          core.IdentityLocker
}

func WithLogger(logger core.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(s *settings) {
		s.loggerProvider = provider
	}
}

func WithMetricsRecorder(metrics core.MetricsRecorder) Option {
	return func(s *settings) {
		s.metrics = metrics
	}
}

func WithConfigProvider(provider core.ConfigProvider) Option {
	return func(s *settings) {
		s.configProvider = provider
	}
}

func WithOptionsResolver(resolver core.OptionsResolver) Option {
	return func(s *settings) {
		s.optionsResolver = resolver
	}
}

// WithCredentialStore bypasses the config-driven store selection.
func WithCredentialStore(store core.CredentialStore) Option {
	return func(s *settings) {
		s.store = store
	}
}

func WithTokenExchanger(exchanger core.TokenExchanger) Option {
	return func(s *settings) {
		s.exchanger = exchanger
	}
}

func WithHTTPClient(client core.HTTPDoer) Option {
	return func(s *settings) {
		s.httpClient = client
	}
}

// WithSecretProvider encrypts the file store payload at rest. Ignored when
// the SQL store is selected.
func WithSecretProvider(provider core.SecretProvider) Option {
	return func(s *settings) {
		s.secretProvider = provider
	}
}

// WithSecretKey derives a local AES key for the file store payload.
func WithSecretKey(key string) Option {
	return func(s *settings) {
		s.secretKey = key
	}
}

// WithCredentialCache layers a read cache over the SQL store.
func WithCredentialCache(cache repositorycache.CacheService) Option {
	return func(s *settings) {
		s.cacheService = cache
	}
}

// WithJobEnqueuer enables the background refresh sweeper.
func WithJobEnqueuer(enqueuer core.JobEnqueuer) Option {
	return func(s *settings) {
		s.enqueuer = enqueuer
	}
}

func WithIdentityLocker(locker core.IdentityLocker) Option {
	return func(s *settings) {
		s.locker = locker
	}
}

// Setup runs the configuration pipeline (defaults, loaded config, runtime
// overrides in ascending precedence) and builds the service from the result.
func Setup(ctx context.Context, runtime Config, opts ...Option) (*Service, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := applySettings(opts)

	provider := cfg.configProvider
	if provider == nil {
		provider = core.NewCfgxConfigProvider(core.EnvRawConfigLoader{})
	}
	resolver := cfg.optionsResolver
	if resolver == nil {
		resolver = core.GoOptionsResolver{}
	}

	defaults := core.DefaultConfig()
	loaded, err := provider.Load(ctx, defaults)
	if err != nil {
		return nil, fmt.Errorf("mstools: config load failed: %w", err)
	}
	resolved, err := resolver.Resolve(defaults, loaded, runtime)
	if err != nil {
		return nil, fmt.Errorf("mstools: config resolve failed: %w", err)
	}
	return NewService(ctx, resolved, opts...)
}

// NewService builds the service from an already resolved configuration.
func NewService(ctx context.Context, config Config, opts ...Option) (*Service, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	cfg := applySettings(opts)

	provider, logger := glog.Resolve(config.ServiceName, cfg.loggerProvider, cfg.logger)
	observer := core.NewObserver(logger, cfg.metrics)

	store, err := buildStore(ctx, config, cfg)
	if err != nil {
		return nil, err
	}

	exchanger := cfg.exchanger
	if exchanger == nil {
		exchangerOpts := []auth.ExchangerOption{}
		if cfg.httpClient != nil {
			exchangerOpts = append(exchangerOpts, auth.WithExchangeHTTPClient(cfg.httpClient))
		}
		exchanger = auth.NewHTTPTokenExchanger(config.Auth, exchangerOpts...)
	}

	locker := cfg.locker
	if locker == nil {
		locker = auth.NewMemoryIdentityLocker()
	}

	manager, err := auth.NewManager(store, exchanger,
		auth.WithIdentityLocker(locker),
		auth.WithManagerObserver(observer),
		auth.WithExpiryMargin(config.Auth.Margin()),
	)
	if err != nil {
		return nil, err
	}

	appTokens, err := auth.NewAppTokenCache(exchanger,
		auth.WithAppTokenObserver(observer),
		auth.WithAppTokenMargin(config.Auth.Margin()),
	)
	if err != nil {
		return nil, err
	}

	graphOpts := []graph.Option{
		graph.WithObserver(observer),
		graph.WithThrottlePolicy(ratelimit.NewAdaptivePolicy(ratelimit.NewMemoryStateStore())),
	}
	if cfg.httpClient != nil {
		graphOpts = append(graphOpts, graph.WithHTTPClient(cfg.httpClient))
	}
	graphClient, err := graph.NewClient(config.Graph, graphOpts...)
	if err != nil {
		return nil, err
	}

	identifierResolver, err := resolve.NewResolver(graphClient,
		resolve.WithResolverObserver(observer),
	)
	if err != nil {
		return nil, err
	}

	service := &Service{
		config:    config,
		observer:  observer,
		logger:    logger,
		provider:  provider,
		store:     store,
		exchanger: exchanger,
		manager:   manager,
		appTokens: appTokens,
		graph:     graphClient,
		resolver:  identifierResolver,
	}

	if cfg.enqueuer != nil {
		sweeper, err := auth.NewRefreshSweeper(store, manager, cfg.enqueuer,
			auth.WithSweeperObserver(observer),
			auth.WithSweeperMargin(config.Auth.Margin()),
		)
		if err != nil {
			return nil, err
		}
		service.sweeper = sweeper
	}

	return service, nil
}

func applySettings(opts []Option) *settings {
	cfg := &settings{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(cfg)
	}
	return cfg
}

func buildStore(ctx context.Context, config core.Config, cfg *settings) (core.CredentialStore, error) {
	if cfg.store != nil {
		return cfg.store, nil
	}

	driver := strings.TrimSpace(config.Store.Driver)
	dsn := strings.TrimSpace(config.Store.DSN)
	if driver != "" && dsn != "" {
		db, err := sqlstore.Open(driver, dsn)
		if err != nil {
			return nil, err
		}
		if err := sqlstore.EnsureSchema(ctx, db); err != nil {
			return nil, err
		}
		base, err := sqlstore.NewStore(db)
		if err != nil {
			return nil, err
		}
		if cfg.cacheService != nil {
			return sqlstore.NewCachedStore(base, cfg.cacheService)
		}
		return base, nil
	}

	secrets := cfg.secretProvider
	if secrets == nil && strings.TrimSpace(cfg.secretKey) != "" {
		provider, err := security.NewLocalKeySecretProviderFromString(cfg.secretKey)
		if err != nil {
			return nil, err
		}
		secrets = provider
	}

	fileOpts := []filestore.Option{}
	if secrets != nil {
		fileOpts = append(fileOpts, filestore.WithSecretProvider(secrets))
	}
	return filestore.Open(config.Store.Path, fileOpts...)
}

// Obtain returns a usable delegated credential for the supplied tokens.
func (s *Service) Obtain(ctx context.Context, creds core.RequestCredentials) (core.AccessCredential, error) {
	if s == nil {
		return core.AccessCredential{}, fmt.Errorf("mstools: service is nil")
	}
	return s.manager.Obtain(ctx, creds)
}

// Refresh forces a refresh for a stored identity.
func (s *Service) Refresh(ctx context.Context, identity string) (core.AccessCredential, error) {
	if s == nil {
		return core.AccessCredential{}, fmt.Errorf("mstools: service is nil")
	}
	return s.manager.Refresh(ctx, identity)
}

// Evict drops a stored identity's credential record.
func (s *Service) Evict(ctx context.Context, identity string) error {
	if s == nil {
		return fmt.Errorf("mstools: service is nil")
	}
	return s.manager.Evict(ctx, identity)
}

// AppToken returns the cached application token, refreshing it when stale.
func (s *Service) AppToken(ctx context.Context) (core.AccessCredential, error) {
	if s == nil {
		return core.AccessCredential{}, fmt.Errorf("mstools: service is nil")
	}
	return s.appTokens.Token(ctx)
}

func (s *Service) ResolveTeam(ctx context.Context, token string, raw string) (string, bool, error) {
	if s == nil {
		return "", false, fmt.Errorf("mstools: service is nil")
	}
	return s.resolver.ResolveTeam(ctx, token, raw)
}

func (s *Service) ResolveChannel(ctx context.Context, token string, teamID string, raw string) (string, bool, error) {
	if s == nil {
		return "", false, fmt.Errorf("mstools: service is nil")
	}
	return s.resolver.ResolveChannel(ctx, token, teamID, raw)
}

func (s *Service) ResolveUser(ctx context.Context, token string, raw string) (string, bool, error) {
	if s == nil {
		return "", false, fmt.Errorf("mstools: service is nil")
	}
	return s.resolver.ResolveUser(ctx, token, raw)
}

func (s *Service) ResolveChat(ctx context.Context, token string, raw string) (string, bool, error) {
	if s == nil {
		return "", false, fmt.Errorf("mstools: service is nil")
	}
	return s.resolver.ResolveChat(ctx, token, raw)
}

func (s *Service) FindMeeting(ctx context.Context, token string, criteria resolve.MeetingCriteria) (string, bool, error) {
	if s == nil {
		return "", false, fmt.Errorf("mstools: service is nil")
	}
	return s.resolver.FindMeeting(ctx, token, criteria)
}

// RequireDelegated returns middleware that attaches a delegated credential
// to each request or writes the classified error envelope.
func (s *Service) RequireDelegated() func(http.Handler) http.Handler {
	if s == nil {
		return auth.RequireDelegated(nil)
	}
	return auth.RequireDelegated(s.manager)
}

// RequireApplication returns middleware that attaches the application token.
func (s *Service) RequireApplication() func(http.Handler) http.Handler {
	if s == nil {
		return auth.RequireApplication(nil)
	}
	return auth.RequireApplication(s.appTokens)
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Manager() *auth.Manager {
	if s == nil {
		return nil
	}
	return s.manager
}

func (s *Service) Graph() *graph.Client {
	if s == nil {
		return nil
	}
	return s.graph
}

func (s *Service) Resolver() *resolve.Resolver {
	if s == nil {
		return nil
	}
	return s.resolver
}

// Sweeper is nil unless a job enqueuer was supplied.
func (s *Service) Sweeper() *auth.RefreshSweeper {
	if s == nil {
		return nil
	}
	return s.sweeper
}

func (s *Service) Store() core.CredentialStore {
	if s == nil {
		return nil
	}
	return s.store
}

func (s *Service) Logger() core.Logger {
	if s == nil {
		return nil
	}
	return s.logger
}

func (s *Service) LoggerProvider() core.LoggerProvider {
	if s == nil {
		return nil
	}
	return s.provider
}
