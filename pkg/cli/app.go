package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/residenciauni/residencia/pkg/client"
	"github.com/residenciauni/residencia/pkg/config"
	"github.com/residenciauni/residencia/pkg/crud"
	"github.com/residenciauni/residencia/pkg/dashboard"
	"github.com/residenciauni/residencia/pkg/identity"
	"github.com/residenciauni/residencia/pkg/observability"
	"github.com/residenciauni/residencia/pkg/policy"
	"github.com/residenciauni/residencia/pkg/sso"
)

// ErrNotLoggedIn is returned by commands that need a session when none is stored
var ErrNotLoggedIn = errors.New("no hay una sesión activa, ejecuta 'residencia login'")

// App holds what every command shares: configuration, output streams,
// the session store, the backend client, and the authorization predicate.
type App struct {
	Config   *config.Config
	In       io.Reader
	Out      io.Writer
	Err      io.Writer
	Logger   *observability.Logger
	Metrics  *observability.Metrics
	Sessions identity.SessionStore
	Checker  policy.Checker
	Client   *client.Client

	ctx      context.Context
	input    *bufio.Reader
	loader   *dashboard.Loader
	verifier sso.Verifier
	confirm  crud.Confirmer
	otel     *observability.OTelProviders
	closers  []func() error
	now      func() time.Time
}

// AppOption customizes an App
type AppOption func(*App)

// WithContext sets the context commands run under
func WithContext(ctx context.Context) AppOption {
	return func(a *App) {
		a.ctx = ctx
	}
}

// WithSessionStore replaces the configured session store
func WithSessionStore(s identity.SessionStore) AppOption {
	return func(a *App) {
		a.Sessions = s
	}
}

// WithVerifier replaces the Google ID token verifier
func WithVerifier(v sso.Verifier) AppOption {
	return func(a *App) {
		a.verifier = v
	}
}

// WithConfirmer replaces the interactive delete confirmation
func WithConfirmer(c crud.Confirmer) AppOption {
	return func(a *App) {
		a.confirm = c
	}
}

// NewApp wires the application from cfg. Logs go to stderr; command output to stdout.
func NewApp(cfg *config.Config, stdin io.Reader, stdout, stderr io.Writer, opts ...AppOption) (*App, error) {
	a := &App{
		Config:  cfg,
		In:      stdin,
		Out:     stdout,
		Err:     stderr,
		Logger:  observability.NewLoggerWithFormat(cfg.Observability.Level(), stderr, cfg.Observability.Format()),
		Metrics: observability.NewMetrics(prometheus.NewRegistry()),
		ctx:     context.Background(),
		input:   bufio.NewReader(stdin),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.Sessions == nil {
		store, closer, err := openSessionStore(cfg.Session)
		if err != nil {
			return nil, err
		}
		a.Sessions = store
		if closer != nil {
			a.closers = append(a.closers, closer)
		}
	}

	var policyOpts []policy.Option
	if !cfg.Policy.LegacyUnowned {
		policyOpts = append(policyOpts, policy.WithoutLegacyUnowned())
	}
	a.Checker = policy.New(policyOpts...)

	a.Client = client.New(cfg.API.BaseURL,
		client.WithTimeout(cfg.API.Timeout),
		client.WithMetrics(a.Metrics),
		client.WithLogger(a.Logger.WithField("component", "client")),
	)
	a.loader = dashboard.NewLoader(a.Client, a.Checker, dashboard.Config{
		CacheTTL:  cfg.Dashboard.CacheTTL,
		CacheSize: cfg.Dashboard.CacheSize,
	}, a.Logger, a.Metrics)

	providers, err := observability.InitOTel(a.ctx, cfg.Observability.OTel(), a.Logger)
	if err != nil {
		// Tracing is optional; commands still work without it
		a.Logger.WithError(err).Warn("failed to initialize OpenTelemetry")
	}
	a.otel = providers

	return a, nil
}

// openSessionStore selects the session backend named in cfg
func openSessionStore(cfg config.SessionConfig) (identity.SessionStore, func() error, error) {
	switch cfg.Backend {
	case config.SessionBackendRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid redis URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		return identity.NewRedisStore(rdb, cfg.RedisPrefix, cfg.Name, cfg.RedisTTL), rdb.Close, nil
	case config.SessionBackendMemory:
		return identity.NewMemoryStore(), nil, nil
	default:
		return identity.NewFileStore(cfg.File), nil, nil
	}
}

// Context returns the context commands run under
func (a *App) Context() context.Context {
	return a.ctx
}

// Close flushes metrics and releases the session backend
func (a *App) Close() error {
	var errs []error
	if err := a.Metrics.WriteTextfile(a.Config.Observability.MetricsFile); err != nil {
		errs = append(errs, err)
	}
	if a.otel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := observability.ShutdownOTel(ctx, a.otel, a.Logger); err != nil {
			errs = append(errs, err)
		}
	}
	for _, closer := range a.closers {
		if err := closer(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// session returns the stored identity, filling gaps from its token
func (a *App) session(ctx context.Context) (identity.Identity, error) {
	id, err := a.Sessions.Load(ctx)
	if errors.Is(err, identity.ErrNoSession) {
		return identity.Identity{}, ErrNotLoggedIn
	}
	if err != nil {
		return identity.Identity{}, err
	}
	id = identity.Merge(id)
	if !id.Authenticated() {
		return identity.Identity{}, ErrNotLoggedIn
	}
	return id, nil
}

// moduleOptions are the crud options every record command uses
func (a *App) moduleOptions() []crud.Option {
	return []crud.Option{
		crud.WithLogger(a.Logger),
		crud.WithMetrics(a.Metrics),
		crud.WithNotifier(crud.NotifierFunc(a.notify)),
	}
}

// notify prints a module notice; errors go to stderr
func (a *App) notify(kind crud.NoticeKind, message string) {
	if kind == crud.NoticeError {
		fmt.Fprintf(a.Err, "✗ %s\n", message)
		return
	}
	fmt.Fprintf(a.Out, "✓ %s\n", message)
}

// confirmer returns the delete confirmation. yes skips the question.
func (a *App) confirmer(yes bool) crud.Confirmer {
	if yes {
		return crud.AlwaysConfirm
	}
	if a.confirm != nil {
		return a.confirm
	}
	return crud.ConfirmFunc(a.prompt)
}

// prompt asks a yes/no question on stdin. Anything but yes is no.
func (a *App) prompt(ctx context.Context, question string) (bool, error) {
	fmt.Fprintf(a.Out, "%s [s/N]: ", question)
	answer, err := a.readLine()
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "s", "si", "sí", "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// readLine reads one trimmed line from stdin. EOF reads as an empty answer.
func (a *App) readLine() (string, error) {
	line, err := a.input.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// googleVerifier returns the configured verifier, discovering Google's keys on first use
func (a *App) googleVerifier(ctx context.Context) (sso.Verifier, error) {
	if a.verifier != nil {
		return a.verifier, nil
	}
	v, err := sso.NewGoogleVerifier(ctx, a.Config.Auth.GoogleIssuer, a.Config.Auth.GoogleClientID)
	if err != nil {
		return nil, err
	}
	a.verifier = v
	return v, nil
}
