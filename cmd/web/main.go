package main

import (
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/joho/godotenv"
	"github.com/myrjola/cdms/internal/auth"
	"github.com/myrjola/cdms/internal/backend"
	"github.com/myrjola/cdms/internal/envstruct"
	"github.com/myrjola/cdms/internal/errors"
	"github.com/myrjola/cdms/internal/logging"
	"github.com/myrjola/cdms/internal/pprofserver"
	"github.com/myrjola/cdms/internal/random"
	"github.com/myrjola/cdms/internal/repositories"
	"github.com/myrjola/cdms/internal/repositories/memory"
)

type application struct {
	logger         *slog.Logger
	sessionManager *scs.SessionManager
	gate           *auth.Gate
	cases          repositories.CaseRepository
	records        repositories.RecordRepository
	policies       repositories.PolicyRepository
	templates      map[string]*template.Template
	secureCookies  bool
	maxUploadBytes int64
	// handlerTimeout bounds every handler except file downloads.
	handlerTimeout time.Duration
}

const (
	backendModeLive = "live"
	backendModeMock = "mock"
)

type config struct {
	// BackendURL is the base URL of the case management API.
	BackendURL string `env:"BACKEND_URL" envDefault:"http://localhost:3000"`
	// SessionSecret keys the session hashes in the logs. Required in production.
	SessionSecret string `env:"SESSION_SECRET" envDefault:""`
	// Env is "production" or anything else for development.
	Env  string `env:"NODE_ENV" envDefault:"development"`
	Port string `env:"PORT" envDefault:"3001"`
	Host string `env:"HOST" envDefault:"localhost"`
	// BackendMode is "live" for the backend API or "mock" for in-memory data.
	BackendMode    string        `env:"BACKEND_MODE" envDefault:"live"`
	BackendTimeout time.Duration `env:"BACKEND_TIMEOUT" envDefault:"10s"`
	// SessionStore is "memory", "sqlite" or "redis".
	SessionStore       string        `env:"SESSION_STORE" envDefault:"memory"`
	SQLiteURL          string        `env:"SQLITE_URL" envDefault:"./cdms.sqlite"`
	RedisAddr          string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	SessionLifetime    time.Duration `env:"SESSION_LIFETIME" envDefault:"12h"`
	SessionIdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"2h"`
	MaxUploadBytes     int64         `env:"MAX_UPLOAD_BYTES" envDefault:"33554432"`
	// PprofAddr enables the pprof server on this loopback address.
	PprofAddr string `env:"PPROF_ADDR" envDefault:""`
}

func (c config) production() bool {
	return c.Env == "production"
}

func (c config) addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c config) validate() error {
	var errs []error
	if c.production() && c.SessionSecret == "" {
		errs = append(errs, errors.New("SESSION_SECRET is required in production"))
	}
	if c.BackendMode != backendModeLive && c.BackendMode != backendModeMock {
		errs = append(errs, errors.New("unknown backend mode", slog.String("BACKEND_MODE", c.BackendMode)))
	}
	if c.BackendTimeout <= 0 {
		errs = append(errs, errors.New("BACKEND_TIMEOUT must be positive"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}
	return errors.Join(errs...)
}

func run(ctx context.Context, logger *slog.Logger, lookupEnv func(string) (string, bool)) error {
	var (
		cfg config
		err error
	)
	if err = envstruct.Populate(&cfg, lookupEnv); err != nil {
		return errors.Wrap(err, "populate config")
	}
	if err = cfg.validate(); err != nil {
		return errors.Wrap(err, "validate config")
	}
	if cfg.SessionSecret == "" {
		// Development only. Session hashes in the logs change on every restart.
		if cfg.SessionSecret, err = random.Letters(32); err != nil { //nolint:mnd // 32 letters
			return errors.Wrap(err, "generate session secret")
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.PprofAddr != "" {
		if err = pprofserver.Launch(ctx, cfg.PprofAddr, logger); err != nil {
			return errors.Wrap(err, "launch pprof server")
		}
	}

	var repos repositories.Set
	if repos, err = newRepositories(cfg, logger); err != nil {
		return errors.Wrap(err, "new repositories")
	}

	var (
		sessionManager *scs.SessionManager
		closeStore     func()
	)
	if sessionManager, closeStore, err = newSessionManager(ctx, cfg, logger); err != nil {
		return errors.Wrap(err, "new session manager")
	}
	defer closeStore()

	var templates map[string]*template.Template
	if templates, err = parseTemplates(); err != nil {
		return errors.Wrap(err, "parse templates")
	}

	app := application{
		logger:         logger,
		sessionManager: sessionManager,
		gate:           auth.New(logger, sessionManager, repos.Users, cfg.SessionSecret),
		cases:          repos.Cases,
		records:        repos.Records,
		policies:       repos.Policies,
		templates:      templates,
		secureCookies:  cfg.production(),
		maxUploadBytes: cfg.MaxUploadBytes,
		handlerTimeout: cfg.BackendTimeout + defaultTimeout,
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "configured application",
		slog.String("backend_mode", cfg.BackendMode),
		slog.String("session_store", cfg.SessionStore),
		slog.Bool("production", cfg.production()))

	if err = app.configureAndStartServer(ctx, cfg.addr()); err != nil {
		return errors.Wrap(err, "start server")
	}
	return nil
}

// newRepositories selects the data access implementation once for the lifetime of the process.
func newRepositories(cfg config, logger *slog.Logger) (repositories.Set, error) {
	if cfg.BackendMode == backendModeMock {
		logger.Warn("using in-memory mock data, nothing is persisted")
		return memory.NewSet(logger), nil
	}
	client, err := backend.NewClient(cfg.BackendURL, cfg.BackendTimeout, logger)
	if err != nil {
		return repositories.Set{}, errors.Wrap(err, "new backend client")
	}
	return repositories.NewLiveSet(client, logger), nil
}

func main() {
	ctx := context.Background()
	// A missing .env file is fine, the environment may be configured otherwise.
	envErr := godotenv.Load()
	logger := logging.NewLogger(os.Stdout, os.Getenv("NODE_ENV") == "production")
	if envErr != nil && !errors.Is(envErr, fs.ErrNotExist) {
		logger.LogAttrs(ctx, slog.LevelError, "failure loading .env", errors.SlogError(envErr))
		os.Exit(1)
	}
	if err := run(ctx, logger, os.LookupEnv); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failure starting application", errors.SlogError(err))
		os.Exit(1)
	}
}
