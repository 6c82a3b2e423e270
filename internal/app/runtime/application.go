package runtime

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"

	app "github.com/Aromatic05/CurioBox-sub000/internal/app"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/auth"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/cache"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/httpapi"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/services/maintenance"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/storage/postgres"
	"github.com/Aromatic05/CurioBox-sub000/internal/config"
	"github.com/Aromatic05/CurioBox-sub000/internal/middleware"
	"github.com/Aromatic05/CurioBox-sub000/pkg/logger"
)

const (
	shutdownTimeout = 10 * time.Second
	pingTimeout     = 5 * time.Second
)

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg     config.Config
	log     *logger.Logger
	app     *app.Application
	server  *http.Server
	handler http.Handler
	db      *sql.DB
	redis   *redis.Client
	audit   *httpapi.FileAuditSink
}

// NewApplication constructs the server from cfg. Version is reported by the
// health endpoint.
func NewApplication(cfg config.Config, version string) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	log := logger.New(cfg.Logging)

	a := &Application{cfg: cfg, log: log}
	ok := false
	defer func() {
		if !ok {
			a.closeResources()
		}
	}()

	stores, err := a.buildStores()
	if err != nil {
		return nil, fmt.Errorf("configure stores: %w", err)
	}

	cors := middleware.NewCORSMiddleware(cfg.Server.CORSOrigins)
	opts := app.Options{
		JWTSecret:      cfg.Auth.JWTSecret,
		TokenTTL:       cfg.Auth.TokenTTL,
		Issuer:         cfg.Auth.Issuer,
		UploadDir:      cfg.Uploads.Dir,
		UploadPrefix:   cfg.Uploads.PublicPrefix,
		UploadMaxBytes: cfg.Uploads.MaxBytes,
		CheckOrigin:    cors.CheckOrigin,
		PruneSpec:      cfg.Maintenance.PruneSpec,
		SummarySpec:    cfg.Maintenance.SummarySpec,
	}
	if err := a.connectRedis(&opts); err != nil {
		return nil, fmt.Errorf("configure redis: %w", err)
	}

	application, err := app.New(stores, opts, log.Named("app"))
	if err != nil {
		return nil, err
	}
	a.app = application

	if cfg.Auth.AdminUsername != "" {
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		_, err := application.Accounts.EnsureAdmin(ctx, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("bootstrap admin: %w", err)
		}
	}

	var limiter *middleware.RateLimiter
	if cfg.Server.RateLimitRPS > 0 {
		limiter = middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateBurst, log.Named("ratelimit"))
		if cfg.Maintenance.PruneSpec != "" {
			if err := application.Maintenance.Add(maintenance.PruneJob("prune-ratelimit", cfg.Maintenance.PruneSpec, limiter, log)); err != nil {
				return nil, err
			}
		}
	}

	sink, err := httpapi.NewFileAuditSink(cfg.Audit.File)
	if err != nil {
		return nil, fmt.Errorf("open audit file: %w", err)
	}
	a.audit = sink
	var auditSink httpapi.AuditSink
	if sink != nil {
		auditSink = sink
	}

	a.handler = httpapi.NewHandler(application, httpapi.Options{
		CORSOrigins: cfg.Server.CORSOrigins,
		Limiter:     limiter,
		Audit:       httpapi.NewAuditLog(cfg.Audit.RingSize, auditSink),
		Version:     version,
	}, log.Named("http"))

	a.server = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           a.handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       2 * time.Minute,
	}

	ok = true
	return a, nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *Application) Handler() http.Handler { return a.handler }

// Run starts background services and the HTTP server, then blocks until
// the context is cancelled or the listener fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.server.Addr, err)
	}
	return a.serve(ctx, ln)
}

func (a *Application) serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		a.log.WithField("addr", ln.Addr().String()).Info("HTTP server listening")
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown drains the HTTP server, stops services and releases connections.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := a.app.Stop(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("stop services: %w", err))
	}
	a.closeResources()
	return errors.Join(errs...)
}

func (a *Application) closeResources() {
	if a.audit != nil {
		if err := a.audit.Close(); err != nil {
			a.log.WithError(err).Warn("error closing audit file")
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.WithError(err).Warn("error closing redis client")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warn("error closing database connection")
		}
	}
}

func (a *Application) buildStores() (app.Stores, error) {
	if a.cfg.Database.Driver != "postgres" {
		a.log.Warn("using in-memory store; data is lost on restart")
		return app.Stores{}, nil
	}

	db, err := OpenDatabase(a.cfg.Database)
	if err != nil {
		return app.Stores{}, err
	}
	a.db = db

	if a.cfg.Database.MigrateOnStart {
		m, err := postgres.NewMigrator(db)
		if err != nil {
			return app.Stores{}, err
		}
		if err := m.Up(); err != nil {
			return app.Stores{}, fmt.Errorf("apply migrations: %w", err)
		}
		if v, dirty, err := m.Version(); err == nil {
			a.log.WithField("version", v).WithField("dirty", dirty).Info("schema up to date")
		}
	}

	store := postgres.New(db)
	return app.Stores{Users: store, Catalog: store, Inventory: store, Showcase: store}, nil
}

func (a *Application) connectRedis(opts *app.Options) error {
	rc := a.cfg.Redis
	if rc.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return err
	}
	a.redis = client
	opts.Revocations = auth.NewRedisRevocations(client, rc.Prefix+"revoked:")
	opts.Cache = cache.NewRedis(client, rc.Prefix+"cache:")
	a.log.WithField("addr", rc.Addr).Info("redis connected")
	return nil
}

// OpenDatabase opens and pings a PostgreSQL pool tuned by cfg.
func OpenDatabase(cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn not configured")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
