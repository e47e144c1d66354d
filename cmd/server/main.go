// server runs the tenant rollups HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	apikeyhandler "tenant-rollups/backend/internal/apikey/handler"
	apikeyrepo "tenant-rollups/backend/internal/apikey/repository"
	apikeyservice "tenant-rollups/backend/internal/apikey/service"
	"tenant-rollups/backend/internal/audit"
	audithandler "tenant-rollups/backend/internal/audit/handler"
	auditrepo "tenant-rollups/backend/internal/audit/repository"
	"tenant-rollups/backend/internal/config"
	"tenant-rollups/backend/internal/db"
	eventhandler "tenant-rollups/backend/internal/event/handler"
	eventrepo "tenant-rollups/backend/internal/event/repository"
	eventservice "tenant-rollups/backend/internal/event/service"
	healthhandler "tenant-rollups/backend/internal/health/handler"
	identityhandler "tenant-rollups/backend/internal/identity/handler"
	identityrepo "tenant-rollups/backend/internal/identity/repository"
	identityservice "tenant-rollups/backend/internal/identity/service"
	"tenant-rollups/backend/internal/identity/store"
	membershiprepo "tenant-rollups/backend/internal/membership/repository"
	"tenant-rollups/backend/internal/platform/logger"
	"tenant-rollups/backend/internal/platform/metrics"
	refreshrepo "tenant-rollups/backend/internal/refreshtoken/repository"
	"tenant-rollups/backend/internal/security"
	"tenant-rollups/backend/internal/server"
	"tenant-rollups/backend/internal/server/middleware"
	"tenant-rollups/backend/internal/telemetry"
	oteltelemetry "tenant-rollups/backend/internal/telemetry/otel"
	tenanthandler "tenant-rollups/backend/internal/tenant/handler"
	tenantrepo "tenant-rollups/backend/internal/tenant/repository"
	tenantservice "tenant-rollups/backend/internal/tenant/service"
	userrepo "tenant-rollups/backend/internal/user/repository"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Env, cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := oteltelemetry.NewProviders(ctx, oteltelemetry.Config{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Env,
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	providers.SetGlobal()

	pool, err := db.Open(ctx, db.PoolConfig{DSN: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
	if err != nil {
		return err
	}
	defer pool.Close()

	tokens, err := security.NewTokenProvider([]byte(cfg.SigningSecret), cfg.Issuer, cfg.AccessTTL)
	if err != nil {
		return fmt.Errorf("token provider: %w", err)
	}

	m := metrics.New("rollups")
	bg := telemetry.NewBackground(cfg.APIKeyTouchTimeout, log)

	auditRepo := auditrepo.NewPostgresRepository(pool)
	auditLog := audit.NewLogger(auditRepo, middleware.ClientIP).
		WithMirror(oteltelemetry.NewEventEmitter(providers.LoggerProvider), bg)

	users := userrepo.NewPostgresRepository(pool)
	hasher := security.NewHasher(cfg.BcryptCost)
	identities := store.New(users, identityrepo.NewPostgresRepository(pool), hasher)
	tenants := tenantrepo.NewPostgresRepository(pool)
	members := membershiprepo.NewPostgresRepository(pool)

	auth := identityservice.NewAuthService(identities, tenants, members, refreshrepo.NewPostgresRepository(pool), tokens, cfg.RefreshTTL).
		WithAudit(auditLog).
		WithMetrics(m).
		WithTracer(providers.TracerProvider.Tracer("tenant-rollups/identity")).
		WithTransactor(identityrepo.NewPostgresTransactor(pool, hasher))
	keys := apikeyservice.NewManager(apikeyrepo.NewPostgresRepository(pool), tenants, bg).WithAudit(auditLog)
	events := eventservice.NewService(eventrepo.NewPostgresRepository(pool))

	e := server.New(server.Deps{
		Log:           log,
		Authenticator: middleware.NewAuthenticator(tokens, keys, m),
		Members:       members,
		Tenants:       tenants,
		Audit:         auditLog,
		Metrics:       m,
		Tracer:        providers.TracerProvider.Tracer("tenant-rollups/http"),
		Handlers: server.Handlers{
			Auth:   identityhandler.NewHandler(auth, identities, tenants, identityhandler.CookieConfig{Secure: cfg.CookieSecure, TTL: cfg.RefreshTTL}),
			Events: eventhandler.NewHandler(events, m),
			Keys:   apikeyhandler.NewHandler(keys),
			Audit:  audithandler.NewHandler(auditRepo),
			Health: healthhandler.NewHandler(cfg.ServiceName, pool),
			Tenant: tenanthandler.NewHandler(tenantservice.NewAdmin(tenants, members).WithAudit(auditLog)),
		},
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	if err := keys.Drain(shutdownCtx); err != nil {
		log.Warn("draining background tasks", zap.Error(err))
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Warn("otel shutdown", zap.Error(err))
	}
	log.Info("HTTP server stopped")
	return nil
}
