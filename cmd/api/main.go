package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"groupgate.org/internal/audit"
	"groupgate.org/internal/authn"
	"groupgate.org/internal/config"
	"groupgate.org/internal/events"
	"groupgate.org/internal/groups"
	"groupgate.org/internal/httpapi"
	"groupgate.org/internal/migrate"
	"groupgate.org/internal/obs"
	"groupgate.org/internal/ratelimit"
	"groupgate.org/internal/store/pg"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to a YAML config file")
	showVersion := pflag.Bool("version", false, "print version and exit")
	pflag.Parse()

	if *showVersion {
		fmt.Printf("groupgate-api %s (%s)\n", version, commit)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	log, err := obs.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("groupgate-api stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs.Init()
	obs.InitBuildInfo(version, commit)

	store, ready, closeStore, err := openStore(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer closeStore()

	tokens, err := authn.New(cfg.Auth.Secret, authn.WithIssuer(cfg.Auth.Issuer))
	if err != nil {
		return err
	}

	hub := events.NewHub()
	auditLog := audit.New(log)
	joinMetrics := groups.PublisherFunc(func(evt groups.Event) {
		switch evt.Type {
		case groups.EventJoinRequestCreated:
			obs.RecordJoinRequest(string(groups.JoinPending))
		case groups.EventJoinRequestApproved:
			obs.RecordJoinRequest(string(groups.JoinApproved))
		case groups.EventJoinRequestRejected:
			obs.RecordJoinRequest(string(groups.JoinRejected))
		}
	})

	svc, err := groups.NewService(store,
		groups.WithLogger(log.Named("groups")),
		groups.WithPublisher(groups.Publishers{hub, auditLog, joinMetrics}),
		groups.WithDecisionHook(obs.RecordDecision),
	)
	if err != nil {
		return err
	}

	proxies, err := cfg.HTTP.TrustedProxyPrefixes()
	if err != nil {
		return err
	}
	opts := []httpapi.Option{
		httpapi.WithHub(hub),
		httpapi.WithAudit(auditLog),
		httpapi.WithLogger(log.Named("http")),
		httpapi.WithReadiness(ready),
		httpapi.WithVersion(version),
		httpapi.WithMaxBodyBytes(cfg.HTTP.MaxBodyBytes),
		httpapi.WithAllowedOrigins(cfg.HTTP.AllowedOrigins),
		httpapi.WithTrustedProxies(proxies),
	}
	if cfg.RateLimit.Enabled {
		limiter, closeLimiter, err := newLimiter(ctx, cfg.RateLimit, log)
		if err != nil {
			return err
		}
		defer closeLimiter()
		opts = append(opts, httpapi.WithRateLimiter(limiter))
	}
	api, err := httpapi.New(svc, tokens, opts...)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}
	grpcSrv := httpapi.NewGRPCServer(ready)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http listening", zap.String("addr", srv.Addr), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	if cfg.GRPC.Addr != "" {
		g.Go(func() error {
			lis, err := net.Listen("tcp", cfg.GRPC.Addr)
			if err != nil {
				return fmt.Errorf("grpc listen: %w", err)
			}
			log.Info("grpc health listening", zap.String("addr", cfg.GRPC.Addr))
			return grpcSrv.Serve(lis)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		grpcSrv.GracefulStop()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("stopped")
	return nil
}

// openStore picks PostgreSQL when a DSN is configured and the in-memory
// store otherwise.
func openStore(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (groups.Store, httpapi.ReadyChecker, func(), error) {
	if cfg.DSN == "" {
		log.Warn("no database configured, using in-memory store")
		return groups.NewMemoryStore(), nil, func() {}, nil
	}
	st, err := pg.Open(cfg.DSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open db: %w", err)
	}
	if cfg.AutoMigrate {
		migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := migrate.NewManager(st.DB(), nil).Up(migrateCtx); err != nil {
			_ = st.Close()
			return nil, nil, nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info("schema migrated")
	}
	return st, st, func() { _ = st.Close() }, nil
}

func newLimiter(ctx context.Context, cfg config.RateLimitConfig, log *zap.Logger) (ratelimit.Limiter, func(), error) {
	if cfg.RedisAddr == "" {
		return ratelimit.NewLocal(cfg.PerSecond, cfg.Burst), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	limiter := ratelimit.NewRedis(client, cfg.Burst, cfg.Window, "")
	if err := limiter.Check(ctx); err != nil {
		log.Warn("redis rate limiter unreachable, requests pass until it recovers", zap.Error(err))
	}
	return limiter, func() { _ = client.Close() }, nil
}
