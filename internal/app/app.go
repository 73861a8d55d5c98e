package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "phoneotp/docs"
	"phoneotp/internal/config"
	"phoneotp/internal/handlers"
	"phoneotp/internal/middleware"
	"phoneotp/internal/repositories"
	"phoneotp/internal/routes"
	"phoneotp/internal/services"
	"phoneotp/internal/utils"
)

func Run() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	router, cleanup, err := Build(cfg, logger)
	if err != nil {
		logger.Fatal("build app", zap.Error(err))
	}
	defer cleanup()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("server started", zap.String("addr", srv.Addr), zap.String("driver", cfg.Database.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}

func NewLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		lvl, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		zcfg.Level = lvl
	}
	return zcfg.Build()
}

// Build wires storage, providers, services and routes. The returned cleanup
// closes whatever was opened.
func Build(cfg *config.Config, logger *zap.Logger) (*gin.Engine, func(), error) {
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn("cleanup", zap.Error(err))
			}
		}
	}

	supabase := utils.NewSupabaseClient(cfg.Supabase.URL, cfg.Supabase.ServiceRoleKey)

	var (
		store    services.OTPStore
		profiles services.ProfileDirectory
	)
	switch cfg.Database.Driver {
	case config.DriverBolt:
		if err := os.MkdirAll(filepath.Dir(cfg.Database.BoltPath), 0700); err != nil {
			return nil, cleanup, fmt.Errorf("bolt dir: %w", err)
		}
		repo, err := repositories.OpenBoltPhoneOTPRepository(cfg.Database.BoltPath)
		if err != nil {
			return nil, cleanup, err
		}
		closers = append(closers, repo.Close)
		store, profiles = repo, supabase
	case config.DriverPostgres, config.DriverPgx:
		db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			return nil, cleanup, fmt.Errorf("open db: %w", err)
		}
		closers = append(closers, db.Close)
		store, profiles = repositories.NewPhoneOTPRepository(db), repositories.NewProfileRepository(db)
	default:
		return nil, cleanup, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}

	for name, missing := range map[string][]string{
		"otp-send":            cfg.MissingSender(),
		"find-email-by-phone": cfg.MissingResolver(),
	} {
		if len(missing) > 0 {
			logger.Warn("endpoint will answer ENV_MISSING", zap.String("endpoint", name), zap.Strings("missing", missing))
		}
	}

	sender := utils.NewSolapiClient(cfg.Solapi.APIKey, cfg.Solapi.APISecret, cfg.Solapi.From, cfg.Solapi.BaseURL, cfg.Solapi.DryRun, logger.Named("solapi"))
	otpService := services.NewOTPService(store, sender, logger.Named("otp"), services.OTPOptions{
		TTL:          cfg.OTP.TTL,
		Cooldown:     cfg.OTP.Cooldown,
		AllowSandbox: cfg.OTP.AllowSandbox,
		Brand:        cfg.Solapi.Brand,
		MissingSend:  cfg.MissingSender(),
		MissingStore: cfg.MissingStore(),
	})
	identityService := services.NewIdentityService(otpService, profiles, supabase, logger.Named("identity"), cfg.Resolver.MinLatency, cfg.MissingResolver())
	otpHandler := handlers.NewOTPHandler(otpService, identityService)

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	router := gin.New()
	router.Use(middleware.RequestID(), middleware.Logger(logger.Named("http")), gin.Recovery(), middleware.CORS())

	guards := []gin.HandlerFunc{middleware.AuthMiddleware([]byte(cfg.Supabase.JWTSecret))}
	if cfg.RateLimit.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RateLimit.RedisAddr,
			Password: cfg.RateLimit.RedisPassword,
		})
		closers = append(closers, rdb.Close)
		guards = append(guards, middleware.RateLimiter(rdb, cfg.RateLimit.Limit, cfg.RateLimit.Window, cfg.RateLimit.Block, "otp", logger.Named("ratelimit")))
	}

	routes.SetupRoutes(router, otpHandler, logger, guards...)
	return router, cleanup, nil
}
