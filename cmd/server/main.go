package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Omarrio321/ElectronicsPOS/internal/audit"
	"github.com/Omarrio321/ElectronicsPOS/internal/cache"
	"github.com/Omarrio321/ElectronicsPOS/internal/checkout"
	"github.com/Omarrio321/ElectronicsPOS/internal/config"
	"github.com/Omarrio321/ElectronicsPOS/internal/domain"
	"github.com/Omarrio321/ElectronicsPOS/internal/httpapi"
	"github.com/Omarrio321/ElectronicsPOS/internal/inventory"
	"github.com/Omarrio321/ElectronicsPOS/internal/logging"
	"github.com/Omarrio321/ElectronicsPOS/internal/metrics"
	"github.com/Omarrio321/ElectronicsPOS/internal/reporting"
	"github.com/Omarrio321/ElectronicsPOS/internal/sales"
	"github.com/Omarrio321/ElectronicsPOS/internal/service"
	"github.com/Omarrio321/ElectronicsPOS/internal/settings"
	"github.com/Omarrio321/ElectronicsPOS/internal/store"
	"github.com/Omarrio321/ElectronicsPOS/internal/store/memory"
	pgstore "github.com/Omarrio321/ElectronicsPOS/internal/store/postgres"
	sqlitestore "github.com/Omarrio321/ElectronicsPOS/internal/store/sqlite"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("load .env: %v", err)
	}
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("invalid logging configuration: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := validateSecurityConfig(cfg); err != nil {
		logger.Fatal("invalid security configuration", zap.Error(err))
	}

	startCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	handler, closers, err := buildApp(startCtx, cfg, logger)
	cancel()
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("POS backend listening", zap.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}
	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Warn("close error", zap.Error(err))
		}
	}
	logger.Info("server stopped")
}

// buildApp wires storage, audit sinks, cache, checkout, reporting and the
// HTTP API from cfg. The returned closers run in order on shutdown.
func buildApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (http.Handler, []func() error, error) {
	closers := make([]func() error, 0, 4)
	fail := func(err error) (http.Handler, []func() error, error) {
		for _, closeFn := range closers {
			_ = closeFn()
		}
		return nil, nil, err
	}

	repo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, repo.Close)

	sinks := audit.Multi{audit.NewStoreSink(repo)}
	if brokers := audit.ParseBrokers(cfg.KafkaBrokers); len(brokers) > 0 {
		kafkaSink, err := audit.NewKafkaSink(brokers, cfg.KafkaAuditTopic)
		if err != nil {
			return fail(fmt.Errorf("kafka audit sink: %w", err))
		}
		sinks = append(sinks, kafkaSink)
		closers = append(closers, kafkaSink.Close)
		logger.Info("audit: kafka", zap.Strings("brokers", brokers), zap.String("topic", cfg.KafkaAuditTopic))
	}

	reportCache := cache.ReportCache(cache.NoopReportCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisReportCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			logger.Warn("redis unavailable, reports are not cached", zap.Error(err))
			_ = redisCache.Close()
		} else {
			reportCache = redisCache
			closers = append(closers, redisCache.Close)
			logger.Info("cache: redis", zap.String("addr", cfg.RedisAddr))
		}
	}

	rates, err := settings.ParseStatic(cfg.TaxRate)
	if err != nil {
		return fail(fmt.Errorf("TAX_RATE: %w", err))
	}

	m := metrics.New("pos")
	ledger := inventory.NewLedger(repo)
	saleStore := sales.NewStore(repo)
	coordinator := checkout.New(repo, ledger, saleStore, rates, sinks, logger.Named("checkout"),
		checkout.WithMaxAttempts(cfg.CheckoutMaxAttempts),
		checkout.WithObserver(m),
	)
	reports := reporting.New(saleStore, repo, ledger,
		reporting.WithCache(reportCache, cfg.ReportCacheTTL()),
		reporting.WithLogger(logger.Named("reporting")),
	)
	svc := service.New(repo, coordinator, reports, service.WithLogger(logger.Named("service")))

	auth, err := httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL())
	if err != nil {
		return fail(err)
	}
	if err := auth.AddUser(cfg.AdminUsername, cfg.AdminPassword, domain.RoleAdmin); err != nil {
		return fail(fmt.Errorf("admin account: %w", err))
	}

	api := httpapi.New(svc, auth, m, logger.Named("http"), cfg.AllowedOrigin)
	return api.Handler(), closers, nil
}

// openRepository picks postgres when DATABASE_URL is set, then sqlite when
// SQLITE_PATH is set, and otherwise a seeded in-memory store.
func openRepository(ctx context.Context, cfg config.Config, logger *zap.Logger) (store.Repository, error) {
	switch {
	case cfg.DatabaseURL != "":
		pg, err := pgstore.New(ctx, cfg.DatabaseURL, pgstore.WithLockTimeout(cfg.LockTimeout()))
		if err != nil {
			return nil, fmt.Errorf("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback: %w", err)
		}
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, fmt.Errorf("postgres migrate: %w", err)
		}
		logger.Info("repository: postgres")
		return pg, nil
	case cfg.SQLitePath != "":
		lite, err := sqlitestore.Open(ctx, cfg.SQLitePath, sqlitestore.WithLockTimeout(cfg.LockTimeout()))
		if err != nil {
			return nil, fmt.Errorf("sqlite %s: %w", cfg.SQLitePath, err)
		}
		logger.Info("repository: sqlite", zap.String("path", cfg.SQLitePath))
		return lite, nil
	}
	logger.Info("repository: in-memory")
	return memory.NewSeeded(memory.WithLockTimeout(cfg.LockTimeout())), nil
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if strings.TrimSpace(cfg.AdminUsername) == "" {
		return fmt.Errorf("ADMIN_USERNAME must not be empty")
	}
	if len(cfg.AdminPassword) < 10 {
		return fmt.Errorf("ADMIN_PASSWORD must be set and at least 10 characters")
	}
	if err := validatePasswordStrength(cfg.AdminUsername, cfg.AdminPassword); err != nil {
		return fmt.Errorf("ADMIN_PASSWORD is too weak: %w", err)
	}
	return nil
}

// validatePasswordStrength rejects passwords that repeat one character,
// contain the username, or appear on a short list of common choices.
func validatePasswordStrength(username, password string) error {
	lower := strings.ToLower(password)
	known := map[string]bool{
		"password123": true, "admin12345": true, "1234567890": true,
		"qwertyuiop": true, "changeme123": true, "letmein1234": true,
	}
	if known[lower] {
		return fmt.Errorf("common password not allowed")
	}
	if u := strings.ToLower(strings.TrimSpace(username)); u != "" && strings.Contains(lower, u) {
		return fmt.Errorf("password must not contain the username")
	}

	allSame := true
	for i := 1; i < len(password); i++ {
		if password[i] != password[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("single-character password not allowed")
	}
	return nil
}
