package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cmlabs-hris/hris-payroll-go/internal/config"
	appHTTP "github.com/cmlabs-hris/hris-payroll-go/internal/handler/http"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/cron"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/database"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/metrics"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/redis"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/runlock"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/sse"
	"github.com/cmlabs-hris/hris-payroll-go/internal/repository/postgresql"
	payrollService "github.com/cmlabs-hris/hris-payroll-go/internal/service/payroll"
	taxTableService "github.com/cmlabs-hris/hris-payroll-go/internal/service/taxtable"
	"github.com/cmlabs-hris/hris-payroll-go/migrations"
	"github.com/go-chi/httplog/v3"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg.App)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgreSQLDB(ctx, cfg.DatabaseURL(), cfg.Database.MaxConns)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db, migrations.FS, logger); err != nil {
			return err
		}
	}

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}

	var locker runlock.Locker
	healthChecks := map[string]appHTTP.HealthCheck{"postgres": db.Health}
	if redisClient != nil {
		defer redisClient.Close()
		locker = runlock.NewRedisLocker(redisClient.Client, cfg.Payroll.RunLockTTL, runlock.WithLogger(logger))
		healthChecks["redis"] = redisClient.Health
		logger.Info("payroll run locks are distributed through redis")
	} else {
		locker = runlock.NewKeyedLocker()
		logger.Info("payroll run locks are in-process; run a single instance")
	}

	payrollMetrics := metrics.NewPayroll()

	// Repositories
	runRepo := postgresql.NewPayrollRunRepository(db)
	directory := postgresql.NewCompensationDirectory(db)
	remittanceRepo := postgresql.NewRemittanceRepository(db)
	taxTableRepo := postgresql.NewTaxTableRepository(db)

	// Tax tables
	provider := taxTableService.NewProvider(taxTableRepo, payrollMetrics, logger)
	seeds, err := taxTableService.LoadSeedTables(cfg.Payroll.TaxTablesPath, cfg.Payroll.MinimumReliefFloor)
	if err != nil {
		return err
	}
	if err := provider.Seed(ctx, seeds); err != nil {
		return fmt.Errorf("seed tax tables: %w", err)
	}

	scheduler := cron.NewScheduler(logger)
	cron.NewTaxTableJobs(provider, cfg.Payroll.TaxTableReloadInterval).RegisterJobs(scheduler)
	scheduler.Start()
	defer scheduler.Stop()

	// Services
	hub := sse.NewHub()
	JWTService := jwt.NewJWTService(cfg.JWT.Secret)
	payrollSvc := payrollService.NewPayrollService(
		runRepo,
		directory,
		remittanceRepo,
		provider,
		locker,
		payrollService.WithParallelism(cfg.Payroll.BatchParallelism),
		payrollService.WithEventHub(hub),
		payrollService.WithMetrics(payrollMetrics),
		payrollService.WithLogger(logger),
	)
	taxTableSvc := taxTableService.NewTaxTableService(provider)

	// Handlers
	payrollHandler := appHTTP.NewPayrollHandler(payrollSvc)
	taxTableHandler := appHTTP.NewTaxTableHandler(taxTableSvc)
	eventHandler := appHTTP.NewEventHandler(hub, JWTService)
	healthHandler := appHTTP.NewHealthHandler(healthChecks)

	router := appHTTP.NewRouter(
		appHTTP.RouterConfig{Logger: logger, CORSOrigins: cfg.App.CORSOrigins},
		JWTService,
		payrollHandler,
		taxTableHandler,
		eventHandler,
		healthHandler,
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server started", "addr", server.Addr, "env", cfg.App.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newLogger(cfg config.AppConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		level = slog.LevelInfo
	}

	logFormat := httplog.SchemaECS.Concise(cfg.Env != "production")
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "hris-payroll"),
		slog.String("env", cfg.Env),
	)
}
