package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"decompapi/docs"
	"decompapi/internal/config"
	"decompapi/internal/database"
	"decompapi/internal/database/migration"
	"decompapi/internal/decompiler"
	handlers "decompapi/internal/http/handler"
	"decompapi/internal/http/middleware"
	"decompapi/internal/logging"
	"decompapi/internal/otel"
	"decompapi/internal/repository/postgres"
	"decompapi/internal/service"
	"decompapi/internal/storage"
)

// bodySlack leaves room above MAX_FILE_SIZE for base64 expansion; the
// service enforces the real ceiling and answers with the JSON error shape.
const bodySlack = 1 << 20

// @title Bytecode Decompiler API
// @version 1.0
// @BasePath /
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	logger := logging.NewStdout(cfg.Location())
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, logger)
	if err != nil {
		logger.Fatal("tracing init failed", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	metrics, err := service.NewMetrics(reg)
	if err != nil {
		logger.Fatal("failed to register decompile metrics", zap.Error(err))
	}
	httpMetrics, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		logger.Fatal("failed to register http metrics", zap.Error(err))
	}

	invoker := decompiler.New(cfg.Decompiler)
	if err := invoker.Available(); err != nil {
		// Keep serving; /health reports the problem and requests fail with DECOMPILER_UNAVAILABLE.
		logger.Warn("decompiler_unavailable", zap.String("path", cfg.Decompiler.Path), zap.Error(err))
	}

	opts := []service.Option{service.WithMetrics(metrics)}

	var (
		db       *sql.DB
		auditSvc service.AuditService
	)
	if cfg.Database.Enabled() {
		db, err = database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		if err := migration.EnsureMigrated(ctx, db, logger, cfg.Database.Host); err != nil {
			logger.Fatal("failed to migrate database", zap.Error(err))
		}

		repo := postgres.NewInvocationPostgres(db)
		opts = append(opts, service.WithAudit(repo))
		auditSvc = service.NewAuditService(repo)
	}

	decompileSvc := service.NewDecompileService(
		cfg.MaxFileSize,
		storage.NewTempStager(cfg.StagingDir),
		invoker,
		logger,
		opts...,
	)

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(logger),
		BodyLimit:    int(cfg.MaxFileSize) + bodySlack,
	})

	// Register global middleware
	app.Use(recover.New())
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	app.Use(otelfiber.Middleware())
	app.Use(middleware.LoggerWithZap(logger))
	app.Use(httpMetrics.Handler())
	app.Use(cors.New())

	handlers.RegisterRoutes(app, handlers.Dependencies{
		DB:        db,
		Invoker:   invoker,
		Decompile: decompileSvc,
		Audit:     auditSvc,
		Gatherer:  reg,
		Dialects:  cfg.Dialects,
		Limiter:   middleware.RateLimit(cfg.RateLimit),
	})

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	// Static frontend last so API routes win.
	handlers.RegisterStatic(app, cfg.StaticDir)

	go func() {
		<-ctx.Done()
		logger.Info("shutdown_started")
		if err := app.ShutdownWithTimeout(cfg.Decompiler.Timeout + cfg.Decompiler.KillGrace + 5*time.Second); err != nil {
			logger.Error("http shutdown failed", zap.Error(err))
		}
	}()

	addr := ":" + cfg.Port
	logger.Info("server_starting", zap.String("addr", addr), zap.String("decompiler", cfg.Decompiler.Path))

	if err := app.Listen(addr); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracing(flushCtx); err != nil {
		logger.Error("tracing shutdown failed", zap.Error(err))
	}
	logger.Info("shutdown_complete")
}
