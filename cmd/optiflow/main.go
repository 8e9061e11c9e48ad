package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/optiflow-io/optiflow/internal/app"
	"github.com/optiflow-io/optiflow/internal/auth"
	"github.com/optiflow-io/optiflow/internal/cases"
	"github.com/optiflow-io/optiflow/internal/executions"
	"github.com/optiflow-io/optiflow/internal/instances"
	"github.com/optiflow-io/optiflow/internal/jsonpatch"
	"github.com/optiflow-io/optiflow/internal/observability"
	"github.com/optiflow-io/optiflow/internal/rbac"
	"github.com/optiflow-io/optiflow/internal/resource"
	"github.com/optiflow-io/optiflow/internal/shared"
	"github.com/optiflow-io/optiflow/internal/users"
	"github.com/optiflow-io/optiflow/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	if err := rbac.Seed(ctx, dbpool); err != nil {
		logger.Error("seed access catalogs", slog.Any("error", err))
		os.Exit(1)
	}

	rbacRepo := rbac.NewRepository(dbpool)
	roleCache := rbac.NewRoleCache(redisClient, cfg.RoleCacheTTL)
	rbacService := rbac.NewService(rbacRepo, roleCache)
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}

	signer := auth.NewTokenSigner(cfg.TokenSecret, cfg.TokenTTL)
	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo, rbacService, signer)
	authHandler := auth.NewHandler(logger, authService)
	authenticator := &auth.Authenticator{Service: authService, Logger: logger}

	auditLogger := shared.NewAuditLogger(dbpool)

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo, rbacService, auditLogger, logger, cfg.AuthMode == "ldap")
	usersHandler := users.NewHandler(logger, usersService, rbacMiddleware)

	instanceStore := instances.NewStore(dbpool)
	executionStore := executions.NewStore(dbpool)
	caseStore := cases.NewStore(dbpool)

	instanceService := instances.NewService(instanceStore, logger,
		resource.Dependent{Relation: "executions", Cascader: executionStore})
	executionService := executions.NewService(executionStore, instanceStore, logger)
	caseService := cases.NewService(caseStore, instanceService, executionService, jsonpatch.Engine{}, logger)

	instancesHandler := instances.NewHandler(logger, instanceService, rbacMiddleware)
	executionsHandler := executions.NewHandler(logger, executionService, rbacMiddleware)
	casesHandler := cases.NewHandler(logger, caseService, rbacMiddleware)
	permissionsHandler := rbac.NewPermissionsHandler(logger, rbacService, rbacMiddleware)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger, rbacMiddleware)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Authenticator:      authenticator,
		AuthHandler:        authHandler,
		UsersHandler:       usersHandler,
		InstancesHandler:   instancesHandler,
		ExecutionsHandler:  executionsHandler,
		CasesHandler:       casesHandler,
		PermissionsHandler: permissionsHandler,
		JobsHandler:        jobsHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
