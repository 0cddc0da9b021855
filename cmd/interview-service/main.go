package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"assesy/internal/common/cache"
	"assesy/internal/common/db"
	"assesy/internal/common/mq"
	"assesy/internal/common/storage"
	"assesy/internal/interview/artifact"
	"assesy/internal/interview/controller"
	"assesy/internal/interview/lock"
	"assesy/internal/interview/repository"
	"assesy/internal/interview/runtime"
	"assesy/internal/interview/service"
	"assesy/internal/interview/workspace"
	"assesy/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/interview_service.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := run(appCfg); err != nil {
		logger.Error(context.Background(), "interview service stopped", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(appCfg *AppConfig) error {
	ctx := context.Background()

	database, err := db.Open(ctx, appCfg.Database)
	if err != nil {
		return fmt.Errorf("init database failed: %w", err)
	}
	defer func() {
		_ = database.Close()
	}()
	if err := repository.EnsureSchema(ctx, database); err != nil {
		return fmt.Errorf("ensure schema failed: %w", err)
	}

	for _, dir := range []string{appCfg.Workspace.AssessmentRoot, appCfg.Workspace.StagingRoot} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s failed: %w", dir, err)
		}
	}

	docker, err := runtime.NewDockerRuntime(appCfg.Docker)
	if err != nil {
		return err
	}
	defer func() {
		_ = docker.Close()
	}()
	if err := docker.Ping(ctx); err != nil {
		return err
	}
	provisioner, err := runtime.NewProvisioner(docker, appCfg.Container)
	if err != nil {
		return err
	}
	stager, err := workspace.NewStager(workspace.Config{
		AssessmentRoot: appCfg.Workspace.AssessmentRoot,
		UID:            appCfg.Workspace.UID,
		GID:            appCfg.Workspace.GID,
		Limits:         archiveLimits(appCfg.Workspace),
	})
	if err != nil {
		return err
	}

	locker, closeLocker, err := buildLocker(appCfg.Lock)
	if err != nil {
		return err
	}
	defer closeLocker()

	artifacts, err := buildArtifactStore(ctx, appCfg.Artifacts)
	if err != nil {
		return err
	}

	var events *service.StatusEventPublisher
	if appCfg.Events.Enabled {
		producer, err := mq.NewKafkaProducer(appCfg.Events.Kafka)
		if err != nil {
			return fmt.Errorf("init kafka failed: %w", err)
		}
		defer func() {
			_ = producer.Close()
		}()
		events = service.NewStatusEventPublisher(producer, appCfg.Events.Topic)
	}

	auth, err := service.NewAuthService(service.AuthServiceConfig{
		JWTSecret:    []byte(appCfg.Auth.JWTSecret),
		JWTIssuer:    appCfg.Auth.JWTIssuer,
		TokenTTL:     appCfg.Auth.TokenTTL,
		Username:     appCfg.Auth.Username,
		PasswordHash: appCfg.Auth.PasswordHash,
		Password:     appCfg.Auth.Password,
	})
	if err != nil {
		return fmt.Errorf("init auth failed: %w", err)
	}

	tasks := service.NewTaskGroup()
	sessions := repository.NewSessionRepository(database)
	assessments := repository.NewAssessmentRepository(database)
	sessionService := service.NewSessionService(sessions, assessments, stager, provisioner, locker, artifacts, tasks, events,
		service.SessionServiceConfig{
			StagingRoot:   appCfg.Workspace.StagingRoot,
			PublicBaseURL: appCfg.Server.PublicBaseURL,
			TeardownDelay: appCfg.Workspace.TeardownDelay,
		})
	reviewService := service.NewReviewService(artifacts, stager, provisioner, locker, tasks, service.ReviewServiceConfig{
		StagingRoot: appCfg.Workspace.StagingRoot,
		Timeout:     appCfg.Workspace.ReviewTimeout,
	})

	report, err := sessionService.Reconcile(ctx)
	if err != nil {
		logger.Error(ctx, "startup reconciliation failed", zap.Error(err))
	} else {
		logger.Info(ctx, "startup reconciliation finished",
			zap.Int("checked", report.Checked),
			zap.Int("activated", report.Activated),
			zap.Int("failed", report.Failed),
			zap.Int("skipped", report.Skipped),
		)
	}

	gin.SetMode(gin.ReleaseMode)
	router := controller.NewRouter(controller.Services{
		Sessions:    sessionService,
		Submissions: service.NewSubmissionService(artifacts, archiveLimits(appCfg.Workspace)),
		Reviews:     reviewService,
		Assessments: service.NewAssessmentService(database, assessments, stager),
		Auth:        auth,
	}, controller.RouterConfig{
		CORS:           appCfg.CORS,
		MaxUploadBytes: appCfg.Server.MaxUploadBytes,
	})
	httpServer := &http.Server{
		Addr:         appCfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  appCfg.Server.ReadTimeout,
		WriteTimeout: appCfg.Server.WriteTimeout,
		IdleTimeout:  appCfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "interview http server started", zap.String("addr", appCfg.Server.Addr))
		errCh <- httpServer.ListenAndServe()
	}()

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var serveErr error
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	case <-shutdownCtx.Done():
		logger.Info(ctx, "shutdown signal received")
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), appCfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(drainCtx); err != nil {
		logger.Error(ctx, "http server shutdown failed", zap.Error(err))
	}
	// Pending teardowns run now; review expiries are dropped.
	if err := tasks.Close(drainCtx); err != nil {
		logger.Warn(ctx, "background tasks did not drain", zap.Error(err))
	}
	return serveErr
}

func archiveLimits(cfg WorkspaceConfig) workspace.Limits {
	return workspace.Limits{MaxEntryBytes: cfg.MaxEntryBytes, MaxTotalBytes: cfg.MaxExtractBytes}
}

func buildLocker(cfg LockConfig) (lock.Locker, func(), error) {
	if cfg.Backend != lockBackendRedis {
		return lock.NewRegistry(), func() {}, nil
	}
	redisCache, err := cache.NewRedisCacheWithConfig(&cfg.Redis)
	if err != nil {
		return nil, nil, fmt.Errorf("init redis failed: %w", err)
	}
	lease, err := lock.NewRedisLease(redisCache, cfg.Lease)
	if err != nil {
		_ = redisCache.Close()
		return nil, nil, err
	}
	return lease, func() { _ = redisCache.Close() }, nil
}

func buildArtifactStore(ctx context.Context, cfg ArtifactConfig) (artifact.Store, error) {
	if cfg.Backend != storeBackendObject {
		store, err := artifact.NewLocalStore(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	objStorage, err := storage.NewMinIOStorage(cfg.MinIO)
	if err != nil {
		return nil, fmt.Errorf("init minio failed: %w", err)
	}
	store, err := artifact.NewObjectStore(ctx, objStorage, cfg.MinIO.Bucket)
	if err != nil {
		return nil, err
	}
	return store, nil
}
