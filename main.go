package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/batik-classifier/internal/auth"
	"github.com/example/batik-classifier/internal/capture"
	"github.com/example/batik-classifier/internal/catalog"
	"github.com/example/batik-classifier/internal/config"
	"github.com/example/batik-classifier/internal/grpcserver"
	"github.com/example/batik-classifier/internal/handlers"
	"github.com/example/batik-classifier/internal/inference"
	"github.com/example/batik-classifier/internal/logging"
	"github.com/example/batik-classifier/internal/repository"
	"github.com/example/batik-classifier/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	db := initDatabase(ctx, cfg, logger)
	if err := repository.AutoMigrate(ctx, db); err != nil {
		logger.Fatal("auto migrate failed", zap.Error(err))
	}
	predictions := repository.NewPredictionRepository(db, logger)
	captureRecords := repository.NewCaptureRepository(db, logger)

	session, err := inference.NewSession(inference.Options{
		ModelPath:   cfg.ModelPath,
		LibraryPath: cfg.ORTLibraryPath,
		InputName:   cfg.ModelInputName,
		OutputName:  cfg.ModelOutputName,
		ImageSize:   cfg.ImageSize,
		NumClasses:  len(catalog.BatikClasses()),
	}, logger)
	if err != nil {
		logger.Fatal("failed to load model", zap.Error(err))
	}
	defer session.Close()

	var opts []usecase.ClassificationOption
	if cfg.RedisAddr != "" {
		redisCtx, redisCancel := context.WithTimeout(ctx, 5*time.Second)
		redisClient := initRedis(redisCtx, cfg.RedisAddr, logger)
		redisCancel()
		defer redisClient.Close()
		opts = append(opts, usecase.WithCache(usecase.NewRedisCache(redisClient), cfg.CacheTTL))
	} else {
		logger.Info("prediction cache disabled")
	}

	store, err := capture.NewStore(cfg.UploadDir)
	if err != nil {
		logger.Fatal("failed to prepare upload directory", zap.Error(err))
	}

	classifier := usecase.NewClassificationUseCase(session, predictions, cfg.ImageSize, logger, opts...)
	captures := usecase.NewCaptureUseCase(store, captureRecords, logger)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), logging.RequestLogger(logger))

	authMiddleware := auth.JWTMiddleware(cfg.JWTSecret, cfg.JWTAudience, logger)
	handlers.RegisterRoutes(r, classifier, captures, authMiddleware, cfg.MaxUploadBytes)

	if cfg.GRPCAddr != "" {
		healthServer := startHealthServer(cfg.GRPCAddr, logger)
		healthServer.MarkServing()
		defer healthServer.Stop()
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("batik classifier listening", zap.String("addr", cfg.HTTPAddr))
	if err := serveHTTPServer(server, cfg.ShutdownTimeout, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *zap.Logger) *gorm.DB {
	db, err := repository.Open(ctx, cfg.DBDriver, cfg.DatabaseDSN, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	return db
}

func initRedis(ctx context.Context, addr string, logger *zap.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal("redis connection failed", zap.Error(err), zap.String("addr", addr))
	}
	return client
}

func startHealthServer(addr string, logger *zap.Logger) *grpcserver.HealthServer {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Fatal("failed to listen for gRPC", zap.Error(err), zap.String("addr", addr))
	}
	hs := grpcserver.NewHealthServer(logger)
	go func() {
		if err := hs.Serve(lis); err != nil {
			logger.Error("gRPC health server stopped", zap.Error(err))
		}
	}()
	return hs
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	sigCh := signalCh
	if sigCh == nil {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(ch)
		sigCh = ch
	}

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
