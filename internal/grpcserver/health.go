// Package grpcserver exposes the standard gRPC health service so
// orchestrators can probe whether the model is loaded.
package grpcserver

import (
	"errors"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/example/batik-classifier/internal/logging"
)

// ClassifierService is the service name reported by the health server.
const ClassifierService = "batik.Classifier"

// HealthServer wraps a gRPC server that only carries the health service.
type HealthServer struct {
	server *grpc.Server
	health *health.Server
	logger *zap.Logger
}

// NewHealthServer builds the server with every service NOT_SERVING.
func NewHealthServer(logger *zap.Logger) *HealthServer {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ClassifierService, healthpb.HealthCheckResponse_NOT_SERVING)

	server := grpc.NewServer()
	healthpb.RegisterHealthServer(server, hs)

	return &HealthServer{server: server, health: hs, logger: logger.Named("grpc")}
}

// MarkServing flips the classifier to SERVING once the model is ready.
func (h *HealthServer) MarkServing() {
	h.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	h.health.SetServingStatus(ClassifierService, healthpb.HealthCheckResponse_SERVING)
}

// Serve blocks serving on lis until Stop is called.
func (h *HealthServer) Serve(lis net.Listener) error {
	h.logger.Info("gRPC health server listening", zap.String("addr", lis.Addr().String()))
	if err := h.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return logging.NewOperationError("grpcserver.serve", "", err)
	}
	return nil
}

// Stop reports NOT_SERVING to watchers and drains the server.
func (h *HealthServer) Stop() {
	h.health.Shutdown()
	h.server.GracefulStop()
}
