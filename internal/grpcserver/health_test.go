package grpcserver

import (
	"context"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func startHealthServer(t *testing.T) (*HealthServer, healthpb.HealthClient) {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	hs := NewHealthServer(zap.NewNop())
	done := make(chan error, 1)
	go func() { done <- hs.Serve(lis) }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, err := grpc.DialContext(ctx, "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("failed to dial bufconn: %v", err)
	}

	t.Cleanup(func() {
		conn.Close()
		hs.Stop()
		if err := <-done; err != nil {
			t.Errorf("serve returned error: %v", err)
		}
	})
	return hs, healthpb.NewHealthClient(conn)
}

func checkStatus(t *testing.T, client healthpb.HealthClient) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: ClassifierService})
	if err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	return resp.GetStatus()
}

func TestHealthReportsNotServingUntilModelLoaded(t *testing.T) {
	hs, client := startHealthServer(t)

	if got := checkStatus(t, client); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected NOT_SERVING before load, got %v", got)
	}

	hs.MarkServing()

	if got := checkStatus(t, client); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING after load, got %v", got)
	}
}
