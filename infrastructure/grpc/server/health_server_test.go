package server

import (
	"context"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestHealthServer_ReportsServingStatus(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	req.NoError(err)

	h := NewHealthServer(log)
	go func() { _ = h.Serve(listener) }()
	defer h.Stop(context.Background())

	conn, err := grpc.NewClient(listener.Addr().String(),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	req.NoError(err)
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Given a relay not started yet
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: RelayServiceName})
	req.NoError(err)
	req.Equal(healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{})
	req.NoError(err)
	req.Equal(healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())

	// When the relay is ready
	h.SetServing(true)

	// Then probes see it serving
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{Service: RelayServiceName})
	req.NoError(err)
	req.Equal(healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{})
	req.NoError(err)
	req.Equal(healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}
