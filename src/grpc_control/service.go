package grpc_control

import (
	"fmt"
	"net"

	"market-relay/src/logger"
	"market-relay/src/models"
	"market-relay/src/store"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health-checked service orchestrators should probe.
const ServiceName = "market-data"

// -----------------------------------------------------------------------------

// HealthService exposes the standard gRPC health protocol. ServiceName is
// SERVING while the store holds bars and NOT_SERVING otherwise; the empty
// service name reports process liveness.
type HealthService struct {
	Config *models.MConfig
	Logger *logger.Logger

	health     *health.Server
	grpcServer *grpc.Server
}

// -----------------------------------------------------------------------------

func NewHealthService(cfg *models.MConfig, log *logger.Logger) *HealthService {
	h := health.NewServer()
	h.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	s := grpc.NewServer()
	healthpb.RegisterHealthServer(s, h)

	return &HealthService{
		Config:     cfg,
		Logger:     log,
		health:     h,
		grpcServer: s,
	}
}

// -----------------------------------------------------------------------------

// OnReload follows store reloads; register it with MarketDataStore.Subscribe.
func (s *HealthService) OnReload(e store.Event) {
	status := healthpb.HealthCheckResponse_SERVING
	if e.Err != nil || e.Bars == 0 {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus(ServiceName, status)
	s.Logger.Debug("%s health is %s (%d bars, %s)", ServiceName, status, e.Bars, e.Freshness)
}

// -----------------------------------------------------------------------------

func (s *HealthService) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.GrpcHost, s.Config.GrpcPort)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen for gRPC: %w", err)
	}
	s.Logger.Info("Starting gRPC health service on %s", addr)
	return s.Serve(lis)
}

// Serve blocks until Stop is called.
func (s *HealthService) Serve(lis net.Listener) error {
	return s.grpcServer.Serve(lis)
}

func (s *HealthService) Stop() {
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}
