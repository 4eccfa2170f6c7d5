package server

import (
	"context"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// TrackerServiceName is the health service name reported for the tracker.
const TrackerServiceName = "tracker"

// HealthService serves the standard gRPC health protocol so orchestrators
// can check on the tracker.
type HealthService struct {
	addr   string
	srv    *grpc.Server
	health *health.Server
	logger *zap.Logger

	mu       sync.Mutex
	listener net.Listener
}

// NewHealthService creates a gRPC server exposing grpc.health.v1 on addr.
//
// Postcondition: The overall and TrackerServiceName statuses are SERVING.
func NewHealthService(addr string, logger *zap.Logger) *HealthService {
	h := health.NewServer()
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, h)
	h.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	h.SetServingStatus(TrackerServiceName, healthpb.HealthCheckResponse_SERVING)
	return &HealthService{
		addr:   addr,
		srv:    srv,
		health: h,
		logger: logger.With(zap.String("component", "grpc")),
	}
}

// SetServing flips the TrackerServiceName status.
func (s *HealthService) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(TrackerServiceName, status)
}

// Watch runs check every interval until ctx is done, reporting the result
// through SetServing.
func (s *HealthService) Watch(ctx context.Context, interval time.Duration, check func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	serving := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		err := check(ctx)
		if now := err == nil; now != serving {
			serving = now
			s.SetServing(serving)
			s.logger.Warn("health changed", zap.Bool("serving", serving), zap.Error(err))
		}
	}
}

// Start listens and serves until Stop is called.
func (s *HealthService) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.logger.Info("grpc health listening", zap.String("addr", ln.Addr().String()))
	return s.srv.Serve(ln)
}

// Addr returns the bound address once Start has begun listening, or "".
func (s *HealthService) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop marks every service NOT_SERVING and drains the server.
func (s *HealthService) Stop() {
	s.health.Shutdown()
	s.srv.GracefulStop()
}
