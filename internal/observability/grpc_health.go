package observability

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthReporter publishes the readiness checks through the standard gRPC
// health service, one service name per dependency plus "" for the whole
// process
type HealthReporter struct {
	server   *health.Server
	checks   map[string]HealthCheckFunc
	interval time.Duration
	timeout  time.Duration
}

// NewHealthReporter creates a reporter refreshing every interval
func NewHealthReporter(checks map[string]HealthCheckFunc, interval time.Duration) *HealthReporter {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &HealthReporter{
		server:   health.NewServer(),
		checks:   checks,
		interval: interval,
		timeout:  5 * time.Second,
	}
}

// Register attaches the health service to a gRPC server
func (r *HealthReporter) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, r.server)
}

// Server exposes the underlying health server
func (r *HealthReporter) Server() *health.Server {
	return r.server
}

// Refresh runs every check once and updates the serving statuses
func (r *HealthReporter) Refresh(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	dependencies, allHealthy := RunChecks(ctx, r.checks)
	for name, dep := range dependencies {
		r.server.SetServingStatus(name, servingStatus(dep.Status == "healthy"))
	}
	r.server.SetServingStatus("", servingStatus(allHealthy))
	return allHealthy
}

// Run refreshes until ctx is done, then marks everything as not serving
func (r *HealthReporter) Run(ctx context.Context) {
	logger := Component("grpc_health")
	r.Refresh(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.server.Shutdown()
			return
		case <-ticker.C:
			if !r.Refresh(ctx) {
				logger.Warn().Msg("One or more dependencies are not ready")
			}
		}
	}
}

func servingStatus(ok bool) healthpb.HealthCheckResponse_ServingStatus {
	if ok {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}
