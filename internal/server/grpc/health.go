package grpc

import (
	"context"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const probeTimeout = 3 * time.Second

func (s *GRPCServer) monitor(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkProbes(ctx)
		}
	}
}

// checkProbes runs every probe once. The overall ("") status is SERVING only
// while all probes pass.
func (s *GRPCServer) checkProbes(ctx context.Context) {
	overall := healthpb.HealthCheckResponse_SERVING

	for name, probe := range s.probes {
		pctx, cancel := context.WithTimeout(ctx, probeTimeout)
		err := probe(pctx)
		cancel()

		status := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			overall = healthpb.HealthCheckResponse_NOT_SERVING
			s.logger.Warn(ctx, "health probe failed", "service", name, "error", err)
		}
		s.health.SetServingStatus(name, status)
	}

	s.health.SetServingStatus("", overall)
}
