// Package grpc serves the standard gRPC health service for the payment API.
// Health reflects the liveness of the server's backing stores.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/paymentapi/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const defaultProbeInterval = 15 * time.Second

// Probe checks one dependency. A nil error means it is usable.
type Probe func(ctx context.Context) error

type GRPCServer struct {
	address  string
	logger   logging.Logger
	health   *health.Server
	probes   map[string]Probe
	interval time.Duration
}

// Option customizes a GRPCServer.
type Option func(*GRPCServer)

// WithProbe registers a dependency check reported under service name.
func WithProbe(service string, p Probe) Option {
	return func(s *GRPCServer) { s.probes[service] = p }
}

// WithProbeInterval sets how often probes run.
func WithProbeInterval(d time.Duration) Option {
	return func(s *GRPCServer) { s.interval = d }
}

func NewGRPCServer(a string, l logging.Logger, opts ...Option) *GRPCServer {
	s := &GRPCServer{
		address:  a,
		logger:   l.With("module", "grpc_server"),
		health:   health.NewServer(),
		probes:   map[string]Probe{},
		interval: defaultProbeInterval,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve runs the server on an existing listener until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, listen net.Listener) error {

	// creates gRPC-server
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor))

	// registers service
	healthpb.RegisterHealthServer(srv, s.health)

	s.checkProbes(ctx)
	go s.monitor(ctx)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gPRC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
