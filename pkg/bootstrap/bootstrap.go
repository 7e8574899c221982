// Package bootstrap runs a gRPC service with the shared server wiring:
// keepalive, grpc-prometheus, sentinel, pprof and a metrics endpoint.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"runtime"
	"time"

	grpc_prom "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/stats"
	"gopherbazaar.com/pkg/logger"
)

type Options struct {
	ServiceName string
	GRPCAddr    string
	// Listener overrides GRPCAddr; tests pass a bufconn listener.
	Listener net.Listener

	// Register attaches the service implementations. Required.
	Register func(*grpc.Server) error

	Sentinel *SentinelCfg
	// InitTracer returns a shutdown func; nil skips tracing.
	InitTracer func() (func(context.Context) error, error)

	UnaryInterceptors  []grpc.UnaryServerInterceptor
	StreamInterceptors []grpc.StreamServerInterceptor
	ServerOptions      []grpc.ServerOption
	StatsHandler       stats.Handler

	MetricsAddr string
	PprofAddr   string
}

// Run serves until ctx ends or the listener fails, then stops gracefully.
func Run(ctx context.Context, opt Options) error {
	if opt.ServiceName == "" || opt.Register == nil || (opt.GRPCAddr == "" && opt.Listener == nil) {
		return errors.New("bootstrap: missing required options")
	}

	if err := InitSentinel(opt.Sentinel); err != nil {
		return err
	}

	var shutdownTracer func(context.Context) error
	if opt.InitTracer != nil {
		var err error
		if shutdownTracer, err = opt.InitTracer(); err != nil {
			return fmt.Errorf("init tracer: %w", err)
		}
	}

	gs := NewGRPCServer(opt)
	if err := opt.Register(gs); err != nil {
		return fmt.Errorf("register grpc: %w", err)
	}
	grpc_prom.Register(gs)

	var aux []*http.Server
	if opt.PprofAddr != "" {
		aux = append(aux, StartPprof(ctx, opt.PprofAddr))
	}
	if opt.MetricsAddr != "" {
		aux = append(aux, startMetrics(ctx, opt.MetricsAddr))
	}

	lis := opt.Listener
	if lis == nil {
		var err error
		if lis, err = net.Listen("tcp", opt.GRPCAddr); err != nil {
			return fmt.Errorf("listen %s: %w", opt.GRPCAddr, err)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "gRPC listening", zap.String("service", opt.ServiceName), zap.String("addr", lis.Addr().String()))
		errCh <- gs.Serve(lis)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info(context.Background(), "shutdown signal received", zap.String("service", opt.ServiceName))
	case serveErr = <-errCh:
		logger.Error(context.Background(), "grpc server error", zap.Error(serveErr))
	}

	gs.GracefulStop()

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, s := range aux {
		_ = s.Shutdown(stopCtx)
	}
	if shutdownTracer != nil {
		_ = shutdownTracer(stopCtx)
	}
	logger.Info(stopCtx, "service stopped", zap.String("service", opt.ServiceName))
	return serveErr
}

// NewGRPCServer builds a server with keepalive and the prometheus
// interceptors placed first in the chain.
func NewGRPCServer(opt Options) *grpc.Server {
	kaep := keepalive.EnforcementPolicy{
		MinTime:             10 * time.Second,
		PermitWithoutStream: true,
	}
	kasp := keepalive.ServerParameters{
		Time:    30 * time.Second,
		Timeout: 10 * time.Second,
	}

	grpc_prom.EnableHandlingTimeHistogram()
	unary := append([]grpc.UnaryServerInterceptor{grpc_prom.UnaryServerInterceptor}, opt.UnaryInterceptors...)
	stream := append([]grpc.StreamServerInterceptor{grpc_prom.StreamServerInterceptor}, opt.StreamInterceptors...)

	opts := []grpc.ServerOption{
		grpc.KeepaliveEnforcementPolicy(kaep),
		grpc.KeepaliveParams(kasp),
		grpc.ChainUnaryInterceptor(unary...),
		grpc.ChainStreamInterceptor(stream...),
	}
	if opt.StatsHandler != nil {
		opts = append(opts, grpc.StatsHandler(opt.StatsHandler))
	}
	opts = append(opts, opt.ServerOptions...)
	return grpc.NewServer(opts...)
}

// StartPprof serves net/http/pprof on addr until the returned server is shut down.
func StartPprof(ctx context.Context, addr string) *http.Server {
	runtime.SetMutexProfileFraction(10)
	runtime.SetBlockProfileRate(10000)

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return serveAux(ctx, "pprof", addr, mux)
}

func startMetrics(ctx context.Context, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return serveAux(ctx, "metrics", addr, mux)
}

func serveAux(ctx context.Context, name, addr string, h http.Handler) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 3 * time.Second,
	}
	go func() {
		logger.Info(ctx, name+" listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, name+" server error", zap.Error(err))
		}
	}()
	return srv
}
