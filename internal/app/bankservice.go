package app

import (
	"context"
	"errors"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"gopherbazaar.com/internal/bank/rpc"
	"gopherbazaar.com/pkg/bootstrap"
	"gopherbazaar.com/pkg/interceptor"
	"gopherbazaar.com/pkg/logger"
	"gopherbazaar.com/pkg/metrics"
	"gopherbazaar.com/pkg/ratelimit"
	"gopherbazaar.com/pkg/trace"
)

// RunBankService serves a local ledger backend over gRPC until ctx ends.
func RunBankService(ctx context.Context, cfg BankServiceConfig) error {
	if cfg.Bank.Backend == BackendGRPC {
		return errors.New("bank service cannot use the grpc backend")
	}
	ledger, closeLedger, err := OpenLedger(ctx, cfg.Bank)
	if err != nil {
		return err
	}
	defer func() { _ = closeLedger() }()

	metrics.MustRegister()
	store := ratelimit.NewStore(rate.Limit(cfg.RateLimit.RPS), cfg.RateLimit.Burst, 10*time.Minute)
	store.StartJanitor(ctx, time.Minute)

	return bootstrap.Run(ctx, bootstrap.Options{
		ServiceName: cfg.Name,
		GRPCAddr:    cfg.GRPC.Addr,
		Register: func(s *grpc.Server) error {
			rpc.NewServer(ledger).Register(s)
			return nil
		},
		Sentinel: &cfg.Sentinel,
		InitTracer: func() (func(context.Context) error, error) {
			return trace.InitTrace(cfg.Name, cfg.Trace)
		},
		UnaryInterceptors: []grpc.UnaryServerInterceptor{
			interceptor.RecoverUnary(),
			interceptor.RequestIDServerUnary(),
			logging.UnaryServerInterceptor(interceptor.ZapLogger(logger.Log)),
			// everything below answers with xerr codes
			interceptor.ErrorUnary(),
			interceptor.SentinelUnaryServerInterceptor(),
			interceptor.RateLimitByMethodUnary(store, cfg.Name),
		},
		StatsHandler: otelgrpc.NewServerHandler(),
		MetricsAddr:  cfg.MetricsAddr,
		PprofAddr:    cfg.PprofAddr,
	})
}
