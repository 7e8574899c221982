package rpc

import (
	"context"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"gopherbazaar.com/internal/bank"
	"gopherbazaar.com/pkg/interceptor"
	"gopherbazaar.com/pkg/logger"
	"gopherbazaar.com/pkg/ratelimit"
)

type DialConfig struct {
	Target  string         `mapstructure:"target"`
	Timeout time.Duration  `mapstructure:"timeout"`
	Breaker ratelimit.Rule `mapstructure:"breaker"`
}

// Dial connects to a bank service with the shared client chain: logging,
// request id propagation, default deadline, per-method breaker and coded
// error reconstruction.
func Dial(cfg DialConfig, extra ...grpc.DialOption) (*grpc.ClientConn, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	mgr := ratelimit.NewManager(cfg.Breaker, nil, interceptor.BreakerSuccess)
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
		grpc.WithChainUnaryInterceptor(
			logging.UnaryClientInterceptor(interceptor.ZapLogger(logger.Log), logging.WithLogOnEvents(logging.FinishCall)),
			interceptor.RequestIDUnary(),
			interceptor.TimeOutInterceptor(cfg.Timeout),
			interceptor.CircuitBreakUnaryClient(mgr, ServiceName),
			interceptor.ErrorUnaryClient(),
		),
	}
	return grpc.NewClient(cfg.Target, append(opts, extra...)...)
}

// Client is a bank.Service backed by a remote bank service.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	return c.cc.Invoke(ctx, method, in, out, grpc.CallContentSubtype(CodecName))
}

func (c *Client) NewAccount(ctx context.Context, id string) (bank.Account, error) {
	var out AccountRes
	if err := c.invoke(ctx, MethodNewAccount, &AccountReq{ID: id}, &out); err != nil {
		return nil, err
	}
	return &remoteAccount{c: c, id: out.ID}, nil
}

func (c *Client) Lookup(ctx context.Context, id string) (bank.Account, error) {
	var out AccountRes
	if err := c.invoke(ctx, MethodGetAccount, &AccountReq{ID: id}, &out); err != nil {
		return nil, err
	}
	return &remoteAccount{c: c, id: out.ID}, nil
}

func (c *Client) DeleteAccount(ctx context.Context, id string) error {
	return c.invoke(ctx, MethodDeleteAccount, &AccountReq{ID: id}, &Empty{})
}

func (c *Client) ListAccounts(ctx context.Context) ([]string, error) {
	var out ListRes
	if err := c.invoke(ctx, MethodListAccounts, &ListReq{}, &out); err != nil {
		return nil, err
	}
	return out.IDs, nil
}

type remoteAccount struct {
	c  *Client
	id string
}

func (a *remoteAccount) ID() string { return a.id }

func (a *remoteAccount) Withdraw(ctx context.Context, amount decimal.Decimal) error {
	return a.c.invoke(ctx, MethodWithdraw, &AmountReq{ID: a.id, Amount: amount}, &Empty{})
}

func (a *remoteAccount) Deposit(ctx context.Context, amount decimal.Decimal) error {
	return a.c.invoke(ctx, MethodDeposit, &AmountReq{ID: a.id, Amount: amount}, &Empty{})
}

func (a *remoteAccount) Balance(ctx context.Context) (decimal.Decimal, error) {
	var out BalanceRes
	if err := a.c.invoke(ctx, MethodBalance, &AccountReq{ID: a.id}, &out); err != nil {
		return decimal.Zero, err
	}
	return out.Balance, nil
}
