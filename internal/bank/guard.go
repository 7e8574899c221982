package bank

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gopherbazaar.com/pkg/metrics"
	"gopherbazaar.com/pkg/ratelimit"
	"gopherbazaar.com/pkg/xerr"
)

type GuardConfig struct {
	// Backend labels the latency metric.
	Backend string         `mapstructure:"backend"`
	Timeout time.Duration  `mapstructure:"timeout"`
	Breaker ratelimit.Rule `mapstructure:"breaker"`
}

// Guarded decorates a Service: every call gets a deadline, a breaker per
// operation and a latency observation. Business answers (not found,
// rejected, exists) never count as breaker failures.
type Guarded struct {
	next    Service
	timeout time.Duration
	backend string
	cbs     *ratelimit.Manager
}

func NewGuarded(next Service, cfg GuardConfig) *Guarded {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.Backend == "" {
		cfg.Backend = "unknown"
	}
	return &Guarded{
		next:    next,
		timeout: cfg.Timeout,
		backend: cfg.Backend,
		cbs:     ratelimit.NewManager(cfg.Breaker, nil, IsAnswer),
	}
}

// IsAnswer reports whether err is a definite reply from the ledger rather
// than a failure to reach it.
func IsAnswer(err error) bool {
	if err == nil {
		return true
	}
	ce, ok := xerr.As(err)
	return ok && ce.Code < xerr.ServerCommonError
}

func (g *Guarded) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	_, err := g.cbs.Get(op).Execute(func() (any, error) {
		return nil, fn(ctx)
	})
	if ratelimit.IsOpen(err) {
		metrics.CBRejectTotal.WithLabelValues("bank", op, "open").Inc()
		err = xerr.Wrap(err, xerr.Unavailable, "ledger unavailable")
	}
	metrics.ObserveLedger(g.backend, op, start, err)
	return err
}

func (g *Guarded) NewAccount(ctx context.Context, id string) (Account, error) {
	var acc Account
	err := g.do(ctx, "new_account", func(ctx context.Context) (err error) {
		acc, err = g.next.NewAccount(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &guardedAccount{g: g, next: acc}, nil
}

func (g *Guarded) Lookup(ctx context.Context, id string) (Account, error) {
	var acc Account
	err := g.do(ctx, "lookup", func(ctx context.Context) (err error) {
		acc, err = g.next.Lookup(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &guardedAccount{g: g, next: acc}, nil
}

func (g *Guarded) DeleteAccount(ctx context.Context, id string) error {
	return g.do(ctx, "delete_account", func(ctx context.Context) error {
		return g.next.DeleteAccount(ctx, id)
	})
}

func (g *Guarded) ListAccounts(ctx context.Context) ([]string, error) {
	var ids []string
	err := g.do(ctx, "list_accounts", func(ctx context.Context) (err error) {
		ids, err = g.next.ListAccounts(ctx)
		return err
	})
	return ids, err
}

type guardedAccount struct {
	g    *Guarded
	next Account
}

func (a *guardedAccount) ID() string { return a.next.ID() }

func (a *guardedAccount) Withdraw(ctx context.Context, amount decimal.Decimal) error {
	return a.g.do(ctx, "withdraw", func(ctx context.Context) error {
		return a.next.Withdraw(ctx, amount)
	})
}

func (a *guardedAccount) Deposit(ctx context.Context, amount decimal.Decimal) error {
	return a.g.do(ctx, "deposit", func(ctx context.Context) error {
		return a.next.Deposit(ctx, amount)
	})
}

func (a *guardedAccount) Balance(ctx context.Context) (decimal.Decimal, error) {
	var bal decimal.Decimal
	err := a.g.do(ctx, "balance", func(ctx context.Context) (err error) {
		bal, err = a.next.Balance(ctx)
		return err
	})
	return bal, err
}
