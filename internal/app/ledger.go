package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopherbazaar.com/internal/bank"
	bankmysql "gopherbazaar.com/internal/bank/repo/mysql"
	"gopherbazaar.com/internal/bank/repo/rediskv"
	"gopherbazaar.com/internal/bank/rpc"
	"gopherbazaar.com/pkg/logger"
	"gopherbazaar.com/pkg/orm"
	"gopherbazaar.com/pkg/xredis"
)

// OpenLedger builds the configured backend wrapped in bank.Guarded. The
// returned close func releases the backend's connections.
func OpenLedger(ctx context.Context, cfg BankConfig) (bank.Service, func() error, error) {
	svc, closeFn, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	guard := cfg.Guard
	if guard.Backend == "" {
		guard.Backend = backendName(cfg.Backend)
	}
	ledger := bank.NewGuarded(svc, guard)

	if err := seed(ctx, ledger, cfg.Seed); err != nil {
		_ = closeFn()
		return nil, nil, err
	}
	return ledger, closeFn, nil
}

func backendName(b string) string {
	if b == "" {
		return BackendMemory
	}
	return b
}

func openBackend(ctx context.Context, cfg BankConfig) (bank.Service, func() error, error) {
	noop := func() error { return nil }

	switch backendName(cfg.Backend) {
	case BackendMemory:
		return bank.NewMemory(), noop, nil

	case BackendMySQL:
		db, err := orm.NewMySQL(&cfg.MySQL)
		if err != nil {
			return nil, nil, fmt.Errorf("mysql: %w", err)
		}
		if err := bankmysql.Migrate(db); err != nil {
			return nil, nil, fmt.Errorf("mysql migrate: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, err
		}
		return bankmysql.NewAccounts(db), sqlDB.Close, nil

	case BackendRedis:
		rdb, err := xredis.NewRedis(ctx, &cfg.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("redis: %w", err)
		}
		return rediskv.NewAccounts(rdb, cfg.RedisPrefix), rdb.Close, nil

	case BackendGRPC:
		cc, err := rpc.Dial(cfg.Remote)
		if err != nil {
			return nil, nil, fmt.Errorf("dial bank: %w", err)
		}
		return rpc.NewClient(cc), cc.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown bank backend %q", cfg.Backend)
}

func seed(ctx context.Context, ledger bank.Service, accounts []SeedAccount) error {
	for _, s := range accounts {
		amount := decimal.Zero
		if s.Balance != "" {
			var err error
			if amount, err = decimal.NewFromString(s.Balance); err != nil {
				return fmt.Errorf("seed %s: %w", s.ID, err)
			}
		}
		acct, err := ledger.NewAccount(ctx, s.ID)
		if errors.Is(err, bank.ErrExists) {
			continue
		}
		if err != nil {
			return fmt.Errorf("seed %s: %w", s.ID, err)
		}
		if err := acct.Deposit(ctx, amount); err != nil {
			return fmt.Errorf("seed %s: %w", s.ID, err)
		}
		logger.Info(ctx, "seeded account", zap.String("id", s.ID), zap.String("balance", amount.String()))
	}
	return nil
}
