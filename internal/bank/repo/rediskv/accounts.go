// Package rediskv keeps ledger balances in redis as integer minor units
// (öre, two decimal places). Debits run as a Lua script so the funds check
// and the DECRBY are one atomic step.
package rediskv

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gopherbazaar.com/internal/bank"
	"gopherbazaar.com/pkg/metrics"
	"gopherbazaar.com/pkg/xerr"
)

const (
	minorExp      = 2
	defaultPrefix = "bank"
)

// script results
const (
	resOK      = 0
	resMissing = -1
	resNoFunds = -2
)

var withdrawScript = redis.NewScript(`
local b = redis.call('GET', KEYS[1])
if not b then return -1 end
if tonumber(b) < tonumber(ARGV[1]) then return -2 end
redis.call('DECRBY', KEYS[1], ARGV[1])
return 0
`)

var depositScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return -1 end
redis.call('INCRBY', KEYS[1], ARGV[1])
return 0
`)

type accountsRepo struct {
	rdb  *redis.Client
	base string
}

// NewAccounts stores keys under prefix ("bank" when empty).
func NewAccounts(rdb *redis.Client, prefix string) bank.Service {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &accountsRepo{rdb: rdb, base: prefix}
}

func (r *accountsRepo) key(id string) string { return fmt.Sprintf("%s:acct:%s", r.base, id) }
func (r *accountsRepo) setKey() string       { return r.base + ":accounts" }

func (r *accountsRepo) NewAccount(ctx context.Context, id string) (bank.Account, error) {
	if err := bank.CheckID(id); err != nil {
		return nil, err
	}
	ok, err := r.rdb.SetNX(ctx, r.key(id), 0, 0).Result()
	if err != nil {
		return nil, kvErr(err)
	}
	if !ok {
		return nil, bank.ErrExists
	}
	if err := r.rdb.SAdd(ctx, r.setKey(), id).Err(); err != nil {
		return nil, kvErr(err)
	}
	return &account{r: r, id: id}, nil
}

func (r *accountsRepo) Lookup(ctx context.Context, id string) (bank.Account, error) {
	n, err := r.rdb.Exists(ctx, r.key(id)).Result()
	if err != nil {
		return nil, kvErr(err)
	}
	if n == 0 {
		return nil, bank.ErrNotFound
	}
	return &account{r: r, id: id}, nil
}

func (r *accountsRepo) DeleteAccount(ctx context.Context, id string) error {
	var del *redis.IntCmd
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		del = p.Del(ctx, r.key(id))
		p.SRem(ctx, r.setKey(), id)
		return nil
	})
	if err != nil {
		return kvErr(err)
	}
	if del.Val() == 0 {
		return bank.ErrNotFound
	}
	return nil
}

func (r *accountsRepo) ListAccounts(ctx context.Context) ([]string, error) {
	ids, err := r.rdb.SMembers(ctx, r.setKey()).Result()
	if err != nil {
		return nil, kvErr(err)
	}
	metrics.ObserveRedisStats(r.rdb.PoolStats())
	slices.Sort(ids)
	return ids, nil
}

func kvErr(err error) error {
	return xerr.Wrap(err, xerr.DbError, "ledger redis error")
}

// toMinor converts amount to öre. Amounts finer than one öre are rejected
// rather than rounded.
func toMinor(amount decimal.Decimal) (int64, error) {
	if err := bank.CheckAmount(amount); err != nil {
		return 0, err
	}
	shifted := amount.Shift(minorExp)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, bank.ErrRejected
	}
	return shifted.IntPart(), nil
}

type account struct {
	r  *accountsRepo
	id string
}

func (a *account) ID() string { return a.id }

func (a *account) Withdraw(ctx context.Context, amount decimal.Decimal) error {
	minor, err := toMinor(amount)
	if err != nil {
		return err
	}
	res, err := withdrawScript.Run(ctx, a.r.rdb, []string{a.r.key(a.id)}, minor).Int()
	if err != nil {
		return kvErr(err)
	}
	return scriptResult(res)
}

func (a *account) Deposit(ctx context.Context, amount decimal.Decimal) error {
	minor, err := toMinor(amount)
	if err != nil {
		return err
	}
	res, err := depositScript.Run(ctx, a.r.rdb, []string{a.r.key(a.id)}, minor).Int()
	if err != nil {
		return kvErr(err)
	}
	return scriptResult(res)
}

func (a *account) Balance(ctx context.Context) (decimal.Decimal, error) {
	v, err := a.r.rdb.Get(ctx, a.r.key(a.id)).Int64()
	if errors.Is(err, redis.Nil) {
		return decimal.Zero, bank.ErrNotFound
	}
	if err != nil {
		return decimal.Zero, kvErr(err)
	}
	return decimal.New(v, -minorExp), nil
}

func scriptResult(res int) error {
	switch res {
	case resOK:
		return nil
	case resMissing:
		return bank.ErrNotFound
	case resNoFunds:
		return bank.ErrRejected
	default:
		return xerr.New(xerr.DbError, fmt.Sprintf("unexpected script result %d", res))
	}
}
