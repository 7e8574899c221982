package bank

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopherbazaar.com/pkg/ratelimit"
	"gopherbazaar.com/pkg/xerr"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestMemory_Lifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	acc, err := m.NewAccount(ctx, "bob")
	require.NoError(t, err)
	_, err = m.NewAccount(ctx, "bob")
	assert.ErrorIs(t, err, ErrExists)
	_, err = m.NewAccount(ctx, "")
	assert.Equal(t, xerr.RequestParamsError, xerr.CodeOf(err))

	require.NoError(t, acc.Deposit(ctx, d("100")))
	require.NoError(t, acc.Withdraw(ctx, d("30.50")))
	bal, err := acc.Balance(ctx)
	require.NoError(t, err)
	assert.True(t, bal.Equal(d("69.5")))

	assert.ErrorIs(t, acc.Withdraw(ctx, d("70")), ErrRejected)
	assert.ErrorIs(t, acc.Deposit(ctx, d("-1")), ErrRejected)

	_, err = m.NewAccount(ctx, "alice")
	require.NoError(t, err)
	ids, err := m.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, ids)

	require.NoError(t, m.DeleteAccount(ctx, "bob"))
	assert.ErrorIs(t, m.DeleteAccount(ctx, "bob"), ErrNotFound)
	_, err = m.Lookup(ctx, "bob")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, acc.Deposit(ctx, d("1")), ErrNotFound)
}

type flakyService struct {
	Service
	err   error
	calls int
	delay time.Duration
}

func (f *flakyService) Lookup(ctx context.Context, id string) (Account, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.Service.Lookup(ctx, id)
}

func TestGuarded_BreakerIgnoresBusinessErrors(t *testing.T) {
	ctx := context.Background()
	f := &flakyService{Service: NewMemory(), err: ErrNotFound}
	g := NewGuarded(f, GuardConfig{Backend: "memory", Breaker: ratelimit.Rule{TripConsecutiveFailures: 2, Timeout: time.Minute}})

	for i := 0; i < 5; i++ {
		_, err := g.Lookup(ctx, "ghost")
		assert.ErrorIs(t, err, ErrNotFound)
	}
	assert.Equal(t, 5, f.calls)

	f.err = errors.New("connection reset")
	for i := 0; i < 2; i++ {
		_, _ = g.Lookup(ctx, "ghost")
	}
	_, err := g.Lookup(ctx, "ghost")
	assert.Equal(t, xerr.Unavailable, xerr.CodeOf(err))
	assert.Equal(t, 7, f.calls)
}

func TestGuarded_Timeout(t *testing.T) {
	f := &flakyService{Service: NewMemory(), delay: time.Second}
	g := NewGuarded(f, GuardConfig{Timeout: 20 * time.Millisecond})
	_, err := g.Lookup(context.Background(), "x")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGuarded_WrapsAccounts(t *testing.T) {
	ctx := context.Background()
	g := NewGuarded(NewMemory(), GuardConfig{})
	acc, err := g.NewAccount(ctx, "s")
	require.NoError(t, err)
	require.NoError(t, acc.Deposit(ctx, d("5")))
	got, err := g.Lookup(ctx, "s")
	require.NoError(t, err)
	bal, err := got.Balance(ctx)
	require.NoError(t, err)
	assert.True(t, bal.Equal(d("5")))
	assert.Equal(t, "s", got.ID())
}
