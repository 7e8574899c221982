package mysql

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopherbazaar.com/internal/bank"
	"gopherbazaar.com/pkg/orm"
)

// Runs against a real server: BAZAAR_TEST_MYSQL_DSN="user:pw@tcp(127.0.0.1:3306)/bazaar?parseTime=true"
func newTestRepo(t *testing.T) bank.Service {
	dsn := os.Getenv("BAZAAR_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("BAZAAR_TEST_MYSQL_DSN not set")
	}
	db, err := orm.NewMySQL(&orm.Config{DSN: dsn, MaxOpen: 4})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	return NewAccounts(db)
}

func TestAccounts_WithdrawDeposit(t *testing.T) {
	ctx := context.Background()
	svc := newTestRepo(t)
	id := fmt.Sprintf("it-%d", time.Now().UnixNano())
	t.Cleanup(func() { _ = svc.DeleteAccount(ctx, id) })

	acc, err := svc.NewAccount(ctx, id)
	require.NoError(t, err)
	_, err = svc.NewAccount(ctx, id)
	assert.ErrorIs(t, err, bank.ErrExists)

	require.NoError(t, acc.Deposit(ctx, decimal.NewFromInt(100)))
	require.NoError(t, acc.Withdraw(ctx, decimal.RequireFromString("12.5")))
	assert.ErrorIs(t, acc.Withdraw(ctx, decimal.NewFromInt(1000)), bank.ErrRejected)

	bal, err := acc.Balance(ctx)
	require.NoError(t, err)
	assert.True(t, bal.Equal(decimal.RequireFromString("87.5")), bal.String())

	require.NoError(t, svc.DeleteAccount(ctx, id))
	assert.ErrorIs(t, acc.Withdraw(ctx, decimal.NewFromInt(1)), bank.ErrNotFound)
	assert.ErrorIs(t, acc.Deposit(ctx, decimal.NewFromInt(1)), bank.ErrNotFound)
}
