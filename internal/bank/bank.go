// Package bank is the account ledger the market settles against.
package bank

import (
	"context"

	"github.com/shopspring/decimal"
	"gopherbazaar.com/pkg/xerr"
)

var (
	ErrNotFound = xerr.New(xerr.RecordNotFound, "account not found")
	ErrRejected = xerr.New(xerr.Rejected, "transaction rejected")
	ErrExists   = xerr.New(xerr.Conflict, "account already exists")
)

// Account is a handle on one ledger account. Handles stay valid after the
// account is deleted; calls then fail with ErrNotFound.
type Account interface {
	ID() string
	// Withdraw fails with ErrRejected on insufficient funds or a negative amount.
	Withdraw(ctx context.Context, amount decimal.Decimal) error
	// Deposit fails with ErrRejected on a negative amount.
	Deposit(ctx context.Context, amount decimal.Decimal) error
	Balance(ctx context.Context) (decimal.Decimal, error)
}

type Service interface {
	NewAccount(ctx context.Context, id string) (Account, error)
	Lookup(ctx context.Context, id string) (Account, error)
	DeleteAccount(ctx context.Context, id string) error
	ListAccounts(ctx context.Context) ([]string, error)
}

// CheckAmount rejects negative amounts.
func CheckAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrRejected
	}
	return nil
}

// CheckID rejects empty account ids.
func CheckID(id string) error {
	if id == "" {
		return xerr.New(xerr.RequestParamsError, "account id must not be empty")
	}
	return nil
}
