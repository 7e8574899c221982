// Package mysql keeps ledger accounts in one gorm table. Withdrawals are a
// single conditional UPDATE so the balance check and debit are atomic.
package mysql

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gopherbazaar.com/internal/bank"
	"gopherbazaar.com/internal/bank/repo/model"
	"gopherbazaar.com/pkg/metrics"
	"gopherbazaar.com/pkg/xerr"
	"gorm.io/gorm"
)

type accountsRepo struct {
	db *gorm.DB
}

func NewAccounts(db *gorm.DB) bank.Service {
	return &accountsRepo{db: db}
}

// Migrate creates the accounts table when missing.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&model.AccountRow{})
}

func (r *accountsRepo) NewAccount(ctx context.Context, id string) (bank.Account, error) {
	if err := bank.CheckID(id); err != nil {
		return nil, err
	}
	err := r.db.WithContext(ctx).Create(&model.AccountRow{ID: id, Balance: decimal.Zero}).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, bank.ErrExists
	}
	if err != nil {
		return nil, dbErr(err)
	}
	return &account{r: r, id: id}, nil
}

func (r *accountsRepo) Lookup(ctx context.Context, id string) (bank.Account, error) {
	if err := r.exists(ctx, id); err != nil {
		return nil, err
	}
	return &account{r: r, id: id}, nil
}

func (r *accountsRepo) DeleteAccount(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.AccountRow{})
	if res.Error != nil {
		return dbErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return bank.ErrNotFound
	}
	return nil
}

func (r *accountsRepo) ListAccounts(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).Model(&model.AccountRow{}).Order("id ASC").Pluck("id", &ids).Error; err != nil {
		return nil, dbErr(err)
	}
	r.observePool()
	return ids, nil
}

func (r *accountsRepo) exists(ctx context.Context, id string) error {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.AccountRow{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return dbErr(err)
	}
	if n == 0 {
		return bank.ErrNotFound
	}
	return nil
}

func (r *accountsRepo) observePool() {
	if sqlDB, err := r.db.DB(); err == nil {
		metrics.ObserveDBStats(sqlDB.Stats())
	}
}

func dbErr(err error) error {
	return xerr.Wrap(err, xerr.DbError, "ledger database error")
}

type account struct {
	r  *accountsRepo
	id string
}

func (a *account) ID() string { return a.id }

func (a *account) Withdraw(ctx context.Context, amount decimal.Decimal) error {
	if err := bank.CheckAmount(amount); err != nil {
		return err
	}
	if amount.IsZero() {
		return a.r.exists(ctx, a.id)
	}
	res := a.r.db.WithContext(ctx).Model(&model.AccountRow{}).
		Where("id = ? AND balance >= ?", a.id, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if res.Error != nil {
		return dbErr(res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}
	if err := a.r.exists(ctx, a.id); err != nil {
		return err
	}
	return bank.ErrRejected
}

func (a *account) Deposit(ctx context.Context, amount decimal.Decimal) error {
	if err := bank.CheckAmount(amount); err != nil {
		return err
	}
	if amount.IsZero() {
		// mysql reports zero affected rows for a no-op update
		return a.r.exists(ctx, a.id)
	}
	res := a.r.db.WithContext(ctx).Model(&model.AccountRow{}).
		Where("id = ?", a.id).
		Update("balance", gorm.Expr("balance + ?", amount))
	if res.Error != nil {
		return dbErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return bank.ErrNotFound
	}
	return nil
}

func (a *account) Balance(ctx context.Context) (decimal.Decimal, error) {
	var row model.AccountRow
	err := a.r.db.WithContext(ctx).Where("id = ?", a.id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, bank.ErrNotFound
	}
	if err != nil {
		return decimal.Zero, dbErr(err)
	}
	return row.Balance, nil
}
