package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gopherbazaar.com/internal/bank"
	"gopherbazaar.com/pkg/common"
)

type Bank struct {
	Svc bank.Service
}

type accountReq struct {
	ID string `json:"id" binding:"required"`
}

type amountReq struct {
	Amount decimal.Decimal `json:"amount"`
}

type accountRes struct {
	ID      string `json:"id"`
	Balance string `json:"balance"`
}

func (b *Bank) List(c *gin.Context) {
	ids, err := b.Svc.ListAccounts(c.Request.Context())
	if err != nil {
		common.FailErr(c, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	common.Success(c, gin.H{"ids": ids})
}

func (b *Bank) Create(c *gin.Context) {
	var req accountReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.FailErr(c, bindErr(err))
		return
	}
	acct, err := b.Svc.NewAccount(c.Request.Context(), req.ID)
	if err != nil {
		common.FailErr(c, err)
		return
	}
	b.answer(c, acct)
}

func (b *Bank) Get(c *gin.Context) {
	acct, err := b.Svc.Lookup(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.FailErr(c, err)
		return
	}
	b.answer(c, acct)
}

func (b *Bank) Delete(c *gin.Context) {
	if err := b.Svc.DeleteAccount(c.Request.Context(), c.Param("id")); err != nil {
		common.FailErr(c, err)
		return
	}
	common.Success(c, nil)
}

func (b *Bank) Deposit(c *gin.Context) {
	b.move(c, bank.Account.Deposit)
}

func (b *Bank) Withdraw(c *gin.Context) {
	b.move(c, bank.Account.Withdraw)
}

func (b *Bank) move(c *gin.Context, op func(bank.Account, context.Context, decimal.Decimal) error) {
	var req amountReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.FailErr(c, bindErr(err))
		return
	}
	ctx := c.Request.Context()
	acct, err := b.Svc.Lookup(ctx, c.Param("id"))
	if err != nil {
		common.FailErr(c, err)
		return
	}
	if err := op(acct, ctx, req.Amount); err != nil {
		common.FailErr(c, err)
		return
	}
	b.answer(c, acct)
}

func (b *Bank) answer(c *gin.Context, acct bank.Account) {
	bal, err := acct.Balance(c.Request.Context())
	if err != nil {
		common.FailErr(c, err)
		return
	}
	common.Success(c, accountRes{ID: acct.ID(), Balance: bal.String()})
}
