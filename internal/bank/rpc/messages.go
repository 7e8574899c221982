package rpc

import "github.com/shopspring/decimal"

type AccountReq struct {
	ID string `json:"id"`
}

type AccountRes struct {
	ID string `json:"id"`
}

type ListReq struct{}

type ListRes struct {
	IDs []string `json:"ids"`
}

type AmountReq struct {
	ID     string          `json:"id"`
	Amount decimal.Decimal `json:"amount"`
}

type BalanceRes struct {
	ID      string          `json:"id"`
	Balance decimal.Decimal `json:"balance"`
}

type Empty struct{}
