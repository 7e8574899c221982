package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gopherbazaar.com/pkg/common"
	"gopherbazaar.com/pkg/xerr"
)

// MarketService is the gateway surface the handlers call.
type MarketService interface {
	AddItem(ctx context.Context, name string, price decimal.Decimal, owner string) error
	AddWish(ctx context.Context, name string, price decimal.Decimal, customer string) error
	BuyItem(ctx context.Context, name string, price decimal.Decimal, customer string) (bool, error)
	Items(ctx context.Context) ([]string, error)
	WishesOf(ctx context.Context, id string) ([]string, error)
}

type Market struct {
	Svc MarketService
}

type addItemReq struct {
	Name  string          `json:"name" binding:"required"`
	Price decimal.Decimal `json:"price"`
	Owner string          `json:"owner" binding:"required"`
}

type orderReq struct {
	Name     string          `json:"name" binding:"required"`
	Price    decimal.Decimal `json:"price"`
	Customer string          `json:"customer" binding:"required"`
}

type linesRes struct {
	Lines []string `json:"lines"`
}

func bindErr(err error) error {
	return xerr.Wrap(err, xerr.RequestParamsError, "invalid request body")
}

func (m *Market) Items(c *gin.Context) {
	lines, err := m.Svc.Items(c.Request.Context())
	if err != nil {
		common.FailErr(c, err)
		return
	}
	common.Success(c, linesRes{Lines: nonNil(lines)})
}

func (m *Market) AddItem(c *gin.Context) {
	var req addItemReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.FailErr(c, bindErr(err))
		return
	}
	if err := m.Svc.AddItem(c.Request.Context(), req.Name, req.Price, req.Owner); err != nil {
		common.FailErr(c, err)
		return
	}
	common.Success(c, nil)
}

func (m *Market) WishesOf(c *gin.Context) {
	lines, err := m.Svc.WishesOf(c.Request.Context(), c.Param("owner"))
	if err != nil {
		common.FailErr(c, err)
		return
	}
	common.Success(c, linesRes{Lines: nonNil(lines)})
}

func (m *Market) AddWish(c *gin.Context) {
	var req orderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.FailErr(c, bindErr(err))
		return
	}
	if err := m.Svc.AddWish(c.Request.Context(), req.Name, req.Price, req.Customer); err != nil {
		common.FailErr(c, err)
		return
	}
	common.Success(c, nil)
}

// Buy answers bought=false when no exact listing exists or settlement did
// not go through; that is not an error.
func (m *Market) Buy(c *gin.Context) {
	var req orderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.FailErr(c, bindErr(err))
		return
	}
	ok, err := m.Svc.BuyItem(c.Request.Context(), req.Name, req.Price, req.Customer)
	if err != nil {
		common.FailErr(c, err)
		return
	}
	common.Success(c, gin.H{"bought": ok})
}

func nonNil(lines []string) []string {
	if lines == nil {
		return []string{}
	}
	return lines
}
