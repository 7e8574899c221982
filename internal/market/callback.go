package market

import (
	"context"

	"github.com/shopspring/decimal"
)

// Callback is a connected participant. Every push may fail; the engine logs
// failures and carries on.
type Callback interface {
	ID() string
	UpdateItemList(ctx context.Context, lines []string) error
	UpdateWishList(ctx context.Context, lines []string) error
	NotifyPurchase(ctx context.Context, name string, price decimal.Decimal) error
	NotifySale(ctx context.Context, name string, price decimal.Decimal) error
}

// Publisher receives market-wide events for passive observers.
type Publisher interface {
	PublishItems(ctx context.Context, lines []string) error
	PublishTrade(ctx context.Context, t Trade) error
}

type nopPublisher struct{}

func (nopPublisher) PublishItems(context.Context, []string) error { return nil }
func (nopPublisher) PublishTrade(context.Context, Trade) error    { return nil }
