package market

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopherbazaar.com/internal/bank"
	"gopherbazaar.com/pkg/logger"
	"gopherbazaar.com/pkg/metrics"
)

// Coordinator settles one purchase: buyer debit, seller credit, catalog
// removal and notifications. It runs on the gateway goroutine.
type Coordinator struct {
	catalog  *Catalog
	registry *Registry
	ledger   bank.Service
	journal  Journal
	feed     Publisher
	notify   notifier
	// deadline for each ledger call
	callTimeout time.Duration
	now         func() time.Time
}

// SettlePurchase moves listing.Price from buyer to seller and, only once both
// legs are booked, tells both parties, drops the listing and rebroadcasts the
// catalog. It returns false with the catalog untouched on any failure.
//
// A refused credit is compensated by refunding the buyer. If the refund fails
// as well the settlement is journalled inconsistent and logged urgently.
// A leg that ends without a reply from the ledger (deadline, transport)
// may still have been applied, so nothing is compensated: the step is
// journalled as unknown for an operator to reconcile.
func (c *Coordinator) SettlePurchase(ctx context.Context, listing *Entry, buyerID, sellerID string) bool {
	if !c.catalog.ContainsListing(listing) {
		return false
	}
	buyerCB, ok := c.registry.Get(buyerID)
	if !ok {
		logger.Info(ctx, "settlement skipped: buyer not registered", zap.String("buyer", buyerID))
		return false
	}
	sellerCB, ok := c.registry.Get(sellerID)
	if !ok {
		logger.Info(ctx, "settlement skipped: seller not registered", zap.String("seller", sellerID))
		return false
	}

	rec := SettlementRecord{
		ID:     uuid.NewString(),
		Item:   listing.Name,
		Price:  listing.Price,
		Buyer:  buyerID,
		Seller: sellerID,
	}
	fields := []zap.Field{
		zap.String("settlement", rec.ID),
		zap.String("item", rec.Item),
		zap.String("price", rec.Price.String()),
		zap.String("buyer", buyerID),
		zap.String("seller", sellerID),
	}
	if err := c.record(rec, StepBegin, nil); err != nil {
		logger.Error(ctx, "settlement journal unavailable, not settling", append(fields, zap.Error(err))...)
		metrics.SettlementsTotal.WithLabelValues(metrics.ResultRejected).Inc()
		return false
	}

	abort := func(msg string, err error) bool {
		_ = c.record(rec, StepAborted, err)
		metrics.SettlementsTotal.WithLabelValues(metrics.ResultRejected).Inc()
		logger.Info(ctx, msg, append(fields, zap.Error(err))...)
		return false
	}

	buyer, err := c.lookup(ctx, buyerID)
	if err != nil {
		return abort("settlement aborted: buyer account", err)
	}
	seller, err := c.lookup(ctx, sellerID)
	if err != nil {
		return abort("settlement aborted: seller account", err)
	}
	if err := c.move(ctx, buyer.Withdraw, listing.Price); err != nil {
		if !bank.IsAnswer(err) {
			c.unknown(ctx, rec, StepWithdrawUnknown, err, fields)
			return false
		}
		return abort("settlement aborted: withdrawal", err)
	}
	if err := c.record(rec, StepWithdrawn, nil); err != nil {
		logger.Error(ctx, "settlement journal write failed", append(fields, zap.String("step", StepWithdrawn), zap.Error(err))...)
	}

	if depErr := c.move(ctx, seller.Deposit, listing.Price); depErr != nil {
		if !bank.IsAnswer(depErr) {
			c.unknown(ctx, rec, StepDepositUnknown, depErr, fields)
			return false
		}
		c.compensate(ctx, rec, buyer, depErr, fields)
		return false
	}

	if err := c.record(rec, StepCommitted, nil); err != nil {
		logger.Error(ctx, "settlement journal write failed", append(fields, zap.String("step", StepCommitted), zap.Error(err))...)
	}
	metrics.SettlementsTotal.WithLabelValues(metrics.ResultCommitted).Inc()
	logger.Info(ctx, "settlement committed", fields...)

	c.notify.call(ctx, "purchase", buyerCB, func(ctx context.Context) error {
		return buyerCB.NotifyPurchase(ctx, listing.Name, listing.Price)
	})
	c.notify.call(ctx, "sale", sellerCB, func(ctx context.Context) error {
		return sellerCB.NotifySale(ctx, listing.Name, listing.Price)
	})

	c.catalog.RemoveListing(listing)
	lines := c.catalog.ItemLines()
	c.notify.broadcastItems(ctx, c.registry.All(), lines)
	c.publish(ctx, lines, Trade{
		Name:   listing.Name,
		Price:  listing.Price,
		Buyer:  buyerID,
		Seller: sellerID,
		At:     c.now().UnixMilli(),
	})
	return true
}

func (c *Coordinator) compensate(ctx context.Context, rec SettlementRecord, buyer bank.Account, depErr error, fields []zap.Field) {
	refundErr := c.move(ctx, buyer.Deposit, rec.Price)
	if refundErr == nil {
		_ = c.record(rec, StepCompensated, depErr)
		metrics.SettlementsTotal.WithLabelValues(metrics.ResultCompensated).Inc()
		logger.Error(ctx, "settlement compensated: seller credit failed, buyer refunded",
			append(fields, zap.NamedError("deposit_error", depErr))...)
		return
	}

	_ = c.record(rec, StepInconsistent, errors.Join(depErr, refundErr))
	metrics.SettlementsTotal.WithLabelValues(metrics.ResultInconsistent).Inc()
	logger.Urgent(ctx, "settlement inconsistent: buyer debited, seller not credited, refund failed",
		append(fields,
			zap.NamedError("deposit_error", depErr),
			zap.NamedError("refund_error", refundErr),
		)...)
}

func (c *Coordinator) unknown(ctx context.Context, rec SettlementRecord, step string, err error, fields []zap.Field) {
	_ = c.record(rec, step, err)
	metrics.SettlementsTotal.WithLabelValues(metrics.ResultUnknown).Inc()
	logger.Urgent(ctx, "settlement outcome unknown: ledger did not answer",
		append(fields, zap.String("step", step), zap.Error(err))...)
}

func (c *Coordinator) lookup(ctx context.Context, id string) (bank.Account, error) {
	cctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	return c.ledger.Lookup(cctx, id)
}

func (c *Coordinator) move(ctx context.Context, leg func(context.Context, decimal.Decimal) error, amount decimal.Decimal) error {
	cctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	return leg(cctx, amount)
}

func (c *Coordinator) record(rec SettlementRecord, step string, reason error) error {
	rec.Step = step
	if reason != nil {
		rec.Reason = reason.Error()
	}
	rec.At = c.now().UTC()
	return c.journal.Record(rec)
}

func (c *Coordinator) publish(ctx context.Context, lines []string, t Trade) {
	if err := c.feed.PublishTrade(ctx, t); err != nil {
		logger.Warn(ctx, "feed publish failed", zap.String("topic", "trades"), zap.Error(err))
	}
	if err := c.feed.PublishItems(ctx, lines); err != nil {
		logger.Warn(ctx, "feed publish failed", zap.String("topic", "items"), zap.Error(err))
	}
}
