package market

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopherbazaar.com/pkg/logger"
	"gopherbazaar.com/pkg/metrics"
	"gopherbazaar.com/pkg/safe"
)

// notifier pushes to callbacks under a per-call deadline. Delivery failures
// are logged and counted, never returned.
type notifier struct {
	timeout time.Duration
	// fan-out width for broadcasts
	parallel int
}

func (n notifier) call(ctx context.Context, kind string, cb Callback, fn func(ctx context.Context) error) {
	defer safe.Recover(ctx, "client callback")
	cctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	if err := fn(cctx); err != nil {
		metrics.NotifyFailuresTotal.WithLabelValues(kind).Inc()
		logger.Warn(ctx, "client notification failed",
			zap.String("kind", kind),
			zap.String("client", cb.ID()),
			zap.Error(err),
		)
	}
}

func (n notifier) items(ctx context.Context, cb Callback, lines []string) {
	n.call(ctx, "items", cb, func(ctx context.Context) error { return cb.UpdateItemList(ctx, lines) })
}

func (n notifier) wishes(ctx context.Context, cb Callback, lines []string) {
	n.call(ctx, "wishes", cb, func(ctx context.Context) error { return cb.UpdateWishList(ctx, lines) })
}

// broadcastItems sends lines to every callback, a bounded number at a time,
// and returns once all have answered or timed out.
func (n notifier) broadcastItems(ctx context.Context, cbs []Callback, lines []string) {
	var g errgroup.Group
	g.SetLimit(max(n.parallel, 1))
	for _, cb := range cbs {
		g.Go(func() error {
			n.items(ctx, cb, lines)
			return nil
		})
	}
	_ = g.Wait()
}
