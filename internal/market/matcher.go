package market

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gopherbazaar.com/pkg/logger"
	"gopherbazaar.com/pkg/metrics"
)

// Matcher pairs standing wishes with affordable listings.
type Matcher struct {
	catalog  *Catalog
	registry *Registry
	coord    *Coordinator
	notify   notifier
}

// Pass walks the wishes oldest first. Each wish gets at most one settlement
// attempt: the oldest listing with the same name priced at or below the
// wish, settled at the listing's price. A failed attempt leaves both
// entries and moves on. Every buyer with a fulfilled wish then receives one
// refreshed wish list. It returns those buyers in first-fulfilment order.
func (m *Matcher) Pass(ctx context.Context) []string {
	start := time.Now()
	defer func() { metrics.MatcherPassDuration.Observe(time.Since(start).Seconds()) }()

	var fulfilled []string
	seen := make(map[string]struct{})
	for _, w := range m.catalog.Wishes() {
		if !m.catalog.ContainsWish(w) {
			continue
		}
		l, ok := m.catalog.FirstAffordable(w.Name, w.Price)
		if !ok {
			continue
		}
		if !m.coord.SettlePurchase(ctx, l, w.Owner, l.Owner) {
			logger.Info(ctx, "wish match not settled",
				zap.String("wish", w.Render()),
				zap.String("listing", l.Render()),
			)
			continue
		}
		m.catalog.RemoveWish(w)
		if _, dup := seen[w.Owner]; !dup {
			seen[w.Owner] = struct{}{}
			fulfilled = append(fulfilled, w.Owner)
		}
	}

	for _, buyer := range fulfilled {
		if cb, ok := m.registry.Get(buyer); ok {
			m.notify.wishes(ctx, cb, m.catalog.WishLines(buyer))
		}
	}
	return fulfilled
}
