package market

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopherbazaar.com/internal/bank"
	"gopherbazaar.com/pkg/logger"
	"gopherbazaar.com/pkg/metrics"
	"gopherbazaar.com/pkg/safe"
	"gopherbazaar.com/pkg/xerr"
)

var (
	ErrMarketBusy   = xerr.New(xerr.TooManyRequests, "market busy")
	ErrMarketClosed = xerr.New(xerr.Unavailable, "market closed")
	errPanicked     = xerr.New(xerr.ServerCommonError, "market operation failed")
)

type Config struct {
	MailboxSize int `mapstructure:"mailbox_size"`
	// deadline for each ledger call during settlement
	CallTimeout time.Duration `mapstructure:"call_timeout"`
	// deadline for each client push
	NotifyTimeout     time.Duration `mapstructure:"notify_timeout"`
	BroadcastParallel int           `mapstructure:"broadcast_parallel"`
}

type Option func(*Gateway)

func WithJournal(j Journal) Option { return func(g *Gateway) { g.coord.journal = j } }

func WithPublisher(p Publisher) Option {
	return func(g *Gateway) {
		g.feed = p
		g.coord.feed = p
	}
}

func withClock(now func() time.Time) Option { return func(g *Gateway) { g.coord.now = now } }

type cmdKind uint8

const (
	cmdRegister cmdKind = iota + 1
	cmdUnregister
	cmdAddItem
	cmdAddWish
	cmdBuy
	cmdItems
	cmdWishes
)

type command struct {
	kind  cmdKind
	ctx   context.Context
	cb    Callback
	name  string
	price decimal.Decimal
	owner string
	reply chan result
}

type result struct {
	ok    bool
	lines []string
	err   error
}

// Gateway is the single entry point to the market. One goroutine (Run)
// owns the catalog and registry and applies commands one at a time in
// arrival order; public methods enqueue and wait.
type Gateway struct {
	in   chan command
	done chan struct{}

	catalog  *Catalog
	registry *Registry
	coord    *Coordinator
	matcher  *Matcher
	notify   notifier
	feed     Publisher
}

func NewGateway(ledger bank.Service, cfg Config, opts ...Option) *Gateway {
	if cfg.MailboxSize <= 0 {
		cfg.MailboxSize = 1024
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 3 * time.Second
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = time.Second
	}
	if cfg.BroadcastParallel <= 0 {
		cfg.BroadcastParallel = 16
	}

	cat := NewCatalog()
	reg := NewRegistry()
	n := notifier{timeout: cfg.NotifyTimeout, parallel: cfg.BroadcastParallel}
	coord := &Coordinator{
		catalog:     cat,
		registry:    reg,
		ledger:      ledger,
		journal:     nopJournal{},
		feed:        nopPublisher{},
		notify:      n,
		callTimeout: cfg.CallTimeout,
		now:         time.Now,
	}
	g := &Gateway{
		in:       make(chan command, cfg.MailboxSize),
		done:     make(chan struct{}),
		catalog:  cat,
		registry: reg,
		coord:    coord,
		matcher:  &Matcher{catalog: cat, registry: reg, coord: coord, notify: n},
		notify:   n,
		feed:     nopPublisher{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Run applies commands until ctx ends. Commands still queued are answered
// with ErrMarketClosed by their callers.
func (g *Gateway) Run(ctx context.Context) {
	defer close(g.done)
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-g.in:
			g.exec(cmd)
		}
	}
}

func (g *Gateway) exec(cmd command) {
	res := result{err: errPanicked}
	defer func() { cmd.reply <- res }()
	defer safe.Recover(cmd.ctx, "market gateway")
	res = g.apply(cmd)
	l, w := g.catalog.Len()
	metrics.CatalogListings.Set(float64(l))
	metrics.CatalogWishes.Set(float64(w))
}

func (g *Gateway) apply(cmd command) result {
	ctx := cmd.ctx
	switch cmd.kind {
	case cmdRegister:
		if old := g.registry.Register(cmd.cb); old != nil && old != cmd.cb {
			logger.Info(ctx, "client re-registered, previous handle replaced", zap.String("client", cmd.cb.ID()))
		}
		g.notify.items(ctx, cmd.cb, g.catalog.ItemLines())
		g.notify.wishes(ctx, cmd.cb, g.catalog.WishLines(cmd.cb.ID()))
		return result{ok: true}

	case cmdUnregister:
		return result{ok: g.registry.Unregister(cmd.cb)}

	case cmdAddItem:
		g.catalog.AddListing(cmd.name, cmd.price, cmd.owner)
		lines := g.catalog.ItemLines()
		g.notify.broadcastItems(ctx, g.registry.All(), lines)
		if err := g.feed.PublishItems(ctx, lines); err != nil {
			logger.Warn(ctx, "feed publish failed", zap.String("topic", "items"), zap.Error(err))
		}
		g.matcher.Pass(ctx)
		return result{ok: true}

	case cmdAddWish:
		g.catalog.AddWish(cmd.name, cmd.price, cmd.owner)
		if cb, ok := g.registry.Get(cmd.owner); ok {
			g.notify.wishes(ctx, cb, g.catalog.WishLines(cmd.owner))
		}
		g.matcher.Pass(ctx)
		return result{ok: true}

	case cmdBuy:
		l, ok := g.catalog.FindExactListing(cmd.name, cmd.price)
		if !ok {
			return result{}
		}
		if !g.coord.SettlePurchase(ctx, l, cmd.owner, l.Owner) {
			return result{}
		}
		g.matcher.Pass(ctx)
		return result{ok: true}

	case cmdItems:
		return result{ok: true, lines: g.catalog.ItemLines()}

	case cmdWishes:
		return result{ok: true, lines: g.catalog.WishLines(cmd.owner)}
	}
	return result{err: xerr.New(xerr.ServerCommonError, "unknown market command")}
}

func (g *Gateway) submit(ctx context.Context, cmd command) (result, error) {
	if err := ctx.Err(); err != nil {
		return result{}, err
	}
	// queued work finishes even if the caller stops waiting
	cmd.ctx = context.WithoutCancel(ctx)
	cmd.reply = make(chan result, 1)

	select {
	case <-g.done:
		return result{}, ErrMarketClosed
	default:
	}
	select {
	case g.in <- cmd:
	default:
		select {
		case <-g.done:
			return result{}, ErrMarketClosed
		default:
		}
		metrics.MailboxFullTotal.Inc()
		return result{}, ErrMarketBusy
	}

	select {
	case r := <-cmd.reply:
		return r, r.err
	case <-ctx.Done():
		return result{}, ctx.Err()
	case <-g.done:
		return result{}, ErrMarketClosed
	}
}

// RegisterClient records cb under its id, replacing any earlier handle, and
// sends it the item list and its own wish list.
func (g *Gateway) RegisterClient(ctx context.Context, cb Callback) error {
	if cb == nil || cb.ID() == "" {
		return xerr.New(xerr.RequestParamsError, "client id must not be empty")
	}
	_, err := g.submit(ctx, command{kind: cmdRegister, cb: cb})
	return err
}

// UnregisterClient drops cb if it is still the current handle for its id.
func (g *Gateway) UnregisterClient(ctx context.Context, cb Callback) error {
	if cb == nil {
		return nil
	}
	_, err := g.submit(ctx, command{kind: cmdUnregister, cb: cb})
	return err
}

// AddItem lists an item, tells every client, then runs the matcher.
func (g *Gateway) AddItem(ctx context.Context, name string, price decimal.Decimal, owner string) error {
	if err := Validate(name, price, owner); err != nil {
		return err
	}
	_, err := g.submit(ctx, command{kind: cmdAddItem, name: name, price: price, owner: owner})
	return err
}

// AddWish stores a standing bid, refreshes the customer's wish list, then
// runs the matcher.
func (g *Gateway) AddWish(ctx context.Context, name string, price decimal.Decimal, customer string) error {
	if err := Validate(name, price, customer); err != nil {
		return err
	}
	_, err := g.submit(ctx, command{kind: cmdAddWish, name: name, price: price, owner: customer})
	return err
}

// BuyItem buys the oldest listing with exactly this name and price. It
// reports false when there is none or the settlement failed.
func (g *Gateway) BuyItem(ctx context.Context, name string, price decimal.Decimal, customer string) (bool, error) {
	if err := Validate(name, price, customer); err != nil {
		return false, err
	}
	r, err := g.submit(ctx, command{kind: cmdBuy, name: name, price: price, owner: customer})
	return r.ok, err
}

func (g *Gateway) Items(ctx context.Context) ([]string, error) {
	r, err := g.submit(ctx, command{kind: cmdItems})
	return r.lines, err
}

func (g *Gateway) WishesOf(ctx context.Context, id string) ([]string, error) {
	r, err := g.submit(ctx, command{kind: cmdWishes, owner: id})
	return r.lines, err
}
