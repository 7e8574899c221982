package market

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gopherbazaar.com/internal/bank"
	"gopherbazaar.com/pkg/xerr"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// recorder is a Callback that keeps every push.
type recorder struct {
	id string

	mu        sync.Mutex
	items     [][]string
	wishes    [][]string
	purchases []string
	sales     []string
	fail      bool
}

func newRecorder(id string) *recorder { return &recorder{id: id} }

func (r *recorder) ID() string { return r.id }

func (r *recorder) UpdateItemList(_ context.Context, lines []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("client gone")
	}
	r.items = append(r.items, lines)
	return nil
}

func (r *recorder) UpdateWishList(_ context.Context, lines []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("client gone")
	}
	r.wishes = append(r.wishes, lines)
	return nil
}

func (r *recorder) NotifyPurchase(_ context.Context, name string, price decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("client gone")
	}
	r.purchases = append(r.purchases, name+"@"+price.String())
	return nil
}

func (r *recorder) NotifySale(_ context.Context, name string, price decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("client gone")
	}
	r.sales = append(r.sales, name+"@"+price.String())
	return nil
}

func (r *recorder) lastItems() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		return nil
	}
	return r.items[len(r.items)-1]
}

func (r *recorder) lastWishes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.wishes) == 0 {
		return nil
	}
	return r.wishes[len(r.wishes)-1]
}

func (r *recorder) counts() (items, wishes, purchases, sales int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items), len(r.wishes), len(r.purchases), len(r.sales)
}

type fault int

const (
	noFault fault = iota
	// refuse answers with a definite rejection and applies nothing.
	refuse
	// lostReply applies the leg, then reports a deadline as if the reply
	// never arrived.
	lostReply
)

// faultyLedger injects failures per account and money leg.
type faultyLedger struct {
	bank.Service
	mu     sync.Mutex
	faults map[string]fault
}

func (f *faultyLedger) set(leg, id string, ft fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.faults == nil {
		f.faults = map[string]fault{}
	}
	f.faults[leg+"/"+id] = ft
}

func (f *faultyLedger) setFailDeposit(id string, fail bool) {
	ft := noFault
	if fail {
		ft = refuse
	}
	f.set("deposit", id, ft)
}

func (f *faultyLedger) get(leg, id string) fault {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.faults[leg+"/"+id]
}

func (f *faultyLedger) Lookup(ctx context.Context, id string) (bank.Account, error) {
	acc, err := f.Service.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	return &faultyAccount{Account: acc, f: f}, nil
}

type faultyAccount struct {
	bank.Account
	f *faultyLedger
}

func (a *faultyAccount) Withdraw(ctx context.Context, amount decimal.Decimal) error {
	return a.apply(ctx, "withdraw", a.Account.Withdraw, amount)
}

func (a *faultyAccount) Deposit(ctx context.Context, amount decimal.Decimal) error {
	return a.apply(ctx, "deposit", a.Account.Deposit, amount)
}

func (a *faultyAccount) apply(ctx context.Context, leg string, fn func(context.Context, decimal.Decimal) error, amount decimal.Decimal) error {
	switch a.f.get(leg, a.ID()) {
	case refuse:
		return xerr.Wrap(errors.New("ledger node down"), xerr.Rejected, leg+" refused")
	case lostReply:
		if err := fn(ctx, amount); err != nil {
			return err
		}
		return context.DeadlineExceeded
	}
	return fn(ctx, amount)
}

// memJournal keeps records in memory.
type memJournal struct {
	mu   sync.Mutex
	recs []SettlementRecord
}

func (j *memJournal) Record(rec SettlementRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.recs = append(j.recs, rec)
	return nil
}

func (j *memJournal) steps() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, 0, len(j.recs))
	for _, r := range j.recs {
		out = append(out, r.Step)
	}
	return out
}

// tradeLog is a Publisher that keeps trades.
type tradeLog struct {
	mu     sync.Mutex
	trades []Trade
	items  int
}

func (p *tradeLog) PublishItems(context.Context, []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items++
	return nil
}

func (p *tradeLog) PublishTrade(_ context.Context, t Trade) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.trades = append(p.trades, t)
	return nil
}

func (p *tradeLog) all() []Trade {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Trade(nil), p.trades...)
}

type harness struct {
	ctx    context.Context
	gw     *Gateway
	ledger bank.Service
}

func newHarness(t testing.TB, ledger bank.Service, opts ...Option) *harness {
	t.Helper()
	if ledger == nil {
		ledger = bank.NewMemory()
	}
	ctx, cancel := context.WithCancel(context.Background())
	opts = append(opts, withClock(func() time.Time { return time.Unix(1700000000, 0) }))
	gw := NewGateway(ledger, Config{CallTimeout: time.Second, NotifyTimeout: time.Second}, opts...)
	go gw.Run(ctx)
	t.Cleanup(cancel)
	return &harness{ctx: context.Background(), gw: gw, ledger: ledger}
}

// client opens an account with the given balance and registers a recorder.
func (h *harness) client(t testing.TB, id, balance string) *recorder {
	t.Helper()
	h.account(t, id, balance)
	rec := newRecorder(id)
	require.NoError(t, h.gw.RegisterClient(h.ctx, rec))
	return rec
}

func (h *harness) account(t testing.TB, id, balance string) {
	t.Helper()
	acc, err := h.ledger.NewAccount(h.ctx, id)
	require.NoError(t, err)
	require.NoError(t, acc.Deposit(h.ctx, d(balance)))
}

func (h *harness) balance(t testing.TB, id string) decimal.Decimal {
	t.Helper()
	acc, err := h.ledger.Lookup(h.ctx, id)
	require.NoError(t, err)
	bal, err := acc.Balance(h.ctx)
	require.NoError(t, err)
	return bal
}

func (h *harness) items(t testing.TB) []string {
	t.Helper()
	lines, err := h.gw.Items(h.ctx)
	require.NoError(t, err)
	return lines
}

func (h *harness) wishes(t testing.TB, id string) []string {
	t.Helper()
	lines, err := h.gw.WishesOf(h.ctx, id)
	require.NoError(t, err)
	return lines
}
