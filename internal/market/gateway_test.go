package market

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopherbazaar.com/internal/bank"
	"gopherbazaar.com/pkg/xerr"
)

func TestDirectPurchase(t *testing.T) {
	h := newHarness(t, nil)
	buyer := h.client(t, "B", "100")
	seller := h.client(t, "S", "0")

	require.NoError(t, h.gw.AddItem(h.ctx, "pen", d("10"), "S"))
	assert.Equal(t, []string{`"pen" 10 SEK by "S"`}, buyer.lastItems())

	ok, err := h.gw.BuyItem(h.ctx, "pen", d("10"), "B")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.True(t, h.balance(t, "B").Equal(d("90")))
	assert.True(t, h.balance(t, "S").Equal(d("10")))
	assert.Empty(t, h.items(t))
	assert.Empty(t, buyer.lastItems())
	assert.Empty(t, seller.lastItems())
	assert.Equal(t, []string{"pen@10"}, buyer.purchases)
	assert.Equal(t, []string{"pen@10"}, seller.sales)
}

func TestWishFulfilledAtListingPrice(t *testing.T) {
	h := newHarness(t, nil)
	buyer := h.client(t, "B", "100")
	h.client(t, "S", "0")

	require.NoError(t, h.gw.AddWish(h.ctx, "pen", d("15"), "B"))
	assert.Equal(t, []string{`"pen" 15 SEK by "B"`}, buyer.lastWishes())

	require.NoError(t, h.gw.AddItem(h.ctx, "pen", d("12"), "S"))

	assert.True(t, h.balance(t, "B").Equal(d("88")))
	assert.True(t, h.balance(t, "S").Equal(d("12")))
	assert.Empty(t, buyer.lastWishes())
	assert.Empty(t, h.wishes(t, "B"))
	assert.Empty(t, h.items(t))
	assert.Equal(t, []string{"pen@12"}, buyer.purchases)
}

func TestWishBelowListingStaysOpen(t *testing.T) {
	h := newHarness(t, nil)
	h.client(t, "B", "100")
	h.client(t, "S", "0")

	require.NoError(t, h.gw.AddWish(h.ctx, "pen", d("5"), "B"))
	require.NoError(t, h.gw.AddItem(h.ctx, "pen", d("10"), "S"))

	assert.Equal(t, []string{`"pen" 10 SEK by "S"`}, h.items(t))
	assert.Equal(t, []string{`"pen" 5 SEK by "B"`}, h.wishes(t, "B"))
	assert.True(t, h.balance(t, "B").Equal(d("100")))
}

func TestInsufficientFundsDoesNotBlockOtherWishes(t *testing.T) {
	h := newHarness(t, nil)
	poor := h.client(t, "poor", "5")
	rich := h.client(t, "rich", "50")
	h.client(t, "S", "0")

	require.NoError(t, h.gw.AddWish(h.ctx, "pen", d("10"), "poor"))
	require.NoError(t, h.gw.AddWish(h.ctx, "cup", d("3"), "rich"))
	require.NoError(t, h.gw.AddItem(h.ctx, "pen", d("10"), "S"))
	require.NoError(t, h.gw.AddItem(h.ctx, "cup", d("3"), "S"))

	assert.True(t, h.balance(t, "poor").Equal(d("5")))
	assert.True(t, h.balance(t, "rich").Equal(d("47")))
	assert.True(t, h.balance(t, "S").Equal(d("3")))
	assert.Equal(t, []string{`"pen" 10 SEK by "S"`}, h.items(t))
	assert.Equal(t, []string{`"pen" 10 SEK by "poor"`}, h.wishes(t, "poor"))
	assert.Empty(t, h.wishes(t, "rich"))
	assert.Empty(t, poor.purchases)
	assert.Equal(t, []string{"cup@3"}, rich.purchases)
}

func TestBuyItem_OldestExactMatchWins(t *testing.T) {
	h := newHarness(t, nil)
	h.client(t, "B", "100")
	h.client(t, "S1", "0")
	h.client(t, "S2", "0")

	require.NoError(t, h.gw.AddItem(h.ctx, "pen", d("10"), "S1"))
	require.NoError(t, h.gw.AddItem(h.ctx, "pen", d("10"), "S2"))
	require.NoError(t, h.gw.AddItem(h.ctx, "pen", d("9"), "S2"))

	ok, err := h.gw.BuyItem(h.ctx, "pen", d("10.00"), "B")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, h.balance(t, "S1").Equal(d("10")))
	assert.True(t, h.balance(t, "S2").IsZero())
	assert.Equal(t, []string{`"pen" 10 SEK by "S2"`, `"pen" 9 SEK by "S2"`}, h.items(t))
}

func TestBuyItem_NoExactMatch(t *testing.T) {
	h := newHarness(t, nil)
	h.client(t, "B", "100")
	h.client(t, "S", "0")
	require.NoError(t, h.gw.AddItem(h.ctx, "pen", d("10"), "S"))

	ok, err := h.gw.BuyItem(h.ctx, "pen", d("11"), "B")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, h.items(t), 1)
	assert.True(t, h.balance(t, "B").Equal(d("100")))
}

func TestBuyItem_UnregisteredPartyFails(t *testing.T) {
	h := newHarness(t, nil)
	h.client(t, "S", "0")
	h.account(t, "ghost", "100")
	require.NoError(t, h.gw.AddItem(h.ctx, "pen", d("10"), "S"))

	ok, err := h.gw.BuyItem(h.ctx, "pen", d("10"), "ghost")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, h.balance(t, "ghost").Equal(d("100")))
}

func TestBuyItem_UnknownAccountAborts(t *testing.T) {
	j := &memJournal{}
	h := newHarness(t, nil, WithJournal(j))
	h.client(t, "S", "0")
	noAccount := newRecorder("nobank")
	require.NoError(t, h.gw.RegisterClient(h.ctx, noAccount))
	require.NoError(t, h.gw.AddItem(h.ctx, "pen", d("10"), "S"))

	ok, err := h.gw.BuyItem(h.ctx, "pen", d("10"), "nobank")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{StepBegin, StepAborted}, j.steps())
	assert.Len(t, h.items(t), 1)
}

func TestFailedCreditIsCompensated(t *testing.T) {
	ledger := &faultyLedger{Service: bank.NewMemory()}
	j := &memJournal{}
	feed := &tradeLog{}
	h := newHarness(t, ledger, WithJournal(j), WithPublisher(feed))
	buyer := h.client(t, "B", "100")
	seller := h.client(t, "S", "0")
	require.NoError(t, h.gw.AddItem(h.ctx, "pen", d("10"), "S"))

	ledger.setFailDeposit("S", true)
	ok, err := h.gw.BuyItem(h.ctx, "pen", d("10"), "B")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.True(t, h.balance(t, "B").Equal(d("100")))
	assert.True(t, h.balance(t, "S").IsZero())
	assert.Len(t, h.items(t), 1)
	assert.Empty(t, buyer.purchases)
	assert.Empty(t, seller.sales)
	assert.Empty(t, feed.all())
	assert.Equal(t, []string{StepBegin, StepWithdrawn, StepCompensated}, j.steps())
}

func TestFailedRefundIsJournalledInconsistent(t *testing.T) {
	ledger := &faultyLedger{Service: bank.NewMemory()}
	path := filepath.Join(t.TempDir(), "settlements.wal")
	j, err := OpenJournal(path)
	require.NoError(t, err)
	h := newHarness(t, ledger, WithJournal(j))
	buyer := h.client(t, "B", "100")
	h.client(t, "S", "0")
	require.NoError(t, h.gw.AddItem(h.ctx, "pen", d("10"), "S"))

	ledger.setFailDeposit("S", true)
	ledger.setFailDeposit("B", true)
	ok, err := h.gw.BuyItem(h.ctx, "pen", d("10"), "B")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, buyer.purchases)
	assert.Len(t, h.items(t), 1)
	assert.True(t, h.balance(t, "B").Equal(d("90")))

	require.NoError(t, j.Close())

	open, err := Unresolved(path)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, StepInconsistent, open[0].Step)
	assert.Equal(t, "B", open[0].Buyer)
	assert.Equal(t, "S", open[0].Seller)
	assert.True(t, open[0].Price.Equal(d("10")))
	assert.Contains(t, open[0].Reason, "ledger node down")
}

func TestLostWithdrawReplyIsJournalledUnknown(t *testing.T) {
	ledger := &faultyLedger{Service: bank.NewMemory()}
	path := filepath.Join(t.TempDir(), "settlements.wal")
	j, err := OpenJournal(path)
	require.NoError(t, err)
	h := newHarness(t, ledger, WithJournal(j))
	buyer := h.client(t, "B", "100")
	seller := h.client(t, "S", "0")
	require.NoError(t, h.gw.AddItem(h.ctx, "pen", d("10"), "S"))

	ledger.set("withdraw", "B", lostReply)
	ok, err := h.gw.BuyItem(h.ctx, "pen", d("10"), "B")
	require.NoError(t, err)
	assert.False(t, ok)

	// the debit went through; nothing may pretend it did not
	assert.True(t, h.balance(t, "B").Equal(d("90")))
	assert.True(t, h.balance(t, "S").IsZero())
	assert.Empty(t, buyer.purchases)
	assert.Empty(t, seller.sales)

	require.NoError(t, j.Close())
	open, err := Unresolved(path)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, StepWithdrawUnknown, open[0].Step)
	assert.Equal(t, "B", open[0].Buyer)
	assert.Contains(t, open[0].Reason, context.DeadlineExceeded.Error())
}

func TestLostDepositReplyIsNotRefunded(t *testing.T) {
	ledger := &faultyLedger{Service: bank.NewMemory()}
	j := &memJournal{}
	feed := &tradeLog{}
	h := newHarness(t, ledger, WithJournal(j), WithPublisher(feed))
	buyer := h.client(t, "B", "100")
	seller := h.client(t, "S", "0")
	require.NoError(t, h.gw.AddItem(h.ctx, "pen", d("10"), "S"))

	ledger.set("deposit", "S", lostReply)
	ok, err := h.gw.BuyItem(h.ctx, "pen", d("10"), "B")
	require.NoError(t, err)
	assert.False(t, ok)

	// no refund: total money stays 100
	assert.True(t, h.balance(t, "B").Equal(d("90")))
	assert.True(t, h.balance(t, "S").Equal(d("10")))
	assert.Equal(t, []string{StepBegin, StepWithdrawn, StepDepositUnknown}, j.steps())
	assert.Empty(t, buyer.purchases)
	assert.Empty(t, seller.sales)
	assert.Empty(t, feed.all())
}

func TestAllFulfilledBuyersGetWishLists(t *testing.T) {
	h := newHarness(t, nil)
	h.client(t, "S", "0")
	h.account(t, "B1", "100")
	h.account(t, "B2", "100")

	require.NoError(t, h.gw.AddItem(h.ctx, "pen", d("8"), "S"))
	require.NoError(t, h.gw.AddItem(h.ctx, "pen", d("9"), "S"))
	require.NoError(t, h.gw.AddItem(h.ctx, "ink", d("2"), "S"))
	// unregistered buyers cannot settle yet
	require.NoError(t, h.gw.AddWish(h.ctx, "pen", d("10"), "B1"))
	require.NoError(t, h.gw.AddWish(h.ctx, "pen", d("10"), "B2"))
	require.NoError(t, h.gw.AddWish(h.ctx, "ink", d("2"), "B1"))
	assert.Len(t, h.items(t), 3)

	b1, b2 := newRecorder("B1"), newRecorder("B2")
	require.NoError(t, h.gw.RegisterClient(h.ctx, b1))
	require.NoError(t, h.gw.RegisterClient(h.ctx, b2))
	_, w1, _, _ := b1.counts()
	_, w2, _, _ := b2.counts()

	require.NoError(t, h.gw.AddItem(h.ctx, "cup", d("1"), "S"))

	_, w1After, p1, _ := b1.counts()
	_, w2After, p2, _ := b2.counts()
	assert.Equal(t, 2, p1)
	assert.Equal(t, 1, p2)
	assert.Equal(t, w1+1, w1After, "one refresh per buyer per pass")
	assert.Equal(t, w2+1, w2After)
	assert.Empty(t, b1.lastWishes())
	assert.Empty(t, b2.lastWishes())
	assert.Equal(t, []string{`"cup" 1 SEK by "S"`}, h.items(t))
	assert.True(t, h.balance(t, "B1").Equal(d("90")))
	assert.True(t, h.balance(t, "B2").Equal(d("91")))
}

func TestRegisterClient_SendsSnapshot(t *testing.T) {
	h := newHarness(t, nil)
	h.client(t, "S", "0")
	require.NoError(t, h.gw.AddItem(h.ctx, "pen", d("10"), "S"))
	require.NoError(t, h.gw.AddWish(h.ctx, "cup", d("4"), "B"))

	b := newRecorder("B")
	require.NoError(t, h.gw.RegisterClient(h.ctx, b))
	assert.Equal(t, []string{`"pen" 10 SEK by "S"`}, b.lastItems())
	assert.Equal(t, []string{`"cup" 4 SEK by "B"`}, b.lastWishes())
}

func TestAddWish_UnregisteredCustomerGetsNoPush(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.gw.AddWish(h.ctx, "pen", d("4"), "nobody"))
	assert.Equal(t, []string{`"pen" 4 SEK by "nobody"`}, h.wishes(t, "nobody"))
}

func TestUnregister_StaleHandleKeepsNewer(t *testing.T) {
	h := newHarness(t, nil)
	h.client(t, "S", "0")
	old, cur := newRecorder("B"), newRecorder("B")
	require.NoError(t, h.gw.RegisterClient(h.ctx, old))
	require.NoError(t, h.gw.RegisterClient(h.ctx, cur))
	require.NoError(t, h.gw.UnregisterClient(h.ctx, old))

	oldItems, _, _, _ := old.counts()
	curItems, _, _, _ := cur.counts()
	require.NoError(t, h.gw.AddItem(h.ctx, "pen", d("1"), "S"))

	n, _, _, _ := old.counts()
	assert.Equal(t, oldItems, n)
	n, _, _, _ = cur.counts()
	assert.Equal(t, curItems+1, n)

	require.NoError(t, h.gw.UnregisterClient(h.ctx, cur))
	require.NoError(t, h.gw.AddItem(h.ctx, "pen", d("2"), "S"))
	n, _, _, _ = cur.counts()
	assert.Equal(t, curItems+1, n)
}

func TestUnreachableClientDoesNotAbortOperation(t *testing.T) {
	h := newHarness(t, nil)
	gone := h.client(t, "gone", "0")
	watcher := h.client(t, "W", "0")
	h.client(t, "S", "0")
	gone.fail = true

	require.NoError(t, h.gw.AddItem(h.ctx, "pen", d("1"), "S"))
	assert.Equal(t, []string{`"pen" 1 SEK by "S"`}, watcher.lastItems())
}

func TestValidation(t *testing.T) {
	h := newHarness(t, nil)
	err := h.gw.AddItem(h.ctx, "pen", d("-1"), "S")
	assert.Equal(t, xerr.RequestParamsError, xerr.CodeOf(err))
	err = h.gw.AddWish(h.ctx, " ", d("1"), "S")
	assert.Equal(t, xerr.RequestParamsError, xerr.CodeOf(err))
	_, err = h.gw.BuyItem(h.ctx, "pen", d("1"), "")
	assert.Equal(t, xerr.RequestParamsError, xerr.CodeOf(err))
	assert.Error(t, h.gw.RegisterClient(h.ctx, newRecorder("")))
	assert.Empty(t, h.items(t))
}

func TestZeroPriceListing(t *testing.T) {
	h := newHarness(t, nil)
	h.client(t, "B", "0")
	h.client(t, "S", "0")
	require.NoError(t, h.gw.AddItem(h.ctx, "flyer", d("0"), "S"))
	ok, err := h.gw.BuyItem(h.ctx, "flyer", d("0"), "B")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMailboxFull(t *testing.T) {
	gw := NewGateway(bank.NewMemory(), Config{MailboxSize: 1})
	gw.in <- command{kind: cmdItems, ctx: context.Background(), reply: make(chan result, 1)}
	err := gw.AddItem(context.Background(), "pen", d("1"), "S")
	assert.ErrorIs(t, err, ErrMarketBusy)
}

func TestClosedGateway(t *testing.T) {
	gw := NewGateway(bank.NewMemory(), Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gw.Run(ctx)

	_, err := gw.Items(context.Background())
	assert.ErrorIs(t, err, ErrMarketClosed)
}

func TestClosedGateway_FullMailboxReportsClosed(t *testing.T) {
	gw := NewGateway(bank.NewMemory(), Config{MailboxSize: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gw.Run(ctx)
	gw.in <- command{kind: cmdItems, ctx: context.Background(), reply: make(chan result, 1)}

	err := gw.AddItem(context.Background(), "pen", d("1"), "S")
	assert.ErrorIs(t, err, ErrMarketClosed)
	assert.NotErrorIs(t, err, ErrMarketBusy)
}

func TestCallerTimeout(t *testing.T) {
	gw := NewGateway(bank.NewMemory(), Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := gw.Items(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPanickingCallbackIsContained(t *testing.T) {
	h := newHarness(t, nil)
	h.client(t, "S", "0")
	require.NoError(t, h.gw.RegisterClient(h.ctx, &panicky{recorder: newRecorder("P")}))
	require.NoError(t, h.gw.AddItem(h.ctx, "pen", d("1"), "S"))
	assert.Len(t, h.items(t), 1)
}

type panicky struct{ *recorder }

func (*panicky) UpdateItemList(context.Context, []string) error {
	panic("boom")
}
