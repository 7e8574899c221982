package market

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gopherbazaar.com/internal/bank"
	"pgregory.net/rapid"
)

// Every trade in a run made only of listings and wishes comes from a wish:
// it must not exceed a ceiling the buyer placed, money is conserved and
// nothing settled comes back.
func TestMatcherProperties(t *testing.T) {
	owners := []string{"u1", "u2", "u3"}
	names := []string{"pen", "cup"}

	rapid.Check(t, func(rt *rapid.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		ledger := bank.NewMemory()
		feed := &tradeLog{}
		gw := NewGateway(ledger, Config{CallTimeout: time.Second, NotifyTimeout: time.Second}, WithPublisher(feed))
		go gw.Run(ctx)

		total := decimal.Zero
		for _, o := range owners {
			acc, err := ledger.NewAccount(ctx, o)
			if err != nil {
				rt.Fatal(err)
			}
			bal := decimal.NewFromInt(int64(rapid.IntRange(0, 40).Draw(rt, "balance_"+o)))
			total = total.Add(bal)
			if err := acc.Deposit(ctx, bal); err != nil {
				rt.Fatal(err)
			}
			if err := gw.RegisterClient(ctx, newRecorder(o)); err != nil {
				rt.Fatal(err)
			}
		}

		type key struct{ name, owner string }
		ceilings := map[key][]decimal.Decimal{}
		listed, wished := 0, 0

		steps := rapid.IntRange(1, 30).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			name := rapid.SampledFrom(names).Draw(rt, "name")
			owner := rapid.SampledFrom(owners).Draw(rt, "owner")
			price := decimal.NewFromInt(int64(rapid.IntRange(0, 20).Draw(rt, "price")))
			if rapid.Bool().Draw(rt, "isWish") {
				if err := gw.AddWish(ctx, name, price, owner); err != nil {
					rt.Fatal(err)
				}
				ceilings[key{name, owner}] = append(ceilings[key{name, owner}], price)
				wished++
			} else {
				if err := gw.AddItem(ctx, name, price, owner); err != nil {
					rt.Fatal(err)
				}
				listed++
			}
		}

		trades := feed.all()
		for _, tr := range trades {
			ok := false
			for _, c := range ceilings[key{tr.Name, tr.Buyer}] {
				if tr.Price.LessThanOrEqual(c) {
					ok = true
					break
				}
			}
			if !ok {
				rt.Fatalf("trade %s@%s to %s exceeds every ceiling", tr.Name, tr.Price, tr.Buyer)
			}
		}

		items, err := gw.Items(ctx)
		if err != nil {
			rt.Fatal(err)
		}
		if len(items) != listed-len(trades) {
			rt.Fatalf("listings: got %d want %d", len(items), listed-len(trades))
		}
		open := 0
		for _, o := range owners {
			w, err := gw.WishesOf(ctx, o)
			if err != nil {
				rt.Fatal(err)
			}
			open += len(w)
		}
		if open != wished-len(trades) {
			rt.Fatalf("wishes: got %d want %d", open, wished-len(trades))
		}

		sum := decimal.Zero
		for _, o := range owners {
			acc, _ := ledger.Lookup(ctx, o)
			bal, _ := acc.Balance(ctx)
			if bal.IsNegative() {
				rt.Fatalf("negative balance for %s: %s", o, bal)
			}
			sum = sum.Add(bal)
		}
		if !sum.Equal(total) {
			rt.Fatal(fmt.Sprintf("money not conserved: %s != %s", sum, total))
		}
	})
}
