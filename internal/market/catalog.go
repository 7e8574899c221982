package market

import (
	"slices"

	"github.com/shopspring/decimal"
)

// Catalog holds live listings and standing wishes in insertion order. It is
// not safe for concurrent use; the gateway goroutine owns it.
type Catalog struct {
	seq      uint64
	listings []*Entry
	wishes   []*Entry
}

func NewCatalog() *Catalog {
	return &Catalog{}
}

func (c *Catalog) next(name string, price decimal.Decimal, owner string) *Entry {
	c.seq++
	return &Entry{Seq: c.seq, Name: name, Price: price, Owner: owner}
}

func (c *Catalog) AddListing(name string, price decimal.Decimal, owner string) *Entry {
	e := c.next(name, price, owner)
	c.listings = append(c.listings, e)
	return e
}

func (c *Catalog) AddWish(name string, price decimal.Decimal, owner string) *Entry {
	e := c.next(name, price, owner)
	c.wishes = append(c.wishes, e)
	return e
}

// RemoveListing drops l by identity. Removing twice is a no-op.
func (c *Catalog) RemoveListing(l *Entry) bool {
	return remove(&c.listings, l)
}

func (c *Catalog) RemoveWish(w *Entry) bool {
	return remove(&c.wishes, w)
}

func remove(list *[]*Entry, e *Entry) bool {
	i := slices.Index(*list, e)
	if i < 0 {
		return false
	}
	*list = slices.Delete(*list, i, i+1)
	return true
}

func (c *Catalog) ContainsListing(l *Entry) bool { return slices.Contains(c.listings, l) }
func (c *Catalog) ContainsWish(w *Entry) bool    { return slices.Contains(c.wishes, w) }

// FindExactListing returns the oldest listing with this name and exactly
// this price.
func (c *Catalog) FindExactListing(name string, price decimal.Decimal) (*Entry, bool) {
	for _, l := range c.listings {
		if l.Name == name && l.Price.Equal(price) {
			return l, true
		}
	}
	return nil, false
}

// FirstAffordable returns the oldest listing of name priced at most ceiling.
func (c *Catalog) FirstAffordable(name string, ceiling decimal.Decimal) (*Entry, bool) {
	for _, l := range c.listings {
		if l.Name == name && l.Price.LessThanOrEqual(ceiling) {
			return l, true
		}
	}
	return nil, false
}

func (c *Catalog) ListingsByName(name string) []*Entry {
	var out []*Entry
	for _, l := range c.listings {
		if l.Name == name {
			out = append(out, l)
		}
	}
	return out
}

func (c *Catalog) WishesByOwner(owner string) []*Entry {
	var out []*Entry
	for _, w := range c.wishes {
		if w.Owner == owner {
			out = append(out, w)
		}
	}
	return out
}

// Wishes is a snapshot; later mutations do not show through.
func (c *Catalog) Wishes() []*Entry { return slices.Clone(c.wishes) }

func (c *Catalog) Listings() []*Entry { return slices.Clone(c.listings) }

func (c *Catalog) ItemLines() []string { return render(c.listings) }

func (c *Catalog) WishLines(owner string) []string { return render(c.WishesByOwner(owner)) }

func (c *Catalog) Len() (listings, wishes int) { return len(c.listings), len(c.wishes) }

func render(es []*Entry) []string {
	out := make([]string, 0, len(es))
	for _, e := range es {
		out = append(out, e.Render())
	}
	return out
}
