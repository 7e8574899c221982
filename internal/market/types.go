// Package market is the matching and settlement engine: a catalog of
// listings and wishes, owned by a single-writer gateway, settled against a
// bank.Service and announced to registered clients.
package market

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gopherbazaar.com/pkg/xerr"
)

// Currency is printed after every price.
const Currency = "SEK"

// Entry is a listing (for sale at Price) or a wish (buy at most Price).
// Entries are compared by identity; two entries with equal fields are
// still distinct.
type Entry struct {
	Seq   uint64
	Name  string
	Price decimal.Decimal
	Owner string
}

// Render is the display line sent to clients: "<name>" <price> SEK by "<owner>".
func (e *Entry) Render() string {
	return fmt.Sprintf("%q %s %s by %q", e.Name, e.Price.String(), Currency, e.Owner)
}

func (e *Entry) String() string { return e.Render() }

// ParseEntry reads a display line back into its fields.
func ParseEntry(line string) (name string, price decimal.Decimal, owner string, err error) {
	var raw string
	n, err := fmt.Sscanf(line, "%q %s "+Currency+" by %q", &name, &raw, &owner)
	if err != nil || n != 3 {
		return "", decimal.Zero, "", fmt.Errorf("parse entry %q: %w", line, err)
	}
	price, err = decimal.NewFromString(raw)
	if err != nil {
		return "", decimal.Zero, "", fmt.Errorf("parse entry price %q: %w", raw, err)
	}
	return name, price, owner, nil
}

// Validate checks the fields every add/buy request must carry.
func Validate(name string, price decimal.Decimal, owner string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return xerr.New(xerr.RequestParamsError, "item name must not be empty")
	case price.IsNegative():
		return xerr.New(xerr.RequestParamsError, "price must not be negative")
	case owner == "":
		return xerr.New(xerr.RequestParamsError, "account id must not be empty")
	}
	return nil
}

// Trade is an executed settlement as published to the feed.
type Trade struct {
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
	Buyer  string          `json:"buyer"`
	Seller string          `json:"seller"`
	At     int64           `json:"at"` // unix millis
}
