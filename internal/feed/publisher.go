package feed

import (
	"context"

	"github.com/segmentio/encoding/json"
	"gopherbazaar.com/internal/market"
)

// ItemsEvent is the payload on TopicItems: the full listing snapshot.
type ItemsEvent struct {
	Lines []string `json:"lines"`
}

// TradeEvent is the payload on TopicTrades.
type TradeEvent struct {
	Name   string `json:"name"`
	Price  string `json:"price"`
	Buyer  string `json:"buyer"`
	Seller string `json:"seller"`
	AtMs   int64  `json:"atMs"`
}

// Publisher adapts a Broker to market.Publisher.
type Publisher struct {
	broker Broker
}

var _ market.Publisher = (*Publisher)(nil)

func NewPublisher(b Broker) *Publisher { return &Publisher{broker: b} }

func (p *Publisher) PublishItems(ctx context.Context, lines []string) error {
	if lines == nil {
		lines = []string{}
	}
	buf, err := json.Marshal(ItemsEvent{Lines: lines})
	if err != nil {
		return err
	}
	return p.broker.Publish(ctx, TopicItems, buf)
}

func (p *Publisher) PublishTrade(ctx context.Context, t market.Trade) error {
	buf, err := json.Marshal(TradeEvent{
		Name:   t.Name,
		Price:  t.Price.String(),
		Buyer:  t.Buyer,
		Seller: t.Seller,
		AtMs:   t.At,
	})
	if err != nil {
		return err
	}
	return p.broker.Publish(ctx, TopicTrades, buf)
}

func DecodeItems(payload []byte) (ItemsEvent, error) {
	var ev ItemsEvent
	err := json.Unmarshal(payload, &ev)
	return ev, err
}

func DecodeTrade(payload []byte) (TradeEvent, error) {
	var ev TradeEvent
	err := json.Unmarshal(payload, &ev)
	return ev, err
}
