package ws

import "github.com/segmentio/encoding/json"

const (
	TypeItems    = "items"
	TypeWishes   = "wishes"
	TypePurchase = "purchase"
	TypeSale     = "sale"
	TypeFeed     = "feed"
)

// ClientMsg is what a client may send: "sub" or "unsub" to feed topics.
type ClientMsg struct {
	Type   string   `json:"type"`
	Topics []string `json:"topics"`
}

type ServerMsg struct {
	Type  string          `json:"type"`
	Lines []string        `json:"lines"`
	Name  string          `json:"name,omitempty"`
	Price string          `json:"price,omitempty"`
	Topic string          `json:"topic,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func encode(m ServerMsg) ([]byte, error) { return json.Marshal(m) }

// Decode parses one server frame.
func Decode(b []byte) (ServerMsg, error) {
	var m ServerMsg
	err := json.Unmarshal(b, &m)
	return m, err
}
