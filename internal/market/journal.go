package market

import (
	"time"

	"github.com/segmentio/encoding/json"
	"github.com/shopspring/decimal"
	"gopherbazaar.com/pkg/wal"
)

// Settlement steps. The last step recorded for a settlement tells how far
// it got; terminal steps are committed, aborted and compensated. The
// unknown steps mean a money leg got no answer and may have been applied.
const (
	StepBegin           = "begin"
	StepWithdrawn       = "withdrawn"
	StepCommitted       = "committed"
	StepAborted         = "aborted"
	StepCompensated     = "compensated"
	StepInconsistent    = "inconsistent"
	StepWithdrawUnknown = "withdraw_unknown"
	StepDepositUnknown  = "deposit_unknown"
)

type SettlementRecord struct {
	ID     string          `json:"id"`
	Step   string          `json:"step"`
	Item   string          `json:"item"`
	Price  decimal.Decimal `json:"price"`
	Buyer  string          `json:"buyer"`
	Seller string          `json:"seller"`
	Reason string          `json:"reason,omitempty"`
	At     time.Time       `json:"at"`
}

// Journal records settlement steps. Implementations need not be safe for
// concurrent use; only the gateway goroutine writes.
type Journal interface {
	Record(rec SettlementRecord) error
}

type nopJournal struct{}

func (nopJournal) Record(SettlementRecord) error { return nil }

// WALJournal appends one JSON record per step to a wal file, fsynced per
// record so a crash mid-settlement leaves the last step on disk.
type WALJournal struct {
	w *wal.Writer
}

func OpenJournal(path string) (*WALJournal, error) {
	w, err := wal.OpenWrite(path, wal.WriterOptions{SyncEveryAppend: true})
	if err != nil {
		return nil, err
	}
	return &WALJournal{w: w}, nil
}

func (j *WALJournal) Record(rec SettlementRecord) error {
	if rec.At.IsZero() {
		rec.At = time.Now().UTC()
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = j.w.Append(b)
	return err
}

func (j *WALJournal) Close() error { return j.w.Close() }

// Unresolved replays the journal at path and returns, in first-seen order,
// the last record of every settlement that did not reach a clean terminal
// step: money may have moved without a matching counter-leg. A torn final
// record is cut off so the journal can be reopened for appending.
func Unresolved(path string) ([]SettlementRecord, error) {
	last := make(map[string]SettlementRecord)
	var order []string
	st, err := wal.Replay(path, wal.ReaderOptions{AllowTruncatedTail: true}, func(payload []byte) error {
		var rec SettlementRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			return err
		}
		if _, seen := last[rec.ID]; !seen {
			order = append(order, rec.ID)
		}
		last[rec.ID] = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	if st.TruncatedTail {
		if err := wal.TruncateTo(path, st.LastGoodOffset); err != nil {
			return nil, err
		}
	}

	var out []SettlementRecord
	for _, id := range order {
		switch rec := last[id]; rec.Step {
		case StepCommitted, StepAborted, StepCompensated:
		default:
			out = append(out, rec)
		}
	}
	return out, nil
}
