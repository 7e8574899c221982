package market

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnresolved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "j.wal")
	j, err := OpenJournal(path)
	require.NoError(t, err)

	write := func(id, step string) {
		require.NoError(t, j.Record(SettlementRecord{ID: id, Step: step, Item: "pen", Price: d("3"), Buyer: "b", Seller: "s"}))
	}
	write("ok", StepBegin)
	write("ok", StepWithdrawn)
	write("ok", StepCommitted)
	write("crashed", StepBegin)
	write("crashed", StepWithdrawn)
	write("refunded", StepBegin)
	write("refunded", StepCompensated)
	write("broken", StepInconsistent)
	write("lost", StepBegin)
	write("lost", StepWithdrawn)
	write("lost", StepDepositUnknown)
	write("noop", StepAborted)
	require.NoError(t, j.Close())

	// torn trailing record from a crash mid-append
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.Write([]byte{0xff, 0, 0})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	open, err := Unresolved(path)
	require.NoError(t, err)
	require.Len(t, open, 3)
	assert.Equal(t, "crashed", open[0].ID)
	assert.Equal(t, StepWithdrawn, open[0].Step)
	assert.Equal(t, "broken", open[1].ID)
	assert.Equal(t, "lost", open[2].ID)
	assert.Equal(t, StepDepositUnknown, open[2].Step)
	assert.False(t, open[0].At.IsZero())

	// the torn tail is gone, so appending after a restart stays readable
	j, err = OpenJournal(path)
	require.NoError(t, err)
	write("crashed", StepCompensated)
	require.NoError(t, j.Close())

	open, err = Unresolved(path)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, "broken", open[0].ID)
	assert.Equal(t, "lost", open[1].ID)
}

func TestUnresolved_NoJournalYet(t *testing.T) {
	open, err := Unresolved(filepath.Join(t.TempDir(), "missing.wal"))
	require.NoError(t, err)
	assert.Empty(t, open)
}
