package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerAppendGet(t *testing.T) {
	l := NewLedger()
	require.Equal(t, 0, l.Len())

	idx := l.Append(Cell{Token: "USDC", Amount: 100, Origin: 0, Kind: Real})
	assert.Equal(t, 0, idx)
	idx = l.Append(Cell{Token: "WETH", Amount: 5, Origin: 1, Kind: Virtual})
	assert.Equal(t, 1, idx)

	cell, err := l.Get(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), cell.Amount)

	cell, err = l.Get(1)
	require.NoError(t, err)
	assert.Equal(t, Virtual, cell.Kind)
}

func TestLedgerGetOutOfRange(t *testing.T) {
	l := NewLedger()
	l.Append(Cell{Token: "USDC", Amount: 1, Kind: Real})

	tests := []struct {
		name  string
		index int
	}{
		{"negative", -1},
		{"one past end", 1},
		{"far past end", 100},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := l.Get(tc.index)
			require.ErrorIs(t, err, ErrInvalidIndex)
		})
	}
}

func TestLedgerCellsIsACopy(t *testing.T) {
	l := NewLedger()
	l.Append(Cell{Token: "USDC", Amount: 1, Kind: Real})

	cells := l.Cells()
	cells[0].Amount = 999

	cell, err := l.Get(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), cell.Amount, "mutating the snapshot must not touch the ledger")
}
