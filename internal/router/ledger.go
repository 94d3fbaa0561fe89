package router

import (
	"fmt"

	"github.com/loopfi/routerd/internal/asset"
)

// CellKind distinguishes cells backed by tokens the engine actually
// holds from accounting-only assertions.
type CellKind uint8

const (
	// Real cells track custody the engine holds.
	Real CellKind = iota + 1

	// Virtual cells assert an amount without backing custody. Created by
	// ToOutput and by balance queries; moving a virtual amount requires
	// the real tokens to have arrived since.
	Virtual
)

func (k CellKind) String() string {
	switch k {
	case Real:
		return "real"
	case Virtual:
		return "virtual"
	default:
		return fmt.Sprintf("CellKind(%d)", uint8(k))
	}
}

// Cell is one entry of the value ledger: an amount of a token recorded
// by the instruction at Origin.
type Cell struct {
	Token  asset.Token `codec:"token"`
	Amount uint64      `codec:"amount"`
	Origin int         `codec:"origin"`
	Kind   CellKind    `codec:"kind"`
}

// Ledger is the append-only list of value cells for one execution.
// Cells are addressed by position and never removed or mutated; derived
// amounts are appended as new cells, preserving the trace of how every
// amount came to be.
type Ledger struct {
	cells []Cell
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Append adds a cell and returns its index.
func (l *Ledger) Append(c Cell) int {
	l.cells = append(l.cells, c)
	return len(l.cells) - 1
}

// Get returns the cell at index i.
func (l *Ledger) Get(i int) (Cell, error) {
	if i < 0 || i >= len(l.cells) {
		return Cell{}, fmt.Errorf("%w: %d (ledger has %d cells)", ErrInvalidIndex, i, len(l.cells))
	}
	return l.cells[i], nil
}

// Len returns the number of cells.
func (l *Ledger) Len() int {
	return len(l.cells)
}

// Cells returns a copy of all cells, for results and archived traces.
func (l *Ledger) Cells() []Cell {
	out := make([]Cell, len(l.cells))
	copy(out, l.cells)
	return out
}
