package router

import (
	"fmt"

	"github.com/loopfi/routerd/internal/asset"
	"github.com/loopfi/routerd/internal/gateway"
)

// CellRef is a predicted ledger index handed out by the Builder so later
// instructions can reference earlier outputs before execution.
type CellRef uint32

// Builder assembles an instruction batch, mirroring the engine's
// append behavior to predict the index of every produced cell. The first
// encoding error sticks and surfaces from Build.
type Builder struct {
	ins  []Instruction
	next uint32
	err  error
}

// NewBatch returns an empty batch builder.
func NewBatch() *Builder {
	return &Builder{}
}

func (b *Builder) addNative(p NativePayload, cells int) CellRef {
	if b.err != nil {
		return 0
	}
	ins, err := EncodeNative(p)
	if err != nil {
		b.err = err
		return 0
	}
	b.ins = append(b.ins, ins)
	ref := CellRef(b.next)
	b.next += uint32(cells)
	return ref
}

// PullToken pulls amount of token from an external account into engine
// custody. Returns the ref of the produced cell.
func (b *Builder) PullToken(amount uint64, token asset.Token, from string) CellRef {
	return b.addNative(NativePayload{Op: OpPullToken, Amount: amount, Token: token, Account: from}, 1)
}

// PushToken sends the referenced cell's amount to an external account.
func (b *Builder) PushToken(cell CellRef, to string) {
	b.addNative(NativePayload{Op: OpPushToken, A: uint32(cell), Account: to}, 0)
}

// ToOutput appends a virtual cell asserting an anticipated amount.
func (b *Builder) ToOutput(amount uint64, token asset.Token) CellRef {
	return b.addNative(NativePayload{Op: OpToOutput, Amount: amount, Token: token}, 1)
}

// Approve grants a gateway spending rights over the referenced cell.
func (b *Builder) Approve(cell CellRef, gatewayName string) {
	b.addNative(NativePayload{Op: OpApprove, A: uint32(cell), Gateway: gatewayName}, 0)
}

// FlashLoan borrows the referenced cell's (token, amount) from a
// provider and resumes the remaining instructions inside its callback.
// Returns the ref of the principal cell.
func (b *Builder) FlashLoan(provider string, cell CellRef) CellRef {
	return b.addNative(NativePayload{Op: OpFlashLoan, Provider: provider, A: uint32(cell)}, 1)
}

// Split partitions the referenced cell into (fee, remainder) cells where
// fee is ceil(amount*bps/10000).
func (b *Builder) Split(cell CellRef, bps uint32) (fee, remainder CellRef) {
	ref := b.addNative(NativePayload{Op: OpSplit, A: uint32(cell), Bps: bps}, 2)
	return ref, ref + 1
}

// Add appends a cell holding the sum of two same-token cells.
func (b *Builder) Add(a, c CellRef) CellRef {
	return b.addNative(NativePayload{Op: OpAdd, A: uint32(a), B: uint32(c)}, 1)
}

// Subtract appends a cell holding cell[a] minus cell[c].
func (b *Builder) Subtract(a, c CellRef) CellRef {
	return b.addNative(NativePayload{Op: OpSubtract, A: uint32(a), B: uint32(c)}, 1)
}

// Gateway appends a protocol-targeted lending instruction. All bundled
// adapters report one output cell per operation; its ref is returned.
func (b *Builder) Gateway(protocol string, in gateway.Instruction) CellRef {
	if b.err != nil {
		return 0
	}
	ins, err := EncodeLending(protocol, in)
	if err != nil {
		b.err = err
		return 0
	}
	b.ins = append(b.ins, ins)
	ref := CellRef(b.next)
	b.next++
	return ref
}

// InputRef adapts a CellRef for use in a lending instruction.
func InputRef(cell CellRef) *uint32 {
	v := uint32(cell)
	return &v
}

// Build returns the assembled batch or the first error encountered.
func (b *Builder) Build() (Batch, error) {
	if b.err != nil {
		return nil, fmt.Errorf("batch builder: %w", b.err)
	}
	out := make(Batch, len(b.ins))
	copy(out, b.ins)
	return out, nil
}
