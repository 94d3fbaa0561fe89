package router

import (
	"crypto/sha256"
	"fmt"

	"github.com/loopfi/routerd/internal/asset"
	"github.com/loopfi/routerd/internal/wire"
)

// RouterProtocol is the protocol name selecting a native instruction.
// Any other name selects a registered gateway.
const RouterProtocol = "router"

// Instruction is one element of the wire-format instruction list.
type Instruction struct {
	Protocol string `codec:"p"`
	Data     []byte `codec:"d"`
}

// Batch is an ordered instruction list executed atomically.
type Batch []Instruction

// Digest returns the canonical digest of the batch, used for signing and
// for keying archived traces.
func (b Batch) Digest() ([32]byte, error) {
	raw, err := wire.Marshal([]Instruction(b))
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(raw), nil
}

// NativeOp identifies a router-native instruction.
type NativeOp uint8

const (
	OpPullToken NativeOp = iota + 1
	OpPushToken
	OpToOutput
	OpApprove
	OpFlashLoan
	OpSplit
	OpAdd
	OpSubtract
)

var nativeOpNames = map[NativeOp]string{
	OpPullToken: "PullToken",
	OpPushToken: "PushToken",
	OpToOutput:  "ToOutput",
	OpApprove:   "Approve",
	OpFlashLoan: "FlashLoan",
	OpSplit:     "Split",
	OpAdd:       "Add",
	OpSubtract:  "Subtract",
}

func (op NativeOp) String() string {
	if s, ok := nativeOpNames[op]; ok {
		return s
	}
	return fmt.Sprintf("NativeOp(%d)", uint8(op))
}

// NativePayload is the decoded form of a router-targeted instruction.
// Fields are op-specific:
//
//	PullToken: Amount, Token, Account (source)
//	PushToken: A (cell), Account (destination)
//	ToOutput:  Amount, Token
//	Approve:   A (cell), Gateway
//	FlashLoan: Provider, A (cell carrying token+amount to borrow)
//	Split:     A (cell), Bps
//	Add:       A, B (cells)
//	Subtract:  A, B (cells)
type NativePayload struct {
	Op       NativeOp    `codec:"op"`
	Amount   uint64      `codec:"amount,omitempty"`
	Token    asset.Token `codec:"token,omitempty"`
	Account  string      `codec:"account,omitempty"`
	A        uint32      `codec:"a,omitempty"`
	B        uint32      `codec:"b,omitempty"`
	Bps      uint32      `codec:"bps,omitempty"`
	Gateway  string      `codec:"gateway,omitempty"`
	Provider string      `codec:"provider,omitempty"`
}
