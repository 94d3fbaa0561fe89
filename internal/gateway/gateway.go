// Package gateway defines the capability set every protocol adapter
// implements and the name-keyed registry the engine dispatches through.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/loopfi/routerd/internal/asset"
)

// Op is a lending operation understood by every gateway.
type Op uint8

const (
	OpDeposit Op = iota + 1
	OpDepositCollateral
	OpWithdrawCollateral
	OpBorrow
	OpRepay
	OpGetSupplyBalance
	OpGetBorrowBalance
	OpSwap
	OpSwapExactOut
)

var opNames = map[Op]string{
	OpDeposit:            "Deposit",
	OpDepositCollateral:  "DepositCollateral",
	OpWithdrawCollateral: "WithdrawCollateral",
	OpBorrow:             "Borrow",
	OpRepay:              "Repay",
	OpGetSupplyBalance:   "GetSupplyBalance",
	OpGetBorrowBalance:   "GetBorrowBalance",
	OpSwap:               "Swap",
	OpSwapExactOut:       "SwapExactOut",
}

func (op Op) String() string {
	if s, ok := opNames[op]; ok {
		return s
	}
	return fmt.Sprintf("Op(%d)", uint8(op))
}

// Valid reports whether op is a known lending operation.
func (op Op) Valid() bool {
	_, ok := opNames[op]
	return ok
}

// Instruction is the decoded payload of a protocol-targeted instruction.
//
// InputRef optionally addresses a ledger cell; the engine resolves it to
// Input before dispatch, so gateways always see concrete amounts.
type Instruction struct {
	Op       Op          `codec:"op"`
	Token    asset.Token `codec:"token"`
	User     string      `codec:"user,omitempty"`
	Amount   uint64      `codec:"amount,omitempty"`
	Context  []byte      `codec:"ctx,omitempty"`
	InputRef *uint32     `codec:"in,omitempty"`

	// Input is the resolved (token, amount) of InputRef. Set by the
	// engine, never present on the wire.
	Input *Resolved `codec:"-"`
}

// Resolved is a concrete (token, amount) read from the ledger.
type Resolved struct {
	Token  asset.Token
	Amount uint64
}

// Output reports what a gateway actually performed. Amounts reflect the
// executed amount, not the requested one: withdraw-style clamping is
// policy, and downstream instructions rely on the ground truth.
type Output struct {
	Token  asset.Token
	Amount uint64

	// Virtual marks outputs that carry no custody, such as live balance
	// queries. The engine records them as virtual cells.
	Virtual bool
}

// AuthCall is one permission transaction a user must execute before
// submitting a batch. Produced by Authorize/Deauthorize, consumed by the
// out-of-band authorization helper, never by the engine.
type AuthCall struct {
	Target  string
	Payload []byte
}

// Funds is the engine's custody port handed to a gateway for one
// instruction. Take draws on funds the engine holds and requires a prior
// Approve for this gateway; Give delivers the operation's proceeds into
// the engine's custody.
type Funds interface {
	Take(token asset.Token, amount uint64) error
	Give(token asset.Token, amount uint64) error
}

// Gateway adapts one external protocol to the common capability set.
type Gateway interface {
	Name() string

	// Account is the settlement account funds move through when the
	// engine's custody port takes or receives tokens for this gateway.
	Account() string

	// Execute performs one lending instruction. A nil Output means the
	// operation produced no ledger cell.
	Execute(ctx context.Context, funds Funds, in Instruction) (*Output, error)

	// Authorize returns the permission calls a user must perform before
	// the given instructions can execute against this gateway.
	Authorize(user string, ins []Instruction) ([]AuthCall, error)

	// Deauthorize returns the calls revoking those permissions.
	Deauthorize(user string, ins []Instruction) ([]AuthCall, error)
}

// Sentinel errors shared by all gateway implementations. The engine maps
// them onto its instruction-level error taxonomy.
var (
	// ErrUnauthorized: the gateway lacks a required permission, or a
	// Take exceeded the approved allowance.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInsufficientOutput: the venue cannot provide the requested
	// amount and no clamping policy applies.
	ErrInsufficientOutput = errors.New("insufficient output")

	// ErrUnknownGateway: no adapter registered under the given name.
	ErrUnknownGateway = errors.New("unknown gateway")
)
