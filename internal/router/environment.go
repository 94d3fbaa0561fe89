package router

import (
	"context"

	"github.com/loopfi/routerd/internal/asset"
	"github.com/loopfi/routerd/internal/gateway"
)

// Environment is everything one execution touches outside the ledger:
// gateway dispatch, flash liquidity and token custody. Implementations
// stage all mutations; Commit publishes them and Discard drops them, so
// a failed batch leaves no observable effects.
//
// An Environment instance belongs to exactly one execution and must not
// be shared.
type Environment interface {
	// Gateway resolves a protocol name to its adapter.
	Gateway(name string) (gateway.Gateway, error)

	// FlashProvider resolves a flash-loan provider by name.
	FlashProvider(name string) (FlashProvider, error)

	// Pull moves tokens from an external account into engine custody.
	Pull(token asset.Token, from string, amount uint64) error

	// Push moves tokens from engine custody to an external account.
	Push(token asset.Token, to string, amount uint64) error

	// Held reports the engine's current custody balance of a token.
	Held(token asset.Token) uint64

	// Commit publishes all staged mutations.
	Commit() error

	// Discard drops all staged mutations. Safe to call after Commit.
	Discard()
}

// FlashProvider supplies uncollateralized liquidity for the span of one
// callback. Loan transfers principal into engine custody, invokes cb,
// and fails if its balance has not been restored to principal plus fee
// when cb returns. A cb error aborts the loan and is returned unchanged.
type FlashProvider interface {
	Loan(ctx context.Context, token asset.Token, amount uint64, cb func(principal, fee uint64) error) error
}
