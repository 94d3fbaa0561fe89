// Package orders is the trigger/order collaborator that wraps the
// engine: it decides whether an order should fire, how much of it to
// execute this iteration, and when it is complete. The engine only
// executes whatever instruction list this layer supplies.
package orders

import (
	"fmt"

	"github.com/loopfi/routerd/internal/asset"
)

// VenueView is the read surface the trigger evaluates against. The live
// venue state satisfies it.
type VenueView interface {
	SupplyBalance(user string, token asset.Token) uint64
	BorrowBalance(user string, token asset.Token) uint64
}

// StaticParams describe one order. They never change across iterations;
// per-iteration amounts are derived from them.
type StaticParams struct {
	Venue     string      `codec:"venue"`
	SellToken asset.Token `codec:"sell_token"`
	BuyToken  asset.Token `codec:"buy_token"`

	// TotalAmount is chunked across NumChunks iterations.
	TotalAmount uint64 `codec:"total_amount"`
	NumChunks   uint32 `codec:"num_chunks"`

	// MinBuyRateBps prices the minimum acceptable output:
	// minBuy = sellAmount * MinBuyRateBps / 10000.
	MinBuyRateBps uint32 `codec:"min_buy_rate_bps"`

	// MaxLTVBps, when nonzero, gates execution on the owner's
	// loan-to-value at the venue staying at or below this bound.
	MaxLTVBps uint32 `codec:"max_ltv_bps,omitempty"`
}

// Validate rejects parameter sets no iteration could execute.
func (p StaticParams) Validate() error {
	if p.NumChunks == 0 {
		return fmt.Errorf("order needs at least one chunk")
	}
	if p.TotalAmount == 0 {
		return fmt.Errorf("order has zero total amount")
	}
	if p.SellToken == p.BuyToken {
		return fmt.Errorf("order sells and buys the same token %s", p.SellToken)
	}
	if p.MinBuyRateBps > asset.BasisPointDenominator {
		return fmt.Errorf("min buy rate %d exceeds %d bps", p.MinBuyRateBps, asset.BasisPointDenominator)
	}
	return nil
}

// ChunkAmount returns iteration's share of total: iterations 0..n-2 get
// floor(total/n), the last iteration gets the remainder, and anything
// past the last yields 0.
func ChunkAmount(total uint64, numChunks, iteration uint32) uint64 {
	if numChunks == 0 || iteration >= numChunks {
		return 0
	}
	base := total / uint64(numChunks)
	if iteration == numChunks-1 {
		return total - uint64(numChunks-1)*base
	}
	return base
}

// ShouldExecute reports whether the order may fire now and, when it may
// not, the reason.
func ShouldExecute(params StaticParams, owner string, iteration uint32, view VenueView) (bool, string) {
	if err := params.Validate(); err != nil {
		return false, err.Error()
	}
	if iteration >= params.NumChunks {
		return false, "order complete"
	}

	if params.MaxLTVBps != 0 {
		debt := view.BorrowBalance(owner, params.SellToken)
		supply := view.SupplyBalance(owner, params.BuyToken)
		if supply == 0 {
			if debt > 0 {
				return false, "no collateral backing outstanding debt"
			}
		} else {
			// LTV in bps = debt * 10000 / supply, same-unit valuation.
			ltv := debt * asset.BasisPointDenominator / supply
			if ltv > uint64(params.MaxLTVBps) {
				return false, fmt.Sprintf("ltv %d bps exceeds bound %d bps", ltv, params.MaxLTVBps)
			}
		}
	}

	return true, ""
}

// CalculateExecution returns this iteration's sell amount and the
// minimum acceptable buy amount.
func CalculateExecution(params StaticParams, owner string, iteration uint32) (sellAmount, minBuyAmount uint64) {
	sellAmount = ChunkAmount(params.TotalAmount, params.NumChunks, iteration)
	if sellAmount == 0 {
		return 0, 0
	}
	minBuyAmount, _ = asset.SplitCeil(sellAmount, params.MinBuyRateBps)
	return sellAmount, minBuyAmount
}

// IsComplete reports whether every chunk has executed.
func IsComplete(params StaticParams, owner string, iteration uint32) bool {
	return iteration >= params.NumChunks
}
