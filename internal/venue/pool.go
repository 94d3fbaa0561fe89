package venue

import (
	"fmt"
	"math/big"

	"github.com/loopfi/routerd/internal/asset"
)

// swapFeeNumerator / swapFeeDenominator encode the 30 bps swap fee:
// amountIn is credited at 997/1000.
const (
	swapFeeNumerator   = 997
	swapFeeDenominator = 1000
)

// Pool is a constant-product swap pool between two tokens. Custody sits
// in the bank under Account; reserves mirror it for pricing.
type Pool struct {
	// Name keys the pool in State.
	Name string

	// Account is the pool's custody account in the bank.
	Account string

	Token0 asset.Token
	Token1 asset.Token

	Reserve0 uint64
	Reserve1 uint64
}

// NewPool creates a pool with initial reserves.
func NewPool(name, account string, token0, token1 asset.Token, reserve0, reserve1 uint64) *Pool {
	return &Pool{
		Name:     name,
		Account:  account,
		Token0:   token0,
		Token1:   token1,
		Reserve0: reserve0,
		Reserve1: reserve1,
	}
}

// Has reports whether the pool trades the token.
func (p *Pool) Has(token asset.Token) bool {
	return token == p.Token0 || token == p.Token1
}

// Other returns the counterpart token.
func (p *Pool) Other(token asset.Token) asset.Token {
	if token == p.Token0 {
		return p.Token1
	}
	return p.Token0
}

func (p *Pool) reserves(tokenIn asset.Token) (in, out uint64) {
	if tokenIn == p.Token0 {
		return p.Reserve0, p.Reserve1
	}
	return p.Reserve1, p.Reserve0
}

// AmountOut prices an exact-input swap:
// out = in*997*reserveOut / (reserveIn*1000 + in*997).
// big.Int intermediates; the products overflow uint64 for realistic
// reserves.
func (p *Pool) AmountOut(tokenIn asset.Token, amountIn uint64) (uint64, error) {
	if !p.Has(tokenIn) {
		return 0, fmt.Errorf("pool %s does not trade %s", p.Name, tokenIn)
	}
	reserveIn, reserveOut := p.reserves(tokenIn)
	if amountIn == 0 || reserveIn == 0 || reserveOut == 0 {
		return 0, nil
	}

	inWithFee := new(big.Int).Mul(new(big.Int).SetUint64(amountIn), big.NewInt(swapFeeNumerator))
	numerator := new(big.Int).Mul(inWithFee, new(big.Int).SetUint64(reserveOut))
	denominator := new(big.Int).Mul(new(big.Int).SetUint64(reserveIn), big.NewInt(swapFeeDenominator))
	denominator.Add(denominator, inWithFee)

	return new(big.Int).Div(numerator, denominator).Uint64(), nil
}

// AmountIn prices an exact-output swap:
// in = reserveIn*out*1000 / ((reserveOut-out)*997) + 1.
func (p *Pool) AmountIn(tokenOut asset.Token, amountOut uint64) (uint64, error) {
	if !p.Has(tokenOut) {
		return 0, fmt.Errorf("pool %s does not trade %s", p.Name, tokenOut)
	}
	// reserves() keys on the first token, so calling it with tokenOut
	// yields (reserveOut, reserveIn).
	reserveOut, reserveIn := p.reserves(tokenOut)
	if amountOut >= reserveOut {
		return 0, fmt.Errorf("%w: pool %s reserve %d <= requested %d %s",
			ErrInsufficientLiquidity, p.Name, reserveOut, amountOut, tokenOut)
	}

	numerator := new(big.Int).Mul(new(big.Int).SetUint64(reserveIn), new(big.Int).SetUint64(amountOut))
	numerator.Mul(numerator, big.NewInt(swapFeeDenominator))
	denominator := new(big.Int).Mul(
		new(big.Int).SetUint64(reserveOut-amountOut), big.NewInt(swapFeeNumerator))

	in := new(big.Int).Div(numerator, denominator)
	in.Add(in, big.NewInt(1))
	if !in.IsUint64() {
		return 0, fmt.Errorf("required input for %d %s is unrepresentable", amountOut, tokenOut)
	}
	return in.Uint64(), nil
}

// ApplySwap updates the reserves after a settled swap. The caller has
// already moved custody through the bank.
func (p *Pool) ApplySwap(tokenIn asset.Token, amountIn, amountOut uint64) {
	if tokenIn == p.Token0 {
		p.Reserve0 += amountIn
		p.Reserve1 -= amountOut
	} else {
		p.Reserve1 += amountIn
		p.Reserve0 -= amountOut
	}
}

// Clone copies the pool.
func (p *Pool) Clone() *Pool {
	cp := *p
	return &cp
}
