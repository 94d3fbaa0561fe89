// Package swapgate adapts a constant-product swap pool to the gateway
// capability set. Only Swap and SwapExactOut are supported.
package swapgate

import (
	"context"
	"fmt"

	"github.com/loopfi/routerd/internal/gateway"
	"github.com/loopfi/routerd/internal/venue"
	"github.com/loopfi/routerd/internal/wire"
)

// Gateway exposes one pool bound to an execution's working state.
type Gateway struct {
	pool *venue.Pool
}

// New binds the named pool in st.
func New(st *venue.State, name string) (*Gateway, error) {
	p, ok := st.Pools[name]
	if !ok {
		return nil, fmt.Errorf("no pool %q in state", name)
	}
	return &Gateway{pool: p}, nil
}

func (g *Gateway) Name() string {
	return g.pool.Name
}

func (g *Gateway) Account() string {
	return g.pool.Account
}

func (g *Gateway) Execute(ctx context.Context, funds gateway.Funds, in gateway.Instruction) (*gateway.Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch in.Op {
	case gateway.OpSwap:
		return g.swapExactIn(funds, in)
	case gateway.OpSwapExactOut:
		return g.swapExactOut(funds, in)
	default:
		return nil, fmt.Errorf("pool %s does not support %s", g.pool.Name, in.Op)
	}
}

// swapExactIn sells the referenced input cell for at least in.Amount of
// in.Token.
func (g *Gateway) swapExactIn(funds gateway.Funds, in gateway.Instruction) (*gateway.Output, error) {
	if in.Input == nil {
		return nil, fmt.Errorf("swap on %s requires an input cell", g.pool.Name)
	}
	tokenIn, amountIn := in.Input.Token, in.Input.Amount
	tokenOut, minOut := in.Token, in.Amount

	if !g.pool.Has(tokenIn) || !g.pool.Has(tokenOut) || tokenIn == tokenOut {
		return nil, fmt.Errorf("pool %s does not trade %s -> %s", g.pool.Name, tokenIn, tokenOut)
	}

	out, err := g.pool.AmountOut(tokenIn, amountIn)
	if err != nil {
		return nil, err
	}
	if out < minOut {
		return nil, fmt.Errorf("%w: %s yields %d %s < minimum %d",
			gateway.ErrInsufficientOutput, g.pool.Name, out, tokenOut, minOut)
	}

	if err := funds.Take(tokenIn, amountIn); err != nil {
		return nil, err
	}
	if err := funds.Give(tokenOut, out); err != nil {
		return nil, err
	}
	g.pool.ApplySwap(tokenIn, amountIn, out)

	return &gateway.Output{Token: tokenOut, Amount: out}, nil
}

// swapExactOut buys exactly in.Amount of in.Token, spending at most the
// referenced input cell.
func (g *Gateway) swapExactOut(funds gateway.Funds, in gateway.Instruction) (*gateway.Output, error) {
	if in.Input == nil {
		return nil, fmt.Errorf("swap on %s requires an input cell", g.pool.Name)
	}
	tokenIn, maxIn := in.Input.Token, in.Input.Amount
	tokenOut, exactOut := in.Token, in.Amount

	if !g.pool.Has(tokenIn) || !g.pool.Has(tokenOut) || tokenIn == tokenOut {
		return nil, fmt.Errorf("pool %s does not trade %s -> %s", g.pool.Name, tokenIn, tokenOut)
	}

	needed, err := g.pool.AmountIn(tokenOut, exactOut)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gateway.ErrInsufficientOutput, err)
	}
	if needed > maxIn {
		return nil, fmt.Errorf("%w: %s needs %d %s > budget %d",
			gateway.ErrInsufficientOutput, g.pool.Name, needed, tokenIn, maxIn)
	}

	if err := funds.Take(tokenIn, needed); err != nil {
		return nil, err
	}
	if err := funds.Give(tokenOut, exactOut); err != nil {
		return nil, err
	}
	g.pool.ApplySwap(tokenIn, needed, exactOut)

	return &gateway.Output{Token: tokenOut, Amount: exactOut}, nil
}

type authPayload struct {
	User   string `codec:"user"`
	Action string `codec:"action"`
}

func (g *Gateway) Authorize(user string, ins []gateway.Instruction) ([]gateway.AuthCall, error) {
	payload, err := wire.Marshal(authPayload{User: user, Action: "approve"})
	if err != nil {
		return nil, err
	}
	return []gateway.AuthCall{{Target: g.pool.Account, Payload: payload}}, nil
}

func (g *Gateway) Deauthorize(user string, ins []gateway.Instruction) ([]gateway.AuthCall, error) {
	payload, err := wire.Marshal(authPayload{User: user, Action: "revoke"})
	if err != nil {
		return nil, err
	}
	return []gateway.AuthCall{{Target: g.pool.Account, Payload: payload}}, nil
}
