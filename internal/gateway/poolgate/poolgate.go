// Package poolgate adapts an in-process lending venue to the gateway
// capability set. Withdraw- and repay-style operations clamp to the
// user's position and report the actual amount performed.
package poolgate

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/loopfi/routerd/internal/asset"
	"github.com/loopfi/routerd/internal/gateway"
	"github.com/loopfi/routerd/internal/venue"
	"github.com/loopfi/routerd/internal/wire"
)

// Gateway exposes one venue. Bound to an execution's working state, so
// its mutations stay staged until the batch commits.
type Gateway struct {
	st  *venue.State
	v   *venue.Venue
	log *zap.SugaredLogger
}

// New binds the named venue in st.
func New(st *venue.State, name string, log *zap.SugaredLogger) (*Gateway, error) {
	v, ok := st.Venues[name]
	if !ok {
		return nil, fmt.Errorf("no venue %q in state", name)
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Gateway{st: st, v: v, log: log}, nil
}

func (g *Gateway) Name() string {
	return g.v.Name
}

func (g *Gateway) Account() string {
	return g.v.Account
}

// resolve applies the input-cell override: when the engine resolved an
// InputRef, its (token, amount) replaces the instruction's own fields.
func resolve(in gateway.Instruction) (asset.Token, uint64) {
	if in.Input != nil {
		return in.Input.Token, in.Input.Amount
	}
	return in.Token, in.Amount
}

func (g *Gateway) Execute(ctx context.Context, funds gateway.Funds, in gateway.Instruction) (*gateway.Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	token, amount := resolve(in)

	switch in.Op {
	case gateway.OpDeposit:
		if err := funds.Take(token, amount); err != nil {
			return nil, err
		}
		actual := g.v.Deposit(in.User, token, amount)
		return &gateway.Output{Token: token, Amount: actual}, nil

	case gateway.OpDepositCollateral:
		if err := funds.Take(token, amount); err != nil {
			return nil, err
		}
		actual := g.v.DepositCollateral(in.User, token, amount)
		return &gateway.Output{Token: token, Amount: actual}, nil

	case gateway.OpWithdrawCollateral:
		liquidity := g.st.Liquidity(g.v, token)
		actual := g.v.WithdrawCollateral(in.User, token, amount, liquidity)
		if actual > 0 {
			if err := funds.Give(token, actual); err != nil {
				return nil, err
			}
		}
		if actual < amount {
			g.log.Debugw("withdraw clamped", "venue", g.v.Name, "user", in.User,
				"requested", amount, "actual", actual)
		}
		return &gateway.Output{Token: token, Amount: actual}, nil

	case gateway.OpBorrow:
		liquidity := g.st.Liquidity(g.v, token)
		if err := g.v.Borrow(in.User, token, amount, liquidity); err != nil {
			return nil, fmt.Errorf("%w: %v", gateway.ErrInsufficientOutput, err)
		}
		if err := funds.Give(token, amount); err != nil {
			return nil, err
		}
		return &gateway.Output{Token: token, Amount: amount}, nil

	case gateway.OpRepay:
		actual := g.v.Repay(in.User, token, amount)
		if actual > 0 {
			if err := funds.Take(token, actual); err != nil {
				return nil, err
			}
		}
		return &gateway.Output{Token: token, Amount: actual}, nil

	case gateway.OpGetSupplyBalance:
		return &gateway.Output{Token: token, Amount: g.v.SupplyBalance(in.User, token), Virtual: true}, nil

	case gateway.OpGetBorrowBalance:
		return &gateway.Output{Token: token, Amount: g.v.BorrowBalance(in.User, token), Virtual: true}, nil

	default:
		return nil, fmt.Errorf("venue %s does not support %s", g.v.Name, in.Op)
	}
}

// authPayload is the permission record a user signs off-band before a
// batch may act on their positions.
type authPayload struct {
	User   string `codec:"user"`
	Action string `codec:"action"`
}

func (g *Gateway) Authorize(user string, ins []gateway.Instruction) ([]gateway.AuthCall, error) {
	return g.authCalls(user, "delegate")
}

func (g *Gateway) Deauthorize(user string, ins []gateway.Instruction) ([]gateway.AuthCall, error) {
	return g.authCalls(user, "revoke")
}

func (g *Gateway) authCalls(user, action string) ([]gateway.AuthCall, error) {
	payload, err := wire.Marshal(authPayload{User: user, Action: action})
	if err != nil {
		return nil, err
	}
	return []gateway.AuthCall{{Target: g.v.Account, Payload: payload}}, nil
}
