package venue

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/loopfi/routerd/internal/asset"
	"github.com/loopfi/routerd/internal/gateway"
	"github.com/loopfi/routerd/internal/router"
)

// Binder builds the gateway registry for one execution's working state.
// Installed at wiring time; adapters bind to the cloned state so their
// mutations stay inside the execution until commit.
type Binder func(st *State) (*gateway.Registry, error)

// Holder owns the live state and serializes executions against it. One
// execution holds the state exclusively from NewEnv until Commit or
// Discard; the engine's all-or-nothing guarantee rests on that.
type Holder struct {
	mu   sync.Mutex
	live *State
	bind Binder
	log  *zap.SugaredLogger

	// RouterAccount is the engine's custody account in the bank.
	RouterAccount string

	// OnCommit, when set, is called with the freshly published state,
	// e.g. to persist it. Runs while the holder lock is held.
	OnCommit func(st *State) error
}

// NewHolder wraps a live state.
func NewHolder(live *State, bind Binder, log *zap.SugaredLogger) *Holder {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Holder{
		live:          live,
		bind:          bind,
		log:           log,
		RouterAccount: "router",
	}
}

// Live returns a clone of the current live state, for queries that must
// not observe an in-flight execution.
func (h *Holder) Live() *State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.live.Clone()
}

// NewEnv clones the live state and returns the execution environment
// over it. Blocks until any in-flight execution settles.
func (h *Holder) NewEnv(ctx context.Context) (router.Environment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.Lock()

	work := h.live.Clone()
	reg, err := h.bind(work)
	if err != nil {
		h.mu.Unlock()
		return nil, fmt.Errorf("bind gateways: %w", err)
	}

	return &Env{holder: h, work: work, registry: reg}, nil
}

// Env implements router.Environment over a cloned State. All mutations
// land in the clone; Commit publishes it as the new live state.
type Env struct {
	holder   *Holder
	work     *State
	registry *gateway.Registry
	done     bool
}

// State exposes the working state to adapters bound through the Binder
// and to simulations inspecting the outcome.
func (e *Env) State() *State {
	return e.work
}

func (e *Env) Gateway(name string) (gateway.Gateway, error) {
	return e.registry.Get(name)
}

func (e *Env) FlashProvider(name string) (router.FlashProvider, error) {
	v, ok := e.work.Venues[name]
	if !ok {
		return nil, fmt.Errorf("unknown flash-loan provider %q", name)
	}
	return &flashProvider{bank: e.work.Bank, venue: v, borrower: e.holder.RouterAccount}, nil
}

func (e *Env) Pull(token asset.Token, from string, amount uint64) error {
	return e.work.Bank.Transfer(from, e.holder.RouterAccount, token, amount)
}

func (e *Env) Push(token asset.Token, to string, amount uint64) error {
	return e.work.Bank.Transfer(e.holder.RouterAccount, to, token, amount)
}

func (e *Env) Held(token asset.Token) uint64 {
	return e.work.Bank.BalanceOf(e.holder.RouterAccount, token)
}

func (e *Env) Commit() error {
	if e.done {
		return fmt.Errorf("environment already released")
	}
	if e.holder.OnCommit != nil {
		if err := e.holder.OnCommit(e.work); err != nil {
			// Leave the live state untouched; the caller will Discard.
			return fmt.Errorf("persist state: %w", err)
		}
	}
	e.holder.live = e.work
	e.done = true
	e.holder.mu.Unlock()
	return nil
}

func (e *Env) Discard() {
	if e.done {
		return
	}
	e.done = true
	e.holder.mu.Unlock()
}

// flashProvider lends a venue's treasury for the span of one callback
// and reverts unless principal plus fee is back when the callback
// returns.
type flashProvider struct {
	bank     *TokenBank
	venue    *Venue
	borrower string
}

func (p *flashProvider) Loan(ctx context.Context, token asset.Token, amount uint64, cb func(principal, fee uint64) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	start := p.bank.BalanceOf(p.venue.Account, token)
	if start < amount {
		return fmt.Errorf("%w: %s has %d < %d %s",
			ErrInsufficientLiquidity, p.venue.Name, start, amount, token)
	}
	fee := p.venue.FlashFee(amount)

	if err := p.bank.Transfer(p.venue.Account, p.borrower, token, amount); err != nil {
		return err
	}

	if err := cb(amount, fee); err != nil {
		return err
	}

	owed, err := asset.AddChecked(start, fee)
	if err != nil {
		return err
	}
	if end := p.bank.BalanceOf(p.venue.Account, token); end < owed {
		return fmt.Errorf("%s expected %d %s back, has %d", p.venue.Name, owed, token, end)
	}
	return nil
}
