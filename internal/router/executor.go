// Package router implements the instruction-execution engine: the
// append-only value ledger, routing of instructions to protocol
// gateways, the arithmetic instructions and the flash-loan orchestrator.
//
// One call to Execute processes one instruction list in strict
// left-to-right order against a fresh Environment. Either every
// instruction succeeds and the environment commits, or the first error
// aborts the batch and every staged effect is discarded.
package router

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/loopfi/routerd/internal/asset"
	"github.com/loopfi/routerd/internal/gateway"
)

// Recorder receives execution outcomes, e.g. for prometheus counters.
type Recorder interface {
	ExecutionFinished(committed bool, instructions, flashLoans int, d time.Duration)
}

// Engine executes instruction batches. Safe for concurrent use: each
// execution runs against its own Environment and ledger.
type Engine struct {
	newEnv func(ctx context.Context) (Environment, error)
	log    *zap.SugaredLogger
	rec    Recorder
}

// Option configures an Engine.
type Option func(*Engine)

// WithRecorder attaches an outcome recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.rec = r }
}

// New creates an engine. newEnv is called once per execution and must
// return an Environment staging all external effects.
func New(newEnv func(ctx context.Context) (Environment, error), log *zap.SugaredLogger, opts ...Option) *Engine {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	e := &Engine{newEnv: newEnv, log: log}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result describes a completed execution.
type Result struct {
	// Digest is the canonical batch digest.
	Digest [32]byte

	// Cells is the final value ledger, in append order.
	Cells []Cell

	// Committed is false for simulations.
	Committed bool

	// FlashLoans is the number of settled flash loans.
	FlashLoans int

	// Duration is wall-clock execution time.
	Duration time.Duration
}

// Execute runs the batch and commits its effects on success.
func (e *Engine) Execute(ctx context.Context, batch Batch) (*Result, error) {
	return e.execute(ctx, batch, true)
}

// Simulate runs the batch against staged state and always discards the
// effects. The returned ledger shows what the batch would do.
func (e *Engine) Simulate(ctx context.Context, batch Batch) (*Result, error) {
	return e.execute(ctx, batch, false)
}

func (e *Engine) execute(ctx context.Context, batch Batch, commit bool) (*Result, error) {
	start := time.Now()

	digest, err := batch.Digest()
	if err != nil {
		return nil, err
	}

	env, err := e.newEnv(ctx)
	if err != nil {
		return nil, err
	}
	// Released on every exit path; a no-op after Commit.
	defer env.Discard()

	x := &execution{
		batch:     batch,
		env:       env,
		ledger:    NewLedger(),
		approvals: make(map[string]map[asset.Token]uint64),
		log:       e.log,
	}

	if err := x.run(ctx, 0); err != nil {
		e.record(false, len(batch), x.flashCount, time.Since(start))
		e.log.Debugw("batch aborted", "digest", digest, "err", err)
		return nil, err
	}

	// The provider enforces repayment before Loan returns, so an
	// outstanding loan here means a misbehaving provider.
	if x.flash.outstanding() {
		e.record(false, len(batch), x.flashCount, time.Since(start))
		return nil, execErrf(len(batch)-1, CodeFlashLoanUnrepaid,
			"flash loan from %s still %s at end of batch", x.flash.provider, x.flash.state)
	}

	if commit {
		if err := env.Commit(); err != nil {
			e.record(false, len(batch), x.flashCount, time.Since(start))
			return nil, err
		}
	}

	d := time.Since(start)
	e.record(commit, len(batch), x.flashCount, d)
	e.log.Debugw("batch finished", "digest", digest,
		"instructions", len(batch), "cells", x.ledger.Len(), "committed", commit)

	return &Result{
		Digest:     digest,
		Cells:      x.ledger.Cells(),
		Committed:  commit,
		FlashLoans: x.flashCount,
		Duration:   d,
	}, nil
}

func (e *Engine) record(committed bool, instructions, flashLoans int, d time.Duration) {
	if e.rec != nil {
		e.rec.ExecutionFinished(committed, instructions, flashLoans, d)
	}
}

// execution is the per-batch state: the ledger, the per-gateway
// allowances granted by Approve, and the flash-loan orchestrator. It
// lives on the stack of one Execute call and is never shared, so a
// re-entrant call from an external provider cannot observe or mutate a
// pending continuation.
type execution struct {
	batch      Batch
	env        Environment
	ledger     *Ledger
	approvals  map[string]map[asset.Token]uint64
	flash      flashLoan
	flashCount int
	log        *zap.SugaredLogger

	// tailDone is set once a flash-loan continuation has executed the
	// remaining instructions, so the suspended outer loop stops.
	tailDone bool
}

// run executes instructions from index `from` to the end of the batch,
// in order, halting at the first error.
func (x *execution) run(ctx context.Context, from int) error {
	for i := from; i < len(x.batch); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		ins := x.batch[i]
		var err error
		if ins.Protocol == RouterProtocol {
			err = x.applyNative(ctx, i, ins.Data)
		} else {
			err = x.applyLending(ctx, i, ins)
		}
		if err != nil {
			return err
		}

		if x.tailDone {
			// Instructions after i already ran inside the flash-loan
			// callback.
			return nil
		}
	}
	return nil
}

func (x *execution) applyNative(ctx context.Context, i int, data []byte) error {
	p, err := DecodeNative(data)
	if err != nil {
		return execErr(i, CodeMalformed, err)
	}

	switch p.Op {
	case OpPullToken:
		return x.pullToken(i, p)
	case OpPushToken:
		return x.pushToken(i, p)
	case OpToOutput:
		x.ledger.Append(Cell{Token: p.Token, Amount: p.Amount, Origin: i, Kind: Virtual})
		return nil
	case OpApprove:
		return x.approve(i, p)
	case OpFlashLoan:
		return x.flashBorrow(ctx, i, p)
	case OpSplit:
		return x.split(i, p)
	case OpAdd:
		return x.combine(i, p, false)
	case OpSubtract:
		return x.combine(i, p, true)
	default:
		return execErrf(i, CodeMalformed, "unhandled native op %s", p.Op)
	}
}

func (x *execution) pullToken(i int, p NativePayload) error {
	if err := x.env.Pull(p.Token, p.Account, p.Amount); err != nil {
		return execErr(i, CodeInsufficientFunds, err)
	}
	x.ledger.Append(Cell{Token: p.Token, Amount: p.Amount, Origin: i, Kind: Real})
	return nil
}

func (x *execution) pushToken(i int, p NativePayload) error {
	cell, err := x.ledger.Get(int(p.A))
	if err != nil {
		return execErr(i, CodeInvalidIndex, err)
	}
	// Virtual cells may be pushed only once real tokens have arrived;
	// the held balance is the ground truth either way.
	if held := x.env.Held(cell.Token); held < cell.Amount {
		return execErrf(i, CodeInsufficientFunds,
			"cell %d wants %d %s, engine holds %d", p.A, cell.Amount, cell.Token, held)
	}
	if err := x.env.Push(cell.Token, p.Account, cell.Amount); err != nil {
		return execErr(i, CodeInsufficientFunds, err)
	}
	return nil
}

func (x *execution) approve(i int, p NativePayload) error {
	cell, err := x.ledger.Get(int(p.A))
	if err != nil {
		return execErr(i, CodeInvalidIndex, err)
	}
	if _, err := x.env.Gateway(p.Gateway); err != nil {
		return execErr(i, CodeMalformed, err)
	}

	grants := x.approvals[p.Gateway]
	if grants == nil {
		grants = make(map[asset.Token]uint64)
		x.approvals[p.Gateway] = grants
	}
	sum, err := asset.AddChecked(grants[cell.Token], cell.Amount)
	if err != nil {
		return execErr(i, CodeMalformed, err)
	}
	grants[cell.Token] = sum
	return nil
}

func (x *execution) split(i int, p NativePayload) error {
	cell, err := x.ledger.Get(int(p.A))
	if err != nil {
		return execErr(i, CodeInvalidIndex, err)
	}
	if p.Bps > asset.BasisPointDenominator {
		return execErrf(i, CodeFractionTooLarge, "%d bps", p.Bps)
	}

	fee, remainder := asset.SplitCeil(cell.Amount, p.Bps)
	// A split only partitions accounting of what is already recorded;
	// the parts inherit the source cell's backing.
	x.ledger.Append(Cell{Token: cell.Token, Amount: fee, Origin: i, Kind: cell.Kind})
	x.ledger.Append(Cell{Token: cell.Token, Amount: remainder, Origin: i, Kind: cell.Kind})
	return nil
}

func (x *execution) combine(i int, p NativePayload, subtract bool) error {
	a, err := x.ledger.Get(int(p.A))
	if err != nil {
		return execErr(i, CodeInvalidIndex, err)
	}
	b, err := x.ledger.Get(int(p.B))
	if err != nil {
		return execErr(i, CodeInvalidIndex, err)
	}
	if a.Token != b.Token {
		return execErrf(i, CodeTokenMismatch, "cell %d is %s, cell %d is %s", p.A, a.Token, p.B, b.Token)
	}

	var amount uint64
	if subtract {
		if a.Amount < b.Amount {
			return execErrf(i, CodeUnderflow, "%d - %d", a.Amount, b.Amount)
		}
		amount = a.Amount - b.Amount
	} else {
		amount, err = asset.AddChecked(a.Amount, b.Amount)
		if err != nil {
			return execErr(i, CodeMalformed, err)
		}
	}

	kind := Virtual
	if a.Kind == Real && b.Kind == Real {
		kind = Real
	}
	x.ledger.Append(Cell{Token: a.Token, Amount: amount, Origin: i, Kind: kind})
	return nil
}

// flashBorrow suspends the instruction stream, requests liquidity and
// resumes the remaining instructions inside the provider callback. The
// continuation is the execution itself plus the resume index; nothing
// about it is observable outside this call frame.
func (x *execution) flashBorrow(ctx context.Context, i int, p NativePayload) error {
	if x.flash.outstanding() {
		return execErrf(i, CodeFlashLoanActive,
			"loan from %s is %s", x.flash.provider, x.flash.state)
	}

	cell, err := x.ledger.Get(int(p.A))
	if err != nil {
		return execErr(i, CodeInvalidIndex, err)
	}
	provider, err := x.env.FlashProvider(p.Provider)
	if err != nil {
		return execErr(i, CodeMalformed, err)
	}

	x.flash = flashLoan{state: flashRequested, provider: p.Provider, token: cell.Token, principal: cell.Amount}

	var cbErr error
	err = provider.Loan(ctx, cell.Token, cell.Amount, func(principal, fee uint64) error {
		// The provider drives this callback; the continuation runs
		// exactly once per loan.
		if x.flash.state != flashRequested {
			reentry := execErrf(i, CodeProtocolError,
				"provider %s invoked the loan callback more than once", p.Provider)
			if cbErr == nil {
				cbErr = reentry
			}
			return reentry
		}

		x.flash.state = flashBorrowed
		x.flash.principal = principal
		x.flash.fee = fee

		x.ledger.Append(Cell{Token: cell.Token, Amount: principal, Origin: i, Kind: Real})

		x.flash.state = flashResumed
		if err := x.run(ctx, i+1); err != nil {
			cbErr = err
			return err
		}
		return nil
	})
	if cbErr != nil {
		// The continuation failed or the provider re-entered the
		// callback; that error wins over the provider's wrapper.
		return cbErr
	}
	if err != nil {
		return execErr(i, CodeFlashLoanUnrepaid, err)
	}
	if x.flash.state != flashResumed {
		// Loan reported success without ever running the callback, so
		// the remaining instructions never executed.
		return execErrf(i, CodeProtocolError,
			"provider %s returned without delivering the loan", p.Provider)
	}

	x.flash.state = flashSettled
	x.flashCount++
	x.tailDone = true
	return nil
}

func (x *execution) applyLending(ctx context.Context, i int, ins Instruction) error {
	if ins.Protocol == "" {
		return execErrf(i, CodeMalformed, "empty protocol name")
	}

	in, err := DecodeLending(ins.Data)
	if err != nil {
		return execErr(i, CodeMalformed, err)
	}

	gw, err := x.env.Gateway(ins.Protocol)
	if err != nil {
		return execErr(i, CodeMalformed, err)
	}

	if in.InputRef != nil {
		cell, err := x.ledger.Get(int(*in.InputRef))
		if err != nil {
			return execErr(i, CodeInvalidIndex, err)
		}
		in.Input = &gateway.Resolved{Token: cell.Token, Amount: cell.Amount}
	}

	out, err := gw.Execute(ctx, &gatewayFunds{x: x, gw: gw}, in)
	if err != nil {
		switch {
		case errors.Is(err, gateway.ErrUnauthorized):
			return execErr(i, CodeUnauthorized, err)
		case errors.Is(err, gateway.ErrInsufficientOutput):
			return execErr(i, CodeInsufficientOutput, err)
		case errors.Is(err, ErrInsufficientFunds):
			return execErr(i, CodeInsufficientFunds, err)
		default:
			return execErr(i, CodeProtocolError, err)
		}
	}

	if out != nil {
		kind := Real
		if out.Virtual {
			kind = Virtual
		}
		x.ledger.Append(Cell{Token: out.Token, Amount: out.Amount, Origin: i, Kind: kind})
	}
	return nil
}

// gatewayFunds is the custody port handed to a gateway for one
// instruction. Take draws on Approve allowances; Give delivers proceeds
// into engine custody.
type gatewayFunds struct {
	x  *execution
	gw gateway.Gateway
}

func (f *gatewayFunds) Take(token asset.Token, amount uint64) error {
	name := f.gw.Name()
	have := f.x.approvals[name][token]
	if have < amount {
		return errUnauthorizedTake(name, token, have, amount)
	}
	if held := f.x.env.Held(token); held < amount {
		return errShortCustody(token, held, amount)
	}
	if err := f.x.env.Push(token, f.gw.Account(), amount); err != nil {
		return err
	}
	f.x.approvals[name][token] = have - amount
	return nil
}

func (f *gatewayFunds) Give(token asset.Token, amount uint64) error {
	return f.x.env.Pull(token, f.gw.Account(), amount)
}
