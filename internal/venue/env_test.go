package venue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopfi/routerd/internal/gateway"
	"github.com/loopfi/routerd/internal/router"
)

func newTestHolder(t *testing.T) *Holder {
	t.Helper()
	st := NewState()
	st.Bank.Mint("alice", usdc, 1_000)

	v := NewVenue("aave", "aave-treasury", 9)
	require.NoError(t, st.AddVenue(v))
	st.Bank.Mint("aave-treasury", usdc, 100_000)

	bind := func(st *State) (*gateway.Registry, error) {
		return gateway.NewRegistry(), nil
	}
	return NewHolder(st, bind, nil)
}

func TestHolderCommitPublishes(t *testing.T) {
	h := newTestHolder(t)
	engine := router.New(h.NewEnv, nil)

	b := router.NewBatch()
	in := b.PullToken(100, usdc, "alice")
	b.PushToken(in, "bob")
	batch, err := b.Build()
	require.NoError(t, err)

	_, err = engine.Execute(context.Background(), batch)
	require.NoError(t, err)

	live := h.Live()
	assert.Equal(t, uint64(900), live.Bank.BalanceOf("alice", usdc))
	assert.Equal(t, uint64(100), live.Bank.BalanceOf("bob", usdc))
}

func TestHolderAbortLeavesLiveUntouched(t *testing.T) {
	h := newTestHolder(t)
	engine := router.New(h.NewEnv, nil)

	b := router.NewBatch()
	b.PullToken(100, usdc, "alice")
	b.PushToken(router.CellRef(9), "bob") // aborts after the pull staged
	batch, err := b.Build()
	require.NoError(t, err)

	_, err = engine.Execute(context.Background(), batch)
	require.ErrorIs(t, err, router.ErrInvalidIndex)

	live := h.Live()
	assert.Equal(t, uint64(1_000), live.Bank.BalanceOf("alice", usdc))
	assert.Equal(t, uint64(0), live.Bank.BalanceOf("bob", usdc))
}

func TestHolderSimulateDiscards(t *testing.T) {
	h := newTestHolder(t)
	engine := router.New(h.NewEnv, nil)

	b := router.NewBatch()
	in := b.PullToken(100, usdc, "alice")
	b.PushToken(in, "bob")
	batch, err := b.Build()
	require.NoError(t, err)

	res, err := engine.Simulate(context.Background(), batch)
	require.NoError(t, err)
	assert.False(t, res.Committed)
	require.Len(t, res.Cells, 1)

	live := h.Live()
	assert.Equal(t, uint64(1_000), live.Bank.BalanceOf("alice", usdc))
}

func TestHolderOnCommitFailureAborts(t *testing.T) {
	h := newTestHolder(t)
	h.OnCommit = func(st *State) error {
		return assert.AnError
	}
	engine := router.New(h.NewEnv, nil)

	b := router.NewBatch()
	in := b.PullToken(100, usdc, "alice")
	b.PushToken(in, "bob")
	batch, err := b.Build()
	require.NoError(t, err)

	_, err = engine.Execute(context.Background(), batch)
	require.Error(t, err)

	live := h.Live()
	assert.Equal(t, uint64(1_000), live.Bank.BalanceOf("alice", usdc),
		"persist failure must not publish the working state")
}

func TestFlashProviderRepaidThroughEngine(t *testing.T) {
	h := newTestHolder(t)
	engine := router.New(h.NewEnv, nil)

	b := router.NewBatch()
	want := b.ToOutput(10_000, usdc)
	principal := b.FlashLoan("aave", want)
	fee := b.PullToken(9, usdc, "alice") // ceil(10000 * 9 / 10000)
	owed := b.Add(principal, fee)
	b.PushToken(owed, "aave-treasury")
	batch, err := b.Build()
	require.NoError(t, err)

	res, err := engine.Execute(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 1, res.FlashLoans)

	live := h.Live()
	assert.Equal(t, uint64(100_009), live.Bank.BalanceOf("aave-treasury", usdc))
	assert.Equal(t, uint64(991), live.Bank.BalanceOf("alice", usdc))
}

func TestFlashProviderShortRepaymentReverts(t *testing.T) {
	h := newTestHolder(t)
	engine := router.New(h.NewEnv, nil)

	b := router.NewBatch()
	want := b.ToOutput(10_000, usdc)
	principal := b.FlashLoan("aave", want)
	b.PushToken(principal, "aave-treasury") // principal back, fee missing
	batch, err := b.Build()
	require.NoError(t, err)

	_, err = engine.Execute(context.Background(), batch)
	require.ErrorIs(t, err, router.ErrFlashLoanUnrepaid)

	live := h.Live()
	assert.Equal(t, uint64(100_000), live.Bank.BalanceOf("aave-treasury", usdc))
	assert.Equal(t, uint64(1_000), live.Bank.BalanceOf("alice", usdc))
}

func TestFlashProviderExceedsLiquidity(t *testing.T) {
	h := newTestHolder(t)
	engine := router.New(h.NewEnv, nil)

	b := router.NewBatch()
	want := b.ToOutput(200_000, usdc) // treasury holds 100k
	b.FlashLoan("aave", want)
	batch, err := b.Build()
	require.NoError(t, err)

	_, err = engine.Execute(context.Background(), batch)
	require.ErrorIs(t, err, router.ErrFlashLoanUnrepaid)
}

func TestHolderSerializesExecutions(t *testing.T) {
	h := newTestHolder(t)
	engine := router.New(h.NewEnv, nil)

	b := router.NewBatch()
	in := b.PullToken(10, usdc, "alice")
	b.PushToken(in, "bob")
	batch, err := b.Build()
	require.NoError(t, err)

	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			_, err := engine.Execute(context.Background(), batch)
			done <- err
		}()
	}
	for i := 0; i < 8; i++ {
		require.NoError(t, <-done)
	}

	live := h.Live()
	assert.Equal(t, uint64(920), live.Bank.BalanceOf("alice", usdc))
	assert.Equal(t, uint64(80), live.Bank.BalanceOf("bob", usdc))
}
