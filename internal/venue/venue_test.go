package venue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopfi/routerd/internal/asset"
)

const (
	usdc = asset.Token("USDC")
	weth = asset.Token("WETH")
)

func TestVenueDepositWithdraw(t *testing.T) {
	v := NewVenue("aave", "aave-treasury", 9)

	assert.Equal(t, uint64(100), v.Deposit("alice", usdc, 100))
	assert.Equal(t, uint64(100), v.SupplyBalance("alice", usdc))

	// Withdraw clamps to the position even when liquidity is plentiful.
	got := v.WithdrawSupply("alice", usdc, 500, 1_000_000)
	assert.Equal(t, uint64(100), got)
	assert.Equal(t, uint64(0), v.SupplyBalance("alice", usdc))
}

func TestVenueWithdrawClampsToLiquidity(t *testing.T) {
	v := NewVenue("aave", "aave-treasury", 0)
	v.DepositCollateral("alice", weth, 10)

	got := v.WithdrawCollateral("alice", weth, 10, 4)
	assert.Equal(t, uint64(4), got)
	assert.Equal(t, uint64(6), v.collateral.get("alice", weth))
}

func TestVenueBorrowRepay(t *testing.T) {
	v := NewVenue("compound", "comp-treasury", 0)

	err := v.Borrow("alice", usdc, 1_000, 500)
	require.ErrorIs(t, err, ErrInsufficientLiquidity)
	assert.Equal(t, uint64(0), v.BorrowBalance("alice", usdc))

	require.NoError(t, v.Borrow("alice", usdc, 1_000, 5_000))
	assert.Equal(t, uint64(1_000), v.BorrowBalance("alice", usdc))

	// Repaying more than owed clamps to the debt.
	assert.Equal(t, uint64(1_000), v.Repay("alice", usdc, 9_999))
	assert.Equal(t, uint64(0), v.BorrowBalance("alice", usdc))

	// Repaying with no debt is a zero-amount no-op.
	assert.Equal(t, uint64(0), v.Repay("alice", usdc, 100))
}

func TestVenueAccrueBorrowInterest(t *testing.T) {
	v := NewVenue("compound", "comp-treasury", 0)
	require.NoError(t, v.Borrow("alice", usdc, 10_000, 100_000))
	require.NoError(t, v.Borrow("bob", usdc, 1, 100_000))
	require.NoError(t, v.Borrow("carol", weth, 50, 100_000))

	v.AccrueBorrowInterest(usdc, 500) // 5%

	assert.Equal(t, uint64(10_500), v.BorrowBalance("alice", usdc))
	assert.Equal(t, uint64(2), v.BorrowBalance("bob", usdc), "interest rounds up")
	assert.Equal(t, uint64(50), v.BorrowBalance("carol", weth), "other tokens untouched")
}

func TestVenueFlashFee(t *testing.T) {
	v := NewVenue("aave", "aave-treasury", 9)
	assert.Equal(t, uint64(1), v.FlashFee(100)) // ceil(0.09)
	assert.Equal(t, uint64(9), v.FlashFee(10_000))
	assert.Equal(t, uint64(0), NewVenue("free", "x", 0).FlashFee(10_000))
}

func TestVenueCloneIsolation(t *testing.T) {
	v := NewVenue("aave", "aave-treasury", 9)
	v.Deposit("alice", usdc, 100)

	cp := v.Clone()
	cp.Deposit("alice", usdc, 900)

	assert.Equal(t, uint64(100), v.SupplyBalance("alice", usdc))
	assert.Equal(t, uint64(1_000), cp.SupplyBalance("alice", usdc))
}

func TestBankTransfer(t *testing.T) {
	b := NewTokenBank()
	b.Mint("alice", usdc, 100)

	require.NoError(t, b.Transfer("alice", "bob", usdc, 60))
	assert.Equal(t, uint64(40), b.BalanceOf("alice", usdc))
	assert.Equal(t, uint64(60), b.BalanceOf("bob", usdc))

	err := b.Transfer("alice", "bob", usdc, 41)
	require.Error(t, err)
	assert.Equal(t, uint64(40), b.BalanceOf("alice", usdc), "failed transfer must not move funds")
}

func TestStateCloneIsolation(t *testing.T) {
	st := NewState()
	st.Bank.Mint("alice", usdc, 100)
	require.NoError(t, st.AddVenue(NewVenue("aave", "aave-treasury", 9)))
	require.NoError(t, st.AddPool(NewPool("univ2", "univ2-acct", usdc, weth, 1_000, 1_000)))

	cp := st.Clone()
	cp.Bank.Mint("alice", usdc, 900)
	cp.Venues["aave"].Deposit("alice", usdc, 5)
	cp.Pools["univ2"].ApplySwap(usdc, 10, 9)

	assert.Equal(t, uint64(100), st.Bank.BalanceOf("alice", usdc))
	assert.Equal(t, uint64(0), st.Venues["aave"].SupplyBalance("alice", usdc))
	assert.Equal(t, uint64(1_000), st.Pools["univ2"].Reserve0)
}

func TestStateRejectsDuplicates(t *testing.T) {
	st := NewState()
	require.NoError(t, st.AddVenue(NewVenue("aave", "a", 0)))
	require.Error(t, st.AddVenue(NewVenue("aave", "b", 0)))

	require.NoError(t, st.AddPool(NewPool("univ2", "x", usdc, weth, 1, 1)))
	require.Error(t, st.AddPool(NewPool("univ2", "y", usdc, weth, 1, 1)))
}
