package venue

import (
	"errors"
	"fmt"

	"github.com/loopfi/routerd/internal/asset"
)

// ErrInsufficientLiquidity: a venue's treasury cannot cover a borrow or
// flash loan.
var ErrInsufficientLiquidity = errors.New("insufficient venue liquidity")

// book is per-user, per-token accounting.
type book map[string]map[asset.Token]uint64

func (bk book) get(user string, token asset.Token) uint64 {
	return bk[user][token]
}

func (bk book) add(user string, token asset.Token, amount uint64) {
	m := bk[user]
	if m == nil {
		m = make(map[asset.Token]uint64)
		bk[user] = m
	}
	m[token] += amount
}

func (bk book) sub(user string, token asset.Token, amount uint64) {
	bk[user][token] -= amount
}

func (bk book) clone() book {
	out := make(book, len(bk))
	for user, tokens := range bk {
		m := make(map[asset.Token]uint64, len(tokens))
		for token, amount := range tokens {
			m[token] = amount
		}
		out[user] = m
	}
	return out
}

// Venue is one in-process lending venue. Token custody lives in the
// bank under the venue's treasury Account; the books only record who is
// owed what. Adapters move custody first and update books second.
type Venue struct {
	// Name keys the venue in State and in the gateway registry.
	Name string

	// Account is the venue's treasury account in the bank.
	Account string

	// FlashFeeBps is the flash-loan fee in basis points.
	FlashFeeBps uint32

	supply     book
	collateral book
	debt       book
}

// NewVenue creates an empty venue.
func NewVenue(name, account string, flashFeeBps uint32) *Venue {
	return &Venue{
		Name:        name,
		Account:     account,
		FlashFeeBps: flashFeeBps,
		supply:      make(book),
		collateral:  make(book),
		debt:        make(book),
	}
}

// Deposit records a supply position. Custody must already sit in the
// treasury.
func (v *Venue) Deposit(user string, token asset.Token, amount uint64) uint64 {
	v.supply.add(user, token, amount)
	return amount
}

// DepositCollateral records a collateral position.
func (v *Venue) DepositCollateral(user string, token asset.Token, amount uint64) uint64 {
	v.collateral.add(user, token, amount)
	return amount
}

// WithdrawCollateral releases collateral, clamped to the user's position
// and to available liquidity. Returns the actual amount released; the
// caller moves custody.
func (v *Venue) WithdrawCollateral(user string, token asset.Token, requested, liquidity uint64) uint64 {
	actual := min64(requested, v.collateral.get(user, token))
	actual = min64(actual, liquidity)
	if actual > 0 {
		v.collateral.sub(user, token, actual)
	}
	return actual
}

// WithdrawSupply releases a supply position with the same clamping.
func (v *Venue) WithdrawSupply(user string, token asset.Token, requested, liquidity uint64) uint64 {
	actual := min64(requested, v.supply.get(user, token))
	actual = min64(actual, liquidity)
	if actual > 0 {
		v.supply.sub(user, token, actual)
	}
	return actual
}

// Borrow records debt. Fails when the treasury cannot cover the
// principal; borrows do not clamp.
func (v *Venue) Borrow(user string, token asset.Token, amount, liquidity uint64) error {
	if liquidity < amount {
		return fmt.Errorf("%w: %s has %d < %d %s", ErrInsufficientLiquidity, v.Name, liquidity, amount, token)
	}
	v.debt.add(user, token, amount)
	return nil
}

// Repay reduces debt, clamped to the outstanding amount. Returns the
// actual amount repaid; the caller moves custody for exactly that.
func (v *Venue) Repay(user string, token asset.Token, amount uint64) uint64 {
	actual := min64(amount, v.debt.get(user, token))
	if actual > 0 {
		v.debt.sub(user, token, actual)
	}
	return actual
}

// SupplyBalance returns the user's current supply position.
func (v *Venue) SupplyBalance(user string, token asset.Token) uint64 {
	return v.supply.get(user, token)
}

// BorrowBalance returns the user's current debt including accrued
// interest.
func (v *Venue) BorrowBalance(user string, token asset.Token) uint64 {
	return v.debt.get(user, token)
}

// AccrueBorrowInterest grows every borrower's debt in a token by rateBps.
// Linear accrual; enough to exercise "repay exactly the current debt"
// flows without modeling any real venue's curve.
func (v *Venue) AccrueBorrowInterest(token asset.Token, rateBps uint32) {
	for user, tokens := range v.debt {
		if owed := tokens[token]; owed > 0 {
			interest, _ := asset.SplitCeil(owed, rateBps)
			v.debt.add(user, token, interest)
		}
	}
}

// FlashFee returns the fee owed on a principal.
func (v *Venue) FlashFee(principal uint64) uint64 {
	fee, _ := asset.SplitCeil(principal, v.FlashFeeBps)
	return fee
}

// Clone deep-copies the venue.
func (v *Venue) Clone() *Venue {
	return &Venue{
		Name:        v.Name,
		Account:     v.Account,
		FlashFeeBps: v.FlashFeeBps,
		supply:      v.supply.clone(),
		collateral:  v.collateral.clone(),
		debt:        v.debt.clone(),
	}
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
