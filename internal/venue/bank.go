// Package venue provides the in-process execution domain the router
// runs against: a token bank holding every account's balances, lending
// venues with supply/collateral/debt books and flash liquidity, and
// constant-product swap pools. State is cloned per execution and
// published atomically on commit.
package venue

import (
	"fmt"

	"github.com/loopfi/routerd/internal/asset"
)

// TokenBank tracks token balances for every account in the domain. Not
// safe for concurrent use on its own; the Holder serializes access.
type TokenBank struct {
	balances map[string]map[asset.Token]uint64
}

// NewTokenBank returns an empty bank.
func NewTokenBank() *TokenBank {
	return &TokenBank{balances: make(map[string]map[asset.Token]uint64)}
}

// Mint credits an account, used for genesis state and tests.
func (b *TokenBank) Mint(account string, token asset.Token, amount uint64) {
	acct := b.balances[account]
	if acct == nil {
		acct = make(map[asset.Token]uint64)
		b.balances[account] = acct
	}
	acct[token] += amount
}

// BalanceOf returns an account's balance of a token.
func (b *TokenBank) BalanceOf(account string, token asset.Token) uint64 {
	return b.balances[account][token]
}

// Transfer moves tokens between accounts, failing on insufficient
// balance.
func (b *TokenBank) Transfer(from, to string, token asset.Token, amount uint64) error {
	if amount == 0 {
		return nil
	}
	have := b.balances[from][token]
	if have < amount {
		return fmt.Errorf("account %s holds %d < %d %s", from, have, amount, token)
	}
	b.balances[from][token] = have - amount
	b.Mint(to, token, amount)
	return nil
}

// Clone deep-copies the bank.
func (b *TokenBank) Clone() *TokenBank {
	out := NewTokenBank()
	for account, tokens := range b.balances {
		for token, amount := range tokens {
			if amount != 0 {
				out.Mint(account, token, amount)
			}
		}
	}
	return out
}
