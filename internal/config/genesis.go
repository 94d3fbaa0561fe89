package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/loopfi/routerd/internal/asset"
	"github.com/loopfi/routerd/internal/venue"
)

// Genesis seeds the very first venue state of a node. Subsequent starts
// load the persisted snapshot instead.
type Genesis struct {
	Balances []GenesisBalance `json:"balances"`
	Venues   []GenesisVenue   `json:"venues"`
	Pools    []GenesisPool    `json:"pools"`
}

// GenesisBalance mints tokens to an account.
type GenesisBalance struct {
	Account string `json:"account"`
	Token   string `json:"token"`
	Amount  uint64 `json:"amount"`
}

// GenesisVenue declares a lending venue. Liquidity entries are minted to
// the venue account so it can serve borrows and flash loans.
type GenesisVenue struct {
	Name        string           `json:"name"`
	Account     string           `json:"account"`
	FlashFeeBps uint32           `json:"flash_fee_bps"`
	Liquidity   []GenesisBalance `json:"liquidity,omitempty"`
}

// GenesisPool declares a constant-product pool with initial reserves.
type GenesisPool struct {
	Name     string `json:"name"`
	Account  string `json:"account"`
	Token0   string `json:"token0"`
	Token1   string `json:"token1"`
	Reserve0 uint64 `json:"reserve0"`
	Reserve1 uint64 `json:"reserve1"`
}

// LoadGenesis parses a genesis JSON file.
func LoadGenesis(path string) (*Genesis, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis file: %w", err)
	}
	var g Genesis
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("parse genesis file %s: %w", path, err)
	}
	return &g, nil
}

// Build materializes the genesis into a fresh venue state.
func (g *Genesis) Build() (*venue.State, error) {
	st := venue.NewState()

	for _, b := range g.Balances {
		st.Bank.Mint(b.Account, asset.Normalize(asset.Token(b.Token)), b.Amount)
	}

	for _, gv := range g.Venues {
		v := venue.NewVenue(gv.Name, gv.Account, gv.FlashFeeBps)
		if err := st.AddVenue(v); err != nil {
			return nil, err
		}
		for _, liq := range gv.Liquidity {
			token := asset.Normalize(asset.Token(liq.Token))
			st.Bank.Mint(gv.Account, token, liq.Amount)
			v.Deposit(gv.Account, token, liq.Amount)
		}
	}

	for _, gp := range g.Pools {
		t0 := asset.Normalize(asset.Token(gp.Token0))
		t1 := asset.Normalize(asset.Token(gp.Token1))
		if t0 == t1 {
			return nil, fmt.Errorf("pool %s trades %s against itself", gp.Name, t0)
		}
		p := venue.NewPool(gp.Name, gp.Account, t0, t1, gp.Reserve0, gp.Reserve1)
		if err := st.AddPool(p); err != nil {
			return nil, err
		}
		// The pool account holds its reserves so swaps can settle.
		st.Bank.Mint(gp.Account, t0, gp.Reserve0)
		st.Bank.Mint(gp.Account, t1, gp.Reserve1)
	}

	return st, nil
}
