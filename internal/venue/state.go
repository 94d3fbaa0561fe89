package venue

import (
	"fmt"

	"github.com/loopfi/routerd/internal/asset"
)

// State bundles everything one execution runs against: the bank, the
// lending venues and the swap pools. Executions clone it, mutate the
// clone and publish it back through the Holder on commit, which is what
// makes a batch all-or-nothing.
type State struct {
	Bank   *TokenBank
	Venues map[string]*Venue
	Pools  map[string]*Pool
}

// NewState returns an empty state.
func NewState() *State {
	return &State{
		Bank:   NewTokenBank(),
		Venues: make(map[string]*Venue),
		Pools:  make(map[string]*Pool),
	}
}

// AddVenue registers a venue. Duplicate names are a wiring bug.
func (s *State) AddVenue(v *Venue) error {
	if _, dup := s.Venues[v.Name]; dup {
		return fmt.Errorf("venue %q already exists", v.Name)
	}
	s.Venues[v.Name] = v
	return nil
}

// AddPool registers a pool.
func (s *State) AddPool(p *Pool) error {
	if _, dup := s.Pools[p.Name]; dup {
		return fmt.Errorf("pool %q already exists", p.Name)
	}
	s.Pools[p.Name] = p
	return nil
}

// Clone deep-copies the state.
func (s *State) Clone() *State {
	out := &State{
		Bank:   s.Bank.Clone(),
		Venues: make(map[string]*Venue, len(s.Venues)),
		Pools:  make(map[string]*Pool, len(s.Pools)),
	}
	for name, v := range s.Venues {
		out.Venues[name] = v.Clone()
	}
	for name, p := range s.Pools {
		out.Pools[name] = p.Clone()
	}
	return out
}

// Liquidity returns a venue's spendable treasury balance.
func (s *State) Liquidity(v *Venue, token asset.Token) uint64 {
	return s.Bank.BalanceOf(v.Account, token)
}
