package venue

import (
	"context"
	"errors"
	"fmt"

	"github.com/loopfi/routerd/internal/asset"
	"github.com/loopfi/routerd/internal/storage/database"
	"github.com/loopfi/routerd/internal/wire"
)

var stateKey = []byte("venue/state")

// snapshot is the serialized form of State. Books are flattened into
// exported maps for the wire codec.
type snapshot struct {
	Balances map[string]map[asset.Token]uint64 `codec:"balances"`
	Venues   []venueSnapshot                   `codec:"venues"`
	Pools    []poolSnapshot                    `codec:"pools"`
}

type venueSnapshot struct {
	Name        string                            `codec:"name"`
	Account     string                            `codec:"account"`
	FlashFeeBps uint32                            `codec:"flash_fee_bps"`
	Supply      map[string]map[asset.Token]uint64 `codec:"supply"`
	Collateral  map[string]map[asset.Token]uint64 `codec:"collateral"`
	Debt        map[string]map[asset.Token]uint64 `codec:"debt"`
}

type poolSnapshot struct {
	Name     string      `codec:"name"`
	Account  string      `codec:"account"`
	Token0   asset.Token `codec:"token0"`
	Token1   asset.Token `codec:"token1"`
	Reserve0 uint64      `codec:"reserve0"`
	Reserve1 uint64      `codec:"reserve1"`
}

// Store persists venue state snapshots in a key-value database.
type Store struct {
	db database.DB
}

// NewStore wraps a database.
func NewStore(db database.DB) *Store {
	return &Store{db: db}
}

// Save writes the state as one snapshot record.
func (s *Store) Save(ctx context.Context, st *State) error {
	snap := snapshot{
		Balances: st.Bank.balances,
		Venues:   make([]venueSnapshot, 0, len(st.Venues)),
		Pools:    make([]poolSnapshot, 0, len(st.Pools)),
	}
	for _, v := range st.Venues {
		snap.Venues = append(snap.Venues, venueSnapshot{
			Name:        v.Name,
			Account:     v.Account,
			FlashFeeBps: v.FlashFeeBps,
			Supply:      v.supply,
			Collateral:  v.collateral,
			Debt:        v.debt,
		})
	}
	for _, p := range st.Pools {
		snap.Pools = append(snap.Pools, poolSnapshot{
			Name:     p.Name,
			Account:  p.Account,
			Token0:   p.Token0,
			Token1:   p.Token1,
			Reserve0: p.Reserve0,
			Reserve1: p.Reserve1,
		})
	}

	raw, err := wire.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode state snapshot: %w", err)
	}
	return s.db.Write(ctx, stateKey, raw)
}

// Load reads the latest snapshot. Returns (nil, nil) when no state has
// been persisted yet.
func (s *Store) Load(ctx context.Context) (*State, error) {
	raw, err := s.db.Read(ctx, stateKey)
	if err != nil {
		if errors.Is(err, database.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var snap snapshot
	if err := wire.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode state snapshot: %w", err)
	}

	st := NewState()
	if snap.Balances != nil {
		st.Bank.balances = snap.Balances
	}
	for _, vs := range snap.Venues {
		v := NewVenue(vs.Name, vs.Account, vs.FlashFeeBps)
		if vs.Supply != nil {
			v.supply = vs.Supply
		}
		if vs.Collateral != nil {
			v.collateral = vs.Collateral
		}
		if vs.Debt != nil {
			v.debt = vs.Debt
		}
		if err := st.AddVenue(v); err != nil {
			return nil, err
		}
	}
	for _, ps := range snap.Pools {
		if err := st.AddPool(NewPool(ps.Name, ps.Account, ps.Token0, ps.Token1, ps.Reserve0, ps.Reserve1)); err != nil {
			return nil, err
		}
	}
	return st, nil
}
