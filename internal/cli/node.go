package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/loopfi/routerd/internal/config"
	"github.com/loopfi/routerd/internal/gateway"
	"github.com/loopfi/routerd/internal/gateway/poolgate"
	"github.com/loopfi/routerd/internal/gateway/swapgate"
	"github.com/loopfi/routerd/internal/logging"
	"github.com/loopfi/routerd/internal/metrics"
	"github.com/loopfi/routerd/internal/router"
	"github.com/loopfi/routerd/internal/storage"
	"github.com/loopfi/routerd/internal/storage/database"
	"github.com/loopfi/routerd/internal/storage/history"
	"github.com/loopfi/routerd/internal/storage/tracestore"
	"github.com/loopfi/routerd/internal/venue"
)

// node holds every long-lived component of a running routerd instance.
type node struct {
	cfg     *config.Config
	log     *zap.SugaredLogger
	manager database.Manager
	holder  *venue.Holder
	engine  *router.Engine
	traces  *tracestore.Store
	journal history.Store
	metrics *metrics.Recorder
}

// buildNode assembles storage, state, gateways and the engine from the
// configuration. Call close when done.
func buildNode(cfg *config.Config, log *zap.SugaredLogger) (*node, error) {
	manager, err := storage.NewManager(cfg.Storage.Backend, cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	n := &node{cfg: cfg, log: log, manager: manager}
	if err := n.buildState(); err != nil {
		manager.Close()
		return nil, err
	}
	if err := n.buildStores(); err != nil {
		manager.Close()
		return nil, err
	}

	n.metrics = metrics.NewRecorder()
	n.engine = router.New(n.holder.NewEnv, logging.Named(log, "engine"),
		router.WithRecorder(n.metrics))
	return n, nil
}

// buildState loads the persisted venue state or materializes genesis on
// first start, then wraps it in the holder that serializes executions.
func (n *node) buildState() error {
	db, err := n.manager.OpenDB("venue")
	if err != nil {
		return fmt.Errorf("open venue db: %w", err)
	}
	store := venue.NewStore(db)

	ctx := context.Background()
	st, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load venue state: %w", err)
	}
	if st == nil {
		if n.cfg.GenesisFile != "" {
			gen, err := config.LoadGenesis(n.cfg.GenesisFile)
			if err != nil {
				return err
			}
			st, err = gen.Build()
			if err != nil {
				return fmt.Errorf("build genesis state: %w", err)
			}
			n.log.Infow("state seeded from genesis", "file", n.cfg.GenesisFile,
				"venues", len(st.Venues), "pools", len(st.Pools))
		} else {
			st = venue.NewState()
			n.log.Warnw("starting with empty state; no snapshot and no genesis file")
		}
	}

	n.holder = venue.NewHolder(st, bindGateways, logging.Named(n.log, "venue"))
	n.holder.OnCommit = func(st *venue.State) error {
		return store.Save(ctx, st)
	}
	return nil
}

func (n *node) buildStores() error {
	tdb, err := n.manager.OpenDB("traces")
	if err != nil {
		return fmt.Errorf("open trace db: %w", err)
	}
	var comp tracestore.Compressor
	if n.cfg.Storage.TraceCompression == "none" {
		comp = &tracestore.NoCompressor{}
	}
	n.traces, err = tracestore.New(tdb, tracestore.Options{
		Compressor: comp,
		CacheSize:  n.cfg.Storage.TraceCacheSize,
	})
	if err != nil {
		return fmt.Errorf("open trace store: %w", err)
	}

	n.journal, err = history.Open(n.cfg.History.Driver, n.cfg.History.DSN)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	return nil
}

func (n *node) close() {
	if n.journal != nil {
		n.journal.Close()
	}
	if n.manager != nil {
		n.manager.Close()
	}
}

// bindGateways builds the registry for one execution's working state:
// one lending gateway per venue, one swap gateway per pool.
func bindGateways(st *venue.State) (*gateway.Registry, error) {
	reg := gateway.NewRegistry()
	for name := range st.Venues {
		gw, err := poolgate.New(st, name, nil)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(gw); err != nil {
			return nil, err
		}
	}
	for name := range st.Pools {
		gw, err := swapgate.New(st, name)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(gw); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
