package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/fairhome/fairhome/internal/fetcher"
	"github.com/fairhome/fairhome/internal/store"
)

func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		st, err := store.NewSQLite(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		st.SetBatchSize(cfg.Sync.BatchSize)
		return st, nil
	case "postgres":
		st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
		if err != nil {
			return nil, err
		}
		st.SetBatchSize(cfg.Sync.BatchSize)
		return st, nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func newFetcher() *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		Timeout: time.Duration(cfg.Sync.TimeoutSecs) * time.Second,
	})
}
