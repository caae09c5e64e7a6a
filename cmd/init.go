package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/rankpulse/diagnose-cli/internal/cluster"
	"github.com/rankpulse/diagnose-cli/internal/diagnose"
	"github.com/rankpulse/diagnose-cli/internal/hypothesis"
	"github.com/rankpulse/diagnose-cli/internal/metrics"
	"github.com/rankpulse/diagnose-cli/internal/store"
)

// rollupSource is the read/write surface over metric rollups that the import
// and diagnose commands need. Both metric backends satisfy it.
type rollupSource interface {
	metrics.Source
	InsertSearchDaily(ctx context.Context, siteID string, rows []metrics.SearchDaily) error
	InsertAnalyticsDaily(ctx context.Context, siteID string, rows []metrics.AnalyticsDaily) error
	InsertPageChecks(ctx context.Context, siteID string, rows []metrics.PageCheck) error
	Migrate(ctx context.Context) error
	Close() error
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "diagnose.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initSource opens the rollup tables alongside the given store. With Postgres
// the store's pool is shared; with SQLite the same file is opened again.
func initSource(ctx context.Context, st store.Store) (rollupSource, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "diagnose.db"
		}
		return metrics.NewSQLite(dsn)
	case "postgres":
		if pg, ok := st.(*store.PostgresStore); ok {
			return metrics.NewPostgresWithPool(pg.Pool()), nil
		}
		return metrics.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initRules() (cluster.RuleSet, error) {
	if cfg.Clusters.RulesFile == "" {
		return cluster.DefaultRuleSet(), nil
	}
	return cluster.LoadRuleSet(cfg.Clusters.RulesFile)
}

func initCatalog() error {
	if cfg.Catalog.OverridesFile == "" {
		return nil
	}
	o, err := hypothesis.LoadCatalogOverrides(cfg.Catalog.OverridesFile)
	if err != nil {
		return err
	}
	return o.Apply()
}

// pipelineEnv bundles everything a command needs to run diagnosis.
type pipelineEnv struct {
	Store    store.Store
	Source   rollupSource
	Pipeline *diagnose.Pipeline
}

func (e *pipelineEnv) Close() {
	if e.Source != nil {
		_ = e.Source.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	if err := cfg.Diagnosis.Validate(); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}

	src, err := initSource(ctx, st)
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	if err := src.Migrate(ctx); err != nil {
		src.Close() //nolint:errcheck
		st.Close()  //nolint:errcheck
		return nil, eris.Wrap(err, "migrate rollups")
	}

	rules, err := initRules()
	if err != nil {
		src.Close() //nolint:errcheck
		st.Close()  //nolint:errcheck
		return nil, err
	}

	if err := initCatalog(); err != nil {
		src.Close() //nolint:errcheck
		st.Close()  //nolint:errcheck
		return nil, err
	}

	return &pipelineEnv{
		Store:    st,
		Source:   src,
		Pipeline: diagnose.New(cfg, st, src, rules),
	}, nil
}
