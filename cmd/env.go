package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/rolescout/internal/enrich"
	"github.com/sells-group/rolescout/internal/fetcher"
	"github.com/sells-group/rolescout/internal/pipeline"
	"github.com/sells-group/rolescout/internal/registry"
	"github.com/sells-group/rolescout/internal/resilience"
	"github.com/sells-group/rolescout/internal/store"
	anthropicpkg "github.com/sells-group/rolescout/pkg/anthropic"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "rolescout.db"
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

func initSource() (fetcher.Source, error) {
	switch cfg.Source.Kind {
	case "http":
		return fetcher.NewHTTPSource(fetcher.HTTPOptions{
			BaseURL:          cfg.Source.BaseURL,
			Token:            cfg.Source.Token,
			PageSize:         cfg.Source.PageSize,
			Rate:             rate.Limit(cfg.Source.Rate),
			Burst:            cfg.Source.Burst,
			Timeout:          time.Duration(cfg.Source.TimeoutSecs) * time.Second,
			Retry:            resilience.FromRetryConfig(cfg.Source.MaxRetries, 0, 0, 0, -1),
			BreakerThreshold: cfg.Source.BreakerThreshold,
		}), nil
	case "ftp":
		return fetcher.NewFTPSource(fetcher.FTPOptions{
			URL:     cfg.Source.FTPURL,
			Timeout: time.Duration(cfg.Source.TimeoutSecs) * time.Second,
		}), nil
	default:
		return nil, eris.Errorf("unsupported source kind: %s", cfg.Source.Kind)
	}
}

// loadRules builds the qualification rule tables, merging operator overrides
// when a file is configured.
func loadRules() (*registry.Rules, error) {
	rules := registry.Default()
	overrides, err := registry.LoadOverrides(cfg.Registry.OverridesPath)
	if err != nil {
		return nil, eris.Wrap(err, "load registry overrides")
	}
	rules.Apply(overrides)
	return rules, nil
}

// pipelineEnv holds the initialized store and pipeline used by the
// ingest/requalify commands.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline sets up the store, the source feed client, the assessor, and
// the pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	src, err := initSource()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	rules, err := loadRules()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	enricher := enrich.NewEnricher(st, anthropicpkg.NewClient(cfg.Anthropic.Key), enrich.Options{
		Model:       cfg.Anthropic.Model,
		Timeout:     time.Duration(cfg.Anthropic.TimeoutSecs) * time.Second,
		MaxTokens:   cfg.Anthropic.MaxTokens,
		Temperature: cfg.Anthropic.Temperature,
	})

	p := pipeline.New(st, src, enricher, rules, pipeline.Options{
		RequalifyConcurrency: cfg.Pipeline.RequalifyConcurrency,
	})

	return &pipelineEnv{Store: st, Pipeline: p}, nil
}
