package main

import (
	"context"
	"net/http"
	"time"

	"github.com/qamarero/placesync/internal/config"
	"github.com/qamarero/placesync/internal/pipeline"
	"github.com/qamarero/placesync/internal/reconcile"
	"github.com/qamarero/placesync/internal/source"
	"github.com/qamarero/placesync/pkg/outscraper"
)

// runtime bundles the wired components the enrichment commands share.
type runtime struct {
	store    *reconcile.PostgresStore
	reader   *source.Reader
	enricher outscraper.Client
	pipe     *pipeline.Pipeline
}

// initRuntime validates config, connects the store, and wires the
// pipeline. The caller must Close.
func initRuntime(ctx context.Context) (*runtime, error) {
	if err := cfg.Validate("store", "outscraper"); err != nil {
		return nil, err
	}

	store, err := reconcile.Connect(ctx, cfg.Store.DatabaseURL, cfg.Store.MaxConns, cfg.Store.MinConns)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}

	enricher := outscraper.NewClient(cfg.Outscraper.APIKey,
		outscraper.WithBaseURL(cfg.Outscraper.BaseURL),
		outscraper.WithLanguage(cfg.Outscraper.Language),
		outscraper.WithRegion(cfg.Outscraper.Region),
		outscraper.WithRateLimit(cfg.Outscraper.RatePerSec),
		outscraper.WithHTTPClient(httpClientWithTimeout(cfg.Outscraper.TimeoutSecs)),
	)

	reader := source.NewReader(store.Pool())

	return &runtime{
		store:    store,
		reader:   reader,
		enricher: enricher,
		pipe:     pipeline.New(reader, enricher, store),
	}, nil
}

// Close releases the store pool.
func (r *runtime) Close() {
	r.store.Close()
}

func httpClientWithTimeout(secs int) *http.Client {
	if secs <= 0 {
		secs = 60
	}
	return &http.Client{Timeout: time.Duration(secs) * time.Second}
}

// pipelineOptions merges config defaults with per-invocation overrides.
func pipelineOptions(pc config.PipelineConfig, maxRecords, delayMs int, stopOnError bool, ids []string) pipeline.Options {
	opts := pipeline.Options{
		MaxRecords:  pc.MaxRecords,
		Delay:       time.Duration(pc.DelayMs) * time.Millisecond,
		StopOnError: pc.StopOnError,
		IDs:         ids,
	}
	if maxRecords > 0 {
		opts.MaxRecords = maxRecords
	}
	if delayMs >= 0 {
		opts.Delay = time.Duration(delayMs) * time.Millisecond
	}
	if stopOnError {
		opts.StopOnError = true
	}
	return opts
}
