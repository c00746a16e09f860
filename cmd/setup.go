package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dividalabs/litigio-cli/internal/cache"
	"github.com/dividalabs/litigio-cli/internal/collect"
	"github.com/dividalabs/litigio-cli/internal/config"
	"github.com/dividalabs/litigio-cli/internal/store"
	"github.com/dividalabs/litigio-cli/pkg/pdpj"
)

// env bundles everything a collection command needs.
type env struct {
	Client    *pdpj.Client
	Caches    *cache.Store
	ErrLog    *cache.ErrorLog
	Bus       *collect.Bus
	Ledger    store.Store
	Collector *collect.Collector
}

func (e *env) Close() {
	if e.Ledger != nil {
		if err := e.Ledger.Close(); err != nil {
			zap.L().Warn("ledger close", zap.Error(err))
		}
	}
}

// initCollector builds the client, caches, ledger, and collector from config.
func initCollector(ctx context.Context, c *config.Config, outputDir string) (*env, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if outputDir == "" {
		outputDir = c.Collect.OutputDir
	}

	client, err := pdpj.New(pdpj.Options{
		Tokens:        c.API.Tokens,
		BaseURL:       c.API.BaseURL,
		Tribunal:      c.API.Tribunal,
		ClassID:       c.API.ClassID,
		PageSize:      c.API.PageSize,
		MaxRetries:    c.API.MaxRetries,
		BackoffBase:   time.Duration(c.API.BackoffBaseMS) * time.Millisecond,
		Timeout:       time.Duration(c.API.TimeoutSecs) * time.Second,
		GateWait:      time.Duration(c.API.GateWaitSecs) * time.Second,
		RatePerSecond: c.API.RatePerSecond,
		RateBurst:     c.API.RateBurst,
	})
	if err != nil {
		return nil, err
	}

	caches, err := cache.Open(c.Cache.Dir)
	if err != nil {
		return nil, err
	}
	errlog := cache.NewErrorLog(c.Cache.ErrorLogCap)
	bus := collect.NewBus(256)

	ledger, err := store.Open(ctx, store.Options{
		Driver:      c.Store.Driver,
		Path:        c.Store.Path,
		DatabaseURL: c.Store.DatabaseURL,
	})
	if err != nil {
		return nil, err
	}

	collector := collect.New(client, caches, errlog, bus, ledger, collect.Options{
		OutputDir:          outputDir,
		ClassID:            c.API.ClassID,
		MaxPages:           c.Collect.MaxPages,
		MaxItems:           c.Collect.MaxItems,
		OversizedThreshold: c.Collect.OversizedThreshold,
		PriorityClassCode:  c.Collect.PriorityClassCode,
		MaxPerTier:         c.Collect.MaxPerTier,
		MaxPerEntity:       c.Collect.MaxPerEntity,
		MaxBranches:        c.Collect.MaxBranches,
		Workers:            c.Workers(),
		DownloadDetails:    c.Collect.DownloadDetails,
		SearchDocument:     c.Collect.SearchDocument,
		SearchBranches:     c.Collect.SearchBranches,
		SearchName:         c.Collect.SearchName,
		Blacklist:          c.Collect.Blacklist,
	})

	return &env{
		Client:    client,
		Caches:    caches,
		ErrLog:    errlog,
		Bus:       bus,
		Ledger:    ledger,
		Collector: collector,
	}, nil
}
