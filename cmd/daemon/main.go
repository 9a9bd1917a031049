// SPDX-License-Identifier: MIT

// Command daemon runs the metatree service: it keeps a local catalog of
// biodegradation reactions fetched from enviPath, derives reaction
// templates and blueprints, and serves them over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/metatree-dev/metatree/internal/api"
	"github.com/metatree-dev/metatree/internal/cache"
	"github.com/metatree-dev/metatree/internal/config"
	"github.com/metatree-dev/metatree/internal/jobs"
	xglog "github.com/metatree-dev/metatree/internal/log"
	"github.com/metatree-dev/metatree/internal/mapping"
	"github.com/metatree-dev/metatree/internal/store"
)

var (
	version   = "v0.1.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	refreshOnStart := flag.Bool("refresh", false, "run a refresh before serving")
	exportMapping := flag.String("export-mapping", "", "write the atom-mapping work list to this file and exit")
	applyMapping := flag.String("apply-mapping", "", "merge mapped SMILES from this file (.json or .smi) and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("metatree %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	cfg := config.FromEnv()

	xglog.Configure(xglog.Config{
		Level:   cfg.LogLevel,
		Service: "metatree",
	})
	logger := xglog.WithComponent("daemon")

	if err := cfg.Validate(); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.invalid").
			Msg("configuration rejected")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, options{
		refreshOnStart: *refreshOnStart,
		exportMapping:  *exportMapping,
		applyMapping:   *applyMapping,
	}); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "daemon.failed").
			Msg("daemon exited with error")
	}
}

type options struct {
	refreshOnStart bool
	exportMapping  string
	applyMapping   string
}

func run(ctx context.Context, cfg config.AppConfig, opts options) error {
	logger := xglog.WithComponent("daemon")

	disk, err := store.NewDiskStore(cfg.DataDir)
	if err != nil {
		return err
	}
	blueprints, err := store.OpenBlueprintStore(cfg.BadgerDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := blueprints.Close(); err != nil {
			logger.Warn().Err(err).Msg("close blueprint store")
		}
	}()
	catalog, err := store.OpenCatalog(cfg.CatalogPath, store.DefaultSQLiteConfig())
	if err != nil {
		return err
	}
	defer func() {
		if err := catalog.Close(); err != nil {
			logger.Warn().Err(err).Msg("close catalog")
		}
	}()

	runner, err := jobs.NewRunner(jobs.Config{
		EnviPathHost:  cfg.EnviPathHost,
		Packages:      cfg.Packages,
		FetchLimit:    cfg.FetchLimit,
		RetryAttempts: cfg.RetryAttempts,
		RetryBackoff:  cfg.RetryBackoff,
	}, jobs.Stores{Disk: disk, Blueprints: blueprints, Catalog: catalog})
	if err != nil {
		return err
	}

	if err := runner.Restore(ctx); err != nil {
		logger.Warn().
			Err(err).
			Str("event", "restore.failed").
			Msg("starting with empty state")
	}

	// one-shot mapping modes for the offline atom-mapping workflow
	if opts.exportMapping != "" {
		reactions, err := catalog.ListReactions(ctx, "")
		if err != nil {
			return err
		}
		if err := mapping.NewManager(reactions).SaveExport(ctx, opts.exportMapping); err != nil {
			return err
		}
		logger.Info().
			Str("event", "mapping.exported").
			Str("path", opts.exportMapping).
			Int("reactions", len(reactions)).
			Msg("mapping work list written")
		return nil
	}
	if opts.applyMapping != "" {
		entries, err := mapping.LoadMapped(opts.applyMapping)
		if err != nil {
			return err
		}
		result, err := runner.ApplyMapping(ctx, entries)
		if err != nil {
			return err
		}
		logger.Info().
			Str("event", "mapping.applied").
			Int("applied", result.Applied).
			Int("blueprints", result.Blueprints).
			Msg("mapping output merged")
		return nil
	}

	if opts.refreshOnStart {
		if _, err := runner.Refresh(ctx); err != nil {
			logger.Error().
				Err(err).
				Str("event", "refresh.startup_failed").
				Msg("initial refresh failed, serving restored state")
		}
	}
	if cfg.RefreshInterval > 0 {
		go runner.RunPeriodic(ctx, cfg.RefreshInterval)
	}

	results, err := buildCache(cfg)
	if err != nil {
		return err
	}

	server := api.New(api.Options{
		Runner:     runner,
		Catalog:    catalog,
		Blueprints: blueprints,
		Results:    results,
		CacheTTL:   cfg.CacheTTL,
	})

	logger.Info().
		Str("event", "daemon.start").
		Str("listen", cfg.ListenAddr).
		Strs("packages", cfg.Packages).
		Msg("metatree starting")
	return server.ListenAndServe(ctx, cfg.ListenAddr)
}

func buildCache(cfg config.AppConfig) (cache.Cache, error) {
	switch cfg.CacheBackend {
	case config.CacheRedis:
		return cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, xglog.WithComponent("cache"))
	case config.CacheNone:
		return cache.NewNoOpCache(), nil
	default:
		return cache.NewMemoryCache(time.Minute), nil
	}
}
