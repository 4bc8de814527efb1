package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/race-edge/internal/backtest"
	"github.com/yourusername/race-edge/internal/config"
	"github.com/yourusername/race-edge/internal/database"
	"github.com/yourusername/race-edge/internal/detailcache"
	"github.com/yourusername/race-edge/internal/entrystore"
	"github.com/yourusername/race-edge/internal/features"
	"github.com/yourusername/race-edge/internal/logger"
	"github.com/yourusername/race-edge/internal/predictor"
	"github.com/yourusername/race-edge/internal/repository"
	"github.com/yourusername/race-edge/internal/strategy"
)

type dependencies struct {
	db      *database.DB
	store   *entrystore.Store
	engine  *backtest.Engine
	closers []func() error
}

func (d *dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		_ = d.closers[i]()
	}
	if d.db != nil {
		d.db.Close()
	}
}

// setupDependencies connects the database, loads history up to the end of
// the window and assembles the engine
func setupDependencies(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*dependencies, error) {
	btConfig, err := backtest.FromConfig(&cfg.Backtest, cfg.Stats)
	if err != nil {
		return nil, err
	}
	weights, err := features.ParseWeights(cfg.Features.Weights)
	if err != nil {
		return nil, err
	}
	if len(cfg.Features.Weights) > 0 {
		btConfig.Weights = weights
	}

	deps := &dependencies{}
	deps.db, err = database.Initialize(ctx, cfg)
	if err != nil {
		return nil, err
	}
	repos, err := repository.NewRepositories(deps.db, cfg.Database.InsertBatchSize)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to initialize repositories: %w", err)
	}

	// statistics need every race before the window, so the store is open at the start
	deps.store, err = repository.LoadStore(ctx, repos.Entries, time.Time{}, btConfig.End)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}

	var payouts backtest.PayoutSource = repos.Payouts
	if cfg.Backtest.PayoutFile != "" {
		if payouts, err = backtest.LoadPayoutFile(cfg.Backtest.PayoutFile); err != nil {
			deps.Close()
			return nil, err
		}
	}

	var profiles features.ProfileSource
	if cfg.Cache.Path != "" {
		cache := detailcache.Load(cfg.Cache.Path, log)
		log.WithField("profiles", cache.Len()).Info("Detail cache loaded")
		profiles = cache
	}

	pred, closer, err := buildPredictor(&cfg.Predictor, log)
	if err != nil {
		deps.Close()
		return nil, err
	}
	if closer != nil {
		deps.closers = append(deps.closers, closer)
	}

	policy, err := strategy.New(cfg.Backtest.Policy, backtest.PolicyParams(&cfg.Backtest))
	if err != nil {
		deps.Close()
		return nil, err
	}

	deps.engine, err = backtest.NewEngine(btConfig, deps.store, profiles, payouts, pred, policy,
		logger.NewBacktestLogger(log))
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	return deps, nil
}

// buildPredictor loads the local model or dials the remote one, memoising
// predictions when a cache TTL is set
func buildPredictor(cfg *config.PredictorConfig, log *logrus.Logger) (predictor.Predictor, func() error, error) {
	var (
		pred    predictor.Predictor
		closer  func() error
		version = cfg.ModelVersion
	)
	if cfg.Remote() {
		client, err := predictor.NewRemoteClient(predictor.RemoteConfig{
			Address:      cfg.GRPCAddress,
			ModelVersion: cfg.ModelVersion,
			Timeout:      cfg.Timeout,
		}, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create predictor client: %w", err)
		}
		pred, closer = client, client.Close
	} else {
		model, err := predictor.LoadLinearModel(cfg.ModelPath)
		if err != nil {
			return nil, nil, err
		}
		if model.Version != "" {
			version = model.Version
		}
		pred = model
	}

	if cfg.CacheTTL > 0 {
		pred = predictor.NewCached(pred, version, cfg.CacheTTL)
	}
	log.WithFields(logrus.Fields{"remote": cfg.Remote(), "model_version": version}).Info("Predictor ready")
	return pred, closer, nil
}
