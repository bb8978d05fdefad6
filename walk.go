package main

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Walker runs the full discovery walk: compartment enumeration first,
// then per-compartment collection in parallel, then aggregation over
// the fully-populated, immutable inputs.
type Walker struct {
	client   APIClient
	cfg      *AppConfig
	logger   *zap.Logger
	progress *walkProgress
}

func NewWalker(client APIClient, cfg *AppConfig, logger *zap.Logger) *Walker {
	return &Walker{
		client:   client,
		cfg:      cfg,
		logger:   logger,
		progress: newWalkProgress(cfg.General.Progress),
	}
}

// Run produces one complete inventory snapshot for the tenancy.
//
// Enumeration must complete before any collection starts; the
// compartment set is the unit of parallelism for the collectors. On
// cancellation the walker stops dispatching new compartments, lets
// in-flight work finish, and discards partial results instead of
// returning a misleadingly complete snapshot.
func (w *Walker) Run(ctx context.Context, tenancyID, tenancyName string) (*InventorySnapshot, error) {
	retry := w.cfg.RetryPolicy()
	retry.onRetry = w.progress.recordRetry

	enum := &enumerator{
		client:         w.client,
		retry:          retry,
		logger:         w.logger,
		includeDeleted: w.cfg.Walk.IncludeDeletedCompartments,
	}

	compartments, failures, err := enum.enumerate(ctx, tenancyID, tenancyName)
	if err != nil {
		return nil, err
	}

	filtered := ApplyCompartmentFilter(compartments, w.cfg.Filters)
	w.logger.Info("collecting compartments",
		zap.Int("selected", len(filtered)),
		zap.Int("enumerated", len(compartments)))

	w.progress.start(int64(len(filtered)))
	defer w.progress.stop()

	coll := newCollector(w.client, retry, w.cfg.Walk.MaxDetailWorkers, w.logger, w.progress)

	var (
		wg              sync.WaitGroup
		mu              sync.Mutex
		infrastructures []ExadataInfrastructure
		vmClusters      []VmCluster
	)

	sem := make(chan struct{}, w.cfg.Walk.MaxCompartmentWorkers)

	for _, compartment := range filtered {
		if compartment.LifecycleState == lifecycleDeleted {
			continue
		}

		// Stop dispatching once cancellation is requested; workers
		// already running complete or fail on their own.
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(compartmentID string) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				return
			}

			result := coll.collectCompartment(ctx, compartmentID)

			mu.Lock()
			infrastructures = append(infrastructures, result.Infrastructures...)
			vmClusters = append(vmClusters, result.VmClusters...)
			failures = append(failures, result.Failures...)
			mu.Unlock()

			w.progress.recordCompartmentDone()
		}(compartment.ID)
	}

	wg.Wait()

	if ctx.Err() != nil {
		w.logger.Warn("walk cancelled, discarding partial results", zap.Error(ctx.Err()))
		return nil, ctx.Err()
	}

	snapshot := aggregate(tenancyID, compartments, infrastructures, vmClusters, failures)

	w.logger.Info("walk complete",
		zap.Int("compartments", len(snapshot.Compartments)),
		zap.Int("infrastructures", len(snapshot.Infrastructures)),
		zap.Int("vmClusters", len(snapshot.VmClusters)),
		zap.Int("orphanedClusters", snapshot.OrphanedClusterCount()),
		zap.Int("recordedFailures", len(snapshot.Failures)))

	return snapshot, nil
}
