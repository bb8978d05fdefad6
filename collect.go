package main

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// compartmentResult is everything collected from a single compartment,
// including the failures recorded along the way.
type compartmentResult struct {
	Infrastructures []ExadataInfrastructure
	VmClusters      []VmCluster
	Failures        []CollectionFailure
}

// collector lists Exadata infrastructures and VM clusters for one
// compartment at a time and resolves nested detail per resource.
//
// Detail enrichment is best-effort: a failed secondary fetch leaves
// the base record intact with the enrichment fields unset and records
// the failure instead of propagating it. The detailSem channel is
// shared across all compartment workers so the total number of
// in-flight detail fetches never exceeds the configured cap.
type collector struct {
	client    APIClient
	retry     retryPolicy
	logger    *zap.Logger
	detailSem chan struct{}
	progress  *walkProgress
}

func newCollector(client APIClient, retry retryPolicy, maxDetailWorkers int, logger *zap.Logger, progress *walkProgress) *collector {
	if maxDetailWorkers <= 0 {
		maxDetailWorkers = 1
	}
	return &collector{
		client:    client,
		retry:     retry,
		logger:    logger,
		detailSem: make(chan struct{}, maxDetailWorkers),
		progress:  progress,
	}
}

// collectCompartment gathers all infrastructures and VM clusters of
// one compartment. A compartment-wide listing failure is recorded
// against the compartment and leaves sibling compartments untouched.
func (c *collector) collectCompartment(ctx context.Context, compartmentID string) compartmentResult {
	var result compartmentResult

	infras, err := c.listInfrastructures(ctx, compartmentID)
	if err != nil {
		c.logger.Warn("infrastructure listing failed",
			zap.String("compartmentID", compartmentID),
			zap.String("kind", string(classifyError(err))),
			zap.Error(err))
		result.Failures = append(result.Failures, newFailure(scopeCompartment, compartmentID, "ListExadataInfrastructures", err))
		c.progress.recordError()
		return result
	}

	var wg sync.WaitGroup
	var mu sync.Mutex

	for i := range infras {
		infra := infras[i]

		if infra.LifecycleState != lifecycleActive {
			c.logger.Debug("infrastructure not active, collecting children anyway",
				zap.String("infrastructureID", infra.ID),
				zap.String("lifecycleState", infra.LifecycleState))
		}

		wg.Add(1)
		go func() {
			defer wg.Done()

			enriched, detailFailure := c.enrichInfrastructure(ctx, infra)

			clusters, clusterFailures := c.collectVmClusters(ctx, compartmentID, infra.ID)

			mu.Lock()
			defer mu.Unlock()
			result.Infrastructures = append(result.Infrastructures, enriched)
			result.VmClusters = append(result.VmClusters, clusters...)
			if detailFailure != nil {
				result.Failures = append(result.Failures, *detailFailure)
			}
			result.Failures = append(result.Failures, clusterFailures...)
		}()
	}

	wg.Wait()

	c.progress.recordResources(int64(len(result.Infrastructures) + len(result.VmClusters)))
	return result
}

// listInfrastructures exhausts the paginated infrastructure listing
// for one compartment. Zero resources terminate cleanly on the first
// empty, token-less page.
func (c *collector) listInfrastructures(ctx context.Context, compartmentID string) ([]ExadataInfrastructure, error) {
	var infras []ExadataInfrastructure
	var page *string

	for {
		var resp InfrastructurePage
		err := c.retry.do(ctx, "ListExadataInfrastructures", func() error {
			var listErr error
			resp, listErr = c.client.ListExadataInfrastructures(ctx, compartmentID, page)
			return listErr
		})
		if err != nil {
			return nil, err
		}

		infras = append(infras, resp.Items...)

		if resp.NextPage == nil {
			return infras, nil
		}
		page = resp.NextPage
	}
}

// enrichInfrastructure fetches OCPU allocation and unallocated
// resources for one infrastructure. Failure returns the base record
// unchanged plus a recorded failure.
func (c *collector) enrichInfrastructure(ctx context.Context, infra ExadataInfrastructure) (ExadataInfrastructure, *CollectionFailure) {
	select {
	case c.detailSem <- struct{}{}:
	case <-ctx.Done():
		failure := newFailure(scopeInfrastructure, infra.ID, "GetInfrastructureDetail", ctx.Err())
		return infra, &failure
	}
	defer func() { <-c.detailSem }()

	var detail InfrastructureDetail
	err := c.retry.do(ctx, "GetInfrastructureDetail", func() error {
		var getErr error
		detail, getErr = c.client.GetInfrastructureDetail(ctx, infra.ID)
		return getErr
	})
	if err != nil {
		c.logger.Debug("infrastructure detail fetch failed",
			zap.String("infrastructureID", infra.ID),
			zap.Error(err))
		c.progress.recordError()
		failure := newFailure(scopeInfrastructure, infra.ID, "GetInfrastructureDetail", err)
		return infra, &failure
	}

	infra.TotalOcpus = detail.TotalOcpus
	infra.ConsumedOcpus = detail.ConsumedOcpus
	infra.UnallocatedCpus = detail.UnallocatedCpus
	return infra, nil
}

// collectVmClusters lists VM clusters for one infrastructure and
// enriches each with IORM and patch detail. Listing once per
// infrastructure avoids quadratic compartment scans; clusters hosted
// in a different compartment than their infrastructure still attach to
// the correct parent through the InfrastructureID on the record.
func (c *collector) collectVmClusters(ctx context.Context, compartmentID, infrastructureID string) ([]VmCluster, []CollectionFailure) {
	var failures []CollectionFailure

	clusters, err := c.listVmClusters(ctx, compartmentID, infrastructureID)
	if err != nil {
		c.logger.Warn("vm cluster listing failed",
			zap.String("infrastructureID", infrastructureID),
			zap.String("kind", string(classifyError(err))),
			zap.Error(err))
		c.progress.recordError()
		return nil, []CollectionFailure{newFailure(scopeInfrastructure, infrastructureID, "ListVmClusters", err)}
	}

	for i := range clusters {
		if clusters[i].InfrastructureID == "" {
			clusters[i].InfrastructureID = infrastructureID
		}

		detail, failure := c.enrichVmCluster(ctx, clusters[i].ID)
		if failure != nil {
			failures = append(failures, *failure)
			continue
		}
		clusters[i].Iorm = detail.Iorm
		clusters[i].Patches = detail.Patches
	}

	return clusters, failures
}

func (c *collector) listVmClusters(ctx context.Context, compartmentID, infrastructureID string) ([]VmCluster, error) {
	var clusters []VmCluster
	var page *string

	for {
		var resp VmClusterPage
		err := c.retry.do(ctx, "ListVmClusters", func() error {
			var listErr error
			resp, listErr = c.client.ListVmClusters(ctx, compartmentID, infrastructureID, page)
			return listErr
		})
		if err != nil {
			return nil, err
		}

		clusters = append(clusters, resp.Items...)

		if resp.NextPage == nil {
			return clusters, nil
		}
		page = resp.NextPage
	}
}

// enrichVmCluster fetches IORM configuration and recent patches for
// one VM cluster, bounded by the shared detail semaphore.
func (c *collector) enrichVmCluster(ctx context.Context, vmClusterID string) (VmClusterDetail, *CollectionFailure) {
	select {
	case c.detailSem <- struct{}{}:
	case <-ctx.Done():
		failure := newFailure(scopeVmCluster, vmClusterID, "GetVmClusterDetail", ctx.Err())
		return VmClusterDetail{}, &failure
	}
	defer func() { <-c.detailSem }()

	var detail VmClusterDetail
	err := c.retry.do(ctx, "GetVmClusterDetail", func() error {
		var getErr error
		detail, getErr = c.client.GetVmClusterDetail(ctx, vmClusterID)
		return getErr
	})
	if err != nil {
		c.logger.Debug("vm cluster detail fetch failed",
			zap.String("vmClusterID", vmClusterID),
			zap.Error(err))
		c.progress.recordError()
		failure := newFailure(scopeVmCluster, vmClusterID, "GetVmClusterDetail", err)
		return VmClusterDetail{}, &failure
	}

	return detail, nil
}
