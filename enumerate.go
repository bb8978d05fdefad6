package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// enumerator discovers every compartment reachable from the tenancy
// root, including nested compartments, as a flat de-duplicated set.
type enumerator struct {
	client         APIClient
	retry          retryPolicy
	logger         *zap.Logger
	includeDeleted bool
}

// enumerate walks the compartment forest breadth-first from the
// tenancy root. OCI can return a compartment already seen through a
// different listing call under certain access-control configurations,
// so every child is checked against a visited-set before being queued.
//
// A child-listing failure on any compartment other than the root is
// recorded and the walk continues with the rest of the forest; a
// failure on the root itself is fatal.
func (e *enumerator) enumerate(ctx context.Context, tenancyID, tenancyName string) ([]Compartment, []CollectionFailure, error) {
	root := Compartment{
		ID:             tenancyID,
		Name:           tenancyName,
		LifecycleState: lifecycleActive,
		IsRoot:         true,
	}

	compartments := []Compartment{root}
	var failures []CollectionFailure

	visited := map[string]bool{tenancyID: true}
	queue := []string{tenancyID}

	for len(queue) > 0 {
		parentID := queue[0]
		queue = queue[1:]

		children, err := e.listChildren(ctx, parentID)
		if err != nil {
			if parentID == tenancyID {
				return nil, nil, fmt.Errorf("listing children of tenancy root %s: %w", tenancyID, err)
			}
			e.logger.Warn("compartment child listing failed",
				zap.String("compartmentID", parentID),
				zap.String("kind", string(classifyError(err))),
				zap.Error(err))
			failures = append(failures, newFailure(scopeCompartment, parentID, "ListChildCompartments", err))
			continue
		}

		for _, child := range children {
			if visited[child.ID] {
				continue
			}
			visited[child.ID] = true

			if child.LifecycleState == lifecycleDeleted {
				// Retained so later orphaned resources are explainable,
				// but never recursed into.
				if e.includeDeleted {
					compartments = append(compartments, child)
				}
				continue
			}

			compartments = append(compartments, child)
			queue = append(queue, child.ID)
		}
	}

	e.logger.Info("compartment enumeration complete",
		zap.Int("compartments", len(compartments)),
		zap.Int("failures", len(failures)))

	return compartments, failures, nil
}

// listChildren exhausts the paginated child listing for one parent.
func (e *enumerator) listChildren(ctx context.Context, parentID string) ([]Compartment, error) {
	var children []Compartment
	var page *string

	for {
		var resp CompartmentPage
		err := e.retry.do(ctx, "ListChildCompartments", func() error {
			var listErr error
			resp, listErr = e.client.ListChildCompartments(ctx, parentID, page)
			return listErr
		})
		if err != nil {
			return nil, err
		}

		children = append(children, resp.Items...)

		if resp.NextPage == nil {
			return children, nil
		}
		page = resp.NextPage
	}
}
