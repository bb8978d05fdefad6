package main

import (
	"sort"
	"time"
)

// aggregate assembles the collected pieces into one immutable
// snapshot. Inputs are copied, never mutated, so running aggregation
// twice over the same collections yields identical snapshots apart
// from the timestamp.
//
// A VM cluster whose referenced infrastructure is absent from the
// collected set is retained and marked orphaned rather than dropped:
// inventory completeness for audit purposes outweighs strict tree
// validity.
func aggregate(tenancyID string, compartments []Compartment, infrastructures []ExadataInfrastructure, vmClusters []VmCluster, failures []CollectionFailure) *InventorySnapshot {
	snapshot := &InventorySnapshot{
		TenancyID:       tenancyID,
		GeneratedAt:     time.Now().UTC(),
		Compartments:    dedupeCompartments(compartments),
		Infrastructures: dedupeInfrastructures(infrastructures),
		Failures:        append([]CollectionFailure(nil), failures...),
	}

	infraIndex := make(map[string]bool, len(snapshot.Infrastructures))
	for _, infra := range snapshot.Infrastructures {
		infraIndex[infra.ID] = true
	}

	clusters := dedupeVmClusters(vmClusters)
	for i := range clusters {
		clusters[i].Orphaned = !infraIndex[clusters[i].InfrastructureID]
	}
	snapshot.VmClusters = clusters

	sort.Slice(snapshot.Compartments, func(i, j int) bool {
		return snapshot.Compartments[i].ID < snapshot.Compartments[j].ID
	})
	sort.Slice(snapshot.Infrastructures, func(i, j int) bool {
		return snapshot.Infrastructures[i].ID < snapshot.Infrastructures[j].ID
	})
	sort.Slice(snapshot.VmClusters, func(i, j int) bool {
		return snapshot.VmClusters[i].ID < snapshot.VmClusters[j].ID
	})
	sort.Slice(snapshot.Failures, func(i, j int) bool {
		if snapshot.Failures[i].ResourceID != snapshot.Failures[j].ResourceID {
			return snapshot.Failures[i].ResourceID < snapshot.Failures[j].ResourceID
		}
		return snapshot.Failures[i].Operation < snapshot.Failures[j].Operation
	})

	return snapshot
}

func dedupeCompartments(in []Compartment) []Compartment {
	seen := make(map[string]bool, len(in))
	out := make([]Compartment, 0, len(in))
	for _, c := range in {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		out = append(out, c)
	}
	return out
}

func dedupeInfrastructures(in []ExadataInfrastructure) []ExadataInfrastructure {
	seen := make(map[string]bool, len(in))
	out := make([]ExadataInfrastructure, 0, len(in))
	for _, infra := range in {
		if seen[infra.ID] {
			continue
		}
		seen[infra.ID] = true
		out = append(out, infra)
	}
	return out
}

// dedupeVmClusters drops duplicate cluster records. The same cluster
// can surface through per-infrastructure listings issued from two
// compartments; the first record wins.
func dedupeVmClusters(in []VmCluster) []VmCluster {
	seen := make(map[string]bool, len(in))
	out := make([]VmCluster, 0, len(in))
	for _, cluster := range in {
		if seen[cluster.ID] {
			continue
		}
		seen[cluster.ID] = true
		out = append(out, cluster)
	}
	return out
}
