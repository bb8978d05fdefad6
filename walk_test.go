package main

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func testWalkConfig() *AppConfig {
	cfg := getDefaultConfig()
	cfg.Walk.MaxRetries = 0
	cfg.Walk.RetryBaseDelayMs = 1
	cfg.Walk.RetryMaxDelayMs = 5
	return cfg
}

func TestWalkerRun_FullWalk(t *testing.T) {
	compartmentID := "ocid1.compartment.oc1..prod"
	infraID := "ocid1.exadatainfrastructure.oc1..i1"

	client := newFakeClient()
	client.compartmentPages[testTenancyID] = [][]Compartment{{
		testCompartment(compartmentID, testTenancyID, "prod"),
	}}
	client.infrastructurePages[compartmentID] = [][]ExadataInfrastructure{
		{testInfrastructure(infraID, compartmentID, "rack-1")},
	}
	client.vmClusterPages[compartmentID+"/"+infraID] = [][]VmCluster{
		{testVmCluster("ocid1.vmcluster.oc1..c1", compartmentID, infraID, "vmc-1")},
	}

	walker := NewWalker(client, testWalkConfig(), testLogger())
	snapshot, err := walker.Run(context.Background(), testTenancyID, testTenancyName)
	if err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}

	if snapshot.TenancyID != testTenancyID {
		t.Errorf("TenancyID = %q, want %q", snapshot.TenancyID, testTenancyID)
	}
	if len(snapshot.Compartments) != 2 {
		t.Errorf("compartments = %d, want 2", len(snapshot.Compartments))
	}
	if len(snapshot.Infrastructures) != 1 {
		t.Errorf("infrastructures = %d, want 1", len(snapshot.Infrastructures))
	}
	if len(snapshot.VmClusters) != 1 {
		t.Errorf("vm clusters = %d, want 1", len(snapshot.VmClusters))
	}
	if snapshot.VmClusters[0].Orphaned {
		t.Error("cluster marked orphaned, want parent resolved")
	}
	if len(snapshot.Failures) != 0 {
		t.Errorf("failures = %v, want none", snapshot.Failures)
	}
}

func TestWalkerRun_CompartmentFailureIsolated(t *testing.T) {
	client := newFakeClient()

	var children []Compartment
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("ocid1.compartment.oc1..c%d", i)
		children = append(children, testCompartment(id, testTenancyID, fmt.Sprintf("team-%d", i)))

		if i == 3 {
			client.failures["ListExadataInfrastructures/"+id] = serviceError(403, "Forbidden")
			continue
		}
		client.infrastructurePages[id] = [][]ExadataInfrastructure{
			{testInfrastructure(fmt.Sprintf("ocid1.exadatainfrastructure.oc1..i%d", i), id, "rack")},
		}
	}
	client.compartmentPages[testTenancyID] = [][]Compartment{children}

	walker := NewWalker(client, testWalkConfig(), testLogger())
	snapshot, err := walker.Run(context.Background(), testTenancyID, testTenancyName)
	if err != nil {
		t.Fatalf("Run() error = %v, want nil despite one failing compartment", err)
	}

	if len(snapshot.Infrastructures) != 9 {
		t.Errorf("infrastructures = %d, want 9 from the healthy compartments", len(snapshot.Infrastructures))
	}
	if len(snapshot.Failures) != 1 {
		t.Fatalf("failures = %d, want 1", len(snapshot.Failures))
	}
	if snapshot.Failures[0].ResourceID != "ocid1.compartment.oc1..c3" {
		t.Errorf("failure resource = %q, want the failing compartment", snapshot.Failures[0].ResourceID)
	}
}

func TestWalkerRun_CancellationDiscardsPartials(t *testing.T) {
	compartmentID := "ocid1.compartment.oc1..prod"

	client := newFakeClient()
	client.compartmentPages[testTenancyID] = [][]Compartment{{
		testCompartment(compartmentID, testTenancyID, "prod"),
	}}
	client.infrastructurePages[compartmentID] = [][]ExadataInfrastructure{
		{testInfrastructure("ocid1.exadatainfrastructure.oc1..i1", compartmentID, "rack-1")},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	walker := NewWalker(client, testWalkConfig(), testLogger())
	snapshot, err := walker.Run(ctx, testTenancyID, testTenancyName)

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if snapshot != nil {
		t.Error("Run() returned a snapshot on cancellation, want partial results discarded")
	}
}

func TestWalkerRun_RootFailureFatal(t *testing.T) {
	client := newFakeClient()
	client.failures["ListChildCompartments/"+testTenancyID] = serviceError(401, "NotAuthenticated")

	walker := NewWalker(client, testWalkConfig(), testLogger())
	snapshot, err := walker.Run(context.Background(), testTenancyID, testTenancyName)

	if err == nil {
		t.Fatal("Run() error = nil, want fatal error for root enumeration failure")
	}
	if snapshot != nil {
		t.Error("Run() returned a snapshot on fatal error, want nil")
	}
}

func TestWalkerRun_DeletedCompartmentNotCollected(t *testing.T) {
	deletedID := "ocid1.compartment.oc1..gone"

	client := newFakeClient()
	client.compartmentPages[testTenancyID] = [][]Compartment{{
		{ID: deletedID, ParentID: testTenancyID, Name: "gone", LifecycleState: lifecycleDeleted},
	}}

	walker := NewWalker(client, testWalkConfig(), testLogger())
	snapshot, err := walker.Run(context.Background(), testTenancyID, testTenancyName)
	if err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}

	found := false
	for _, c := range snapshot.Compartments {
		if c.ID == deletedID {
			found = true
		}
	}
	if !found {
		t.Error("deleted compartment missing from snapshot, want it retained with its state")
	}
	if got := client.callCount("ListExadataInfrastructures", deletedID); got != 0 {
		t.Errorf("deleted compartment collected %d times, want 0", got)
	}
}

func TestWalkerRun_ExcludedCompartmentNotCollected(t *testing.T) {
	excludedID := "ocid1.compartment.oc1..secret"
	keptID := "ocid1.compartment.oc1..open"

	client := newFakeClient()
	client.compartmentPages[testTenancyID] = [][]Compartment{{
		testCompartment(excludedID, testTenancyID, "secret"),
		testCompartment(keptID, testTenancyID, "open"),
	}}
	client.infrastructurePages[keptID] = [][]ExadataInfrastructure{
		{testInfrastructure("ocid1.exadatainfrastructure.oc1..i1", keptID, "rack-1")},
	}

	cfg := testWalkConfig()
	cfg.Filters.ExcludeCompartments = []string{excludedID}

	walker := NewWalker(client, cfg, testLogger())
	snapshot, err := walker.Run(context.Background(), testTenancyID, testTenancyName)
	if err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}

	if got := client.callCount("ListExadataInfrastructures", excludedID); got != 0 {
		t.Errorf("excluded compartment collected %d times, want 0", got)
	}
	if len(snapshot.Infrastructures) != 1 {
		t.Errorf("infrastructures = %d, want 1 from the kept compartment", len(snapshot.Infrastructures))
	}
}
