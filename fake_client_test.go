package main

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// fakeClient is a scripted APIClient for tests. Listings are stored as
// pre-split pages; page tokens are page indices rendered as strings.
// Errors registered in failures fire on every call for that key, while
// failNTimes entries fire the given number of times and then let the
// call succeed, which exercises the retry path.
type fakeClient struct {
	mu sync.Mutex

	compartmentPages    map[string][][]Compartment           // parentID -> pages
	infrastructurePages map[string][][]ExadataInfrastructure // compartmentID -> pages
	vmClusterPages      map[string][][]VmCluster             // compartmentID/infrastructureID -> pages
	infraDetails        map[string]InfrastructureDetail      // infrastructureID -> detail
	vmClusterDetails    map[string]VmClusterDetail           // vmClusterID -> detail

	failures   map[string]error // "Operation/id" -> permanent error
	failNTimes map[string]int   // "Operation/id" -> remaining transient failures
	calls      map[string]int   // "Operation/id" -> invocation count

	inFlightDetails    int32
	maxInFlightDetails int32
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		compartmentPages:    make(map[string][][]Compartment),
		infrastructurePages: make(map[string][][]ExadataInfrastructure),
		vmClusterPages:      make(map[string][][]VmCluster),
		infraDetails:        make(map[string]InfrastructureDetail),
		vmClusterDetails:    make(map[string]VmClusterDetail),
		failures:            make(map[string]error),
		failNTimes:          make(map[string]int),
		calls:               make(map[string]int),
	}
}

func (f *fakeClient) callCount(operation, id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[operation+"/"+id]
}

// checkError records the call and returns the scripted error, if any.
func (f *fakeClient) checkError(operation, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := operation + "/" + id
	f.calls[key]++

	if err, ok := f.failures[key]; ok {
		return err
	}
	if remaining := f.failNTimes[key]; remaining > 0 {
		f.failNTimes[key] = remaining - 1
		return fmt.Errorf("temporary failure talking to %s", id)
	}
	return nil
}

func pageIndex(page *string) int {
	if page == nil {
		return 0
	}
	idx, _ := strconv.Atoi(*page)
	return idx
}

func nextToken(idx, total int) *string {
	if idx+1 >= total {
		return nil
	}
	token := strconv.Itoa(idx + 1)
	return &token
}

func (f *fakeClient) ListChildCompartments(ctx context.Context, parentID string, page *string) (CompartmentPage, error) {
	if err := f.checkError("ListChildCompartments", parentID); err != nil {
		return CompartmentPage{}, err
	}

	f.mu.Lock()
	pages := f.compartmentPages[parentID]
	f.mu.Unlock()

	idx := pageIndex(page)
	if idx >= len(pages) {
		return CompartmentPage{}, nil
	}
	return CompartmentPage{Items: pages[idx], NextPage: nextToken(idx, len(pages))}, nil
}

func (f *fakeClient) ListExadataInfrastructures(ctx context.Context, compartmentID string, page *string) (InfrastructurePage, error) {
	if err := f.checkError("ListExadataInfrastructures", compartmentID); err != nil {
		return InfrastructurePage{}, err
	}

	f.mu.Lock()
	pages := f.infrastructurePages[compartmentID]
	f.mu.Unlock()

	idx := pageIndex(page)
	if idx >= len(pages) {
		return InfrastructurePage{}, nil
	}
	return InfrastructurePage{Items: pages[idx], NextPage: nextToken(idx, len(pages))}, nil
}

func (f *fakeClient) ListVmClusters(ctx context.Context, compartmentID, infrastructureID string, page *string) (VmClusterPage, error) {
	if err := f.checkError("ListVmClusters", infrastructureID); err != nil {
		return VmClusterPage{}, err
	}

	f.mu.Lock()
	pages := f.vmClusterPages[compartmentID+"/"+infrastructureID]
	f.mu.Unlock()

	idx := pageIndex(page)
	if idx >= len(pages) {
		return VmClusterPage{}, nil
	}
	return VmClusterPage{Items: pages[idx], NextPage: nextToken(idx, len(pages))}, nil
}

func (f *fakeClient) GetInfrastructureDetail(ctx context.Context, infrastructureID string) (InfrastructureDetail, error) {
	current := atomic.AddInt32(&f.inFlightDetails, 1)
	for {
		max := atomic.LoadInt32(&f.maxInFlightDetails)
		if current <= max || atomic.CompareAndSwapInt32(&f.maxInFlightDetails, max, current) {
			break
		}
	}
	defer atomic.AddInt32(&f.inFlightDetails, -1)

	if err := f.checkError("GetInfrastructureDetail", infrastructureID); err != nil {
		return InfrastructureDetail{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.infraDetails[infrastructureID], nil
}

func (f *fakeClient) GetVmClusterDetail(ctx context.Context, vmClusterID string) (VmClusterDetail, error) {
	current := atomic.AddInt32(&f.inFlightDetails, 1)
	for {
		max := atomic.LoadInt32(&f.maxInFlightDetails)
		if current <= max || atomic.CompareAndSwapInt32(&f.maxInFlightDetails, max, current) {
			break
		}
	}
	defer atomic.AddInt32(&f.inFlightDetails, -1)

	if err := f.checkError("GetVmClusterDetail", vmClusterID); err != nil {
		return VmClusterDetail{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.vmClusterDetails[vmClusterID], nil
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func quickRetryPolicy() retryPolicy {
	return retryPolicy{MaxRetries: 2, BaseDelay: 1, MaxDelay: 10}
}

func noRetryPolicy() retryPolicy {
	return retryPolicy{}
}

func testCompartment(id, parentID, name string) Compartment {
	return Compartment{ID: id, ParentID: parentID, Name: name, LifecycleState: lifecycleActive}
}

func testInfrastructure(id, compartmentID, name string) ExadataInfrastructure {
	return ExadataInfrastructure{
		ID:             id,
		CompartmentID:  compartmentID,
		DisplayName:    name,
		LifecycleState: lifecycleActive,
		Shape:          "ExadataCC.X8M",
	}
}

func testVmCluster(id, compartmentID, infrastructureID, name string) VmCluster {
	return VmCluster{
		ID:               id,
		CompartmentID:    compartmentID,
		InfrastructureID: infrastructureID,
		DisplayName:      name,
		LifecycleState:   lifecycleActive,
	}
}
