package main

import (
	"context"
	"time"
)

// Lifecycle states mirror the OCI enumerations verbatim so snapshot
// consumers can compare against the vendor constants.
const (
	lifecycleActive     = "ACTIVE"
	lifecycleDeleted    = "DELETED"
	lifecycleTerminated = "TERMINATED"
)

// Compartment represents a single compartment in the tenancy tree.
// ParentID is empty only for the tenancy root.
type Compartment struct {
	ID             string `json:"id"`
	ParentID       string `json:"parent_id,omitempty"`
	Name           string `json:"name"`
	LifecycleState string `json:"lifecycle_state"`
	IsRoot         bool   `json:"is_root,omitempty"`
}

// ExadataInfrastructure represents one Exadata Cloud@Customer rack.
// The OCPU/unallocated fields are best-effort enrichment and stay nil
// when the secondary detail fetch failed.
type ExadataInfrastructure struct {
	ID                     string     `json:"id"`
	CompartmentID          string     `json:"compartment_id"`
	DisplayName            string     `json:"display_name"`
	LifecycleState         string     `json:"lifecycle_state"`
	Shape                  string     `json:"shape,omitempty"`
	TimeCreated            *time.Time `json:"time_created,omitempty"`
	ComputeCount           *int       `json:"compute_count,omitempty"`
	StorageCount           *int       `json:"storage_count,omitempty"`
	CpusEnabled            *int       `json:"cpus_enabled,omitempty"`
	MaxCpuCount            *int       `json:"max_cpu_count,omitempty"`
	MemorySizeInGBs        *int       `json:"memory_size_in_gbs,omitempty"`
	MaxMemoryInGBs         *int       `json:"max_memory_in_gbs,omitempty"`
	DbNodeStorageSizeInGBs *int       `json:"db_node_storage_size_in_gbs,omitempty"`
	DataStorageSizeInTBs   *float64   `json:"data_storage_size_in_tbs,omitempty"`
	MaxDataStorageInTBs    *float64   `json:"max_data_storage_in_tbs,omitempty"`
	StorageServerVersion   string     `json:"storage_server_version,omitempty"`
	DbServerVersion        string     `json:"db_server_version,omitempty"`
	MaintenanceSLOStatus   string     `json:"maintenance_slo_status,omitempty"`
	TotalOcpus             *float32   `json:"total_ocpus,omitempty"`
	ConsumedOcpus          *float32   `json:"consumed_ocpus,omitempty"`
	UnallocatedCpus        *int       `json:"unallocated_cpus,omitempty"`
}

// IormConfig holds the IORM settings of a VM cluster.
type IormConfig struct {
	LifecycleState string `json:"lifecycle_state"`
	Objective      string `json:"objective,omitempty"`
}

// PatchSummary describes one available patch for a VM cluster.
type PatchSummary struct {
	ID           string     `json:"id"`
	Description  string     `json:"description,omitempty"`
	Version      string     `json:"version,omitempty"`
	TimeReleased *time.Time `json:"time_released,omitempty"`
}

// VmCluster represents a VM cluster running on an Exadata
// infrastructure. InfrastructureID is taken from the cluster record
// itself, never inferred from compartment co-location. Orphaned is set
// during aggregation when the referenced infrastructure is not present
// in the same snapshot.
type VmCluster struct {
	ID                     string         `json:"id"`
	CompartmentID          string         `json:"compartment_id"`
	InfrastructureID       string         `json:"infrastructure_id"`
	DisplayName            string         `json:"display_name"`
	LifecycleState         string         `json:"lifecycle_state"`
	Shape                  string         `json:"shape,omitempty"`
	GiVersion              string         `json:"gi_version,omitempty"`
	SystemVersion          string         `json:"system_version,omitempty"`
	LicenseModel           string         `json:"license_model,omitempty"`
	CpusEnabled            *int           `json:"cpus_enabled,omitempty"`
	OcpusEnabled           *float32       `json:"ocpus_enabled,omitempty"`
	MemorySizeInGBs        *int           `json:"memory_size_in_gbs,omitempty"`
	DbNodeStorageSizeInGBs *int           `json:"db_node_storage_size_in_gbs,omitempty"`
	DataStorageSizeInTBs   *float64       `json:"data_storage_size_in_tbs,omitempty"`
	DbServerCount          int            `json:"db_server_count,omitempty"`
	Iorm                   *IormConfig    `json:"iorm,omitempty"`
	Patches                []PatchSummary `json:"patches,omitempty"`
	Orphaned               bool           `json:"orphaned,omitempty"`
}

// Failure scopes identify which level of the walk a recorded failure
// belongs to.
const (
	scopeCompartment    = "compartment"
	scopeInfrastructure = "infrastructure"
	scopeVmCluster      = "vm_cluster"
)

// CollectionFailure records one non-fatal failure encountered during
// the walk. The snapshot carries these alongside the collected data so
// a consumer can distinguish "empty because nothing exists" from
// "empty because collection failed".
type CollectionFailure struct {
	Scope      string `json:"scope"`
	ResourceID string `json:"resource_id"`
	Operation  string `json:"operation"`
	Kind       string `json:"kind"`
	Message    string `json:"message"`
}

// InventorySnapshot is the root aggregate of one walk. It is created
// fresh per run and never mutated once returned.
type InventorySnapshot struct {
	TenancyID       string                  `json:"tenancy_id"`
	GeneratedAt     time.Time               `json:"generated_at"`
	Compartments    []Compartment           `json:"compartments"`
	Infrastructures []ExadataInfrastructure `json:"infrastructures"`
	VmClusters      []VmCluster             `json:"vm_clusters"`
	Failures        []CollectionFailure     `json:"failures"`
}

// OrphanedClusterCount returns the number of VM clusters whose parent
// infrastructure could not be resolved within this snapshot.
func (s *InventorySnapshot) OrphanedClusterCount() int {
	n := 0
	for _, c := range s.VmClusters {
		if c.Orphaned {
			n++
		}
	}
	return n
}

// Page results returned by the API client. NextPage carries the opaque
// continuation token; nil means the listing is exhausted.

type CompartmentPage struct {
	Items    []Compartment
	NextPage *string
}

type InfrastructurePage struct {
	Items    []ExadataInfrastructure
	NextPage *string
}

type VmClusterPage struct {
	Items    []VmCluster
	NextPage *string
}

// InfrastructureDetail is the secondary enrichment fetched per
// infrastructure (OCPU allocation and unallocated resources).
type InfrastructureDetail struct {
	TotalOcpus      *float32
	ConsumedOcpus   *float32
	UnallocatedCpus *int
}

// VmClusterDetail is the secondary enrichment fetched per VM cluster
// (IORM configuration and recent patches).
type VmClusterDetail struct {
	Iorm    *IormConfig
	Patches []PatchSummary
}

// APIClient is the capability the walk depends on. The production
// implementation wraps the OCI identity and database clients; tests
// substitute a scripted fake.
type APIClient interface {
	ListChildCompartments(ctx context.Context, parentID string, page *string) (CompartmentPage, error)
	ListExadataInfrastructures(ctx context.Context, compartmentID string, page *string) (InfrastructurePage, error)
	ListVmClusters(ctx context.Context, compartmentID, infrastructureID string, page *string) (VmClusterPage, error)
	GetInfrastructureDetail(ctx context.Context, infrastructureID string) (InfrastructureDetail, error)
	GetVmClusterDetail(ctx context.Context, vmClusterID string) (VmClusterDetail, error)
}
