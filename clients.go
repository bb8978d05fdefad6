package main

import (
	"context"
	"fmt"
	"time"

	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/common/auth"
	"github.com/oracle/oci-go-sdk/v65/database"
	"github.com/oracle/oci-go-sdk/v65/identity"
	"github.com/sony/gobreaker"
)

// OCIClient is the production APIClient backed by the OCI identity and
// database services. Detail enrichment calls run behind a circuit
// breaker so a persistently failing detail endpoint stops eating the
// request budget of the remaining walk; an open breaker surfaces as an
// ordinary recorded failure on the affected resource.
type OCIClient struct {
	identityClient identity.IdentityClient
	databaseClient database.DatabaseClient
	tenancyID      string
	detailBreaker  *gobreaker.CircuitBreaker
}

// NewOCIClient builds the identity and database clients from the
// configured authentication method.
func NewOCIClient(ctx context.Context, cfg AuthConfig) (*OCIClient, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	configProvider, err := buildConfigurationProvider(cfg)
	if err != nil {
		return nil, err
	}

	tenancyID, err := configProvider.TenancyOCID()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve tenancy OCID: %w", err)
	}

	identityClient, err := identity.NewIdentityClientWithConfigurationProvider(configProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to create identity client: %w", err)
	}

	databaseClient, err := database.NewDatabaseClientWithConfigurationProvider(configProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to create database client: %w", err)
	}

	return &OCIClient{
		identityClient: identityClient,
		databaseClient: databaseClient,
		tenancyID:      tenancyID,
		detailBreaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "detail-enrichment",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}, nil
}

func buildConfigurationProvider(cfg AuthConfig) (common.ConfigurationProvider, error) {
	switch cfg.Method {
	case authMethodInstancePrincipal:
		provider, err := auth.InstancePrincipalConfigurationProvider()
		if err != nil {
			return nil, fmt.Errorf("failed to create instance principal config provider: %w", err)
		}
		return provider, nil
	case authMethodConfigFile:
		if cfg.ConfigFile != "" {
			return common.CustomProfileConfigProvider(cfg.ConfigFile, cfg.Profile), nil
		}
		if cfg.Profile != "" && cfg.Profile != "DEFAULT" {
			return common.CustomProfileConfigProvider("", cfg.Profile), nil
		}
		return common.DefaultConfigProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported auth method: %s", cfg.Method)
	}
}

// TenancyID returns the tenancy root compartment OCID.
func (c *OCIClient) TenancyID() string {
	return c.tenancyID
}

// TenancyName resolves the tenancy display name for the root record.
func (c *OCIClient) TenancyName(ctx context.Context) (string, error) {
	resp, err := c.identityClient.GetTenancy(ctx, identity.GetTenancyRequest{
		TenancyId: common.String(c.tenancyID),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get tenancy: %w", err)
	}
	if resp.Name == nil {
		return "root", nil
	}
	return *resp.Name, nil
}

// ListChildCompartments returns one page of the immediate children of
// parentID.
func (c *OCIClient) ListChildCompartments(ctx context.Context, parentID string, page *string) (CompartmentPage, error) {
	resp, err := c.identityClient.ListCompartments(ctx, identity.ListCompartmentsRequest{
		CompartmentId: common.String(parentID),
		AccessLevel:   identity.ListCompartmentsAccessLevelAccessible,
		Page:          page,
	})
	if err != nil {
		return CompartmentPage{}, err
	}

	result := CompartmentPage{NextPage: resp.OpcNextPage}
	for _, item := range resp.Items {
		result.Items = append(result.Items, Compartment{
			ID:             deref(item.Id),
			ParentID:       deref(item.CompartmentId),
			Name:           deref(item.Name),
			LifecycleState: string(item.LifecycleState),
		})
	}
	return result, nil
}

// ListExadataInfrastructures returns one page of Exadata
// infrastructures in a compartment.
func (c *OCIClient) ListExadataInfrastructures(ctx context.Context, compartmentID string, page *string) (InfrastructurePage, error) {
	resp, err := c.databaseClient.ListExadataInfrastructures(ctx, database.ListExadataInfrastructuresRequest{
		CompartmentId: common.String(compartmentID),
		Page:          page,
	})
	if err != nil {
		return InfrastructurePage{}, err
	}

	result := InfrastructurePage{NextPage: resp.OpcNextPage}
	for _, item := range resp.Items {
		result.Items = append(result.Items, ExadataInfrastructure{
			ID:                     deref(item.Id),
			CompartmentID:          deref(item.CompartmentId),
			DisplayName:            deref(item.DisplayName),
			LifecycleState:         string(item.LifecycleState),
			Shape:                  deref(item.Shape),
			TimeCreated:            sdkTime(item.TimeCreated),
			ComputeCount:           item.ComputeCount,
			StorageCount:           item.StorageCount,
			CpusEnabled:            item.CpusEnabled,
			MaxCpuCount:            item.MaxCpuCount,
			MemorySizeInGBs:        item.MemorySizeInGBs,
			MaxMemoryInGBs:         item.MaxMemoryInGBs,
			DbNodeStorageSizeInGBs: item.DbNodeStorageSizeInGBs,
			DataStorageSizeInTBs:   item.DataStorageSizeInTBs,
			MaxDataStorageInTBs:    item.MaxDataStorageInTBs,
			StorageServerVersion:   deref(item.StorageServerVersion),
			DbServerVersion:        deref(item.DbServerVersion),
			MaintenanceSLOStatus:   string(item.MaintenanceSLOStatus),
		})
	}
	return result, nil
}

// ListVmClusters returns one page of VM clusters for one
// infrastructure. The infrastructure filter keeps the scan linear in
// the number of infrastructures instead of quadratic over
// compartments.
func (c *OCIClient) ListVmClusters(ctx context.Context, compartmentID, infrastructureID string, page *string) (VmClusterPage, error) {
	resp, err := c.databaseClient.ListVmClusters(ctx, database.ListVmClustersRequest{
		CompartmentId:           common.String(compartmentID),
		ExadataInfrastructureId: common.String(infrastructureID),
		Page:                    page,
	})
	if err != nil {
		return VmClusterPage{}, err
	}

	result := VmClusterPage{NextPage: resp.OpcNextPage}
	for _, item := range resp.Items {
		result.Items = append(result.Items, VmCluster{
			ID:                     deref(item.Id),
			CompartmentID:          deref(item.CompartmentId),
			InfrastructureID:       deref(item.ExadataInfrastructureId),
			DisplayName:            deref(item.DisplayName),
			LifecycleState:         string(item.LifecycleState),
			Shape:                  deref(item.Shape),
			GiVersion:              deref(item.GiVersion),
			SystemVersion:          deref(item.SystemVersion),
			LicenseModel:           string(item.LicenseModel),
			CpusEnabled:            item.CpusEnabled,
			OcpusEnabled:           item.OcpusEnabled,
			MemorySizeInGBs:        item.MemorySizeInGBs,
			DbNodeStorageSizeInGBs: item.DbNodeStorageSizeInGBs,
			DataStorageSizeInTBs:   item.DataStorageSizeInTBs,
			DbServerCount:          len(item.DbServers),
		})
	}
	return result, nil
}

// GetInfrastructureDetail fetches OCPU allocation and unallocated
// resources for one infrastructure through the detail breaker.
func (c *OCIClient) GetInfrastructureDetail(ctx context.Context, infrastructureID string) (InfrastructureDetail, error) {
	detail, err := c.detailBreaker.Execute(func() (interface{}, error) {
		var out InfrastructureDetail

		ocpuResp, err := c.databaseClient.GetExadataInfrastructureOcpus(ctx, database.GetExadataInfrastructureOcpusRequest{
			AutonomousExadataInfrastructureId: common.String(infrastructureID),
		})
		if err != nil {
			return nil, err
		}
		out.TotalOcpus = ocpuResp.TotalCpu
		out.ConsumedOcpus = ocpuResp.ConsumedCpu

		unallocResp, err := c.databaseClient.GetExadataInfrastructureUnAllocatedResources(ctx, database.GetExadataInfrastructureUnAllocatedResourcesRequest{
			ExadataInfrastructureId: common.String(infrastructureID),
		})
		if err != nil {
			return nil, err
		}
		out.UnallocatedCpus = unallocResp.Ocpus

		return out, nil
	})
	if err != nil {
		return InfrastructureDetail{}, err
	}
	return detail.(InfrastructureDetail), nil
}

// GetVmClusterDetail fetches IORM configuration and the five most
// recent patches for one VM cluster through the detail breaker.
func (c *OCIClient) GetVmClusterDetail(ctx context.Context, vmClusterID string) (VmClusterDetail, error) {
	detail, err := c.detailBreaker.Execute(func() (interface{}, error) {
		var out VmClusterDetail

		iormResp, err := c.databaseClient.GetVmClusterIormConfig(ctx, database.GetVmClusterIormConfigRequest{
			VmClusterId: common.String(vmClusterID),
		})
		if err != nil {
			return nil, err
		}
		out.Iorm = &IormConfig{
			LifecycleState: string(iormResp.LifecycleState),
			Objective:      string(iormResp.Objective),
		}

		patchResp, err := c.databaseClient.ListVmClusterPatches(ctx, database.ListVmClusterPatchesRequest{
			VmClusterId: common.String(vmClusterID),
		})
		if err != nil {
			return nil, err
		}
		for i, patch := range patchResp.Items {
			if i >= 5 {
				break
			}
			out.Patches = append(out.Patches, PatchSummary{
				ID:           deref(patch.Id),
				Description:  deref(patch.Description),
				Version:      deref(patch.Version),
				TimeReleased: sdkTime(patch.TimeReleased),
			})
		}

		return out, nil
	})
	if err != nil {
		return VmClusterDetail{}, err
	}
	return detail.(VmClusterDetail), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func sdkTime(t *common.SDKTime) *time.Time {
	if t == nil {
		return nil
	}
	out := t.Time
	return &out
}
