package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"
	"strings"
	"time"
)

// DiffOptions controls the comparison report between two snapshots.
type DiffOptions struct {
	Format     string // "json" or "text"
	Detailed   bool   // include unchanged resources
	OutputFile string
}

// DiffResult is the comparison between two inventory snapshots.
type DiffResult struct {
	Summary   DiffSummary   `json:"summary"`
	Added     []resourceRow `json:"added"`
	Removed   []resourceRow `json:"removed"`
	Modified  []diffEntry   `json:"modified"`
	Unchanged []resourceRow `json:"unchanged,omitempty"`
	Timestamp string        `json:"timestamp"`
	OldFile   string        `json:"old_file"`
	NewFile   string        `json:"new_file"`
}

// DiffSummary provides a statistical overview of the differences.
type DiffSummary struct {
	TotalOld       int                  `json:"total_old"`
	TotalNew       int                  `json:"total_new"`
	Added          int                  `json:"added"`
	Removed        int                  `json:"removed"`
	Modified       int                  `json:"modified"`
	Unchanged      int                  `json:"unchanged"`
	ByResourceType map[string]DiffStats `json:"by_resource_type"`
}

// DiffStats holds per-resource-type counts.
type DiffStats struct {
	Added     int `json:"added"`
	Removed   int `json:"removed"`
	Modified  int `json:"modified"`
	Unchanged int `json:"unchanged"`
}

type diffEntry struct {
	Resource resourceRow   `json:"resource"`
	Changes  []FieldChange `json:"changes"`
}

// FieldChange records a single field modification between snapshots.
type FieldChange struct {
	Field    string      `json:"field"`
	OldValue interface{} `json:"old_value"`
	NewValue interface{} `json:"new_value"`
}

// diffable is the comparable view of a resource: a stable row identity
// plus the monitored fields that trigger a "modified" entry.
type diffable struct {
	row    resourceRow
	fields map[string]interface{}
}

// CompareSnapshots loads two exported JSON snapshots and reports the
// resources that were added, removed, or changed between them.
func CompareSnapshots(oldFile, newFile string, opts DiffOptions) (*DiffResult, error) {
	if err := validateDiffFiles(oldFile, newFile); err != nil {
		return nil, err
	}

	oldSnapshot, err := LoadSnapshotFromFile(oldFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load old snapshot %s: %w", oldFile, err)
	}

	newSnapshot, err := LoadSnapshotFromFile(newFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load new snapshot %s: %w", newFile, err)
	}

	oldMap := diffableMap(oldSnapshot)
	newMap := diffableMap(newSnapshot)

	result := &DiffResult{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		OldFile:   oldFile,
		NewFile:   newFile,
	}

	var unchanged []resourceRow
	for ocid, newRes := range newMap {
		oldRes, exists := oldMap[ocid]
		if !exists {
			result.Added = append(result.Added, newRes.row)
			continue
		}
		changes := compareFields(oldRes, newRes)
		if len(changes) > 0 {
			result.Modified = append(result.Modified, diffEntry{Resource: newRes.row, Changes: changes})
		} else {
			unchanged = append(unchanged, newRes.row)
		}
	}
	for ocid, oldRes := range oldMap {
		if _, exists := newMap[ocid]; !exists {
			result.Removed = append(result.Removed, oldRes.row)
		}
	}

	sortRows(result.Added)
	sortRows(result.Removed)
	sortRows(unchanged)
	sort.Slice(result.Modified, func(i, j int) bool {
		return result.Modified[i].Resource.OCID < result.Modified[j].Resource.OCID
	})

	if opts.Detailed {
		result.Unchanged = unchanged
	}

	result.Summary = DiffSummary{
		TotalOld:       len(oldMap),
		TotalNew:       len(newMap),
		Added:          len(result.Added),
		Removed:        len(result.Removed),
		Modified:       len(result.Modified),
		Unchanged:      len(unchanged),
		ByResourceType: buildResourceTypeStats(result.Added, result.Removed, result.Modified, unchanged),
	}

	return result, nil
}

func sortRows(rows []resourceRow) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].ResourceType != rows[j].ResourceType {
			return rows[i].ResourceType < rows[j].ResourceType
		}
		return rows[i].OCID < rows[j].OCID
	})
}

func diffableMap(snapshot *InventorySnapshot) map[string]diffable {
	resources := make(map[string]diffable, len(snapshot.Infrastructures)+len(snapshot.VmClusters))
	for _, infra := range snapshot.Infrastructures {
		resources[infra.ID] = diffable{
			row: resourceRow{
				ResourceType:   "ExadataInfrastructure",
				DisplayName:    infra.DisplayName,
				OCID:           infra.ID,
				CompartmentID:  infra.CompartmentID,
				LifecycleState: infra.LifecycleState,
			},
			fields: infrastructureFields(infra),
		}
	}
	for _, cluster := range snapshot.VmClusters {
		resources[cluster.ID] = diffable{
			row: resourceRow{
				ResourceType:   "VmCluster",
				DisplayName:    cluster.DisplayName,
				OCID:           cluster.ID,
				CompartmentID:  cluster.CompartmentID,
				ParentID:       cluster.InfrastructureID,
				LifecycleState: cluster.LifecycleState,
				Orphaned:       cluster.Orphaned,
			},
			fields: vmClusterFields(cluster),
		}
	}
	return resources
}

func infrastructureFields(infra ExadataInfrastructure) map[string]interface{} {
	fields := map[string]interface{}{
		"display_name":    infra.DisplayName,
		"compartment_id":  infra.CompartmentID,
		"lifecycle_state": infra.LifecycleState,
		"shape":           infra.Shape,
	}
	addIntField(fields, "compute_count", infra.ComputeCount)
	addIntField(fields, "storage_count", infra.StorageCount)
	addIntField(fields, "cpus_enabled", infra.CpusEnabled)
	addIntField(fields, "max_cpu_count", infra.MaxCpuCount)
	addIntField(fields, "memory_size_in_gbs", infra.MemorySizeInGBs)
	if infra.DataStorageSizeInTBs != nil {
		fields["data_storage_size_in_tbs"] = *infra.DataStorageSizeInTBs
	}
	if infra.StorageServerVersion != "" {
		fields["storage_server_version"] = infra.StorageServerVersion
	}
	if infra.DbServerVersion != "" {
		fields["db_server_version"] = infra.DbServerVersion
	}
	if infra.TotalOcpus != nil {
		fields["total_ocpus"] = *infra.TotalOcpus
	}
	if infra.ConsumedOcpus != nil {
		fields["consumed_ocpus"] = *infra.ConsumedOcpus
	}
	return fields
}

func vmClusterFields(cluster VmCluster) map[string]interface{} {
	fields := map[string]interface{}{
		"display_name":    cluster.DisplayName,
		"compartment_id":  cluster.CompartmentID,
		"lifecycle_state": cluster.LifecycleState,
		"orphaned":        cluster.Orphaned,
	}
	if cluster.GiVersion != "" {
		fields["gi_version"] = cluster.GiVersion
	}
	if cluster.SystemVersion != "" {
		fields["system_version"] = cluster.SystemVersion
	}
	if cluster.LicenseModel != "" {
		fields["license_model"] = cluster.LicenseModel
	}
	addIntField(fields, "cpus_enabled", cluster.CpusEnabled)
	addIntField(fields, "memory_size_in_gbs", cluster.MemorySizeInGBs)
	if cluster.OcpusEnabled != nil {
		fields["ocpus_enabled"] = *cluster.OcpusEnabled
	}
	if cluster.Iorm != nil {
		fields["iorm_objective"] = cluster.Iorm.Objective
	}
	return fields
}

func addIntField(fields map[string]interface{}, key string, value *int) {
	if value != nil {
		fields[key] = *value
	}
}

func compareFields(old, new diffable) []FieldChange {
	var changes []FieldChange

	keys := make(map[string]bool, len(old.fields)+len(new.fields))
	for key := range old.fields {
		keys[key] = true
	}
	for key := range new.fields {
		keys[key] = true
	}

	for key := range keys {
		oldVal, oldExists := old.fields[key]
		newVal, newExists := new.fields[key]
		switch {
		case !oldExists:
			changes = append(changes, FieldChange{Field: key, OldValue: nil, NewValue: newVal})
		case !newExists:
			changes = append(changes, FieldChange{Field: key, OldValue: oldVal, NewValue: nil})
		case !reflect.DeepEqual(oldVal, newVal):
			changes = append(changes, FieldChange{Field: key, OldValue: oldVal, NewValue: newVal})
		}
	}

	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Field < changes[j].Field
	})

	return changes
}

func buildResourceTypeStats(added, removed []resourceRow, modified []diffEntry, unchanged []resourceRow) map[string]DiffStats {
	stats := make(map[string]DiffStats)

	for _, row := range added {
		stat := stats[row.ResourceType]
		stat.Added++
		stats[row.ResourceType] = stat
	}
	for _, row := range removed {
		stat := stats[row.ResourceType]
		stat.Removed++
		stats[row.ResourceType] = stat
	}
	for _, entry := range modified {
		stat := stats[entry.Resource.ResourceType]
		stat.Modified++
		stats[entry.Resource.ResourceType] = stat
	}
	for _, row := range unchanged {
		stat := stats[row.ResourceType]
		stat.Unchanged++
		stats[row.ResourceType] = stat
	}

	return stats
}

// WriteDiffResult writes the diff report to a file or stdout.
func WriteDiffResult(result *DiffResult, opts DiffOptions) error {
	var writer io.Writer = os.Stdout
	if opts.OutputFile != "" {
		file, err := os.Create(opts.OutputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file %s: %w", opts.OutputFile, err)
		}
		defer file.Close()
		writer = file
	}

	switch strings.ToLower(opts.Format) {
	case "json":
		encoder := json.NewEncoder(writer)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	case "text":
		return writeDiffText(result, writer)
	default:
		return fmt.Errorf("unsupported diff format: %s", opts.Format)
	}
}

func writeDiffText(result *DiffResult, writer io.Writer) error {
	fmt.Fprintf(writer, "Exadata Inventory Comparison Report\n")
	fmt.Fprintf(writer, "===================================\n\n")

	fmt.Fprintf(writer, "Snapshots Compared:\n")
	fmt.Fprintf(writer, "  Old: %s (%d resources)\n", result.OldFile, result.Summary.TotalOld)
	fmt.Fprintf(writer, "  New: %s (%d resources)\n", result.NewFile, result.Summary.TotalNew)
	fmt.Fprintf(writer, "\nGenerated: %s\n\n", result.Timestamp)

	fmt.Fprintf(writer, "SUMMARY\n")
	fmt.Fprintf(writer, "-------\n")
	fmt.Fprintf(writer, "  Added:     %d\n", result.Summary.Added)
	fmt.Fprintf(writer, "  Removed:   %d\n", result.Summary.Removed)
	fmt.Fprintf(writer, "  Modified:  %d\n", result.Summary.Modified)
	fmt.Fprintf(writer, "  Unchanged: %d\n\n", result.Summary.Unchanged)

	if len(result.Summary.ByResourceType) > 0 {
		var resourceTypes []string
		for resourceType := range result.Summary.ByResourceType {
			resourceTypes = append(resourceTypes, resourceType)
		}
		sort.Strings(resourceTypes)

		fmt.Fprintf(writer, "CHANGES BY RESOURCE TYPE\n")
		fmt.Fprintf(writer, "------------------------\n")
		for _, resourceType := range resourceTypes {
			stats := result.Summary.ByResourceType[resourceType]
			fmt.Fprintf(writer, "%s: +%d, -%d, ~%d\n", resourceType, stats.Added, stats.Removed, stats.Modified)
		}
		fmt.Fprintf(writer, "\n")
	}

	for _, row := range result.Added {
		fmt.Fprintf(writer, "+ %s: %s (%s)\n", row.ResourceType, row.DisplayName, row.OCID)
	}
	for _, row := range result.Removed {
		fmt.Fprintf(writer, "- %s: %s (%s)\n", row.ResourceType, row.DisplayName, row.OCID)
	}
	for _, entry := range result.Modified {
		fmt.Fprintf(writer, "~ %s: %s (%s)\n", entry.Resource.ResourceType, entry.Resource.DisplayName, entry.Resource.OCID)
		for _, change := range entry.Changes {
			fmt.Fprintf(writer, "    %s: %v -> %v\n", change.Field, formatValue(change.OldValue), formatValue(change.NewValue))
		}
	}
	for _, row := range result.Unchanged {
		fmt.Fprintf(writer, "= %s: %s (%s)\n", row.ResourceType, row.DisplayName, row.OCID)
	}

	return nil
}

func formatValue(value interface{}) string {
	if value == nil {
		return "<none>"
	}
	return fmt.Sprintf("%v", value)
}

func validateDiffFiles(oldFile, newFile string) error {
	if _, err := os.Stat(oldFile); os.IsNotExist(err) {
		return fmt.Errorf("old snapshot not found: %s", oldFile)
	}
	if _, err := os.Stat(newFile); os.IsNotExist(err) {
		return fmt.Errorf("new snapshot not found: %s", newFile)
	}
	if oldFile == newFile {
		return fmt.Errorf("old and new snapshots cannot be the same file: %s", oldFile)
	}
	return nil
}
