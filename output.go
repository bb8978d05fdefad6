package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
)

// resourceRow is the flattened record used by the tabular formats.
// JSON output always carries the full snapshot; CSV/TSV flatten to one
// row per infrastructure or VM cluster for spreadsheet use.
type resourceRow struct {
	ResourceType   string
	DisplayName    string
	OCID           string
	CompartmentID  string
	ParentID       string
	LifecycleState string
	Orphaned       bool
}

func snapshotRows(snapshot *InventorySnapshot) []resourceRow {
	rows := make([]resourceRow, 0, len(snapshot.Infrastructures)+len(snapshot.VmClusters))
	for _, infra := range snapshot.Infrastructures {
		rows = append(rows, resourceRow{
			ResourceType:   "ExadataInfrastructure",
			DisplayName:    infra.DisplayName,
			OCID:           infra.ID,
			CompartmentID:  infra.CompartmentID,
			LifecycleState: infra.LifecycleState,
		})
	}
	for _, cluster := range snapshot.VmClusters {
		rows = append(rows, resourceRow{
			ResourceType:   "VmCluster",
			DisplayName:    cluster.DisplayName,
			OCID:           cluster.ID,
			CompartmentID:  cluster.CompartmentID,
			ParentID:       cluster.InfrastructureID,
			LifecycleState: cluster.LifecycleState,
			Orphaned:       cluster.Orphaned,
		})
	}
	return rows
}

// WriteSnapshot writes the snapshot in the requested format to a file,
// or to stdout when filename is empty.
func WriteSnapshot(snapshot *InventorySnapshot, format, filename string) error {
	var w io.Writer = os.Stdout
	if filename != "" {
		file, err := os.Create(filename)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer file.Close()
		w = file
	}
	return writeSnapshotTo(snapshot, format, w)
}

func writeSnapshotTo(snapshot *InventorySnapshot, format string, w io.Writer) error {
	switch format {
	case "json":
		return writeSnapshotJSON(snapshot, w)
	case "csv":
		return writeSnapshotCSV(snapshot, w)
	case "tsv":
		return writeSnapshotTSV(snapshot, w)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

func writeSnapshotJSON(snapshot *InventorySnapshot, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(snapshot)
}

var rowHeader = []string{"ResourceType", "DisplayName", "OCID", "CompartmentID", "ParentID", "LifecycleState", "Orphaned"}

func writeSnapshotCSV(snapshot *InventorySnapshot, w io.Writer) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(rowHeader); err != nil {
		return err
	}

	for _, row := range snapshotRows(snapshot) {
		record := []string{
			row.ResourceType,
			row.DisplayName,
			row.OCID,
			row.CompartmentID,
			row.ParentID,
			row.LifecycleState,
			strconv.FormatBool(row.Orphaned),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return nil
}

func writeSnapshotTSV(snapshot *InventorySnapshot, w io.Writer) error {
	if _, err := fmt.Fprintln(w, "ResourceType\tDisplayName\tOCID\tCompartmentID\tParentID\tLifecycleState\tOrphaned"); err != nil {
		return err
	}

	for _, row := range snapshotRows(snapshot) {
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%t\n",
			row.ResourceType,
			row.DisplayName,
			row.OCID,
			row.CompartmentID,
			row.ParentID,
			row.LifecycleState,
			row.Orphaned,
		); err != nil {
			return err
		}
	}

	return nil
}

// LoadSnapshotFromFile reads a previously exported JSON snapshot,
// used by the diff subcommand.
func LoadSnapshotFromFile(filename string) (*InventorySnapshot, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var snapshot InventorySnapshot
	if err := json.NewDecoder(file).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}

	return &snapshot, nil
}
