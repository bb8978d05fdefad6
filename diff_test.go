package main

import (
	"path/filepath"
	"testing"
)

func writeSnapshotFile(t *testing.T, dir, name string, snapshot *InventorySnapshot) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := WriteSnapshot(snapshot, "json", path); err != nil {
		t.Fatalf("write snapshot %s: %v", name, err)
	}
	return path
}

func TestCompareSnapshots_AddedRemovedModified(t *testing.T) {
	dir := t.TempDir()

	oldSnapshot := testSnapshot()
	newSnapshot := testSnapshot()

	// Removed: drop the orphan cluster. Added: a new rack. Modified:
	// bump the CPU count on the surviving rack.
	newSnapshot.VmClusters = newSnapshot.VmClusters[:1]
	newSnapshot.Infrastructures = append(newSnapshot.Infrastructures,
		testInfrastructure("ocid1.exadatainfrastructure.oc1..i2", "ocid1.compartment.oc1..prod", "rack-2"))
	bumped := 32
	newSnapshot.Infrastructures[0].CpusEnabled = &bumped

	oldFile := writeSnapshotFile(t, dir, "old.json", oldSnapshot)
	newFile := writeSnapshotFile(t, dir, "new.json", newSnapshot)

	result, err := CompareSnapshots(oldFile, newFile, DiffOptions{Format: "text"})
	if err != nil {
		t.Fatalf("CompareSnapshots() error = %v, want nil", err)
	}

	if result.Summary.Added != 1 {
		t.Errorf("added = %d, want 1", result.Summary.Added)
	}
	if len(result.Added) != 1 || result.Added[0].OCID != "ocid1.exadatainfrastructure.oc1..i2" {
		t.Errorf("added = %+v, want the new rack", result.Added)
	}

	if result.Summary.Removed != 1 {
		t.Errorf("removed = %d, want 1", result.Summary.Removed)
	}
	if len(result.Removed) != 1 || result.Removed[0].OCID != "ocid1.vmcluster.oc1..orphan" {
		t.Errorf("removed = %+v, want the dropped cluster", result.Removed)
	}

	if result.Summary.Modified != 1 {
		t.Fatalf("modified = %d, want 1", result.Summary.Modified)
	}
	entry := result.Modified[0]
	if entry.Resource.OCID != "ocid1.exadatainfrastructure.oc1..i1" {
		t.Errorf("modified resource = %q, want the surviving rack", entry.Resource.OCID)
	}
	found := false
	for _, change := range entry.Changes {
		if change.Field == "cpus_enabled" {
			found = true
		}
	}
	if !found {
		t.Errorf("changes = %+v, want cpus_enabled among them", entry.Changes)
	}
}

func TestCompareSnapshots_IdenticalSnapshots(t *testing.T) {
	dir := t.TempDir()
	oldFile := writeSnapshotFile(t, dir, "old.json", testSnapshot())
	newFile := writeSnapshotFile(t, dir, "new.json", testSnapshot())

	result, err := CompareSnapshots(oldFile, newFile, DiffOptions{Format: "text"})
	if err != nil {
		t.Fatalf("CompareSnapshots() error = %v, want nil", err)
	}

	if result.Summary.Added != 0 || result.Summary.Removed != 0 || result.Summary.Modified != 0 {
		t.Errorf("summary = %+v, want no differences", result.Summary)
	}
	if result.Summary.Unchanged != 3 {
		t.Errorf("unchanged = %d, want 3", result.Summary.Unchanged)
	}
	if result.Unchanged != nil {
		t.Error("Unchanged populated without detailed mode, want omitted")
	}
}

func TestCompareSnapshots_DetailedIncludesUnchanged(t *testing.T) {
	dir := t.TempDir()
	oldFile := writeSnapshotFile(t, dir, "old.json", testSnapshot())
	newFile := writeSnapshotFile(t, dir, "new.json", testSnapshot())

	result, err := CompareSnapshots(oldFile, newFile, DiffOptions{Format: "text", Detailed: true})
	if err != nil {
		t.Fatalf("CompareSnapshots() error = %v, want nil", err)
	}

	if len(result.Unchanged) != 3 {
		t.Errorf("unchanged = %d, want 3 in detailed mode", len(result.Unchanged))
	}
}

func TestCompareSnapshots_ByResourceTypeStats(t *testing.T) {
	dir := t.TempDir()

	oldSnapshot := testSnapshot()
	newSnapshot := testSnapshot()
	newSnapshot.VmClusters = newSnapshot.VmClusters[:1]

	oldFile := writeSnapshotFile(t, dir, "old.json", oldSnapshot)
	newFile := writeSnapshotFile(t, dir, "new.json", newSnapshot)

	result, err := CompareSnapshots(oldFile, newFile, DiffOptions{Format: "json"})
	if err != nil {
		t.Fatalf("CompareSnapshots() error = %v, want nil", err)
	}

	stats := result.Summary.ByResourceType["VmCluster"]
	if stats.Removed != 1 {
		t.Errorf("VmCluster removed = %d, want 1", stats.Removed)
	}
	if result.Summary.ByResourceType["ExadataInfrastructure"].Unchanged != 1 {
		t.Errorf("ExadataInfrastructure unchanged = %d, want 1",
			result.Summary.ByResourceType["ExadataInfrastructure"].Unchanged)
	}
}

func TestCompareSnapshots_SameFileRejected(t *testing.T) {
	dir := t.TempDir()
	file := writeSnapshotFile(t, dir, "only.json", testSnapshot())

	if _, err := CompareSnapshots(file, file, DiffOptions{Format: "text"}); err == nil {
		t.Error("CompareSnapshots() error = nil, want error for identical paths")
	}
}

func TestCompareSnapshots_MissingFile(t *testing.T) {
	dir := t.TempDir()
	file := writeSnapshotFile(t, dir, "only.json", testSnapshot())

	if _, err := CompareSnapshots(filepath.Join(dir, "absent.json"), file, DiffOptions{Format: "text"}); err == nil {
		t.Error("CompareSnapshots() error = nil, want error for missing old file")
	}
}

func TestWriteDiffResult_UnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	oldFile := writeSnapshotFile(t, dir, "old.json", testSnapshot())
	newFile := writeSnapshotFile(t, dir, "new.json", testSnapshot())

	result, err := CompareSnapshots(oldFile, newFile, DiffOptions{})
	if err != nil {
		t.Fatalf("CompareSnapshots() error = %v, want nil", err)
	}

	opts := DiffOptions{Format: "yaml", OutputFile: filepath.Join(dir, "report")}
	if err := WriteDiffResult(result, opts); err == nil {
		t.Error("WriteDiffResult() error = nil, want error for unsupported format")
	}
}
