package hubmeta_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"hubkeep/src/hubmeta"
)

func sample(dataRoot, backupRoot string) *hubmeta.Metadata {
	return &hubmeta.Metadata{
		Info: hubmeta.Info{
			Version:    "1.0",
			Hostname:   "hub01",
			LocalIP:    "192.168.1.20",
			HubRoot:    dataRoot,
			BackupRoot: backupRoot,
			User:       "hubadmin",
		},
		Strategy: hubmeta.BackupStrategy{
			ExcludePatterns: []string{"*.log", "cache"},
			RetentionPolicy: 4,
		},
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := hubmeta.NewStore(dir)
	if err := store.Save(sample(dir, dir+"/backups")); err != nil {
		t.Fatalf("save: %v", err)
	}
	meta, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if meta.DataRoot() != dir || meta.BackupRoot() != dir+"/backups" {
		t.Fatalf("paths: %q %q", meta.DataRoot(), meta.BackupRoot())
	}
	if meta.OwningAccount() != "hubadmin" {
		t.Fatalf("owning account %q", meta.OwningAccount())
	}
	if meta.RetentionCount() != 4 {
		t.Fatalf("retention %d", meta.RetentionCount())
	}
	if meta.Info.LastUpdated.IsZero() {
		t.Fatal("save did not set last_updated")
	}
}

func TestRetentionCount_Default(t *testing.T) {
	meta := &hubmeta.Metadata{}
	if meta.RetentionCount() != hubmeta.DefaultRetention {
		t.Fatalf("default retention: %d", meta.RetentionCount())
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := hubmeta.NewStore(t.TempDir()).Load()
	if err == nil {
		t.Fatal("expected error for missing metadata")
	}
}

func TestLoad_Corrupt(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, hubmeta.DocumentName), []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := hubmeta.NewStore(dir).Load()
	if !errors.Is(err, hubmeta.ErrCorruptMetadata) {
		t.Fatalf("got %v, want ErrCorruptMetadata", err)
	}
}
