package cli_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hubkeep/src/archive"
	"hubkeep/src/cli"
	"hubkeep/src/docio"
	"hubkeep/src/hubmeta"
	"hubkeep/src/version"
)

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := cli.NewRootCmd(&stdout, &stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

// provisionHub writes a minimal hub layout: data root with the metadata
// document, plus an empty backup root. Returns the hub root.
func provisionHub(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	hubRoot := filepath.Join(base, "hub")
	backupRoot := filepath.Join(base, "backups")
	for _, dir := range []string{hubRoot, backupRoot} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	meta := &hubmeta.Metadata{Info: hubmeta.Info{
		Version:    "1.0",
		Hostname:   "hub01",
		HubRoot:    hubRoot,
		BackupRoot: backupRoot,
	}}
	if err := docio.WriteJSON(filepath.Join(hubRoot, hubmeta.DocumentName), meta); err != nil {
		t.Fatal(err)
	}
	return hubRoot
}

func backupRootOf(hubRoot string) string {
	return filepath.Join(filepath.Dir(hubRoot), "backups")
}

func TestVersionCmd(t *testing.T) {
	stdout, _, err := runCLI(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(stdout) != version.Version {
		t.Fatalf("version output %q", stdout)
	}
}

func TestBackupCmd_CreatesArchive(t *testing.T) {
	hubRoot := provisionHub(t)
	if err := os.MkdirAll(filepath.Join(hubRoot, "svc"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(hubRoot, "svc", "f.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	stdout, _, err := runCLI(t, "backup", "--hub-root", hubRoot)
	if err != nil {
		t.Fatalf("backup: %v", err)
	}
	if !strings.Contains(stdout, "Created ") {
		t.Fatalf("stdout: %q", stdout)
	}
	entries, err := archive.NewCatalog(backupRootOf(hubRoot)).List()
	if err != nil || len(entries) != 1 {
		t.Fatalf("catalog: %v %d", err, len(entries))
	}
}

func TestBackupCmd_DryRun(t *testing.T) {
	hubRoot := provisionHub(t)
	stdout, _, err := runCLI(t, "backup", "--hub-root", hubRoot, "--dry-run")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, "Would back up") {
		t.Fatalf("stdout: %q", stdout)
	}
	entries, _ := archive.NewCatalog(backupRootOf(hubRoot)).List()
	if len(entries) != 0 {
		t.Fatal("dry run created an archive")
	}
}

func TestBackupVerifyCmd_FailsOnCorrupt(t *testing.T) {
	hubRoot := provisionHub(t)
	bad := filepath.Join(backupRootOf(hubRoot), archive.Name(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
	if err := os.WriteFile(bad, []byte("definitely not gzip"), 0o644); err != nil {
		t.Fatal(err)
	}

	stdout, _, err := runCLI(t, "backup", "--hub-root", hubRoot, "--verify")
	if err == nil {
		t.Fatal("verify should fail with a corrupt archive")
	}
	if !strings.Contains(stdout, "quarantined") {
		t.Fatalf("stdout: %q", stdout)
	}

	// A clean catalog verifies quietly.
	if _, _, err := runCLI(t, "backup", "--hub-root", hubRoot, "--verify"); err != nil {
		t.Fatalf("second verify: %v", err)
	}
}

func TestBackupCleanupCmd_PrunesCatalog(t *testing.T) {
	hubRoot := provisionHub(t)
	backupRoot := backupRootOf(hubRoot)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		name := archive.Name(base.Add(time.Duration(i) * time.Hour))
		if err := os.WriteFile(filepath.Join(backupRoot, name), []byte("a"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if _, _, err := runCLI(t, "backup", "--hub-root", hubRoot, "--cleanup"); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	entries, _ := archive.NewCatalog(backupRoot).List()
	if len(entries) != 6 {
		t.Fatalf("got %d live archives, want 6", len(entries))
	}
	if entries[0].Name != archive.Name(base.Add(time.Hour)) {
		t.Fatalf("oldest survivor %s", entries[0].Name)
	}
}

func TestBackupCmd_VerifyAndCleanupExclusive(t *testing.T) {
	hubRoot := provisionHub(t)
	if _, _, err := runCLI(t, "backup", "--hub-root", hubRoot, "--verify", "--cleanup"); err == nil {
		t.Fatal("expected flag conflict error")
	}
}

func TestListCmd(t *testing.T) {
	hubRoot := provisionHub(t)
	name := archive.Name(time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC))
	if err := os.WriteFile(filepath.Join(backupRootOf(hubRoot), name), []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	stdout, _, err := runCLI(t, "list", "--hub-root", hubRoot)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, name) || !strings.Contains(stdout, "2025-02-03 04:05:06") {
		t.Fatalf("stdout: %q", stdout)
	}
}

func TestRestoreCmd_DryRun(t *testing.T) {
	hubRoot := provisionHub(t)
	stdout, _, err := runCLI(t, "restore", "/tmp/any.tar.gz", "--hub-root", hubRoot, "--dry-run")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, "Would restore") {
		t.Fatalf("stdout: %q", stdout)
	}
}

func TestUnprovisionedHub(t *testing.T) {
	if _, _, err := runCLI(t, "backup", "--hub-root", t.TempDir()); err == nil {
		t.Fatal("expected error for unprovisioned hub")
	}
}

func TestBadLogLevel(t *testing.T) {
	if _, _, err := runCLI(t, "version", "--log-level", "chatty"); err == nil {
		t.Fatal("expected error for bad log level")
	}
}
