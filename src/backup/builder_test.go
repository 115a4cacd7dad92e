package backup_test

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"hubkeep/src/archive"
	"hubkeep/src/backup"
	"hubkeep/src/hubmeta"
)

func testMeta(t *testing.T) *hubmeta.Metadata {
	t.Helper()
	base := t.TempDir()
	dataRoot := filepath.Join(base, "hub")
	if err := os.MkdirAll(dataRoot, 0o755); err != nil {
		t.Fatal(err)
	}
	return &hubmeta.Metadata{
		Info: hubmeta.Info{
			Hostname:   "hub01",
			LocalIP:    "192.168.1.20",
			HubRoot:    dataRoot,
			BackupRoot: filepath.Join(base, "backups"),
		},
	}
}

func quietBuilder(meta *hubmeta.Metadata) *backup.Builder {
	b := backup.NewBuilder(meta)
	b.Log = logrus.New()
	b.Log.SetOutput(io.Discard)
	b.SystemPaths = nil
	b.SkipPrune = true
	return b
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// Backing up a data root with two service files yields an archive whose
// data snapshot extracts to exactly those files, unchanged.
func TestBuilder_Run(t *testing.T) {
	meta := testMeta(t)
	writeFile(t, filepath.Join(meta.DataRoot(), "serviceA", "config", "x.yaml"), "key: value")
	payload := strings.Repeat("z", 1024)
	writeFile(t, filepath.Join(meta.DataRoot(), "serviceB", "data", "y.db"), payload)

	b := quietBuilder(meta)
	b.Now = func() time.Time { return time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC) }
	path, err := b.Run()
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if filepath.Base(path) != "hub_backup_20250601_030000.tar.gz" {
		t.Fatalf("archive name %s", filepath.Base(path))
	}

	insp := archive.Inspect(path)
	if !insp.Complete() {
		t.Fatalf("archive incomplete: %+v", insp)
	}
	for _, m := range []string{archive.MemberData, archive.MemberSystem, archive.MemberManifest, archive.MemberInstructions} {
		if !insp.Members[m] {
			t.Fatalf("member %s missing", m)
		}
	}

	// The data snapshot holds exactly the original tree.
	extracted := extractData(t, path)
	if got := readFile(t, filepath.Join(extracted, "serviceA", "config", "x.yaml")); got != "key: value" {
		t.Fatalf("x.yaml: %q", got)
	}
	if got := readFile(t, filepath.Join(extracted, "serviceB", "data", "y.db")); got != payload {
		t.Fatalf("y.db changed (%d bytes)", len(got))
	}

	// Manifest lists the service directories seen on disk.
	manifest := extractMember(t, path, archive.MemberManifest)
	for _, want := range []string{"hostname: hub01", "local_ip: 192.168.1.20", "- serviceA", "- serviceB"} {
		if !strings.Contains(manifest, want) {
			t.Fatalf("manifest missing %q:\n%s", want, manifest)
		}
	}

	// Backup log recorded the event.
	logData := readFile(t, filepath.Join(meta.BackupRoot(), backup.LogName))
	if !strings.Contains(logData, "backup_created: hub_backup_20250601_030000.tar.gz") {
		t.Fatalf("backup log: %q", logData)
	}

	// No staging leftovers.
	dirents, err := os.ReadDir(meta.BackupRoot())
	if err != nil {
		t.Fatal(err)
	}
	for _, d := range dirents {
		if strings.HasPrefix(d.Name(), ".staging-") {
			t.Fatalf("staging dir left behind: %s", d.Name())
		}
	}
}

func TestBuilder_ExcludePatterns(t *testing.T) {
	meta := testMeta(t)
	meta.Strategy.ExcludePatterns = []string{"*.log", "cache"}
	writeFile(t, filepath.Join(meta.DataRoot(), "svc", "app.db"), "data")
	writeFile(t, filepath.Join(meta.DataRoot(), "svc", "app.log"), "noise")
	writeFile(t, filepath.Join(meta.DataRoot(), "cache", "blob"), "noise")

	path, err := quietBuilder(meta).Run()
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	extracted := extractData(t, path)
	if _, err := os.Stat(filepath.Join(extracted, "svc", "app.db")); err != nil {
		t.Fatalf("app.db missing: %v", err)
	}
	for _, gone := range []string{filepath.Join("svc", "app.log"), "cache"} {
		if _, err := os.Stat(filepath.Join(extracted, gone)); !os.IsNotExist(err) {
			t.Fatalf("%s not excluded", gone)
		}
	}
}

func TestBuilder_DataRootMissing(t *testing.T) {
	meta := testMeta(t)
	if err := os.RemoveAll(meta.DataRoot()); err != nil {
		t.Fatal(err)
	}
	_, err := quietBuilder(meta).Run()
	if !errors.Is(err, backup.ErrDataRootMissing) {
		t.Fatalf("got %v, want ErrDataRootMissing", err)
	}
	// Nothing may appear in the catalog.
	entries, _ := archive.NewCatalog(meta.BackupRoot()).List()
	if len(entries) != 0 {
		t.Fatalf("catalog not empty: %v", entries)
	}
}

// System path snapshots are convenience-only: a builder with only absent
// system paths still produces a complete archive with an empty member.
func TestBuilder_SystemPathsAbsent(t *testing.T) {
	meta := testMeta(t)
	writeFile(t, filepath.Join(meta.DataRoot(), "svc", "f"), "x")
	b := quietBuilder(meta)
	b.SystemPaths = []string{filepath.Join(t.TempDir(), "no-such-path")}
	path, err := b.Run()
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if insp := archive.Inspect(path); !insp.Complete() || !insp.Members[archive.MemberSystem] {
		t.Fatalf("archive incomplete: %+v", insp)
	}
}

func extractMember(t *testing.T, archivePath, member string) string {
	t.Helper()
	dest := filepath.Join(t.TempDir(), "member")
	if err := archive.ExtractMember(archivePath, member, dest); err != nil {
		t.Fatalf("extract %s: %v", member, err)
	}
	return readFile(t, dest)
}

func extractData(t *testing.T, archivePath string) string {
	t.Helper()
	raw := extractMember(t, archivePath, archive.MemberData)
	dir := t.TempDir()
	if err := archive.ExtractTarGz(bytes.NewReader([]byte(raw)), dir); err != nil {
		t.Fatalf("extract data snapshot: %v", err)
	}
	return dir
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}
