// Package backup implements the archive-producing side of the core: the
// backup builder, the verification engine, the retention manager, and the
// append-only backup log.
package backup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"hubkeep/src/archive"
	"hubkeep/src/fsutil"
	"hubkeep/src/hubmeta"
)

var (
	// ErrDataRootMissing means the configured data root does not exist.
	ErrDataRootMissing = errors.New("data root missing")
	// ErrArchiveWriteFailed means the archive could not be produced; the
	// catalog is left unchanged.
	ErrArchiveWriteFailed = errors.New("archive write failed")
)

// DefaultSystemPaths is the bounded set of system configuration paths
// included in every archive. They are convenience-only: losing them never
// fails a backup.
var DefaultSystemPaths = []string{
	"/etc/hosts",
	"/etc/hostname",
	"/etc/fstab",
	"/etc/ssh/sshd_config",
}

const stagingPrefix = ".staging-"

// Builder produces one archive per Run from the data root described by the
// hub metadata.
type Builder struct {
	Meta *hubmeta.Metadata
	Log  *logrus.Logger

	// SystemPaths overrides DefaultSystemPaths, mainly for tests.
	SystemPaths []string
	// Now is the clock; archives are named after its value.
	Now func() time.Time
	// SkipPrune leaves the retention pass to the caller.
	SkipPrune bool
}

// NewBuilder returns a builder with production defaults.
func NewBuilder(meta *hubmeta.Metadata) *Builder {
	return &Builder{
		Meta:        meta,
		Log:         logrus.StandardLogger(),
		SystemPaths: DefaultSystemPaths,
		Now:         time.Now,
	}
}

// Run produces exactly one new archive in the backup root and returns its
// path. On any fatal failure all intermediate state is discarded and the
// catalog is unchanged.
func (b *Builder) Run() (string, error) {
	dataRoot := b.Meta.DataRoot()
	if !fsutil.DirExists(dataRoot) {
		return "", fmt.Errorf("%w: %s", ErrDataRootMissing, dataRoot)
	}
	backupRoot := b.Meta.BackupRoot()
	if err := os.MkdirAll(backupRoot, 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrArchiveWriteFailed, err)
	}

	now := b.Now().UTC()
	name := archive.Name(now)
	staging := filepath.Join(backupRoot, stagingPrefix+uuid.NewString())
	if err := os.MkdirAll(staging, 0o700); err != nil {
		return "", fmt.Errorf("%w: %v", ErrArchiveWriteFailed, err)
	}
	defer os.RemoveAll(staging)

	// Data-root snapshot. This is the recovery-critical member; any
	// failure aborts the whole backup.
	if err := b.snapshotDataRoot(staging, dataRoot); err != nil {
		return "", fmt.Errorf("%w: snapshot data root: %v", ErrArchiveWriteFailed, err)
	}

	// System configuration snapshot. Convenience-only: on failure an
	// empty member is substituted and we keep going.
	if err := b.snapshotSystemPaths(staging); err != nil {
		b.Log.WithError(err).Warn("system configuration snapshot failed; writing empty member")
		if err := writeEmptyTarGz(filepath.Join(staging, archive.MemberSystem)); err != nil {
			return "", fmt.Errorf("%w: %v", ErrArchiveWriteFailed, err)
		}
	}

	if err := b.writeManifest(staging, dataRoot, now); err != nil {
		return "", fmt.Errorf("%w: manifest: %v", ErrArchiveWriteFailed, err)
	}
	if err := b.writeInstructions(staging, name); err != nil {
		return "", fmt.Errorf("%w: instructions: %v", ErrArchiveWriteFailed, err)
	}

	// Assemble under the staging dir, then rename into the catalog, so a
	// partial archive never carries the final name.
	packed := filepath.Join(staging, name)
	members := []string{archive.MemberData, archive.MemberSystem, archive.MemberManifest, archive.MemberInstructions}
	if err := archive.Pack(packed, staging, members); err != nil {
		return "", fmt.Errorf("%w: %v", ErrArchiveWriteFailed, err)
	}
	final := filepath.Join(backupRoot, name)
	if err := os.Rename(packed, final); err != nil {
		return "", fmt.Errorf("%w: %v", ErrArchiveWriteFailed, err)
	}

	size := int64(0)
	if info, err := os.Stat(final); err == nil {
		size = info.Size()
	}
	if err := AppendLog(backupRoot, now, "backup_created", fmt.Sprintf("%s (%d bytes)", name, size)); err != nil {
		b.Log.WithError(err).Warn("could not append to backup log")
	}
	b.Log.WithFields(logrus.Fields{"archive": name, "bytes": size}).Info("backup created")

	if !b.SkipPrune {
		ret := NewRetention(b.Meta)
		ret.Log = b.Log
		if _, err := ret.Prune(); err != nil {
			b.Log.WithError(err).Warn("retention prune failed")
		}
	}
	return final, nil
}

func (b *Builder) snapshotDataRoot(staging, dataRoot string) error {
	out, err := os.Create(filepath.Join(staging, archive.MemberData))
	if err != nil {
		return err
	}
	if err := archive.BuildTarGz(out, dataRoot, b.Meta.ExcludePatterns()); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// snapshotSystemPaths copies the configured system paths into a scratch
// tree (relative to /) and tars it up.
func (b *Builder) snapshotSystemPaths(staging string) error {
	tree := filepath.Join(staging, "system-essentials")
	if err := os.MkdirAll(tree, 0o755); err != nil {
		return err
	}
	copied := 0
	for _, p := range b.SystemPaths {
		info, err := os.Stat(p)
		if err != nil {
			continue // absent paths are expected across distros
		}
		dst := filepath.Join(tree, strings.TrimPrefix(p, "/"))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		if info.IsDir() {
			err = fsutil.CopyTree(p, dst)
		} else {
			err = fsutil.CopyFile(p, dst, info.Mode().Perm())
		}
		if err != nil {
			return err
		}
		copied++
	}
	if copied == 0 {
		b.Log.Warn("no system configuration paths found")
	}
	out, err := os.Create(filepath.Join(staging, archive.MemberSystem))
	if err != nil {
		return err
	}
	if err := archive.BuildTarGz(out, tree, nil); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// writeManifest records creation time, host identity, and the service
// directories actually present under the data root. The listing is taken
// live rather than from the registry so undeclared directories are still
// captured.
func (b *Builder) writeManifest(staging, dataRoot string, now time.Time) error {
	dirs, err := topLevelDirs(dataRoot)
	if err != nil {
		return err
	}
	hostname := b.Meta.Info.Hostname
	if hostname == "" {
		hostname, _ = os.Hostname()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "created: %s\n", now.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&sb, "hostname: %s\n", hostname)
	fmt.Fprintf(&sb, "local_ip: %s\n", b.Meta.Info.LocalIP)
	fmt.Fprintf(&sb, "data_root: %s\n", dataRoot)
	fmt.Fprintf(&sb, "services:\n")
	for _, d := range dirs {
		fmt.Fprintf(&sb, "  - %s\n", d)
	}
	return os.WriteFile(filepath.Join(staging, archive.MemberManifest), []byte(sb.String()), 0o644)
}

const restoreInstructions = `HUB BACKUP RESTORE GUIDE
========================

1. Install the hubkeep binary on the new host.
2. Ensure the container runtime is installed and reachable.
3. Run, as the hub's owning account (never root):

     hubkeep restore /path/to/%s

4. The restore stops all containers, replaces the data root, restores
   ownership, and restarts critical services before the rest.
5. The previous data root is kept beside the new one with a ".old"
   suffix until you remove it yourself.

Manual fallback: extract %s from this archive and unpack it over the
data root, then restart containers by hand, databases first.
`

func (b *Builder) writeInstructions(staging, name string) error {
	text := fmt.Sprintf(restoreInstructions, name, archive.MemberData)
	return os.WriteFile(filepath.Join(staging, archive.MemberInstructions), []byte(text), 0o644)
}

func writeEmptyTarGz(path string) error {
	dir, err := os.MkdirTemp(filepath.Dir(path), "empty-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := archive.BuildTarGz(out, dir, nil); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func topLevelDirs(root string) ([]string, error) {
	dirents, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, d := range dirents {
		if d.IsDir() && !strings.HasPrefix(d.Name(), ".") {
			dirs = append(dirs, d.Name())
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}
