package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"hubkeep/src/archive"
	"hubkeep/src/hubmeta"
)

// Emergency pruning thresholds on free space in the backup root. Below the
// warn threshold the operator is warned; below the critical threshold the
// catalog is cut down to emergencyKeep regardless of the retention policy.
const (
	lowSpaceWarnBytes     = 2 << 30  // 2 GiB
	lowSpaceCriticalBytes = 512 << 20 // 512 MiB
	emergencyKeep         = 3
)

// Maintenance horizons for the ancillary cleanup pass.
const (
	logHorizon        = 90 * 24 * time.Hour
	staleStagingAfter = 24 * time.Hour
)

// Retention bounds the live catalog to the configured retention count,
// with an overriding emergency policy under disk pressure. Quarantined
// archives are never touched.
type Retention struct {
	Meta *hubmeta.Metadata
	Log  *logrus.Logger

	// DiskFree reports free bytes on the filesystem holding path.
	// Swapped in tests to simulate disk pressure.
	DiskFree func(path string) (uint64, error)
}

// NewRetention returns a retention manager with production defaults.
func NewRetention(meta *hubmeta.Metadata) *Retention {
	return &Retention{Meta: meta, Log: logrus.StandardLogger(), DiskFree: diskFree}
}

// Prune deletes the oldest live archives beyond the retention count and
// returns what it deleted. Under critically low disk space the keep count
// drops to emergencyKeep.
func (r *Retention) Prune() ([]archive.Entry, error) {
	backupRoot := r.Meta.BackupRoot()
	keep := r.Meta.RetentionCount()

	if free, err := r.DiskFree(backupRoot); err == nil {
		switch {
		case free < lowSpaceCriticalBytes:
			r.Log.WithField("free_bytes", free).Warn("backup root critically low on space; emergency pruning")
			if keep > emergencyKeep {
				keep = emergencyKeep
			}
		case free < lowSpaceWarnBytes:
			r.Log.WithField("free_bytes", free).Warn("backup root low on space")
		}
	}

	entries, err := archive.NewCatalog(backupRoot).List()
	if err != nil {
		return nil, err
	}
	if len(entries) <= keep {
		return nil, nil
	}
	doomed := entries[:len(entries)-keep]
	for _, e := range doomed {
		if err := os.Remove(e.Path); err != nil {
			return nil, fmt.Errorf("prune %s: %w", e.Name, err)
		}
		r.Log.WithField("archive", e.Name).Info("pruned old archive")
		if err := AppendLog(backupRoot, time.Now(), "backup_pruned", e.Name); err != nil {
			r.Log.WithError(err).Warn("could not append to backup log")
		}
	}
	return doomed, nil
}

// Maintain runs the full cleanup pass: size-based prune, backup-log trim,
// and removal of stale staging directories left by interrupted runs.
func (r *Retention) Maintain(now time.Time) error {
	if _, err := r.Prune(); err != nil {
		return err
	}
	backupRoot := r.Meta.BackupRoot()
	if err := TrimLog(backupRoot, now.Add(-logHorizon)); err != nil {
		return err
	}
	return r.sweepStaging(backupRoot, now)
}

func (r *Retention) sweepStaging(backupRoot string, now time.Time) error {
	dirents, err := os.ReadDir(backupRoot)
	if err != nil {
		return err
	}
	for _, d := range dirents {
		if !d.IsDir() || !strings.HasPrefix(d.Name(), stagingPrefix) {
			continue
		}
		info, err := d.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) < staleStagingAfter {
			continue
		}
		path := filepath.Join(backupRoot, d.Name())
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("remove stale staging dir %s: %w", path, err)
		}
		r.Log.WithField("dir", d.Name()).Info("removed stale staging directory")
	}
	return nil
}
