package archive

import (
	"fmt"
	"strings"
	"time"
)

// Archive names embed their creation time so that lexical order equals
// chronological order: hub_backup_20250101_030000.tar.gz
const (
	namePrefix = "hub_backup_"
	nameSuffix = ".tar.gz"
	timeLayout = "20060102_150405"
)

// Name returns the archive filename for a creation time.
func Name(t time.Time) string {
	return namePrefix + t.UTC().Format(timeLayout) + nameSuffix
}

// ParseName recovers the creation time from an archive filename.
func ParseName(name string) (time.Time, error) {
	if !strings.HasPrefix(name, namePrefix) || !strings.HasSuffix(name, nameSuffix) {
		return time.Time{}, fmt.Errorf("not a backup archive name: %q", name)
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, namePrefix), nameSuffix)
	t, err := time.Parse(timeLayout, stamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp in %q: %w", name, err)
	}
	return t, nil
}

// IsArchiveName reports whether name looks like a backup archive.
func IsArchiveName(name string) bool {
	_, err := ParseName(name)
	return err == nil
}
