package archive

import (
	"os"
	"path/filepath"
	"sort"
	"time"
)

// QuarantineDir is the subdirectory of the backup root holding archives
// that failed verification. Quarantined archives are not part of the live
// catalog.
const QuarantineDir = "corrupted"

// Entry is one archive in the catalog.
type Entry struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
	Size      int64     `json:"size"`
}

// Catalog enumerates the live archives in a backup root.
type Catalog struct {
	Root string
}

// NewCatalog returns a catalog over the given backup root.
func NewCatalog(root string) Catalog { return Catalog{Root: root} }

// List returns the live archives sorted oldest first. Files that do not
// parse as archive names are ignored, as is the quarantine subdirectory.
func (c Catalog) List() ([]Entry, error) {
	dirents, err := os.ReadDir(c.Root)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	for _, d := range dirents {
		if d.IsDir() {
			continue
		}
		t, err := ParseName(d.Name())
		if err != nil {
			continue
		}
		info, err := d.Info()
		if err != nil {
			continue
		}
		entries = append(entries, Entry{
			Name:      d.Name(),
			Path:      filepath.Join(c.Root, d.Name()),
			CreatedAt: t,
			Size:      info.Size(),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	return entries, nil
}

// Quarantine moves an archive out of the live catalog into the quarantine
// subdirectory, leaving its bytes untouched.
func (c Catalog) Quarantine(e Entry) error {
	qdir := filepath.Join(c.Root, QuarantineDir)
	if err := os.MkdirAll(qdir, 0o755); err != nil {
		return err
	}
	return os.Rename(e.Path, filepath.Join(qdir, e.Name))
}
