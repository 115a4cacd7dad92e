// Package hubmeta owns the hub metadata document: host-wide configuration
// shared by every backup and restore component. Components read paths and
// policy exclusively through its accessors, never from the environment.
package hubmeta

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"hubkeep/src/docio"
)

// DocumentName is the metadata filename inside the data root.
const DocumentName = "hub_metadata.json"

// DefaultRetention is how many archives to keep when the document does
// not say otherwise.
const DefaultRetention = 6

// ErrCorruptMetadata means the document cannot be parsed.
var ErrCorruptMetadata = errors.New("corrupt hub metadata")

// Info is the hub_info block.
type Info struct {
	Version       string    `json:"version"`
	Created       time.Time `json:"created"`
	LastUpdated   time.Time `json:"last_updated"`
	LocalIP       string    `json:"local_ip"`
	Hostname      string    `json:"hostname"`
	HubRoot       string    `json:"hub_root"`
	BackupRoot    string    `json:"backup_root"`
	User          string    `json:"user"`
	TotalServices int       `json:"total_services"`
}

// BackupStrategy is the backup_strategy block.
type BackupStrategy struct {
	DataPaths         []string `json:"data_paths,omitempty"`
	ExcludePatterns   []string `json:"exclude_patterns,omitempty"`
	ContainerHandling string   `json:"container_handling,omitempty"`
	RetentionPolicy   int      `json:"retention_policy,omitempty"`
}

// Metadata is the parsed document.
type Metadata struct {
	Info          Info              `json:"hub_info"`
	Strategy      BackupStrategy    `json:"backup_strategy"`
	NetworkConfig map[string]string `json:"network_config,omitempty"`
}

// Store binds the metadata document to its location on disk.
type Store struct {
	Path string
}

// NewStore returns a store for the metadata document under dataRoot.
func NewStore(dataRoot string) *Store {
	return &Store{Path: filepath.Join(dataRoot, DocumentName)}
}

// Load reads the metadata document. Unlike the registry there is no
// auto-initialization: a hub without metadata has not been provisioned.
func (s *Store) Load() (*Metadata, error) {
	var meta Metadata
	err := docio.ReadJSON(s.Path, &meta)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("hub metadata missing at %s (hub not provisioned?)", s.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptMetadata, err)
	}
	return &meta, nil
}

// Save atomically rewrites the document, bumping last_updated.
func (s *Store) Save(meta *Metadata) error {
	meta.Info.LastUpdated = time.Now().UTC()
	return docio.WriteJSON(s.Path, meta)
}

// RetentionCount is how many archives the retention manager keeps.
func (m *Metadata) RetentionCount() int {
	if m.Strategy.RetentionPolicy > 0 {
		return m.Strategy.RetentionPolicy
	}
	return DefaultRetention
}

// DataRoot is the directory tree holding all per-service state.
func (m *Metadata) DataRoot() string { return m.Info.HubRoot }

// BackupRoot is the directory holding the archive catalog and backup log.
func (m *Metadata) BackupRoot() string { return m.Info.BackupRoot }

// OwningAccount is the account that owns the data root after a restore.
func (m *Metadata) OwningAccount() string { return m.Info.User }

// ExcludePatterns are glob patterns skipped when snapshotting the data root.
func (m *Metadata) ExcludePatterns() []string { return m.Strategy.ExcludePatterns }
