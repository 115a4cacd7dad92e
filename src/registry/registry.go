// Package registry owns the service registry document: the durable catalog
// of every service deployed on the hub, keyed by service name.
package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"hubkeep/src/docio"
)

// DocumentName is the registry's filename inside the data root.
const DocumentName = "service_registry.json"

const schemaVersion = "1.0"

var (
	// ErrCorruptRegistry means the document exists but cannot be parsed or
	// violates the schema. Always fatal; the caller must not guess.
	ErrCorruptRegistry = errors.New("corrupt service registry")
	// ErrDuplicateService means an append would reuse an existing name.
	ErrDuplicateService = errors.New("duplicate service name")
)

// Priority orders services during restore. The zero value is not valid;
// entries without an explicit priority load as PriorityNormal.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityNormal   Priority = "normal"
)

func (p Priority) valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityNormal:
		return true
	}
	return false
}

// ServiceEntry describes one deployed service.
type ServiceEntry struct {
	Name         string    `json:"name"`
	DataPath     string    `json:"data_path"`
	Container    string    `json:"container_name"`
	AccessURL    string    `json:"access_url,omitempty"`
	Description  string    `json:"description,omitempty"`
	ServiceType  string    `json:"service_type,omitempty"`
	Priority     Priority  `json:"backup_priority"`
	InstalledAt  time.Time `json:"installed_at"`
	Ports        []int     `json:"ports,omitempty"`
	Dependencies []string  `json:"dependencies,omitempty"`
	Critical     bool      `json:"critical"`
}

// Info is the registry-level metadata block.
type Info struct {
	Version          string    `json:"version"`
	Created          time.Time `json:"created"`
	LastUpdated      time.Time `json:"last_updated"`
	DiscoveryMethod  string    `json:"discovery_method"`
	BackupCompatible bool      `json:"backup_compatible"`
}

// Registry is the parsed document.
type Registry struct {
	Info     Info           `json:"registry_info"`
	Services []ServiceEntry `json:"services"`
}

// Store binds the registry document to its location on disk.
type Store struct {
	Path string
}

// NewStore returns a store for the registry document under dataRoot.
func NewStore(dataRoot string) *Store {
	return &Store{Path: filepath.Join(dataRoot, DocumentName)}
}

// Load reads and validates the registry. A missing document yields an
// empty, valid registry; a malformed one fails with ErrCorruptRegistry.
func (s *Store) Load() (*Registry, error) {
	var reg Registry
	err := docio.ReadJSON(s.Path, &reg)
	if os.IsNotExist(err) {
		now := time.Now().UTC()
		return &Registry{Info: Info{
			Version:          schemaVersion,
			Created:          now,
			LastUpdated:      now,
			DiscoveryMethod:  "manual",
			BackupCompatible: true,
		}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRegistry, err)
	}
	if err := reg.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRegistry, err)
	}
	return &reg, nil
}

// Append adds a new service and atomically rewrites the document. The
// document on disk is unchanged if the name is already taken.
func (s *Store) Append(entry ServiceEntry) error {
	reg, err := s.Load()
	if err != nil {
		return err
	}
	if entry.Priority == "" {
		entry.Priority = PriorityNormal
	}
	for _, svc := range reg.Services {
		if svc.Name == entry.Name {
			return fmt.Errorf("%w: %s", ErrDuplicateService, entry.Name)
		}
	}
	reg.Services = append(reg.Services, entry)
	reg.Info.LastUpdated = time.Now().UTC()
	if reg.Info.Version == "" {
		reg.Info.Version = schemaVersion
	}
	if err := docio.WriteJSON(s.Path, reg); err != nil {
		return fmt.Errorf("append service %s: %w", entry.Name, err)
	}
	return nil
}

func (r *Registry) validate() error {
	seen := map[string]bool{}
	for i, svc := range r.Services {
		if svc.Name == "" {
			return fmt.Errorf("service %d has no name", i)
		}
		if seen[svc.Name] {
			return fmt.Errorf("service name %q appears twice", svc.Name)
		}
		seen[svc.Name] = true
		if svc.DataPath != "" && !filepath.IsAbs(svc.DataPath) {
			return fmt.Errorf("service %s: data path %q is not absolute", svc.Name, svc.DataPath)
		}
		if svc.Priority != "" && !svc.Priority.valid() {
			return fmt.Errorf("service %s: unknown backup priority %q", svc.Name, svc.Priority)
		}
	}
	return nil
}

// DataPaths lists every declared service data path, in registry order.
func (r *Registry) DataPaths() []string {
	var out []string
	for _, svc := range r.Services {
		if svc.DataPath != "" {
			out = append(out, svc.DataPath)
		}
	}
	return out
}

// ContainerNames lists every declared container name, in registry order.
func (r *Registry) ContainerNames() []string {
	var out []string
	for _, svc := range r.Services {
		if svc.Container != "" {
			out = append(out, svc.Container)
		}
	}
	return out
}

// CriticalFirst splits container names into the priority group (critical
// flag set, or backup priority critical/high) and the remainder, each in
// registry order. Restore starts the first group before the second.
func (r *Registry) CriticalFirst() (priority, rest []string) {
	for _, svc := range r.Services {
		if svc.Container == "" {
			continue
		}
		if svc.Critical || svc.Priority == PriorityCritical || svc.Priority == PriorityHigh {
			priority = append(priority, svc.Container)
		} else {
			rest = append(rest, svc.Container)
		}
	}
	return priority, rest
}

// Lookup returns the entry for name, if present.
func (r *Registry) Lookup(name string) (ServiceEntry, bool) {
	for _, svc := range r.Services {
		if svc.Name == name {
			return svc, true
		}
	}
	return ServiceEntry{}, false
}
