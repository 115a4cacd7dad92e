package containerapi

// Client is a narrow interface over the container runtime used by the
// backup/restore core. Keep it small and focused on what we actually need
// so it stays mockable.
type Client interface {
	// ListRunning returns the names of currently running containers.
	ListRunning() ([]string, error)
	// ListAll returns the names of all containers, running or not.
	ListAll() ([]string, error)
	// Stop stops the named container, blocking until it is down.
	Stop(name string) error
	// Start starts the named container.
	Start(name string) error
}
