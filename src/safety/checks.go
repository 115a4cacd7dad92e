package safety

import (
	"fmt"
	"os"
	"path/filepath"
)

// CheckError reports an unsafe operating context detected before any
// destructive step is taken. It is always fatal to the calling operation.
type CheckError struct {
	Reason string
}

func (e *CheckError) Error() string { return "safety check failed: " + e.Reason }

// Pinger is the slice of the container runtime needed to test reachability.
type Pinger interface {
	ListAll() ([]string, error)
}

// geteuid is a seam for tests, which may run as root.
var geteuid = os.Geteuid

// PreflightRestore verifies the operating context before a restore touches
// anything: the operator must not be root, the container runtime must be
// reachable, and the data root's parent directory must exist (it is created
// when missing). A nil error means the restore may proceed.
func PreflightRestore(rt Pinger, dataRoot string) error {
	if geteuid() == 0 {
		return &CheckError{Reason: "running as root; run as the hub's owning account"}
	}
	if _, err := rt.ListAll(); err != nil {
		return &CheckError{Reason: fmt.Sprintf("container runtime unreachable: %v", err)}
	}
	parent := filepath.Dir(dataRoot)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return &CheckError{Reason: fmt.Sprintf("cannot ensure parent of data root %s: %v", dataRoot, err)}
	}
	return nil
}
