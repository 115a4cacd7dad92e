package safety

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type stubPinger struct{ err error }

func (p stubPinger) ListAll() ([]string, error) { return nil, p.err }

func asNonRoot(t *testing.T) {
	t.Helper()
	orig := geteuid
	geteuid = func() int { return 1000 }
	t.Cleanup(func() { geteuid = orig })
}

func TestPreflightRestore_OK(t *testing.T) {
	asNonRoot(t)
	dataRoot := filepath.Join(t.TempDir(), "deep", "hub")
	if err := PreflightRestore(stubPinger{}, dataRoot); err != nil {
		t.Fatalf("preflight: %v", err)
	}
	// The parent must have been created.
	if _, err := os.Stat(filepath.Dir(dataRoot)); err != nil {
		t.Fatalf("parent not created: %v", err)
	}
}

func TestPreflightRestore_RefusesRoot(t *testing.T) {
	orig := geteuid
	geteuid = func() int { return 0 }
	t.Cleanup(func() { geteuid = orig })

	err := PreflightRestore(stubPinger{}, t.TempDir())
	var cerr *CheckError
	if !errors.As(err, &cerr) {
		t.Fatalf("got %v, want CheckError", err)
	}
}

func TestPreflightRestore_RuntimeUnreachable(t *testing.T) {
	asNonRoot(t)
	err := PreflightRestore(stubPinger{err: errors.New("socket gone")}, t.TempDir())
	var cerr *CheckError
	if !errors.As(err, &cerr) {
		t.Fatalf("got %v, want CheckError", err)
	}
}
