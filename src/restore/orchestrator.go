// Package restore implements the restore orchestrator: a sequential state
// machine that validates an archive, snapshots the current data root, stops
// containers, swaps the data root with rollback on failure, and restarts
// services in dependency order.
package restore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"hubkeep/src/archive"
	"hubkeep/src/containerapi"
	"hubkeep/src/fsutil"
	"hubkeep/src/hubmeta"
	"hubkeep/src/registry"
	"hubkeep/src/safety"
	"hubkeep/src/util/progress"
)

// State names the orchestrator's position in the restore sequence.
type State string

const (
	StateValidating          State = "validating"
	StateSafetyChecking      State = "safety-checking"
	StateSnapshottingCurrent State = "snapshotting-current"
	StateStopping            State = "stopping"
	StateExtracting          State = "extracting"
	StateReplacing           State = "replacing"
	StateRestartingCritical  State = "restarting-critical"
	StateRestartingRemaining State = "restarting-remaining"
	StateHealthChecking      State = "health-checking"
	StateDone                State = "done"
	StateAborted             State = "aborted"
)

// OldSuffix marks the pre-restore data root kept beside the restored one.
const OldSuffix = ".old"

// ValidationError means the archive cannot be restored from; nothing was
// touched.
type ValidationError struct {
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("archive %s not restorable: %s", e.Path, e.Reason)
}

// ReplacementError means placing the new data root failed. RolledBack
// reports whether the previous data root was put back in place.
type ReplacementError struct {
	Err        error
	RolledBack bool
}

func (e *ReplacementError) Error() string {
	if e.RolledBack {
		return fmt.Sprintf("data root replacement failed (previous data root restored): %v", e.Err)
	}
	return fmt.Sprintf("data root replacement failed: %v", e.Err)
}

func (e *ReplacementError) Unwrap() error { return e.Err }

// Report accumulates everything the operator needs to judge a restore.
// Stop/start failures and health results degrade the report without
// aborting it; only states before Replacing abort.
type Report struct {
	State          State          `json:"state"`
	Archive        string         `json:"archive"`
	SafetySnapshot string         `json:"safety_snapshot,omitempty"`
	OldDataRoot    string         `json:"old_data_root,omitempty"`
	StopFailures   []string       `json:"stop_failures,omitempty"`
	StartFailures  []string       `json:"start_failures,omitempty"`
	Health         []HealthResult `json:"health,omitempty"`
	Warnings       []string       `json:"warnings,omitempty"`
}

// Replaced reports whether the restored data root made it into place,
// which is the bar for overall success.
func (r *Report) Replaced() bool {
	switch r.State {
	case StateReplacing, StateRestartingCritical, StateRestartingRemaining, StateHealthChecking, StateDone:
		return true
	}
	return false
}

// placeDataRoot is a seam so tests can force the placement rename to fail.
var placeDataRoot = os.Rename

// Orchestrator drives one restore session end to end.
type Orchestrator struct {
	Runtime  containerapi.Client
	Registry *registry.Registry
	Meta     *hubmeta.Metadata
	Log      *logrus.Logger

	// SettleDelay is slept after starting each critical container so
	// stateful services come up before their dependents.
	SettleDelay time.Duration
	// Preflight is the safety check run before anything destructive.
	Preflight func(rt safety.Pinger, dataRoot string) error
	// Prober answers health probes; see health.go.
	Prober Prober
	// ProgressOut, when set, receives extraction progress lines.
	ProgressOut io.Writer
}

// New returns an orchestrator with production defaults.
func New(rt containerapi.Client, reg *registry.Registry, meta *hubmeta.Metadata) *Orchestrator {
	return &Orchestrator{
		Runtime:     rt,
		Registry:    reg,
		Meta:        meta,
		Log:         logrus.StandardLogger(),
		SettleDelay: 5 * time.Second,
		Preflight:   safety.PreflightRestore,
		Prober:      TCPProber{Timeout: 2 * time.Second},
	}
}

// Run restores archivePath over the configured data root. The returned
// report is always non-nil; err is non-nil only for fatal outcomes.
func (o *Orchestrator) Run(archivePath string) (*Report, error) {
	rep := &Report{State: StateValidating, Archive: archivePath}
	dataRoot := o.Meta.DataRoot()

	abort := func(err error) (*Report, error) {
		rep.State = StateAborted
		return rep, err
	}
	warn := func(format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		rep.Warnings = append(rep.Warnings, msg)
		o.Log.Warn(msg)
	}

	// Validating: same completeness bar as the verification engine.
	insp := archive.Inspect(archivePath)
	if insp.Err != nil && os.IsNotExist(insp.Err) {
		return abort(&ValidationError{Path: archivePath, Reason: "no such file"})
	}
	if !insp.Decompressible {
		return abort(&ValidationError{Path: archivePath, Reason: "does not decompress"})
	}
	if !insp.Members[archive.MemberData] {
		return abort(&ValidationError{Path: archivePath, Reason: "missing " + archive.MemberData})
	}

	rep.State = StateSafetyChecking
	if err := o.Preflight(o.Runtime, dataRoot); err != nil {
		return abort(err)
	}

	// SnapshottingCurrent: best effort, the operator accepts residual
	// risk if this fails.
	rep.State = StateSnapshottingCurrent
	if snap, err := o.snapshotCurrent(dataRoot); err != nil {
		warn("could not snapshot current data root: %v", err)
	} else if snap != "" {
		rep.SafetySnapshot = snap
		o.Log.WithField("path", snap).Info("safety snapshot of current data root")
	}

	rep.State = StateStopping
	running := o.stopContainers(rep, warn)

	rep.State = StateExtracting
	scratch, newData, err := o.extract(archivePath, dataRoot)
	if scratch != "" {
		defer os.RemoveAll(scratch)
	}
	if err != nil {
		return abort(fmt.Errorf("extract archive: %w", err))
	}

	rep.State = StateReplacing
	if err := o.replace(rep, dataRoot, newData, warn); err != nil {
		return abort(err)
	}

	rep.State = StateRestartingCritical
	priority, rest := o.Registry.CriticalFirst()
	for _, name := range priority {
		o.startContainer(rep, name)
		time.Sleep(o.SettleDelay)
	}

	rep.State = StateRestartingRemaining
	started := map[string]bool{}
	for _, name := range priority {
		started[name] = true
	}
	for _, name := range rest {
		started[name] = true
		o.startContainer(rep, name)
	}
	// Containers we stopped but that no registry entry declares still get
	// restarted; a stale registry must not strand a running service.
	for _, name := range running {
		if !started[name] {
			o.startContainer(rep, name)
		}
	}

	rep.State = StateHealthChecking
	rep.Health = ProbeServices(o.Prober, o.Registry)

	rep.State = StateDone
	return rep, nil
}

// snapshotCurrent copies a non-empty data root to a temporary safety
// location and returns its path ("" when there was nothing to snapshot).
func (o *Orchestrator) snapshotCurrent(dataRoot string) (string, error) {
	if !fsutil.DirExists(dataRoot) {
		return "", nil
	}
	empty, err := fsutil.IsEmptyDir(dataRoot)
	if err != nil || empty {
		return "", err
	}
	snap, err := os.MkdirTemp(filepath.Dir(dataRoot), ".pre-restore-")
	if err != nil {
		return "", err
	}
	if err := fsutil.CopyTree(dataRoot, filepath.Join(snap, "data")); err != nil {
		return "", err
	}
	return snap, nil
}

// stopContainers stops everything currently running, best effort, and
// returns the names it attempted so they can be restarted later.
func (o *Orchestrator) stopContainers(rep *Report, warn func(string, ...any)) []string {
	running, err := o.Runtime.ListRunning()
	if err != nil {
		warn("could not list running containers: %v; falling back to registry", err)
		running = o.Registry.ContainerNames()
	}
	for _, name := range running {
		if err := o.Runtime.Stop(name); err != nil {
			o.Log.WithError(err).WithField("container", name).Warn("stop failed")
			rep.StopFailures = append(rep.StopFailures, name)
		}
	}
	return running
}

// extract unpacks the archive's data-root snapshot into a scratch dir on
// the same filesystem as the data root, so the final placement is a rename.
func (o *Orchestrator) extract(archivePath, dataRoot string) (scratch, newData string, err error) {
	scratch, err = os.MkdirTemp(filepath.Dir(dataRoot), ".restore-"+uuid.NewString()[:8]+"-")
	if err != nil {
		return "", "", err
	}
	member := filepath.Join(scratch, archive.MemberData)
	if err := archive.ExtractMember(archivePath, archive.MemberData, member); err != nil {
		return scratch, "", err
	}
	f, err := os.Open(member)
	if err != nil {
		return scratch, "", err
	}
	defer f.Close()
	var r io.Reader = f
	if o.ProgressOut != nil {
		if info, err := f.Stat(); err == nil {
			r = progress.NewReader(f, info.Size(), "extract", o.ProgressOut)
		}
	}
	newData = filepath.Join(scratch, "data")
	if err := os.MkdirAll(newData, 0o755); err != nil {
		return scratch, "", err
	}
	if err := archive.ExtractTarGz(r, newData); err != nil {
		return scratch, "", err
	}
	return scratch, newData, nil
}

// replace swaps the data root. The previous tree is moved aside with the
// .old suffix, never deleted; if placement fails it is moved back before
// reporting, so the data root is never left missing.
func (o *Orchestrator) replace(rep *Report, dataRoot, newData string, warn func(string, ...any)) error {
	oldPath := dataRoot + OldSuffix
	if _, err := os.Stat(oldPath); err == nil {
		// Leftover from an interrupted run; rotate it out of the way.
		rotated := oldPath + "." + uuid.NewString()[:8]
		if err := os.Rename(oldPath, rotated); err != nil {
			return fmt.Errorf("rotate stale %s: %w", oldPath, err)
		}
		warn("rotated stale %s to %s", oldPath, rotated)
	}

	hadOld := false
	if fsutil.DirExists(dataRoot) {
		if err := os.Rename(dataRoot, oldPath); err != nil {
			return fmt.Errorf("move current data root aside: %w", err)
		}
		hadOld = true
	}

	if err := placeDataRoot(newData, dataRoot); err != nil {
		rolledBack := false
		if hadOld {
			if rbErr := os.Rename(oldPath, dataRoot); rbErr != nil {
				o.Log.WithError(rbErr).Error("rollback of previous data root failed")
			} else {
				rolledBack = true
			}
		}
		return &ReplacementError{Err: err, RolledBack: rolledBack}
	}
	if hadOld {
		rep.OldDataRoot = oldPath
	}

	if acct := o.Meta.OwningAccount(); acct != "" {
		if err := fsutil.ChownTree(dataRoot, acct); err != nil {
			warn("could not restore ownership to %s: %v", acct, err)
		}
	}
	return nil
}

func (o *Orchestrator) startContainer(rep *Report, name string) {
	if err := o.Runtime.Start(name); err != nil {
		o.Log.WithError(err).WithField("container", name).Warn("start failed")
		rep.StartFailures = append(rep.StartFailures, name)
	}
}
