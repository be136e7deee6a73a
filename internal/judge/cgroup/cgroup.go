// Package cgroup implements the Resource Controller: it creates and
// destroys a per-job memory control group around a child PID, evacuating
// the root cgroup once per worker process when running under the unified
// (v2) hierarchy. Errors here are non-fatal to a run: memory overruns are
// still caught by RLIMIT_AS for native/interpreted profiles, or surface as
// a RuntimeError for the bytecode-vm variant, but every failure is logged.
package cgroup

import "fmt"

// Handle identifies one job's cgroup so Teardown can find it again.
type Handle struct {
	Path    string
	Version int // 1 or 2; 0 if cgroup setup did not succeed
}

// Controller is the two-operation contract the Sandboxed Runner drives
// the handshake around: Setup must return before the runner releases the
// child's start gate, and Teardown runs after wait4 regardless of outcome.
type Controller interface {
	Setup(childPID int, memMB int) (Handle, error)
	Teardown(h Handle) error
	// MemoryPeakKB returns the peak memory recorded by the cgroup, or 0
	// if unavailable (callers fall back to rusage.Maxrss).
	MemoryPeakKB(h Handle) int64
	// OOMKilled reports whether the cgroup's OOM killer fired for this
	// job. The runner does not consult it: every SIGKILL termination is
	// classified as MemoryLimitExceeded.
	OOMKilled(h Handle) bool
}

// ErrCgroupUnavailable signals the controller could not create or use the
// cgroup filesystem at all; callers treat this as best-effort degradation,
// not a fatal error for the run.
type ErrCgroupUnavailable struct {
	Reason string
}

func (e *ErrCgroupUnavailable) Error() string {
	return fmt.Sprintf("cgroup unavailable: %s", e.Reason)
}

// noopController installs no limits at all: the runner still applies
// RLIMIT_AS for native/interpreted profiles, so only the bytecode-vm
// variant loses its memory ceiling. Used when JUDGE_ENABLE_CGROUP=false
// and, on non-Linux builds, as the only controller available.
type noopController struct{}

// Disabled returns the cross-platform cgroup no-op, for deployments that
// explicitly opt out of cgroup confinement.
func Disabled() Controller { return noopController{} }

func (noopController) Setup(int, int) (Handle, error) { return Handle{}, nil }
func (noopController) Teardown(Handle) error           { return nil }
func (noopController) MemoryPeakKB(Handle) int64       { return 0 }
func (noopController) OOMKilled(Handle) bool           { return false }
