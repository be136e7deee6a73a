// Command sandbox-init is the re-exec helper that performs the child side
// of a sandboxed run: it blocks on the start-gate pipe until the parent
// has finished placing it into a cgroup, then isolates the network
// namespace, redirects standard streams to the test case's files,
// installs rlimits, and execs the user program in its place.
//
// It is never invoked directly; the judge-worker runner spawns it with
// an InitRequest JSON document on stdin and the read end of a start-gate
// pipe at fd 3.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/fouguai/judgeworker/internal/judge/runner"
)

const gateFD = 3

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "sandbox-init: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var req runner.InitRequest
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		return fmt.Errorf("decode init request: %w", err)
	}
	if len(req.Cmd) == 0 {
		return fmt.Errorf("init request has empty cmd")
	}

	if err := waitForGate(); err != nil {
		return fmt.Errorf("start gate: %w", err)
	}

	if req.DisableNetwork {
		if err := unix.Unshare(unix.CLONE_NEWNET); err != nil {
			return fmt.Errorf("unshare network namespace: %w", err)
		}
	}

	if err := os.Chdir(req.WorkDir); err != nil {
		return fmt.Errorf("chdir %s: %w", req.WorkDir, err)
	}

	if err := redirectStreams(req); err != nil {
		return fmt.Errorf("redirect streams: %w", err)
	}

	if err := applyRlimits(req); err != nil {
		return fmt.Errorf("apply rlimits: %w", err)
	}

	argv0, err := resolveExecutable(req.Cmd[0])
	if err != nil {
		return fmt.Errorf("resolve %s: %w", req.Cmd[0], err)
	}

	if err := unix.Exec(argv0, req.Cmd, req.Env); err != nil {
		return fmt.Errorf("exec %s: %w", argv0, err)
	}
	return nil // unreachable: unix.Exec only returns on error
}

// waitForGate blocks until the parent has finished placing this process
// into its cgroup. The parent writes a single byte and closes its end;
// either is sufficient to unblock the read.
func waitForGate() error {
	gate := os.NewFile(gateFD, "start-gate")
	if gate == nil {
		return fmt.Errorf("start gate fd %d not present", gateFD)
	}
	defer gate.Close()

	buf := make([]byte, 1)
	_, err := gate.Read(buf)
	if err != nil {
		return err
	}
	return nil
}

func redirectStreams(req runner.InitRequest) error {
	in, err := os.Open(req.InputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer in.Close()
	if err := unix.Dup2(int(in.Fd()), 0); err != nil {
		return fmt.Errorf("dup2 stdin: %w", err)
	}

	out, err := os.OpenFile(req.OutputPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	defer out.Close()
	if err := unix.Dup2(int(out.Fd()), 1); err != nil {
		return fmt.Errorf("dup2 stdout: %w", err)
	}

	errf, err := os.OpenFile(req.ErrPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open err: %w", err)
	}
	defer errf.Close()
	if err := unix.Dup2(int(errf.Fd()), 2); err != nil {
		return fmt.Errorf("dup2 stderr: %w", err)
	}

	return nil
}

func applyRlimits(req runner.InitRequest) error {
	cpu := uint64(req.CPUTimeLimitSec)
	if err := unix.Setrlimit(unix.RLIMIT_CPU, &unix.Rlimit{Cur: cpu, Max: cpu + 1}); err != nil {
		return fmt.Errorf("setrlimit cpu: %w", err)
	}

	fsize := uint64(req.FSizeLimitBytes)
	if err := unix.Setrlimit(unix.RLIMIT_FSIZE, &unix.Rlimit{Cur: fsize, Max: fsize}); err != nil {
		return fmt.Errorf("setrlimit fsize: %w", err)
	}

	if !req.AddressSpaceUnlimited {
		as := uint64(req.AddressSpaceBytes)
		if err := unix.Setrlimit(unix.RLIMIT_AS, &unix.Rlimit{Cur: as, Max: as}); err != nil {
			return fmt.Errorf("setrlimit as: %w", err)
		}
	}

	return nil
}

// resolveExecutable finds the absolute path to argv0: a path containing a
// slash (e.g. "./bin_1") is resolved relative to the already-chdir'd
// work dir, anything else is searched on the current PATH.
func resolveExecutable(argv0 string) (string, error) {
	if filepath.Base(argv0) != argv0 {
		if _, err := os.Stat(argv0); err != nil {
			return "", err
		}
		return filepath.Abs(argv0)
	}
	return exec.LookPath(argv0)
}
