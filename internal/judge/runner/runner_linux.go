//go:build linux

package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/fouguai/judgeworker/internal/errs"
	"github.com/fouguai/judgeworker/internal/judge/cgroup"
	"github.com/fouguai/judgeworker/internal/logging"
)

// outputFSizeLimitBytes caps the user program's output volume via
// RLIMIT_FSIZE, applied in the helper before exec.
const outputFSizeLimitBytes = 10 * 1024 * 1024

// Engine is the Linux Sandboxed Runner: it drives the start-gate
// handshake with a Resource Controller around a re-exec of the
// sandbox-init helper, which performs the in-process equivalent of the
// child side of a fork (network namespace entry, rlimits, stream
// redirection) before exec-ing the user program.
type Engine struct {
	// HelperPath is the sandbox-init binary, resolved via PATH if not
	// absolute.
	HelperPath string
	Controller cgroup.Controller
}

// NewEngine builds a Linux sandbox engine.
func NewEngine(helperPath string, controller cgroup.Controller) *Engine {
	return &Engine{HelperPath: helperPath, Controller: controller}
}

// Run executes one test case under isolation and always returns a result;
// it never propagates an error to the caller, matching the runner
// contract that every internal failure maps to InternalError.
func (e *Engine) Run(ctx context.Context, in Input) ExecutionResult {
	if err := os.MkdirAll(in.WorkDir, 0o755); err != nil {
		return internalResult("create work dir: %v", err)
	}

	errPath := filepath.Join(in.WorkDir, fmt.Sprintf("err_%s_%s.txt", in.SubmissionID, in.TestID))
	defer os.Remove(errPath)

	req := InitRequest{
		WorkDir:               in.WorkDir,
		Cmd:                   in.Argv,
		Env:                   []string{"PATH=/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"},
		InputPath:             in.InputPath,
		OutputPath:            in.OutputPath,
		ErrPath:               errPath,
		CPUTimeLimitSec:       int64(in.TimeLimitS + 0.999),
		FSizeLimitBytes:       outputFSizeLimitBytes,
		AddressSpaceUnlimited: in.AddressSpaceUnlimited,
		AddressSpaceBytes:     in.AddressSpaceBytes,
		DisableNetwork:        true,
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return internalResult("encode init request: %v", err)
	}

	gateR, gateW, err := os.Pipe()
	if err != nil {
		return internalResult("create start gate: %v", err)
	}
	defer gateW.Close()

	cmd := exec.CommandContext(ctx, e.HelperPath)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.ExtraFiles = []*os.File{gateR}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true, Pdeathsig: syscall.SIGKILL}
	var helperStderr bytes.Buffer
	cmd.Stderr = &helperStderr

	if err := cmd.Start(); err != nil {
		gateR.Close()
		return internalResult("start sandbox-init: %v", err)
	}
	// The child holds its own duplicate of the read end at fd 3; the
	// parent's copy is only needed to pass it along.
	gateR.Close()

	// The gate byte must not be written until cgroup setup has returned:
	// writing it earlier would let the child exec user code before
	// limits are installed, which is the one correctness-critical
	// ordering requirement of this handshake.
	handle, cgErr := e.Controller.Setup(cmd.Process.Pid, in.MemoryMB)
	if cgErr != nil {
		logging.Warn(ctx, "cgroup setup failed, proceeding best-effort", zap.Error(errs.Wrap(cgErr, errs.CgroupSetupFailed)))
	}

	if _, err := gateW.Write([]byte{0}); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		_ = e.Controller.Teardown(handle)
		return internalResult("release start gate: %v", err)
	}

	waitErr := cmd.Wait()

	if teardownErr := e.Controller.Teardown(handle); teardownErr != nil {
		logging.Warn(ctx, "cgroup teardown failed", zap.Error(errs.Wrap(teardownErr, errs.CgroupTeardownFailed)))
	}

	if waitErr != nil {
		if _, ok := waitErr.(*exec.ExitError); !ok {
			return internalResult("wait for sandboxed process: %v", waitErr)
		}
	}

	return e.classify(cmd, handle, errPath, in)
}

func (e *Engine) classify(cmd *exec.Cmd, handle cgroup.Handle, errPath string, in Input) ExecutionResult {
	state := cmd.ProcessState
	if state == nil {
		return internalResult("process state unavailable after wait")
	}

	ws, ok := state.Sys().(syscall.WaitStatus)
	if !ok {
		return internalResult("wait status unavailable")
	}

	timeMs := cpuTimeMs(state)
	memKB := e.peakMemoryKB(state, handle)
	stderrExcerpt := readExcerpt(errPath)

	switch {
	case ws.Exited():
		exitCode := ws.ExitStatus()
		if exitCode == 0 {
			equal, err := compareOutputs(in.OutputPath, in.ExpectedPath)
			if err != nil {
				return ExecutionResult{Verdict: InternalError, TimeMs: timeMs, MemoryKB: memKB, ExitCode: exitCode, StderrExcerpt: truncate(err.Error(), maxStderrExcerptBytes)}
			}
			if equal {
				return ExecutionResult{Verdict: Accepted, TimeMs: timeMs, MemoryKB: memKB, ExitCode: exitCode}
			}
			return ExecutionResult{Verdict: WrongAnswer, TimeMs: timeMs, MemoryKB: memKB, ExitCode: exitCode}
		}
		return ExecutionResult{Verdict: RuntimeError, TimeMs: timeMs, MemoryKB: memKB, ExitCode: exitCode, StderrExcerpt: stderrExcerpt}

	case ws.Signaled():
		sig := ws.Signal()
		switch sig {
		case unix.SIGXCPU:
			return ExecutionResult{Verdict: TimeLimitExceeded, TimeMs: timeMs, MemoryKB: memKB, ExitCode: -int(sig), StderrExcerpt: stderrExcerpt}
		case unix.SIGKILL:
			// No other source of SIGKILL is expected inside the sandbox:
			// the cgroup OOM killer is what delivers it.
			return ExecutionResult{Verdict: MemoryLimitExceeded, TimeMs: timeMs, MemoryKB: memKB, ExitCode: -int(sig), StderrExcerpt: stderrExcerpt}
		case unix.SIGSEGV:
			return ExecutionResult{Verdict: RuntimeError, TimeMs: timeMs, MemoryKB: memKB, ExitCode: -int(sig), StderrExcerpt: annotate(stderrExcerpt, "segmentation fault")}
		case unix.SIGFPE:
			return ExecutionResult{Verdict: RuntimeError, TimeMs: timeMs, MemoryKB: memKB, ExitCode: -int(sig), StderrExcerpt: annotate(stderrExcerpt, "arithmetic error")}
		default:
			return ExecutionResult{Verdict: RuntimeError, TimeMs: timeMs, MemoryKB: memKB, ExitCode: -int(sig), StderrExcerpt: annotate(stderrExcerpt, fmt.Sprintf("terminated by signal %d", sig))}
		}

	default:
		return internalResult("process neither exited nor was signaled")
	}
}

func (e *Engine) peakMemoryKB(state *os.ProcessState, handle cgroup.Handle) int64 {
	var rusageKB int64
	if usage, ok := state.SysUsage().(*syscall.Rusage); ok {
		rusageKB = int64(usage.Maxrss)
	}
	// rusage may report a pre-kill peak when the cgroup's OOM killer
	// fires; take the larger of the two signals rather than clamping
	// either one, since both are lower bounds on true peak usage.
	if cgKB := e.Controller.MemoryPeakKB(handle); cgKB > rusageKB {
		return cgKB
	}
	return rusageKB
}

func cpuTimeMs(state *os.ProcessState) int64 {
	usage, ok := state.SysUsage().(*syscall.Rusage)
	if !ok {
		return 0
	}
	return usage.Utime.Sec*1000 + int64(usage.Utime.Usec)/1000
}

func readExcerpt(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return truncate(string(data), maxStderrExcerptBytes)
}

func annotate(excerpt, note string) string {
	if excerpt == "" {
		return note
	}
	return note + ": " + excerpt
}
