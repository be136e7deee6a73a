//go:build !linux

package runner

import (
	"context"

	"github.com/fouguai/judgeworker/internal/judge/cgroup"
)

// Engine degrades gracefully off Linux: there is no fork/exec handshake
// to perform, so every run reports InternalError rather than silently
// skipping isolation. The binary still builds and its tests still run on
// a developer's non-Linux machine.
type Engine struct {
	HelperPath string
	Controller cgroup.Controller
}

// NewEngine builds a non-Linux stand-in engine.
func NewEngine(helperPath string, controller cgroup.Controller) *Engine {
	return &Engine{HelperPath: helperPath, Controller: controller}
}

// Run always reports InternalError: sandboxed execution requires Linux
// namespaces, cgroups, and rlimits that this platform does not provide.
func (e *Engine) Run(ctx context.Context, in Input) ExecutionResult {
	return internalResult("sandboxed execution is only supported on linux")
}
