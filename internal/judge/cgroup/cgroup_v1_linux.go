//go:build linux

package cgroup

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// v1Controller targets the per-controller hierarchy: a separate "memory"
// controller mount with `tasks` and `memory.limit_in_bytes`. There is no
// root-evacuation step on v1 — each controller is independently
// mountable and a job cgroup can be created directly under it.
type v1Controller struct {
	memoryRoot string // <root>/memory
}

func newV1Controller(root string) *v1Controller {
	return &v1Controller{memoryRoot: filepath.Join(root, "memory")}
}

func (c *v1Controller) Setup(childPID int, memMB int) (Handle, error) {
	path := filepath.Join(c.memoryRoot, fmt.Sprintf("judge_%d", childPID))
	if err := os.MkdirAll(path, 0o750); err != nil {
		return Handle{}, &ErrCgroupUnavailable{Reason: fmt.Sprintf("mkdir %s: %v", path, err)}
	}

	limitBytes := strconv.FormatInt(int64(memMB)*1024*1024, 10)
	if err := writeFile(filepath.Join(path, "memory.limit_in_bytes"), limitBytes); err != nil {
		return Handle{}, &ErrCgroupUnavailable{Reason: fmt.Sprintf("set memory.limit_in_bytes: %v", err)}
	}
	// Disabling swap makes the limit strict; memsw may not exist if the
	// kernel built without swap accounting, which is not fatal.
	_ = writeFile(filepath.Join(path, "memory.memsw.limit_in_bytes"), limitBytes)

	if err := writeFile(filepath.Join(path, "tasks"), strconv.Itoa(childPID)); err != nil {
		return Handle{}, &ErrCgroupUnavailable{Reason: fmt.Sprintf("write tasks: %v", err)}
	}

	return Handle{Path: path, Version: 1}, nil
}

func (c *v1Controller) Teardown(h Handle) error {
	if h.Path == "" {
		return nil
	}
	if err := os.RemoveAll(h.Path); err != nil {
		return &ErrCgroupUnavailable{Reason: fmt.Sprintf("remove %s: %v", h.Path, err)}
	}
	return nil
}

func (c *v1Controller) MemoryPeakKB(h Handle) int64 {
	if h.Path == "" {
		return 0
	}
	data, err := readFileString(filepath.Join(h.Path, "memory.max_usage_in_bytes"))
	if err != nil {
		return 0
	}
	val, err := strconv.ParseInt(strings.TrimSpace(data), 10, 64)
	if err != nil {
		return 0
	}
	return val / 1024
}

func (c *v1Controller) OOMKilled(h Handle) bool {
	if h.Path == "" {
		return false
	}
	data, err := readFileString(filepath.Join(h.Path, "memory.failcnt"))
	if err != nil {
		return false
	}
	val, err := strconv.ParseInt(strings.TrimSpace(data), 10, 64)
	return err == nil && val > 0
}
