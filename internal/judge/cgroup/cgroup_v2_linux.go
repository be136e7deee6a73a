//go:build linux

package cgroup

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

const (
	serviceCgroupName = "worker_service"
	judgesCgroupName  = "judges"
)

// v2Controller targets the unified hierarchy. A cgroup that has member
// processes may not enable subtree controllers on a v2 mount, so before
// the first job cgroup can be created, the worker must evacuate itself
// (and anything else already in the root) into a sibling cgroup and only
// then turn on "memory" and "cpu" for the subtree that holds jobs.
type v2Controller struct {
	root        string
	judgesPath  string
	evacuateErr error
	once        sync.Once
}

func newV2Controller(root string) *v2Controller {
	return &v2Controller{root: root, judgesPath: filepath.Join(root, judgesCgroupName)}
}

// evacuateRoot runs once per controller lifetime: the root cgroup only
// needs to give up its processes and enable subtree controllers a single
// time, not per job.
func (c *v2Controller) evacuateRoot() error {
	c.once.Do(func() {
		c.evacuateErr = c.doEvacuate()
	})
	return c.evacuateErr
}

func (c *v2Controller) doEvacuate() error {
	servicePath := filepath.Join(c.root, serviceCgroupName)
	if err := os.MkdirAll(servicePath, 0o750); err != nil {
		return fmt.Errorf("create service cgroup: %w", err)
	}

	pids, err := readFileString(filepath.Join(c.root, "cgroup.procs"))
	if err != nil {
		return fmt.Errorf("read root cgroup.procs: %w", err)
	}
	for _, line := range strings.Split(pids, "\n") {
		pid := strings.TrimSpace(line)
		if pid == "" {
			continue
		}
		// Best effort: a process that exited between the read and the
		// write is not a setup failure.
		_ = writeFile(filepath.Join(servicePath, "cgroup.procs"), pid)
	}
	_ = writeFile(filepath.Join(servicePath, "cgroup.procs"), strconv.Itoa(os.Getpid()))

	if err := writeFile(filepath.Join(c.root, "cgroup.subtree_control"), "+memory +cpu"); err != nil {
		return fmt.Errorf("enable root subtree controllers: %w", err)
	}

	if err := os.MkdirAll(c.judgesPath, 0o750); err != nil {
		return fmt.Errorf("create judges cgroup: %w", err)
	}
	if err := writeFile(filepath.Join(c.judgesPath, "cgroup.subtree_control"), "+memory +cpu"); err != nil {
		return fmt.Errorf("enable judges subtree controllers: %w", err)
	}
	return nil
}

func (c *v2Controller) Setup(childPID int, memMB int) (Handle, error) {
	if err := c.evacuateRoot(); err != nil {
		return Handle{}, &ErrCgroupUnavailable{Reason: err.Error()}
	}

	path := filepath.Join(c.judgesPath, fmt.Sprintf("job_%d", childPID))
	if err := os.MkdirAll(path, 0o750); err != nil {
		return Handle{}, &ErrCgroupUnavailable{Reason: fmt.Sprintf("mkdir %s: %v", path, err)}
	}

	memMax := strconv.FormatInt(int64(memMB)*1024*1024, 10)
	if err := writeFile(filepath.Join(path, "memory.max"), memMax); err != nil {
		return Handle{}, &ErrCgroupUnavailable{Reason: fmt.Sprintf("set memory.max: %v", err)}
	}
	// Swap is disabled so the memory limit is enforced strictly.
	_ = writeFile(filepath.Join(path, "memory.swap.max"), "0")

	if err := writeFile(filepath.Join(path, "cgroup.procs"), strconv.Itoa(childPID)); err != nil {
		return Handle{}, &ErrCgroupUnavailable{Reason: fmt.Sprintf("write cgroup.procs: %v", err)}
	}

	return Handle{Path: path, Version: 2}, nil
}

func (c *v2Controller) Teardown(h Handle) error {
	if h.Path == "" {
		return nil
	}
	if err := os.RemoveAll(h.Path); err != nil {
		return &ErrCgroupUnavailable{Reason: fmt.Sprintf("remove %s: %v", h.Path, err)}
	}
	return nil
}

func (c *v2Controller) MemoryPeakKB(h Handle) int64 {
	if h.Path == "" {
		return 0
	}
	data, err := readFileString(filepath.Join(h.Path, "memory.peak"))
	if err != nil {
		return 0
	}
	val, err := strconv.ParseInt(strings.TrimSpace(data), 10, 64)
	if err != nil {
		return 0
	}
	return val / 1024
}

func (c *v2Controller) OOMKilled(h Handle) bool {
	if h.Path == "" {
		return false
	}
	data, err := readFileString(filepath.Join(h.Path, "memory.events"))
	if err != nil {
		return false
	}
	for _, line := range strings.Split(data, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 2 && fields[0] == "oom_kill" {
			val, _ := strconv.ParseInt(fields[1], 10, 64)
			return val > 0
		}
	}
	return false
}
