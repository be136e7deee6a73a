//go:build linux

package cgroup

import (
	"os"
	"path/filepath"
)

// NewController detects whether root is a cgroup v1 or v2 mount and
// returns the matching implementation. Detection: presence of
// <root>/cgroup.controllers means v2 (the unified hierarchy); its absence
// means a v1 per-controller layout is expected at <root>/memory.
func NewController(root string) Controller {
	if _, err := os.Stat(filepath.Join(root, "cgroup.controllers")); err == nil {
		return newV2Controller(root)
	}
	return newV1Controller(root)
}

func writeFile(path, value string) error {
	return os.WriteFile(path, []byte(value), 0o640)
}

func readFileString(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
