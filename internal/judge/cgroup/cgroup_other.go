//go:build !linux

package cgroup

// NewController returns the only controller available outside Linux: a
// no-op. Real cgroup confinement requires the Linux kernel's cgroup
// filesystem, which has no portable equivalent.
func NewController(string) Controller { return Disabled() }
