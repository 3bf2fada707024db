//go:build linux

// Package runtimex provides the best-effort CPU pinning the debug.cpu_affinity
// configuration key drives: real sched_setaffinity on Linux, a no-op
// elsewhere.
package runtimex

import "golang.org/x/sys/unix"

// AffinitySpec describes the desired CPU set for the process.
type AffinitySpec struct {
	CPUSet []int // CPU indices to allow; empty means "leave affinity alone"
}

// ApplyProcessAffinity sets the CPU mask of the calling OS thread to the
// given CPU set via sched_setaffinity(0, ...); OS threads created after
// the call inherit that mask, threads that already exist keep their own.
// An empty CPUSet is a no-op.
func ApplyProcessAffinity(spec AffinitySpec) error {
	if len(spec.CPUSet) == 0 {
		return nil
	}
	var set unix.CPUSet
	set.Zero()
	for _, cpu := range spec.CPUSet {
		set.Set(cpu)
	}
	return unix.SchedSetaffinity(0, &set)
}
