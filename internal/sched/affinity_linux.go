//go:build linux

package sched

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// pinWorker pins worker i to CPU i, best effort. The goroutine is
// locked to its OS thread so the affinity sticks.
func pinWorker(workerIx int) {
	if workerIx >= runtime.NumCPU() {
		return
	}
	runtime.LockOSThread()
	var set unix.CPUSet
	set.Zero()
	set.Set(workerIx)
	_ = unix.SchedSetaffinity(0, &set)
}
