//go:build !linux

package sched

// pinWorker is a no-op on platforms without thread affinity support.
func pinWorker(workerIx int) {}
