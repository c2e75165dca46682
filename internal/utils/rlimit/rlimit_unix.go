//go:build linux || darwin

package rlimit

import "golang.org/x/sys/unix"

// RaiseNoFile lifts the soft open-file limit toward the hard limit, capped
// at want. It returns the soft limit in effect afterwards.
func RaiseNoFile(want uint64) (uint64, error) {
	var lim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &lim); err != nil {
		return 0, err
	}
	target := want
	if target > uint64(lim.Max) {
		target = uint64(lim.Max)
	}
	if uint64(lim.Cur) >= target {
		return uint64(lim.Cur), nil
	}
	lim.Cur = target
	if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &lim); err != nil {
		return 0, err
	}
	return target, nil
}
