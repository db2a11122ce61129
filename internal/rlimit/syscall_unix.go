//go:build linux || darwin

package rlimit

import "golang.org/x/sys/unix"

type osSyscaller struct{}

func (osSyscaller) Getrlimit() (Limit, error) {
	var rl unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rl); err != nil {
		return Limit{}, err
	}
	return Limit{Soft: uint64(rl.Cur), Hard: uint64(rl.Max)}, nil
}

func (osSyscaller) Setrlimit(l Limit) error {
	rl := unix.Rlimit{Cur: l.Soft, Max: l.Hard}
	return unix.Setrlimit(unix.RLIMIT_NOFILE, &rl)
}
