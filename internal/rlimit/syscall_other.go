//go:build !linux && !darwin

package rlimit

import "errors"

type osSyscaller struct{}

func (osSyscaller) Getrlimit() (Limit, error) {
	return Limit{}, errors.ErrUnsupported
}

func (osSyscaller) Setrlimit(Limit) error {
	return errors.ErrUnsupported
}
