//go:build !linux

package ec

import "codeberg.org/mutker/ecfanctl/internal/errors"

type DevPort struct{}

func NewDevPort(string) *DevPort {
	return &DevPort{}
}

func (*DevPort) Init() error {
	return errors.New().WithData(errors.ErrNotImplemented, "port I/O requires linux")
}

func (*DevPort) In(uint16) (byte, error) {
	return 0, errors.New().New(errors.ErrNotImplemented)
}

func (*DevPort) Out(uint16, byte) error {
	return errors.New().New(errors.ErrNotImplemented)
}

func (*DevPort) Close() error {
	return nil
}
