//go:build linux

package ec

import (
	"sync"

	"codeberg.org/mutker/ecfanctl/internal/errors"
	"golang.org/x/sys/unix"
)

// DevPort performs port I/O through the kernel's port device, where the
// file offset is the port number.
type DevPort struct {
	path string
	fd   int
	open bool
	mu   sync.Mutex
}

func NewDevPort(path string) *DevPort {
	if path == "" {
		path = DefaultPortDevice
	}

	return &DevPort{path: path, fd: -1}
}

// Init opens the device and takes an exclusive lock on it. Calling it again
// after a successful Init does nothing.
func (p *DevPort) Init() error {
	errFactory := errors.New()
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.open {
		return nil
	}

	fd, err := unix.Open(p.path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		switch err {
		case unix.EACCES, unix.EPERM:
			return errFactory.Wrap(errors.ErrPermission, err)
		case unix.ENOENT:
			return errFactory.WithData(errors.ErrResourceNotFound, p.path)
		default:
			return errFactory.Wrap(errors.ErrInitFailed, err)
		}
	}

	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		unix.Close(fd)
		if err == unix.EWOULDBLOCK {
			return errFactory.WithData(errors.ErrResourceBusy, p.path)
		}
		return errFactory.Wrap(errors.ErrInitFailed, err)
	}

	p.fd = fd
	p.open = true

	return nil
}

func (p *DevPort) In(port uint16) (byte, error) {
	errFactory := errors.New()
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.open {
		return 0, errFactory.WithMessage(errors.ErrPortIO, "port device not initialized")
	}

	var buf [1]byte
	n, err := unix.Pread(p.fd, buf[:], int64(port))
	if err != nil {
		return 0, errFactory.Wrap(errors.ErrPortIO, err)
	}
	if n != 1 {
		return 0, errFactory.WithData(errors.ErrPortIO, "short read")
	}

	return buf[0], nil
}

func (p *DevPort) Out(port uint16, value byte) error {
	errFactory := errors.New()
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.open {
		return errFactory.WithMessage(errors.ErrPortIO, "port device not initialized")
	}

	n, err := unix.Pwrite(p.fd, []byte{value}, int64(port))
	if err != nil {
		return errFactory.Wrap(errors.ErrPortIO, err)
	}
	if n != 1 {
		return errFactory.WithData(errors.ErrPortIO, "short write")
	}

	return nil
}

// Close releases the lock and the device.
func (p *DevPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.open {
		return nil
	}

	p.open = false
	fd := p.fd
	p.fd = -1
	if err := unix.Close(fd); err != nil {
		return errors.New().Wrap(errors.ErrShutdownFailed, err)
	}

	return nil
}
