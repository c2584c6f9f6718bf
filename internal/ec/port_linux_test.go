//go:build linux

package ec_test

import (
	"os"
	"path/filepath"
	"testing"

	"codeberg.org/mutker/ecfanctl/internal/ec"
	"codeberg.org/mutker/ecfanctl/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A regular file stands in for the port device: offsets are port numbers.
func portFile(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "port")
	require.NoError(t, os.WriteFile(path, make([]byte, 0x100), 0o600))

	return path
}

func TestDevPortInOut(t *testing.T) {
	p := ec.NewDevPort(portFile(t))
	require.NoError(t, p.Init())
	defer p.Close()

	require.NoError(t, p.Out(ec.DataPort, 0xAB))

	v, err := p.In(ec.DataPort)
	require.NoError(t, err)
	assert.Equal(t, byte(0xAB), v)

	v, err = p.In(ec.CommandPort)
	require.NoError(t, err)
	assert.Equal(t, byte(0), v)
}

func TestDevPortInitIdempotent(t *testing.T) {
	p := ec.NewDevPort(portFile(t))
	require.NoError(t, p.Init())
	require.NoError(t, p.Init())
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
}

func TestDevPortExclusive(t *testing.T) {
	path := portFile(t)

	first := ec.NewDevPort(path)
	require.NoError(t, first.Init())
	defer first.Close()

	err := ec.NewDevPort(path).Init()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrResourceBusy))
}

func TestDevPortMissing(t *testing.T) {
	err := ec.NewDevPort(filepath.Join(t.TempDir(), "nope")).Init()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrResourceNotFound))
}

func TestDevPortNotInitialized(t *testing.T) {
	p := ec.NewDevPort(portFile(t))

	_, err := p.In(ec.DataPort)
	assert.True(t, errors.HasCode(err, errors.ErrPortIO))
	assert.True(t, errors.HasCode(p.Out(ec.DataPort, 1), errors.ErrPortIO))
}
