package gpu

import (
	"testing"

	"codeberg.org/mutker/ecfanctl/internal/errors"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDevice struct {
	nvml.Device
	temp uint32
	ret  nvml.Return
}

func (d *fakeDevice) GetName() (string, nvml.Return) {
	return "Test GPU", nvml.SUCCESS
}

func (d *fakeDevice) GetTemperature(nvml.TemperatureSensors) (uint32, nvml.Return) {
	return d.temp, d.ret
}

type fakeController struct {
	initErr   error
	deviceErr error
	device    nvml.Device
	shutdowns int
}

func (c *fakeController) Initialize() error { return c.initErr }

func (c *fakeController) Shutdown() error {
	c.shutdowns++
	return nil
}

func (c *fakeController) GetDevice(int) (nvml.Device, error) {
	if c.deviceErr != nil {
		return nil, c.deviceErr
	}
	return c.device, nil
}

func TestTemperature(t *testing.T) {
	lib := &fakeController{device: &fakeDevice{temp: 61, ret: nvml.SUCCESS}}

	g, err := newWithController(lib)
	require.NoError(t, err)
	assert.Equal(t, "Test GPU", g.Name())

	temp, err := g.Temperature()
	require.NoError(t, err)
	assert.Equal(t, 61, temp)

	require.NoError(t, g.Shutdown())
	assert.Equal(t, 1, lib.shutdowns)

	_, err = g.Temperature()
	assert.True(t, errors.HasCode(err, ErrNotInitialized))
}

func TestTemperatureReadFailure(t *testing.T) {
	lib := &fakeController{device: &fakeDevice{ret: nvml.ERROR_NOT_SUPPORTED}}

	g, err := newWithController(lib)
	require.NoError(t, err)

	_, err = g.Temperature()
	assert.True(t, errors.HasCode(err, ErrTemperatureReadFailed))
}

func TestInitFailure(t *testing.T) {
	lib := &fakeController{initErr: errors.New().New(ErrInitFailed)}

	_, err := newWithController(lib)
	assert.True(t, errors.HasCode(err, ErrInitFailed))
	assert.Equal(t, 0, lib.shutdowns)
}

func TestNoDeviceShutsDown(t *testing.T) {
	lib := &fakeController{deviceErr: errors.New().New(ErrDeviceNotFound)}

	_, err := newWithController(lib)
	assert.True(t, errors.HasCode(err, ErrDeviceNotFound))
	assert.Equal(t, 1, lib.shutdowns)
}
