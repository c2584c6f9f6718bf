package gpu

import (
	"sync"

	"codeberg.org/mutker/ecfanctl/internal/errors"
	"codeberg.org/mutker/ecfanctl/internal/logger"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

type GPU struct {
	lib    nvmlController
	device nvml.Device
	name   string
	mu     sync.Mutex
}

// New initializes NVML and opens the first GPU.
func New() (*GPU, error) {
	return newWithController(&nvmlWrapper{})
}

func newWithController(lib nvmlController) (*GPU, error) {
	if err := lib.Initialize(); err != nil {
		return nil, err
	}

	device, err := lib.GetDevice(0)
	if err != nil {
		if shutdownErr := lib.Shutdown(); shutdownErr != nil {
			logger.Debug().Err(shutdownErr).Msg("NVML shutdown after failed init")
		}
		return nil, err
	}

	g := &GPU{lib: lib, device: device}
	if name, ret := device.GetName(); IsNVMLSuccess(ret) {
		g.name = name
		logger.Info().Msgf("Detected GPU: %v", name)
	} else {
		logger.Warn().Msgf("Failed to get GPU name: %v", nvml.ErrorString(ret))
	}

	return g, nil
}

func (g *GPU) Name() string {
	return g.name
}

func (g *GPU) Temperature() (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.device == nil {
		return 0, errors.New().New(ErrNotInitialized)
	}

	temp, ret := g.device.GetTemperature(nvml.TEMPERATURE_GPU)
	if !IsNVMLSuccess(ret) {
		return 0, errors.New().Wrap(ErrTemperatureReadFailed, newNVMLError(ret))
	}

	return int(temp), nil
}

func (g *GPU) Shutdown() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.device = nil

	return g.lib.Shutdown()
}
