package ec

import (
	"sync"
	"time"

	"codeberg.org/mutker/ecfanctl/internal/errors"
	"codeberg.org/mutker/ecfanctl/internal/logger"
)

const (
	defaultPollInterval = time.Millisecond
	defaultMaxPolls     = 100
)

// Driver speaks the EC host-interface handshake. Every byte sent to the
// controller is preceded by a wait for the input buffer to drain, and a
// write is followed by one more wait to confirm the EC consumed the value.
type Driver struct {
	port         PortAccess
	pollInterval time.Duration
	maxPolls     int
	sleep        func(time.Duration)
	logger       logger.Logger
	mu           sync.Mutex
}

type DriverOption func(*Driver)

// WithPolling overrides the status poll period and the number of polls
// after which a wait gives up.
func WithPolling(interval time.Duration, maxPolls int) DriverOption {
	return func(d *Driver) {
		d.pollInterval = interval
		d.maxPolls = maxPolls
	}
}

// WithSleep replaces time.Sleep between status polls.
func WithSleep(sleep func(time.Duration)) DriverOption {
	return func(d *Driver) {
		d.sleep = sleep
	}
}

func WithLogger(log logger.Logger) DriverOption {
	return func(d *Driver) {
		d.logger = log
	}
}

func NewDriver(port PortAccess, opts ...DriverOption) *Driver {
	d := &Driver{
		port:         port,
		pollInterval: defaultPollInterval,
		maxPolls:     defaultMaxPolls,
		sleep:        time.Sleep,
		logger:       logger.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}

	return d
}

// WriteRegister stores value in register using the vendor write command.
func (d *Driver) WriteRegister(register, value byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.wait("command"); err != nil {
		return err
	}
	if err := d.port.Out(CommandPort, CmdWrite); err != nil {
		return err
	}

	if err := d.wait("address"); err != nil {
		return err
	}
	if err := d.port.Out(DataPort, register); err != nil {
		return err
	}

	if err := d.wait("value"); err != nil {
		return err
	}
	if err := d.port.Out(DataPort, value); err != nil {
		return err
	}

	return d.wait("confirm")
}

// ReadRegister fetches a single register through the handshake.
func (d *Driver) ReadRegister(register byte) (byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.wait("command"); err != nil {
		return 0, err
	}
	if err := d.port.Out(CommandPort, CmdRead); err != nil {
		return 0, err
	}

	if err := d.wait("address"); err != nil {
		return 0, err
	}
	if err := d.port.Out(DataPort, register); err != nil {
		return 0, err
	}

	if err := d.wait("data"); err != nil {
		return 0, err
	}

	return d.port.In(DataPort)
}

// WriteFanDuty commands the fan to pct percent.
func (d *Driver) WriteFanDuty(pct int) error {
	errFactory := errors.New()
	if pct < 0 || pct > maxPercent {
		return errFactory.WithData(errors.ErrInvalidArgument, "fan duty out of range")
	}

	if err := d.WriteRegister(RegFanDutyCommand, PercentToRaw(pct)); err != nil {
		return errFactory.Wrap(errors.ErrWriteFailed, err)
	}

	return nil
}

// ReadFanDuty reads the current duty register directly.
func (d *Driver) ReadFanDuty() (int, error) {
	raw, err := d.ReadRegister(OffsetFanDuty)
	if err != nil {
		return 0, err
	}

	return RawToPercent(raw), nil
}

// ReadCPUTemp reads the CPU temperature register directly.
func (d *Driver) ReadCPUTemp() (int, error) {
	raw, err := d.ReadRegister(OffsetCPUTemp)
	if err != nil {
		return 0, err
	}

	return int(raw), nil
}

// wait polls the status port until IBF clears or the poll budget runs out.
func (d *Driver) wait(phase string) error {
	status, err := d.port.In(CommandPort)
	if err != nil {
		return err
	}

	for polls := 0; status&(1<<statusIBF) != 0; polls++ {
		if polls >= d.maxPolls {
			d.logger.Debug().
				Str("phase", phase).
				Int("polls", polls).
				Uint8("status", status).
				Msg("EC input buffer did not drain")
			return errors.New().WithData(errors.ErrProtocolTimeout, phase)
		}

		d.sleep(d.pollInterval)

		if status, err = d.port.In(CommandPort); err != nil {
			return err
		}
	}

	return nil
}
