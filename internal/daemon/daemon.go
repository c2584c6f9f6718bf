package daemon

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/ecfanctl/internal/ec"
	"codeberg.org/mutker/ecfanctl/internal/gpu"
	"codeberg.org/mutker/ecfanctl/internal/logger"
	"codeberg.org/mutker/ecfanctl/internal/metrics"
	"codeberg.org/mutker/ecfanctl/internal/policy"
)

const DefaultInterval = 2 * time.Second

// noProbe marks a missing or failed GPU probe reading.
const noProbe = -1

// DutyWriter commands a fan duty in percent.
type DutyWriter interface {
	WriteFanDuty(pct int) error
}

// StatusSink receives a copy of every completed tick.
type StatusSink interface {
	Update(snapshot metrics.TickSnapshot)
}

type Daemon struct {
	snapshots ec.SnapshotReader
	writer    DutyWriter
	policy    *policy.Policy
	state     policy.State

	collector metrics.Collector
	probe     gpu.TemperatureProbe
	status    StatusSink
	log       logger.Logger
	now       func() time.Time

	interval time.Duration
	monitor  bool

	stopped  atomic.Bool
	wake     chan struct{}
	stopOnce sync.Once
}

type Option func(*Daemon)

func WithInterval(interval time.Duration) Option {
	return func(d *Daemon) {
		if interval > 0 {
			d.interval = interval
		}
	}
}

// WithMonitor evaluates the policy without writing to the EC.
func WithMonitor(monitor bool) Option {
	return func(d *Daemon) {
		d.monitor = monitor
	}
}

func WithCollector(collector metrics.Collector) Option {
	return func(d *Daemon) {
		d.collector = collector
	}
}

func WithProbe(probe gpu.TemperatureProbe) Option {
	return func(d *Daemon) {
		d.probe = probe
	}
}

func WithStatus(sink StatusSink) Option {
	return func(d *Daemon) {
		d.status = sink
	}
}

func WithLogger(log logger.Logger) Option {
	return func(d *Daemon) {
		d.log = log
	}
}

func withClock(now func() time.Time) Option {
	return func(d *Daemon) {
		d.now = now
	}
}

func New(snapshots ec.SnapshotReader, writer DutyWriter, pol *policy.Policy, opts ...Option) *Daemon {
	d := &Daemon{
		snapshots: snapshots,
		writer:    writer,
		policy:    pol,
		log:       logger.Default(),
		now:       time.Now,
		interval:  DefaultInterval,
		wake:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Stop requests shutdown. It is safe to call from any goroutine, more than
// once. A tick in progress runs to completion.
func (d *Daemon) Stop() {
	d.stopped.Store(true)
	d.stopOnce.Do(func() {
		close(d.wake)
	})
}

func (d *Daemon) Stopped() bool {
	return d.stopped.Load()
}

// State returns a copy of the control state. Only meaningful once Run has
// returned or between ticks in tests.
func (d *Daemon) State() policy.State {
	return d.state
}

// Run executes ticks until Stop is called or ctx is done. A failed snapshot
// read or fan write ends the loop with that error.
func (d *Daemon) Run(ctx context.Context) error {
	if d.monitor {
		d.log.Info().Msg("Monitor mode activated, fan duty will not be changed")
	}
	d.log.Info().Msgf("Control loop started with profile %q, interval %s", d.policy.Profile().Name, d.interval)

	for {
		if d.stopped.Load() {
			d.log.Info().Msg("Shutdown requested, leaving control loop")
			return nil
		}

		if err := d.tick(ctx); err != nil {
			return err
		}

		timer := time.NewTimer(d.interval)
		select {
		case <-ctx.Done():
			d.Stop()
		case <-d.wake:
		case <-timer.C:
		}
		timer.Stop()
	}
}

func (d *Daemon) tick(ctx context.Context) error {
	snapshot, err := d.snapshots.ReadSnapshot()
	if err != nil {
		return err
	}

	d.state.CurrentDuty = snapshot.FanDutyPercent()
	cpuTemp := snapshot.CPUTemp()
	decision := d.policy.Evaluate(&d.state, cpuTemp)

	written := false
	if decision.Act && !d.monitor {
		if err := d.writer.WriteFanDuty(decision.Target); err != nil {
			return err
		}
		written = true
	}

	tick := metrics.TickSnapshot{
		Timestamp: d.now(),
		Profile:   d.policy.Profile().Name,
		Temperature: metrics.TempMetrics{
			CPU:      cpuTemp,
			GPU:      snapshot.GPUTemp(),
			GPUProbe: d.readProbe(),
		},
		FanDuty: metrics.DutyMetrics{
			Current: d.state.CurrentDuty,
			Desired: decision.Desired,
		},
		FanRPM: snapshot.FanRPM(),
		Action: metrics.ActionMetrics{
			Written: written,
			Reason:  string(decision.Reason),
		},
	}
	if decision.Act {
		tick.FanDuty.Target = decision.Target
	}

	d.logTick(tick, decision)

	if d.collector != nil {
		if err := d.collector.Record(ctx, &tick); err != nil {
			d.log.Warn().Err(err).Msg("Failed to record metrics")
		}
	}
	if d.status != nil {
		d.status.Update(tick)
	}

	return nil
}

func (d *Daemon) readProbe() int {
	if d.probe == nil {
		return noProbe
	}

	temp, err := d.probe.Temperature()
	if err != nil {
		d.log.Debug().Err(err).Msg("GPU probe read failed")
		return noProbe
	}

	return temp
}

func (d *Daemon) logTick(tick metrics.TickSnapshot, decision policy.Decision) {
	if tick.Action.Written {
		d.log.Info().Msgf("next: fan=%d%%, CPU=%d°C", decision.Target, tick.Temperature.CPU)
	} else if d.monitor && decision.Act {
		d.log.Info().Msgf("next (monitor): fan=%d%%, CPU=%d°C", decision.Target, tick.Temperature.CPU)
	}

	d.log.Debug().
		Int("cpu_temp", tick.Temperature.CPU).
		Int("gpu_temp", tick.Temperature.GPU).
		Int("gpu_probe_temp", tick.Temperature.GPUProbe).
		Int("current_duty", tick.FanDuty.Current).
		Int("desired_duty", tick.FanDuty.Desired).
		Int("fan_rpm", tick.FanRPM).
		Int("stable_count", d.state.StableCount).
		Int("cooldown_count", d.state.CooldownCount).
		Str("reason", tick.Action.Reason).
		Msg("tick")
}
