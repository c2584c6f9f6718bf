package policy

import "codeberg.org/mutker/ecfanctl/internal/errors"

// Tuning holds the damping constants. The band is deliberately asymmetric:
// the fan may run LowerBand points hotter than needed but only UpperBand
// points cooler.
type Tuning struct {
	LowerBand     int
	UpperBand     int
	MaxStep       int
	NoiseFloor    int
	StableTicks   int
	CooldownTicks int
}

func DefaultTuning() Tuning {
	return Tuning{
		LowerBand:     10,
		UpperBand:     5,
		MaxStep:       8,
		NoiseFloor:    3,
		StableTicks:   4,
		CooldownTicks: 4,
	}
}

func (t Tuning) Validate() error {
	errFactory := errors.New()

	switch {
	case t.LowerBand < 0 || t.UpperBand < 0:
		return errFactory.WithData(errors.ErrInvalidTuning, "band widths must not be negative")
	case t.MaxStep <= 0:
		return errFactory.WithData(errors.ErrInvalidTuning, "max step must be positive")
	case t.NoiseFloor < 0:
		return errFactory.WithData(errors.ErrInvalidTuning, "noise floor must not be negative")
	case t.StableTicks < 0 || t.CooldownTicks <= 0:
		return errFactory.WithData(errors.ErrInvalidTuning, "tick caps out of range")
	}

	return nil
}

// State is the per-run control state. It lives for one process run and is
// mutated once per tick by Evaluate.
type State struct {
	CurrentDuty   int
	StableCount   int
	CooldownCount int
	PendingTarget int
}

type Reason string

const (
	ReasonHoldBand Reason = "hold_band"
	ReasonNoise    Reason = "noise"
	ReasonRampUp   Reason = "ramp_up"
	ReasonRampDown Reason = "ramp_down"
	ReasonCooldown Reason = "cooldown"
)

// Decision is the outcome of one tick. Target is meaningful only when Act
// is set.
type Decision struct {
	Act     bool
	Target  int
	Desired int
	Reason  Reason
}

type Policy struct {
	profile Profile
	tuning  Tuning
}

func New(profile Profile, tuning Tuning) (*Policy, error) {
	if err := tuning.Validate(); err != nil {
		return nil, err
	}

	return &Policy{profile: profile, tuning: tuning}, nil
}

func (p *Policy) Profile() Profile {
	return p.profile
}

// Evaluate decides the next fan duty for cpuTemp. Increases are applied at
// once; decreases wait out CooldownTicks qualifying ticks and then move at
// most MaxStep points.
func (p *Policy) Evaluate(state *State, cpuTemp int) Decision {
	current := clampPercent(state.CurrentDuty)
	desired := p.profile.DutyPercent(cpuTemp)
	d := Decision{Desired: desired}

	inBand := desired >= current-p.tuning.LowerBand && desired <= current+p.tuning.UpperBand
	if state.StableCount < p.tuning.StableTicks && inBand {
		state.StableCount++
		d.Reason = ReasonHoldBand
		return d
	}
	state.StableCount = 0

	switch {
	case abs(desired-current) <= p.tuning.NoiseFloor:
		d.Reason = ReasonNoise
		return d
	case desired > current:
		state.CooldownCount = 0
		d.Reason = ReasonRampUp
		d.Target = desired
	default:
		state.CooldownCount++
		if state.CooldownCount < p.tuning.CooldownTicks {
			d.Reason = ReasonCooldown
			return d
		}
		state.CooldownCount = 0
		d.Reason = ReasonRampDown
		d.Target = current - min(current-desired, p.tuning.MaxStep)
	}

	d.Act = true
	d.Target = clampPercent(d.Target)
	state.PendingTarget = d.Target

	return d
}

func clampPercent(v int) int {
	return max(0, min(v, 100))
}

func abs(x int) int {
	if x < 0 {
		return -x
	}

	return x
}
