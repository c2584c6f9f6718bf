package policy

import (
	"math"
	"sort"

	"codeberg.org/mutker/ecfanctl/internal/errors"
)

const (
	ProfileDefault = "default"
	ProfileQuiet   = "quiet"

	ceilingDuty = 100.0
)

// Segment maps temperatures up to and including UpTo with Slope*t+Intercept.
type Segment struct {
	UpTo      float64
	Slope     float64
	Intercept float64
}

func (s Segment) at(temp float64) float64 {
	return s.Slope*temp + s.Intercept
}

// Profile is a piecewise-linear temperature to duty curve. Below the first
// segment the floor applies, above the last one the ceiling.
type Profile struct {
	Name     string
	Floor    float64
	Segments []Segment
}

var profiles = map[string]Profile{
	ProfileDefault: {
		Name:  ProfileDefault,
		Floor: 32,
		Segments: []Segment{
			{UpTo: 40, Slope: 0, Intercept: 32},
			{UpTo: 60, Slope: 0.71, Intercept: 4},
			{UpTo: 80, Slope: 2.5, Intercept: -100},
		},
	},
	ProfileQuiet: {
		Name:  ProfileQuiet,
		Floor: 30,
		Segments: []Segment{
			{UpTo: 40, Slope: 0, Intercept: 30},
			{UpTo: 60, Slope: 0.5, Intercept: 10},
			{UpTo: 80, Slope: 1.8, Intercept: -54},
			{UpTo: 90, Slope: 2.2, Intercept: -100},
		},
	},
}

// Lookup returns the named built-in profile.
func Lookup(name string) (Profile, error) {
	p, ok := profiles[name]
	if !ok {
		return Profile{}, errors.New().WithData(errors.ErrInvalidProfile, name)
	}

	return p, nil
}

// Names lists the built-in profiles in sorted order.
func Names() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Duty returns the desired duty for temp, clamped to [Floor, 100]. The
// curve never decreases: a segment that starts below where the previous
// one ended is held at that level until it catches up.
func (p Profile) Duty(temp float64) float64 {
	carry := p.Floor
	for _, seg := range p.Segments {
		if temp <= seg.UpTo {
			return clamp(math.Max(carry, seg.at(temp)), p.Floor, ceilingDuty)
		}
		carry = math.Max(carry, seg.at(seg.UpTo))
	}

	return ceilingDuty
}

// DutyPercent is Duty rounded to a whole percent.
func (p Profile) DutyPercent(temp int) int {
	return int(math.Round(p.Duty(float64(temp))))
}

func clamp(value, minValue, maxValue float64) float64 {
	if value < minValue {
		return minValue
	}
	if value > maxValue {
		return maxValue
	}

	return value
}
