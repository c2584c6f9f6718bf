package policy_test

import (
	"testing"

	"codeberg.org/mutker/ecfanctl/internal/errors"
	"codeberg.org/mutker/ecfanctl/internal/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfilesMonotonic(t *testing.T) {
	for _, name := range policy.Names() {
		t.Run(name, func(t *testing.T) {
			p, err := policy.Lookup(name)
			require.NoError(t, err)

			prev := p.Duty(-40)
			for temp := -40.0; temp <= 130; temp += 0.25 {
				duty := p.Duty(temp)
				assert.GreaterOrEqual(t, duty, prev, "temp=%.2f", temp)
				assert.GreaterOrEqual(t, duty, p.Floor, "temp=%.2f", temp)
				assert.LessOrEqual(t, duty, 100.0, "temp=%.2f", temp)
				prev = duty
			}
		})
	}
}

func TestProfileValues(t *testing.T) {
	def, err := policy.Lookup(policy.ProfileDefault)
	require.NoError(t, err)
	quiet, err := policy.Lookup(policy.ProfileQuiet)
	require.NoError(t, err)

	tests := []struct {
		profile policy.Profile
		temp    int
		want    int
	}{
		{def, 25, 32},
		{def, 40, 32},
		{def, 55, 43},
		{def, 70, 75},
		{def, 80, 100},
		{def, 95, 100},
		{quiet, 25, 30},
		{quiet, 50, 35},
		{quiet, 70, 72},
		{quiet, 80, 90},
		{quiet, 85, 90},
		{quiet, 90, 98},
		{quiet, 95, 100},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.profile.DutyPercent(tt.temp), "%s at %d°C", tt.profile.Name, tt.temp)
	}
}

func TestLookupUnknownProfile(t *testing.T) {
	_, err := policy.Lookup("turbo")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidProfile))
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{policy.ProfileDefault, policy.ProfileQuiet}, policy.Names())
}
