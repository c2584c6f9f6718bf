package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"codeberg.org/mutker/ecfanctl/internal/config"
	"codeberg.org/mutker/ecfanctl/internal/ec"
	"codeberg.org/mutker/ecfanctl/internal/errors"
	"codeberg.org/mutker/ecfanctl/internal/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ecfanctl.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad(t *testing.T) {
	configPath := writeConfig(t, `
profile = "quiet"
interval = 5
monitor = true
log_level = "debug"
snapshot_path = "/tmp/ec/io"
load_module = false
metrics = true
metrics_db = "/path/to/metrics.db"
metrics_batch_size = 10
gpu_probe = true
status_listen = "127.0.0.1:9477"

[tuning]
lower_band = 12
max_step = 6
`)
	t.Setenv("ECFANCTL_CONFIG", configPath)

	cfg, err := config.Load(nil)
	require.NoError(t, err)

	assert.Equal(t, policy.ProfileQuiet, cfg.Profile)
	assert.Equal(t, 5, cfg.Interval)
	assert.True(t, cfg.Monitor)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/tmp/ec/io", cfg.SnapshotPath)
	assert.False(t, cfg.LoadModule)
	assert.True(t, cfg.Metrics)
	assert.Equal(t, "/path/to/metrics.db", cfg.MetricsDB)
	assert.Equal(t, 10, cfg.MetricsBatchSize)
	assert.True(t, cfg.GPUProbe)
	assert.Equal(t, "127.0.0.1:9477", cfg.StatusListen)
	assert.Equal(t, 12, cfg.Tuning.LowerBand)
	assert.Equal(t, 5, cfg.Tuning.UpperBand, "unset tuning keys keep defaults")
	assert.Equal(t, 6, cfg.Tuning.MaxStep)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ECFANCTL_CONFIG", "")

	cfg, err := config.Load(nil)
	require.NoError(t, err)

	assert.Equal(t, policy.ProfileDefault, cfg.Profile)
	assert.Equal(t, config.DefaultInterval, cfg.Interval)
	assert.False(t, cfg.Monitor)
	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, ec.DefaultSnapshotPath, cfg.SnapshotPath)
	assert.Equal(t, ec.DefaultPortDevice, cfg.PortDevice)
	assert.True(t, cfg.LoadModule)
	assert.Equal(t, ec.DefaultModuleName, cfg.ModuleName)
	assert.False(t, cfg.Metrics)
	assert.Equal(t, policy.DefaultTuning(), cfg.Tuning.Policy())
}

func TestProfileFlags(t *testing.T) {
	t.Setenv("ECFANCTL_CONFIG", "")

	cfg, err := config.Load([]string{"--quiet"})
	require.NoError(t, err)
	assert.Equal(t, policy.ProfileQuiet, cfg.Profile)

	cfg, err = config.Load([]string{"--default"})
	require.NoError(t, err)
	assert.Equal(t, policy.ProfileDefault, cfg.Profile)
}

func TestProfileFlagOverridesFile(t *testing.T) {
	configPath := writeConfig(t, `profile = "quiet"`)

	cfg, err := config.Load([]string{"--default"}, config.WithConfigFile(configPath))
	require.NoError(t, err)
	assert.Equal(t, policy.ProfileDefault, cfg.Profile)
}

func TestProfileFlagsMutuallyExclusive(t *testing.T) {
	t.Setenv("ECFANCTL_CONFIG", "")

	_, err := config.Load([]string{"--default", "--quiet"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidArgument))
}

func TestUnknownArguments(t *testing.T) {
	t.Setenv("ECFANCTL_CONFIG", "")

	for _, args := range [][]string{{"--turbo"}, {"quiet"}} {
		_, err := config.Load(args)
		require.Error(t, err, "args=%v", args)
		assert.True(t, errors.HasCode(err, errors.ErrInvalidArgument))
	}
}

func TestHelp(t *testing.T) {
	t.Setenv("ECFANCTL_CONFIG", "")

	_, err := config.Load([]string{"--help"})
	require.Error(t, err)
	assert.True(t, config.IsHelp(err))
	assert.Contains(t, config.Usage("ecfanctl"), "--quiet")
}

func TestFlagsOverrideFile(t *testing.T) {
	configPath := writeConfig(t, `
interval = 7
log_level = "error"
`)

	cfg, err := config.Load([]string{"--interval", "3", "--config", configPath})
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Interval)
	assert.Equal(t, "error", cfg.LogLevel)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("ECFANCTL_CONFIG", "")
	t.Setenv("ECFANCTL_INTERVAL", "9")
	t.Setenv("ECFANCTL_TUNING_MAX_STEP", "4")

	cfg, err := config.Load(nil)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Interval)
	assert.Equal(t, 4, cfg.Tuning.MaxStep)
}

func TestLoadConfigFileInvalidFormat(t *testing.T) {
	configPath := writeConfig(t, `
This is not a valid TOML file
`)

	_, err := config.Load(nil, config.WithConfigFile(configPath))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig))
	assert.Contains(t, err.Error(), "Failed to read config file")
}

func TestLoadConfigFileMissing(t *testing.T) {
	_, err := config.Load(nil, config.WithConfigFile(filepath.Join(t.TempDir(), "absent.toml")))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig))
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		code    errors.ErrorCode
	}{
		{"profile", `profile = "turbo"`, errors.ErrInvalidProfile},
		{"interval", `interval = 0`, errors.ErrInvalidInterval},
		{"log level", `log_level = "invalid"`, errors.ErrInvalidLogLevel},
		{"tuning", "[tuning]\nmax_step = 0", errors.ErrInvalidTuning},
		{"metrics db", "metrics = true\nmetrics_db = \"\"", errors.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(nil, config.WithConfigFile(writeConfig(t, tt.content)))
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.code), "got %v", err)
		})
	}
}
