package config

import (
	"io"
	"os"
	"strings"

	"codeberg.org/mutker/ecfanctl/internal/ec"
	"codeberg.org/mutker/ecfanctl/internal/errors"
	"codeberg.org/mutker/ecfanctl/internal/policy"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultLogLevel     = string(LogLevelInfo)
	DefaultInterval     = 2
	DefaultMetricsDB    = "/var/lib/ecfanctl/metrics.db"
	DefaultBatchSize    = 30
	DefaultBatchTimeout = 60

	defaultEnvPrefix  = "ECFANCTL"
	defaultConfigName = "ecfanctl"
	defaultConfigDir  = "/etc"
	configEnv         = "ECFANCTL_CONFIG"
)

type Config struct {
	Profile             string `mapstructure:"profile"`
	Interval            int    `mapstructure:"interval"`
	Monitor             bool   `mapstructure:"monitor"`
	LogLevel            string `mapstructure:"log_level"`
	SnapshotPath        string `mapstructure:"snapshot_path"`
	PortDevice          string `mapstructure:"port_device"`
	LoadModule          bool   `mapstructure:"load_module"`
	ModuleName          string `mapstructure:"module_name"`
	Metrics             bool   `mapstructure:"metrics"`
	MetricsDB           string `mapstructure:"metrics_db"`
	MetricsBatchSize    int    `mapstructure:"metrics_batch_size"`
	MetricsBatchTimeout int    `mapstructure:"metrics_batch_timeout"`
	GPUProbe            bool   `mapstructure:"gpu_probe"`
	StatusListen        string `mapstructure:"status_listen"`
	Tuning              Tuning `mapstructure:"tuning"`
}

// Tuning mirrors policy.Tuning for the config file.
type Tuning struct {
	LowerBand     int `mapstructure:"lower_band"`
	UpperBand     int `mapstructure:"upper_band"`
	MaxStep       int `mapstructure:"max_step"`
	NoiseFloor    int `mapstructure:"noise_floor"`
	StableTicks   int `mapstructure:"stable_ticks"`
	CooldownTicks int `mapstructure:"cooldown_ticks"`
}

func (t Tuning) Policy() policy.Tuning {
	return policy.Tuning{
		LowerBand:     t.LowerBand,
		UpperBand:     t.UpperBand,
		MaxStep:       t.MaxStep,
		NoiseFloor:    t.NoiseFloor,
		StableTicks:   t.StableTicks,
		CooldownTicks: t.CooldownTicks,
	}
}

func setDefaults(v *viper.Viper) {
	tuning := policy.DefaultTuning()

	v.SetDefault("profile", policy.ProfileDefault)
	v.SetDefault("interval", DefaultInterval)
	v.SetDefault("monitor", false)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("snapshot_path", ec.DefaultSnapshotPath)
	v.SetDefault("port_device", ec.DefaultPortDevice)
	v.SetDefault("load_module", true)
	v.SetDefault("module_name", ec.DefaultModuleName)
	v.SetDefault("metrics", false)
	v.SetDefault("metrics_db", DefaultMetricsDB)
	v.SetDefault("metrics_batch_size", DefaultBatchSize)
	v.SetDefault("metrics_batch_timeout", DefaultBatchTimeout)
	v.SetDefault("gpu_probe", false)
	v.SetDefault("status_listen", "")
	v.SetDefault("tuning.lower_band", tuning.LowerBand)
	v.SetDefault("tuning.upper_band", tuning.UpperBand)
	v.SetDefault("tuning.max_step", tuning.MaxStep)
	v.SetDefault("tuning.noise_floor", tuning.NoiseFloor)
	v.SetDefault("tuning.stable_ticks", tuning.StableTicks)
	v.SetDefault("tuning.cooldown_ticks", tuning.CooldownTicks)
}

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SortFlags = false

	fs.Bool(policy.ProfileDefault, false, "Use the default fan profile")
	fs.Bool(policy.ProfileQuiet, false, "Use the quiet fan profile")
	fs.Int("interval", DefaultInterval, "Seconds between control ticks")
	fs.Bool("monitor", false, "Only log readings, never write the fan duty")
	fs.String("log-level", DefaultLogLevel, "Log level (debug, info, warning, error)")
	fs.Bool("metrics", false, "Record tick history to the metrics database")
	fs.String("config", "", "Path to the configuration file")

	return fs
}

// Usage returns the flag summary for name.
func Usage(name string) string {
	return "Usage: " + name + " [--default|--quiet] [options]\n" + newFlagSet(name).FlagUsages()
}

// IsHelp reports whether err is the result of -h or --help.
func IsHelp(err error) bool {
	return errors.Is(err, pflag.ErrHelp)
}

// Load parses args (without the program name), reads the configuration
// file and environment, and validates the result. Flags win over the file.
func Load(args []string, opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := &options{envPrefix: defaultEnvPrefix}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}

	fs := newFlagSet(defaultConfigName)
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil, err
		}
		return nil, errFactory.Wrap(errors.ErrInvalidArgument, err)
	}
	if fs.NArg() > 0 {
		return nil, errFactory.WithData(errors.ErrInvalidArgument, "unexpected argument "+fs.Arg(0))
	}

	defaultMode, _ := fs.GetBool(policy.ProfileDefault)
	quietMode, _ := fs.GetBool(policy.ProfileQuiet)
	if defaultMode && quietMode {
		return nil, errFactory.WithData(errors.ErrInvalidArgument, "--default and --quiet are mutually exclusive")
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := readConfigFile(v, fs, o); err != nil {
		return nil, err
	}

	bindings := map[string]string{
		"interval":  "interval",
		"monitor":   "monitor",
		"log_level": "log-level",
		"metrics":   "metrics",
	}
	for key, flagName := range bindings {
		if err := v.BindPFlag(key, fs.Lookup(flagName)); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	switch {
	case defaultMode:
		v.Set("profile", policy.ProfileDefault)
	case quietMode:
		v.Set("profile", policy.ProfileQuiet)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func readConfigFile(v *viper.Viper, fs *pflag.FlagSet, o *options) error {
	errFactory := errors.New()

	path := o.configPath
	if path == "" {
		path, _ = fs.GetString("config")
	}
	if path == "" {
		path = os.Getenv(configEnv)
	}

	v.SetConfigType("toml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return errFactory.Wrap(errors.ErrReadConfig, err)
		}
		return nil
	}

	v.SetConfigName(defaultConfigName)
	v.AddConfigPath(defaultConfigDir)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	return nil
}

// Validate checks value ranges and cross-field constraints.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if _, err := policy.Lookup(c.Profile); err != nil {
		return err
	}

	if c.Interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Interval)
	}

	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	if c.SnapshotPath == "" || c.PortDevice == "" {
		return errFactory.WithData(errors.ErrInvalidConfig, "snapshot_path and port_device must be set")
	}

	if c.LoadModule && c.ModuleName == "" {
		return errFactory.WithData(errors.ErrInvalidConfig, "module_name must be set when load_module is enabled")
	}

	if c.Metrics {
		if c.MetricsDB == "" {
			return errFactory.WithData(errors.ErrInvalidConfig, "metrics_db must be set when metrics are enabled")
		}
		if c.MetricsBatchSize < 1 || c.MetricsBatchTimeout < 0 {
			return errFactory.WithData(errors.ErrInvalidConfig, "metrics batching out of range")
		}
	}

	return c.Tuning.Policy().Validate()
}
