package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/mutker/ecfanctl/internal/config"
	"codeberg.org/mutker/ecfanctl/internal/daemon"
	"codeberg.org/mutker/ecfanctl/internal/ec"
	"codeberg.org/mutker/ecfanctl/internal/errors"
	"codeberg.org/mutker/ecfanctl/internal/gpu"
	"codeberg.org/mutker/ecfanctl/internal/logger"
	"codeberg.org/mutker/ecfanctl/internal/metrics"
	"codeberg.org/mutker/ecfanctl/internal/pid"
	"codeberg.org/mutker/ecfanctl/internal/policy"
	"codeberg.org/mutker/ecfanctl/internal/status"
)

const (
	programName = "ecfanctl"

	exitOK    = 0
	exitError = 1
	exitUsage = 2

	moduleLoadTimeout = 30 * time.Second
	shutdownTimeout   = 5 * time.Second
)

var shutdownSignals = []os.Signal{
	syscall.SIGHUP,
	syscall.SIGINT,
	syscall.SIGQUIT,
	syscall.SIGUSR1,
	syscall.SIGUSR2,
	syscall.SIGPIPE,
	syscall.SIGALRM,
	syscall.SIGTERM,
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load(args)
	if err != nil {
		return handleConfigError(err)
	}

	level, _ := logger.ParseLevel(cfg.LogLevel)
	logger.Init(level, logger.IsService())
	logger.Debug().Msg("Config loaded")

	if os.Geteuid() != 0 {
		logError(errors.New().New(errors.ErrPermission), "Root privileges are required to access the embedded controller")
		return exitError
	}

	if err := pid.Write(pid.DefaultPath); err != nil {
		logError(err, "Failed to write PID file")
		return exitError
	}
	defer func() {
		if err := pid.Remove(pid.DefaultPath); err != nil {
			logError(err, "Failed to remove PID file")
		}
	}()

	port := ec.NewDevPort(cfg.PortDevice)
	if err := port.Init(); err != nil {
		if errors.HasCode(err, errors.ErrPermission) {
			logError(err, "Root privileges are required to access the embedded controller")
		} else {
			logError(err, "Failed to open EC port device")
		}
		return exitError
	}
	defer func() {
		if err := port.Close(); err != nil {
			logError(err, "Failed to close EC port device")
		}
	}()

	driver := ec.NewDriver(port, ec.WithLogger(logger.Default()))
	logInitialState(driver)

	snapshots := ec.NewFileSnapshotReader(cfg.SnapshotPath)
	if err := prepareSnapshots(cfg, snapshots); err != nil {
		logError(err, "EC register snapshot is not readable")
		return exitError
	}

	profile, err := policy.Lookup(cfg.Profile)
	if err != nil {
		logError(err, "Unknown profile")
		return exitError
	}
	pol, err := policy.New(profile, cfg.Tuning.Policy())
	if err != nil {
		logError(err, "Invalid policy tuning")
		return exitError
	}

	collector, err := metrics.NewService(metrics.Config{
		DBPath:       cfg.MetricsDB,
		BatchSize:    cfg.MetricsBatchSize,
		BatchTimeout: cfg.MetricsBatchTimeout,
		Enabled:      cfg.Metrics,
	}, logger.Default())
	if err != nil {
		logError(err, "Failed to initialize metrics")
		return exitError
	}
	defer func() {
		if err := collector.Close(); err != nil {
			logError(err, "Failed to close metrics")
		}
	}()

	opts := []daemon.Option{
		daemon.WithInterval(time.Duration(cfg.Interval) * time.Second),
		daemon.WithMonitor(cfg.Monitor),
		daemon.WithCollector(collector),
		daemon.WithLogger(logger.Default()),
	}

	if cfg.GPUProbe {
		probe, err := gpu.New()
		if err != nil {
			logger.Warn().Err(err).Msg("GPU probe unavailable, continuing without it")
		} else {
			defer func() {
				if err := probe.Shutdown(); err != nil {
					logger.Warn().Err(err).Msg("Failed to shut down GPU probe")
				}
			}()
			opts = append(opts, daemon.WithProbe(probe))
		}
	}

	if cfg.StatusListen != "" {
		store := status.NewStore()
		server := status.NewServer(cfg.StatusListen, store, logger.Default())
		if err := server.Start(); err != nil {
			logError(err, "Failed to start status endpoint")
			return exitError
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				logError(err, "Failed to stop status endpoint")
			}
		}()
		opts = append(opts, daemon.WithStatus(store))
	}

	d := daemon.New(snapshots, driver, pol, opts...)

	stopSignals := handleSignals(d)
	defer stopSignals()

	if err := d.Run(context.Background()); err != nil {
		logError(err, "Control loop stopped")
		return exitError
	}

	logger.Info().Msg("Exiting...")

	return exitOK
}

func handleConfigError(err error) int {
	if config.IsHelp(err) {
		fmt.Fprint(os.Stdout, config.Usage(programName))
		return exitOK
	}

	fmt.Fprintf(os.Stderr, "%s: %v\n", programName, err)
	if errors.HasCode(err, errors.ErrInvalidArgument) {
		fmt.Fprint(os.Stderr, config.Usage(programName))
		return exitUsage
	}

	return exitError
}

// prepareSnapshots loads the helper module when asked to. A failed load is
// only fatal when the register file is still unreadable afterwards.
func prepareSnapshots(cfg *config.Config, snapshots ec.SnapshotReader) error {
	if cfg.LoadModule {
		ctx, cancel := context.WithTimeout(context.Background(), moduleLoadTimeout)
		defer cancel()

		if err := ec.LoadModule(ctx, cfg.ModuleName); err != nil {
			logger.Warn().Err(err).Msgf("Failed to load kernel module %s", cfg.ModuleName)
		}
	}

	_, err := snapshots.ReadSnapshot()

	return err
}

func logInitialState(driver *ec.Driver) {
	duty, err := driver.ReadFanDuty()
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to read initial fan duty")
		return
	}

	temp, err := driver.ReadCPUTemp()
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to read initial CPU temperature")
		return
	}

	logger.Info().Msgf("Initial state: fan=%d%%, CPU=%d°C", duty, temp)
}

func handleSignals(d *daemon.Daemon) func() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, shutdownSignals...)

	done := make(chan struct{})
	go func() {
		select {
		case sig := <-sigs:
			logger.Info().Msgf("Received %v, shutting down", sig)
			d.Stop()
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}

func logError(err error, msg string) {
	var appErr errors.Error
	if errors.As(err, &appErr) {
		logger.ErrorWithCode(appErr).Msg(msg)
		return
	}

	logger.Error().Err(err).Msg(msg)
}
