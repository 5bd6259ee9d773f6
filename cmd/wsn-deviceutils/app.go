package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/TTeubler/wsn-device-utils/internal/driver"
	"github.com/TTeubler/wsn-device-utils/internal/infrastructure/config"
	"github.com/TTeubler/wsn-device-utils/internal/infrastructure/influxdb"
	"github.com/TTeubler/wsn-device-utils/internal/infrastructure/logging"
	"github.com/TTeubler/wsn-device-utils/internal/infrastructure/metrics"
	"github.com/TTeubler/wsn-device-utils/internal/infrastructure/mqtt"
	"github.com/TTeubler/wsn-device-utils/internal/reference"
)

// Process exit codes.
const (
	exitOK               = 0
	exitFailure          = 1
	exitInvalidArguments = reference.ExitInvalidArguments
)

// settingsEnv names the settings file when --settings is not given.
const settingsEnv = "WSN_SETTINGS"

// deviceDriver is everything the subcommands need from a driver.
type deviceDriver interface {
	driver.Enumerator
	driver.Connector
	driver.MACReader
}

// app holds the process-level collaborators of the subcommands.
type app struct {
	stdout io.Writer
	stderr io.Writer

	// newDriver builds the device driver once settings and references are loaded.
	newDriver func(cfg *config.Config, refs *reference.Map, log *logging.Logger) deviceDriver
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout:    stdout,
		stderr:    stderr,
		newDriver: newSerialDriver,
	}
}

func newSerialDriver(cfg *config.Config, refs *reference.Map, log *logging.Logger) deviceDriver {
	d := driver.NewSerial(driver.SerialConfig{
		DefaultBaudRate:   cfg.Drivers.DefaultBaudRate,
		USBTypes:          cfg.Drivers.USBTypes,
		ReferenceMACTypes: cfg.Drivers.ReferenceMACTypes,
	}, refs)
	d.SetLogger(log.With("component", "driver"))
	return d
}

// commonFlags are accepted by every subcommand.
type commonFlags struct {
	verbose  bool
	level    string
	settings string
	help     bool
}

func (c *commonFlags) register(fs *pflag.FlagSet) {
	fs.BoolVarP(&c.verbose, "verbose", "v", false, "Optional: verbose logging output (equal to -l debug)")
	fs.StringVarP(&c.level, "logging", "l", "", "Optional: set logging level (one of [trace, debug, info, warn, error])")
	fs.StringVar(&c.settings, "settings", "", "Optional: YAML settings file (default $"+settingsEnv+")")
	fs.BoolVarP(&c.help, "help", "h", false, "Optional: print help")
}

// requiredFlag is a string option that must not be empty.
type requiredFlag struct {
	name  string
	value *string
}

// errUsage marks command-line errors that should be followed by the usage text.
var errUsage = errors.New("invalid command line")

// parse parses args into fs. It returns done=true with the exit code when
// the subcommand must not continue (help requested or invalid arguments).
func (a *app) parse(fs *pflag.FlagSet, common *commonFlags, args []string, required ...requiredFlag) (done bool, code int) {
	fs.SetOutput(io.Discard)

	if err := fs.Parse(args); err != nil {
		return true, a.invalid(fs, err)
	}
	if common.help {
		a.printUsage(a.stdout, fs)
		return true, exitOK
	}
	if fs.NArg() > 0 {
		return true, a.invalid(fs, fmt.Errorf("%w: unexpected argument %q", errUsage, fs.Arg(0)))
	}
	for _, r := range required {
		if *r.value == "" {
			return true, a.invalid(fs, fmt.Errorf("%w: missing required option --%s", errUsage, r.name))
		}
	}
	if common.level != "" && !logging.ValidLevel(common.level) {
		return true, a.invalid(fs, fmt.Errorf("%w: unknown logging level %q", errUsage, common.level))
	}
	return false, exitOK
}

func (a *app) invalid(fs *pflag.FlagSet, err error) int {
	fmt.Fprintf(a.stderr, "Invalid command line: %v\n\n", err)
	a.printUsage(a.stderr, fs)
	return exitInvalidArguments
}

func (a *app) printUsage(w io.Writer, fs *pflag.FlagSet) {
	fmt.Fprintf(w, "Usage: wsn-deviceutils %s [options]\n\nOptions:\n%s", fs.Name(), fs.FlagUsages())
}

// setup loads settings and builds the logger.
//
// defaultLevel applies unless the settings file, WSN_LOG_LEVEL or the
// command line choose a level. A settings file without logging.level keeps
// defaultLevel.
func (a *app) setup(common commonFlags, defaultLevel string) (*config.Config, *logging.Logger, error) {
	path := common.settings
	if path == "" {
		path = os.Getenv(settingsEnv)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}

	if !cfg.LevelSet() {
		cfg.Logging.Level = defaultLevel
	}
	if common.level != "" {
		cfg.Logging.Level = common.level
	}
	if common.verbose {
		cfg.Logging.Level = "debug"
	}

	out := a.stderr
	if cfg.Logging.Output == "stdout" {
		out = a.stdout
	}
	return cfg, logging.NewWithWriter(cfg.Logging, version, out), nil
}

// loadReferences loads the reference map, or returns nil when path is empty.
func loadReferences(path string, log *logging.Logger) (*reference.Map, int) {
	if path == "" {
		return nil, exitOK
	}

	refs, err := reference.Load(path)
	if err != nil {
		log.Error("loading reference file failed", "path", path, "error", err)
		return nil, reference.ExitCode(err)
	}

	log.Debug("reference file loaded", "path", path, "references", refs.Len())
	return refs, exitOK
}

// integrations are the optional outputs enabled in the settings file.
type integrations struct {
	mqtt    *mqtt.Client
	influx  *influxdb.Client
	metrics *metrics.Metrics
	qos     byte
}

// start connects the enabled integrations. The returned function closes them.
func (a *app) startIntegrations(ctx context.Context, cfg *config.Config, log *logging.Logger) (*integrations, func(), error) {
	in := &integrations{qos: byte(cfg.MQTT.QoS)} // #nosec G115 -- validated 0..2
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Metrics.Enabled {
		in.metrics = metrics.New()
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Listen, in.metrics, log); err != nil {
				log.Error("metrics endpoint stopped", "error", err)
			}
		}()
	}

	if cfg.MQTT.Enabled {
		client, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("connecting to MQTT: %w", err)
		}
		client.SetLogger(log)
		in.mqtt = client
		closers = append(closers, func() {
			if err := client.Close(); err != nil {
				log.Error("error closing MQTT", "error", err)
			}
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", client.ClientID(),
		)
	}

	if cfg.InfluxDB.Enabled {
		client, err := influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		client.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		in.influx = client
		closers = append(closers, func() {
			if err := client.Close(); err != nil {
				log.Error("error closing InfluxDB", "error", err)
			}
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	}

	return in, closeAll, nil
}
