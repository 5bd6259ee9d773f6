package main

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/TTeubler/wsn-device-utils/internal/driver"
	"github.com/TTeubler/wsn-device-utils/internal/identity"
	"github.com/TTeubler/wsn-device-utils/internal/mac"
	"github.com/TTeubler/wsn-device-utils/internal/observer"
	"github.com/TTeubler/wsn-device-utils/internal/properties"
)

type macReaderFlags struct {
	common        commonFlags
	deviceType    string
	port          string
	configuration string
	references    string
	use64Bit      bool
}

// runMACReader prints the MAC address of one device.
func (a *app) runMACReader(ctx context.Context, args []string) int {
	var f macReaderFlags
	fs := pflag.NewFlagSet("macreader", pflag.ContinueOnError)
	fs.StringVarP(&f.port, "port", "p", "", "Serial port to which the device is attached")
	fs.StringVarP(&f.deviceType, "type", "t", "", "Type of the device")
	fs.StringVarP(&f.configuration, "configuration", "c", "",
		"Optional: file name of a configuration file containing key value pairs to configure the device")
	fs.StringVarP(&f.references, "referencetomacmap", "r", "",
		"Optional: a properties file containing device references to MAC address mappings")
	fs.BoolVarP(&f.use64Bit, "use64BitMode", "x", false, "Optional: print 64 bit MAC addresses (default 48 bit)")
	f.common.register(fs)

	if done, code := a.parse(fs, &f.common, args,
		requiredFlag{"port", &f.port},
		requiredFlag{"type", &f.deviceType},
	); done {
		return code
	}

	cfg, log, err := a.setup(f.common, "warn")
	if err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return exitInvalidArguments
	}

	refs, code := loadReferences(f.references, log)
	if code != exitOK {
		return code
	}

	var devCfg map[string]string
	if f.configuration != "" {
		devCfg, err = properties.LoadMap(f.configuration)
		if err != nil {
			log.Error("loading device configuration failed", "error", err)
			return exitInvalidArguments
		}
	}

	dev := a.newDriver(cfg, refs, log)
	handle := driver.Handle{Type: f.deviceType, Port: f.port}
	resolverLog := log.With("component", "identity")

	// Devices whose MAC is assigned by reference need their reference first;
	// one observer cycle finds the reference of the device at this port.
	var hint string
	if refs != nil {
		scan := identity.NewResolver(dev, refs, identity.Options{
			Timeout:     cfg.Observer.ResolveTimeout,
			Concurrency: cfg.Observer.ResolveConcurrency,
		})
		scan.SetLogger(resolverLog)
		for _, ev := range observer.New(dev, scan).Events(ctx) {
			if ev.Kind == observer.Connected && ev.Info.Handle.Port == f.port {
				hint = ev.Info.Reference
			}
		}
	}

	resolver := identity.NewResolver(dev, refs, identity.Options{
		Config:  devCfg,
		Timeout: cfg.Observer.ResolveTimeout,
	})
	resolver.SetLogger(resolverLog)

	info, err := resolver.Resolve(ctx, handle, hint)
	if err != nil {
		log.Error("reading MAC address failed", "device", handle.String(), "error", err)
		return exitFailure
	}
	if !info.HasMAC {
		log.Info("MAC address could not be read", "device", handle.String())
		return exitFailure
	}

	mode := mac.Mode48
	if f.use64Bit {
		mode = mac.Mode64
	}
	if !info.MAC.Fits(mode) {
		log.Warn("MAC address wider than the selected mode", "mac", info.MAC.String(), "bits", int(mode))
	}

	log.Info("read MAC address", "device", handle.String(), "mac", info.MAC.Hex(mode))
	fmt.Fprintln(a.stdout, info.MAC.Hex(mode))
	return exitOK
}
