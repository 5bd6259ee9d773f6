package main

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/TTeubler/wsn-device-utils/internal/identity"
	"github.com/TTeubler/wsn-device-utils/internal/mac"
	"github.com/TTeubler/wsn-device-utils/internal/observer"
)

type observeFlags struct {
	common     commonFlags
	references string
}

// runObserve prints device events until interrupted.
func (a *app) runObserve(ctx context.Context, args []string) int {
	var f observeFlags
	fs := pflag.NewFlagSet("observe", pflag.ContinueOnError)
	fs.StringVarP(&f.references, "referencetomacmap", "r", "",
		"Optional: a properties file containing device references to MAC address mappings")
	f.common.register(fs)

	if done, code := a.parse(fs, &f.common, args); done {
		return code
	}

	cfg, log, err := a.setup(f.common, "info")
	if err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return exitInvalidArguments
	}

	refs, code := loadReferences(f.references, log)
	if code != exitOK {
		return code
	}

	in, closeIntegrations, err := a.startIntegrations(ctx, cfg, log)
	if err != nil {
		log.Error("starting integrations failed", "error", err)
		return exitFailure
	}
	defer closeIntegrations()

	dev := a.newDriver(cfg, refs, log)

	resolver := identity.NewResolver(dev, refs, identity.Options{
		Timeout:     cfg.Observer.ResolveTimeout,
		Concurrency: cfg.Observer.ResolveConcurrency,
	})
	resolver.SetLogger(log.With("component", "identity"))
	resolver.SetMetrics(in.metrics)

	obs := observer.New(dev, resolver)
	obs.SetLogger(log.With("component", "observer"))
	obs.SetMetrics(in.metrics)

	obs.AddListener(observer.NewPrintListener(a.stdout, mac.Mode64))
	if in.mqtt != nil {
		obs.AddListener(observer.NewMQTTListener(in.mqtt, in.qos))
	}
	if in.influx != nil {
		obs.AddListener(observer.NewInfluxListener(in.influx))
	}

	if err := obs.Run(ctx, cfg.Observer.PollInterval); err != nil {
		log.Error("device observer failed", "error", err)
		return exitFailure
	}
	return exitOK
}
