package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/TTeubler/wsn-device-utils/internal/channel"
	"github.com/TTeubler/wsn-device-utils/internal/driver"
	"github.com/TTeubler/wsn-device-utils/internal/infrastructure/mqtt"
	"github.com/TTeubler/wsn-device-utils/internal/properties"
	"github.com/TTeubler/wsn-device-utils/internal/writer"
)

type listenFlags struct {
	common        commonFlags
	deviceType    string
	port          string
	configuration string
	format        string
	outfile       string
}

// runListen captures the frames of one device until interrupted or until
// the device stream ends.
func (a *app) runListen(ctx context.Context, args []string) int {
	var f listenFlags
	fs := pflag.NewFlagSet("listen", pflag.ContinueOnError)
	fs.StringVarP(&f.port, "port", "p", "", "Serial port to which the device is attached")
	fs.StringVarP(&f.deviceType, "type", "t", "", "Type of the device")
	fs.StringVarP(&f.configuration, "configuration", "c", "",
		"Optional: file name of a configuration file containing key value pairs to configure the device")
	fs.StringVarP(&f.format, "format", "f", "", "Optional: output format, options: "+formatList())
	fs.StringVarP(&f.outfile, "outfile", "o", "", "Optional: redirect output to file")
	f.common.register(fs)

	if done, code := a.parse(fs, &f.common, args,
		requiredFlag{"port", &f.port},
		requiredFlag{"type", &f.deviceType},
	); done {
		return code
	}

	format, err := writer.ParseFormat(f.format)
	if err != nil {
		return a.invalid(fs, err)
	}

	cfg, log, err := a.setup(f.common, "warn")
	if err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return exitInvalidArguments
	}

	var devCfg map[string]string
	if f.configuration != "" {
		devCfg, err = properties.LoadMap(f.configuration)
		if err != nil {
			log.Error("loading device configuration failed", "error", err)
			return exitInvalidArguments
		}
	}

	in, closeIntegrations, err := a.startIntegrations(ctx, cfg, log)
	if err != nil {
		log.Error("starting integrations failed", "error", err)
		return exitFailure
	}
	defer closeIntegrations()

	handle := driver.Handle{Type: f.deviceType, Port: f.port}
	dev := a.newDriver(cfg, nil, log)

	conn, err := dev.Connect(ctx, handle, devCfg)
	if err != nil {
		log.Error("connection to device could not be established", "device", handle.String(), "error", err)
		return exitFailure
	}

	out, err := a.listenOutput(format, f.outfile, handle, in)
	if err != nil {
		_ = conn.Close()
		log.Error("opening output failed", "error", err)
		return exitFailure
	}

	ch, err := channel.Open(conn, out, channel.Options{
		ReadBufferSize: cfg.Listener.ReadBufferSize,
		MaxFrameSize:   cfg.Listener.MaxFrameSize,
		ShutdownGrace:  cfg.Listener.ShutdownGrace,
		Logger:         log.With("component", "channel", "device", handle.String()),
		Metrics:        in.metrics,
	})
	if err != nil {
		_ = conn.Close()
		_ = out.Shutdown()
		log.Error("connection to device could not be established", "device", handle.String(), "error", err)
		return exitFailure
	}
	log.Info("listening", "device", handle.String(), "format", string(format))

	if in.mqtt != nil {
		topic := mqtt.Topics{}.Command(mqtt.DeviceKey(handle.Port))
		err := in.mqtt.Subscribe(topic, in.qos, func(_ string, payload []byte) error {
			return ch.Send(payload)
		})
		if err != nil {
			log.Warn("subscribing to device commands failed", "topic", topic, "error", err)
		}
	}

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case <-ch.Done():
	}

	if err := ch.Close(); err != nil {
		log.Warn("closing capture", "error", err)
	}
	if err := ch.Err(); err != nil {
		log.Error("capture ended", "error", err)
		return exitFailure
	}
	return exitOK
}

// listenOutput builds the writer for the chosen format plus the sinks
// enabled in the settings.
func (a *app) listenOutput(format writer.Format, outfile string, h driver.Handle, in *integrations) (writer.Writer, error) {
	var dst io.WriteCloser = writer.NopCloser(a.stdout)
	if outfile != "" {
		file, err := os.Create(outfile)
		if err != nil {
			return nil, fmt.Errorf("creating output file: %w", err)
		}
		dst = file
	}

	opts := writer.Options{DeviceType: h.Type, Port: h.Port}
	primary, err := writer.New(format, dst, opts)
	if err != nil {
		_ = dst.Close()
		return nil, err
	}

	sinks := []writer.Writer{writer.Instrument(string(format), primary, in.metrics)}
	if in.mqtt != nil {
		topic := mqtt.Topics{}.Frames(mqtt.DeviceKey(h.Port))
		sinks = append(sinks, writer.Instrument("mqtt", writer.NewMQTTForwarder(in.mqtt, topic, in.qos, opts), in.metrics))
	}
	if in.influx != nil {
		sinks = append(sinks, writer.Instrument("influxdb", writer.NewInfluxRecorder(in.influx, opts), in.metrics))
	}

	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return writer.NewMulti(sinks...), nil
}

func formatList() string {
	names := make([]string, len(writer.Formats))
	for i, f := range writer.Formats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}
