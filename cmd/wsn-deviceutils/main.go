// wsn-deviceutils - tools for sensor network devices on serial ports.
//
// Subcommands:
//
//	listen     capture the frames sent by one device
//	macreader  print the MAC address of one device
//	observe    print an event whenever a device is attached or detached
//
// Run "wsn-deviceutils <subcommand> --help" for the options of a subcommand.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// run dispatches to a subcommand and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return newApp(stdout, stderr).run(ctx, args)
}

func (a *app) run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		a.usage(a.stderr)
		return exitInvalidArguments
	}

	switch args[0] {
	case "listen":
		return a.runListen(ctx, args[1:])
	case "macreader":
		return a.runMACReader(ctx, args[1:])
	case "observe":
		return a.runObserve(ctx, args[1:])
	case "version", "--version":
		fmt.Fprintf(a.stdout, "wsn-deviceutils %s (commit %s, built %s)\n", version, commit, date)
		return exitOK
	case "help", "-h", "--help":
		a.usage(a.stdout)
		return exitOK
	default:
		fmt.Fprintf(a.stderr, "unknown subcommand %q\n\n", args[0])
		a.usage(a.stderr)
		return exitInvalidArguments
	}
}

func (a *app) usage(w io.Writer) {
	fmt.Fprint(w, `Usage: wsn-deviceutils <subcommand> [options]

Subcommands:
  listen     capture the frames sent by one device
  macreader  print the MAC address of one device
  observe    print an event whenever a device is attached or detached
  version    print version information

Run "wsn-deviceutils <subcommand> --help" for the options of a subcommand.
`)
}
