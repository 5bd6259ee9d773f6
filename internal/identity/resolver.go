package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/TTeubler/wsn-device-utils/internal/driver"
	"github.com/TTeubler/wsn-device-utils/internal/infrastructure/metrics"
	"github.com/TTeubler/wsn-device-utils/internal/mac"
	"github.com/TTeubler/wsn-device-utils/internal/reference"
)

// Defaults applied when a Resolver is built with zero values.
const (
	DefaultTimeout     = 5 * time.Second
	DefaultConcurrency = 4
)

// MAC read results reported to metrics.
const (
	resultResolved = "resolved"
	resultUnknown  = "unknown"
	resultNoMAC    = "no_mac"
	resultFailed   = "failed"
)

// DeviceInfo is a device handle with whatever identity could be resolved.
// Reference is only set when HasMAC is true and the MAC is in the reference map.
type DeviceInfo struct {
	Handle    driver.Handle
	MAC       mac.Address
	HasMAC    bool
	Reference string
}

// HasReference reports whether the device resolved to a reference.
func (d DeviceInfo) HasReference() bool {
	return d.Reference != ""
}

func (d DeviceInfo) String() string {
	s := d.Handle.String()
	if d.HasMAC {
		s += " mac=" + d.MAC.String()
	}
	if d.HasReference() {
		s += " reference=" + d.Reference
	}
	return s
}

// Logger defines the logging interface used by the resolver.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Options configures a Resolver.
type Options struct {
	// Config is the device configuration passed opaquely to the driver.
	Config map[string]string

	// Timeout bounds a single MAC read. Zero means DefaultTimeout.
	Timeout time.Duration

	// Concurrency limits parallel reads in ResolveAll. Zero means DefaultConcurrency.
	Concurrency int
}

// Resolver turns device handles into DeviceInfo.
//
// Thread Safety:
//   - Resolve and ResolveAll are safe for concurrent use.
//   - SetLogger and SetMetrics must be called before first use.
type Resolver struct {
	reader      driver.MACReader
	refs        *reference.Map
	config      map[string]string
	timeout     time.Duration
	concurrency int

	logger  Logger
	metrics *metrics.Metrics
}

// NewResolver creates a Resolver. refs may be nil (no references resolve).
func NewResolver(reader driver.MACReader, refs *reference.Map, opts Options) *Resolver {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}

	return &Resolver{
		reader:      reader,
		refs:        refs,
		config:      opts.Config,
		timeout:     opts.Timeout,
		concurrency: opts.Concurrency,
		logger:      noopLogger{},
	}
}

// SetLogger sets the logger.
func (r *Resolver) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	r.logger = logger
}

// SetMetrics sets the metrics sink. nil disables metrics.
func (r *Resolver) SetMetrics(m *metrics.Metrics) {
	r.metrics = m
}

// Resolve reads the MAC of h once and looks it up in the reference map.
//
// hint is the reference already known for the device, if any; some device
// types derive their MAC from it.
//
// Returns:
//   - DeviceInfo: always carries the handle, even on error
//   - error: the MAC read failure (wrapped), or nil
func (r *Resolver) Resolve(ctx context.Context, h driver.Handle, hint string) (DeviceInfo, error) {
	info := DeviceInfo{Handle: h}

	readCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	addr, ok, err := r.read(readCtx, h, hint)
	if err != nil {
		r.metrics.MACRead(resultFailed)
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("reading MAC of %s: timed out after %v: %w", h, r.timeout, err)
		} else {
			err = fmt.Errorf("reading MAC of %s: %w", h, err)
		}
		r.logger.Warn("MAC read failed", "device", h.String(), "error", err)
		return info, err
	}
	if !ok {
		r.metrics.MACRead(resultNoMAC)
		r.logger.Debug("device reported no MAC", "device", h.String())
		return info, nil
	}

	info.MAC = addr
	info.HasMAC = true

	ref, found := r.refs.Reference(addr)
	if !found {
		r.metrics.MACRead(resultUnknown)
		r.logger.Debug("MAC not in reference map", "device", h.String(), "mac", addr.String())
		return info, nil
	}

	r.metrics.MACRead(resultResolved)
	info.Reference = ref
	return info, nil
}

type readResult struct {
	addr mac.Address
	ok   bool
	err  error
}

// read calls the driver on its own goroutine so that ctx bounds the read
// even when the driver ignores ctx. An abandoned read finishes in the
// background and its result is discarded.
func (r *Resolver) read(ctx context.Context, h driver.Handle, hint string) (mac.Address, bool, error) {
	done := make(chan readResult, 1)
	go func() {
		addr, ok, err := r.reader.ReadMAC(ctx, h, r.config, hint)
		done <- readResult{addr: addr, ok: ok, err: err}
	}()

	select {
	case res := <-done:
		return res.addr, res.ok, res.err
	case <-ctx.Done():
		return mac.Address{}, false, ctx.Err()
	}
}

// ResolveAll resolves every handle with bounded concurrency.
//
// The result has one DeviceInfo per handle, in input order. Individual
// failures are logged and leave the entry with only its handle; they never
// abort the other reads.
func (r *Resolver) ResolveAll(ctx context.Context, handles []driver.Handle) []DeviceInfo {
	out := make([]DeviceInfo, len(handles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i, h := range handles {
		g.Go(func() error {
			info, _ := r.Resolve(gctx, h, "") //nolint:errcheck // logged inside Resolve
			out[i] = info
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // goroutines never return errors
	return out
}
