// Package drivertest provides an in-memory driver for tests.
package drivertest

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/TTeubler/wsn-device-utils/internal/driver"
	"github.com/TTeubler/wsn-device-utils/internal/mac"
)

// Step is one scripted enumeration result.
type Step struct {
	Handles []driver.Handle
	Err     error
}

// Fake implements driver.Enumerator, driver.Connector and driver.MACReader.
//
// ListDevices walks through the scripted steps and keeps returning the last
// one once the script is exhausted.
type Fake struct {
	mu       sync.Mutex
	steps    []Step
	next     int
	macs     map[driver.Handle]mac.Address
	macErrs  map[driver.Handle]error
	reads    map[driver.Handle]int
	refs     map[driver.Handle]string
	conns    map[driver.Handle]driver.Conn
	inFlight atomic.Int32
	maxSeen  atomic.Int32

	// ReadDelay is slept (or until ctx is done) inside every ReadMAC.
	ReadDelay time.Duration
}

var (
	_ driver.Enumerator = (*Fake)(nil)
	_ driver.Connector  = (*Fake)(nil)
	_ driver.MACReader  = (*Fake)(nil)
)

// New returns an empty Fake.
func New() *Fake {
	return &Fake{
		macs:    make(map[driver.Handle]mac.Address),
		macErrs: make(map[driver.Handle]error),
		reads:   make(map[driver.Handle]int),
		refs:    make(map[driver.Handle]string),
		conns:   make(map[driver.Handle]driver.Conn),
	}
}

// Script appends enumeration steps.
func (f *Fake) Script(steps ...Step) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps = append(f.steps, steps...)
	return f
}

// Attach is shorthand for a successful step listing handles.
func (f *Fake) Attach(handles ...driver.Handle) *Fake {
	return f.Script(Step{Handles: handles})
}

// SetMAC sets the MAC reported for h.
func (f *Fake) SetMAC(h driver.Handle, addr mac.Address) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.macs[h] = addr
	return f
}

// SetMACError makes ReadMAC fail for h.
func (f *Fake) SetMACError(h driver.Handle, err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.macErrs[h] = err
	return f
}

// SetConn sets the stream returned by Connect for h.
func (f *Fake) SetConn(h driver.Handle, c driver.Conn) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conns[h] = c
	return f
}

// ListDevices returns the next scripted step.
func (f *Fake) ListDevices(ctx context.Context) ([]driver.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.steps) == 0 {
		return nil, nil
	}
	step := f.steps[f.next]
	if f.next < len(f.steps)-1 {
		f.next++
	}
	if step.Err != nil {
		return nil, fmt.Errorf("%w: %w", driver.ErrEnumeration, step.Err)
	}

	out := make([]driver.Handle, len(step.Handles))
	copy(out, step.Handles)
	return out, nil
}

// Connect returns the stream registered with SetConn.
func (f *Fake) Connect(ctx context.Context, h driver.Handle, _ map[string]string) (driver.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", driver.ErrConnection, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.conns[h]
	if !ok {
		return nil, fmt.Errorf("%w: %s not attached", driver.ErrConnection, h)
	}
	return c, nil
}

// ReadMAC returns the MAC registered with SetMAC and counts the read.
func (f *Fake) ReadMAC(ctx context.Context, h driver.Handle, _ map[string]string, ref string) (mac.Address, bool, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	f.mu.Lock()
	f.reads[h]++
	f.refs[h] = ref
	addr, ok := f.macs[h]
	err := f.macErrs[h]
	delay := f.ReadDelay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return mac.Address{}, false, ctx.Err()
		}
	}

	if err != nil {
		return mac.Address{}, false, err
	}
	return addr, ok, nil
}

// Reads returns how many times ReadMAC was called for h.
func (f *Fake) Reads(h driver.Handle) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads[h]
}

// LastReference returns the reference hint of the last ReadMAC call for h.
func (f *Fake) LastReference(h driver.Handle) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refs[h]
}

// MaxConcurrentReads returns the highest number of overlapping ReadMAC calls.
func (f *Fake) MaxConcurrentReads() int {
	return int(f.maxSeen.Load())
}

// Conn is an in-memory driver.Conn. Bytes written with Feed are returned by Read.
type Conn struct {
	r *io.PipeReader
	w *io.PipeWriter

	mu      sync.Mutex
	written []byte
	closed  atomic.Bool
	down    atomic.Bool
}

// NewConn returns a connected in-memory stream.
func NewConn() *Conn {
	r, w := io.Pipe()
	return &Conn{r: r, w: w}
}

// Feed makes chunk available to Read. It blocks until the chunk is consumed.
func (c *Conn) Feed(chunk []byte) error {
	_, err := c.w.Write(chunk)
	return err
}

// EndOfStream makes subsequent reads return io.EOF.
func (c *Conn) EndOfStream() {
	_ = c.w.Close()
}

// Disconnect makes IsConnected report false.
func (c *Conn) Disconnect() {
	c.down.Store(true)
}

// Written returns everything written to the device.
func (c *Conn) Written() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]byte, len(c.written))
	copy(out, c.written)
	return out
}

// Closed reports whether Close was called.
func (c *Conn) Closed() bool {
	return c.closed.Load()
}

func (c *Conn) Read(p []byte) (int, error) {
	return c.r.Read(p)
}

func (c *Conn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, p...)
	return len(p), nil
}

func (c *Conn) Close() error {
	c.closed.Store(true)
	_ = c.w.Close()
	return c.r.Close()
}

func (c *Conn) IsConnected() bool {
	return !c.closed.Load() && !c.down.Load()
}
