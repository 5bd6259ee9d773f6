package writer

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Errors returned by writers.
var (
	// ErrClosed is returned by Write after Shutdown.
	ErrClosed = errors.New("writer: closed")

	// ErrUnknownFormat is returned for an unsupported output format name.
	ErrUnknownFormat = errors.New("writer: unknown output format")

	// ErrShutdownTimeout is returned when a shutdown outlived its grace period.
	ErrShutdownTimeout = errors.New("writer: shutdown timed out")
)

// Writer consumes frames.
type Writer interface {
	// Write records one frame received at ts.
	Write(data []byte, ts time.Time) error

	// Shutdown flushes and releases the destination.
	Shutdown() error
}

// Format names an output format.
type Format string

// Supported formats.
const (
	FormatHuman  Format = "human"
	FormatCSV    Format = "csv"
	FormatWiseML Format = "wiseml"
	FormatCBOR   Format = "cbor"
)

// Formats lists the accepted --format values.
var Formats = []Format{FormatCSV, FormatWiseML, FormatCBOR}

// ParseFormat maps a --format value to a Format. The empty string selects
// the human-readable format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatHuman, nil
	case FormatHuman, FormatCSV, FormatWiseML, FormatCBOR:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Options carries what a format needs to know about the captured device.
type Options struct {
	// DeviceType is the type of the captured device.
	DeviceType string

	// Port is the port of the captured device.
	Port string
}

// NodeID is the WiseML node id of the device at Port.
func (o Options) NodeID() string {
	return "node at " + o.Port
}

// New creates a Writer for format writing to dst. The Writer owns dst and
// closes it on Shutdown.
func New(format Format, dst io.WriteCloser, opts Options) (Writer, error) {
	switch format {
	case FormatHuman, "":
		return NewHuman(dst), nil
	case FormatCSV:
		return NewCSV(dst), nil
	case FormatWiseML:
		return NewWiseML(dst, opts.NodeID())
	case FormatCBOR:
		return NewCBOR(dst, opts), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, string(format))
	}
}

// NopCloser wraps w so that Shutdown does not close it (for standard output).
func NopCloser(w io.Writer) io.WriteCloser {
	return nopCloser{w}
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// dest is the shared destination handling of the format writers.
type dest struct {
	mu     sync.Mutex
	dst    io.WriteCloser
	closed bool
}

// do runs fn under the lock unless the writer is closed.
func (d *dest) do(fn func() error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	return fn()
}

// shutdown runs trailer once, then closes the destination.
func (d *dest) shutdown(trailer func() error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true

	var errs []error
	if trailer != nil {
		if err := trailer(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := d.dst.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing output: %w", err))
	}
	return errors.Join(errs...)
}

func formatTime(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339Nano)
}
