package channel

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/TTeubler/wsn-device-utils/internal/driver"
	"github.com/TTeubler/wsn-device-utils/internal/framing"
	"github.com/TTeubler/wsn-device-utils/internal/infrastructure/metrics"
	"github.com/TTeubler/wsn-device-utils/internal/writer"
)

// Defaults applied to zero Options fields.
const (
	DefaultReadBufferSize = 1024
	DefaultShutdownGrace  = 5 * time.Second
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("channel: closed")

// Logger defines the logging interface used by the channel.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Channel.
type Options struct {
	// ReadBufferSize is the size of a single read from the device.
	ReadBufferSize int

	// MaxFrameSize is the largest frame accepted by the decoder.
	MaxFrameSize int

	// ShutdownGrace bounds the writer shutdown in Close.
	ShutdownGrace time.Duration

	Logger  Logger
	Metrics *metrics.Metrics

	// Now stamps received frames. Defaults to time.Now.
	Now func() time.Time
}

// Channel is an open capture of one device.
type Channel struct {
	conn driver.Conn
	out  writer.Writer
	dec  *framing.Decoder
	opts Options

	writeMu sync.Mutex

	closing   atomic.Bool
	closeOnce sync.Once
	closeErr  error

	done    chan struct{}
	readErr error
}

// Open starts capturing conn into out.
//
// Returns:
//   - *Channel: the running channel
//   - error: driver.ErrConnection if conn reports not connected
func Open(conn driver.Conn, out writer.Writer, opts Options) (*Channel, error) {
	if !conn.IsConnected() {
		return nil, fmt.Errorf("%w: device reports not connected", driver.ErrConnection)
	}

	if opts.ReadBufferSize <= 0 {
		opts.ReadBufferSize = DefaultReadBufferSize
	}
	if opts.ShutdownGrace <= 0 {
		opts.ShutdownGrace = DefaultShutdownGrace
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := &Channel{
		conn: conn,
		out:  out,
		dec:  framing.NewDecoder(opts.MaxFrameSize),
		opts: opts,
		done: make(chan struct{}),
	}

	go c.readLoop()

	return c, nil
}

func (c *Channel) readLoop() {
	defer close(c.done)

	buf := make([]byte, c.opts.ReadBufferSize)
	var dropped uint64

	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			c.deliver(c.dec.Feed(buf[:n]))

			if d := c.dec.Dropped(); d > dropped {
				c.opts.Metrics.FramesDiscarded(d - dropped)
				c.opts.Logger.Debug("discarded malformed frames", "count", d-dropped)
				dropped = d
			}
		}

		if err == nil {
			continue
		}
		if c.closing.Load() {
			return
		}
		if errors.Is(err, io.EOF) {
			c.opts.Logger.Info("device stream ended")
			return
		}
		c.readErr = fmt.Errorf("reading from device: %w", err)
		c.opts.Logger.Error("device read failed", "error", err)
		return
	}
}

// deliver hands frames to the writer in order. Writer failures are logged
// and do not stop the capture.
func (c *Channel) deliver(frames [][]byte) {
	for _, frame := range frames {
		c.opts.Metrics.FrameDecoded()
		if err := c.out.Write(frame, c.opts.Now()); err != nil {
			c.opts.Logger.Warn("writing frame failed", "size", len(frame), "error", err)
		}
	}
}

// Send encodes frame and writes it to the device.
func (c *Channel) Send(frame []byte) error {
	if c.closing.Load() {
		return ErrClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, err := c.conn.Write(framing.Encode(frame)); err != nil {
		return fmt.Errorf("writing to device: %w", err)
	}
	return nil
}

// Done is closed when the read loop has ended, either because the device
// stream ended or failed or because Close was called.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Err returns the read error that ended the loop. It is nil while running,
// after a clean end of stream and after Close.
func (c *Channel) Err() error {
	select {
	case <-c.done:
		return c.readErr
	default:
		return nil
	}
}

// Close stops reading and shuts the writer down.
//
// The writer gets ShutdownGrace to flush; if it takes longer the shutdown is
// abandoned and ErrShutdownTimeout returned. Later calls return the result
// of the first.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		c.closing.Store(true)

		var errs []error
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing device: %w", err))
		}

		select {
		case <-c.done:
			if c.dec.Pending() {
				c.opts.Logger.Warn("discarding partially received frame")
			}
		case <-time.After(c.opts.ShutdownGrace):
			c.opts.Logger.Warn("read loop did not stop within grace period", "grace", c.opts.ShutdownGrace)
		}

		if err := writer.ShutdownWithin(c.out, c.opts.ShutdownGrace, c.opts.Logger); err != nil {
			errs = append(errs, err)
		}

		c.closeErr = errors.Join(errs...)
	})
	return c.closeErr
}
