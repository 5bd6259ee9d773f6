package writer

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/TTeubler/wsn-device-utils/internal/infrastructure/metrics"
)

// Publisher is the part of the MQTT client used by MQTTForwarder.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

type framePayload struct {
	Timestamp string `json:"timestamp"`
	Type      string `json:"type,omitempty"`
	Port      string `json:"port,omitempty"`
	Data      string `json:"data"`
}

// MQTTForwarder publishes every frame as a JSON message.
type MQTTForwarder struct {
	mu     sync.Mutex
	pub    Publisher
	topic  string
	qos    byte
	opts   Options
	closed bool
}

// NewMQTTForwarder creates a forwarder publishing to topic.
func NewMQTTForwarder(pub Publisher, topic string, qos byte, opts Options) *MQTTForwarder {
	return &MQTTForwarder{pub: pub, topic: topic, qos: qos, opts: opts}
}

// Write publishes one frame.
func (f *MQTTForwarder) Write(data []byte, ts time.Time) error {
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed {
		return ErrClosed
	}

	payload, err := json.Marshal(framePayload{
		Timestamp: formatTime(ts),
		Type:      f.opts.DeviceType,
		Port:      f.opts.Port,
		Data:      strings.ToUpper(hex.EncodeToString(data)),
	})
	if err != nil {
		return fmt.Errorf("encoding frame: %w", err)
	}
	return f.pub.Publish(f.topic, payload, f.qos, false)
}

// Shutdown stops forwarding. The MQTT client is closed by its owner.
func (f *MQTTForwarder) Shutdown() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// FramePointWriter is the part of the InfluxDB client used by InfluxRecorder.
type FramePointWriter interface {
	WriteFrame(deviceType, port string, frame []byte, ts time.Time)
	Flush()
}

// InfluxRecorder records every frame as an InfluxDB point.
type InfluxRecorder struct {
	w    FramePointWriter
	opts Options
	once sync.Once
}

// NewInfluxRecorder creates a recorder writing through w.
func NewInfluxRecorder(w FramePointWriter, opts Options) *InfluxRecorder {
	return &InfluxRecorder{w: w, opts: opts}
}

// Write queues one point. Delivery errors surface through the client's
// error callback.
func (r *InfluxRecorder) Write(data []byte, ts time.Time) error {
	r.w.WriteFrame(r.opts.DeviceType, r.opts.Port, data, ts)
	return nil
}

// Shutdown flushes pending points.
func (r *InfluxRecorder) Shutdown() error {
	r.once.Do(r.w.Flush)
	return nil
}

// Multi writes every frame to all writers in order.
type Multi struct {
	writers []Writer
}

// NewMulti returns a writer fanning out to writers.
func NewMulti(writers ...Writer) *Multi {
	return &Multi{writers: writers}
}

// Write hands data to every writer. A failing writer does not keep the
// others from receiving the frame; all errors are returned joined.
func (m *Multi) Write(data []byte, ts time.Time) error {
	var errs []error
	for _, w := range m.writers {
		if err := w.Write(data, ts); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Shutdown shuts down every writer.
func (m *Multi) Shutdown() error {
	var errs []error
	for _, w := range m.writers {
		if err := w.Shutdown(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// instrumented counts frames and failures of a writer.
type instrumented struct {
	Writer
	name    string
	metrics *metrics.Metrics
}

// Instrument wraps w so that its writes are counted under name.
// A nil m returns w unchanged.
func Instrument(name string, w Writer, m *metrics.Metrics) Writer {
	if m == nil {
		return w
	}
	return &instrumented{Writer: w, name: name, metrics: m}
}

func (i *instrumented) Write(data []byte, ts time.Time) error {
	if err := i.Writer.Write(data, ts); err != nil {
		i.metrics.WriteFailed(i.name)
		return err
	}
	i.metrics.FrameWritten(i.name)
	return nil
}

// Logger is the logging interface used by ShutdownWithin.
type Logger interface {
	Warn(msg string, args ...any)
}

// ShutdownWithin shuts w down, giving up after grace.
//
// A shutdown that times out keeps running in the background; data it had
// not flushed may be lost. Errors are logged and returned.
func ShutdownWithin(w Writer, grace time.Duration, logger Logger) error {
	done := make(chan error, 1)
	go func() {
		done <- w.Shutdown()
	}()

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			logger.Warn("output shutdown failed", "error", err)
		}
		return err
	case <-timer.C:
		logger.Warn("output shutdown timed out, unflushed data may be lost", "grace", grace)
		return fmt.Errorf("%w after %v", ErrShutdownTimeout, grace)
	}
}
