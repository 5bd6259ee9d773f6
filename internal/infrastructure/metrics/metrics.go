package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wsn"

// Metrics holds all collectors and the registry they are registered with.
type Metrics struct {
	registry *prometheus.Registry

	pollCycles   prometheus.Counter
	pollFailures prometheus.Counter
	deviceEvents *prometheus.CounterVec
	macReads     *prometheus.CounterVec
	attached     prometheus.Gauge

	framesDecoded   prometheus.Counter
	framesDiscarded prometheus.Counter
	framesWritten   *prometheus.CounterVec
	writeErrors     *prometheus.CounterVec
}

// New creates the collectors on a private registry, including Go runtime
// and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		pollCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "observer",
			Name:      "poll_cycles_total",
			Help:      "Completed device presence poll cycles.",
		}),
		pollFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "observer",
			Name:      "enumeration_failures_total",
			Help:      "Poll cycles whose device enumeration failed.",
		}),
		deviceEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "observer",
			Name:      "device_events_total",
			Help:      "Device events emitted, by kind.",
		}, []string{"kind"}),
		macReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "observer",
			Name:      "mac_reads_total",
			Help:      "MAC read attempts, by result (resolved, unknown, no_mac, failed).",
		}, []string{"result"}),
		attached: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "observer",
			Name:      "attached_devices",
			Help:      "Devices present at the last successful poll.",
		}),
		framesDecoded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "listener",
			Name:      "frames_decoded_total",
			Help:      "Frames decoded from the device byte stream.",
		}),
		framesDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "listener",
			Name:      "frames_discarded_total",
			Help:      "Partial or oversized frames discarded by the decoder.",
		}),
		framesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "listener",
			Name:      "frames_written_total",
			Help:      "Frames handed to an output writer, by writer.",
		}, []string{"writer"}),
		writeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "listener",
			Name:      "write_errors_total",
			Help:      "Output writer failures, by writer.",
		}, []string{"writer"}),
	}

	m.registry.MustRegister(
		m.pollCycles,
		m.pollFailures,
		m.deviceEvents,
		m.macReads,
		m.attached,
		m.framesDecoded,
		m.framesDiscarded,
		m.framesWritten,
		m.writeErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the HTTP exposition handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// PollCycle records a completed poll cycle with the number of attached devices.
func (m *Metrics) PollCycle(attached int) {
	if m == nil {
		return
	}
	m.pollCycles.Inc()
	m.attached.Set(float64(attached))
}

// EnumerationFailed records a failed poll cycle.
func (m *Metrics) EnumerationFailed() {
	if m == nil {
		return
	}
	m.pollFailures.Inc()
}

// DeviceEvent records an emitted device event.
func (m *Metrics) DeviceEvent(kind string) {
	if m == nil {
		return
	}
	m.deviceEvents.WithLabelValues(kind).Inc()
}

// MACRead records a MAC read attempt result.
func (m *Metrics) MACRead(result string) {
	if m == nil {
		return
	}
	m.macReads.WithLabelValues(result).Inc()
}

// FrameDecoded records a decoded frame.
func (m *Metrics) FrameDecoded() {
	if m == nil {
		return
	}
	m.framesDecoded.Inc()
}

// FramesDiscarded records frames dropped by the decoder.
func (m *Metrics) FramesDiscarded(n uint64) {
	if m == nil || n == 0 {
		return
	}
	m.framesDiscarded.Add(float64(n))
}

// FrameWritten records a frame accepted by writer.
func (m *Metrics) FrameWritten(writer string) {
	if m == nil {
		return
	}
	m.framesWritten.WithLabelValues(writer).Inc()
}

// WriteFailed records a writer failure.
func (m *Metrics) WriteFailed(writer string) {
	if m == nil {
		return
	}
	m.writeErrors.WithLabelValues(writer).Inc()
}

// Logger is the logging interface used by Serve.
type Logger interface {
	Info(msg string, args ...any)
}

// Serve exposes /metrics on addr until ctx is cancelled. A listener failure
// is returned for the caller to report.
func Serve(ctx context.Context, addr string, m *Metrics, logger Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics endpoint listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
