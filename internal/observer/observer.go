package observer

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/TTeubler/wsn-device-utils/internal/driver"
	"github.com/TTeubler/wsn-device-utils/internal/identity"
	"github.com/TTeubler/wsn-device-utils/internal/infrastructure/metrics"
)

// DefaultPollInterval is used when Run is given a non-positive period.
const DefaultPollInterval = time.Second

// Listener receives device events.
type Listener interface {
	OnEvent(Event) error
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(Event) error

// OnEvent calls f(ev).
func (f ListenerFunc) OnEvent(ev Event) error {
	return f(ev)
}

// Logger defines the logging interface used by the observer.
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

// Observer polls an Enumerator and reports attach/detach events.
//
// Thread Safety:
//   - Poll, Events, Run and Snapshot are safe for concurrent use; cycles are serialised.
//   - AddListener may be called at any time; a listener added during a cycle
//     receives events from the next cycle on.
type Observer struct {
	enumerator driver.Enumerator
	resolver   *identity.Resolver

	// cycleMu serialises poll cycles.
	cycleMu sync.Mutex

	// snapshot is replaced, never mutated, by a cycle.
	snapshot   []identity.DeviceInfo
	snapshotMu sync.RWMutex

	listeners   []Listener
	listenersMu sync.RWMutex

	now     func() time.Time
	logger  Logger
	metrics *metrics.Metrics
}

// New creates an Observer with an empty snapshot.
func New(enumerator driver.Enumerator, resolver *identity.Resolver) *Observer {
	return &Observer{
		enumerator: enumerator,
		resolver:   resolver,
		now:        time.Now,
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger.
func (o *Observer) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	o.logger = logger
}

// SetMetrics sets the metrics sink. nil disables metrics.
func (o *Observer) SetMetrics(m *metrics.Metrics) {
	o.metrics = m
}

// AddListener registers l. Listeners are notified in registration order.
func (o *Observer) AddListener(l Listener) {
	o.listenersMu.Lock()
	defer o.listenersMu.Unlock()
	o.listeners = append(o.listeners, l)
}

// Snapshot returns a copy of the devices present at the last successful
// cycle, ordered by port.
func (o *Observer) Snapshot() []identity.DeviceInfo {
	o.snapshotMu.RLock()
	defer o.snapshotMu.RUnlock()
	out := make([]identity.DeviceInfo, len(o.snapshot))
	copy(out, o.snapshot)
	return out
}

// Poll runs one cycle and notifies every listener of its events.
//
// Returns:
//   - []Event: the events of this cycle, also delivered to listeners
func (o *Observer) Poll(ctx context.Context) []Event {
	o.cycleMu.Lock()
	defer o.cycleMu.Unlock()

	events := o.cycle(ctx)
	o.notify(events)
	return events
}

// Events runs one cycle and returns its events without notifying listeners.
func (o *Observer) Events(ctx context.Context) []Event {
	o.cycleMu.Lock()
	defer o.cycleMu.Unlock()

	return o.cycle(ctx)
}

// Run polls immediately and then every period until ctx is cancelled.
//
// A cycle that overruns the period delays the next one; cycles never run
// concurrently.
//
// Returns:
//   - error: always nil once ctx is cancelled
func (o *Observer) Run(ctx context.Context, period time.Duration) error {
	if period <= 0 {
		period = DefaultPollInterval
	}

	o.logger.Info("device observer started", "period", period)
	defer o.logger.Info("device observer stopped")

	o.Poll(ctx)

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			o.Poll(ctx)
		}
	}
}

// cycle performs one poll. The caller must hold cycleMu.
func (o *Observer) cycle(ctx context.Context) []Event {
	handles, err := o.enumerator.ListDevices(ctx)
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		o.metrics.EnumerationFailed()
		o.logger.Warn("device enumeration failed", "error", err)
		ev := Event{Kind: EnumerationFailed, Time: o.now(), Err: err}
		o.metrics.DeviceEvent(ev.Kind.String())
		return []Event{ev}
	}
	handles = dedupe(handles)

	previous := o.Snapshot()
	known := make(map[driver.Handle]identity.DeviceInfo, len(previous))
	for _, info := range previous {
		known[info.Handle] = info
	}

	present := make(map[driver.Handle]struct{}, len(handles))
	var appeared []driver.Handle
	for _, h := range handles {
		present[h] = struct{}{}
		if _, ok := known[h]; !ok {
			appeared = append(appeared, h)
		}
	}

	resolved := o.resolver.ResolveAll(ctx, appeared)
	if ctx.Err() != nil {
		return nil
	}

	now := o.now()
	events := make([]Event, 0, len(appeared))
	next := make([]identity.DeviceInfo, 0, len(handles))

	for _, info := range resolved {
		events = append(events, Event{Kind: Connected, Info: info, Time: now})
		next = append(next, info)
	}
	for _, info := range previous {
		if _, ok := present[info.Handle]; ok {
			next = append(next, info)
			continue
		}
		events = append(events, Event{Kind: Disconnected, Info: info, Time: now})
	}

	sort.Slice(next, func(i, j int) bool {
		return lessHandle(next[i].Handle, next[j].Handle)
	})

	o.snapshotMu.Lock()
	o.snapshot = next
	o.snapshotMu.Unlock()

	o.metrics.PollCycle(len(next))
	for _, ev := range events {
		o.metrics.DeviceEvent(ev.Kind.String())
		o.logger.Info("device "+ev.Kind.String(), "device", ev.Info.String())
	}

	return events
}

func (o *Observer) notify(events []Event) {
	if len(events) == 0 {
		return
	}

	o.listenersMu.RLock()
	listeners := make([]Listener, len(o.listeners))
	copy(listeners, o.listeners)
	o.listenersMu.RUnlock()

	for _, ev := range events {
		for i, l := range listeners {
			if err := o.safeNotify(l, ev); err != nil {
				o.logger.Error("device event listener failed",
					"listener", i,
					"event", ev.Kind.String(),
					"error", err,
				)
			}
		}
	}
}

// safeNotify calls l, turning a panic into an error.
func (o *Observer) safeNotify(l Listener, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panic: %v", r)
		}
	}()
	return l.OnEvent(ev)
}

func dedupe(handles []driver.Handle) []driver.Handle {
	seen := make(map[driver.Handle]struct{}, len(handles))
	out := make([]driver.Handle, 0, len(handles))
	for _, h := range handles {
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}

func lessHandle(a, b driver.Handle) bool {
	if a.Port != b.Port {
		return a.Port < b.Port
	}
	return a.Type < b.Type
}
