package observer

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TTeubler/wsn-device-utils/internal/driver"
	"github.com/TTeubler/wsn-device-utils/internal/driver/drivertest"
	"github.com/TTeubler/wsn-device-utils/internal/identity"
	"github.com/TTeubler/wsn-device-utils/internal/mac"
	"github.com/TTeubler/wsn-device-utils/internal/reference"
)

var (
	usb0 = driver.Handle{Type: "usb", Port: "/dev/ttyUSB0"}
	usb1 = driver.Handle{Type: "usb", Port: "/dev/ttyUSB1"}
	usb2 = driver.Handle{Type: "usb", Port: "/dev/ttyUSB2"}
)

var testTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestObserver(t *testing.T, fake *drivertest.Fake, refs string) *Observer {
	t.Helper()
	var m *reference.Map
	if refs != "" {
		var err error
		m, err = reference.Parse("test", []byte(refs))
		require.NoError(t, err)
	}
	o := New(fake, identity.NewResolver(fake, m, identity.Options{}))
	o.now = func() time.Time { return testTime }
	return o
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) OnEvent(ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func kinds(events []Event) []EventKind {
	out := make([]EventKind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind
	}
	return out
}

func TestConnectThenDisconnect(t *testing.T) {
	fake := drivertest.New().Script(
		drivertest.Step{},
		drivertest.Step{Handles: []driver.Handle{usb0}},
		drivertest.Step{},
	)
	o := newTestObserver(t, fake, "")
	rec := &recorder{}
	o.AddListener(rec)

	ctx := context.Background()
	assert.Empty(t, o.Poll(ctx))
	o.Poll(ctx)
	o.Poll(ctx)

	events := rec.Events()
	require.Len(t, events, 2)
	assert.Equal(t, Connected, events[0].Kind)
	assert.Equal(t, usb0, events[0].Info.Handle)
	assert.Equal(t, Disconnected, events[1].Kind)
	assert.Equal(t, usb0, events[1].Info.Handle)
	assert.Empty(t, o.Snapshot())
}

func TestConnectedEventCarriesReference(t *testing.T) {
	fake := drivertest.New().Attach(usb0)
	fake.SetMAC(usb0, mac.New(0x0004A30000112233))
	o := newTestObserver(t, fake, "a=0004A30000112233\n")

	events := o.Poll(context.Background())

	require.Len(t, events, 1)
	assert.Equal(t, "a", events[0].Info.Reference)
	assert.Equal(t, testTime, events[0].Time)
}

func TestKnownHandlesAreNotResolvedAgain(t *testing.T) {
	fake := drivertest.New().Script(
		drivertest.Step{Handles: []driver.Handle{usb0}},
		drivertest.Step{Handles: []driver.Handle{usb0, usb1}},
		drivertest.Step{Handles: []driver.Handle{usb1, usb0}},
	)
	o := newTestObserver(t, fake, "")

	for range 5 {
		o.Poll(context.Background())
	}

	assert.Equal(t, 1, fake.Reads(usb0))
	assert.Equal(t, 1, fake.Reads(usb1))
}

func TestDisconnectUsesRecordedIdentity(t *testing.T) {
	fake := drivertest.New().Script(
		drivertest.Step{Handles: []driver.Handle{usb0}},
		drivertest.Step{},
	)
	fake.SetMAC(usb0, mac.New(1))
	o := newTestObserver(t, fake, "one=1\ntwo=2\n")

	o.Poll(context.Background())
	fake.SetMAC(usb0, mac.New(2))
	events := o.Poll(context.Background())

	require.Len(t, events, 1)
	assert.Equal(t, Disconnected, events[0].Kind)
	assert.Equal(t, "one", events[0].Info.Reference)
	assert.Equal(t, 1, fake.Reads(usb0))
}

func TestEnumerationFailureKeepsSnapshot(t *testing.T) {
	fake := drivertest.New().Script(
		drivertest.Step{Handles: []driver.Handle{usb0, usb1}},
		drivertest.Step{Err: errors.New("usb bus reset")},
		drivertest.Step{Handles: []driver.Handle{usb0}},
	)
	o := newTestObserver(t, fake, "")
	ctx := context.Background()

	assert.Equal(t, []EventKind{Connected, Connected}, kinds(o.Poll(ctx)))
	before := o.Snapshot()

	failed := o.Poll(ctx)
	require.Len(t, failed, 1)
	assert.Equal(t, EnumerationFailed, failed[0].Kind)
	assert.ErrorIs(t, failed[0].Err, driver.ErrEnumeration)
	assert.Equal(t, before, o.Snapshot())

	after := o.Poll(ctx)
	require.Len(t, after, 1)
	assert.Equal(t, Disconnected, after[0].Kind)
	assert.Equal(t, usb1, after[0].Info.Handle)
}

func TestDuplicateHandlesCountOnce(t *testing.T) {
	fake := drivertest.New().Attach(usb0, usb0)
	o := newTestObserver(t, fake, "")

	events := o.Poll(context.Background())

	assert.Len(t, events, 1)
	assert.Len(t, o.Snapshot(), 1)
	assert.Equal(t, 1, fake.Reads(usb0))
}

func TestEventsDoesNotNotify(t *testing.T) {
	fake := drivertest.New().Attach(usb0)
	o := newTestObserver(t, fake, "")
	rec := &recorder{}
	o.AddListener(rec)

	events := o.Events(context.Background())

	assert.Len(t, events, 1)
	assert.Empty(t, rec.Events())
	assert.Len(t, o.Snapshot(), 1)
}

func TestCancelledCycleChangesNothing(t *testing.T) {
	fake := drivertest.New().Attach(usb0)
	o := newTestObserver(t, fake, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Empty(t, o.Poll(ctx))
	assert.Empty(t, o.Snapshot())
}

func TestFailingListenersAreIsolated(t *testing.T) {
	fake := drivertest.New().Script(
		drivertest.Step{Handles: []driver.Handle{usb0}},
		drivertest.Step{},
	)
	o := newTestObserver(t, fake, "")

	var order []string
	o.AddListener(ListenerFunc(func(Event) error {
		order = append(order, "panics")
		panic("boom")
	}))
	o.AddListener(ListenerFunc(func(Event) error {
		order = append(order, "fails")
		return errors.New("listener down")
	}))
	rec := &recorder{}
	o.AddListener(rec)

	require.NotPanics(t, func() {
		o.Poll(context.Background())
		o.Poll(context.Background())
	})

	assert.Equal(t, []string{"panics", "fails", "panics", "fails"}, order)
	assert.Equal(t, []EventKind{Connected, Disconnected}, kinds(rec.Events()))
}

// TestEventsReconstructSnapshots checks that replaying the emitted events
// over the previous device set yields exactly the next enumerated set.
func TestEventsReconstructSnapshots(t *testing.T) {
	all := []driver.Handle{usb0, usb1, usb2, {Type: "telosb", Port: "/dev/ttyUSB3"}}
	rng := rand.New(rand.NewSource(7))

	var steps []drivertest.Step
	for range 50 {
		var hs []driver.Handle
		for _, h := range all {
			if rng.Intn(2) == 0 {
				hs = append(hs, h)
			}
		}
		steps = append(steps, drivertest.Step{Handles: hs})
	}

	fake := drivertest.New().Script(steps...)
	o := newTestObserver(t, fake, "")

	state := make(map[driver.Handle]bool)
	for i, step := range steps {
		for _, ev := range o.Poll(context.Background()) {
			switch ev.Kind {
			case Connected:
				require.False(t, state[ev.Info.Handle], "step %d: duplicate connect for %s", i, ev.Info.Handle)
				state[ev.Info.Handle] = true
			case Disconnected:
				require.True(t, state[ev.Info.Handle], "step %d: disconnect of unknown %s", i, ev.Info.Handle)
				delete(state, ev.Info.Handle)
			default:
				t.Fatalf("step %d: unexpected %s", i, ev.Kind)
			}
		}

		want := make(map[driver.Handle]bool)
		for _, h := range step.Handles {
			want[h] = true
		}
		require.Equal(t, want, state, "step %d", i)
	}

	for _, h := range all {
		assert.LessOrEqual(t, fake.Reads(h), 50)
	}
}

func TestSnapshotIsDetached(t *testing.T) {
	fake := drivertest.New().Attach(usb1, usb0)
	o := newTestObserver(t, fake, "")
	o.Poll(context.Background())

	snap := o.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, usb0, snap[0].Handle)

	snap[0].Reference = "mutated"
	assert.Empty(t, o.Snapshot()[0].Reference)
}

// slowEnumerator reports the highest number of overlapping ListDevices calls.
type slowEnumerator struct {
	delay    time.Duration
	calls    atomic.Int32
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (e *slowEnumerator) ListDevices(context.Context) ([]driver.Handle, error) {
	e.calls.Add(1)
	n := e.inFlight.Add(1)
	defer e.inFlight.Add(-1)
	if n > e.maxSeen.Load() {
		e.maxSeen.Store(n)
	}
	time.Sleep(e.delay)
	return nil, nil
}

func TestRunNeverOverlapsCycles(t *testing.T) {
	enum := &slowEnumerator{delay: 15 * time.Millisecond}
	o := New(enum, identity.NewResolver(drivertest.New(), nil, identity.Options{}))

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()

	require.NoError(t, o.Run(ctx, time.Millisecond))

	assert.Greater(t, enum.calls.Load(), int32(1))
	assert.Equal(t, int32(1), enum.maxSeen.Load())
}

func TestEventFormat(t *testing.T) {
	info := identity.DeviceInfo{Handle: usb0, MAC: mac.New(0x112233), HasMAC: true, Reference: "a"}

	tests := []struct {
		name string
		ev   Event
		mode mac.Mode
		want string
	}{
		{
			name: "connected 64 bit",
			ev:   Event{Kind: Connected, Info: info, Time: testTime},
			mode: mac.Mode64,
			want: "2024-05-01T12:00:00Z CONNECTED type=usb port=/dev/ttyUSB0 mac=0000000000112233 reference=a",
		},
		{
			name: "disconnected 48 bit",
			ev:   Event{Kind: Disconnected, Info: info, Time: testTime},
			mode: mac.Mode48,
			want: "2024-05-01T12:00:00Z DISCONNECTED type=usb port=/dev/ttyUSB0 mac=000000112233 reference=a",
		},
		{
			name: "unresolved",
			ev:   Event{Kind: Connected, Info: identity.DeviceInfo{Handle: usb1}, Time: testTime},
			mode: mac.Mode64,
			want: "2024-05-01T12:00:00Z CONNECTED type=usb port=/dev/ttyUSB1",
		},
		{
			name: "enumeration failure",
			ev:   Event{Kind: EnumerationFailed, Time: testTime, Err: errors.New("bus reset")},
			mode: mac.Mode64,
			want: `2024-05-01T12:00:00Z ENUMERATION_FAILED error="bus reset"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ev.Format(tt.mode))
		})
	}
}

func sortedPorts(infos []identity.DeviceInfo) []string {
	out := make([]string, len(infos))
	for i, info := range infos {
		out[i] = info.Handle.Port
	}
	sort.Strings(out)
	return out
}

func TestSnapshotFollowsEnumeration(t *testing.T) {
	fake := drivertest.New().Script(
		drivertest.Step{Handles: []driver.Handle{usb2, usb0}},
		drivertest.Step{Handles: []driver.Handle{usb1, usb2}},
	)
	o := newTestObserver(t, fake, "")

	o.Poll(context.Background())
	assert.Equal(t, []string{"/dev/ttyUSB0", "/dev/ttyUSB2"}, sortedPorts(o.Snapshot()))

	o.Poll(context.Background())
	assert.Equal(t, []string{"/dev/ttyUSB1", "/dev/ttyUSB2"}, sortedPorts(o.Snapshot()))
}
