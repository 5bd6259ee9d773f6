package observer

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TTeubler/wsn-device-utils/internal/identity"
	"github.com/TTeubler/wsn-device-utils/internal/infrastructure/influxdb"
	"github.com/TTeubler/wsn-device-utils/internal/mac"
)

type published struct {
	topic    string
	payload  []byte
	retained bool
}

type fakePublisher struct {
	msgs []published
	err  error
}

func (p *fakePublisher) Publish(topic string, payload []byte, _ byte, retained bool) error {
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, published{topic: topic, payload: payload, retained: retained})
	return nil
}

type fakePointWriter struct {
	events []influxdb.DeviceEvent
}

func (w *fakePointWriter) WriteDeviceEvent(ev influxdb.DeviceEvent) {
	w.events = append(w.events, ev)
}

func TestPrintListener(t *testing.T) {
	var buf bytes.Buffer
	l := NewPrintListener(&buf, mac.Mode48)

	require.NoError(t, l.OnEvent(Event{Kind: Connected, Info: identity.DeviceInfo{Handle: usb0}, Time: testTime}))
	require.NoError(t, l.OnEvent(Event{Kind: Disconnected, Info: identity.DeviceInfo{Handle: usb0}, Time: testTime}))

	assert.Equal(t,
		"2024-05-01T12:00:00Z CONNECTED type=usb port=/dev/ttyUSB0\n"+
			"2024-05-01T12:00:00Z DISCONNECTED type=usb port=/dev/ttyUSB0\n",
		buf.String())
}

func TestMQTTListener(t *testing.T) {
	pub := &fakePublisher{}
	l := NewMQTTListener(pub, 1)

	info := identity.DeviceInfo{Handle: usb0, MAC: mac.New(0x0004A30000112233), HasMAC: true, Reference: "a"}
	require.NoError(t, l.OnEvent(Event{Kind: Connected, Info: info, Time: testTime}))

	require.Len(t, pub.msgs, 2)
	assert.Equal(t, "wsn/devices/events", pub.msgs[0].topic)
	assert.False(t, pub.msgs[0].retained)
	assert.Equal(t, "wsn/devices/state/dev_ttyUSB0", pub.msgs[1].topic)
	assert.True(t, pub.msgs[1].retained)

	var p eventPayload
	require.NoError(t, json.Unmarshal(pub.msgs[0].payload, &p))
	assert.Equal(t, eventPayload{
		Kind:      "connected",
		Type:      "usb",
		Port:      "/dev/ttyUSB0",
		MAC:       "0004A30000112233",
		Reference: "a",
		Timestamp: "2024-05-01T12:00:00Z",
	}, p)
}

func TestMQTTListenerEnumerationFailure(t *testing.T) {
	pub := &fakePublisher{}
	l := NewMQTTListener(pub, 0)

	require.NoError(t, l.OnEvent(Event{Kind: EnumerationFailed, Time: testTime, Err: errors.New("bus reset")}))

	require.Len(t, pub.msgs, 1)
	assert.Contains(t, string(pub.msgs[0].payload), `"error":"bus reset"`)
}

func TestMQTTListenerPublishError(t *testing.T) {
	l := NewMQTTListener(&fakePublisher{err: errors.New("not connected")}, 0)
	assert.Error(t, l.OnEvent(Event{Kind: Connected, Time: testTime}))
}

func TestInfluxListener(t *testing.T) {
	w := &fakePointWriter{}
	l := NewInfluxListener(w)

	info := identity.DeviceInfo{Handle: usb0, MAC: mac.New(1), HasMAC: true}
	require.NoError(t, l.OnEvent(Event{Kind: Disconnected, Info: info, Time: testTime}))

	require.Len(t, w.events, 1)
	assert.Equal(t, influxdb.DeviceEvent{
		Kind: "disconnected",
		Type: "usb",
		Port: "/dev/ttyUSB0",
		MAC:  "0000000000000001",
		Time: testTime,
	}, w.events[0])
}
