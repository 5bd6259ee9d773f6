package observer

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/TTeubler/wsn-device-utils/internal/infrastructure/influxdb"
	"github.com/TTeubler/wsn-device-utils/internal/infrastructure/mqtt"
	"github.com/TTeubler/wsn-device-utils/internal/mac"
)

// PrintListener writes one line per event.
type PrintListener struct {
	mu   sync.Mutex
	w    io.Writer
	mode mac.Mode
}

// NewPrintListener returns a listener printing events to w with MACs in the given width.
func NewPrintListener(w io.Writer, mode mac.Mode) *PrintListener {
	return &PrintListener{w: w, mode: mode}
}

// OnEvent prints ev.
func (p *PrintListener) OnEvent(ev Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := fmt.Fprintln(p.w, ev.Format(p.mode))
	return err
}

// Publisher is the part of the MQTT client used by MQTTListener.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// eventPayload is the JSON document published for an event.
type eventPayload struct {
	Kind      string `json:"kind"`
	Type      string `json:"type,omitempty"`
	Port      string `json:"port,omitempty"`
	MAC       string `json:"mac,omitempty"`
	Reference string `json:"reference,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

func newEventPayload(ev Event) eventPayload {
	p := eventPayload{
		Kind:      ev.Kind.String(),
		Type:      ev.Info.Handle.Type,
		Port:      ev.Info.Handle.Port,
		Reference: ev.Info.Reference,
		Timestamp: ev.Time.UTC().Format(time.RFC3339Nano),
	}
	if ev.Info.HasMAC {
		p.MAC = ev.Info.MAC.String()
	}
	if ev.Err != nil {
		p.Error = ev.Err.Error()
	}
	return p
}

// MQTTListener publishes events to the broker.
//
// Every event goes to wsn/devices/events. Connect and disconnect events
// also replace the retained wsn/devices/state/{key} message of the device.
type MQTTListener struct {
	pub Publisher
	qos byte
}

// NewMQTTListener returns a listener publishing through pub.
func NewMQTTListener(pub Publisher, qos byte) *MQTTListener {
	return &MQTTListener{pub: pub, qos: qos}
}

// OnEvent publishes ev.
func (l *MQTTListener) OnEvent(ev Event) error {
	payload, err := json.Marshal(newEventPayload(ev))
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	topics := mqtt.Topics{}
	if err := l.pub.Publish(topics.DeviceEvents(), payload, l.qos, false); err != nil {
		return err
	}
	if ev.Kind == EnumerationFailed {
		return nil
	}
	return l.pub.Publish(topics.DeviceState(mqtt.DeviceKey(ev.Info.Handle.Port)), payload, l.qos, true)
}

// PointWriter is the part of the InfluxDB client used by InfluxListener.
type PointWriter interface {
	WriteDeviceEvent(influxdb.DeviceEvent)
}

// InfluxListener records events as InfluxDB points.
type InfluxListener struct {
	w PointWriter
}

// NewInfluxListener returns a listener recording through w.
func NewInfluxListener(w PointWriter) *InfluxListener {
	return &InfluxListener{w: w}
}

// OnEvent records ev. Writes are asynchronous; failures surface through
// the client's error callback.
func (l *InfluxListener) OnEvent(ev Event) error {
	p := newEventPayload(ev)
	l.w.WriteDeviceEvent(influxdb.DeviceEvent{
		Kind:      p.Kind,
		Type:      p.Type,
		Port:      p.Port,
		MAC:       p.MAC,
		Reference: p.Reference,
		Error:     p.Error,
		Time:      ev.Time,
	})
	return nil
}
