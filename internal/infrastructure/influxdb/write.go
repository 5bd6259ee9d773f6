package influxdb

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementDeviceEvents = "device_events"
	MeasurementFrames       = "frames"
)

// DeviceEvent describes one observer event for recording.
type DeviceEvent struct {
	Kind      string
	Type      string
	Port      string
	MAC       string
	Reference string
	Error     string
	Time      time.Time
}

// WriteDeviceEvent records an observer event. Non-blocking.
func (c *Client) WriteDeviceEvent(ev DeviceEvent) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(newDeviceEventPoint(ev))
}

// WriteFrame records one captured frame. Non-blocking.
//
// The payload is stored as uppercase hex in the "payload" field.
func (c *Client) WriteFrame(deviceType, port string, frame []byte, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(newFramePoint(deviceType, port, frame, ts))
}

func newDeviceEventPoint(ev DeviceEvent) *write.Point {
	tags := map[string]string{
		"kind": ev.Kind,
	}
	// Empty tag values are rejected by line protocol.
	if ev.Type != "" {
		tags["type"] = ev.Type
	}
	if ev.Port != "" {
		tags["port"] = ev.Port
	}
	if ev.Reference != "" {
		tags["reference"] = ev.Reference
	}

	fields := map[string]interface{}{
		"count": 1,
	}
	if ev.MAC != "" {
		fields["mac"] = ev.MAC
	}
	if ev.Error != "" {
		fields["error"] = ev.Error
	}

	return write.NewPoint(MeasurementDeviceEvents, tags, fields, ev.Time)
}

func newFramePoint(deviceType, port string, frame []byte, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementFrames,
		map[string]string{
			"type": deviceType,
			"port": port,
		},
		map[string]interface{}{
			"size":    len(frame),
			"payload": strings.ToUpper(hex.EncodeToString(frame)),
		},
		ts,
	)
}
