package mqtt

import (
	"fmt"
	"strings"
)

const (
	// TopicPrefix is the base for all topics.
	TopicPrefix = "wsn"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = TopicPrefix + "/system"

	// TopicPrefixDevices is the base for observer topics.
	TopicPrefixDevices = TopicPrefix + "/devices"
)

// Topics provides builders for wsn-deviceutils MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.Frames(mqtt.DeviceKey("/dev/ttyUSB0"))
//	// Returns: "wsn/frames/dev_ttyUSB0"
type Topics struct{}

// SystemStatus returns the topic carrying the online/offline status of this process.
//
// Example: wsn/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// DeviceEvents returns the topic every observer event is published to.
//
// Example: wsn/devices/events
func (Topics) DeviceEvents() string {
	return TopicPrefixDevices + "/events"
}

// DeviceState returns the retained presence topic of one device.
//
// Example: wsn/devices/state/dev_ttyUSB0
func (Topics) DeviceState(key string) string {
	return fmt.Sprintf("%s/state/%s", TopicPrefixDevices, key)
}

// Frames returns the topic frames captured from a device are published to.
//
// Example: wsn/frames/dev_ttyUSB0
func (Topics) Frames(key string) string {
	return fmt.Sprintf("%s/frames/%s", TopicPrefix, key)
}

// Command returns the topic carrying frames to send to a device.
//
// Example: wsn/command/dev_ttyUSB0
func (Topics) Command(key string) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefix, key)
}

// AllFrames returns a wildcard matching the frames of every device.
func (Topics) AllFrames() string {
	return TopicPrefix + "/frames/+"
}

// AllDeviceStates returns a wildcard matching every device presence topic.
func (Topics) AllDeviceStates() string {
	return TopicPrefixDevices + "/state/+"
}

// DeviceKey turns a port name into a single topic level.
//
// Path separators become underscores, leading separators are dropped and the
// MQTT wildcard characters are removed:
//
//	/dev/ttyUSB0 -> dev_ttyUSB0
//	COM3         -> COM3
func DeviceKey(port string) string {
	port = strings.TrimLeft(port, `/\`)

	var b strings.Builder
	b.Grow(len(port))
	for _, r := range port {
		switch r {
		case '/', '\\', ' ':
			b.WriteByte('_')
		case '+', '#', 0:
		default:
			b.WriteRune(r)
		}
	}

	if b.Len() == 0 {
		return "unknown"
	}
	return b.String()
}
