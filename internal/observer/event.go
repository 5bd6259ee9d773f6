package observer

import (
	"fmt"
	"strings"
	"time"

	"github.com/TTeubler/wsn-device-utils/internal/identity"
	"github.com/TTeubler/wsn-device-utils/internal/mac"
)

// EventKind is the type of a device event.
type EventKind int

const (
	// Connected means a device appeared.
	Connected EventKind = iota + 1
	// Disconnected means a device vanished.
	Disconnected
	// EnumerationFailed means a poll cycle could not list the devices.
	EnumerationFailed
)

func (k EventKind) String() string {
	switch k {
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	case EnumerationFailed:
		return "enumeration_failed"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is an immutable device event. Info is a detached copy.
type Event struct {
	Kind EventKind
	Info identity.DeviceInfo
	Time time.Time

	// Err is set for EnumerationFailed events.
	Err error
}

// Format renders the event as one line, the MAC written in the given width.
//
//	2024-05-01T12:00:00Z CONNECTED type=telosb port=/dev/ttyUSB0 mac=0004A30000112233 reference=a
func (e Event) Format(mode mac.Mode) string {
	var b strings.Builder
	b.WriteString(e.Time.UTC().Format(time.RFC3339))
	b.WriteByte(' ')
	b.WriteString(strings.ToUpper(e.Kind.String()))

	if e.Kind == EnumerationFailed {
		if e.Err != nil {
			fmt.Fprintf(&b, " error=%q", e.Err.Error())
		}
		return b.String()
	}

	fmt.Fprintf(&b, " type=%s port=%s", e.Info.Handle.Type, e.Info.Handle.Port)
	if e.Info.HasMAC {
		b.WriteString(" mac=")
		b.WriteString(e.Info.MAC.Hex(mode))
	}
	if e.Info.HasReference() {
		b.WriteString(" reference=")
		b.WriteString(e.Info.Reference)
	}
	return b.String()
}

func (e Event) String() string {
	return e.Format(mac.Mode64)
}
