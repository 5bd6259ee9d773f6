package driver

import (
	"context"
	"errors"
	"io"

	"github.com/TTeubler/wsn-device-utils/internal/mac"
)

// Errors returned by drivers. Use errors.Is() to check for them.
var (
	// ErrConnection is returned when a device cannot be connected or reports
	// not-connected.
	ErrConnection = errors.New("driver: connection failed")

	// ErrEnumeration is returned when the attached devices cannot be listed.
	ErrEnumeration = errors.New("driver: enumeration failed")

	// ErrMACUnsupported is returned when a device type has no way to read its MAC.
	ErrMACUnsupported = errors.New("driver: reading the MAC address is not supported")

	// ErrInvalidConfiguration is returned for unusable device configuration values.
	ErrInvalidConfiguration = errors.New("driver: invalid device configuration")
)

// Handle identifies an attached device. Two handles are the same device when
// type and port are equal; ports are unique among attached devices.
type Handle struct {
	Type string `json:"type"`
	Port string `json:"port"`
}

func (h Handle) String() string {
	return h.Type + "@" + h.Port
}

// Enumerator lists the devices currently attached.
type Enumerator interface {
	ListDevices(ctx context.Context) ([]Handle, error)
}

// Conn is the raw byte stream of a connected device.
type Conn interface {
	io.ReadWriteCloser

	// IsConnected reports whether the device is still connected.
	IsConnected() bool
}

// Connector opens the byte stream of a device.
type Connector interface {
	Connect(ctx context.Context, h Handle, cfg map[string]string) (Conn, error)
}

// MACReader reads the MAC address of a device.
//
// reference is an optional hint (the reference already known for the device)
// used by device types whose MAC is assigned by reference. ok is false when
// the device answered but has no MAC.
type MACReader interface {
	ReadMAC(ctx context.Context, h Handle, cfg map[string]string, reference string) (addr mac.Address, ok bool, err error)
}

// Logger defines the logging interface used by drivers.
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
