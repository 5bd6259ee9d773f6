// Package driver is the boundary between the device tools and the physical
// sensor nodes attached over serial links.
//
// It defines three collaborator interfaces:
//
//   - Enumerator lists the devices currently attached as (type, port) handles.
//   - Connector opens the raw byte stream of one device.
//   - MACReader reads the MAC address of one device.
//
// Serial implements all three on top of go.bug.st/serial. Device types are
// derived from the USB vendor/product id of the serial adapter. MAC reading
// supports two strategies: a "mac" key in the device configuration, and for
// device types whose MAC is assigned by reference (the USB serial number of
// the adapter), a forward lookup in the reference map.
//
// Package drivertest provides an in-memory Fake for tests.
package driver
