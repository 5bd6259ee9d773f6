// Package observer tracks which devices are attached and emits an event
// whenever one appears or disappears.
//
// # Poll cycle
//
// Each cycle lists the attached devices, resolves the identity of devices
// not seen in the previous cycle, diffs the new device set against the
// previous snapshot and emits:
//
//   - Connected for every handle that appeared, with its freshly resolved identity
//   - Disconnected for every handle that vanished, with the identity recorded
//     when it connected
//   - EnumerationFailed when the device list could not be obtained; the
//     snapshot is left untouched so the next successful cycle diffs against it
//
// Identity is resolved once per connection. A device whose MAC changes
// without being unplugged keeps its old reference until it reconnects.
//
// # Listeners
//
// Listeners are called synchronously, in registration order, before the
// cycle returns. A listener that returns an error or panics is logged and
// skipped; it never stops the poll loop or the other listeners.
//
// # Concurrency
//
// Poll cycles never overlap. MAC reads inside a cycle run concurrently
// (bounded by the resolver), but diffing, snapshot replacement and
// notification happen on the polling goroutine only.
package observer
