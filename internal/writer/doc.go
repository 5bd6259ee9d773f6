// Package writer records decoded frames in an output format.
//
// A Writer receives each frame with its reception time and owns its
// destination until Shutdown, which writes any trailer, flushes and closes
// the destination. Shutdown is idempotent; Write after Shutdown returns
// ErrClosed.
//
// Formats:
//
//	human   2024-05-01T12:00:00.5Z hello\x00\x10
//	csv     timestamp,data
//	        2024-05-01T12:00:00.5Z,68656C6C6F0010
//	wiseml  <wiseml><trace> <timestamp/> <node><data/></node> ... </trace></wiseml>
//	cbor    one CBOR record per frame, integer keys
//
// Further sinks forward frames to MQTT or record them in InfluxDB. Multi fans
// a frame out to several writers; ShutdownWithin bounds how long a shutdown
// may block.
package writer
