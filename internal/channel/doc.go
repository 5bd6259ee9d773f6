// Package channel binds the byte stream of one device to a frame decoder
// and a writer.
//
// Open starts reading immediately. Every chunk read from the device is fed
// to a DLE STX/ETX decoder and each completed frame is handed to the writer
// on the reading goroutine, in stream order. A slow writer therefore slows
// down reading; frames are never dropped to keep up.
//
// Close stops reading, then shuts the writer down within the configured
// grace period. Close is idempotent.
package channel
