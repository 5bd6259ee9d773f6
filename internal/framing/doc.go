// Package framing implements DLE STX/ETX byte stuffing.
//
// A frame on the wire is
//
//	DLE STX <payload with every DLE doubled> DLE ETX
//
// Bytes outside a frame are ignored. A DLE STX inside a frame starts a new
// frame and discards the partial one; any other DLE escape inside a frame
// is a protocol error and discards the frame. Frames longer than the
// configured maximum are discarded when they overflow.
package framing
