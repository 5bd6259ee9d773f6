package writer

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// captureEncMode encodes capture records deterministically with
// nanosecond-precision timestamps.
var captureEncMode cbor.EncMode

// captureDecMode decodes capture records.
var captureDecMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}
	captureEncMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create capture CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
	}
	captureDecMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create capture CBOR decoder mode: %v", err))
	}
}

// Record is one captured frame in a CBOR capture log.
type Record struct {
	// Timestamp when the frame was received.
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies one listener run (UUID).
	SessionID string `cbor:"2,keyasint"`

	// Sequence numbers frames within a session, starting at 1.
	Sequence uint64 `cbor:"3,keyasint"`

	// DeviceType and Port identify the captured device.
	DeviceType string `cbor:"4,keyasint,omitempty"`
	Port       string `cbor:"5,keyasint,omitempty"`

	// Data is the decoded frame.
	Data []byte `cbor:"6,keyasint"`
}

// newRecordDecoder returns a decoder reading consecutive records from r.
func newRecordDecoder(r io.Reader) *cbor.Decoder {
	return captureDecMode.NewDecoder(r)
}

// CBOR writes a stream of CBOR records, one per frame.
type CBOR struct {
	dest
	buf       *bufio.Writer
	enc       *cbor.Encoder
	opts      Options
	sessionID string
	seq       uint64
}

// NewCBOR creates a CBOR capture log writer.
func NewCBOR(dst io.WriteCloser, opts Options) *CBOR {
	buf := bufio.NewWriter(dst)
	return &CBOR{
		dest:      dest{dst: dst},
		buf:       buf,
		enc:       captureEncMode.NewEncoder(buf),
		opts:      opts,
		sessionID: uuid.NewString(),
	}
}

// SessionID returns the session id stamped on every record.
func (c *CBOR) SessionID() string {
	return c.sessionID
}

// Write encodes one record and flushes it.
func (c *CBOR) Write(data []byte, ts time.Time) error {
	return c.do(func() error {
		c.seq++
		rec := Record{
			Timestamp:  ts.UTC(),
			SessionID:  c.sessionID,
			Sequence:   c.seq,
			DeviceType: c.opts.DeviceType,
			Port:       c.opts.Port,
			Data:       data,
		}
		if err := c.enc.Encode(rec); err != nil {
			return fmt.Errorf("encoding capture record: %w", err)
		}
		return c.buf.Flush()
	})
}

// Shutdown flushes and closes the destination.
func (c *CBOR) Shutdown() error {
	return c.shutdown(c.buf.Flush)
}
