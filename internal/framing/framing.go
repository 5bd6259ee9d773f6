package framing

// Control bytes.
const (
	DLE byte = 0x10
	STX byte = 0x02
	ETX byte = 0x03
)

// DefaultMaxFrameSize is used by NewDecoder when maxFrameSize is not positive.
const DefaultMaxFrameSize = 2048

// Encode wraps payload in DLE STX ... DLE ETX, doubling every DLE.
func Encode(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+4+countDLE(payload))
	out = append(out, DLE, STX)
	for _, b := range payload {
		if b == DLE {
			out = append(out, DLE)
		}
		out = append(out, b)
	}
	return append(out, DLE, ETX)
}

func countDLE(p []byte) int {
	n := 0
	for _, b := range p {
		if b == DLE {
			n++
		}
	}
	return n
}

type state int

const (
	outside state = iota
	outsideEscape
	inside
	insideEscape
)

// Decoder reassembles frames from arbitrary chunks of a byte stream.
//
// State is kept between calls to Feed, so a frame may span any number of
// chunks. A Decoder is not safe for concurrent use.
type Decoder struct {
	state   state
	buf     []byte
	max     int
	dropped uint64
}

// NewDecoder returns a decoder discarding frames longer than maxFrameSize bytes.
func NewDecoder(maxFrameSize int) *Decoder {
	if maxFrameSize <= 0 {
		maxFrameSize = DefaultMaxFrameSize
	}
	return &Decoder{max: maxFrameSize}
}

// Feed consumes chunk and returns the frames it completed, in stream order.
// The returned slices are owned by the caller.
func (d *Decoder) Feed(chunk []byte) [][]byte {
	var frames [][]byte

	for _, b := range chunk {
		switch d.state {
		case outside:
			if b == DLE {
				d.state = outsideEscape
			}

		case outsideEscape:
			// DLE DLE outside a frame is stuffed data, not a start marker.
			if b == STX {
				d.begin()
			} else {
				d.state = outside
			}

		case inside:
			if b == DLE {
				d.state = insideEscape
				continue
			}
			d.append(b)

		case insideEscape:
			switch b {
			case DLE:
				d.state = inside
				d.append(DLE)
			case ETX:
				frame := make([]byte, len(d.buf))
				copy(frame, d.buf)
				frames = append(frames, frame)
				d.reset()
			case STX:
				d.dropped++
				d.begin()
			default:
				d.dropped++
				d.reset()
			}
		}
	}

	return frames
}

// Dropped returns how many partial, malformed or oversized frames were discarded.
func (d *Decoder) Dropped() uint64 {
	return d.dropped
}

// Pending reports whether a frame is partially received.
func (d *Decoder) Pending() bool {
	return d.state == inside || d.state == insideEscape
}

func (d *Decoder) begin() {
	d.state = inside
	d.buf = d.buf[:0]
}

func (d *Decoder) append(b byte) {
	if len(d.buf) >= d.max {
		d.dropped++
		d.reset()
		return
	}
	d.buf = append(d.buf, b)
}

func (d *Decoder) reset() {
	d.state = outside
	d.buf = d.buf[:0]
}
