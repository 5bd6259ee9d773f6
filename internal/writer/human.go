package writer

import (
	"bufio"
	"io"
	"strings"
	"time"
)

const hexDigits = "0123456789ABCDEF"

// Human writes one line per frame: timestamp, a space, then the frame with
// non-printable bytes escaped as \xNN.
type Human struct {
	dest
	buf *bufio.Writer
}

// NewHuman creates a human-readable writer.
func NewHuman(dst io.WriteCloser) *Human {
	return &Human{
		dest: dest{dst: dst},
		buf:  bufio.NewWriter(dst),
	}
}

// Write writes one line and flushes it.
func (h *Human) Write(data []byte, ts time.Time) error {
	return h.do(func() error {
		h.buf.WriteString(formatTime(ts))
		h.buf.WriteByte(' ')
		h.buf.WriteString(Printable(data))
		h.buf.WriteByte('\n')
		return h.buf.Flush()
	})
}

// Shutdown flushes and closes the destination.
func (h *Human) Shutdown() error {
	return h.shutdown(h.buf.Flush)
}

// Printable escapes data for display. Printable ASCII is kept, a backslash
// becomes \\ and every other byte becomes \xNN.
func Printable(data []byte) string {
	var b strings.Builder
	b.Grow(len(data))
	for _, c := range data {
		switch {
		case c == '\\':
			b.WriteString(`\\`)
		case c >= 0x20 && c <= 0x7E:
			b.WriteByte(c)
		default:
			b.WriteString(`\x`)
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0x0F])
		}
	}
	return b.String()
}
