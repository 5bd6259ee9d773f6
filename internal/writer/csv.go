package writer

import (
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"
)

// CSVHeader is the first row of CSV output.
var CSVHeader = []string{"timestamp", "data"}

// CSV writes one row per frame: timestamp and the frame as uppercase hex.
// The header is written before the first row.
type CSV struct {
	dest
	w             *csv.Writer
	headerWritten bool
}

// NewCSV creates a CSV writer.
func NewCSV(dst io.WriteCloser) *CSV {
	return &CSV{
		dest: dest{dst: dst},
		w:    csv.NewWriter(dst),
	}
}

// Write writes one row and flushes it.
func (c *CSV) Write(data []byte, ts time.Time) error {
	return c.do(func() error {
		if !c.headerWritten {
			if err := c.w.Write(CSVHeader); err != nil {
				return fmt.Errorf("writing csv header: %w", err)
			}
			c.headerWritten = true
		}
		if err := c.w.Write([]string{formatTime(ts), strings.ToUpper(hex.EncodeToString(data))}); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
		c.w.Flush()
		return c.w.Error()
	})
}

// Shutdown flushes and closes the destination.
func (c *CSV) Shutdown() error {
	return c.shutdown(func() error {
		c.w.Flush()
		return c.w.Error()
	})
}
