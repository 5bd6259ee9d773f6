package writer

import (
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

// WiseMLNamespace is the namespace of the document element.
const WiseMLNamespace = "http://wisebed.eu/ns/wiseml/1.0"

var (
	wisemlRoot = xml.StartElement{
		Name: xml.Name{Local: "wiseml"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "version"}, Value: "1.0"},
			{Name: xml.Name{Local: "xmlns"}, Value: WiseMLNamespace},
		},
	}
	wisemlTrace = xml.Name{Local: "trace"}
)

type wisemlNode struct {
	XMLName xml.Name `xml:"node"`
	ID      string   `xml:"id,attr"`
	Data    string   `xml:"data"`
}

// WiseML writes a WiseML trace document.
//
// The document and trace elements are opened on construction and closed on
// Shutdown, so the output is well-formed even when no frame is written.
// Each frame becomes a timestamp element followed by a node element whose
// data is the frame as uppercase hex.
type WiseML struct {
	dest
	enc     *xml.Encoder
	nodeID  string
	traceID string
}

// NewWiseML writes the document header to dst and returns the writer.
func NewWiseML(dst io.WriteCloser, nodeID string) (*WiseML, error) {
	w := &WiseML{
		dest:    dest{dst: dst},
		enc:     xml.NewEncoder(dst),
		nodeID:  nodeID,
		traceID: uuid.NewString(),
	}
	w.enc.Indent("", "  ")

	if _, err := io.WriteString(dst, xml.Header); err != nil {
		return nil, fmt.Errorf("writing wiseml header: %w", err)
	}
	if err := w.enc.EncodeToken(wisemlRoot); err != nil {
		return nil, fmt.Errorf("writing wiseml header: %w", err)
	}
	trace := xml.StartElement{
		Name: wisemlTrace,
		Attr: []xml.Attr{{Name: xml.Name{Local: "id"}, Value: w.traceID}},
	}
	if err := w.enc.EncodeToken(trace); err != nil {
		return nil, fmt.Errorf("writing wiseml header: %w", err)
	}
	if err := w.enc.Flush(); err != nil {
		return nil, fmt.Errorf("writing wiseml header: %w", err)
	}

	return w, nil
}

// Write appends one timestamped node element.
func (w *WiseML) Write(data []byte, ts time.Time) error {
	return w.do(func() error {
		if err := w.enc.EncodeElement(formatTime(ts), xml.StartElement{Name: xml.Name{Local: "timestamp"}}); err != nil {
			return fmt.Errorf("writing wiseml timestamp: %w", err)
		}
		node := wisemlNode{ID: w.nodeID, Data: strings.ToUpper(hex.EncodeToString(data))}
		if err := w.enc.Encode(node); err != nil {
			return fmt.Errorf("writing wiseml node: %w", err)
		}
		return w.enc.Flush()
	})
}

// Shutdown closes the trace and document elements, then the destination.
func (w *WiseML) Shutdown() error {
	return w.shutdown(func() error {
		if err := w.enc.EncodeToken(xml.EndElement{Name: wisemlTrace}); err != nil {
			return fmt.Errorf("writing wiseml footer: %w", err)
		}
		if err := w.enc.EncodeToken(wisemlRoot.End()); err != nil {
			return fmt.Errorf("writing wiseml footer: %w", err)
		}
		if err := w.enc.Flush(); err != nil {
			return fmt.Errorf("writing wiseml footer: %w", err)
		}
		_, err := io.WriteString(w.dst, "\n")
		return err
	})
}
