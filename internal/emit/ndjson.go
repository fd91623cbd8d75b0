// Package emit writes normalized readings as newline-delimited JSON.
package emit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/breatheroute/getaq/internal/airquality"
)

// NDJSONWriter writes one JSON object per line.
type NDJSONWriter struct {
	w io.Writer
}

// NewNDJSONWriter creates a writer that emits to w.
func NewNDJSONWriter(w io.Writer) *NDJSONWriter {
	return &NDJSONWriter{w: w}
}

// WriteAll encodes every reading before writing anything, so an encoding
// failure leaves w untouched. Returns the number of lines written.
func (n *NDJSONWriter) WriteAll(readings []airquality.Reading) (int, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i := range readings {
		// Encode appends the trailing newline.
		if err := enc.Encode(&readings[i]); err != nil {
			return 0, fmt.Errorf("encode reading %d: %w", readings[i].ID, err)
		}
	}

	if _, err := n.w.Write(buf.Bytes()); err != nil {
		return 0, fmt.Errorf("write readings: %w", err)
	}
	return len(readings), nil
}
