// Package jsonview renders JSON documents for display, mirroring the
// format/minify toggle of the inspection UI.
package jsonview

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const DefaultIndent = "  "

// Format re-indents raw. Key order and number literals are preserved.
func Format(raw []byte, indent string) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(raw), "", indent); err != nil {
		return nil, fmt.Errorf("failed to format JSON: %w", err)
	}
	return buf.Bytes(), nil
}

// Minify strips insignificant whitespace from raw.
func Minify(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, fmt.Errorf("failed to minify JSON: %w", err)
	}
	return buf.Bytes(), nil
}

// Render marshals v and returns it formatted, or minified when compact is set.
func Render(v any, compact bool) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}
	raw := bytes.TrimSpace(buf.Bytes())
	if compact {
		return raw, nil
	}
	return Format(raw, DefaultIndent)
}
