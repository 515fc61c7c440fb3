// Package ndjson writes newline-delimited JSON streams.
//
// Each record is one compact JSON document on its own line. HTML escaping is
// disabled so multilingual text reaches the client byte-for-byte instead of
// as \uXXXX sequences.
package ndjson

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
)

// Encoder writes one JSON document per line, flushing the destination after
// every record when it supports http.Flusher.
type Encoder struct {
	enc     *json.Encoder
	flusher http.Flusher
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	e := &Encoder{enc: enc}
	if f, ok := w.(http.Flusher); ok {
		e.flusher = f
	}
	return e
}

// Encode writes v as a single newline-terminated record and flushes.
func (e *Encoder) Encode(v any) error {
	if err := e.enc.Encode(v); err != nil {
		return err
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}

// Marshal returns v encoded as one newline-terminated record.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
