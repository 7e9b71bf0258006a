// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stanza

import (
	"encoding/xml"
	"fmt"
	"io"
)

// Reader decodes a stream of top-level stanzas. Wrapper elements (a
// <stream:stream> root, or any other container) are descended into,
// so both live stream captures and bare concatenated stanzas work.
type Reader struct {
	decoder *xml.Decoder
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{decoder: xml.NewDecoder(r)}
}

// Next returns the next stanza. It returns io.EOF when the input is
// exhausted. A decode error leaves the underlying decoder unusable.
func (r *Reader) Next() (*Stanza, error) {
	for {
		token, err := r.decoder.Token()
		if err != nil {
			return nil, err
		}
		start, ok := token.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "message", "presence", "iq":
			var decoded Stanza
			if err := r.decoder.DecodeElement(&decoded, &start); err != nil {
				return nil, fmt.Errorf("stanza: decoding %s: %w", start.Name.Local, err)
			}
			return &decoded, nil
		}
	}
}

// Parse decodes a single serialized stanza.
func Parse(raw []byte) (*Stanza, error) {
	var decoded Stanza
	if err := xml.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("stanza: parsing: %w", err)
	}
	return &decoded, nil
}
