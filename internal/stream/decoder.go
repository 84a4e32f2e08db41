// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"mime"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// =============================================================================
// DECODER
// =============================================================================

// Decoder turns body chunks into text. It is stateful: bytes of a character
// split across chunks are held back until the rest arrives, so the output is
// identical however the body was chunked.
type Decoder struct {
	t       transform.Transformer
	pending []byte
	buf     []byte
	charset string
}

// NewDecoder returns a decoder for the charset named in contentType,
// falling back to UTF-8 when none is given or the name is unknown.
func NewDecoder(contentType string) *Decoder {
	enc, name := encodingFor(contentType)
	t := enc.NewDecoder()
	t.Reset()
	return &Decoder{
		t:       t,
		buf:     make([]byte, 4096),
		charset: name,
	}
}

// Charset returns the canonical name of the charset in use.
func (d *Decoder) Charset() string {
	return d.charset
}

// Decode consumes p and returns the text that is complete so far.
func (d *Decoder) Decode(p []byte) (string, error) {
	return d.run(p, false)
}

// Flush returns any text still held back. An incomplete trailing sequence
// decodes to the replacement character.
func (d *Decoder) Flush() (string, error) {
	s, err := d.run(nil, true)
	d.t.Reset()
	d.pending = d.pending[:0]
	return s, err
}

func (d *Decoder) run(p []byte, atEOF bool) (string, error) {
	d.pending = append(d.pending, p...)
	var out strings.Builder

	for {
		nDst, nSrc, err := d.t.Transform(d.buf, d.pending, atEOF)
		out.Write(d.buf[:nDst])
		n := copy(d.pending, d.pending[nSrc:])
		d.pending = d.pending[:n]

		switch err {
		case nil:
			return out.String(), nil
		case transform.ErrShortDst:
			if nDst == 0 && nSrc == 0 {
				d.buf = make([]byte, 2*len(d.buf))
			}
		case transform.ErrShortSrc:
			// Incomplete sequence: keep it for the next chunk.
			return out.String(), nil
		default:
			return out.String(), err
		}
	}
}

func encodingFor(contentType string) (encoding.Encoding, string) {
	utf8 := unicode.UTF8
	if contentType == "" {
		return utf8, "utf-8"
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return utf8, "utf-8"
	}
	label := strings.TrimSpace(params["charset"])
	if label == "" {
		return utf8, "utf-8"
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return utf8, "utf-8"
	}
	name, err := htmlindex.Name(enc)
	if err != nil {
		name = strings.ToLower(label)
	}
	return enc, name
}
