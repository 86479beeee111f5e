package runner

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrUnknownEncoding is returned for an output encoding that has no decoder.
var ErrUnknownEncoding = errors.New("unknown output encoding")

// LookupEncoding resolves an output encoding name. The empty string, "auto"
// and "utf-8" select UTF-8; "none" passes bytes through unchanged; any other
// name is looked up in the IANA registry.
func LookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto", "utf-8", "utf8":
		return unicode.UTF8, nil
	case "none":
		return encoding.Nop, nil
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, name)
	}
	return enc, nil
}

// decoder converts one stream's bytes to UTF-8, holding back an incomplete
// multi-byte sequence until the next chunk arrives.
type decoder struct {
	t       transform.Transformer
	pending []byte
	dst     []byte
}

func newDecoder(enc encoding.Encoding) *decoder {
	return &decoder{t: enc.NewDecoder()}
}

// decode converts p. With atEOF set, held-back bytes are flushed.
func (d *decoder) decode(p []byte, atEOF bool) string {
	src := p
	if len(d.pending) > 0 {
		src = append(d.pending, p...)
		d.pending = nil
	}
	if len(src) == 0 && !atEOF {
		return ""
	}

	var out strings.Builder
	for {
		if need := len(src)*3 + 16; cap(d.dst) < need {
			d.dst = make([]byte, need)
		}
		dst := d.dst[:cap(d.dst)]

		nDst, nSrc, err := d.t.Transform(dst, src, atEOF)
		out.Write(dst[:nDst])
		src = src[nSrc:]

		switch {
		case err == nil:
			if atEOF {
				d.t.Reset()
			}
			return out.String()
		case errors.Is(err, transform.ErrShortDst):
			continue
		case errors.Is(err, transform.ErrShortSrc):
			d.pending = append([]byte(nil), src...)
			return out.String()
		default:
			// Undecodable input is passed through rather than dropped.
			out.Write(src)
			d.t.Reset()
			return out.String()
		}
	}
}

// replaceNUL rewrites NUL bytes as line feeds in place. Some compilers
// separate diagnostics with NUL.
func replaceNUL(p []byte) {
	for i, c := range p {
		if c == 0 {
			p[i] = '\n'
		}
	}
}
