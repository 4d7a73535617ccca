// Package textenc normalizes uploaded word lists into UTF-8.
//
// Spreadsheet exports from Korean Windows installs arrive as EUC-KR (CP949),
// so that is the default source encoding. Any encoding name known to the
// WHATWG index can be configured instead, plus two special names:
//
//   - "utf-8": input is already UTF-8; invalid bytes become U+FFFD
//   - "auto":  input is treated as UTF-8 when it validates, EUC-KR otherwise
//
// Whatever the configured encoding, a leading UTF-8 byte-order mark wins: the
// mark is stripped and the rest is read as UTF-8. The template this service
// hands out carries that mark, so a filled-in template always round-trips.
//
// Decoding never fails. Malformed sequences decode to the replacement
// character and the header/field checks downstream decide what is usable.
package textenc

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultEncoding is the source encoding assumed when none is configured.
const DefaultEncoding = "euc-kr"

const (
	NameUTF8 = "utf-8"
	NameAuto = "auto"
)

// Normalizer decodes a byte stream in a fixed source encoding to UTF-8.
type Normalizer struct {
	name string
	enc  encoding.Encoding // nil in auto mode
}

// New returns a Normalizer for the named source encoding.
// An empty name selects DefaultEncoding.
func New(name string) (*Normalizer, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = DefaultEncoding
	}

	if name == NameAuto {
		return &Normalizer{name: NameAuto}, nil
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown source encoding %q: %w", name, err)
	}

	canonical, err := htmlindex.Name(enc)
	if err != nil {
		canonical = name
	}

	return &Normalizer{name: canonical, enc: enc}, nil
}

// Name returns the canonical name of the source encoding.
func (n *Normalizer) Name() string {
	return n.name
}

// NewReader wraps r so that reads yield UTF-8.
func (n *Normalizer) NewReader(r io.Reader) io.Reader {
	if n.enc == nil {
		return &autoReader{src: r}
	}
	return transform.NewReader(r, decoderFor(n.enc))
}

// decoderFor honors a UTF-8 (or UTF-16) byte-order mark before falling back
// to the configured encoding.
func decoderFor(enc encoding.Encoding) transform.Transformer {
	return unicode.BOMOverride(enc.NewDecoder())
}

// autoReader buffers the whole source to decide between UTF-8 and EUC-KR.
// Uploads are size-capped before they reach here.
type autoReader struct {
	src io.Reader
	out io.Reader
}

func (a *autoReader) Read(p []byte) (int, error) {
	if a.out == nil {
		data, err := io.ReadAll(a.src)
		if err != nil {
			return 0, err
		}
		enc := encoding.Encoding(korean.EUCKR)
		if utf8.Valid(data) {
			enc = unicode.UTF8
		}
		a.out = transform.NewReader(bytes.NewReader(data), decoderFor(enc))
	}
	return a.out.Read(p)
}
