package source

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/vvka-141/csvingest/pkg/csvingest"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// aliases covers codec names often found in table configurations that
// are not WHATWG labels.
var aliases = map[string]encoding.Encoding{
	"cp932":      japanese.ShiftJIS,
	"ms932":      japanese.ShiftJIS,
	"mskanji":    japanese.ShiftJIS,
	"euc_jp":     japanese.EUCJP,
	"iso2022_jp": japanese.ISO2022JP,
	"latin-1":    charmap.ISO8859_1,
	"latin_1":    charmap.ISO8859_1,
	"cp1252":     charmap.Windows1252,
}

func isUTF8(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8", "utf-8-sig", "utf_8", "utf_8_sig", "utf8-sig":
		return true
	}
	return false
}

// lookupEncoding resolves name to a decoder. A nil encoding means the input is
// already UTF-8 and only needs validation.
func lookupEncoding(name string) (encoding.Encoding, error) {
	if isUTF8(name) {
		return nil, nil
	}
	key := strings.ToLower(strings.TrimSpace(name))
	if enc, ok := aliases[key]; ok {
		return enc, nil
	}
	enc, err := htmlindex.Get(key)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", name, csvingest.ErrInvalidConfig)
	}
	return enc, nil
}

// ValidateEncoding reports whether name can be used as a source encoding.
func ValidateEncoding(name string) error {
	_, err := lookupEncoding(name)
	return err
}

var replacementChar = []byte("\uFFFD")

// decodeReader converts r to UTF-8 and turns undecodable input into ErrDecode.
//
// UTF-8 input is validated byte for byte. Legacy decoders in x/text substitute
// U+FFFD for invalid sequences instead of failing, so for those the output is
// scanned for the replacement character.
type decodeReader struct {
	r          io.Reader
	path       string
	scanOutput bool
	tail       []byte
}

func newDecodeReader(r io.Reader, path, name string) (io.Reader, error) {
	enc, err := lookupEncoding(name)
	if err != nil {
		return nil, err
	}
	if enc == nil {
		return &decodeReader{r: transform.NewReader(r, encoding.UTF8Validator), path: path}, nil
	}
	return &decodeReader{r: transform.NewReader(r, enc.NewDecoder()), path: path, scanOutput: true}, nil
}

func (d *decodeReader) Read(p []byte) (int, error) {
	n, err := d.r.Read(p)
	if err != nil && errors.Is(err, encoding.ErrInvalidUTF8) {
		return n, fmt.Errorf("%w: %s is not valid UTF-8", csvingest.ErrDecode, d.path)
	}
	if d.scanOutput && n > 0 {
		window := append(d.tail, p[:n]...)
		if bytes.Contains(window, replacementChar) {
			return n, fmt.Errorf("%w: %s contains bytes invalid for its encoding", csvingest.ErrDecode, d.path)
		}
		keep := len(replacementChar) - 1
		if len(window) < keep {
			keep = len(window)
		}
		d.tail = append(d.tail[:0], window[len(window)-keep:]...)
	}
	return n, err
}
