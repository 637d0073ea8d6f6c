package corpus

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// DefaultMailCharset is assumed for e-mail parts without a charset.
const DefaultMailCharset = "iso-2022-jp"

var aliases = map[string]encoding.Encoding{
	"euc-jp":      japanese.EUCJP,
	"eucjp":       japanese.EUCJP,
	"shift_jis":   japanese.ShiftJIS,
	"sjis":        japanese.ShiftJIS,
	"cp932":       japanese.ShiftJIS,
	"iso-2022-jp": japanese.ISO2022JP,
}

func lookupEncoding(name string) (encoding.Encoding, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if enc, ok := aliases[name]; ok {
		return enc, true
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, false
	}
	return enc, true
}

func isUTF8(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return true
	}
	return false
}

// Decode converts data from the named charset to UTF-8. Unknown charsets
// fall back to Latin-1 and undecodable bytes become U+FFFD.
func Decode(data []byte, charset string) string {
	if isUTF8(charset) {
		return strings.ToValidUTF8(string(data), "�")
	}
	enc, ok := lookupEncoding(charset)
	if !ok {
		enc = charmap.ISO8859_1
	}
	s, _, err := transform.String(enc.NewDecoder(), string(data))
	if err != nil {
		return strings.ToValidUTF8(string(data), "�")
	}
	return s
}

// charsetReader plugs Decode into mime.WordDecoder.
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	if isUTF8(charset) {
		return input, nil
	}
	enc, ok := lookupEncoding(charset)
	if !ok {
		return nil, fmt.Errorf("unsupported charset %q", charset)
	}
	return transform.NewReader(input, enc.NewDecoder()), nil
}
