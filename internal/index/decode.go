package index

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decode returns src as UTF-8. Valid UTF-8 passes through with any BOM
// stripped, UTF-16 input is recognized by its BOM, and anything else is
// read as Windows-1252, which maps every byte.
func Decode(src []byte) []byte {
	if utf8.Valid(src) {
		return bytes.TrimPrefix(src, utf8BOM)
	}
	if bytes.HasPrefix(src, []byte{0xFF, 0xFE}) || bytes.HasPrefix(src, []byte{0xFE, 0xFF}) {
		dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
		if out, _, err := transform.Bytes(dec, src); err == nil {
			return out
		}
	}
	out, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), src)
	if err != nil {
		return src
	}
	return out
}
