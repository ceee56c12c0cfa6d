package cues

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// decode turns raw subtitle bytes into a string. A BOM selects UTF-8 or
// UTF-16; BOM-less data that is not valid UTF-8 is read as Windows-1252,
// the most common legacy encoding for fansub and retail SRT files.
func decode(data []byte) (string, error) {
	if hasUTF16BOM(data) || bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) {
		fallback := unicode.UTF8.NewDecoder()
		out, _, err := transform.Bytes(unicode.BOMOverride(fallback), data)
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
	if utf8.Valid(data) {
		return string(data), nil
	}
	out, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func hasUTF16BOM(data []byte) bool {
	return bytes.HasPrefix(data, []byte{0xFF, 0xFE}) || bytes.HasPrefix(data, []byte{0xFE, 0xFF})
}
