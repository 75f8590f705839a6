package xlrd

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// String option flags of XLUnicodeRichExtendedString.
const (
	strHighByte = 0x01
	strPhonetic = 0x04
	strRichText = 0x08
)

func decodeChars(raw []byte, wide bool) (string, error) {
	if wide {
		b, err := utf16le.NewDecoder().Bytes(raw)
		if err != nil {
			return "", fmt.Errorf("failed to decode UTF-16: %v", err)
		}
		return string(b), nil
	}
	b, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("failed to decode Latin-1: %v", err)
	}
	return string(b), nil
}

// UnpackUnicode unpacks a BIFF8 Unicode string whose character count is
// a lenlen-byte integer at pos.
func UnpackUnicode(data []byte, pos int, lenlen int) (string, error) {
	s, _, err := UnpackUnicodeUpdatePos(data, pos, lenlen, nil)
	return s, err
}

// UnpackUnicodeUpdatePos unpacks a Unicode string and returns the
// position just past it, including any rich text runs and phonetic data.
// A non-nil knownLen means the count was stored elsewhere and pos points
// at the option flags.
func UnpackUnicodeUpdatePos(data []byte, pos int, lenlen int, knownLen *int) (string, int, error) {
	var nchars int
	if knownLen != nil {
		nchars = *knownLen
	} else {
		if pos+lenlen > len(data) {
			return "", pos, fmt.Errorf("insufficient data for unicode length")
		}
		if lenlen == 1 {
			nchars = int(data[pos])
		} else {
			nchars = int(binary.LittleEndian.Uint16(data[pos : pos+2]))
		}
		pos += lenlen
	}

	if nchars == 0 && pos >= len(data) {
		return "", pos, nil
	}
	if pos >= len(data) {
		return "", pos, fmt.Errorf("insufficient data for unicode options")
	}

	options := data[pos]
	pos++

	var rt, sz int
	if options&strRichText != 0 {
		if pos+2 > len(data) {
			return "", pos, fmt.Errorf("insufficient data for richtext")
		}
		rt = int(binary.LittleEndian.Uint16(data[pos:]))
		pos += 2
	}
	if options&strPhonetic != 0 {
		if pos+4 > len(data) {
			return "", pos, fmt.Errorf("insufficient data for phonetic")
		}
		sz = int(binary.LittleEndian.Uint32(data[pos:]))
		pos += 4
	}

	n := nchars
	wide := options&strHighByte != 0
	if wide {
		n *= 2
	}
	if pos+n > len(data) {
		return "", pos, fmt.Errorf("insufficient data for %d-character string", nchars)
	}
	str, err := decodeChars(data[pos:pos+n], wide)
	if err != nil {
		return "", pos, err
	}
	pos += n + 4*rt + sz
	return str, pos, nil
}

// canCompress reports whether s fits the 8-bit (Latin-1) encoding.
func canCompress(s string) bool {
	for _, r := range s {
		if r > 0xFF {
			return false
		}
	}
	return true
}

func encodeChars(s string) (raw []byte, wide bool) {
	if canCompress(s) {
		b, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(s))
		if err == nil {
			return b, false
		}
	}
	b, _ := utf16le.NewEncoder().Bytes([]byte(s))
	return b, true
}

// charCount is the number of UTF-16 code units in s.
func charCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// PackUnicode encodes s as a BIFF8 Unicode string with a lenlen-byte
// character count (0 omits the count).
func PackUnicode(s string, lenlen int) []byte {
	raw, wide := encodeChars(s)
	nchars := charCount(s)
	out := make([]byte, 0, lenlen+1+len(raw))
	switch lenlen {
	case 1:
		out = append(out, byte(nchars))
	case 2:
		out = binary.LittleEndian.AppendUint16(out, uint16(nchars))
	}
	if wide {
		out = append(out, strHighByte)
	} else {
		out = append(out, 0)
	}
	return append(out, raw...)
}
