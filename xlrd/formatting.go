package xlrd

import (
	"regexp"
	"strings"
)

// Format is a number format, from a FORMAT record or built in.
type Format struct {
	// FormatKey is the format index XF records refer to.
	FormatKey int

	// FormatString is the format string.
	FormatString string
}

// XF is the part of an extended format record needed to tell dates from
// numbers.
type XF struct {
	FontIndex int
	FormatKey int
}

// builtInFormats are the number formats every workbook has without a
// FORMAT record.
var builtInFormats = map[int]string{
	0: "General", 1: "0", 2: "0.00", 3: "#,##0", 4: "#,##0.00",
	9: "0%", 10: "0.00%", 11: "0.00E+00", 12: "# ?/?", 13: "# ??/??",
	14: "m/d/yy", 15: "d-mmm-yy", 16: "d-mmm", 17: "mmm-yy",
	18: "h:mm AM/PM", 19: "h:mm:ss AM/PM", 20: "h:mm", 21: "h:mm:ss", 22: "m/d/yy h:mm",
	37: "#,##0 ;(#,##0)", 38: "#,##0 ;[Red](#,##0)", 39: "#,##0.00;(#,##0.00)", 40: "#,##0.00;[Red](#,##0.00)",
	45: "mm:ss", 46: "[h]:mm:ss", 47: "mm:ss.0", 48: "##0.0E+0", 49: "@",
}

func (b *Book) initializeFormatInfo() {
	b.FormatMap = make(map[int]*Format, len(builtInFormats))
	for k, s := range builtInFormats {
		b.FormatMap[k] = &Format{FormatKey: k, FormatString: s}
	}
	b.XFList = nil
}

// handleFormat reads a BIFF8 FORMAT record.
func (b *Book) handleFormat(data []byte) {
	if len(data) < 5 {
		return
	}
	s, err := UnpackUnicode(data, 2, 2)
	if err != nil {
		b.logf(1, "FORMAT record: %v\n", err)
		return
	}
	key := u16(data, 0)
	b.FormatMap[key] = &Format{FormatKey: key, FormatString: s}
}

// handleXF reads a BIFF8 XF record.
func (b *Book) handleXF(data []byte) {
	if len(data) < 4 {
		return
	}
	b.XFList = append(b.XFList, &XF{FontIndex: u16(data, 0), FormatKey: u16(data, 2)})
}

// IsDateXF reports whether cells using the XF record at xfIndex display
// numbers as dates or times.
func (b *Book) IsDateXF(xfIndex int) bool {
	if xfIndex < 0 || xfIndex >= len(b.XFList) {
		return false
	}
	f, ok := b.FormatMap[b.XFList[xfIndex].FormatKey]
	if !ok {
		return false
	}
	return IsDateFormatString(b, f.FormatString)
}

// Date and number character dictionaries for format string analysis
var dateCharDict = map[rune]int{
	'y': 5, 'Y': 5, 'm': 5, 'M': 5, 'd': 5, 'D': 5, 'h': 5, 'H': 5, 's': 5, 'S': 5,
}

var skipCharDict = map[rune]bool{
	'$': true, '-': true, '+': true, '/': true, '(': true, ')': true, ':': true, ' ': true,
}

var numCharDict = map[rune]int{
	'0': 5, '#': 5, '?': 5,
}

var nonDateFormats = map[string]bool{
	"0.00E+00": true,
	"##0.0E+0": true,
	"General":  true,
	"GENERAL":  true,
	"general":  true,
	"@":        true,
}

var bracketed = regexp.MustCompile(`\[.*?\]`)

// IsDateFormatString checks if a format string represents a date format.
func IsDateFormatString(book *Book, formatStr string) bool {
	// Heuristics:
	// Ignore "text" and [stuff in square brackets].
	// Handle backslashed-escaped chars properly.
	// Date formats have one or more of ymdhs (caseless) in them.
	// Numeric formats have # and 0.

	state := 0
	var s strings.Builder

	for _, c := range formatStr {
		switch state {
		case 0:
			if c == '"' {
				state = 1
			} else if c == '\\' || c == '_' || c == '*' {
				state = 2
			} else if !skipCharDict[c] {
				s.WriteRune(c)
			}
		case 1:
			if c == '"' {
				state = 0
			}
		case 2:
			// Ignore char after backslash, underscore or asterisk
			state = 0
		}
	}

	reducedFmt := bracketed.ReplaceAllString(s.String(), "")
	if book != nil {
		book.logf(4, "is_date_format_string: reduced format is %s\n", reducedFmt)
	}

	if nonDateFormats[reducedFmt] {
		return false
	}

	dateCount := 0
	numCount := 0
	for _, c := range reducedFmt {
		if count, ok := dateCharDict[c]; ok {
			dateCount += count
		} else if count, ok := numCharDict[c]; ok {
			numCount += count
		}
	}

	// Date format if it has date chars and no number chars
	return dateCount > 0 && numCount == 0
}
