package xlcalc

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/language"
)

// maxTextLength is the longest text a cell can hold.
const maxTextLength = 32767

var textFunctions = map[string]function{
	"LEN":         fnLen,
	"LEFT":        fnLeft,
	"RIGHT":       fnRight,
	"MID":         fnMid,
	"UPPER":       textMap(cases.Upper(language.Und).String),
	"LOWER":       textMap(cases.Lower(language.Und).String),
	"PROPER":      textMap(proper),
	"TRIM":        textMap(trimSpaces),
	"CLEAN":       textMap(clean),
	"VALUE":       fnValue,
	"CONCATENATE": fnConcatenate,
	"EXACT":       fnExact,
	"REPT":        fnRept,
	"SUBSTITUTE":  fnSubstitute,
	"REPLACE":     fnReplace,
	"FIND":        finder(false),
	"SEARCH":      finder(true),
	"CHAR":        fnChar,
	"CODE":        fnCode,
}

func textMap(f func(string) string) function {
	return func(sc *scope, args []Value) Value {
		s, e := sc.text(args[0])
		if e != nil {
			return e
		}
		return f(s)
	}
}

// proper capitalizes the first letter of every word and lowers the
// others. Any character that is not a letter starts a new word.
func proper(s string) string {
	var b strings.Builder
	prevLetter := false
	for _, r := range s {
		if prevLetter {
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(unicode.ToUpper(r))
		}
		prevLetter = unicode.IsLetter(r)
	}
	return b.String()
}

// trimSpaces removes leading and trailing spaces and collapses runs of
// spaces inside the text to one.
func trimSpaces(s string) string {
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool { return r == ' ' }), " ")
}

func clean(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 {
			return -1
		}
		return r
	}, s)
}

func fnLen(sc *scope, args []Value) Value {
	s, e := sc.text(args[0])
	if e != nil {
		return e
	}
	return float64(utf8.RuneCountInString(s))
}

// count reads an optional character count.
func (sc *scope) count(args []Value, i int) (int, Value) {
	if !given(args, i) {
		return 1, nil
	}
	n, e := sc.integer(args[i])
	if e != nil {
		return 0, e
	}
	if n < 0 {
		return 0, errValue
	}
	return n, nil
}

func fnLeft(sc *scope, args []Value) Value {
	s, e := sc.text(args[0])
	if e != nil {
		return e
	}
	n, e := sc.count(args, 1)
	if e != nil {
		return e
	}
	rs := []rune(s)
	return string(rs[:min(n, len(rs))])
}

func fnRight(sc *scope, args []Value) Value {
	s, e := sc.text(args[0])
	if e != nil {
		return e
	}
	n, e := sc.count(args, 1)
	if e != nil {
		return e
	}
	rs := []rune(s)
	return string(rs[len(rs)-min(n, len(rs)):])
}

func fnMid(sc *scope, args []Value) Value {
	s, e := sc.text(args[0])
	if e != nil {
		return e
	}
	start, e := sc.integer(args[1])
	if e != nil {
		return e
	}
	n, e := sc.integer(args[2])
	if e != nil {
		return e
	}
	if start < 1 || n < 0 {
		return errValue
	}
	rs := []rune(s)
	if start > len(rs) {
		return ""
	}
	return string(rs[start-1 : min(start-1+n, len(rs))])
}

func fnValue(sc *scope, args []Value) Value {
	switch x := sc.scalar(args[0]).(type) {
	case float64:
		return x
	case string:
		if n, ok := parseNumber(x); ok {
			return n
		}
		return errValue
	case BlankValue, missingArg:
		return 0.0
	case ErrorValue:
		return x
	}
	return errValue
}

func fnConcatenate(sc *scope, args []Value) Value {
	var b strings.Builder
	for _, a := range args {
		s, e := sc.text(a)
		if e != nil {
			return e
		}
		b.WriteString(s)
	}
	if b.Len() > maxTextLength {
		return errValue
	}
	return b.String()
}

func fnExact(sc *scope, args []Value) Value {
	a, e := sc.text(args[0])
	if e != nil {
		return e
	}
	b, e := sc.text(args[1])
	if e != nil {
		return e
	}
	return a == b
}

func fnRept(sc *scope, args []Value) Value {
	s, e := sc.text(args[0])
	if e != nil {
		return e
	}
	n, e := sc.integer(args[1])
	if e != nil {
		return e
	}
	if n < 0 || utf8.RuneCountInString(s)*n > maxTextLength {
		return errValue
	}
	return strings.Repeat(s, n)
}

func fnSubstitute(sc *scope, args []Value) Value {
	s, e := sc.text(args[0])
	if e != nil {
		return e
	}
	old, e := sc.text(args[1])
	if e != nil {
		return e
	}
	repl, e := sc.text(args[2])
	if e != nil {
		return e
	}
	if !given(args, 3) {
		if old == "" {
			return s
		}
		return strings.ReplaceAll(s, old, repl)
	}
	nth, e := sc.integer(args[3])
	if e != nil {
		return e
	}
	if nth < 1 {
		return errValue
	}
	if old == "" {
		return s
	}
	pos := 0
	for k := 1; ; k++ {
		i := strings.Index(s[pos:], old)
		if i < 0 {
			return s
		}
		if k == nth {
			return s[:pos+i] + repl + s[pos+i+len(old):]
		}
		pos += i + len(old)
	}
}

func fnReplace(sc *scope, args []Value) Value {
	s, e := sc.text(args[0])
	if e != nil {
		return e
	}
	start, e := sc.integer(args[1])
	if e != nil {
		return e
	}
	n, e := sc.integer(args[2])
	if e != nil {
		return e
	}
	repl, e := sc.text(args[3])
	if e != nil {
		return e
	}
	if start < 1 || n < 0 {
		return errValue
	}
	rs := []rune(s)
	from := min(start-1, len(rs))
	to := min(from+n, len(rs))
	return string(rs[:from]) + repl + string(rs[to:])
}

// finder builds FIND, or SEARCH with insensitive set: SEARCH ignores case
// and understands wildcards.
func finder(insensitive bool) function {
	return func(sc *scope, args []Value) Value {
		needle, e := sc.text(args[0])
		if e != nil {
			return e
		}
		hay, e := sc.text(args[1])
		if e != nil {
			return e
		}
		start := 1
		if given(args, 2) {
			if start, e = sc.integer(args[2]); e != nil {
				return e
			}
		}
		rs := []rune(hay)
		if start < 1 || start > len(rs)+1 {
			return errValue
		}
		if needle == "" {
			return float64(start)
		}
		rest := string(rs[start-1:])
		var i int
		if insensitive {
			loc := wildcardRegexp(needle, false).FindStringIndex(rest)
			if loc == nil {
				return errValue
			}
			i = loc[0]
		} else if i = strings.Index(rest, needle); i < 0 {
			return errValue
		}
		return float64(start + utf8.RuneCountInString(rest[:i]))
	}
}

// fnChar returns the character with a code in the Windows-1252 code
// page.
func fnChar(sc *scope, args []Value) Value {
	n, e := sc.integer(args[0])
	if e != nil {
		return e
	}
	if n < 1 || n > 255 {
		return errValue
	}
	return string(charmap.Windows1252.DecodeByte(byte(n)))
}

func fnCode(sc *scope, args []Value) Value {
	s, e := sc.text(args[0])
	if e != nil {
		return e
	}
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return errValue
	}
	b, ok := charmap.Windows1252.EncodeRune(r)
	if !ok {
		return float64('?')
	}
	return float64(b)
}
