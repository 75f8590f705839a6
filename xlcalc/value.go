package xlcalc

import (
	"math"
	"strconv"
	"strings"

	"github.com/yamitzky/xlcalc-go/xlrd"
)

// Value is the result of evaluating a formula or one of its operands:
// float64, string, bool, ErrorValue, BlankValue, *Reference or
// *ArrayValue.
type Value any

// ErrorValue is an error result such as #DIV/0!.
type ErrorValue struct {
	Code xlrd.ErrorCode
}

// ErrCircularRef is the code of the result of a formula that depends on
// itself. It has no BIFF encoding; such cells are written back as #REF!.
const ErrCircularRef xlrd.ErrorCode = 0xC4

func (e ErrorValue) String() string {
	if e.Code == ErrCircularRef {
		return "~CIRCULAR~REF~"
	}
	return e.Code.String()
}

var (
	errNull     = ErrorValue{xlrd.ErrNull}
	errDiv0     = ErrorValue{xlrd.ErrDiv0}
	errValue    = ErrorValue{xlrd.ErrValue}
	errRef      = ErrorValue{xlrd.ErrRef}
	errName     = ErrorValue{xlrd.ErrName}
	errNum      = ErrorValue{xlrd.ErrNum}
	errNA       = ErrorValue{xlrd.ErrNA}
	errCircular = ErrorValue{ErrCircularRef}
)

// BlankValue is the value of an empty cell.
type BlankValue struct{}

func (BlankValue) String() string { return "" }

// Blank is the only BlankValue.
var Blank = BlankValue{}

// missingArg is an omitted function argument, as in IF(A1,,2).
type missingArg struct{}

var missing = missingArg{}

// ArrayValue is an array constant or the result of an array operation,
// stored row by row.
type ArrayValue struct {
	Rows, Cols int
	Values     []Value
}

func newArray(rows, cols int) *ArrayValue {
	return &ArrayValue{Rows: rows, Cols: cols, Values: make([]Value, rows*cols)}
}

// At returns the element at (row, col), both counting from zero.
func (a *ArrayValue) At(row, col int) Value {
	return a.Values[row*a.Cols+col]
}

func (a *ArrayValue) set(row, col int, v Value) {
	a.Values[row*a.Cols+col] = v
}

func (a *ArrayValue) dims() (int, int) { return a.Rows, a.Cols }
func (a *ArrayValue) at(row, col int) Value { return a.At(row, col) }

func arrayFromPtg(p *xlrd.ArrayPtg) *ArrayValue {
	a := newArray(p.Rows, p.Cols)
	for i, v := range p.Values {
		a.Values[i] = fromCellValue(v)
	}
	return a
}

// grid is a rectangle of values: an array or a single-area reference.
type grid interface {
	dims() (rows, cols int)
	at(row, col int) Value
}

// scalarGrid makes a single value look like a 1x1 grid.
type scalarGrid struct{ v Value }

func (g scalarGrid) dims() (int, int) { return 1, 1 }
func (g scalarGrid) at(int, int) Value { return g.v }

// toGrid views v as a grid. Multi-area and multi-sheet references give
// #VALUE!.
func toGrid(v Value) (grid, Value) {
	switch x := v.(type) {
	case *ArrayValue:
		return x, nil
	case *Reference:
		if !x.isArea() {
			return nil, errValue
		}
		x.observe()
		return x, nil
	case missingArg:
		return scalarGrid{Blank}, nil
	}
	return scalarGrid{v}, nil
}

// fromCellValue converts a cell value as stored by xlrd.
func fromCellValue(v any) Value {
	switch x := v.(type) {
	case nil:
		return Blank
	case float64:
		return x
	case string:
		return x
	case bool:
		return x
	case xlrd.ErrorCode:
		return ErrorValue{x}
	}
	return errValue
}

// plainValue is the value of a cell without a formula.
func plainValue(c *xlrd.Cell) Value {
	switch c.CType {
	case xlrd.XL_CELL_EMPTY, xlrd.XL_CELL_BLANK:
		return Blank
	}
	return fromCellValue(c.Value)
}

func isError(v Value) bool {
	_, ok := v.(ErrorValue)
	return ok
}

// numberText formats a number the way a cell in General format shows it:
// at most 15 significant digits.
func numberText(x float64) string {
	if x == 0 {
		return "0"
	}
	r, err := strconv.ParseFloat(strconv.FormatFloat(x, 'g', 15, 64), 64)
	if err != nil {
		r = x
	}
	return xlrd.Num2Str(r)
}

func boolText(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

// parseNumber reads text the way Excel converts it to a number: leading
// and trailing spaces, one currency sign, one sign, thousands separators
// followed by at least three digits, an exponent and a trailing percent
// sign are accepted.
func parseNumber(s string) (float64, bool) {
	i, n := 0, len(s)
	neg, sawSign, sawDollar := false, false, false
prefix:
	for ; i < n; i++ {
		switch s[i] {
		case ' ':
		case '$':
			if sawDollar {
				return 0, false
			}
			sawDollar = true
		case '+', '-':
			if sawSign {
				return 0, false
			}
			sawSign = true
			neg = s[i] == '-'
		default:
			break prefix
		}
	}
	var b strings.Builder
	digits := 0
	for ; i < n; i++ {
		c := s[i]
		if c >= '0' && c <= '9' {
			b.WriteByte(c)
			digits++
			continue
		}
		if c != ',' {
			break
		}
		if digits == 0 {
			return 0, false
		}
		run := 0
		for j := i + 1; j < n && s[j] >= '0' && s[j] <= '9'; j++ {
			run++
		}
		if run < 3 {
			return 0, false
		}
	}
	if i < n && s[i] == '.' {
		b.WriteByte('.')
		for i++; i < n && s[i] >= '0' && s[i] <= '9'; i++ {
			b.WriteByte(s[i])
			digits++
		}
	}
	if digits == 0 {
		return 0, false
	}
	if i < n && (s[i] == 'e' || s[i] == 'E') {
		b.WriteByte('e')
		i++
		if i < n && (s[i] == '+' || s[i] == '-') {
			b.WriteByte(s[i])
			i++
		}
		exp := 0
		for ; i < n && s[i] >= '0' && s[i] <= '9'; i++ {
			b.WriteByte(s[i])
			exp++
		}
		if exp == 0 {
			return 0, false
		}
	}
	for i < n && s[i] == ' ' {
		i++
	}
	percent := false
	if i < n && s[i] == '%' {
		percent = true
		for i++; i < n && s[i] == ' '; i++ {
		}
	}
	if i != n {
		return 0, false
	}
	x, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0, false
	}
	if neg {
		x = -x
	}
	if percent {
		x /= 100
	}
	return x, true
}

// checkNumber turns results that have no Excel representation into #NUM!.
func checkNumber(x float64) Value {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return errNum
	}
	return x
}
