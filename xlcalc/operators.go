package xlcalc

import (
	"math"
	"strconv"
	"strings"

	"github.com/yamitzky/xlcalc-go/xlrd"
)

func (sc *scope) unary(op byte, v Value) Value {
	if a, ok := v.(*ArrayValue); ok {
		out := newArray(a.Rows, a.Cols)
		for i, x := range a.Values {
			out.Values[i] = sc.unary(op, x)
		}
		return out
	}
	v = sc.scalar(v)
	if op == xlrd.OpUplus {
		if _, ok := v.(missingArg); ok {
			return Blank
		}
		return v
	}
	x, e := sc.number(v)
	if e != nil {
		return e
	}
	if op == xlrd.OpUminus {
		return -x
	}
	return x / 100
}

func (sc *scope) binary(op byte, a, b Value) Value {
	switch op {
	case xlrd.OpRange, xlrd.OpUnion, xlrd.OpIsect:
		return referenceOp(op, a, b)
	}
	_, arrA := a.(*ArrayValue)
	_, arrB := b.(*ArrayValue)
	if arrA || arrB {
		return sc.elementwise(a, b, func(x, y Value) Value {
			return sc.binaryScalar(op, x, y)
		})
	}
	return sc.binaryScalar(op, sc.scalar(a), sc.scalar(b))
}

func (sc *scope) binaryScalar(op byte, a, b Value) Value {
	switch op {
	case xlrd.OpConcat:
		s, e := sc.text(a)
		if e != nil {
			return e
		}
		t, e := sc.text(b)
		if e != nil {
			return e
		}
		return s + t
	case xlrd.OpLT, xlrd.OpLE, xlrd.OpEQ, xlrd.OpGE, xlrd.OpGT, xlrd.OpNE:
		c, e := compareValues(a, b)
		if e != nil {
			return e
		}
		switch op {
		case xlrd.OpLT:
			return c < 0
		case xlrd.OpLE:
			return c <= 0
		case xlrd.OpEQ:
			return c == 0
		case xlrd.OpGE:
			return c >= 0
		case xlrd.OpGT:
			return c > 0
		}
		return c != 0
	}
	x, e := sc.number(a)
	if e != nil {
		return e
	}
	y, e := sc.number(b)
	if e != nil {
		return e
	}
	switch op {
	case xlrd.OpAdd:
		return checkNumber(x + y)
	case xlrd.OpSub:
		return checkNumber(x - y)
	case xlrd.OpMul:
		return checkNumber(x * y)
	case xlrd.OpDiv:
		if y == 0 {
			return errDiv0
		}
		return checkNumber(x / y)
	case xlrd.OpPower:
		return power(x, y)
	}
	return errValue
}

func power(x, y float64) Value {
	switch {
	case x == 0 && y == 0:
		return errNum
	case x == 0 && y < 0:
		return errDiv0
	}
	return checkNumber(math.Pow(x, y))
}

// elementwise applies fn to matching elements of two grids. A grid with
// one row or column is repeated to fill the other; positions only one of
// them covers give #N/A.
func (sc *scope) elementwise(a, b Value, fn func(x, y Value) Value) Value {
	ga, e := toGrid(a)
	if e != nil {
		return e
	}
	gb, e := toGrid(b)
	if e != nil {
		return e
	}
	ra, ca := ga.dims()
	rb, cb := gb.dims()
	out := newArray(max(ra, rb), max(ca, cb))
	for i := 0; i < out.Rows; i++ {
		for j := 0; j < out.Cols; j++ {
			out.set(i, j, fn(pick(ga, ra, ca, i, j), pick(gb, rb, cb, i, j)))
		}
	}
	return out
}

func pick(g grid, rows, cols, i, j int) Value {
	if rows == 1 {
		i = 0
	}
	if cols == 1 {
		j = 0
	}
	if i >= rows || j >= cols {
		return errNA
	}
	return g.at(i, j)
}

// compareValues orders two scalars the way the comparison operators do:
// numbers before text before logical values, text without regard to
// case. A blank compares as 0, "" or FALSE, whichever matches the other
// side.
func compareValues(a, b Value) (int, Value) {
	if e, ok := a.(ErrorValue); ok {
		return 0, e
	}
	if e, ok := b.(ErrorValue); ok {
		return 0, e
	}
	a, b = blankAs(a, b), blankAs(b, a)
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return sign(ra - rb), nil
	}
	switch x := a.(type) {
	case float64:
		return compareNumbers(x, b.(float64)), nil
	case string:
		return strings.Compare(strings.ToUpper(x), strings.ToUpper(b.(string))), nil
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0, nil
		case y:
			return -1, nil
		}
		return 1, nil
	}
	return 0, nil
}

func blankAs(v, other Value) Value {
	switch v.(type) {
	case BlankValue, missingArg:
	default:
		return v
	}
	switch other.(type) {
	case string:
		return ""
	case bool:
		return false
	}
	return 0.0
}

func typeRank(v Value) int {
	switch v.(type) {
	case string:
		return 1
	case bool:
		return 2
	}
	return 0
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}

// compareNumbers treats numbers that agree to 15 significant digits as
// equal.
func compareNumbers(x, y float64) int {
	if x == y {
		return 0
	}
	if strconv.FormatFloat(x, 'g', 15, 64) == strconv.FormatFloat(y, 'g', 15, 64) {
		return 0
	}
	if x < y {
		return -1
	}
	return 1
}

// referenceOp implements the range, union and intersection operators.
func referenceOp(op byte, a, b Value) Value {
	if e, ok := a.(ErrorValue); ok {
		return e
	}
	if e, ok := b.(ErrorValue); ok {
		return e
	}
	ra, okA := a.(*Reference)
	rb, okB := b.(*Reference)
	if !okA || !okB || ra.ev != rb.ev || ra.FirstSheet != rb.FirstSheet || ra.LastSheet != rb.LastSheet {
		return errValue
	}
	out := &Reference{ev: ra.ev, FirstSheet: ra.FirstSheet, LastSheet: ra.LastSheet}
	switch op {
	case xlrd.OpUnion:
		out.Areas = append(append(out.Areas, ra.Areas...), rb.Areas...)
	case xlrd.OpRange:
		box := ra.Areas[0]
		for _, x := range append(append([]xlrd.CellRange{}, ra.Areas...), rb.Areas...) {
			box.FirstRow = min(box.FirstRow, x.FirstRow)
			box.LastRow = max(box.LastRow, x.LastRow)
			box.FirstCol = min(box.FirstCol, x.FirstCol)
			box.LastCol = max(box.LastCol, x.LastCol)
		}
		out.Areas = []xlrd.CellRange{box}
	default:
		if len(ra.Areas) != 1 || len(rb.Areas) != 1 {
			return errValue
		}
		x, y := ra.Areas[0], rb.Areas[0]
		is := xlrd.CellRange{
			FirstRow: max(x.FirstRow, y.FirstRow),
			LastRow:  min(x.LastRow, y.LastRow),
			FirstCol: max(x.FirstCol, y.FirstCol),
			LastCol:  min(x.LastCol, y.LastCol),
		}
		if is.FirstRow > is.LastRow || is.FirstCol > is.LastCol {
			return errNull
		}
		out.Areas = []xlrd.CellRange{is}
	}
	return out
}
