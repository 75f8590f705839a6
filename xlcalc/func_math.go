package xlcalc

import (
	"math"
	"math/rand/v2"
	"strconv"

	"github.com/yamitzky/xlcalc-go/xlrd"
)

var mathFunctions = map[string]function{
	"SUM":        fnSum,
	"PRODUCT":    fnProduct,
	"SUMSQ":      fnSumSq,
	"SUMPRODUCT": fnSumProduct,
	"SUMIF":      fnSumIf,
	"SUMIFS":     fnSumIfs,
	"ABS":        unaryMath(math.Abs),
	"INT":        unaryMath(math.Floor),
	"SIGN":       unaryMath(signOf),
	"EXP":        unaryMath(math.Exp),
	"SIN":        unaryMath(math.Sin),
	"COS":        unaryMath(math.Cos),
	"TAN":        unaryMath(math.Tan),
	"ATAN":       unaryMath(math.Atan),
	"ASIN":       unaryMath(math.Asin),
	"ACOS":       unaryMath(math.Acos),
	"RADIANS":    unaryMath(func(x float64) float64 { return x * math.Pi / 180 }),
	"DEGREES":    unaryMath(func(x float64) float64 { return x * 180 / math.Pi }),
	"SQRT":       fnSqrt,
	"LN":         fnLn,
	"LOG10":      fnLog10,
	"LOG":        fnLog,
	"POWER":      fnPower,
	"MOD":        fnMod,
	"ATAN2":      fnAtan2,
	"PI":         func(*scope, []Value) Value { return math.Pi },
	"ROUND":      rounding(roundHalfUp),
	"ROUNDUP":    rounding(roundUp),
	"ROUNDDOWN":  rounding(math.Trunc),
	"TRUNC":      fnTrunc,
	"CEILING":    fnCeiling,
	"FLOOR":      fnFloor,
	"EVEN":       parity(0),
	"ODD":        parity(1),
	"FACT":       fnFact,
	"RAND":       fnRand,
}

type defaultRand struct{}

func (defaultRand) Float64() float64 { return rand.Float64() }

func unaryMath(f func(float64) float64) function {
	return func(sc *scope, args []Value) Value {
		x, e := sc.number(args[0])
		if e != nil {
			return e
		}
		return checkNumber(f(x))
	}
}

func signOf(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

// roundSig rounds to 15 significant digits, the precision Excel shows,
// so that 2.675*100 is taken as 267.5.
func roundSig(x float64) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(x, 'g', 15, 64), 64)
	if err != nil {
		return x
	}
	return r
}

func roundHalfUp(x float64) float64 { return math.Round(roundSig(x)) }

func roundUp(x float64) float64 {
	x = roundSig(x)
	if x < 0 {
		return -math.Ceil(-x)
	}
	return math.Ceil(x)
}

func rounding(f func(float64) float64) function {
	return func(sc *scope, args []Value) Value {
		x, e := sc.number(args[0])
		if e != nil {
			return e
		}
		d, e := sc.integer(args[1])
		if e != nil {
			return e
		}
		return roundTo(x, d, f)
	}
}

func roundTo(x float64, digits int, f func(float64) float64) Value {
	if digits > 15 {
		return x
	}
	if digits < 0 {
		q := math.Pow(10, float64(-digits))
		return checkNumber(f(x/q) * q)
	}
	p := math.Pow(10, float64(digits))
	return checkNumber(f(x*p) / p)
}

func fnTrunc(sc *scope, args []Value) Value {
	x, e := sc.number(args[0])
	if e != nil {
		return e
	}
	d := 0
	if given(args, 1) {
		if d, e = sc.integer(args[1]); e != nil {
			return e
		}
	}
	return roundTo(x, d, math.Trunc)
}

func fnSqrt(sc *scope, args []Value) Value {
	x, e := sc.number(args[0])
	if e != nil {
		return e
	}
	if x < 0 {
		return errNum
	}
	return math.Sqrt(x)
}

func fnLn(sc *scope, args []Value) Value {
	x, e := sc.number(args[0])
	if e != nil {
		return e
	}
	if x <= 0 {
		return errNum
	}
	return math.Log(x)
}

func fnLog10(sc *scope, args []Value) Value {
	x, e := sc.number(args[0])
	if e != nil {
		return e
	}
	if x <= 0 {
		return errNum
	}
	return math.Log10(x)
}

func fnLog(sc *scope, args []Value) Value {
	x, e := sc.number(args[0])
	if e != nil {
		return e
	}
	base, e := sc.optNumber(args, 1, 10)
	if e != nil {
		return e
	}
	if x <= 0 || base <= 0 {
		return errNum
	}
	if base == 1 {
		return errDiv0
	}
	return checkNumber(math.Log(x) / math.Log(base))
}

func fnPower(sc *scope, args []Value) Value {
	x, e := sc.number(args[0])
	if e != nil {
		return e
	}
	y, e := sc.number(args[1])
	if e != nil {
		return e
	}
	return power(x, y)
}

func fnMod(sc *scope, args []Value) Value {
	n, e := sc.number(args[0])
	if e != nil {
		return e
	}
	d, e := sc.number(args[1])
	if e != nil {
		return e
	}
	if d == 0 {
		return errDiv0
	}
	return checkNumber(n - d*math.Floor(n/d))
}

func fnAtan2(sc *scope, args []Value) Value {
	x, e := sc.number(args[0])
	if e != nil {
		return e
	}
	y, e := sc.number(args[1])
	if e != nil {
		return e
	}
	if x == 0 && y == 0 {
		return errDiv0
	}
	return math.Atan2(y, x)
}

func fnCeiling(sc *scope, args []Value) Value {
	x, e := sc.number(args[0])
	if e != nil {
		return e
	}
	sig, e := sc.number(args[1])
	if e != nil {
		return e
	}
	switch {
	case x == 0 || sig == 0:
		return 0.0
	case (x > 0) != (sig > 0):
		return errNum
	}
	return checkNumber(math.Ceil(roundSig(x/sig)) * sig)
}

func fnFloor(sc *scope, args []Value) Value {
	x, e := sc.number(args[0])
	if e != nil {
		return e
	}
	sig, e := sc.number(args[1])
	if e != nil {
		return e
	}
	switch {
	case x == 0:
		return 0.0
	case sig == 0:
		return errDiv0
	case (x > 0) != (sig > 0):
		return errNum
	}
	return checkNumber(math.Floor(roundSig(x/sig)) * sig)
}

// parity rounds away from zero to the next even (0) or odd (1) integer.
func parity(odd float64) function {
	return func(sc *scope, args []Value) Value {
		x, e := sc.number(args[0])
		if e != nil {
			return e
		}
		a := math.Ceil(math.Abs(x))
		if math.Mod(a, 2) != odd {
			a++
		}
		if x < 0 {
			return -a
		}
		return a
	}
}

func fnFact(sc *scope, args []Value) Value {
	x, e := sc.number(args[0])
	if e != nil {
		return e
	}
	if x < 0 {
		return errNum
	}
	n := int(x)
	if n > 170 {
		return errNum
	}
	r := 1.0
	for i := 2; i <= n; i++ {
		r *= float64(i)
	}
	return r
}

func fnRand(sc *scope, args []Value) Value {
	sc.volatile()
	return sc.ev.rand.Float64()
}

func fnSum(sc *scope, args []Value) Value {
	xs, e := sc.numbers(args, false)
	if e != nil {
		return e
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return checkNumber(sum)
}

func fnProduct(sc *scope, args []Value) Value {
	xs, e := sc.numbers(args, false)
	if e != nil {
		return e
	}
	if len(xs) == 0 {
		return 0.0
	}
	p := 1.0
	for _, x := range xs {
		p *= x
	}
	return checkNumber(p)
}

func fnSumSq(sc *scope, args []Value) Value {
	xs, e := sc.numbers(args, false)
	if e != nil {
		return e
	}
	sum := 0.0
	for _, x := range xs {
		sum += x * x
	}
	return checkNumber(sum)
}

// fnSumProduct multiplies matching elements of areas of one shape and
// adds the products. Elements that are not numbers count as 0.
func fnSumProduct(sc *scope, args []Value) Value {
	grids := make([]grid, len(args))
	rows, cols := 0, 0
	for i, a := range args {
		g, e := toGrid(a)
		if e != nil {
			return e
		}
		r, c := g.dims()
		if i == 0 {
			rows, cols = r, c
		} else if r != rows || c != cols {
			return errValue
		}
		grids[i] = g
	}
	sum := 0.0
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			p := 1.0
			for _, g := range grids {
				switch x := g.at(i, j).(type) {
				case ErrorValue:
					return x
				case float64:
					p *= x
				default:
					p = 0
				}
			}
			sum += p
		}
	}
	return checkNumber(sum)
}

// resized returns the area of v that starts at its top left cell and
// has the given size, the way the optional range of SUMIF is read.
func resized(v Value, rows, cols int) (grid, Value) {
	if r, ok := v.(*Reference); ok && r.isArea() {
		a := r.Areas[0]
		a.LastRow = a.FirstRow + rows - 1
		a.LastCol = a.FirstCol + cols - 1
		if a.LastRow >= 0x10000 || a.LastCol >= 0x100 {
			return nil, errRef
		}
		ref := &Reference{ev: r.ev, FirstSheet: r.FirstSheet, LastSheet: r.LastSheet, Areas: []xlrd.CellRange{a}}
		ref.observe()
		return ref, nil
	}
	return toGrid(v)
}

// sumMatching adds the numbers of sum at the positions where the
// criteria hold.
func sumMatching(sum grid, grids []grid, crits []criterion) (float64, int, Value) {
	total, count := 0.0, 0
	var err Value
	sr, scn := sum.dims()
	matchingCells(grids, crits, func(i, j int) {
		if err != nil || i >= sr || j >= scn {
			return
		}
		switch x := sum.at(i, j).(type) {
		case ErrorValue:
			err = x
		case float64:
			total += x
			count++
		}
	})
	return total, count, err
}

func fnSumIf(sc *scope, args []Value) Value {
	total, _, e := ifAggregate(args)
	if e != nil {
		return e
	}
	return total
}

// ifAggregate implements the (range, criterion, [sum range]) form shared
// by SUMIF and AVERAGEIF.
func ifAggregate(args []Value) (float64, int, Value) {
	grids, crits, e := criteriaGrids(args[:2])
	if e != nil {
		return 0, 0, e
	}
	sum := grids[0]
	if given(args, 2) {
		rows, cols := grids[0].dims()
		if sum, e = resized(args[2], rows, cols); e != nil {
			return 0, 0, e
		}
	}
	return sumMatching(sum, grids, crits)
}

func fnSumIfs(sc *scope, args []Value) Value {
	if len(args)%2 == 0 {
		return errValue
	}
	sum, e := toGrid(args[0])
	if e != nil {
		return e
	}
	grids, crits, e := criteriaGrids(args[1:])
	if e != nil {
		return e
	}
	sr, scn := sum.dims()
	if r, c := grids[0].dims(); r != sr || c != scn {
		return errValue
	}
	total, _, e := sumMatching(sum, grids, crits)
	if e != nil {
		return e
	}
	return total
}
