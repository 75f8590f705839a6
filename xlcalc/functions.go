package xlcalc

import (
	"math"
	"regexp"
	"strings"

	"github.com/yamitzky/xlcalc-go/xlrd"
)

// function implements a worksheet function. Arguments arrive as
// evaluated, so references are still *Reference and omitted arguments
// are missingArg; the argument count has been checked against the
// function table.
type function func(sc *scope, args []Value) Value

var builtins map[string]function

func init() {
	builtins = map[string]function{}
	for _, group := range []map[string]function{
		mathFunctions, statFunctions, logicFunctions, textFunctions,
		lookupFunctions, dateFunctions, financialFunctions,
	} {
		for name, fn := range group {
			builtins[name] = fn
		}
	}
}

// IsSupported reports whether a worksheet function can be evaluated.
func IsSupported(name string) bool {
	_, ok := builtins[strings.ToUpper(name)]
	return ok
}

func (sc *scope) call(name string, args []Value) Value {
	fn, ok := builtins[name]
	if !ok {
		sc.ev.logf(0, "*** WARNING: function %s is not implemented\n", name)
		return errName
	}
	if def, ok := xlrd.FuncByName(name); ok && (len(args) < def.MinArgs || len(args) > def.MaxArgs) {
		return errValue
	}
	return fn(sc, args)
}

// volatile marks the formula being evaluated as one to compute again on
// every evaluation.
func (sc *scope) volatile() {
	if f := sc.ev.cache.top(); f != nil {
		f.volatile = true
	}
}

// scalar reduces a reference or array operand to one value.
func (sc *scope) scalar(v Value) Value {
	switch x := v.(type) {
	case *Reference:
		return x.intersect(sc.row, sc.col)
	case *ArrayValue:
		if len(x.Values) == 0 {
			return errValue
		}
		return x.At(0, 0)
	case addInName:
		return errName
	}
	return v
}

func (sc *scope) number(v Value) (float64, Value) {
	switch x := sc.scalar(v).(type) {
	case float64:
		return x, nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case string:
		if n, ok := parseNumber(x); ok {
			return n, nil
		}
		return 0, errValue
	case BlankValue, missingArg:
		return 0, nil
	case ErrorValue:
		return 0, x
	}
	return 0, errValue
}

// integer truncates a numeric argument toward zero.
func (sc *scope) integer(v Value) (int, Value) {
	x, e := sc.number(v)
	if e != nil {
		return 0, e
	}
	if math.Abs(x) > math.MaxInt32 {
		return 0, errNum
	}
	return int(x), nil
}

func (sc *scope) text(v Value) (string, Value) {
	switch x := sc.scalar(v).(type) {
	case string:
		return x, nil
	case float64:
		return numberText(x), nil
	case bool:
		return boolText(x), nil
	case BlankValue, missingArg:
		return "", nil
	case ErrorValue:
		return "", x
	}
	return "", errValue
}

func (sc *scope) boolean(v Value) (bool, Value) {
	switch x := sc.scalar(v).(type) {
	case bool:
		return x, nil
	case float64:
		return x != 0, nil
	case string:
		switch strings.ToUpper(x) {
		case "TRUE":
			return true, nil
		case "FALSE":
			return false, nil
		}
		return false, errValue
	case BlankValue, missingArg:
		return false, nil
	case ErrorValue:
		return false, x
	}
	return false, errValue
}

// given reports whether argument i is present and not omitted.
func given(args []Value, i int) bool {
	if i >= len(args) {
		return false
	}
	_, omitted := args[i].(missingArg)
	return !omitted
}

// optNumber reads optional argument i, returning def when it is absent.
func (sc *scope) optNumber(args []Value, i int, def float64) (float64, Value) {
	if !given(args, i) {
		return def, nil
	}
	return sc.number(args[i])
}

func (sc *scope) optBool(args []Value, i int, def bool) (bool, Value) {
	if !given(args, i) {
		return def, nil
	}
	return sc.boolean(args[i])
}

// walk calls fn for every value of the arguments: cells of references,
// elements of arrays, and the other arguments themselves, which are
// passed with direct set. It stops at the first non-nil result of fn
// and returns it.
func (sc *scope) walk(args []Value, fn func(v Value, direct bool) Value) Value {
	for _, a := range args {
		switch x := a.(type) {
		case *Reference:
			var e Value
			x.each(func(v Value) bool {
				e = fn(v, false)
				return e == nil
			})
			if e != nil {
				return e
			}
		case *ArrayValue:
			for _, v := range x.Values {
				if e := fn(v, false); e != nil {
					return e
				}
			}
		case addInName:
			return errName
		default:
			if e := fn(a, true); e != nil {
				return e
			}
		}
	}
	return nil
}

// numbers gathers the numeric values of the arguments of a statistical
// function. Numbers, logical values and numeric text count when given
// directly; cells and array elements only count when they hold numbers.
// With all set, text and logical values in cells count as well, as 0 and
// 1 or 0.
func (sc *scope) numbers(args []Value, all bool) ([]float64, Value) {
	var out []float64
	e := sc.walk(args, func(v Value, direct bool) Value {
		switch x := v.(type) {
		case ErrorValue:
			return x
		case float64:
			out = append(out, x)
		case bool:
			if direct || all {
				out = append(out, boolNumber(x))
			}
		case string:
			if direct {
				n, ok := parseNumber(x)
				if !ok {
					return errValue
				}
				out = append(out, n)
			} else if all {
				out = append(out, 0)
			}
		case BlankValue, missingArg:
			if direct {
				out = append(out, 0)
			}
		}
		return nil
	})
	return out, e
}

func boolNumber(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// criterion is the condition argument of COUNTIF, SUMIF and relatives:
// a value, or text such as ">=10" or "a*".
type criterion struct {
	op    string
	value Value
	re    *regexp.Regexp
}

var criterionOps = []string{"<=", ">=", "<>", "<", ">", "="}

func parseCriterion(v Value) criterion {
	s, ok := v.(string)
	if !ok {
		if _, blank := v.(BlankValue); blank {
			return criterion{op: "=", value: 0.0}
		}
		return criterion{op: "=", value: v}
	}
	c := criterion{op: "="}
	for _, op := range criterionOps {
		if strings.HasPrefix(s, op) {
			c.op, s = op, s[len(op):]
			break
		}
	}
	switch {
	case s == "":
		c.value = Blank
	case strings.EqualFold(s, "TRUE"), strings.EqualFold(s, "FALSE"):
		c.value = strings.EqualFold(s, "TRUE")
	default:
		if n, ok := parseNumber(s); ok {
			c.value = n
		} else if code, ok := xlrd.ErrorCodeFromText[strings.ToUpper(s)]; ok {
			c.value = ErrorValue{code}
		} else {
			c.value = s
			if c.op == "=" || c.op == "<>" {
				c.re = wildcardRegexp(s, true)
			}
		}
	}
	return c
}

func (c criterion) match(v Value) bool {
	if _, blank := c.value.(BlankValue); blank {
		_, isBlank := v.(BlankValue)
		empty := isBlank || v == ""
		switch c.op {
		case "=":
			return empty
		case "<>":
			return !empty
		}
		return false
	}
	if c.re != nil {
		s, ok := v.(string)
		hit := ok && c.re.MatchString(s)
		if c.op == "<>" {
			return !hit
		}
		return hit
	}
	if typeRank(v) != typeRank(c.value) || isError(v) != isError(c.value) {
		return c.op == "<>"
	}
	if _, blank := v.(BlankValue); blank {
		return c.op == "<>"
	}
	if e, ok := c.value.(ErrorValue); ok {
		hit := v == Value(e)
		if c.op == "<>" {
			return !hit
		}
		return hit && c.op == "="
	}
	d, e := compareValues(v, c.value)
	if e != nil {
		return false
	}
	switch c.op {
	case "<":
		return d < 0
	case "<=":
		return d <= 0
	case ">":
		return d > 0
	case ">=":
		return d >= 0
	case "<>":
		return d != 0
	}
	return d == 0
}

// wildcardRegexp compiles a pattern in which ? matches one character, *
// any run of characters, and ~ escapes the next character. Matching
// ignores case.
func wildcardRegexp(pattern string, anchored bool) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("(?is)")
	if anchored {
		b.WriteString("^")
	}
	rs := []rune(pattern)
	for i := 0; i < len(rs); i++ {
		switch r := rs[i]; {
		case r == '~' && i+1 < len(rs) && (rs[i+1] == '*' || rs[i+1] == '?' || rs[i+1] == '~'):
			i++
			b.WriteString(regexp.QuoteMeta(string(rs[i])))
		case r == '*':
			b.WriteString(".*")
		case r == '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	if anchored {
		b.WriteString("$")
	}
	return regexp.MustCompile(b.String())
}

// criteriaGrids checks that (range, criterion) pairs cover areas of one
// shape and returns the ranges as grids with their criteria.
func criteriaGrids(args []Value) ([]grid, []criterion, Value) {
	var grids []grid
	var crits []criterion
	rows, cols := -1, -1
	for i := 0; i+1 < len(args); i += 2 {
		g, e := toGrid(args[i])
		if e != nil {
			return nil, nil, e
		}
		r, c := g.dims()
		if rows >= 0 && (r != rows || c != cols) {
			return nil, nil, errValue
		}
		rows, cols = r, c
		grids = append(grids, g)
		crits = append(crits, parseCriterion(criterionValue(args[i+1])))
	}
	return grids, crits, nil
}

// criterionValue takes the value of a criterion argument; a reference
// gives the value of its first cell.
func criterionValue(v Value) Value {
	switch x := v.(type) {
	case *Reference:
		if !x.isArea() {
			return errValue
		}
		return x.at(0, 0)
	case *ArrayValue:
		return x.At(0, 0)
	case missingArg:
		return Blank
	}
	return v
}

// matchingCells calls fn with the position of every cell that meets all
// criteria.
func matchingCells(grids []grid, crits []criterion, fn func(i, j int)) {
	if len(grids) == 0 {
		return
	}
	rows, cols := grids[0].dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			ok := true
			for k, g := range grids {
				if !crits[k].match(g.at(i, j)) {
					ok = false
					break
				}
			}
			if ok {
				fn(i, j)
			}
		}
	}
}
