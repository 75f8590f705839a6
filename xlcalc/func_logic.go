package xlcalc

import "github.com/yamitzky/xlcalc-go/xlrd"

var logicFunctions = map[string]function{
	"IF":         fnIf,
	"CHOOSE":     fnChoose,
	"AND":        logical(true),
	"OR":         logical(false),
	"NOT":        fnNot,
	"TRUE":       func(*scope, []Value) Value { return true },
	"FALSE":      func(*scope, []Value) Value { return false },
	"IFERROR":    fnIfError,
	"ISERROR":    isTest(isError),
	"ISERR":      isTest(func(v Value) bool { return isError(v) && v != Value(errNA) }),
	"ISNA":       isTest(func(v Value) bool { return v == Value(errNA) }),
	"ISBLANK":    isTest(isKind[BlankValue]),
	"ISNUMBER":   isTest(isKind[float64]),
	"ISTEXT":     isTest(isKind[string]),
	"ISNONTEXT":  isTest(func(v Value) bool { return !isKind[string](v) }),
	"ISLOGICAL":  isTest(isKind[bool]),
	"ISREF":      fnIsRef,
	"NA":         func(*scope, []Value) Value { return errNA },
	"ERROR.TYPE": fnErrorType,
	"N":          fnN,
	"T":          fnT,
}

// fnIf is used when IF is called without the jumps that normally skip
// the branch not taken.
func fnIf(sc *scope, args []Value) Value {
	cond, e := sc.boolean(args[0])
	if e != nil {
		return e
	}
	if cond {
		return args[1]
	}
	if len(args) < 3 {
		return false
	}
	return args[2]
}

func fnChoose(sc *scope, args []Value) Value {
	k, e := sc.integer(args[0])
	if e != nil {
		return e
	}
	if k < 1 || k >= len(args) {
		return errValue
	}
	if _, ok := args[k].(missingArg); ok {
		return Blank
	}
	return args[k]
}

// logical builds AND (and set) or OR. Text in cells is skipped; text
// given directly must read as TRUE or FALSE.
func logical(and bool) function {
	return func(sc *scope, args []Value) Value {
		result, seen := and, false
		e := sc.walk(args, func(v Value, direct bool) Value {
			var b bool
			switch x := v.(type) {
			case ErrorValue:
				return x
			case bool:
				b = x
			case float64:
				b = x != 0
			case string:
				if !direct {
					return nil
				}
				var e Value
				if b, e = sc.boolean(x); e != nil {
					return e
				}
			default:
				return nil
			}
			seen = true
			if and {
				result = result && b
			} else {
				result = result || b
			}
			return nil
		})
		if e != nil {
			return e
		}
		if !seen {
			return errValue
		}
		return result
	}
}

func fnNot(sc *scope, args []Value) Value {
	b, e := sc.boolean(args[0])
	if e != nil {
		return e
	}
	return !b
}

func fnIfError(sc *scope, args []Value) Value {
	if isError(sc.scalar(args[0])) {
		return args[1]
	}
	return args[0]
}

func isTest(test func(Value) bool) function {
	return func(sc *scope, args []Value) Value {
		return test(sc.scalar(args[0]))
	}
}

func isKind[T any](v Value) bool {
	_, ok := v.(T)
	return ok
}

func fnIsRef(sc *scope, args []Value) Value {
	_, ok := args[0].(*Reference)
	return ok
}

var errorTypes = map[xlrd.ErrorCode]float64{
	xlrd.ErrNull:  1,
	xlrd.ErrDiv0:  2,
	xlrd.ErrValue: 3,
	xlrd.ErrRef:   4,
	xlrd.ErrName:  5,
	xlrd.ErrNum:   6,
	xlrd.ErrNA:    7,
}

func fnErrorType(sc *scope, args []Value) Value {
	if e, ok := sc.scalar(args[0]).(ErrorValue); ok {
		if n, ok := errorTypes[e.Code]; ok {
			return n
		}
	}
	return errNA
}

func fnN(sc *scope, args []Value) Value {
	switch x := sc.scalar(args[0]).(type) {
	case float64:
		return x
	case bool:
		return boolNumber(x)
	case ErrorValue:
		return x
	}
	return 0.0
}

func fnT(sc *scope, args []Value) Value {
	switch x := sc.scalar(args[0]).(type) {
	case string:
		return x
	case ErrorValue:
		return x
	}
	return ""
}
