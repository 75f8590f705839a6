package xlcalc

import (
	"math"
	"sort"
)

var statFunctions = map[string]function{
	"COUNT":      fnCount,
	"COUNTA":     fnCountA,
	"COUNTBLANK": fnCountBlank,
	"COUNTIF":    fnCountIf,
	"COUNTIFS":   fnCountIfs,
	"AVERAGE":    aggregate(false, mean),
	"AVERAGEA":   aggregate(true, mean),
	"AVERAGEIF":  fnAverageIf,
	"MIN":        aggregate(false, minimum),
	"MAX":        aggregate(false, maximum),
	"MINA":       aggregate(true, minimum),
	"MAXA":       aggregate(true, maximum),
	"MEDIAN":     aggregate(false, median),
	"STDEV":      aggregate(false, func(xs []float64) Value { return root(variance(xs, true)) }),
	"STDEVP":     aggregate(false, func(xs []float64) Value { return root(variance(xs, false)) }),
	"VAR":        aggregate(false, func(xs []float64) Value { return variance(xs, true) }),
	"VARP":       aggregate(false, func(xs []float64) Value { return variance(xs, false) }),
	"LARGE":      kth(true),
	"SMALL":      kth(false),
}

// aggregate builds a statistical function from a reduction of the
// numbers of its arguments.
func aggregate(all bool, reduce func([]float64) Value) function {
	return func(sc *scope, args []Value) Value {
		xs, e := sc.numbers(args, all)
		if e != nil {
			return e
		}
		return reduce(xs)
	}
}

func mean(xs []float64) Value {
	if len(xs) == 0 {
		return errDiv0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func minimum(xs []float64) Value {
	if len(xs) == 0 {
		return 0.0
	}
	m := xs[0]
	for _, x := range xs[1:] {
		m = math.Min(m, x)
	}
	return m
}

func maximum(xs []float64) Value {
	if len(xs) == 0 {
		return 0.0
	}
	m := xs[0]
	for _, x := range xs[1:] {
		m = math.Max(m, x)
	}
	return m
}

func median(xs []float64) Value {
	if len(xs) == 0 {
		return errNum
	}
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// variance is the sample variance, or with sample unset the population
// variance.
func variance(xs []float64, sample bool) Value {
	n := float64(len(xs))
	if n == 0 || (sample && n < 2) {
		return errDiv0
	}
	m := mean(xs).(float64)
	ss := 0.0
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	if sample {
		return ss / (n - 1)
	}
	return ss / n
}

func root(v Value) Value {
	if x, ok := v.(float64); ok {
		return math.Sqrt(x)
	}
	return v
}

func kth(largest bool) function {
	return func(sc *scope, args []Value) Value {
		xs, e := sc.numbers(args[:1], false)
		if e != nil {
			return e
		}
		k, e := sc.number(args[1])
		if e != nil {
			return e
		}
		n := int(math.Ceil(k))
		if n < 1 || n > len(xs) {
			return errNum
		}
		sort.Float64s(xs)
		if largest {
			return xs[len(xs)-n]
		}
		return xs[n-1]
	}
}

// fnCount counts numbers. Arguments given directly count when they can
// be read as numbers, omitted ones included.
func fnCount(sc *scope, args []Value) Value {
	n := 0
	sc.walk(args, func(v Value, direct bool) Value {
		switch x := v.(type) {
		case float64:
			n++
		case bool, missingArg:
			if direct {
				n++
			}
		case string:
			if _, ok := parseNumber(x); ok && direct {
				n++
			}
		}
		return nil
	})
	return float64(n)
}

func fnCountA(sc *scope, args []Value) Value {
	n := 0
	sc.walk(args, func(v Value, direct bool) Value {
		if _, blank := v.(BlankValue); !blank {
			n++
		}
		return nil
	})
	return float64(n)
}

// fnCountBlank counts empty cells and cells holding empty text.
func fnCountBlank(sc *scope, args []Value) Value {
	r, ok := args[0].(*Reference)
	if !ok {
		return errValue
	}
	filled := 0
	r.each(func(v Value) bool {
		switch v.(type) {
		case BlankValue:
		default:
			if v != "" {
				filled++
			}
		}
		return true
	})
	return float64(r.size() - filled)
}

func fnCountIf(sc *scope, args []Value) Value {
	return countMatching(args)
}

func fnCountIfs(sc *scope, args []Value) Value {
	if len(args)%2 != 0 {
		return errValue
	}
	return countMatching(args)
}

func countMatching(args []Value) Value {
	grids, crits, e := criteriaGrids(args)
	if e != nil {
		return e
	}
	n := 0
	matchingCells(grids, crits, func(int, int) { n++ })
	return float64(n)
}

func fnAverageIf(sc *scope, args []Value) Value {
	total, count, e := ifAggregate(args)
	if e != nil {
		return e
	}
	if count == 0 {
		return errDiv0
	}
	return total / float64(count)
}
