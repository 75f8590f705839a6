package xlcalc

import "math"

var financialFunctions = map[string]function{
	"PMT":  annuity(5, func(a []float64) Value { return checkNumber(pmt(a[0], a[1], a[2], a[3], a[4])) }),
	"FV":   annuity(5, func(a []float64) Value { return checkNumber(fv(a[0], a[1], a[2], a[3], a[4])) }),
	"PV":   annuity(5, func(a []float64) Value { return checkNumber(pv(a[0], a[1], a[2], a[3], a[4])) }),
	"NPER": annuity(5, func(a []float64) Value { return nper(a[0], a[1], a[2], a[3], a[4]) }),
	"IPMT": annuity(6, func(a []float64) Value { return periodPayment(a, true) }),
	"PPMT": annuity(6, func(a []float64) Value { return periodPayment(a, false) }),
	"NPV":  fnNpv,
}

// annuity builds a function over n numeric arguments; omitted trailing
// ones (future value, payment type) are 0.
func annuity(n int, f func([]float64) Value) function {
	return func(sc *scope, args []Value) Value {
		a := make([]float64, n)
		for i := range args {
			x, e := sc.optNumber(args, i, 0)
			if e != nil {
				return e
			}
			a[i] = x
		}
		return f(a)
	}
}

// typeFactor is 1 + rate for payments at the start of a period (type
// other than 0), 1 otherwise.
func typeFactor(rate, typ float64) float64 {
	if typ != 0 {
		return 1 + rate
	}
	return 1
}

func pmt(rate, n, pv, fv, typ float64) float64 {
	if rate == 0 {
		return -(pv + fv) / n
	}
	g := math.Pow(1+rate, n)
	return -(pv*g + fv) * rate / (typeFactor(rate, typ) * (g - 1))
}

func fv(rate, n, pmt, pv, typ float64) float64 {
	if rate == 0 {
		return -(pv + pmt*n)
	}
	g := math.Pow(1+rate, n)
	return -(pv*g + pmt*typeFactor(rate, typ)*(g-1)/rate)
}

func pv(rate, n, pmt, fv, typ float64) float64 {
	if rate == 0 {
		return -(fv + pmt*n)
	}
	g := math.Pow(1+rate, n)
	return -(fv + pmt*typeFactor(rate, typ)*(g-1)/rate) / g
}

func nper(rate, pmt, pv, fv, typ float64) Value {
	if rate == 0 {
		if pmt == 0 {
			return errNum
		}
		return checkNumber(-(pv + fv) / pmt)
	}
	p := pmt * typeFactor(rate, typ)
	x := (p - fv*rate) / (p + pv*rate)
	if x <= 0 {
		return errNum
	}
	return checkNumber(math.Log(x) / math.Log(1+rate))
}

// periodPayment computes IPMT (interest set) or PPMT from rate, period,
// periods, present value, future value and type.
func periodPayment(a []float64, interest bool) Value {
	rate, per, n, present, future, typ := a[0], a[1], a[2], a[3], a[4], a[5]
	if per < 1 || per > n {
		return errNum
	}
	payment := pmt(rate, n, present, future, typ)
	var ipmt float64
	switch {
	case per == 1 && typ != 0:
		ipmt = 0
	case per == 1:
		ipmt = -present * rate
	case typ != 0:
		ipmt = (fv(rate, per-2, payment, present, 1) - payment) * rate
	default:
		ipmt = fv(rate, per-1, payment, present, 0) * rate
	}
	if interest {
		return checkNumber(ipmt)
	}
	return checkNumber(payment - ipmt)
}

func fnNpv(sc *scope, args []Value) Value {
	rate, e := sc.number(args[0])
	if e != nil {
		return e
	}
	if rate == -1 {
		return errDiv0
	}
	xs, e := sc.numbers(args[1:], false)
	if e != nil {
		return e
	}
	sum := 0.0
	for i, x := range xs {
		sum += x / math.Pow(1+rate, float64(i+1))
	}
	return checkNumber(sum)
}
