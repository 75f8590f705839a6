package xlcalc

import (
	"math"
	"time"

	"github.com/yamitzky/xlcalc-go/xlrd"
)

var dateFunctions = map[string]function{
	"DATE":    fnDate,
	"TIME":    fnTime,
	"YEAR":    datePart(func(y, m, d int) int { return y }),
	"MONTH":   datePart(func(y, m, d int) int { return m }),
	"DAY":     datePart(func(y, m, d int) int { return d }),
	"HOUR":    timePart(func(h, m, s int) int { return h }),
	"MINUTE":  timePart(func(h, m, s int) int { return m }),
	"SECOND":  timePart(func(h, m, s int) int { return s }),
	"WEEKDAY": fnWeekday,
	"TODAY":   clockFunc(true),
	"NOW":     clockFunc(false),
	"EDATE":   monthShift(false),
	"EOMONTH": monthShift(true),
	"DAYS360": fnDays360,
}

func (sc *scope) datemode() int { return sc.ev.book.Datemode }

// serial reads a date serial number argument, which must not be
// negative.
func (sc *scope) serial(v Value) (float64, Value) {
	x, e := sc.number(v)
	if e != nil {
		return 0, e
	}
	if x < 0 {
		return 0, errNum
	}
	return x, nil
}

func (sc *scope) date(serial float64) (y, m, d int, e Value) {
	y, m, d, err := xlrd.SerialDate(serial, sc.datemode())
	if err != nil {
		return 0, 0, 0, errNum
	}
	return y, m, d, nil
}

func fnDate(sc *scope, args []Value) Value {
	var ymd [3]int
	for i := range ymd {
		var e Value
		if ymd[i], e = sc.integer(args[i]); e != nil {
			return e
		}
	}
	if ymd[0] < 0 || ymd[0] >= 10000 {
		return errNum
	}
	serial, err := xlrd.DateSerial(ymd[0], ymd[1], ymd[2], sc.datemode())
	if err != nil {
		return errNum
	}
	return serial
}

func fnTime(sc *scope, args []Value) Value {
	var hms [3]int
	for i := range hms {
		var e Value
		if hms[i], e = sc.integer(args[i]); e != nil {
			return e
		}
	}
	secs := hms[0]*3600 + hms[1]*60 + hms[2]
	if secs < 0 {
		return errNum
	}
	return float64(secs%86400) / 86400
}

func datePart(part func(y, m, d int) int) function {
	return func(sc *scope, args []Value) Value {
		x, e := sc.serial(args[0])
		if e != nil {
			return e
		}
		y, m, d, e := sc.date(x)
		if e != nil {
			return e
		}
		return float64(part(y, m, d))
	}
}

func timePart(part func(h, m, s int) int) function {
	return func(sc *scope, args []Value) Value {
		x, e := sc.serial(args[0])
		if e != nil {
			return e
		}
		return float64(part(xlrd.SerialTime(x)))
	}
}

// fnWeekday counts days the way Excel does, so serial 1 of the 1900
// system is a Sunday and the nonexistent 1900-02-29 is a Wednesday.
func fnWeekday(sc *scope, args []Value) Value {
	x, e := sc.serial(args[0])
	if e != nil {
		return e
	}
	kind := 1
	if given(args, 1) {
		if kind, e = sc.integer(args[1]); e != nil {
			return e
		}
	}
	days := int(math.Floor(x))
	if sc.datemode() == 1 {
		days += 1462
	}
	sunday0 := (days + 6) % 7
	switch kind {
	case 1:
		return float64(sunday0 + 1)
	case 2:
		return float64((sunday0+6)%7 + 1)
	case 3:
		return float64((sunday0 + 6) % 7)
	}
	return errNum
}

// clockFunc builds TODAY (dateOnly set) and NOW.
func clockFunc(dateOnly bool) function {
	return func(sc *scope, args []Value) Value {
		sc.volatile()
		x, err := xlrd.XldateFromTime(sc.ev.clock.Now(), sc.datemode())
		if err != nil {
			return errNum
		}
		if dateOnly {
			return math.Floor(x)
		}
		return x
	}
}

// daysIn is the length of a month, 1900-02 having 29 days in the 1900
// system.
func daysIn(year, month, datemode int) int {
	if year == 1900 && month == 2 && datemode == 0 {
		return 29
	}
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// monthShift builds EDATE, and EOMONTH with endOfMonth set.
func monthShift(endOfMonth bool) function {
	return func(sc *scope, args []Value) Value {
		x, e := sc.serial(args[0])
		if e != nil {
			return e
		}
		months, e := sc.integer(args[1])
		if e != nil {
			return e
		}
		y, m, d, e := sc.date(x)
		if e != nil {
			return e
		}
		t := time.Date(y, time.Month(m+months), 1, 0, 0, 0, 0, time.UTC)
		last := daysIn(t.Year(), int(t.Month()), sc.datemode())
		if endOfMonth {
			d = last
		} else {
			d = min(max(d, 1), last)
		}
		serial, err := xlrd.DateSerial(t.Year(), int(t.Month()), d, sc.datemode())
		if err != nil {
			return errNum
		}
		return serial
	}
}

// fnDays360 counts days between two dates on a calendar of twelve
// 30-day months, by the US (NASD) method or with a true third argument
// the European one.
func fnDays360(sc *scope, args []Value) Value {
	start, e := sc.serial(args[0])
	if e != nil {
		return e
	}
	end, e := sc.serial(args[1])
	if e != nil {
		return e
	}
	european, e := sc.optBool(args, 2, false)
	if e != nil {
		return e
	}
	y1, m1, d1, e := sc.date(start)
	if e != nil {
		return e
	}
	y2, m2, d2, e := sc.date(end)
	if e != nil {
		return e
	}
	if european {
		d1, d2 = min(d1, 30), min(d2, 30)
	} else {
		startAtMonthEnd := d1 == daysIn(y1, m1, sc.datemode())
		d1 = min(d1, 30)
		if startAtMonthEnd {
			d1 = 30
		}
		if d2 > 30 {
			if d1 < 30 {
				m2, d2 = m2+1, 1
			} else {
				d2 = 30
			}
		}
	}
	return float64((y2-y1)*360 + (m2-m1)*30 + (d2 - d1))
}
