package xlrd

import (
	"fmt"
	"math"
	"time"
)

var jdnDelta = [2]int{2415080 - 61, 2416482 - 1}

const (
	xldaysTooLarge1900 = 2958466
	xldaysTooLarge1904 = 2958466 - 1462
)

var (
	epoch1904       = time.Date(1904, 1, 1, 0, 0, 0, 0, time.UTC)
	epoch1900       = time.Date(1899, 12, 31, 0, 0, 0, 0, time.UTC)
	epoch1900Minus1 = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
)

var daysInMonth = [13]int{0, 31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// XLDateError is the base type for all datetime-related errors.
type XLDateError struct {
	Message string
}

func (e *XLDateError) Error() string {
	return e.Message
}

// XLDateNegative indicates that xldate < 0.00
type XLDateNegative struct {
	XLDateError
}

// XLDateAmbiguous indicates the 1900 leap-year problem (datemode == 0 and 1.0 <= xldate < 61.0)
type XLDateAmbiguous struct {
	XLDateError
}

// XLDateTooLarge indicates Gregorian year 10000 or later
type XLDateTooLarge struct {
	XLDateError
}

// XLDateBadDatemode indicates that datemode arg is neither 0 nor 1
type XLDateBadDatemode struct {
	XLDateError
}

// XLDateBadTuple indicates a bad tuple parameter
type XLDateBadTuple struct {
	XLDateError
}

func badDatemode(datemode int) error {
	return &XLDateBadDatemode{XLDateError{Message: fmt.Sprintf("Invalid datemode: %d", datemode)}}
}

// leap returns 1 if year is a leap year, 0 otherwise.
func leap(y int) int {
	if y%4 != 0 {
		return 0
	}
	if y%100 != 0 {
		return 1
	}
	if y%400 != 0 {
		return 0
	}
	return 1
}

// splitSeconds turns the fraction of a day into hour, minute and
// second, rounding to the nearest second. carry is 1 when the fraction
// rounds up to a whole day.
func splitSeconds(frac float64) (hour, minute, second, carry int) {
	seconds := int(math.Round(frac * 86400.0))
	if seconds >= 86400 {
		return 0, 0, 0, 1
	}
	minutes := seconds / 60
	return minutes / 60, minutes % 60, seconds % 60, 0
}

// XldateAsTuple converts an Excel number (presumed to represent a date, a datetime or a time)
// into a tuple suitable for feeding to datetime constructors.
//
// xldate: The Excel number
// datemode: 0: 1900-based, 1: 1904-based.
//
// Returns: Gregorian (year, month, day, hour, minute, nearest_second).
//
// Special case: If 0.0 <= xldate < 1.0, it is assumed to represent a time;
// (0, 0, 0, hour, minute, second) will be returned.
func XldateAsTuple(xldate float64, datemode int) (int, int, int, int, int, int, error) {
	if datemode != 0 && datemode != 1 {
		return 0, 0, 0, 0, 0, 0, badDatemode(datemode)
	}
	if xldate == 0.00 {
		return 0, 0, 0, 0, 0, 0, nil
	}
	if xldate < 0.00 {
		return 0, 0, 0, 0, 0, 0, &XLDateNegative{XLDateError{Message: fmt.Sprintf("xldate < 0.00: %f", xldate)}}
	}
	xldays := int(xldate)
	hour, minute, second, carry := splitSeconds(xldate - float64(xldays))
	xldays += carry

	xldaysTooLarge := xldaysTooLarge1900
	if datemode == 1 {
		xldaysTooLarge = xldaysTooLarge1904
	}
	if xldays >= xldaysTooLarge {
		return 0, 0, 0, 0, 0, 0, &XLDateTooLarge{XLDateError{Message: fmt.Sprintf("xldate too large: %f", xldate)}}
	}
	if xldays == 0 {
		return 0, 0, 0, hour, minute, second, nil
	}
	if xldays < 61 && datemode == 0 {
		return 0, 0, 0, 0, 0, 0, &XLDateAmbiguous{XLDateError{Message: fmt.Sprintf("1900 leap-year problem: %f", xldate)}}
	}

	jdn := xldays + jdnDelta[datemode]
	yreg := ((((jdn*4+274277)/146097)*3/4)+jdn+1363)*4 + 3
	mp := ((yreg%1461)/4)*535 + 333
	d := ((mp % 16384) / 535) + 1
	mp >>= 14
	if mp >= 10 {
		return (yreg / 1461) - 4715, mp - 9, d, hour, minute, second, nil
	}
	return (yreg / 1461) - 4716, mp + 3, d, hour, minute, second, nil
}

// XldateAsDatetime converts an Excel number (presumed to represent a date, a datetime or a time)
// into a time.Time value.
//
// xldate: The Excel number
// datemode: 0: 1900-based, 1: 1904-based.
func XldateAsDatetime(xldate float64, datemode int) (time.Time, error) {
	var epoch time.Time
	switch {
	case datemode == 1:
		epoch = epoch1904
	case xldate < 60:
		epoch = epoch1900
	default:
		// Workaround Excel 1900 leap year bug by adjusting the epoch.
		epoch = epoch1900Minus1
	}

	days := int(xldate)
	fraction := xldate - float64(days)

	// Get the integer and decimal seconds in Excel's millisecond resolution.
	millis := int(math.Round(fraction * 86400000.0))
	return epoch.AddDate(0, 0, days).Add(time.Duration(millis) * time.Millisecond), nil
}

// XldateFromDateTuple converts a date tuple to an Excel date number.
func XldateFromDateTuple(year, month, day int, datemode int) (float64, error) {
	if datemode != 0 && datemode != 1 {
		return 0.0, badDatemode(datemode)
	}
	if year == 0 && month == 0 && day == 0 {
		return 0.00, nil
	}

	if year < 1900 || year > 9999 {
		return 0.0, &XLDateBadTuple{XLDateError{Message: fmt.Sprintf("Invalid year: (%d, %d, %d)", year, month, day)}}
	}
	if month < 1 || month > 12 {
		return 0.0, &XLDateBadTuple{XLDateError{Message: fmt.Sprintf("Invalid month: (%d, %d, %d)", year, month, day)}}
	}
	maxDay := daysInMonth[month]
	if month == 2 && leap(year) == 1 {
		maxDay = 29
	}
	if day < 1 || day > maxDay {
		return 0.0, &XLDateBadTuple{XLDateError{Message: fmt.Sprintf("Invalid day: (%d, %d, %d)", year, month, day)}}
	}

	yp := year + 4716
	var mp int
	if month <= 2 {
		yp--
		mp = month + 9
	} else {
		mp = month - 3
	}
	jdn := (1461 * yp / 4) + ((979*mp + 16) / 32) + day - 1364 - (((yp + 184) / 100) * 3 / 4)
	xldays := jdn - jdnDelta[datemode]
	if xldays <= 0 {
		return 0.0, &XLDateBadTuple{XLDateError{Message: fmt.Sprintf("Invalid (year, month, day): (%d, %d, %d)", year, month, day)}}
	}
	if xldays < 61 && datemode == 0 {
		return 0.0, &XLDateAmbiguous{XLDateError{Message: fmt.Sprintf("Before 1900-03-01: (%d, %d, %d)", year, month, day)}}
	}
	return float64(xldays), nil
}

// XldateFromTimeTuple converts a time tuple to an Excel date number.
func XldateFromTimeTuple(hour, minute, second int) (float64, error) {
	if hour < 0 || hour >= 24 || minute < 0 || minute >= 60 || second < 0 || second >= 60 {
		return 0.0, &XLDateBadTuple{XLDateError{Message: fmt.Sprintf("Invalid (hour, minute, second): (%d, %d, %d)", hour, minute, second)}}
	}
	return ((float64(second)/60.0+float64(minute))/60.0 + float64(hour)) / 24.0, nil
}

// XldateFromDatetimeTuple converts a datetime tuple to an Excel date number.
func XldateFromDatetimeTuple(year, month, day, hour, minute, second int, datemode int) (float64, error) {
	datePart, err := XldateFromDateTuple(year, month, day, datemode)
	if err != nil {
		return 0.0, err
	}
	timePart, err := XldateFromTimeTuple(hour, minute, second)
	if err != nil {
		return 0.0, err
	}
	return datePart + timePart, nil
}

// DateSerial returns the serial number of a date the way the DATE
// worksheet function computes it: months and days outside their usual
// range roll over into the neighbouring year or month, years below 1900
// are taken as offsets from 1900, and in the 1900 system serials from
// 1900-03-01 on count the nonexistent 1900-02-29.
func DateSerial(year, month, day int, datemode int) (float64, error) {
	if datemode != 0 && datemode != 1 {
		return 0, badDatemode(datemode)
	}
	if year >= 0 && year < 1900 {
		year += 1900
	}
	t := time.Date(year, time.Month(1), 1, 0, 0, 0, 0, time.UTC).AddDate(0, month-1, day-1)
	if t.Year() > 9999 {
		return 0, &XLDateTooLarge{XLDateError{Message: fmt.Sprintf("date too large: (%d, %d, %d)", year, month, day)}}
	}
	var serial int
	if datemode == 1 {
		serial = daysBetween(epoch1904, t)
	} else {
		serial = daysBetween(epoch1900, t)
		if serial >= 60 {
			serial++
		}
	}
	if serial < 0 {
		return 0, &XLDateNegative{XLDateError{Message: fmt.Sprintf("date before the epoch: (%d, %d, %d)", year, month, day)}}
	}
	return float64(serial), nil
}

func daysBetween(from, to time.Time) int {
	return int((to.Unix() - from.Unix()) / 86400)
}

// SerialDate splits the whole part of a serial number into year, month
// and day. In the 1900 system serial 0 is 1900-01-00 and serial 60 is
// the nonexistent 1900-02-29, as the worksheet functions report them.
func SerialDate(serial float64, datemode int) (year, month, day int, err error) {
	if datemode != 0 && datemode != 1 {
		return 0, 0, 0, badDatemode(datemode)
	}
	if serial < 0 {
		return 0, 0, 0, &XLDateNegative{XLDateError{Message: fmt.Sprintf("xldate < 0.00: %f", serial)}}
	}
	days := int(serial)
	limit := xldaysTooLarge1900
	if datemode == 1 {
		limit = xldaysTooLarge1904
	}
	if days >= limit {
		return 0, 0, 0, &XLDateTooLarge{XLDateError{Message: fmt.Sprintf("xldate too large: %f", serial)}}
	}
	var t time.Time
	switch {
	case datemode == 1:
		t = epoch1904.AddDate(0, 0, days)
	case days == 0:
		return 1900, 1, 0, nil
	case days == 60:
		return 1900, 2, 29, nil
	case days < 60:
		t = epoch1900.AddDate(0, 0, days)
	default:
		t = epoch1900Minus1.AddDate(0, 0, days)
	}
	return t.Year(), int(t.Month()), t.Day(), nil
}

// SerialTime returns the time of day held in the fraction of a serial
// number, rounded to the nearest second.
func SerialTime(serial float64) (hour, minute, second int) {
	frac := serial - math.Floor(serial)
	hour, minute, second, _ = splitSeconds(frac)
	return hour, minute, second
}

// XldateFromTime converts a time to a serial number, keeping
// millisecond precision. Dates before 1900-03-01 are rejected in the
// 1900 system.
func XldateFromTime(t time.Time, datemode int) (float64, error) {
	serial, err := XldateFromDatetimeTuple(t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second(), datemode)
	if err != nil {
		return 0, err
	}
	return serial + float64(t.Nanosecond()/int(time.Millisecond))/86400000.0, nil
}
