package xlrd

import (
	"errors"
	"math"
	"testing"
	"time"
)

// Serial numbers and the dates Excel shows for them.
var xldateTests = []struct {
	xldate   float64
	datemode int
	date     [6]int
}{
	{2741, 0, [6]int{1907, 7, 3, 0, 0, 0}},
	{38406, 0, [6]int{2005, 2, 23, 0, 0, 0}},
	{32266, 0, [6]int{1988, 5, 3, 0, 0, 0}},
	{2741.273611, 0, [6]int{1907, 7, 3, 6, 34, 0}},
	{38406.538889, 0, [6]int{2005, 2, 23, 12, 56, 0}},
	{32266.741123, 0, [6]int{1988, 5, 3, 17, 47, 13}},
	{36526, 0, [6]int{2000, 1, 1, 0, 0, 0}},
	{2958465, 0, [6]int{9999, 12, 31, 0, 0, 0}},
	{35064, 1, [6]int{2000, 1, 1, 0, 0, 0}},
	{243, 1, [6]int{1904, 8, 31, 0, 0, 0}},
	{2957003, 1, [6]int{9999, 12, 31, 0, 0, 0}},
	{0.273611, 0, [6]int{0, 0, 0, 6, 34, 0}},
}

func TestXldateAsTuple(t *testing.T) {
	for _, tt := range xldateTests {
		y, mo, d, h, mi, s, err := XldateAsTuple(tt.xldate, tt.datemode)
		if err != nil {
			t.Errorf("XldateAsTuple(%v, %d) error = %v", tt.xldate, tt.datemode, err)
			continue
		}
		if got := [6]int{y, mo, d, h, mi, s}; got != tt.date {
			t.Errorf("XldateAsTuple(%v, %d) = %v, expected %v", tt.xldate, tt.datemode, got, tt.date)
		}
	}
}

func TestXldateAsTupleErrors(t *testing.T) {
	tests := []struct {
		xldate   float64
		datemode int
		target   interface{}
	}{
		{-1, 0, new(*XLDateNegative)},
		{30, 0, new(*XLDateAmbiguous)},
		// rounds up to day 1
		{0.99999998842592586, 0, new(*XLDateAmbiguous)},
		{2958466, 0, new(*XLDateTooLarge)},
		{2958466 - 1462, 1, new(*XLDateTooLarge)},
		{1, 2, new(*XLDateBadDatemode)},
	}
	for _, tt := range tests {
		_, _, _, _, _, _, err := XldateAsTuple(tt.xldate, tt.datemode)
		if !errors.As(err, tt.target) {
			t.Errorf("XldateAsTuple(%v, %d) error = %v, expected %T", tt.xldate, tt.datemode, err, tt.target)
		}
	}
}

func TestXldateFromDatetimeTuple(t *testing.T) {
	for _, tt := range xldateTests {
		if tt.date[0] < 1900 {
			continue
		}
		d := tt.date
		got, err := XldateFromDatetimeTuple(d[0], d[1], d[2], d[3], d[4], d[5], tt.datemode)
		if err != nil {
			t.Errorf("XldateFromDatetimeTuple(%v, %d) error = %v", d, tt.datemode, err)
			continue
		}
		if math.Abs(got-tt.xldate) > 0.000001 {
			t.Errorf("XldateFromDatetimeTuple(%v, %d) = %f, expected %f", d, tt.datemode, got, tt.xldate)
		}
	}

	bad := [][6]int{
		{1899, 12, 31, 0, 0, 0},
		{2000, 13, 1, 0, 0, 0},
		{1900, 2, 29, 0, 0, 0},
		{2001, 2, 29, 0, 0, 0},
		{2000, 1, 1, 24, 0, 0},
		{2000, 1, 1, 0, 60, 0},
	}
	for _, d := range bad {
		if _, err := XldateFromDatetimeTuple(d[0], d[1], d[2], d[3], d[4], d[5], 0); err == nil {
			t.Errorf("XldateFromDatetimeTuple(%v, 0) returned no error", d)
		}
	}
	if _, err := XldateFromDateTuple(1900, 2, 1, 0); err == nil {
		t.Errorf("XldateFromDateTuple(1900, 2, 1, 0) returned no error")
	}
}

func TestXldateAsDatetime(t *testing.T) {
	tests := []struct {
		xldate   float64
		datemode int
		expected string
	}{
		{0, 0, "1899-12-31T00:00:00.000"},
		{59.09111094906, 0, "1900-02-28T02:11:11.986"},
		{61.24078782403, 0, "1900-03-01T05:46:44.068"},
		{30188.010650613425, 0, "1982-08-25T00:15:20.213"},
		{483014.13065105322, 0, "3222-06-11T03:08:08.251"},
		{2958465.999988426, 0, "9999-12-31T23:59:59.000"},
		{0.50681252314814818, 0, "1899-12-31T12:09:48.602"},
		{0.99999998842592586, 0, "1899-12-31T23:59:59.999"},
		{0, 1, "1904-01-01T00:00:00.000"},
		{34757, 1, "1999-02-28T00:00:00.000"},
		{181526, 1, "2400-12-31T00:00:00.000"},
	}
	for _, tt := range tests {
		expected, err := time.Parse("2006-01-02T15:04:05.000", tt.expected)
		if err != nil {
			t.Fatalf("bad expected time %s: %v", tt.expected, err)
		}
		got, err := XldateAsDatetime(tt.xldate, tt.datemode)
		if err != nil {
			t.Errorf("XldateAsDatetime(%v, %d) error = %v", tt.xldate, tt.datemode, err)
			continue
		}
		if diff := got.Sub(expected); diff > time.Millisecond || diff < -time.Millisecond {
			t.Errorf("XldateAsDatetime(%v, %d) = %v, expected %v", tt.xldate, tt.datemode, got, expected)
		}
	}
}

func TestXldateFromTime(t *testing.T) {
	tests := []struct {
		t        time.Time
		datemode int
		expected float64
	}{
		{time.Date(2008, 1, 1, 12, 0, 0, 0, time.UTC), 0, 39448.5},
		{time.Date(2008, 1, 1, 0, 0, 0, 500*int(time.Millisecond), time.UTC), 0, 39448 + 0.5/86400},
		{time.Date(2008, 1, 1, 6, 0, 0, 0, time.UTC), 1, 37986.25},
	}
	for _, tt := range tests {
		got, err := XldateFromTime(tt.t, tt.datemode)
		if err != nil {
			t.Errorf("XldateFromTime(%v, %d) error = %v", tt.t, tt.datemode, err)
			continue
		}
		if math.Abs(got-tt.expected) > 1e-9 {
			t.Errorf("XldateFromTime(%v, %d) = %v, expected %v", tt.t, tt.datemode, got, tt.expected)
		}
	}
}

func TestDateSerial(t *testing.T) {
	tests := []struct {
		year, month, day int
		datemode         int
		want             float64
	}{
		{1900, 1, 1, 0, 1},
		{1900, 2, 28, 0, 59},
		{1900, 3, 1, 0, 61},
		{2005, 2, 23, 0, 38406},
		{2004, 14, 23, 0, 38406},
		{2005, 1, 54, 0, 38406},
		{105, 2, 23, 0, 38406},
		{2008, -3, 2, 0, 39327},
		{1904, 1, 2, 1, 1},
		{2005, 2, 23, 1, 38406 - 1462},
		{1899, 12, 30, 0, 693961},
		{1900, 1, 0, 0, 0},
	}
	for _, tt := range tests {
		got, err := DateSerial(tt.year, tt.month, tt.day, tt.datemode)
		if err != nil {
			t.Errorf("DateSerial(%d, %d, %d, %d) error = %v", tt.year, tt.month, tt.day, tt.datemode, err)
			continue
		}
		if got != tt.want {
			t.Errorf("DateSerial(%d, %d, %d, %d) = %v, want %v", tt.year, tt.month, tt.day, tt.datemode, got, tt.want)
		}
	}
	negative := []struct {
		year, month, day, datemode int
	}{
		{1900, 1, -1, 0},
		{-1, 1, 1, 0},
		{1903, 12, 31, 1},
	}
	for _, tt := range negative {
		_, err := DateSerial(tt.year, tt.month, tt.day, tt.datemode)
		var neg *XLDateNegative
		if !errors.As(err, &neg) {
			t.Errorf("DateSerial(%d, %d, %d, %d) error = %v, expected *XLDateNegative", tt.year, tt.month, tt.day, tt.datemode, err)
		}
	}
	if _, err := DateSerial(10000, 1, 1, 0); err == nil {
		t.Errorf("DateSerial(10000, 1, 1, 0) returned no error")
	}
}

func TestSerialDate(t *testing.T) {
	tests := []struct {
		serial   float64
		datemode int
		want     [3]int
	}{
		{0, 0, [3]int{1900, 1, 0}},
		{1, 0, [3]int{1900, 1, 1}},
		{59, 0, [3]int{1900, 2, 28}},
		{60, 0, [3]int{1900, 2, 29}},
		{61, 0, [3]int{1900, 3, 1}},
		{38406.75, 0, [3]int{2005, 2, 23}},
		{0, 1, [3]int{1904, 1, 1}},
		{38406 - 1462, 1, [3]int{2005, 2, 23}},
	}
	for _, tt := range tests {
		y, m, d, err := SerialDate(tt.serial, tt.datemode)
		if err != nil {
			t.Errorf("SerialDate(%v, %d) error = %v", tt.serial, tt.datemode, err)
			continue
		}
		if got := [3]int{y, m, d}; got != tt.want {
			t.Errorf("SerialDate(%v, %d) = %v, want %v", tt.serial, tt.datemode, got, tt.want)
		}
	}
	if _, _, _, err := SerialDate(-1, 0); err == nil {
		t.Errorf("SerialDate(-1, 0) returned no error")
	}
}

func TestSerialTime(t *testing.T) {
	h, m, s := SerialTime(38406.538889)
	if h != 12 || m != 56 || s != 0 {
		t.Errorf("SerialTime(38406.538889) = %d:%d:%d, want 12:56:0", h, m, s)
	}
}
