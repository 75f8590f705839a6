package xlcalc

import "testing"

func TestParseNumber(t *testing.T) {
	tests := []struct {
		text string
		x    float64
		ok   bool
	}{
		{"42", 42, true},
		{"  42  ", 42, true},
		{"-1.5", -1.5, true},
		{"+.5", 0.5, true},
		{"$-1,234.5", -1234.5, true},
		{"1,000,000", 1e6, true},
		{"12%", 0.12, true},
		{"12 %", 0.12, true},
		{"1e3", 1000, true},
		{"2.5E-2", 0.025, true},
		{"", 0, false},
		{".", 0, false},
		{"abc", 0, false},
		{"1,00", 0, false},
		{",100", 0, false},
		{"+-1", 0, false},
		{"$$1", 0, false},
		{"1e", 0, false},
		{"1 2", 0, false},
		{"12%%", 0, false},
	}
	for _, test := range tests {
		x, ok := parseNumber(test.text)
		if ok != test.ok || (ok && !sameValue(x, test.x)) {
			t.Errorf("parseNumber(%q) = %v, %v, expected %v, %v", test.text, x, ok, test.x, test.ok)
		}
	}
}

func TestNumberText(t *testing.T) {
	tests := []struct {
		x    float64
		text string
	}{
		{0, "0"},
		{3, "3"},
		{-2.5, "-2.5"},
		{0.1 + 0.2, "0.3"},
	}
	for _, test := range tests {
		if s := numberText(test.x); s != test.text {
			t.Errorf("numberText(%v) = %q, expected %q", test.x, s, test.text)
		}
	}
}

func TestCompareValues(t *testing.T) {
	tests := []struct {
		a, b Value
		d    int
	}{
		{1.0, 2.0, -1},
		{0.1 + 0.2, 0.3, 0},
		{"a", "B", -1},
		{"abc", "ABC", 0},
		{1e10, "a", -1},
		{"z", true, -1},
		{true, false, 1},
		{Blank, "", 0},
		{Blank, 0.0, 0},
		{Blank, false, 0},
		{Blank, -1.0, 1},
	}
	for _, test := range tests {
		d, e := compareValues(test.a, test.b)
		if e != nil || d != test.d {
			t.Errorf("compareValues(%v, %v) = %d, %v, expected %d", show(test.a), show(test.b), d, e, test.d)
		}
	}
	if _, e := compareValues(1.0, errNA); e != errNA {
		t.Errorf("compareValues(1, #N/A) error = %v, expected #N/A", e)
	}
}

func TestCriterionMatch(t *testing.T) {
	tests := []struct {
		criterion Value
		v         Value
		match     bool
	}{
		{">=10", 10.0, true},
		{">=10", 9.0, false},
		{">=10", "10", false},
		{"<5", 4.5, true},
		{"<>3", 4.0, true},
		{"<>3", 3.0, false},
		{"<>3", "x", true},
		{3.0, 3.0, true},
		{3.0, "3", false},
		{"3", 3.0, true},
		{"a*", "Apple", true},
		{"a*", "banana", false},
		{"a*", 1.0, false},
		{"?b", "ab", true},
		{"?b", "abb", false},
		{"<>a*", "banana", true},
		{"<>a*", "apple", false},
		{"~*", "*", true},
		{"~*", "x", false},
		{">b", "C", true},
		{">b", "a", false},
		{"", Blank, true},
		{"", "", true},
		{"", 0.0, false},
		{"<>", "x", true},
		{"<>", Blank, false},
		{"TRUE", true, true},
		{"true", 1.0, false},
		{"#N/A", errNA, true},
		{"#N/A", 1.0, false},
		{"<>#N/A", errDiv0, true},
		{Blank, 0.0, true},
		{Blank, Blank, false},
	}
	for _, test := range tests {
		if m := parseCriterion(test.criterion).match(test.v); m != test.match {
			t.Errorf("criterion %v matches %v = %v, expected %v", show(test.criterion), show(test.v), m, test.match)
		}
	}
}

func TestWildcardRegexp(t *testing.T) {
	tests := []struct {
		pattern, text string
		anchored      bool
		match         bool
	}{
		{"a*c", "ABC", true, true},
		{"a*c", "abcd", true, false},
		{"a*c", "xabcd", false, true},
		{"a.c", "abc", true, false},
		{"a.c", "a.c", true, true},
		{"~?", "?", true, true},
		{"~~", "~", true, true},
		{"(x)", "(X)", true, true},
	}
	for _, test := range tests {
		if m := wildcardRegexp(test.pattern, test.anchored).MatchString(test.text); m != test.match {
			t.Errorf("wildcard %q matches %q = %v, expected %v", test.pattern, test.text, m, test.match)
		}
	}
}
