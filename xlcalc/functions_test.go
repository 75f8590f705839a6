package xlcalc

import (
	"testing"

	"github.com/yamitzky/xlcalc-go/xlrd"
)

// gridBook has a 3x4 block of numbers on Sheet1 and Sheet2 and a 2x3
// block on a sheet with a quote in its name.
func gridBook(t *testing.T) *xlrd.Book {
	t.Helper()
	bk := newTestBook(t, "Sheet1", "Sheet2", "John's sales")
	one, two, three := mustSheet(t, bk, 0), mustSheet(t, bk, 1), mustSheet(t, bk, 2)
	setRow(t, one, 0, 11.0, 12.0, 13.0, 14.0)
	setRow(t, one, 1, 21.0, 22.0, 23.0, 24.0)
	setRow(t, one, 2, 31.0, 32.0, 33.0, 34.0)
	setRow(t, two, 0, 50.0, 55.0, 60.0, 65.0)
	setRow(t, two, 1, 51.0, 56.0, 61.0, 66.0)
	setRow(t, two, 2, 52.0, 57.0, 62.0, 67.0)
	setRow(t, three, 0, 30.0, 31.0, 32.0)
	setRow(t, three, 1, 33.0, 34.0, 35.0)
	return bk
}

type formulaTest struct {
	formula  string
	expected Value
}

// checkFormulas evaluates each formula as if it were in Sheet1!C6.
func checkFormulas(t *testing.T, ev *Evaluator, tests []formulaTest) {
	t.Helper()
	for _, test := range tests {
		got := evalAt(t, ev, test.formula, 0, "C6")
		if !sameValue(got, test.expected) {
			t.Errorf("%s = %s, expected %s", test.formula, show(got), show(test.expected))
		}
	}
}

func TestMathFunctions(t *testing.T) {
	ev := New(gridBook(t), nil)
	checkFormulas(t, ev, []formulaTest{
		{"SUM(A1:D3)", 270.0},
		{"SUM(A1:B1,10,TRUE)", 34.0},
		{"SUM({1,2;3,4}*2)", 20.0},
		{"PRODUCT(A1:B1)", 132.0},
		{"SUMSQ(3,4)", 25.0},
		{"SUMPRODUCT({1,2,3},{4,5,6})", 32.0},
		{"SUMPRODUCT(A1:B2,C1:D2)", 1322.0},
		{"SUMPRODUCT(A1:B2,A1:C1)", errValue},
		{"SUMIF(A1:D1,\">12\")", 27.0},
		{"SUMIF(A1:A3,\">15\",B1:B3)", 54.0},
		{"SUMIF(A1:A3,21,B1)", 22.0},
		{"SUMIFS(B1:B3,A1:A3,\">15\",C1:C3,\"<30\")", 22.0},
		{"ABS(-2.5)", 2.5},
		{"INT(-2.5)", -3.0},
		{"SIGN(-7)", -1.0},
		{"SQRT(16)", 4.0},
		{"SQRT(-1)", errNum},
		{"LN(0)", errNum},
		{"LOG(8,2)", 3.0},
		{"LOG10(1000)", 3.0},
		{"POWER(2,10)", 1024.0},
		{"POWER(0,0)", errNum},
		{"MOD(-3,2)", 1.0},
		{"MOD(5,0)", errDiv0},
		{"ROUND(2.675,2)", 2.68},
		{"ROUND(-1.5,0)", -2.0},
		{"ROUND(1234.5,-2)", 1200.0},
		{"ROUNDUP(3.21,1)", 3.3},
		{"ROUNDDOWN(3.789,1)", 3.7},
		{"TRUNC(-4.7)", -4.0},
		{"CEILING(2.5,1)", 3.0},
		{"CEILING(2.5,-1)", errNum},
		{"FLOOR(-2.5,-2)", -2.0},
		{"FLOOR(5,0)", errDiv0},
		{"EVEN(-1)", -2.0},
		{"ODD(2)", 3.0},
		{"FACT(5)", 120.0},
		{"FACT(-1)", errNum},
		{"DEGREES(PI())", 180.0},
		{"ATAN2(0,0)", errDiv0},
		{"1/0", errDiv0},
		{"10%", 0.1},
	})
}

func TestStatFunctions(t *testing.T) {
	ev := New(gridBook(t), nil)
	checkFormulas(t, ev, []formulaTest{
		{"COUNT(A1:D3)", 12.0},
		{"COUNT(A1,\"2\",\"x\",TRUE)", 3.0},
		{"COUNTA(A1:D4)", 12.0},
		{"COUNTBLANK(A1:D4)", 4.0},
		{"COUNTIF(A1:D3,\">=30\")", 4.0},
		{"COUNTIF(A1:D3,21)", 1.0},
		{"COUNTIFS(A1:D3,\">20\",A1:D3,\"<30\")", 4.0},
		{"AVERAGE(A1:D1)", 12.5},
		{"AVERAGE(F1:F3)", errDiv0},
		{"AVERAGEIF(A1:A3,\">15\")", 26.0},
		{"MAX(A1:D3)", 34.0},
		{"MIN(A1:D3,5)", 5.0},
		{"MAX(F1:F3)", 0.0},
		{"MEDIAN(1,2,3,4)", 2.5},
		{"LARGE(A1:D3,2)", 33.0},
		{"SMALL(A1:D3,3)", 13.0},
		{"SMALL(A1:D3,13)", errNum},
		{"VAR(1,2,3,4)", 5.0 / 3},
		{"VARP(1,2,3,4)", 1.25},
		{"STDEVP(2,4,4,4,5,5,7,9)", 2.0},
		{"STDEV(1)", errDiv0},
	})
}

func TestLogicFunctions(t *testing.T) {
	ev := New(gridBook(t), nil)
	checkFormulas(t, ev, []formulaTest{
		{"IF(A1>10,\"big\",\"small\")", "big"},
		{"IF(A1>100,\"big\",\"small\")", "small"},
		{"IF(A1>100,1)", false},
		{"IF(TRUE,,2)", 0.0},
		{"IF(1/0,1,2)", errDiv0},
		{"IF(\"x\",1,2)", errValue},
		{"IF(A1>10,SUM(A1:B1),1/0)", 23.0},
		{"CHOOSE(2,\"a\",\"b\",\"c\")", "b"},
		{"CHOOSE(3,A1,B1,C1)+1", 14.0},
		{"CHOOSE(4,1,2,3)", errValue},
		{"AND(TRUE,A1>5)", true},
		{"AND(A1:D1)", true},
		{"OR(FALSE,0)", false},
		{"OR(\"x\")", errValue},
		{"NOT(0)", true},
		{"IFERROR(1/0,\"oops\")", "oops"},
		{"IFERROR(A1,\"oops\")", 11.0},
		{"ISERROR(1/0)", true},
		{"ISERR(NA())", false},
		{"ISNA(NA())", true},
		{"ISBLANK(F9)", true},
		{"ISBLANK(A1)", false},
		{"ISNUMBER(A1)", true},
		{"ISTEXT(\"x\")", true},
		{"ISNONTEXT(1)", true},
		{"ISLOGICAL(TRUE)", true},
		{"ISREF(A1)", true},
		{"ISREF(1)", false},
		{"ERROR.TYPE(1/0)", 2.0},
		{"ERROR.TYPE(1)", errNA},
		{"N(TRUE)", 1.0},
		{"N(\"7\")", 0.0},
		{"T(1)", ""},
		{"T(\"a\")", "a"},
	})
}

func TestTextFunctions(t *testing.T) {
	ev := New(gridBook(t), nil)
	checkFormulas(t, ev, []formulaTest{
		{"LEN(\"hello\")", 5.0},
		{"LEN(A1)", 2.0},
		{"LEFT(\"hello\",2)", "he"},
		{"LEFT(\"hello\",-1)", errValue},
		{"RIGHT(\"hello\")", "o"},
		{"RIGHT(\"hi\",5)", "hi"},
		{"MID(\"hello\",2,3)", "ell"},
		{"MID(\"hello\",9,3)", ""},
		{"MID(\"hello\",0,3)", errValue},
		{"UPPER(\"abc\")", "ABC"},
		{"LOWER(\"ÀBC\")", "àbc"},
		{"PROPER(\"hello wORLD o'neil\")", "Hello World O'Neil"},
		{"TRIM(\"  a   b  \")", "a b"},
		{"CLEAN(\"a\"&CHAR(9)&\"b\")", "ab"},
		{"VALUE(\"1,000\")", 1000.0},
		{"VALUE(\"12%\")", 0.12},
		{"VALUE(\"1,00\")", errValue},
		{"VALUE(TRUE)", errValue},
		{"CONCATENATE(\"a\",1,TRUE)", "a1TRUE"},
		{"\"x\"&1.5", "x1.5"},
		{"EXACT(\"a\",\"A\")", false},
		{"REPT(\"ab\",3)", "ababab"},
		{"REPT(\"ab\",-1)", errValue},
		{"SUBSTITUTE(\"a-b-c\",\"-\",\"+\")", "a+b+c"},
		{"SUBSTITUTE(\"a-b-c\",\"-\",\"+\",2)", "a-b+c"},
		{"SUBSTITUTE(\"a-b-c\",\"-\",\"+\",3)", "a-b-c"},
		{"REPLACE(\"abcdef\",2,3,\"X\")", "aXef"},
		{"FIND(\"b\",\"abcb\",3)", 4.0},
		{"FIND(\"B\",\"abc\")", errValue},
		{"FIND(\"\",\"abc\",2)", 2.0},
		{"SEARCH(\"B*D\",\"abcd\")", 2.0},
		{"SEARCH(\"?c\",\"abcd\")", 2.0},
		{"SEARCH(\"~*\",\"a*b\")", 2.0},
		{"SEARCH(\"x\",\"abc\")", errValue},
		{"CHAR(65)", "A"},
		{"CHAR(128)", "€"},
		{"CHAR(0)", errValue},
		{"CODE(\"A\")", 65.0},
		{"CODE(\"€\")", 128.0},
		{"CODE(\"\")", errValue},
	})
}

func TestLookupFunctions(t *testing.T) {
	ev := New(gridBook(t), nil)
	checkFormulas(t, ev, []formulaTest{
		{"VLOOKUP(21,A1:D3,3,FALSE)", 23.0},
		{"VLOOKUP(25,A1:D3,2)", 22.0},
		{"VLOOKUP(5,A1:D3,2)", errNA},
		{"VLOOKUP(21,A1:D3,5,FALSE)", errRef},
		{"VLOOKUP(21,A1:D3,0,FALSE)", errValue},
		{"VLOOKUP(\"b*\",{\"apple\",1;\"Banana\",2},2,FALSE)", 2.0},
		{"HLOOKUP(13,A1:D3,2,FALSE)", 23.0},
		{"HLOOKUP(99,A1:D3,3)", 34.0},
		{"MATCH(32,A3:D3,0)", 2.0},
		{"MATCH(25,A1:A3)", 2.0},
		{"MATCH(25,{40,30,20,10},-1)", 2.0},
		{"MATCH(99,A1:A3,0)", errNA},
		{"MATCH(1,A1:B2,0)", errNA},
		{"LOOKUP(25,A1:A3,B1:B3)", 22.0},
		{"LOOKUP(31,A1:A3)", 31.0},
		{"INDEX(A1:D3,2,3)", 23.0},
		{"INDEX(A1:D1,3)", 13.0},
		{"INDEX(A1:D3,4,1)", errRef},
		{"SUM(INDEX(A1:D3,0,2))", 66.0},
		{"SUM(INDEX(A1:D3,2,0))", 90.0},
		{"INDEX({1,2;3,4},2,1)", 3.0},
		{"SUM(OFFSET(A1,1,1,2,2))", 110.0},
		{"OFFSET(A1,2,3)", 34.0},
		{"SUM(OFFSET(C3,0,0,-2,-2))", 22.0 + 23 + 32 + 33},
		{"OFFSET(A1,-1,0)", errRef},
		{"OFFSET(A1,0,0,0,1)", errRef},
		{"ROW(C5)", 5.0},
		{"ROW()", 6.0},
		{"COLUMN()", 3.0},
		{"COLUMN(D1:F1)", 4.0},
		{"ROWS(A1:D3)", 3.0},
		{"COLUMNS(A1:D3)", 4.0},
		{"ROWS({1;2;3})", 3.0},
		{"ADDRESS(2,3)", "$C$2"},
		{"ADDRESS(2,3,4)", "C2"},
		{"ADDRESS(2,3,2,TRUE,\"John's sales\")", "'John''s sales'!C$2"},
		{"ADDRESS(2,3,4,FALSE)", "R[2]C[3]"},
		{"ADDRESS(0,1)", errValue},
		{"SUM(TRANSPOSE(A1:B1)*{1;2})", 11.0 + 24},
	})
}

func TestDateFunctions(t *testing.T) {
	ev := New(gridBook(t), nil)
	checkFormulas(t, ev, []formulaTest{
		{"DATE(2008,1,1)", 39448.0},
		{"DATE(2008,14,1)", 39845.0},
		{"DATE(108,1,1)", 39448.0},
		{"DATE(2008,1,0)", 39447.0},
		{"DATE(-1,1,1)", errNum},
		{"YEAR(39448)", 2008.0},
		{"MONTH(39478)", 1.0},
		{"DAY(39478)", 31.0},
		{"DAY(60)", 29.0},
		{"YEAR(-1)", errNum},
		{"TIME(12,0,0)", 0.5},
		{"TIME(25,0,0)", 1.0 / 24},
		{"TIME(-1,0,0)", errNum},
		{"HOUR(0.75)", 18.0},
		{"MINUTE(TIME(12,30,0))", 30.0},
		{"SECOND(TIME(1,2,3))", 3.0},
		{"WEEKDAY(39448)", 3.0},
		{"WEEKDAY(39448,2)", 2.0},
		{"WEEKDAY(39448,3)", 1.0},
		{"WEEKDAY(39448,4)", errNum},
		{"EDATE(DATE(2008,1,31),1)", 39507.0},
		{"EDATE(DATE(2008,3,31),-1)", 39507.0},
		{"EOMONTH(DATE(2008,1,15),1)", 39507.0},
		{"EOMONTH(DATE(2008,1,15),0)", 39478.0},
		{"DAYS360(DATE(2008,1,30),DATE(2008,12,31))", 330.0},
		{"DAYS360(DATE(2008,1,1),DATE(2008,12,31))", 360.0},
		{"DAYS360(DATE(2008,1,1),DATE(2008,12,31),TRUE)", 359.0},
		{"DAYS360(DATE(2008,2,29),DATE(2008,3,31))", 30.0},
	})
}

func TestDateFunctions1904(t *testing.T) {
	bk := newTestBook(t, "Sheet1")
	bk.Datemode = 1
	ev := New(bk, nil)
	checkFormulas(t, ev, []formulaTest{
		{"DATE(2008,1,1)", 39448.0 - 1462},
		{"YEAR(0)", 1904.0},
		{"WEEKDAY(37986)", 3.0},
	})
}

func TestFinancialFunctions(t *testing.T) {
	ev := New(gridBook(t), nil)
	checkFormulas(t, ev, []formulaTest{
		{"PMT(0.08/12,10,10000)", -1037.0320893591636},
		{"PMT(0,10,1000)", -100.0},
		{"FV(0.06/12,10,-200,-500,1)", 2581.4033740601362},
		{"PV(0.08/12,12*20,500,,0)", -59777.14585118777},
		{"NPER(0.12/12,-100,-1000,10000,1)", 59.67386567429457},
		{"NPER(0,0,100)", errNum},
		{"IPMT(0.1/12,1,3*12,8000)", -8000 * 0.1 / 12},
		{"PPMT(0.1/12,1,2*12,2000)", -75.62318600836664},
		{"IPMT(0.1,0,3,100)", errNum},
		{"NPV(0.1,-10000,3000,4200,6800)", 1188.4434123352216},
		{"NPV(-1,1)", errDiv0},
	})
}

func TestMissingArguments(t *testing.T) {
	bk := newTestBook(t, "Sheet1")
	ev := New(bk, nil)
	checkFormulas(t, ev, []formulaTest{
		{"COUNT(C5,,,,)", 4.0},
		{"COUNTA(C5,,)", 2.0},
		{"SUM(1,,2)", 3.0},
		{"IF(TRUE,,)", 0.0},
		{"IF(FALSE,,)", 0.0},
		{"CHOOSE(2,1,,3)", 0.0},
		{"ROUND(2.5,)", 3.0},
	})
}

func TestOperators(t *testing.T) {
	ev := New(gridBook(t), nil)
	checkFormulas(t, ev, []formulaTest{
		{"1+\"2\"", 3.0},
		{"1+\"x\"", errValue},
		{"F9+1", 1.0},
		{"2^3", 8.0},
		{"0^-1", errDiv0},
		{"-A1", -11.0},
		{"1=1.0", true},
		{"\"A\"=\"a\"", true},
		{"\"abc\"<\"abd\"", true},
		{"TRUE>1", true},
		{"\"1\">2", true},
		{"F9=0", true},
		{"F9=\"\"", true},
		{"0.1+0.2=0.3", true},
		{"1/0=1", errDiv0},
		{"A1:D1", 13.0},
		{"A1:A3", errValue},
	})
}

func TestSumProductAreas(t *testing.T) {
	bk := newTestBook(t, "Sheet1")
	sh := mustSheet(t, bk, 0)
	setRow(t, sh, 0, 2.0, 3.0)
	setRow(t, sh, 1, 4.0, 6.0)
	setRow(t, sh, 2, 5.0, 7.0)
	ev := New(bk, nil)
	checkFormulas(t, ev, []formulaTest{
		{"SUMPRODUCT(A1:A3,B1:B3)", 65.0},
		{"SUMPRODUCT(A1:A3,B1:B2)", errValue},
		{"SUMPRODUCT(A1:A3,A1:C1)", errValue},
	})
}
