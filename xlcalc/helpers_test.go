package xlcalc

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/yamitzky/xlcalc-go/xlrd"
)

func newTestBook(t *testing.T, names ...string) *xlrd.Book {
	t.Helper()
	bk := xlrd.NewBook()
	for _, name := range names {
		if _, err := bk.AddSheet(name); err != nil {
			t.Fatalf("AddSheet(%q) failed: %v", name, err)
		}
	}
	return bk
}

func mustSheet(t *testing.T, bk *xlrd.Book, sheetx int) *xlrd.Sheet {
	t.Helper()
	sh, err := bk.SheetByIndex(sheetx)
	if err != nil {
		t.Fatalf("SheetByIndex(%d) failed: %v", sheetx, err)
	}
	return sh
}

// setRow fills a row from column A on.
func setRow(t *testing.T, sh *xlrd.Sheet, rowx int, values ...interface{}) {
	t.Helper()
	for colx, v := range values {
		if err := sh.SetValue(rowx, colx, v); err != nil {
			t.Fatalf("SetValue(%d, %d, %v) failed: %v", rowx, colx, v, err)
		}
	}
}

func setFormula(t *testing.T, sh *xlrd.Sheet, cell, formula string) {
	t.Helper()
	ref, ok := xlrd.ParseCellName(cell)
	if !ok {
		t.Fatalf("bad cell name %q", cell)
	}
	if err := sh.SetFormula(ref.Row, ref.Col, formula); err != nil {
		t.Fatalf("SetFormula(%s, %q) failed: %v", cell, formula, err)
	}
}

func setCell(t *testing.T, sh *xlrd.Sheet, cell string, v interface{}) {
	t.Helper()
	ref, ok := xlrd.ParseCellName(cell)
	if !ok {
		t.Fatalf("bad cell name %q", cell)
	}
	if err := sh.SetValue(ref.Row, ref.Col, v); err != nil {
		t.Fatalf("SetValue(%s, %v) failed: %v", cell, v, err)
	}
}

func evalCell(t *testing.T, ev *Evaluator, sheetx int, cell string) Value {
	t.Helper()
	ref, ok := xlrd.ParseCellName(cell)
	if !ok {
		t.Fatalf("bad cell name %q", cell)
	}
	v, err := ev.Evaluate(sheetx, ref.Row, ref.Col)
	if err != nil {
		t.Fatalf("Evaluate(%d, %s) failed: %v", sheetx, cell, err)
	}
	return v
}

// evalAt evaluates formula text as if it were in a cell and reduces the
// result the way a cell would hold it.
func evalAt(t *testing.T, ev *Evaluator, formula string, sheetx int, cell string) Value {
	t.Helper()
	ref, ok := xlrd.ParseCellName(cell)
	if !ok {
		t.Fatalf("bad cell name %q", cell)
	}
	v, err := ev.EvaluateFormula(formula, sheetx, ref.Row, ref.Col)
	if err != nil {
		t.Fatalf("EvaluateFormula(%q) failed: %v", formula, err)
	}
	return (&scope{ev: ev, sheet: sheetx, row: ref.Row, col: ref.Col}).result(v)
}

// sameValue compares results, allowing numbers a relative error of
// 1e-9.
func sameValue(got, want Value) bool {
	if x, ok := got.(float64); ok {
		y, ok := want.(float64)
		if !ok {
			return false
		}
		if x == y {
			return true
		}
		return math.Abs(x-y) <= 1e-9*math.Max(math.Abs(x), math.Abs(y))
	}
	return got == want
}

func show(v Value) string {
	switch x := v.(type) {
	case string:
		return fmt.Sprintf("%q", x)
	case ErrorValue:
		return x.String()
	}
	return fmt.Sprintf("%v", v)
}

// recordingListener logs evaluator events as short strings such as
// "start Sheet1!A1".
type recordingListener struct {
	NopListener
	ev     *Evaluator
	events []string
}

func (l *recordingListener) name(sheetx, rowx, colx int) string {
	return l.ev.cellName(sheetx, rowx, colx)
}

func (l *recordingListener) OnCacheHit(sheetx, rowx, colx int, result Value) {
	l.events = append(l.events, "hit "+l.name(sheetx, rowx, colx))
}

func (l *recordingListener) OnStartEvaluate(sheetx, rowx, colx int) {
	l.events = append(l.events, "start "+l.name(sheetx, rowx, colx))
}

func (l *recordingListener) OnClearCachedValue(sheetx, rowx, colx int) {
	l.events = append(l.events, "clear "+l.name(sheetx, rowx, colx))
}

func (l *recordingListener) OnClearDependentCachedValue(sheetx, rowx, colx int, depth int) {
	l.events = append(l.events, fmt.Sprintf("stale %s %d", l.name(sheetx, rowx, colx), depth))
}

func (l *recordingListener) OnClearWholeCache() {
	l.events = append(l.events, "clear all")
}

func (l *recordingListener) take() string {
	s := strings.Join(l.events, ", ")
	l.events = nil
	return s
}

func newRecordingEvaluator(bk *xlrd.Book) (*Evaluator, *recordingListener) {
	l := &recordingListener{}
	ev := New(bk, &Options{Listener: l})
	l.ev = ev
	return ev, l
}
