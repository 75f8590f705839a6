package xlrd

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func stringFormula(row, col int, text string) *FormulaRecord {
	r := &FormulaRecord{CellHeader: CellHeader{Row: row, Col: col}, Formula: []Ptg{&StrPtg{Value: text}}}
	r.setCachedText(text == "")
	return r
}

func openStream(t *testing.T, stream []byte, options *OpenWorkbookOptions) *Book {
	t.Helper()
	bk, err := OpenWorkbookBytes(stream, options)
	if err != nil {
		t.Fatalf("OpenWorkbookBytes failed: %v", err)
	}
	return bk
}

func TestFormulaStringResult(t *testing.T) {
	stream := biffStream(t, nil, "Sheet1", [][]byte{
		mustEncode(t, stringFormula(0, 0, "hello")),
		mustEncode(t, &StringRecord{Value: "hello"}),
		mustEncode(t, &NumberRecord{CellHeader: CellHeader{Row: 1, Col: 0}, Value: 2}),
	})
	bk := openStream(t, stream, nil)
	sh := mustSheet(t, bk, "Sheet1")
	c := sh.Cell(0, 0)
	if !c.IsFormula() || c.CType != XL_CELL_TEXT || c.Value != "hello" {
		t.Fatalf("Cell(0, 0) = %+v, expected a formula with cached text hello", c)
	}
	if s := c.Formula.StringRecord(); s == nil || s.Value != "hello" {
		t.Errorf("StringRecord() = %v, expected hello", s)
	}

	// a non-text result drops the STRING companion
	c.Formula.SetCachedNumber(3)
	if s := c.Formula.StringRecord(); s != nil {
		t.Errorf("StringRecord() after SetCachedNumber = %v, expected nil", s)
	}
	out, err := bk.WorkbookStream()
	if err != nil {
		t.Fatalf("WorkbookStream failed: %v", err)
	}
	recs, err := ReadRecords(out)
	if err != nil {
		t.Fatalf("ReadRecords failed: %v", err)
	}
	for _, r := range recs {
		if r.Sid() == XL_STRING {
			t.Errorf("STRING record written for a numeric formula result")
		}
	}
	back := mustSheet(t, openStream(t, out, nil), "Sheet1")
	if v := back.CellValue(0, 0); v != 3.0 {
		t.Errorf("cached value after round trip = %v, expected 3", v)
	}
}

func TestEmptyStringResultHasNoStringRecord(t *testing.T) {
	f := NewFormulaRecordAggregate(0, 0, 0, []Ptg{&StrPtg{}})
	f.SetCachedText("")
	if f.CachedType() != XL_CELL_TEXT {
		t.Errorf("CachedType() = %d, expected XL_CELL_TEXT", f.CachedType())
	}
	if s := f.StringRecord(); s != nil {
		t.Errorf("StringRecord() = %v, expected nil for an empty string", s)
	}
	f.SetCachedValue(ErrDiv0)
	if v := f.CachedValue(); v != ErrDiv0 {
		t.Errorf("CachedValue() = %v, expected #DIV/0!", v)
	}
	f.SetCachedValue(true)
	if v := f.CachedValue(); v != true {
		t.Errorf("CachedValue() = %v, expected true", v)
	}
}

func TestMissingStringRecord(t *testing.T) {
	stream := biffStream(t, nil, "Sheet1", [][]byte{
		mustEncode(t, stringFormula(0, 0, "lost")),
		mustEncode(t, &NumberRecord{CellHeader: CellHeader{Row: 1, Col: 0}, Value: 2}),
	})
	_, err := OpenWorkbookBytes(stream, nil)
	var xe *XLRDError
	if !errors.As(err, &xe) {
		t.Fatalf("OpenWorkbookBytes error = %v, expected *XLRDError", err)
	}

	var log bytes.Buffer
	bk := openStream(t, stream, &OpenWorkbookOptions{IgnoreWorkbookCorruption: true, Logfile: &log})
	if !strings.Contains(log.String(), "*** WARNING") {
		t.Errorf("log = %q, expected a warning", log.String())
	}
	c := mustSheet(t, bk, "Sheet1").Cell(0, 0)
	if c.CType != XL_CELL_TEXT || c.Value != "" {
		t.Errorf("Cell(0, 0) = %+v, expected an empty text result", c)
	}
}

func TestErrantStringRecord(t *testing.T) {
	var log bytes.Buffer
	stream := biffStream(t, nil, "Sheet1", [][]byte{
		mustEncode(t, &NumberRecord{CellHeader: CellHeader{Row: 0, Col: 0}, Value: 1}),
		mustEncode(t, &StringRecord{Value: "stray"}),
	})
	bk := openStream(t, stream, &OpenWorkbookOptions{Logfile: &log})
	if !strings.Contains(log.String(), "STRING record without a string formula result") {
		t.Errorf("log = %q, expected the stray STRING to be reported", log.String())
	}
	if v := mustSheet(t, bk, "Sheet1").CellValue(0, 0); v != 1.0 {
		t.Errorf("CellValue(0, 0) = %v, expected 1", v)
	}
}

func sharedFormulaStream(t *testing.T) []byte {
	exp := func(row, col int) *FormulaRecord {
		r := &FormulaRecord{CellHeader: CellHeader{Row: row, Col: col}, Options: FormulaShared, Formula: []Ptg{&ExpPtg{Row: 1, Col: 0}}}
		r.SetCachedNumber(0)
		return r
	}
	shr := &SharedFormulaRecord{Range: CellRange{FirstRow: 1, LastRow: 2, FirstCol: 0, LastCol: 0}, Uses: 2, Formula: []Ptg{
		&RefNPtg{classed: classed{ClassValue}, CellRef: CellRef{Row: -1, Col: 0, RowRel: true, ColRel: true}},
		&IntPtg{Value: 1},
		&OpPtg{Op: tAdd},
	}}
	return biffStream(t, nil, "Sheet1", [][]byte{
		mustEncode(t, &NumberRecord{CellHeader: CellHeader{Row: 0, Col: 0}, Value: 5}),
		mustEncode(t, exp(1, 0)),
		mustEncode(t, shr),
		mustEncode(t, exp(2, 0)),
	})
}

func TestSharedFormulaLoad(t *testing.T) {
	bk := openStream(t, sharedFormulaStream(t), nil)
	sh := mustSheet(t, bk, "Sheet1")
	if len(sh.SharedFormulas()) != 1 || len(sh.SharedFormulas()[0].Members()) != 2 {
		t.Fatalf("shared groups = %v, expected one group with two members", sh.SharedFormulas())
	}
	tests := []struct {
		row      int
		expected string
	}{
		{1, "A1+1"},
		{2, "A2+1"},
	}
	for _, test := range tests {
		got, err := sh.FormulaText(test.row, 0)
		if err != nil || got != test.expected {
			t.Errorf("FormulaText(%d, 0) = %q, %v; expected %q", test.row, got, err, test.expected)
		}
	}

	// overwriting a member leaves the rest of the group alone
	if err := sh.SetNumber(2, 0, 7); err != nil {
		t.Fatalf("SetNumber failed: %v", err)
	}
	g := sh.SharedFormulas()[0]
	if len(g.Members()) != 1 {
		t.Errorf("group has %d members after overwrite, expected 1", len(g.Members()))
	}
	out, err := bk.WorkbookStream()
	if err != nil {
		t.Fatalf("WorkbookStream failed: %v", err)
	}
	back := mustSheet(t, openStream(t, out, nil), "Sheet1")
	if got, err := back.FormulaText(1, 0); err != nil || got != "A1+1" {
		t.Errorf("FormulaText(1, 0) after round trip = %q, %v", got, err)
	}
	if v := back.CellValue(2, 0); v != 7.0 {
		t.Errorf("CellValue(2, 0) after round trip = %v, expected 7", v)
	}
	if gs := back.SharedFormulas(); len(gs) != 1 || gs[0].Record.Uses != 1 {
		t.Errorf("shared groups after round trip = %v, expected one with one use", gs)
	}
}

func TestOverwriteSharedAnchor(t *testing.T) {
	bk := openStream(t, sharedFormulaStream(t), nil)
	sh := mustSheet(t, bk, "Sheet1")
	if err := sh.SetText(1, 0, "anchor gone"); err != nil {
		t.Fatalf("SetText failed: %v", err)
	}
	if len(sh.SharedFormulas()) != 0 {
		t.Errorf("shared group survived the loss of its anchor")
	}
	f := sh.FormulaCell(2, 0)
	if f == nil || f.SharedGroup() != nil {
		t.Fatalf("A3 = %v, expected a plain formula", f)
	}
	if got, err := sh.FormulaText(2, 0); err != nil || got != "A2+1" {
		t.Errorf("FormulaText(2, 0) = %q, %v; expected A2+1", got, err)
	}
}

func TestMissingSharedFormula(t *testing.T) {
	r := &FormulaRecord{CellHeader: CellHeader{Row: 1, Col: 0}, Formula: []Ptg{&ExpPtg{Row: 5, Col: 5}}}
	stream := biffStream(t, nil, "Sheet1", [][]byte{mustEncode(t, r)})
	if _, err := OpenWorkbookBytes(stream, nil); err == nil {
		t.Errorf("OpenWorkbookBytes accepted a tExp without its shared formula")
	}
}

func TestArrayFormula(t *testing.T) {
	anchor := &FormulaRecord{CellHeader: CellHeader{Row: 0, Col: 1}, Formula: []Ptg{&ExpPtg{Row: 0, Col: 1}}}
	member := &FormulaRecord{CellHeader: CellHeader{Row: 1, Col: 1}, Formula: []Ptg{&ExpPtg{Row: 0, Col: 1}}}
	arr := &ArrayRecord{Range: CellRange{FirstRow: 0, LastRow: 1, FirstCol: 1, LastCol: 1}, Formula: []Ptg{
		&AreaPtg{classed: classed{ClassArray}, AreaRef: AreaRef{First: CellRef{Row: 0, Col: 0, RowRel: true, ColRel: true}, Last: CellRef{Row: 1, Col: 0, RowRel: true, ColRel: true}}},
		&IntPtg{Value: 2},
		&OpPtg{Op: tMul},
	}}
	stream := biffStream(t, nil, "Sheet1", [][]byte{
		mustEncode(t, anchor),
		mustEncode(t, arr),
		mustEncode(t, member),
	})
	sh := mustSheet(t, openStream(t, stream, nil), "Sheet1")
	f := sh.FormulaCell(1, 1)
	if f == nil || f.ArrayGroup() == nil {
		t.Fatalf("B2 is not part of an array formula")
	}
	if got := f.ArrayGroup().Range().String(); got != "B1:B2" {
		t.Errorf("array range = %s, expected B1:B2", got)
	}
	if got, err := sh.FormulaText(1, 1); err != nil || got != "A1:A2*2" {
		t.Errorf("FormulaText(1, 1) = %q, %v; expected A1:A2*2", got, err)
	}
	if err := sh.SetNumber(1, 1, 1); err == nil {
		t.Errorf("SetNumber inside an array formula returned no error")
	}
}

type recordingListener struct {
	changes []string
}

func (l *recordingListener) CellChanged(sh *Sheet, rowx, colx int) {
	l.changes = append(l.changes, sh.Name+"!"+CellName(rowx, colx))
}

func TestCellListener(t *testing.T) {
	bk := newTestBook(t, "Data")
	sh := mustSheet(t, bk, "Data")
	l := &recordingListener{}
	bk.AddCellListener(l)
	sh.SetNumber(0, 0, 1)
	sh.SetFormula(0, 1, "A1*2")
	sh.Clear(0, 0)
	sh.Clear(5, 5)
	bk.RemoveCellListener(l)
	sh.SetNumber(0, 0, 2)
	expected := []string{"Data!A1", "Data!B1", "Data!A1"}
	if strings.Join(l.changes, " ") != strings.Join(expected, " ") {
		t.Errorf("changes = %v, expected %v", l.changes, expected)
	}
}

func TestSetValueAndExtent(t *testing.T) {
	sh := mustSheet(t, newTestBook(t, "S"), "S")
	values := []interface{}{1.5, 2, "x", true, ErrNA, nil}
	for i, v := range values {
		if err := sh.SetValue(i, i, v); err != nil {
			t.Fatalf("SetValue(%v) failed: %v", v, err)
		}
	}
	if sh.NRows != 6 || sh.NCols != 6 {
		t.Errorf("extent = %dx%d, expected 6x6", sh.NRows, sh.NCols)
	}
	types := []int{XL_CELL_NUMBER, XL_CELL_NUMBER, XL_CELL_TEXT, XL_CELL_BOOLEAN, XL_CELL_ERROR, XL_CELL_BLANK}
	for i, ct := range types {
		if got := sh.CellType(i, i); got != ct {
			t.Errorf("CellType(%d, %d) = %d, expected %d", i, i, got, ct)
		}
	}
	if err := sh.SetValue(0, 0, struct{}{}); err == nil {
		t.Errorf("SetValue(struct{}) returned no error")
	}
	if err := sh.SetNumber(MaxRows, 0, 1); err == nil {
		t.Errorf("SetNumber outside the sheet returned no error")
	}
	sh.Clear(5, 5)
	if sh.NRows != 5 || sh.NCols != 5 {
		t.Errorf("extent after Clear = %dx%d, expected 5x5", sh.NRows, sh.NCols)
	}
	if got := sh.CellType(40, 40); got != XL_CELL_EMPTY {
		t.Errorf("CellType of a missing cell = %d, expected XL_CELL_EMPTY", got)
	}
}

func TestMergedRegions(t *testing.T) {
	sh := mustSheet(t, newTestBook(t, "S"), "S")
	if err := sh.AddMergedRegion(CellRange{0, 1, 0, 1}); err != nil {
		t.Fatalf("AddMergedRegion failed: %v", err)
	}
	if err := sh.AddMergedRegion(CellRange{1, 2, 1, 2}); err == nil {
		t.Errorf("overlapping merged region accepted")
	}
	if err := sh.AddMergedRegion(CellRange{3, 2, 0, 0}); err == nil {
		t.Errorf("inverted merged region accepted")
	}
	sh.RemoveMergedRegion(0)
	if len(sh.MergedCells) != 0 {
		t.Errorf("MergedCells = %v after removal", sh.MergedCells)
	}
}
