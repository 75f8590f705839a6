package xlrd

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
)

func buildWorkbook(t *testing.T) *Book {
	t.Helper()
	bk := newTestBook(t, "Data", "Rates")
	bk.Datemode = 1
	data := mustSheet(t, bk, "Data")
	rates := mustSheet(t, bk, "Rates")
	if _, err := bk.AddName("Rate", "Rates!$B$1", -1); err != nil {
		t.Fatalf("AddName failed: %v", err)
	}
	for i := 0; i < 40; i++ {
		data.SetNumber(i, 0, float64(i)+0.5)
		if i%3 == 0 {
			data.SetText(i, 1, "row")
		}
		if err := data.SetFormula(i, 2, CellName(i, 0)+"*Rate"); err != nil {
			t.Fatalf("SetFormula failed: %v", err)
		}
	}
	rates.SetNumber(0, 1, 0.25)
	rates.SetBool(1, 1, true)
	rates.SetError(2, 1, ErrNA)
	rates.SetBlank(3, 1)
	if err := rates.AddMergedRegion(CellRange{5, 6, 0, 2}); err != nil {
		t.Fatalf("AddMergedRegion failed: %v", err)
	}
	if err := rates.SetFormula(0, 3, "SUM(Data!A1:A40)"); err != nil {
		t.Fatalf("SetFormula failed: %v", err)
	}
	return bk
}

func TestWorkbookRoundTrip(t *testing.T) {
	content, err := buildWorkbook(t).Bytes()
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}
	bk, err := OpenWorkbookBytes(content, nil)
	if err != nil {
		t.Fatalf("OpenWorkbookBytes failed: %v", err)
	}
	if bk.Container == nil {
		t.Errorf("Container is nil for a compound document")
	}
	if names := bk.SheetNames(); len(names) != 2 || names[0] != "Data" || names[1] != "Rates" {
		t.Fatalf("SheetNames() = %v, expected [Data Rates]", names)
	}
	if bk.Datemode != 1 {
		t.Errorf("Datemode = %d, expected 1", bk.Datemode)
	}
	data := mustSheet(t, bk, "Data")
	rates := mustSheet(t, bk, "Rates")
	if data.NRows != 40 || data.NCols != 3 {
		t.Errorf("Data extent = %dx%d, expected 40x3", data.NRows, data.NCols)
	}
	tests := []struct {
		sh       *Sheet
		row, col int
		ctype    int
		value    interface{}
	}{
		{data, 0, 0, XL_CELL_NUMBER, 0.5},
		{data, 39, 0, XL_CELL_NUMBER, 39.5},
		{data, 3, 1, XL_CELL_TEXT, "row"},
		{data, 4, 1, XL_CELL_EMPTY, ""},
		{rates, 0, 1, XL_CELL_NUMBER, 0.25},
		{rates, 1, 1, XL_CELL_BOOLEAN, true},
		{rates, 2, 1, XL_CELL_ERROR, ErrNA},
		{rates, 3, 1, XL_CELL_BLANK, ""},
	}
	for _, test := range tests {
		c := test.sh.Cell(test.row, test.col)
		if c.CType != test.ctype || c.Value != test.value {
			t.Errorf("%s!%s = (%d, %v), expected (%d, %v)", test.sh.Name, CellName(test.row, test.col), c.CType, c.Value, test.ctype, test.value)
		}
	}
	if got, err := data.FormulaText(7, 2); err != nil || got != "A8*Rate" {
		t.Errorf("FormulaText(7, 2) = %q, %v; expected A8*Rate", got, err)
	}
	if got, err := rates.FormulaText(0, 3); err != nil || got != "SUM(Data!A1:A40)" {
		t.Errorf("FormulaText(0, 3) = %q, %v; expected SUM(Data!A1:A40)", got, err)
	}
	n := bk.NameByText("rate", 0)
	if n == nil {
		t.Fatalf("NameByText(rate) = nil")
	}
	if got, err := n.FormulaText(); err != nil || got != "Rates!$B$1" {
		t.Errorf("Rate refers to %q, %v; expected Rates!$B$1", got, err)
	}
	if len(rates.MergedCells) != 1 || rates.MergedCells[0] != (CellRange{5, 6, 0, 2}) {
		t.Errorf("MergedCells = %v, expected [A6:C7]", rates.MergedCells)
	}
}

func TestRowBlockIndex(t *testing.T) {
	stream, err := buildWorkbook(t).WorkbookStream()
	if err != nil {
		t.Fatalf("WorkbookStream failed: %v", err)
	}
	lrs, err := DecodeStream(stream)
	if err != nil {
		t.Fatalf("DecodeStream failed: %v", err)
	}
	byOffset := map[int]LogicalRecord{}
	for _, lr := range lrs {
		byOffset[lr.Offset] = lr
	}
	var indexes []*IndexRecord
	for _, lr := range lrs {
		if lr.Sid != XL_INDEX {
			continue
		}
		r, err := DecodeRecord(lr)
		if err != nil {
			t.Fatalf("DecodeRecord(INDEX) failed: %v", err)
		}
		indexes = append(indexes, r.(*IndexRecord))
	}
	if len(indexes) != 2 {
		t.Fatalf("found %d INDEX records, expected 2", len(indexes))
	}
	data := indexes[0]
	if data.FirstRow != 0 || data.LastRow != 40 {
		t.Errorf("INDEX rows = %d..%d, expected 0..40", data.FirstRow, data.LastRow)
	}
	// 40 rows make two blocks of at most 32
	if len(data.DBCells) != 2 {
		t.Fatalf("INDEX lists %d DBCELLs, expected 2", len(data.DBCells))
	}
	for _, pos := range data.DBCells {
		lr, ok := byOffset[pos]
		if !ok || lr.Sid != XL_DBCELL {
			t.Errorf("INDEX points at offset %d, which is not a DBCELL", pos)
			continue
		}
		r, err := DecodeRecord(lr)
		if err != nil {
			t.Fatalf("DecodeRecord(DBCELL) failed: %v", err)
		}
		db := r.(*DBCellRecord)
		if first, ok := byOffset[pos-db.FirstRowOffset]; !ok || first.Sid != XL_ROW {
			t.Errorf("DBCELL at %d: first ROW offset %d does not lead to a ROW record", pos, db.FirstRowOffset)
		}
	}
	if n := len(indexes[0].DBCells); n > 0 {
		r, _ := DecodeRecord(byOffset[indexes[0].DBCells[0]])
		if cells := r.(*DBCellRecord).CellOffsets; len(cells) != 32 {
			t.Errorf("first DBCELL has %d cell offsets, expected 32", len(cells))
		}
	}
}

func TestOnDemandAndUnload(t *testing.T) {
	content, err := buildWorkbook(t).Bytes()
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}
	bk, err := OpenWorkbookBytes(content, &OpenWorkbookOptions{OnDemand: true})
	if err != nil {
		t.Fatalf("OpenWorkbookBytes failed: %v", err)
	}
	if loaded, _ := bk.SheetLoaded("Rates"); loaded {
		t.Errorf("Rates loaded before first access")
	}
	rates := mustSheet(t, bk, "Rates")
	if loaded, _ := bk.SheetLoaded(1); !loaded {
		t.Errorf("Rates not loaded after access")
	}
	rates.SetNumber(0, 1, 99)
	if err := bk.UnloadSheet("Rates"); err != nil {
		t.Fatalf("UnloadSheet failed: %v", err)
	}
	if v := mustSheet(t, bk, "Rates").CellValue(0, 1); v != 0.25 {
		t.Errorf("CellValue after reload = %v, expected 0.25", v)
	}
	if _, err := bk.SheetLoaded("Nope"); err == nil {
		t.Errorf("SheetLoaded(Nope) returned no error")
	}
	if err := NewBook().UnloadSheet(0); err == nil {
		t.Errorf("UnloadSheet on an empty book returned no error")
	}
}

func TestSaveAndOpenWorkbook(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "book.xls")
	if err := buildWorkbook(t).Save(filename, true); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	format, err := InspectFormat(filename, nil)
	if err != nil || format != "xls" {
		t.Errorf("InspectFormat = %q, %v; expected xls", format, err)
	}
	bk, err := OpenWorkbook(filename, nil)
	if err != nil {
		t.Fatalf("OpenWorkbook failed: %v", err)
	}
	if v := mustSheet(t, bk, "Data").CellValue(1, 0); v != 1.5 {
		t.Errorf("Data!A2 = %v, expected 1.5", v)
	}
	si, err := bk.Container.SummaryInfo()
	if err != nil || si.AppName != "xlcalc-go" {
		t.Errorf("SummaryInfo = %+v, %v; expected AppName xlcalc-go", si, err)
	}

	var buf bytes.Buffer
	if _, err := bk.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	again, err := OpenWorkbookBytes(buf.Bytes(), nil)
	if err != nil {
		t.Fatalf("reopening the rewritten file failed: %v", err)
	}
	if got, err := mustSheet(t, again, "Data").FormulaText(0, 2); err != nil || got != "A1*Rate" {
		t.Errorf("FormulaText after a second round trip = %q, %v", got, err)
	}
}

func TestOpenWorkbookErrors(t *testing.T) {
	if _, err := OpenWorkbookXLS("empty.xls", &OpenWorkbookOptions{FileContents: []byte{}}); err == nil {
		t.Errorf("OpenWorkbookXLS of an empty file returned no error")
	}
	if _, err := OpenWorkbookBytes([]byte("definitely not a workbook"), nil); err == nil {
		t.Errorf("OpenWorkbookBytes of text returned no error")
	}
	biff5 := concat(record(XL_BOF, []byte{0x00, 0x05, 0x05, 0x00, 0, 0, 0, 0}), record(XL_EOF, nil))
	_, err := OpenWorkbookBytes(biff5, nil)
	var old *OldExcelFormatError
	if !errors.As(err, &old) || old.BiffVersion != 50 {
		t.Errorf("OpenWorkbookBytes(BIFF5) error = %v, expected OldExcelFormatError for BIFF 5", err)
	}
	filepass := concat(record(XL_BOF, bof8(XL_WORKBOOK_GLOBALS)), record(XL_FILEPASS, []byte{0, 0}), record(XL_EOF, nil))
	if _, err := OpenWorkbookBytes(filepass, nil); err == nil {
		t.Errorf("OpenWorkbookBytes of an encrypted stream returned no error")
	}
}

func TestAddSheetAndName(t *testing.T) {
	bk := newTestBook(t, "One")
	bad := []string{"", "one", "a/b", "[x]", "'quoted'", "this name is far too long for a sheet"}
	for _, name := range bad {
		if _, err := bk.AddSheet(name); err == nil {
			t.Errorf("AddSheet(%q) returned no error", name)
		}
	}
	if _, err := bk.AddName("B2", "1", -1); err == nil {
		t.Errorf("AddName accepted a cell-like name")
	}
	if _, err := bk.AddName("Local", "One!$A$1", 0); err != nil {
		t.Fatalf("AddName(Local) failed: %v", err)
	}
	if _, err := bk.AddName("local", "One!$A$2", 0); err == nil {
		t.Errorf("AddName accepted a duplicate name in the same scope")
	}
	if _, err := bk.AddName("Local", "One!$A$3", -1); err != nil {
		t.Errorf("AddName of a global name shadowed by a local one failed: %v", err)
	}
	if n := bk.NameByText("Local", 0); n == nil || n.Scope != 0 {
		t.Errorf("NameByText(Local, 0) = %+v, expected the sheet-level name", n)
	}
	if n := bk.NameByText("Local", 3); n == nil || n.Scope != -1 {
		t.Errorf("NameByText(Local, 3) = %+v, expected the global name", n)
	}
	if _, err := bk.AddName("Broken", "NOSUCH(", -1); err == nil {
		t.Errorf("AddName accepted an unparsable definition")
	}
	if _, err := bk.SheetByName("Two"); err == nil {
		t.Errorf("SheetByName(Two) returned no error")
	}
	if _, err := bk.Get(1.5); err == nil {
		t.Errorf("Get(1.5) returned no error")
	}
}
