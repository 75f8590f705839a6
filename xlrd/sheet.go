package xlrd

import (
	"fmt"
	"sort"
)

// Sheet contains the data for one worksheet.
//
// In the cell access functions, rowx is a row index, counting from zero,
// and colx is a column index, counting from zero.
//
// You don't instantiate this type yourself. You access Sheet objects via
// the Book object that was returned when you called OpenWorkbook, or
// through Book.AddSheet.
type Sheet struct {
	// Name is the name of the sheet.
	Name string

	// Book is a reference to the Book object to which this sheet belongs.
	Book *Book

	// Number is the index of the sheet in the workbook.
	Number int

	// Visibility: 0 = visible, 1 = hidden, 2 = very hidden.
	Visibility int

	// NRows is one more than the largest row index holding a cell.
	NRows int

	// NCols is one more than the largest column index holding a cell.
	NCols int

	// MergedCells is the list of merged regions.
	MergedCells []CellRange

	loaded bool
	bof    *BOFRecord
	rows   map[int]*RowRecord
	cells  map[int]map[int]*Cell
	head   []Record
	tail   []Record
	shared []*SharedFormulaGroup
	arrays []*ArrayFormulaGroup
}

// Cell represents a cell in a worksheet.
type Cell struct {
	// CType is the type of the cell.
	// One of: XL_CELL_EMPTY, XL_CELL_TEXT, XL_CELL_NUMBER, XL_CELL_BOOLEAN, XL_CELL_ERROR, XL_CELL_BLANK.
	// For formula cells it is the type of the cached result.
	CType int

	// Value is float64, string, bool or ErrorCode; "" for empty and blank cells.
	// For formula cells it is the cached result.
	Value interface{}

	// XFIndex is the index of the XF record for this cell.
	XFIndex int

	// Formula is set for formula cells.
	Formula *FormulaRecordAggregate
}

// IsFormula reports whether the cell holds a formula.
func (c *Cell) IsFormula() bool { return c.Formula != nil }

// EmptyCell returns an empty cell.
func EmptyCell() *Cell {
	return &Cell{CType: XL_CELL_EMPTY, Value: ""}
}

// Maximum cell coordinates of a BIFF8 sheet.
const (
	MaxRows = 0x10000
	MaxCols = 0x100
)

func newSheet(bk *Book, name string, number int) *Sheet {
	return &Sheet{
		Name:   name,
		Book:   bk,
		Number: number,
		rows:   map[int]*RowRecord{},
		cells:  map[int]map[int]*Cell{},
	}
}

func (s *Sheet) lookup(rowx, colx int) *Cell {
	if row, ok := s.cells[rowx]; ok {
		return row[colx]
	}
	return nil
}

// Cell returns the cell at the given row and column. Missing cells come
// back as EmptyCell(). The result is a copy.
func (s *Sheet) Cell(rowx, colx int) *Cell {
	c := s.lookup(rowx, colx)
	if c == nil {
		return EmptyCell()
	}
	out := *c
	if c.Formula != nil {
		out.CType = c.Formula.CachedType()
		out.Value = c.Formula.CachedValue()
	}
	return &out
}

// CellValue returns the value of the cell at the given row and column.
func (s *Sheet) CellValue(rowx, colx int) interface{} {
	return s.Cell(rowx, colx).Value
}

// CellType returns the type of the cell at the given row and column.
func (s *Sheet) CellType(rowx, colx int) int {
	return s.Cell(rowx, colx).CType
}

// CellXFIndex returns the XF index of the cell at the given row and
// column, or 0 when there is no cell.
func (s *Sheet) CellXFIndex(rowx, colx int) int {
	if c := s.lookup(rowx, colx); c != nil {
		return c.XFIndex
	}
	return 0
}

// RowLen returns one more than the largest column index used in the row.
func (s *Sheet) RowLen(rowx int) int {
	n := 0
	for colx := range s.cells[rowx] {
		if colx+1 > n {
			n = colx + 1
		}
	}
	return n
}

// Row returns the cells of a row, padded with empty cells, up to RowLen.
func (s *Sheet) Row(rowx int) []*Cell {
	out := make([]*Cell, s.RowLen(rowx))
	for colx := range out {
		out[colx] = s.Cell(rowx, colx)
	}
	return out
}

// FormulaCell returns the formula aggregate of a cell, or nil.
func (s *Sheet) FormulaCell(rowx, colx int) *FormulaRecordAggregate {
	if c := s.lookup(rowx, colx); c != nil {
		return c.Formula
	}
	return nil
}

// FormulaTokens returns the tokens of a formula cell with shared
// formulas expanded.
func (s *Sheet) FormulaTokens(rowx, colx int) ([]Ptg, bool) {
	f := s.FormulaCell(rowx, colx)
	if f == nil {
		return nil, false
	}
	return f.Tokens(), true
}

// FormulaText renders the formula of a cell, without the leading "=".
func (s *Sheet) FormulaText(rowx, colx int) (string, error) {
	toks, ok := s.FormulaTokens(rowx, colx)
	if !ok {
		return "", NewXLRDError("%s!%s is not a formula cell", QuotedSheetName(s.Name), CellName(rowx, colx))
	}
	return DecompileFormula(s.Book, toks, &rowx, &colx)
}

// SharedFormulas returns the shared formula groups of the sheet.
func (s *Sheet) SharedFormulas() []*SharedFormulaGroup { return s.shared }

// ArrayFormulas returns the array formulas of the sheet.
func (s *Sheet) ArrayFormulas() []*ArrayFormulaGroup { return s.arrays }

// Positions calls fn for every stored cell in row-major order.
func (s *Sheet) Positions(fn func(rowx, colx int)) {
	for _, rowx := range sortedKeys(s.cells) {
		for _, colx := range sortedKeys(s.cells[rowx]) {
			fn(rowx, colx)
		}
	}
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func checkCellIndex(rowx, colx int) error {
	if rowx < 0 || rowx >= MaxRows || colx < 0 || colx >= MaxCols {
		return NewXLRDError("cell (%d, %d) outside the sheet", rowx, colx)
	}
	return nil
}

// release takes the cell at (rowx, colx) out of any shared formula group
// before it is overwritten. Cells of an array formula cannot be changed
// one by one.
func (s *Sheet) release(rowx, colx int) error {
	if err := checkCellIndex(rowx, colx); err != nil {
		return err
	}
	c := s.lookup(rowx, colx)
	if c == nil || c.Formula == nil {
		return nil
	}
	f := c.Formula
	if f.array != nil {
		return NewXLRDError("cannot change part of the array formula at %s!%s", QuotedSheetName(s.Name), f.array.Record.Range)
	}
	if g := f.shared; g != nil {
		if g.AnchorRow == rowx && g.AnchorCol == colx {
			g.unshareAll()
			s.dropShared(g)
		} else {
			g.remove(f)
			if len(g.members) == 0 {
				s.dropShared(g)
			}
		}
	}
	return nil
}

func (s *Sheet) dropShared(g *SharedFormulaGroup) {
	for i, x := range s.shared {
		if x == g {
			s.shared = append(s.shared[:i], s.shared[i+1:]...)
			return
		}
	}
}

func (s *Sheet) put(rowx, colx int, c *Cell) {
	row, ok := s.cells[rowx]
	if !ok {
		row = map[int]*Cell{}
		s.cells[rowx] = row
	}
	if old := row[colx]; old != nil && c.XFIndex == 0 {
		c.XFIndex = old.XFIndex
	}
	row[colx] = c
	if rowx+1 > s.NRows {
		s.NRows = rowx + 1
	}
	if colx+1 > s.NCols {
		s.NCols = colx + 1
	}
}

func (s *Sheet) set(rowx, colx int, c *Cell) error {
	if err := s.release(rowx, colx); err != nil {
		return err
	}
	s.put(rowx, colx, c)
	s.changed(rowx, colx)
	return nil
}

func (s *Sheet) changed(rowx, colx int) {
	if s.Book != nil {
		s.Book.notify(s, rowx, colx)
	}
}

// SetNumber stores a number in a cell.
func (s *Sheet) SetNumber(rowx, colx int, v float64) error {
	return s.set(rowx, colx, &Cell{CType: XL_CELL_NUMBER, Value: v})
}

// SetText stores a string in a cell.
func (s *Sheet) SetText(rowx, colx int, v string) error {
	return s.set(rowx, colx, &Cell{CType: XL_CELL_TEXT, Value: v})
}

// SetBool stores a boolean in a cell.
func (s *Sheet) SetBool(rowx, colx int, v bool) error {
	return s.set(rowx, colx, &Cell{CType: XL_CELL_BOOLEAN, Value: v})
}

// SetError stores an error value in a cell.
func (s *Sheet) SetError(rowx, colx int, code ErrorCode) error {
	return s.set(rowx, colx, &Cell{CType: XL_CELL_ERROR, Value: code})
}

// SetBlank makes a cell blank, keeping its formatting.
func (s *Sheet) SetBlank(rowx, colx int) error {
	return s.set(rowx, colx, &Cell{CType: XL_CELL_BLANK, Value: ""})
}

// SetValue stores v, which must be float64, int, string, bool, ErrorCode
// or nil (blank).
func (s *Sheet) SetValue(rowx, colx int, v interface{}) error {
	switch x := v.(type) {
	case nil:
		return s.SetBlank(rowx, colx)
	case float64:
		return s.SetNumber(rowx, colx, x)
	case int:
		return s.SetNumber(rowx, colx, float64(x))
	case string:
		return s.SetText(rowx, colx, x)
	case bool:
		return s.SetBool(rowx, colx, x)
	case ErrorCode:
		return s.SetError(rowx, colx, x)
	}
	return NewXLRDError("cannot store %T in a cell", v)
}

// Clear removes a cell.
func (s *Sheet) Clear(rowx, colx int) error {
	if err := s.release(rowx, colx); err != nil {
		return err
	}
	row, ok := s.cells[rowx]
	if !ok || row[colx] == nil {
		return nil
	}
	delete(row, colx)
	if len(row) == 0 {
		delete(s.cells, rowx)
	}
	s.updateExtent()
	s.changed(rowx, colx)
	return nil
}

func (s *Sheet) updateExtent() {
	s.NRows, s.NCols = 0, 0
	for rowx, row := range s.cells {
		for colx := range row {
			if rowx+1 > s.NRows {
				s.NRows = rowx + 1
			}
			if colx+1 > s.NCols {
				s.NCols = colx + 1
			}
		}
	}
}

// SetFormula parses formula (with or without a leading "=") and stores it
// in a cell. The cached result is 0 until the cell is evaluated.
func (s *Sheet) SetFormula(rowx, colx int, formula string) error {
	toks, err := s.Book.ParseFormula(formula, s.Number, FMLA_TYPE_CELL)
	if err != nil {
		return err
	}
	return s.SetFormulaTokens(rowx, colx, toks)
}

// SetFormulaTokens stores a formula given as tokens.
func (s *Sheet) SetFormulaTokens(rowx, colx int, toks []Ptg) error {
	if err := s.release(rowx, colx); err != nil {
		return err
	}
	xf := 0
	if old := s.lookup(rowx, colx); old != nil {
		xf = old.XFIndex
	}
	f := NewFormulaRecordAggregate(rowx, colx, xf, toks)
	s.put(rowx, colx, &Cell{XFIndex: xf, Formula: f})
	s.changed(rowx, colx)
	return nil
}

// AddMergedRegion merges the cells of r. Regions may not overlap.
func (s *Sheet) AddMergedRegion(r CellRange) error {
	if r.FirstRow > r.LastRow || r.FirstCol > r.LastCol {
		return NewXLRDError("merged region %s is inverted", r)
	}
	if err := checkCellIndex(r.LastRow, r.LastCol); err != nil {
		return err
	}
	for _, m := range s.MergedCells {
		if r.FirstRow <= m.LastRow && m.FirstRow <= r.LastRow && r.FirstCol <= m.LastCol && m.FirstCol <= r.LastCol {
			return NewXLRDError("merged region %s overlaps %s", r, m)
		}
	}
	s.MergedCells = append(s.MergedCells, r)
	return nil
}

// RemoveMergedRegion removes the i-th merged region.
func (s *Sheet) RemoveMergedRegion(i int) {
	if i >= 0 && i < len(s.MergedCells) {
		s.MergedCells = append(s.MergedCells[:i], s.MergedCells[i+1:]...)
	}
}

// sheetLoader turns the records of one worksheet substream into a Sheet.
type sheetLoader struct {
	sh      *Sheet
	pending *FormulaRecordAggregate // waiting for its STRING record
	last    *FormulaRecordAggregate // most recent FORMULA, anchor of a following SHRFMLA or ARRAY
	exps    []*FormulaRecordAggregate
	inTable bool
	depth   int
}

func (l *sheetLoader) bk() *Book { return l.sh.Book }

func (l *sheetLoader) keep(r Record) {
	if l.inTable {
		l.sh.tail = append(l.sh.tail, r)
	} else {
		l.sh.head = append(l.sh.head, r)
	}
}

func (l *sheetLoader) cell(rowx, colx int, c *Cell) {
	l.inTable = true
	l.sh.put(rowx, colx, c)
}

func (l *sheetLoader) missingString() error {
	f := l.pending
	l.pending = nil
	msg := fmt.Sprintf("FORMULA at %s!%s has a string result but no STRING record", QuotedSheetName(l.sh.Name), CellName(f.Record.Row, f.Record.Col))
	if !l.bk().ignoreCorruption {
		return NewXLRDError("%s", msg)
	}
	l.bk().logf(0, "*** WARNING: %s; using an empty string\n", msg)
	f.SetCachedText("")
	return nil
}

func (l *sheetLoader) load(recs []Record) error {
	sh := l.sh
	for i, r := range recs {
		if l.depth > 0 {
			// embedded substream, such as a chart
			switch r.(type) {
			case *BOFRecord:
				l.depth++
			case *EOFRecord:
				l.depth--
			}
			l.keep(r)
			continue
		}
		if l.pending != nil {
			switch r.Sid() {
			case XL_STRING, XL_SHRFMLA, XL_ARRAY, XL_TABLEOP:
			default:
				if err := l.missingString(); err != nil {
					return err
				}
			}
		}
		switch r := r.(type) {
		case *BOFRecord:
			if i == 0 {
				sh.bof = r
				continue
			}
			l.depth++
			l.keep(r)
		case *EOFRecord:
			return l.finish()
		case *IndexRecord, *DBCellRecord, *DimensionsRecord:
			// regenerated on write
		case *RowRecord:
			l.inTable = true
			sh.rows[r.Row] = r
		case *NumberRecord:
			l.cell(r.Row, r.Col, &Cell{CType: XL_CELL_NUMBER, Value: r.Value, XFIndex: r.XF})
		case *RKRecord:
			l.cell(r.Row, r.Col, &Cell{CType: XL_CELL_NUMBER, Value: r.Value(), XFIndex: r.XF})
		case *MulRKRecord:
			for i, v := range r.Values {
				l.cell(r.Row, r.FirstCol+i, &Cell{CType: XL_CELL_NUMBER, Value: DecodeRK(v.RK), XFIndex: v.XF})
			}
		case *LabelSSTRecord:
			s, err := l.bk().sharedString(r.SST)
			if err != nil {
				return err
			}
			l.cell(r.Row, r.Col, &Cell{CType: XL_CELL_TEXT, Value: s, XFIndex: r.XF})
		case *LabelRecord:
			l.cell(r.Row, r.Col, &Cell{CType: XL_CELL_TEXT, Value: r.Value, XFIndex: r.XF})
		case *BoolErrRecord:
			if r.IsError {
				l.cell(r.Row, r.Col, &Cell{CType: XL_CELL_ERROR, Value: ErrorCode(r.Value), XFIndex: r.XF})
			} else {
				l.cell(r.Row, r.Col, &Cell{CType: XL_CELL_BOOLEAN, Value: r.Value != 0, XFIndex: r.XF})
			}
		case *BlankRecord:
			l.cell(r.Row, r.Col, &Cell{CType: XL_CELL_BLANK, Value: "", XFIndex: r.XF})
		case *MulBlankRecord:
			for i, xf := range r.XFs {
				l.cell(r.Row, r.FirstCol+i, &Cell{CType: XL_CELL_BLANK, Value: "", XFIndex: xf})
			}
		case *FormulaRecord:
			f := &FormulaRecordAggregate{Record: r}
			l.cell(r.Row, r.Col, &Cell{XFIndex: r.XF, Formula: f})
			l.last = f
			if r.HasStringResult() {
				l.pending = f
			}
			if len(r.Formula) == 1 {
				if e, ok := r.Formula[0].(*ExpPtg); ok && !e.Table {
					l.exps = append(l.exps, f)
				}
			}
		case *StringRecord:
			if l.pending == nil {
				l.bk().logf(0, "*** WARNING: %s: STRING record without a string formula result discarded\n", QuotedSheetName(sh.Name))
				continue
			}
			l.pending.text = r.Value
			l.pending = nil
		case *SharedFormulaRecord:
			if l.last == nil {
				return NewXLRDError("SHRFMLA record %s without a preceding FORMULA", r.Range)
			}
			sh.shared = append(sh.shared, &SharedFormulaGroup{Record: r, AnchorRow: l.last.Record.Row, AnchorCol: l.last.Record.Col})
		case *ArrayRecord:
			if l.last == nil {
				return NewXLRDError("ARRAY record %s without a preceding FORMULA", r.Range)
			}
			sh.arrays = append(sh.arrays, &ArrayFormulaGroup{Record: r, AnchorRow: l.last.Record.Row, AnchorCol: l.last.Record.Col})
		case *MergedCellsRecord:
			sh.MergedCells = append(sh.MergedCells, r.Ranges...)
		default:
			if r.Sid() == XL_TABLEOP && l.last != nil {
				l.last.table = r
				continue
			}
			l.keep(r)
		}
	}
	l.bk().logf(0, "*** WARNING: %s: worksheet substream has no EOF record\n", QuotedSheetName(sh.Name))
	return l.finish()
}

func (l *sheetLoader) finish() error {
	if l.pending != nil {
		if err := l.missingString(); err != nil {
			return err
		}
	}
	for _, f := range l.exps {
		if err := l.resolveExp(f); err != nil {
			return err
		}
	}
	return nil
}

// resolveExp attaches a cell whose formula is a tExp to the shared or
// array formula it points at.
func (l *sheetLoader) resolveExp(f *FormulaRecordAggregate) error {
	sh := l.sh
	e := f.Record.Formula[0].(*ExpPtg)
	row, col := f.Record.Row, f.Record.Col
	for _, g := range sh.arrays {
		if g.AnchorRow == e.Row && g.AnchorCol == e.Col {
			if !g.Record.Range.Contains(row, col) {
				return NewXLRDError("%s!%s lies outside array formula %s", QuotedSheetName(sh.Name), CellName(row, col), g.Record.Range)
			}
			f.array = g
			return nil
		}
	}
	var found *SharedFormulaGroup
	for _, g := range sh.shared {
		if g.AnchorRow == e.Row && g.AnchorCol == e.Col {
			found = g
			break
		}
	}
	if found == nil {
		// some writers point tExp at the first cell of the range rather
		// than at the cell the SHRFMLA follows
		for _, g := range sh.shared {
			if g.Record.Range.FirstRow == e.Row && g.Record.Range.FirstCol == e.Col {
				found = g
				break
			}
		}
	}
	if found == nil {
		return NewXLRDError("%s!%s refers to missing shared formula at %s", QuotedSheetName(sh.Name), CellName(row, col), CellName(e.Row, e.Col))
	}
	if !found.Record.Range.Contains(row, col) {
		return NewXLRDError("%s!%s lies outside shared formula range %s", QuotedSheetName(sh.Name), CellName(row, col), found.Record.Range)
	}
	found.add(f)
	return nil
}
