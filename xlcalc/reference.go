package xlcalc

import (
	"strings"

	"github.com/yamitzky/xlcalc-go/xlrd"
)

// Reference is a reference to cells: one or more areas of a sheet, or
// one area across a range of sheets.
type Reference struct {
	ev         *Evaluator
	FirstSheet int
	LastSheet  int
	Areas      []xlrd.CellRange
}

func newCellRef(ev *Evaluator, sheetx, rowx, colx int) *Reference {
	return newAreaRef(ev, sheetx, xlrd.CellRange{FirstRow: rowx, LastRow: rowx, FirstCol: colx, LastCol: colx})
}

func newAreaRef(ev *Evaluator, sheetx int, a xlrd.CellRange) *Reference {
	return &Reference{ev: ev, FirstSheet: sheetx, LastSheet: sheetx, Areas: []xlrd.CellRange{normalize(a)}}
}

func normalize(a xlrd.CellRange) xlrd.CellRange {
	if a.FirstRow > a.LastRow {
		a.FirstRow, a.LastRow = a.LastRow, a.FirstRow
	}
	if a.FirstCol > a.LastCol {
		a.FirstCol, a.LastCol = a.LastCol, a.FirstCol
	}
	return a
}

// Evaluator returns the evaluator of the workbook the cells belong to.
func (r *Reference) Evaluator() *Evaluator { return r.ev }

func (r *Reference) String() string {
	names := r.ev.book.SheetNames()
	name := func(i int) string {
		if i < 0 || i >= len(names) {
			return "#REF"
		}
		return names[i]
	}
	prefix := xlrd.QuotedSheetName(name(r.FirstSheet))
	if r.LastSheet != r.FirstSheet {
		prefix = xlrd.QuotedSheetName(name(r.FirstSheet) + ":" + name(r.LastSheet))
	}
	parts := make([]string, len(r.Areas))
	for i, a := range r.Areas {
		parts[i] = a.String()
	}
	return prefix + "!" + strings.Join(parts, ",")
}

// isArea reports whether the reference is a single rectangle on one
// sheet.
func (r *Reference) isArea() bool {
	return r.FirstSheet == r.LastSheet && len(r.Areas) == 1
}

func (r *Reference) isCell() bool {
	if !r.isArea() {
		return false
	}
	a := r.Areas[0]
	return a.FirstRow == a.LastRow && a.FirstCol == a.LastCol
}

func (r *Reference) dims() (int, int) {
	a := r.Areas[0]
	return a.LastRow - a.FirstRow + 1, a.LastCol - a.FirstCol + 1
}

// at reads a cell of a single-area reference. Cells of a larger area
// that lie outside the used range of the sheet are blank and are not
// read; observe covers them.
func (r *Reference) at(row, col int) Value {
	a := r.Areas[0]
	sh, err := r.ev.sheet(r.FirstSheet)
	if err != nil {
		return errRef
	}
	row, col = a.FirstRow+row, a.FirstCol+col
	if (row >= sh.NRows || col >= sh.NCols) && !r.isCell() {
		return Blank
	}
	return r.ev.cellValue(r.FirstSheet, row, col)
}

// size is the number of cells referred to.
func (r *Reference) size() int {
	n := 0
	for _, a := range r.Areas {
		n += (a.LastRow - a.FirstRow + 1) * (a.LastCol - a.FirstCol + 1)
	}
	return n * (r.LastSheet - r.FirstSheet + 1)
}

// observe makes the formula being evaluated depend on every cell of the
// reference, including those that are empty now.
func (r *Reference) observe() {
	for s := r.FirstSheet; s <= r.LastSheet; s++ {
		for _, a := range r.Areas {
			if a.FirstRow != a.LastRow || a.FirstCol != a.LastCol {
				r.ev.cache.observe(areaKey{ev: r.ev, sheet: s, area: a})
			}
		}
	}
}

// each calls fn with the value of every cell of the reference that lies
// inside the used range of its sheet, until fn returns false.
func (r *Reference) each(fn func(v Value) bool) {
	r.observe()
	for s := r.FirstSheet; s <= r.LastSheet; s++ {
		sh, err := r.ev.sheet(s)
		if err != nil {
			fn(errRef)
			return
		}
		for _, a := range r.Areas {
			lastRow := min(a.LastRow, sh.NRows-1)
			lastCol := min(a.LastCol, sh.NCols-1)
			for row := a.FirstRow; row <= lastRow; row++ {
				for col := a.FirstCol; col <= lastCol; col++ {
					if !fn(r.ev.cellValue(s, row, col)) {
						return
					}
				}
			}
		}
	}
}

// intersect picks the cell of a one-row or one-column area that shares
// the row or column of the formula cell at (rowx, colx).
func (r *Reference) intersect(rowx, colx int) Value {
	if !r.isArea() {
		return errValue
	}
	a := r.Areas[0]
	switch {
	case a.FirstRow == a.LastRow && a.FirstCol == a.LastCol:
		return r.ev.cellValue(r.FirstSheet, a.FirstRow, a.FirstCol)
	case a.FirstRow == a.LastRow:
		if colx >= a.FirstCol && colx <= a.LastCol {
			return r.ev.cellValue(r.FirstSheet, a.FirstRow, colx)
		}
	case a.FirstCol == a.LastCol:
		if rowx >= a.FirstRow && rowx <= a.LastRow {
			return r.ev.cellValue(r.FirstSheet, rowx, a.FirstCol)
		}
	}
	return errValue
}

// materialize reads a single-area reference into an array.
func (r *Reference) materialize() Value {
	if !r.isArea() {
		return errValue
	}
	r.observe()
	rows, cols := r.dims()
	out := newArray(rows, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out.set(i, j, r.at(i, j))
		}
	}
	return out
}
