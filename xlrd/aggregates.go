package xlrd

// FormulaRecordAggregate is a FORMULA record together with the records
// that travel with it: the STRING holding a text result, and the
// SHRFMLA or ARRAY record when the cell anchors a group.
//
// The STRING record is never stored; it is derived from the cached
// result when the sheet is written, so it exists exactly when the cached
// result is a non-empty string.
type FormulaRecordAggregate struct {
	Record *FormulaRecord

	text   string
	shared *SharedFormulaGroup
	array  *ArrayFormulaGroup
	// table is the TABLEOP record of a data-table cell, kept opaque.
	table Record
}

// NewFormulaRecordAggregate wraps a FORMULA record for the given cell.
func NewFormulaRecordAggregate(row, col, xf int, toks []Ptg) *FormulaRecordAggregate {
	rec := &FormulaRecord{CellHeader: CellHeader{Row: row, Col: col, XF: xf}, Formula: toks}
	rec.Options = FormulaCalcOnLoad
	rec.SetCachedNumber(0)
	return &FormulaRecordAggregate{Record: rec}
}

// CachedType returns the XL_CELL_* type of the cached result.
func (a *FormulaRecordAggregate) CachedType() int {
	return a.Record.CachedType()
}

// CachedValue returns the cached result as float64, string, bool or
// ErrorCode.
func (a *FormulaRecordAggregate) CachedValue() interface{} {
	switch a.Record.CachedType() {
	case XL_CELL_NUMBER:
		return a.Record.CachedNumber()
	case XL_CELL_BOOLEAN:
		return a.Record.CachedBool()
	case XL_CELL_ERROR:
		return a.Record.CachedError()
	}
	return a.text
}

// StringValue returns the cached text result; it is empty unless the
// cached type is XL_CELL_TEXT.
func (a *FormulaRecordAggregate) StringValue() string {
	if a.Record.CachedType() != XL_CELL_TEXT {
		return ""
	}
	return a.text
}

// SetCachedNumber stores a numeric result, dropping any STRING companion.
func (a *FormulaRecordAggregate) SetCachedNumber(v float64) {
	a.Record.SetCachedNumber(v)
	a.text = ""
}

// SetCachedBool stores a boolean result, dropping any STRING companion.
func (a *FormulaRecordAggregate) SetCachedBool(v bool) {
	a.Record.SetCachedBool(v)
	a.text = ""
}

// SetCachedError stores an error result, dropping any STRING companion.
func (a *FormulaRecordAggregate) SetCachedError(code ErrorCode) {
	a.Record.SetCachedError(code)
	a.text = ""
}

// SetCachedText stores a text result.
func (a *FormulaRecordAggregate) SetCachedText(s string) {
	a.Record.setCachedText(s == "")
	a.text = s
}

// SetCachedValue stores v, which must be float64, string, bool or
// ErrorCode.
func (a *FormulaRecordAggregate) SetCachedValue(v interface{}) {
	switch x := v.(type) {
	case float64:
		a.SetCachedNumber(x)
	case string:
		a.SetCachedText(x)
	case bool:
		a.SetCachedBool(x)
	case ErrorCode:
		a.SetCachedError(x)
	case int:
		a.SetCachedNumber(float64(x))
	default:
		a.SetCachedText("")
	}
}

// StringRecord returns the STRING companion to write after the FORMULA,
// or nil when the cached result is not a non-empty string.
func (a *FormulaRecordAggregate) StringRecord() *StringRecord {
	if !a.Record.HasStringResult() {
		return nil
	}
	return &StringRecord{Value: a.text}
}

// SharedGroup returns the shared formula group the cell belongs to.
func (a *FormulaRecordAggregate) SharedGroup() *SharedFormulaGroup { return a.shared }

// ArrayGroup returns the array formula the cell is part of.
func (a *FormulaRecordAggregate) ArrayGroup() *ArrayFormulaGroup { return a.array }

// Tokens returns the formula of the cell with shared formulas expanded.
// Array formula members return the tokens of the whole array formula.
func (a *FormulaRecordAggregate) Tokens() []Ptg {
	switch {
	case a.shared != nil:
		return RelocateSharedFormula(a.shared.Record.Formula, a.Record.Row, a.Record.Col)
	case a.array != nil:
		return a.array.Record.Formula
	}
	return a.Record.Formula
}

// setTokens replaces the formula and takes the cell out of its shared
// group.
func (a *FormulaRecordAggregate) setTokens(toks []Ptg) {
	if a.shared != nil {
		a.shared.remove(a)
	}
	a.Record.Formula = toks
	a.Record.Options &^= FormulaShared
}

// unshare gives the cell its own copy of the shared tokens.
func (a *FormulaRecordAggregate) unshare() {
	if a.shared == nil {
		return
	}
	toks := a.Tokens()
	a.shared = nil
	a.Record.Formula = toks
	a.Record.Options &^= FormulaShared
}

// records returns the FORMULA record and its companions in stream order.
func (a *FormulaRecordAggregate) records() []Record {
	out := []Record{a.Record}
	row, col := a.Record.Row, a.Record.Col
	if g := a.shared; g != nil && g.AnchorRow == row && g.AnchorCol == col {
		g.Record.Uses = len(g.members)
		if g.Record.Uses > 0xFF {
			g.Record.Uses = 0xFF
		}
		out = append(out, g.Record)
	}
	if g := a.array; g != nil && g.AnchorRow == row && g.AnchorCol == col {
		out = append(out, g.Record)
	}
	if a.table != nil {
		out = append(out, a.table)
	}
	if s := a.StringRecord(); s != nil {
		out = append(out, s)
	}
	return out
}

// SharedFormulaGroup is a SHRFMLA record and the FORMULA cells that
// reference it through tExp. The anchor is the cell whose FORMULA record
// the SHRFMLA follows.
type SharedFormulaGroup struct {
	Record               *SharedFormulaRecord
	AnchorRow, AnchorCol int
	members              []*FormulaRecordAggregate
}

// Members returns the cells using the group.
func (g *SharedFormulaGroup) Members() []*FormulaRecordAggregate { return g.members }

func (g *SharedFormulaGroup) add(a *FormulaRecordAggregate) {
	a.shared = g
	a.Record.Options |= FormulaShared
	g.members = append(g.members, a)
}

func (g *SharedFormulaGroup) remove(a *FormulaRecordAggregate) {
	for i, m := range g.members {
		if m == a {
			g.members = append(g.members[:i], g.members[i+1:]...)
			break
		}
	}
	a.shared = nil
}

// unshareAll converts every member to a plain formula; the group is
// dissolved.
func (g *SharedFormulaGroup) unshareAll() {
	members := g.members
	g.members = nil
	for _, m := range members {
		m.unshare()
	}
}

// ArrayFormulaGroup is an ARRAY record and the range of cells it fills.
type ArrayFormulaGroup struct {
	Record               *ArrayRecord
	AnchorRow, AnchorCol int
}

// Range returns the cells covered by the array formula.
func (g *ArrayFormulaGroup) Range() CellRange { return g.Record.Range }
