package xlcalc

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/yamitzky/xlcalc-go/xlrd"
)

var lookupFunctions = map[string]function{
	"INDIRECT":  fnIndirect,
	"OFFSET":    fnOffset,
	"INDEX":     fnIndex,
	"ROW":       position(true),
	"COLUMN":    position(false),
	"ROWS":      extent(true),
	"COLUMNS":   extent(false),
	"AREAS":     fnAreas,
	"ADDRESS":   fnAddress,
	"TRANSPOSE": fnTranspose,
	"VLOOKUP":   tableLookup(true),
	"HLOOKUP":   tableLookup(false),
	"LOOKUP":    fnLookup,
	"MATCH":     fnMatch,
}

const (
	maxRows = 0x10000
	maxCols = 0x100
)

// fnIndirect turns text such as "Sheet2!B1:C3" or "R2C3" into a
// reference. Text that does not name cells of a known sheet gives #REF!.
func fnIndirect(sc *scope, args []Value) Value {
	text, e := sc.text(args[0])
	if e != nil {
		return e
	}
	a1, e := sc.optBool(args, 1, true)
	if e != nil {
		return e
	}
	return sc.indirect(text, a1)
}

func (sc *scope) indirect(text string, a1 bool) Value {
	book, sheet, ref, ok := splitIndirect(text)
	if !ok {
		return errRef
	}
	ev := sc.ev
	if book != "" {
		if ev = sc.ev.lookupBook(book); ev == nil {
			sc.ev.logf(1, "INDIRECT: workbook %q is not part of the environment\n", book)
			return errRef
		}
	}
	sheetx := sc.sheet
	switch {
	case sheet != "":
		if sheetx = ev.book.SheetIndex(sheet); sheetx < 0 {
			return errRef
		}
	case ev != sc.ev:
		sheetx = 0
	}

	var area xlrd.CellRange
	if a1 {
		area, ok = parseA1Area(ref)
	} else {
		area, ok = sc.parseR1C1Area(ref)
	}
	if ok {
		return newAreaRef(ev, sheetx, area)
	}
	if sheet == "" {
		scopeSheet := sc.sheet
		if ev != sc.ev {
			scopeSheet = -1
		}
		if n := ev.book.NameByText(strings.TrimSpace(ref), scopeSheet); n != nil {
			if r, ok := ev.evalName(sc, n).(*Reference); ok {
				return r
			}
		}
	}
	return errRef
}

// splitIndirect separates the workbook, sheet and cell parts of the text
// of an INDIRECT reference. The sheet part may be quoted, doubling any
// quote inside it.
func splitIndirect(text string) (book, sheet, ref string, ok bool) {
	if !strings.HasPrefix(text, "'") {
		i := strings.LastIndexByte(text, '!')
		if i < 0 {
			return "", "", text, true
		}
		prefix := text[:i]
		if strings.ContainsAny(prefix, "'") {
			return "", "", "", false
		}
		book, sheet, ok = splitBook(prefix)
		return book, sheet, text[i+1:], ok
	}
	var b strings.Builder
	i := 1
	for {
		j := strings.IndexByte(text[i:], '\'')
		if j < 0 {
			return "", "", "", false
		}
		b.WriteString(text[i : i+j])
		i += j + 1
		if i < len(text) && text[i] == '\'' {
			b.WriteByte('\'')
			i++
			continue
		}
		break
	}
	if i >= len(text) || text[i] != '!' {
		return "", "", "", false
	}
	book, sheet, ok = splitBook(b.String())
	return book, sheet, text[i+1:], ok
}

func splitBook(prefix string) (book, sheet string, ok bool) {
	if !strings.HasPrefix(prefix, "[") {
		return "", prefix, prefix != ""
	}
	j := strings.IndexByte(prefix, ']')
	if j < 0 {
		return "", "", false
	}
	return prefix[1:j], prefix[j+1:], j > 1
}

// parseA1Area reads a cell or area in A1 notation. Spaces around the
// corners are allowed.
func parseA1Area(ref string) (xlrd.CellRange, bool) {
	parts := strings.Split(ref, ":")
	if len(parts) > 2 {
		return xlrd.CellRange{}, false
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	area, _, ok := xlrd.ParseAreaName(strings.Join(parts, ":"))
	if !ok {
		return xlrd.CellRange{}, false
	}
	return areaRange(area), true
}

var r1c1Re = regexp.MustCompile(`^(?i)R(\[-?\d+\]|\d+)?C(\[-?\d+\]|\d+)?$`)

// parseR1C1Area reads a cell or area in R1C1 notation. Bracketed
// offsets are relative to the formula cell.
func (sc *scope) parseR1C1Area(ref string) (xlrd.CellRange, bool) {
	parts := strings.Split(ref, ":")
	if len(parts) > 2 {
		return xlrd.CellRange{}, false
	}
	var rows, cols [2]int
	for i := 0; i < 2; i++ {
		p := strings.TrimSpace(parts[min(i, len(parts)-1)])
		m := r1c1Re.FindStringSubmatch(p)
		if m == nil {
			return xlrd.CellRange{}, false
		}
		var ok bool
		if rows[i], ok = r1c1Part(m[1], sc.row, maxRows); !ok {
			return xlrd.CellRange{}, false
		}
		if cols[i], ok = r1c1Part(m[2], sc.col, maxCols); !ok {
			return xlrd.CellRange{}, false
		}
	}
	return normalize(xlrd.CellRange{FirstRow: rows[0], LastRow: rows[1], FirstCol: cols[0], LastCol: cols[1]}), true
}

func r1c1Part(s string, base, limit int) (int, bool) {
	n := base
	switch {
	case s == "":
	case s[0] == '[':
		off, err := strconv.Atoi(s[1 : len(s)-1])
		if err != nil {
			return 0, false
		}
		n = base + off
	default:
		abs, err := strconv.Atoi(s)
		if err != nil {
			return 0, false
		}
		n = abs - 1
	}
	return n, n >= 0 && n < limit
}

// floor reads a numeric argument rounded down, as OFFSET and INDEX take
// their counts.
func (sc *scope) floor(v Value) (int, Value) {
	x, e := sc.number(v)
	if e != nil {
		return 0, e
	}
	x = math.Floor(x)
	if math.Abs(x) > math.MaxInt32 {
		return 0, errValue
	}
	return int(x), nil
}

func fnOffset(sc *scope, args []Value) Value {
	base, ok := args[0].(*Reference)
	if !ok {
		if isError(args[0]) {
			return args[0]
		}
		return errValue
	}
	if !base.isArea() {
		return errValue
	}
	var n [4]int
	h, w := base.dims()
	n[2], n[3] = h, w
	for i := 1; i < len(args); i++ {
		if !given(args, i) {
			continue
		}
		var e Value
		if n[i-1], e = sc.floor(args[i]); e != nil {
			return e
		}
	}
	if n[2] == 0 || n[3] == 0 {
		return errRef
	}
	a := base.Areas[0]
	first := xlrd.CellRange{FirstRow: a.FirstRow + n[0], FirstCol: a.FirstCol + n[1]}
	first.LastRow = first.FirstRow + n[2] - sign(n[2])
	first.LastCol = first.FirstCol + n[3] - sign(n[3])
	first = normalize(first)
	if first.FirstRow < 0 || first.FirstCol < 0 || first.LastRow >= maxRows || first.LastCol >= maxCols {
		return errRef
	}
	return &Reference{ev: base.ev, FirstSheet: base.FirstSheet, LastSheet: base.LastSheet, Areas: []xlrd.CellRange{first}}
}

// fnIndex picks a cell, row or column of an area or array. A 0 row or
// column selects the whole column or row.
func fnIndex(sc *scope, args []Value) Value {
	if e, ok := args[0].(ErrorValue); ok {
		return e
	}
	row, col := 0, 0
	var e Value
	if row, e = sc.floor(args[1]); e != nil {
		return e
	}
	if given(args, 2) {
		if col, e = sc.floor(args[2]); e != nil {
			return e
		}
	}
	if row < 0 || col < 0 {
		return errValue
	}

	ref, isRef := args[0].(*Reference)
	if isRef {
		n := 1
		if given(args, 3) {
			if n, e = sc.floor(args[3]); e != nil {
				return e
			}
		}
		if ref.FirstSheet != ref.LastSheet {
			return errRef
		}
		if n < 1 || n > len(ref.Areas) {
			return errRef
		}
		a := ref.Areas[n-1]
		ref = &Reference{ev: ref.ev, FirstSheet: ref.FirstSheet, LastSheet: ref.LastSheet, Areas: []xlrd.CellRange{a}}
		rows, cols := ref.dims()
		if rows == 1 && !given(args, 2) {
			row, col = 0, row
		}
		if row > rows || col > cols {
			return errRef
		}
		if row > 0 {
			a.FirstRow += row - 1
			a.LastRow = a.FirstRow
		}
		if col > 0 {
			a.FirstCol += col - 1
			a.LastCol = a.FirstCol
		}
		ref.Areas[0] = a
		return ref
	}

	g, e := toGrid(args[0])
	if e != nil {
		return e
	}
	rows, cols := g.dims()
	if rows == 1 && !given(args, 2) {
		row, col = 0, row
	}
	if row > rows || col > cols {
		return errRef
	}
	switch {
	case row > 0 && col > 0:
		return g.at(row-1, col-1)
	case row > 0:
		out := newArray(1, cols)
		for j := 0; j < cols; j++ {
			out.set(0, j, g.at(row-1, j))
		}
		return out
	case col > 0:
		out := newArray(rows, 1)
		for i := 0; i < rows; i++ {
			out.set(i, 0, g.at(i, col-1))
		}
		return out
	}
	if a, ok := g.(*ArrayValue); ok {
		return a
	}
	return g.at(0, 0)
}

// position builds ROW (rows set) and COLUMN.
func position(rows bool) function {
	return func(sc *scope, args []Value) Value {
		if !given(args, 0) {
			if rows {
				return float64(sc.row + 1)
			}
			return float64(sc.col + 1)
		}
		r, ok := args[0].(*Reference)
		if !ok {
			if isError(args[0]) {
				return args[0]
			}
			return errValue
		}
		a := r.Areas[0]
		if rows {
			return float64(a.FirstRow + 1)
		}
		return float64(a.FirstCol + 1)
	}
}

// extent builds ROWS (rows set) and COLUMNS. They look at the shape of
// their argument only, never at the cells.
func extent(rows bool) function {
	return func(sc *scope, args []Value) Value {
		var r, c int
		switch x := args[0].(type) {
		case *Reference:
			if !x.isArea() {
				return errValue
			}
			r, c = x.dims()
		case *ArrayValue:
			r, c = x.dims()
		case ErrorValue:
			return x
		default:
			r, c = 1, 1
		}
		if rows {
			return float64(r)
		}
		return float64(c)
	}
}

func fnAreas(sc *scope, args []Value) Value {
	r, ok := args[0].(*Reference)
	if !ok {
		if isError(args[0]) {
			return args[0]
		}
		return errValue
	}
	return float64(len(r.Areas))
}

// fnAddress builds the text of a cell reference:
// ADDRESS(row, column, [abs], [a1], [sheet]).
func fnAddress(sc *scope, args []Value) Value {
	row, e := sc.integer(args[0])
	if e != nil {
		return e
	}
	col, e := sc.integer(args[1])
	if e != nil {
		return e
	}
	abs := 1
	if given(args, 2) {
		if abs, e = sc.integer(args[2]); e != nil {
			return e
		}
	}
	a1, e := sc.optBool(args, 3, true)
	if e != nil {
		return e
	}
	if row < 1 || row > maxRows || col < 1 || col > maxCols || abs < 1 || abs > 4 {
		return errValue
	}
	absRow, absCol := abs == 1 || abs == 2, abs == 1 || abs == 3
	var s string
	if a1 {
		name := xlrd.CellName(row-1, col-1)
		i := strings.IndexAny(name, "0123456789")
		colPart, rowPart := name[:i], name[i:]
		if absCol {
			colPart = "$" + colPart
		}
		if absRow {
			rowPart = "$" + rowPart
		}
		s = colPart + rowPart
	} else {
		rowPart, colPart := "R"+strconv.Itoa(row), "C"+strconv.Itoa(col)
		if !absRow {
			rowPart = "R[" + strconv.Itoa(row) + "]"
		}
		if !absCol {
			colPart = "C[" + strconv.Itoa(col) + "]"
		}
		s = rowPart + colPart
	}
	if given(args, 4) {
		sheet, e := sc.text(args[4])
		if e != nil {
			return e
		}
		s = xlrd.QuotedSheetName(sheet) + "!" + s
	}
	return s
}

func fnTranspose(sc *scope, args []Value) Value {
	g, e := toGrid(args[0])
	if e != nil {
		return e
	}
	rows, cols := g.dims()
	out := newArray(cols, rows)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out.set(j, i, g.at(i, j))
		}
	}
	return out
}

// vector is one row or one column of a grid.
type vector struct {
	g     grid
	index int
	byRow bool
	n     int
}

func (v vector) at(k int) Value {
	if v.byRow {
		return v.g.at(v.index, k)
	}
	return v.g.at(k, v.index)
}

// lookupKey reduces a lookup value to a scalar; a blank key looks for 0.
func (sc *scope) lookupKey(v Value) Value {
	switch x := sc.scalar(v).(type) {
	case BlankValue, missingArg:
		return 0.0
	default:
		return x
	}
}

// findExact returns the index of the first element equal to key, or -1.
// Text keys may hold wildcards and match regardless of case.
func findExact(key Value, vec vector) int {
	var re *regexp.Regexp
	if s, ok := key.(string); ok && strings.ContainsAny(s, "*?~") {
		re = wildcardRegexp(s, true)
	}
	for k := 0; k < vec.n; k++ {
		v := vec.at(k)
		if re != nil {
			if s, ok := v.(string); ok && re.MatchString(s) {
				return k
			}
			continue
		}
		if _, blank := v.(BlankValue); blank || typeRank(v) != typeRank(key) || isError(v) {
			continue
		}
		if d, e := compareValues(v, key); e == nil && d == 0 {
			return k
		}
	}
	return -1
}

// findSorted returns the index of the last element of the key's type
// that is not beyond key, given elements sorted ascending (order 1) or
// descending (order -1). Elements of other types are skipped.
func findSorted(key Value, vec vector, order int) int {
	found := -1
	for k := 0; k < vec.n; k++ {
		v := vec.at(k)
		if _, blank := v.(BlankValue); blank || typeRank(v) != typeRank(key) || isError(v) {
			continue
		}
		d, e := compareValues(v, key)
		if e != nil {
			continue
		}
		if d*order > 0 {
			break
		}
		found = k
		if d == 0 && order < 0 {
			break
		}
	}
	return found
}

// tableLookup builds VLOOKUP (vertical set) and HLOOKUP.
func tableLookup(vertical bool) function {
	return func(sc *scope, args []Value) Value {
		key := sc.lookupKey(args[0])
		if isError(key) {
			return key
		}
		g, e := toGrid(args[1])
		if e != nil {
			return e
		}
		index, e := sc.integer(args[2])
		if e != nil {
			return e
		}
		approx, e := sc.optBool(args, 3, true)
		if e != nil {
			return e
		}
		rows, cols := g.dims()
		keys := vector{g: g, index: 0, byRow: !vertical, n: rows}
		width := cols
		if !vertical {
			keys.n, width = cols, rows
		}
		if index < 1 {
			return errValue
		}
		if index > width {
			return errRef
		}
		var k int
		if approx {
			k = findSorted(key, keys, 1)
		} else {
			k = findExact(key, keys)
		}
		if k < 0 {
			return errNA
		}
		if vertical {
			return g.at(k, index-1)
		}
		return g.at(index-1, k)
	}
}

// fnLookup is the vector form LOOKUP(key, lookup vector, [result vector]);
// a two-dimensional lookup area searches its longer side.
func fnLookup(sc *scope, args []Value) Value {
	key := sc.lookupKey(args[0])
	if isError(key) {
		return key
	}
	g, e := toGrid(args[1])
	if e != nil {
		return e
	}
	rows, cols := g.dims()
	keys := vector{g: g, n: rows}
	result := vector{g: g, index: cols - 1, n: rows}
	if cols > rows {
		keys = vector{g: g, byRow: true, n: cols}
		result = vector{g: g, index: rows - 1, byRow: true, n: cols}
	}
	if given(args, 2) {
		rg, e := toGrid(args[2])
		if e != nil {
			return e
		}
		r, c := rg.dims()
		if r != 1 && c != 1 {
			return errNA
		}
		result = vector{g: rg, byRow: r == 1, n: max(r, c)}
	}
	k := findSorted(key, keys, 1)
	if k < 0 {
		return errNA
	}
	if k >= result.n {
		return errRef
	}
	return result.at(k)
}

// fnMatch returns the position of a value in one row or column:
// exactly (type 0), the largest not above it in ascending data (1), or
// the smallest not below it in descending data (-1).
func fnMatch(sc *scope, args []Value) Value {
	key := sc.lookupKey(args[0])
	if isError(key) {
		return key
	}
	g, e := toGrid(args[1])
	if e != nil {
		return e
	}
	kind := 1.0
	if given(args, 2) {
		if kind, e = sc.number(args[2]); e != nil {
			return e
		}
	}
	rows, cols := g.dims()
	if rows != 1 && cols != 1 {
		return errNA
	}
	vec := vector{g: g, byRow: rows == 1, n: max(rows, cols)}
	var k int
	switch {
	case kind == 0:
		k = findExact(key, vec)
	case kind > 0:
		k = findSorted(key, vec, 1)
	default:
		k = findSorted(key, vec, -1)
	}
	if k < 0 {
		return errNA
	}
	return float64(k + 1)
}
