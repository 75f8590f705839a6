package xlrd

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/efp"
)

// Binding powers for the precedence climber; higher binds tighter.
const (
	bpPercent = 55
	bpPrefix  = 60
)

var infixOps = map[string]struct {
	op byte
	bp int
}{
	"=":  {tEQ, rankCompare},
	"<>": {tNE, rankCompare},
	"<":  {tLT, rankCompare},
	"<=": {tLE, rankCompare},
	">":  {tGT, rankCompare},
	">=": {tGE, rankCompare},
	"&":  {tConcat, rankConcat},
	"+":  {tAdd, rankAdd},
	"-":  {tSub, rankAdd},
	"*":  {tMul, rankMul},
	"/":  {tDiv, rankMul},
	"^":  {tPower, rankPower},
}

var volatileFuncs = map[string]bool{
	"NOW": true, "TODAY": true, "RAND": true, "INDIRECT": true, "OFFSET": true, "CELL": true, "INFO": true,
}

var (
	cellRefRe = regexp.MustCompile(`^(\$?)([A-Za-z]{1,3})(\$?)([0-9]{1,5})$`)
	colRefRe  = regexp.MustCompile(`^(\$?)([A-Za-z]{1,3})$`)
	rowRefRe  = regexp.MustCompile(`^(\$?)([0-9]{1,5})$`)
)

// colIndex converts a column name ("A", "iv") to a 0-based index.
func colIndex(name string) int {
	n := 0
	for _, c := range strings.ToUpper(name) {
		n = n*26 + int(c-'A') + 1
	}
	return n - 1
}

// ParseCellName parses an A1-style cell name such as "$B$3".
func ParseCellName(s string) (CellRef, bool) {
	m := cellRefRe.FindStringSubmatch(s)
	if m == nil {
		return CellRef{}, false
	}
	col := colIndex(m[2])
	row, err := strconv.Atoi(m[4])
	if err != nil || col > 0xFF || row < 1 || row > 0x10000 {
		return CellRef{}, false
	}
	return CellRef{Row: row - 1, Col: col, ColRel: m[1] == "", RowRel: m[3] == ""}, true
}

// ParseAreaName parses a cell, area, whole-column ("A:C") or whole-row
// ("1:3") reference. single reports a one-cell reference without ":".
func ParseAreaName(s string) (area AreaRef, single bool, ok bool) {
	i := strings.IndexByte(s, ':')
	if i < 0 {
		c, ok := ParseCellName(s)
		return AreaRef{First: c, Last: c}, true, ok
	}
	a, b := s[:i], s[i+1:]
	if c1, ok1 := ParseCellName(a); ok1 {
		c2, ok2 := ParseCellName(b)
		return AreaRef{First: c1, Last: c2}, false, ok2
	}
	if m1, m2 := colRefRe.FindStringSubmatch(a), colRefRe.FindStringSubmatch(b); m1 != nil && m2 != nil {
		c1, c2 := colIndex(m1[2]), colIndex(m2[2])
		if c1 > 0xFF || c2 > 0xFF {
			return AreaRef{}, false, false
		}
		return AreaRef{
			First: CellRef{Row: 0, Col: c1, ColRel: m1[1] == ""},
			Last:  CellRef{Row: 0xFFFF, Col: c2, ColRel: m2[1] == ""},
		}, false, true
	}
	if m1, m2 := rowRefRe.FindStringSubmatch(a), rowRefRe.FindStringSubmatch(b); m1 != nil && m2 != nil {
		r1, _ := strconv.Atoi(m1[2])
		r2, _ := strconv.Atoi(m2[2])
		if r1 < 1 || r2 < 1 || r1 > 0x10000 || r2 > 0x10000 {
			return AreaRef{}, false, false
		}
		return AreaRef{
			First: CellRef{Row: r1 - 1, Col: 0, RowRel: m1[1] == ""},
			Last:  CellRef{Row: r2 - 1, Col: 0xFF, RowRel: m2[1] == ""},
		}, false, true
	}
	return AreaRef{}, false, false
}

// SplitSheetRef splits "[Book]Sheet!A1" into its parts. Quotes around the
// sheet part have already been removed by the tokeniser.
func SplitSheetRef(text string) (book, sheet, ref string) {
	i := strings.LastIndexByte(text, '!')
	if i < 0 {
		return "", "", text
	}
	prefix, ref := text[:i], text[i+1:]
	if strings.HasPrefix(prefix, "'") && strings.HasSuffix(prefix, "'") && len(prefix) >= 2 {
		prefix = strings.ReplaceAll(prefix[1:len(prefix)-1], "''", "'")
	}
	if strings.HasPrefix(prefix, "[") {
		if j := strings.IndexByte(prefix, ']'); j > 0 {
			return prefix[1:j], prefix[j+1:], ref
		}
	}
	return "", prefix, ref
}

type formulaParser struct {
	book     *Book
	sheet    int
	formula  string
	toks     []efp.Token
	pos      int
	volatile bool
}

// ParseFormula compiles formula text (with or without the leading "=")
// into tokens with operand classes set for fmlaType. sheetIndex is the
// sheet the formula lives on; it scopes sheet-level names.
func (b *Book) ParseFormula(formula string, sheetIndex int, fmlaType int) ([]Ptg, error) {
	ps := efp.ExcelParser()
	p := &formulaParser{book: b, sheet: sheetIndex, formula: formula, toks: ps.Parse(formula)}
	if len(p.toks) > 0 && p.toks[0].TType == efp.TokenTypeOperatorInfix && p.toks[0].TValue == "=" {
		p.toks = p.toks[1:]
	}
	p.toks = joinRanges(p.toks)
	if len(p.toks) == 0 {
		return nil, newParseError(formula, "empty formula")
	}
	root, err := p.expr(0)
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t != nil {
		return nil, p.unexpected(t)
	}
	assignClasses(root, fmlaType)
	var out []Ptg
	if p.volatile {
		out = append(out, &AttrPtg{Options: AttrVolatile})
	}
	return root.emit(out), nil
}

func isRangeOperand(t efp.Token) bool {
	return t.TType == efp.TokenTypeOperand && t.TSubType == efp.TokenSubTypeRange
}

// joinRanges undoes the split efp makes at spaces around ":", so that
// "B1 : C3" reads as "B1:C3" rather than as intersections.
func joinRanges(toks []efp.Token) []efp.Token {
	out := make([]efp.Token, 0, len(toks))
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if n := len(out); n > 0 && isRangeOperand(t) && isRangeOperand(out[n-1]) &&
			(strings.HasSuffix(out[n-1].TValue, ":") || strings.HasPrefix(t.TValue, ":")) {
			out[n-1].TValue += t.TValue
			continue
		}
		if t.TType == efp.TokenTypeOperatorInfix && t.TSubType == efp.TokenSubTypeIntersection &&
			len(out) > 0 && i+1 < len(toks) && isRangeOperand(out[len(out)-1]) && isRangeOperand(toks[i+1]) &&
			(strings.HasSuffix(out[len(out)-1].TValue, ":") || strings.HasPrefix(toks[i+1].TValue, ":")) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (p *formulaParser) peek() *efp.Token {
	if p.pos >= len(p.toks) {
		return nil
	}
	return &p.toks[p.pos]
}

func (p *formulaParser) next() *efp.Token {
	t := p.peek()
	if t != nil {
		p.pos++
	}
	return t
}

func (p *formulaParser) unexpected(t *efp.Token) error {
	if t == nil {
		return newParseError(p.formula, "unexpected end of formula")
	}
	what := t.TValue
	if what == "" {
		what = t.TType + " " + t.TSubType
	}
	return newParseError(p.formula, "unexpected %q", what)
}

func isStop(t *efp.Token) bool {
	return t != nil && t.TSubType == efp.TokenSubTypeStop &&
		(t.TType == efp.TokenTypeFunction || t.TType == efp.TokenTypeSubexpression)
}

func isArgSep(t *efp.Token) bool {
	return t != nil && t.TType == efp.TokenTypeArgument
}

func op(code byte, args ...*parseNode) *parseNode {
	return &parseNode{tok: &OpPtg{Op: code}, args: args}
}

func (p *formulaParser) expr(minbp int) (*parseNode, error) {
	left, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t == nil {
			return left, nil
		}
		switch t.TType {
		case efp.TokenTypeOperatorPostfix:
			if bpPercent <= minbp {
				return left, nil
			}
			p.next()
			left = op(tPercent, left)
			continue
		case efp.TokenTypeOperatorInfix:
		default:
			return left, nil
		}
		var code byte
		var bp int
		switch t.TSubType {
		case efp.TokenSubTypeUnion:
			code, bp = tUnion, rankUnion
		case efp.TokenSubTypeIntersection:
			code, bp = tIsect, rankIsect
		default:
			o, ok := infixOps[t.TValue]
			if !ok {
				return nil, p.unexpected(t)
			}
			code, bp = o.op, o.bp
		}
		if bp <= minbp {
			return left, nil
		}
		p.next()
		right, err := p.expr(bp)
		if err != nil {
			return nil, err
		}
		left = op(code, left, right)
	}
}

func (p *formulaParser) primary() (*parseNode, error) {
	t := p.next()
	if t == nil {
		return nil, p.unexpected(nil)
	}
	switch t.TType {
	case efp.TokenTypeOperatorPrefix:
		arg, err := p.expr(bpPrefix)
		if err != nil {
			return nil, err
		}
		return op(tUminus, arg), nil
	case efp.TokenTypeSubexpression:
		if t.TSubType != efp.TokenSubTypeStart {
			return nil, p.unexpected(t)
		}
		inner, err := p.expr(0)
		if err != nil {
			return nil, err
		}
		if c := p.next(); !isStop(c) || c.TType != efp.TokenTypeSubexpression {
			return nil, newParseError(p.formula, "missing closing parenthesis")
		}
		return op(tParen, inner), nil
	case efp.TokenTypeFunction:
		if t.TSubType != efp.TokenSubTypeStart {
			return nil, p.unexpected(t)
		}
		if t.TValue == "ARRAY" {
			return p.array()
		}
		return p.call(t.TValue)
	case efp.TokenTypeOperand:
		return p.operand(t)
	}
	return nil, p.unexpected(t)
}

func numberNode(v float64) *parseNode {
	if v >= 0 && v <= 0xFFFF && v == math.Trunc(v) {
		return &parseNode{tok: &IntPtg{Value: uint16(v)}}
	}
	return &parseNode{tok: &NumPtg{Value: v}}
}

func (p *formulaParser) operand(t *efp.Token) (*parseNode, error) {
	switch t.TSubType {
	case efp.TokenSubTypeNumber:
		v, err := strconv.ParseFloat(t.TValue, 64)
		if err != nil {
			return nil, newParseError(p.formula, "bad number %q", t.TValue)
		}
		return numberNode(v), nil
	case efp.TokenSubTypeText:
		if charCount(t.TValue) > 255 {
			return nil, newParseError(p.formula, "string constant longer than 255 characters")
		}
		return &parseNode{tok: &StrPtg{Value: t.TValue}}, nil
	case efp.TokenSubTypeLogical:
		return &parseNode{tok: &BoolPtg{Value: t.TValue == "TRUE"}}, nil
	case efp.TokenSubTypeError:
		code, ok := ErrorCodeFromText[t.TValue]
		if !ok {
			return nil, newParseError(p.formula, "unknown error value %s", t.TValue)
		}
		return &parseNode{tok: &ErrPtg{Code: code}}, nil
	}
	switch strings.ToUpper(t.TValue) {
	case "TRUE", "FALSE":
		return &parseNode{tok: &BoolPtg{Value: strings.EqualFold(t.TValue, "TRUE")}}, nil
	}
	return p.reference(t.TValue)
}

func (p *formulaParser) reference(text string) (*parseNode, error) {
	book, sheet, ref := SplitSheetRef(text)
	area, single, ok := ParseAreaName(ref)
	if sheet == "" && book == "" {
		if ok {
			if single {
				return &parseNode{tok: &RefPtg{classed: classed{ClassRef}, CellRef: area.First}}, nil
			}
			return &parseNode{tok: &AreaPtg{classed: classed{ClassRef}, AreaRef: area}}, nil
		}
		if idx := p.book.nameIndex(ref, p.sheet); idx > 0 {
			return &parseNode{tok: &NamePtg{classed: classed{ClassRef}, Index: idx}}, nil
		}
		return nil, newParseError(p.formula, "unknown name %q", ref)
	}
	if strings.Contains(sheet, ":") {
		return nil, newParseError(p.formula, "references spanning several sheets (%s) are not supported", sheet)
	}
	if !ok {
		return nil, newParseError(p.formula, "bad reference %q", text)
	}
	var ixti int
	if book != "" {
		ixti = p.book.links.ExternalRef(book, sheet, "")
	} else {
		shx := p.book.SheetIndex(sheet)
		if shx < 0 {
			return nil, newParseError(p.formula, "no sheet named %q", sheet)
		}
		ixti = p.book.links.InternalRef(p.book.NSheets, shx, shx)
	}
	if single {
		return &parseNode{tok: &Ref3dPtg{classed: classed{ClassRef}, Ixti: ixti, CellRef: area.First}}, nil
	}
	return &parseNode{tok: &Area3dPtg{classed: classed{ClassRef}, Ixti: ixti, AreaRef: area}}, nil
}

func (p *formulaParser) call(name string) (*parseNode, error) {
	if strings.ContainsAny(name, ":!") {
		return nil, newParseError(p.formula, "a function call cannot be part of a reference (%s)", name)
	}
	def, ok := FuncByName(name)
	if !ok {
		return nil, newParseError(p.formula, "unknown function %s", name)
	}
	var args []*parseNode
	if isStop(p.peek()) {
		p.next()
	} else {
		for {
			var arg *parseNode
			if t := p.peek(); isArgSep(t) || isStop(t) {
				arg = op(tMissArg)
			} else {
				var err error
				if arg, err = p.expr(0); err != nil {
					return nil, err
				}
			}
			args = append(args, arg)
			t := p.next()
			if isArgSep(t) {
				continue
			}
			if isStop(t) && t.TType == efp.TokenTypeFunction {
				break
			}
			if t == nil {
				return nil, newParseError(p.formula, "missing closing parenthesis after %s arguments", def.Name)
			}
			return nil, p.unexpected(t)
		}
	}
	if len(args) < def.MinArgs || len(args) > def.MaxArgs {
		return nil, newParseError(p.formula, "%s takes %d to %d arguments, got %d", def.Name, def.MinArgs, def.MaxArgs, len(args))
	}
	if volatileFuncs[def.Name] {
		p.volatile = true
	}
	c := classed{class: def.Return}
	switch {
	case def.AddIn:
		ixti, idx := p.book.links.AddInName(def.Name)
		namex := &parseNode{tok: &NameXPtg{classed: classed{ClassRef}, Ixti: ixti, Index: idx}}
		return &parseNode{
			tok:  &FuncVarPtg{classed: c, Index: AddInIndex, Argc: len(args) + 1},
			args: append([]*parseNode{namex}, args...),
			def:  def,
		}, nil
	case def.FixedArgs():
		return &parseNode{tok: &FuncPtg{classed: c, Index: def.Index}, args: args, def: def}, nil
	}
	return &parseNode{tok: &FuncVarPtg{classed: c, Index: def.Index, Argc: len(args)}, args: args, def: def}, nil
}

func (p *formulaParser) arrayValue() (interface{}, error) {
	t := p.next()
	neg := false
	if t != nil && t.TType == efp.TokenTypeOperatorPrefix {
		neg = true
		t = p.next()
	}
	if t == nil || t.TType != efp.TokenTypeOperand {
		return nil, p.unexpected(t)
	}
	switch t.TSubType {
	case efp.TokenSubTypeNumber:
		v, err := strconv.ParseFloat(t.TValue, 64)
		if err != nil {
			return nil, newParseError(p.formula, "bad number %q", t.TValue)
		}
		if neg {
			v = -v
		}
		return v, nil
	case efp.TokenSubTypeText:
		if !neg {
			return t.TValue, nil
		}
	case efp.TokenSubTypeLogical:
		if !neg {
			return t.TValue == "TRUE", nil
		}
	case efp.TokenSubTypeError:
		if code, ok := ErrorCodeFromText[t.TValue]; ok && !neg {
			return code, nil
		}
	}
	return nil, newParseError(p.formula, "bad array constant element %q", t.TValue)
}

// array reads {a,b;c,d}. The tokeniser reports it as nested ARRAY and
// ARRAYROW function calls.
func (p *formulaParser) array() (*parseNode, error) {
	arr := &ArrayPtg{classed: classed{ClassArray}}
	for {
		t := p.next()
		if t == nil || t.TType != efp.TokenTypeFunction || t.TValue != "ARRAYROW" {
			return nil, p.unexpected(t)
		}
		var row []interface{}
		for {
			v, err := p.arrayValue()
			if err != nil {
				return nil, err
			}
			row = append(row, v)
			t := p.next()
			if isArgSep(t) {
				continue
			}
			if isStop(t) {
				break
			}
			return nil, p.unexpected(t)
		}
		if arr.Rows == 0 {
			arr.Cols = len(row)
		} else if len(row) != arr.Cols {
			return nil, newParseError(p.formula, "array constant rows differ in length")
		}
		arr.Rows++
		arr.Values = append(arr.Values, row...)
		t = p.next()
		if isArgSep(t) {
			continue
		}
		if isStop(t) {
			return &parseNode{tok: arr}, nil
		}
		return nil, p.unexpected(t)
	}
}

// emit appends the tokens of n in evaluation order.
func (n *parseNode) emit(out []Ptg) []Ptg {
	if n.def != nil && n.def.Name == "IF" {
		return n.emitIf(out)
	}
	for _, a := range n.args {
		out = a.emit(out)
	}
	return append(out, n.tok)
}

// emitIf lays IF out the way Excel does, with tAttrIf jumping to the false
// branch and tAttrSkip jumping past the call.
func (n *parseNode) emitIf(out []Ptg) []Ptg {
	out = n.args[0].emit(out)
	whenTrue := n.args[1].emit(nil)
	attrIf := &AttrPtg{Options: AttrIf, Data: uint16(TokensSize(whenTrue) + 4)}
	out = append(out, attrIf)
	out = append(out, whenTrue...)
	if len(n.args) == 2 {
		return append(out, &AttrPtg{Options: AttrSkip, Data: 3}, n.tok)
	}
	whenFalse := n.args[2].emit(nil)
	out = append(out, &AttrPtg{Options: AttrSkip, Data: uint16(TokensSize(whenFalse) + 4 + 4 - 1)})
	out = append(out, whenFalse...)
	return append(out, &AttrPtg{Options: AttrSkip, Data: 3}, n.tok)
}
