package xlrd

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// FormulaError reports a token stream that cannot be rendered or
// evaluated, such as a stack underflow or an unknown function index.
type FormulaError struct {
	Message string
}

func (e *FormulaError) Error() string {
	return e.Message
}

// NewFormulaError creates a new FormulaError.
func NewFormulaError(format string, args ...interface{}) *FormulaError {
	return &FormulaError{Message: fmt.Sprintf(format, args...)}
}

// FormulaParseError reports formula text that could not be parsed.
type FormulaParseError struct {
	Formula string
	Message string
}

func (e *FormulaParseError) Error() string {
	return fmt.Sprintf("cannot parse formula %q: %s", e.Formula, e.Message)
}

func newParseError(formula, format string, args ...interface{}) *FormulaParseError {
	return &FormulaParseError{Formula: formula, Message: fmt.Sprintf(format, args...)}
}

// Formula type constants
const (
	FMLA_TYPE_CELL     = 1
	FMLA_TYPE_SHARED   = 2
	FMLA_TYPE_ARRAY    = 4
	FMLA_TYPE_COND_FMT = 8
	FMLA_TYPE_DATA_VAL = 16
	FMLA_TYPE_NAME     = 32
	ALL_FMLA_TYPES     = 63
)

// FmlaTypeDescrMap maps formula types to their string descriptions.
var FmlaTypeDescrMap = map[int]string{
	1:  "CELL",
	2:  "SHARED",
	4:  "ARRAY",
	8:  "COND-FMT",
	16: "DATA-VAL",
	32: "NAME",
}

// Operand type constants
const (
	oUNK  = 0
	oSTRG = 1
	oNUM  = 2
	oBOOL = 3
	oERR  = 4
	oMSNG = 5 // tMissArg
	oREF  = -1
)

// Operator ranks used to decide where parentheses are needed when a
// token stream is turned back into text. Higher binds tighter.
const (
	rankCompare = 10
	rankConcat  = 20
	rankAdd     = 30
	rankMul     = 40
	rankPower   = 50
	rankPercent = 55
	rankUnary   = 60
	rankUnion   = 80
	rankIsect   = 85
	rankRange   = 88
	LEAF_RANK   = 90
	FUNC_RANK   = 90
)

// Operand is one entry on the rendering stack.
type Operand struct {
	// Kind indicates the type of operand (oUNK means unknown/ambiguous).
	Kind int
	// Rank is the precedence of the operator that produced Text.
	Rank int
	// Text is the reconstituted text of the sub-expression.
	Text string
}

// NewOperand creates a new Operand with the specified parameters.
func NewOperand(akind, arank int, atext string) *Operand {
	return &Operand{Kind: akind, Rank: arank, Text: atext}
}

func (o *Operand) String() string {
	return fmt.Sprintf("Operand(kind=%d, rank=%d, text=%s)", o.Kind, o.Rank, o.Text)
}

type opRule struct {
	rank int
	sym  string
}

var binopRules = map[byte]opRule{
	tAdd:    {rankAdd, "+"},
	tSub:    {rankAdd, "-"},
	tMul:    {rankMul, "*"},
	tDiv:    {rankMul, "/"},
	tPower:  {rankPower, "^"},
	tConcat: {rankConcat, "&"},
	tLT:     {rankCompare, "<"},
	tLE:     {rankCompare, "<="},
	tEQ:     {rankCompare, "="},
	tGE:     {rankCompare, ">="},
	tGT:     {rankCompare, ">"},
	tNE:     {rankCompare, "<>"},
	tIsect:  {rankIsect, " "},
	tUnion:  {rankUnion, ","},
	tRange:  {rankRange, ":"},
}

// colname returns the column name for a given column index (0-based).
// Example: colname(0) returns "A", colname(25) returns "Z", colname(26) returns "AA"
func colname(colx int) string {
	alphabet := "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	if colx <= 25 {
		return string(alphabet[colx])
	}
	xdiv26 := colx / 26
	xmod26 := colx % 26
	return string(alphabet[xdiv26-1]) + string(alphabet[xmod26])
}

// CellName returns the cell name for a given row and column (0-based).
// Example: CellName(0, 0) returns "A1", CellName(5, 7) returns "H6"
func CellName(rowx, colx int) string {
	return colname(colx) + strconv.Itoa(rowx+1)
}

// CellNameAbs returns the absolute cell name.
// Example: CellNameAbs(5, 7, false) returns "$H$6"
// If r1c1 is true, returns R1C1 style: "R6C8"
func CellNameAbs(rowx, colx int, r1c1 bool) string {
	if r1c1 {
		return fmt.Sprintf("R%dC%d", rowx+1, colx+1)
	}
	return fmt.Sprintf("$%s$%d", colname(colx), rowx+1)
}

// RangeName2D returns a 2D range name. rhi and chi are exclusive.
// Example: RangeName2D(5, 20, 7, 10, false) returns "$H$6:$J$20"
func RangeName2D(rlo, rhi, clo, chi int, r1c1 bool) string {
	if r1c1 {
		return fmt.Sprintf("R%dC%d:R%dC%d", rlo+1, clo+1, rhi, chi)
	}
	if rhi == rlo+1 && chi == clo+1 {
		return CellNameAbs(rlo, clo, r1c1)
	}
	return fmt.Sprintf("%s:%s", CellNameAbs(rlo, clo, r1c1), CellNameAbs(rhi-1, chi-1, r1c1))
}

// rowName renders the row part of a reference. For tRefN/tAreaN the row
// is an offset from the base cell; without a base it comes out as R1C1.
func rowName(ref CellRef, offset bool, browx *int, r1c1 bool) string {
	if !ref.RowRel {
		if r1c1 {
			return fmt.Sprintf("R%d", ref.Row+1)
		}
		return fmt.Sprintf("$%d", ref.Row+1)
	}
	if offset && browx != nil && !r1c1 {
		return strconv.Itoa((*browx+ref.Row)&0xFFFF + 1)
	}
	if r1c1 {
		if !offset {
			return fmt.Sprintf("R%d", ref.Row+1)
		}
		if ref.Row != 0 {
			return fmt.Sprintf("R[%d]", ref.Row)
		}
		return "R"
	}
	return strconv.Itoa(ref.Row + 1)
}

func colName(ref CellRef, offset bool, bcolx *int, r1c1 bool) string {
	if !ref.ColRel {
		if r1c1 {
			return fmt.Sprintf("C%d", ref.Col+1)
		}
		return "$" + colname(ref.Col)
	}
	if offset && bcolx != nil && !r1c1 {
		return colname((*bcolx + ref.Col) & 0xFF)
	}
	if r1c1 {
		if !offset {
			return fmt.Sprintf("C%d", ref.Col+1)
		}
		if ref.Col != 0 {
			return fmt.Sprintf("C[%d]", ref.Col)
		}
		return "C"
	}
	return colname(ref.Col)
}

// CellNameRel renders a cell reference. offset marks tRefN-style
// operands; they need a base cell for A1 notation and fall back to R1C1
// when browx or bcolx is nil.
func CellNameRel(ref CellRef, offset bool, browx, bcolx *int) string {
	r1c1 := offset && ((ref.RowRel && browx == nil) || (ref.ColRel && bcolx == nil))
	c := colName(ref, offset, bcolx, r1c1)
	r := rowName(ref, offset, browx, r1c1)
	if r1c1 {
		return r + c
	}
	return c + r
}

// RangeName2DRel renders an area reference, collapsing whole-row and
// whole-column areas to the $A:$B and $1:$3 forms.
func RangeName2DRel(area AreaRef, offset bool, browx, bcolx *int) string {
	r1c1 := offset && ((area.First.RowRel || area.Last.RowRel) && browx == nil ||
		(area.First.ColRel || area.Last.ColRel) && bcolx == nil)
	if !offset && area.WholeColumns() {
		return colName(area.First, false, nil, false) + ":" + colName(area.Last, false, nil, false)
	}
	if !offset && area.WholeRows() {
		return rowName(area.First, false, nil, false) + ":" + rowName(area.Last, false, nil, false)
	}
	if r1c1 {
		return rowName(area.First, offset, browx, true) + colName(area.First, offset, bcolx, true) + ":" +
			rowName(area.Last, offset, browx, true) + colName(area.Last, offset, bcolx, true)
	}
	return CellNameRel(area.First, offset, browx, bcolx) + ":" + CellNameRel(area.Last, offset, browx, bcolx)
}

var (
	cellLookalike = regexp.MustCompile(`^[A-Za-z]{1,3}[0-9]+$`)
	r1c1Lookalike = regexp.MustCompile(`^[Rr][0-9]*([Cc][0-9]*)?$|^[Cc][0-9]*$`)
)

// sheetNameNeedsQuotes reports whether a sheet name must be wrapped in
// single quotes when it prefixes a reference.
func sheetNameNeedsQuotes(name string) bool {
	if name == "" {
		return true
	}
	for i, r := range name {
		if i == 0 && unicode.IsDigit(r) {
			return true
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '.' {
			return true
		}
	}
	if cellLookalike.MatchString(name) || r1c1Lookalike.MatchString(name) {
		return true
	}
	switch strings.ToUpper(name) {
	case "TRUE", "FALSE":
		return true
	}
	return false
}

// QuotedSheetName returns name quoted for use in a reference, with
// embedded quotes doubled.
func QuotedSheetName(name string) string {
	if !sheetNameNeedsQuotes(name) {
		return name
	}
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// sheetPrefix renders the sheet part of a 3-D reference, without the "!".
// A sheet span and a workbook qualifier are quoted as one unit.
func sheetPrefix(book, first, last string) string {
	text := first
	needs := sheetNameNeedsQuotes(first)
	if last != "" && last != first {
		text += ":" + last
		needs = needs || sheetNameNeedsQuotes(last)
	}
	if book != "" {
		text = "[" + book + "]" + text
		needs = needs || strings.ContainsAny(book, " '")
	}
	if needs {
		return "'" + strings.ReplaceAll(text, "'", "''") + "'"
	}
	return text
}

// Num2Str converts a number to string, emulating Excel's default conversion.
func Num2Str(num float64) string {
	a := math.Abs(num)
	if a == 0 || (a >= 1e-5 && a < 1e15) {
		return strconv.FormatFloat(num, 'f', -1, 64)
	}
	return strconv.FormatFloat(num, 'G', -1, 64)
}

func quoteString(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func arrayValueText(v interface{}) string {
	switch x := v.(type) {
	case float64:
		return Num2Str(x)
	case string:
		return quoteString(x)
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case ErrorCode:
		return x.String()
	}
	return ""
}

// DecompileFormula turns a token stream back into formula text (without
// the leading "="). browx and bcolx give the cell that relative tRefN and
// tAreaN operands are offsets from; when nil those operands come out in
// R1C1 notation.
func DecompileFormula(bk *Book, toks []Ptg, browx, bcolx *int) (string, error) {
	var stack []*Operand
	pop := func() (*Operand, error) {
		if len(stack) == 0 {
			return nil, NewFormulaError("formula stack underflow")
		}
		o := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return o, nil
	}
	popArgs := func(n int) ([]*Operand, error) {
		if n > len(stack) {
			return nil, NewFormulaError("function needs %d arguments, stack has %d", n, len(stack))
		}
		args := append([]*Operand(nil), stack[len(stack)-n:]...)
		stack = stack[:len(stack)-n]
		return args, nil
	}
	call := func(name string, args []*Operand) *Operand {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = a.Text
			if a.Rank == rankUnion {
				parts[i] = "(" + a.Text + ")"
			}
		}
		return NewOperand(oUNK, FUNC_RANK, name+"("+strings.Join(parts, ",")+")")
	}

	for _, p := range toks {
		switch t := p.(type) {
		case *OpPtg:
			switch t.Op {
			case tUplus, tUminus, tPercent:
				aop, err := pop()
				if err != nil {
					return "", err
				}
				text := aop.Text
				if t.Op == tPercent {
					if aop.Rank < rankPercent {
						text = "(" + text + ")"
					}
					stack = append(stack, NewOperand(oNUM, rankPercent, text+"%"))
					continue
				}
				if aop.Rank < rankUnary {
					text = "(" + text + ")"
				}
				sym := "-"
				if t.Op == tUplus {
					sym = "+"
				}
				stack = append(stack, NewOperand(oNUM, rankUnary, sym+text))
			case tParen:
				aop, err := pop()
				if err != nil {
					return "", err
				}
				stack = append(stack, NewOperand(aop.Kind, LEAF_RANK, "("+aop.Text+")"))
			case tMissArg:
				stack = append(stack, NewOperand(oMSNG, LEAF_RANK, ""))
			default:
				rule, ok := binopRules[t.Op]
				if !ok {
					return "", NewFormulaError("unexpected operator token 0x%02x", t.Op)
				}
				bop, err := pop()
				if err != nil {
					return "", err
				}
				aop, err := pop()
				if err != nil {
					return "", err
				}
				otext := aop.Text
				if aop.Rank < rule.rank {
					otext = "(" + otext + ")"
				}
				otext += rule.sym
				if bop.Rank <= rule.rank {
					otext += "(" + bop.Text + ")"
				} else {
					otext += bop.Text
				}
				kind := oUNK
				if rule.rank >= rankUnion {
					kind = oREF
				}
				stack = append(stack, NewOperand(kind, rule.rank, otext))
			}
		case *ExpPtg:
			return "", NewFormulaError("shared or array formula reference at R%dC%d must be resolved before rendering", t.Row+1, t.Col+1)
		case *StrPtg:
			stack = append(stack, NewOperand(oSTRG, LEAF_RANK, quoteString(t.Value)))
		case *AttrPtg:
			if t.Is(AttrSum) {
				aop, err := pop()
				if err != nil {
					return "", err
				}
				stack = append(stack, call("SUM", []*Operand{aop}))
			}
		case *ErrPtg:
			stack = append(stack, NewOperand(oERR, LEAF_RANK, t.Code.String()))
		case *BoolPtg:
			text := "FALSE"
			if t.Value {
				text = "TRUE"
			}
			stack = append(stack, NewOperand(oBOOL, LEAF_RANK, text))
		case *IntPtg:
			stack = append(stack, NewOperand(oNUM, LEAF_RANK, strconv.Itoa(int(t.Value))))
		case *NumPtg:
			stack = append(stack, NewOperand(oNUM, LEAF_RANK, Num2Str(t.Value)))
		case *ArrayPtg:
			rows := make([]string, t.Rows)
			for r := 0; r < t.Rows; r++ {
				cols := make([]string, t.Cols)
				for c := 0; c < t.Cols; c++ {
					if i := r*t.Cols + c; i < len(t.Values) {
						cols[c] = arrayValueText(t.Values[i])
					}
				}
				rows[r] = strings.Join(cols, ",")
			}
			stack = append(stack, NewOperand(oUNK, LEAF_RANK, "{"+strings.Join(rows, ";")+"}"))
		case *FuncPtg:
			def, ok := FuncByIndex(t.Index)
			if !ok {
				return "", NewFormulaError("unknown function index %d", t.Index)
			}
			args, err := popArgs(def.MinArgs)
			if err != nil {
				return "", err
			}
			stack = append(stack, call(def.Name, args))
		case *FuncVarPtg:
			args, err := popArgs(t.Argc)
			if err != nil {
				return "", err
			}
			if t.Index == AddInIndex {
				if len(args) == 0 {
					return "", NewFormulaError("add-in call without a function name")
				}
				stack = append(stack, call(args[0].Text, args[1:]))
				continue
			}
			def, ok := FuncByIndex(t.Index)
			if !ok {
				return "", NewFormulaError("unknown function index %d", t.Index)
			}
			stack = append(stack, call(def.Name, args))
		case *NamePtg:
			if bk == nil || t.Index < 1 || t.Index > len(bk.NameObjList) {
				return "", NewFormulaError("name index %d out of range", t.Index)
			}
			stack = append(stack, NewOperand(oREF, LEAF_RANK, bk.NameObjList[t.Index-1].DisplayName()))
		case *NameXPtg:
			text, err := bk.externNameText(t.Ixti, t.Index)
			if err != nil {
				return "", err
			}
			stack = append(stack, NewOperand(oREF, LEAF_RANK, text))
		case *RefPtg:
			stack = append(stack, NewOperand(oREF, LEAF_RANK, CellNameRel(t.CellRef, false, nil, nil)))
		case *RefNPtg:
			stack = append(stack, NewOperand(oREF, LEAF_RANK, CellNameRel(t.CellRef, true, browx, bcolx)))
		case *AreaPtg:
			stack = append(stack, NewOperand(oREF, LEAF_RANK, RangeName2DRel(t.AreaRef, false, nil, nil)))
		case *AreaNPtg:
			stack = append(stack, NewOperand(oREF, LEAF_RANK, RangeName2DRel(t.AreaRef, true, browx, bcolx)))
		case *RefErrPtg, *AreaErrPtg:
			stack = append(stack, NewOperand(oERR, LEAF_RANK, "#REF!"))
		case *Ref3dPtg:
			prefix, err := bk.sheetRefText(t.Ixti)
			if err != nil {
				return "", err
			}
			stack = append(stack, NewOperand(oREF, LEAF_RANK, prefix+"!"+CellNameRel(t.CellRef, false, nil, nil)))
		case *Area3dPtg:
			prefix, err := bk.sheetRefText(t.Ixti)
			if err != nil {
				return "", err
			}
			stack = append(stack, NewOperand(oREF, LEAF_RANK, prefix+"!"+RangeName2DRel(t.AreaRef, false, nil, nil)))
		case *RefErr3dPtg:
			prefix, err := bk.sheetRefText(t.Ixti)
			if err != nil {
				return "", err
			}
			stack = append(stack, NewOperand(oERR, LEAF_RANK, prefix+"!#REF!"))
		case *AreaErr3dPtg:
			prefix, err := bk.sheetRefText(t.Ixti)
			if err != nil {
				return "", err
			}
			stack = append(stack, NewOperand(oERR, LEAF_RANK, prefix+"!#REF!"))
		case *MemPtg:
			// the sub-expression that follows carries the value
		default:
			return "", NewFormulaError("cannot render token 0x%02x", p.ID())
		}
	}
	if len(stack) != 1 {
		return "", NewFormulaError("formula leaves %d operands on the stack", len(stack))
	}
	return stack[0].Text, nil
}
