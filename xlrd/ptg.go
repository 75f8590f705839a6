package xlrd

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Formula token ids. Ids from 0x20 up are the reference-class forms; the
// value and array forms add 0x20 and 0x40.
const (
	tExp       = 0x01
	tTbl       = 0x02
	tAdd       = 0x03
	tSub       = 0x04
	tMul       = 0x05
	tDiv       = 0x06
	tPower     = 0x07
	tConcat    = 0x08
	tLT        = 0x09
	tLE        = 0x0A
	tEQ        = 0x0B
	tGE        = 0x0C
	tGT        = 0x0D
	tNE        = 0x0E
	tIsect     = 0x0F
	tUnion     = 0x10
	tRange     = 0x11
	tUplus     = 0x12
	tUminus    = 0x13
	tPercent   = 0x14
	tParen     = 0x15
	tMissArg   = 0x16
	tStr       = 0x17
	tAttr      = 0x19
	tErr       = 0x1C
	tBool      = 0x1D
	tInt       = 0x1E
	tNum       = 0x1F
	tArray     = 0x20
	tFunc      = 0x21
	tFuncVar   = 0x22
	tName      = 0x23
	tRef       = 0x24
	tArea      = 0x25
	tMemArea   = 0x26
	tMemErr    = 0x27
	tMemNoMem  = 0x28
	tMemFunc   = 0x29
	tRefErr    = 0x2A
	tAreaErr   = 0x2B
	tRefN      = 0x2C
	tAreaN     = 0x2D
	tMemAreaN  = 0x2E
	tMemNoMemN = 0x2F
	tNameX     = 0x39
	tRef3d     = 0x3A
	tArea3d    = 0x3B
	tRefErr3d  = 0x3C
	tAreaErr3d = 0x3D
)

// tAttr option bits.
const (
	AttrVolatile = 0x01
	AttrIf       = 0x02
	AttrChoose   = 0x04
	AttrSkip     = 0x08
	AttrSum      = 0x10
	AttrBaxcel   = 0x20
	AttrSpace    = 0x40
)

// Operator ids as they appear in OpPtg.Op.
const (
	OpAdd     = tAdd
	OpSub     = tSub
	OpMul     = tMul
	OpDiv     = tDiv
	OpPower   = tPower
	OpConcat  = tConcat
	OpLT      = tLT
	OpLE      = tLE
	OpEQ      = tEQ
	OpGE      = tGE
	OpGT      = tGT
	OpNE      = tNE
	OpIsect   = tIsect
	OpUnion   = tUnion
	OpRange   = tRange
	OpUplus   = tUplus
	OpUminus  = tUminus
	OpPercent = tPercent
	OpParen   = tParen
	OpMissArg = tMissArg
)

// OperandClass is the class of an operand token.
type OperandClass byte

const (
	ClassNone  OperandClass = 0
	ClassRef   OperandClass = 1
	ClassValue OperandClass = 2
	ClassArray OperandClass = 3
)

func (c OperandClass) String() string {
	switch c {
	case ClassRef:
		return "R"
	case ClassValue:
		return "V"
	case ClassArray:
		return "A"
	}
	return "-"
}

// Ptg is one token of a parsed formula.
type Ptg interface {
	// ID is the token id as stored, class bits included.
	ID() byte
	size() int
	appendTo(rgce, extra []byte) ([]byte, []byte)
}

// ClassedPtg is a token that carries an operand class.
type ClassedPtg interface {
	Ptg
	Class() OperandClass
	SetClass(OperandClass)
}

type classed struct {
	class OperandClass
}

func (c *classed) Class() OperandClass     { return c.class }
func (c *classed) SetClass(x OperandClass) { c.class = x }

func (c *classed) classID(base byte) byte {
	return base&0x1F | byte(c.class)<<5
}

// CellRef is one corner of a reference token. In tRefN/tAreaN tokens,
// and in tRef3d/tArea3d tokens of a shared formula, a relative row or
// column holds a signed offset instead of an index.
type CellRef struct {
	Row, Col       int
	RowRel, ColRel bool
}

func (r CellRef) appendRow(b []byte) []byte {
	return binary.LittleEndian.AppendUint16(b, uint16(r.Row))
}

func (r CellRef) colWord() uint16 {
	w := uint16(r.Col) & 0x3FFF
	if r.ColRel {
		w |= 0x4000
	}
	if r.RowRel {
		w |= 0x8000
	}
	return w
}

// decodeCellRef splits a BIFF8 row/column pair. With reldelta the
// relative parts are sign-extended offsets.
func decodeCellRef(rowval, colval int, reldelta bool) CellRef {
	ref := CellRef{
		Row:    rowval,
		Col:    colval & 0xFF,
		RowRel: colval&0x8000 != 0,
		ColRel: colval&0x4000 != 0,
	}
	if reldelta {
		if ref.RowRel && ref.Row >= 32768 {
			ref.Row -= 65536
		}
		if ref.ColRel && ref.Col >= 128 {
			ref.Col -= 256
		}
	}
	return ref
}

// AreaRef is the pair of corners of an area token.
type AreaRef struct {
	First, Last CellRef
}

func (a AreaRef) appendTo(b []byte) []byte {
	b = a.First.appendRow(b)
	b = a.Last.appendRow(b)
	b = binary.LittleEndian.AppendUint16(b, a.First.colWord())
	return binary.LittleEndian.AppendUint16(b, a.Last.colWord())
}

func decodeAreaRef(d []byte, reldelta bool) AreaRef {
	r1 := int(binary.LittleEndian.Uint16(d))
	r2 := int(binary.LittleEndian.Uint16(d[2:]))
	c1 := int(binary.LittleEndian.Uint16(d[4:]))
	c2 := int(binary.LittleEndian.Uint16(d[6:]))
	return AreaRef{First: decodeCellRef(r1, c1, reldelta), Last: decodeCellRef(r2, c2, reldelta)}
}

// WholeColumns reports whether the area spans every row.
func (a AreaRef) WholeColumns() bool {
	return a.First.Row == 0 && a.Last.Row == 0xFFFF
}

// WholeRows reports whether the area spans every column.
func (a AreaRef) WholeRows() bool {
	return a.First.Col == 0 && a.Last.Col == 0xFF
}

// OpPtg is a single-byte operator, tParen or tMissArg.
type OpPtg struct {
	Op byte
}

func (p *OpPtg) ID() byte   { return p.Op }
func (p *OpPtg) size() int { return 1 }
func (p *OpPtg) appendTo(rgce, extra []byte) ([]byte, []byte) {
	return append(rgce, p.Op), extra
}

// ExpPtg points at the anchor of a shared (or, with Table, a data-table)
// formula.
type ExpPtg struct {
	Row, Col int
	Table    bool
}

func (p *ExpPtg) ID() byte {
	if p.Table {
		return tTbl
	}
	return tExp
}
func (p *ExpPtg) size() int { return 5 }
func (p *ExpPtg) appendTo(rgce, extra []byte) ([]byte, []byte) {
	rgce = append(rgce, p.ID())
	rgce = binary.LittleEndian.AppendUint16(rgce, uint16(p.Row))
	return binary.LittleEndian.AppendUint16(rgce, uint16(p.Col)), extra
}

// StrPtg is a string constant of at most 255 characters.
type StrPtg struct {
	Value string
}

func (p *StrPtg) ID() byte   { return tStr }
func (p *StrPtg) size() int { return 1 + len(PackUnicode(p.Value, 1)) }
func (p *StrPtg) appendTo(rgce, extra []byte) ([]byte, []byte) {
	return append(append(rgce, tStr), PackUnicode(p.Value, 1)...), extra
}

// AttrPtg is a tAttr control token. For AttrChoose, Jumps holds Data+1
// offsets.
type AttrPtg struct {
	Options byte
	Data    uint16
	Jumps   []uint16
}

func (p *AttrPtg) ID() byte { return tAttr }
func (p *AttrPtg) size() int {
	if p.Options&AttrChoose != 0 {
		return 4 + 2*len(p.Jumps)
	}
	return 4
}
func (p *AttrPtg) appendTo(rgce, extra []byte) ([]byte, []byte) {
	rgce = append(rgce, tAttr, p.Options)
	rgce = binary.LittleEndian.AppendUint16(rgce, p.Data)
	if p.Options&AttrChoose != 0 {
		for _, j := range p.Jumps {
			rgce = binary.LittleEndian.AppendUint16(rgce, j)
		}
	}
	return rgce, extra
}

// Is reports whether the given option bit is set.
func (p *AttrPtg) Is(opt byte) bool { return p.Options&opt != 0 }

// ErrPtg is an error constant.
type ErrPtg struct {
	Code ErrorCode
}

func (p *ErrPtg) ID() byte   { return tErr }
func (p *ErrPtg) size() int { return 2 }
func (p *ErrPtg) appendTo(rgce, extra []byte) ([]byte, []byte) {
	return append(rgce, tErr, byte(p.Code)), extra
}

// BoolPtg is a boolean constant.
type BoolPtg struct {
	Value bool
}

func (p *BoolPtg) ID() byte   { return tBool }
func (p *BoolPtg) size() int { return 2 }
func (p *BoolPtg) appendTo(rgce, extra []byte) ([]byte, []byte) {
	v := byte(0)
	if p.Value {
		v = 1
	}
	return append(rgce, tBool, v), extra
}

// IntPtg is an integer constant in 0..65535.
type IntPtg struct {
	Value uint16
}

func (p *IntPtg) ID() byte   { return tInt }
func (p *IntPtg) size() int { return 3 }
func (p *IntPtg) appendTo(rgce, extra []byte) ([]byte, []byte) {
	return binary.LittleEndian.AppendUint16(append(rgce, tInt), p.Value), extra
}

// NumPtg is a floating point constant.
type NumPtg struct {
	Value float64
}

func (p *NumPtg) ID() byte   { return tNum }
func (p *NumPtg) size() int { return 9 }
func (p *NumPtg) appendTo(rgce, extra []byte) ([]byte, []byte) {
	return binary.LittleEndian.AppendUint64(append(rgce, tNum), math.Float64bits(p.Value)), extra
}

// ArrayPtg is an array constant. Values are stored row by row and are
// nil, float64, string, bool or ErrorCode.
type ArrayPtg struct {
	classed
	Rows, Cols int
	Values     []interface{}
}

func (p *ArrayPtg) ID() byte   { return p.classID(tArray) }
func (p *ArrayPtg) size() int { return 8 }
func (p *ArrayPtg) appendTo(rgce, extra []byte) ([]byte, []byte) {
	rgce = append(rgce, p.ID(), 0, 0, 0, 0, 0, 0, 0)
	extra = append(extra, byte(p.Cols-1))
	extra = binary.LittleEndian.AppendUint16(extra, uint16(p.Rows-1))
	for _, v := range p.Values {
		switch v := v.(type) {
		case float64:
			extra = binary.LittleEndian.AppendUint64(append(extra, 0x01), math.Float64bits(v))
		case string:
			extra = append(append(extra, 0x02), PackUnicode(v, 2)...)
		case bool:
			b := byte(0)
			if v {
				b = 1
			}
			extra = append(extra, 0x04, b, 0, 0, 0, 0, 0, 0, 0)
		case ErrorCode:
			extra = append(extra, 0x10, byte(v), 0, 0, 0, 0, 0, 0, 0)
		default:
			extra = append(extra, 0x00, 0, 0, 0, 0, 0, 0, 0, 0)
		}
	}
	return rgce, extra
}

func (p *ArrayPtg) readExtra(extra []byte) (int, error) {
	if len(extra) < 3 {
		return 0, NewXLRDError("array constant: missing dimensions")
	}
	p.Cols = int(extra[0]) + 1
	p.Rows = int(binary.LittleEndian.Uint16(extra[1:])) + 1
	pos := 3
	p.Values = make([]interface{}, 0, p.Rows*p.Cols)
	for i := 0; i < p.Rows*p.Cols; i++ {
		if pos >= len(extra) {
			return pos, NewXLRDError("array constant: truncated at value %d", i)
		}
		typ := extra[pos]
		pos++
		if typ == 0x02 {
			s, next, err := UnpackUnicodeUpdatePos(extra, pos, 2, nil)
			if err != nil {
				return pos, NewXLRDError("array constant: %v", err)
			}
			p.Values = append(p.Values, s)
			pos = next
			continue
		}
		if pos+8 > len(extra) {
			return pos, NewXLRDError("array constant: truncated at value %d", i)
		}
		switch typ {
		case 0x00:
			p.Values = append(p.Values, nil)
		case 0x01:
			p.Values = append(p.Values, math.Float64frombits(binary.LittleEndian.Uint64(extra[pos:])))
		case 0x04:
			p.Values = append(p.Values, extra[pos] != 0)
		case 0x10:
			p.Values = append(p.Values, ErrorCode(extra[pos]))
		default:
			return pos, NewXLRDError("array constant: unknown value type 0x%02x", typ)
		}
		pos += 8
	}
	return pos, nil
}

// FuncPtg calls a function with a fixed argument count.
type FuncPtg struct {
	classed
	Index int
}

func (p *FuncPtg) ID() byte   { return p.classID(tFunc) }
func (p *FuncPtg) size() int { return 3 }
func (p *FuncPtg) appendTo(rgce, extra []byte) ([]byte, []byte) {
	return binary.LittleEndian.AppendUint16(append(rgce, p.ID()), uint16(p.Index)), extra
}

// FuncVarPtg calls a function with Argc arguments. Index 255 calls the
// add-in function named by the preceding tNameX.
type FuncVarPtg struct {
	classed
	Index  int
	Argc   int
	Prompt bool
}

func (p *FuncVarPtg) ID() byte   { return p.classID(tFuncVar) }
func (p *FuncVarPtg) size() int { return 4 }
func (p *FuncVarPtg) appendTo(rgce, extra []byte) ([]byte, []byte) {
	argc := byte(p.Argc) & 0x7F
	if p.Prompt {
		argc |= 0x80
	}
	return binary.LittleEndian.AppendUint16(append(rgce, p.ID(), argc), uint16(p.Index)&0x7FFF), extra
}

// NamePtg refers to a NAME record by 1-based index.
type NamePtg struct {
	classed
	Index int
}

func (p *NamePtg) ID() byte   { return p.classID(tName) }
func (p *NamePtg) size() int { return 5 }
func (p *NamePtg) appendTo(rgce, extra []byte) ([]byte, []byte) {
	rgce = binary.LittleEndian.AppendUint16(append(rgce, p.ID()), uint16(p.Index))
	return append(rgce, 0, 0), extra
}

// NameXPtg refers to an EXTERNNAME (1-based Index) of the SUPBOOK behind
// EXTERNSHEET entry Ixti.
type NameXPtg struct {
	classed
	Ixti  int
	Index int
}

func (p *NameXPtg) ID() byte   { return p.classID(tNameX) }
func (p *NameXPtg) size() int { return 7 }
func (p *NameXPtg) appendTo(rgce, extra []byte) ([]byte, []byte) {
	rgce = binary.LittleEndian.AppendUint16(append(rgce, p.ID()), uint16(p.Ixti))
	rgce = binary.LittleEndian.AppendUint16(rgce, uint16(p.Index))
	return append(rgce, 0, 0), extra
}

// RefPtg is a single-cell reference.
type RefPtg struct {
	classed
	CellRef
}

func (p *RefPtg) ID() byte   { return p.classID(tRef) }
func (p *RefPtg) size() int { return 5 }
func (p *RefPtg) appendTo(rgce, extra []byte) ([]byte, []byte) {
	rgce = p.appendRow(append(rgce, p.ID()))
	return binary.LittleEndian.AppendUint16(rgce, p.colWord()), extra
}

// RefNPtg is a cell reference relative to the formula's cell.
type RefNPtg struct {
	classed
	CellRef
}

func (p *RefNPtg) ID() byte   { return p.classID(tRefN) }
func (p *RefNPtg) size() int { return 5 }
func (p *RefNPtg) appendTo(rgce, extra []byte) ([]byte, []byte) {
	rgce = p.appendRow(append(rgce, p.ID()))
	return binary.LittleEndian.AppendUint16(rgce, p.colWord()), extra
}

// Ref3dPtg is a cell reference through EXTERNSHEET entry Ixti.
type Ref3dPtg struct {
	classed
	Ixti int
	CellRef
}

func (p *Ref3dPtg) ID() byte   { return p.classID(tRef3d) }
func (p *Ref3dPtg) size() int { return 7 }
func (p *Ref3dPtg) appendTo(rgce, extra []byte) ([]byte, []byte) {
	rgce = binary.LittleEndian.AppendUint16(append(rgce, p.ID()), uint16(p.Ixti))
	rgce = p.appendRow(rgce)
	return binary.LittleEndian.AppendUint16(rgce, p.colWord()), extra
}

// RefErrPtg is a reference to a deleted cell.
type RefErrPtg struct {
	classed
}

func (p *RefErrPtg) ID() byte   { return p.classID(tRefErr) }
func (p *RefErrPtg) size() int { return 5 }
func (p *RefErrPtg) appendTo(rgce, extra []byte) ([]byte, []byte) {
	return append(rgce, p.ID(), 0, 0, 0, 0), extra
}

// RefErr3dPtg is a deleted cell reference on the sheet(s) of Ixti.
type RefErr3dPtg struct {
	classed
	Ixti int
}

func (p *RefErr3dPtg) ID() byte   { return p.classID(tRefErr3d) }
func (p *RefErr3dPtg) size() int { return 7 }
func (p *RefErr3dPtg) appendTo(rgce, extra []byte) ([]byte, []byte) {
	rgce = binary.LittleEndian.AppendUint16(append(rgce, p.ID()), uint16(p.Ixti))
	return append(rgce, 0, 0, 0, 0), extra
}

// AreaPtg is an area reference.
type AreaPtg struct {
	classed
	AreaRef
}

func (p *AreaPtg) ID() byte   { return p.classID(tArea) }
func (p *AreaPtg) size() int { return 9 }
func (p *AreaPtg) appendTo(rgce, extra []byte) ([]byte, []byte) {
	return p.AreaRef.appendTo(append(rgce, p.ID())), extra
}

// AreaNPtg is an area relative to the formula's cell.
type AreaNPtg struct {
	classed
	AreaRef
}

func (p *AreaNPtg) ID() byte   { return p.classID(tAreaN) }
func (p *AreaNPtg) size() int { return 9 }
func (p *AreaNPtg) appendTo(rgce, extra []byte) ([]byte, []byte) {
	return p.AreaRef.appendTo(append(rgce, p.ID())), extra
}

// Area3dPtg is an area reference through EXTERNSHEET entry Ixti.
type Area3dPtg struct {
	classed
	Ixti int
	AreaRef
}

func (p *Area3dPtg) ID() byte   { return p.classID(tArea3d) }
func (p *Area3dPtg) size() int { return 11 }
func (p *Area3dPtg) appendTo(rgce, extra []byte) ([]byte, []byte) {
	rgce = binary.LittleEndian.AppendUint16(append(rgce, p.ID()), uint16(p.Ixti))
	return p.AreaRef.appendTo(rgce), extra
}

// AreaErrPtg is a reference to a deleted area.
type AreaErrPtg struct {
	classed
}

func (p *AreaErrPtg) ID() byte   { return p.classID(tAreaErr) }
func (p *AreaErrPtg) size() int { return 9 }
func (p *AreaErrPtg) appendTo(rgce, extra []byte) ([]byte, []byte) {
	return append(rgce, p.ID(), 0, 0, 0, 0, 0, 0, 0, 0), extra
}

// AreaErr3dPtg is a deleted area reference on the sheet(s) of Ixti.
type AreaErr3dPtg struct {
	classed
	Ixti int
}

func (p *AreaErr3dPtg) ID() byte   { return p.classID(tAreaErr3d) }
func (p *AreaErr3dPtg) size() int { return 11 }
func (p *AreaErr3dPtg) appendTo(rgce, extra []byte) ([]byte, []byte) {
	rgce = binary.LittleEndian.AppendUint16(append(rgce, p.ID()), uint16(p.Ixti))
	return append(rgce, 0, 0, 0, 0, 0, 0, 0, 0), extra
}

// MemPtg covers tMemArea, tMemErr, tMemNoMem, tMemFunc, tMemAreaN and
// tMemNoMemN. Size is the byte count of the sub-expression that follows.
// Ranges is the cached area list of tMemArea.
type MemPtg struct {
	classed
	Base   byte
	Size   int
	Ranges []CellRange
}

func (p *MemPtg) ID() byte { return p.classID(p.Base) }
func (p *MemPtg) size() int {
	switch p.Base {
	case tMemArea, tMemErr, tMemNoMem:
		return 7
	}
	return 3
}
func (p *MemPtg) appendTo(rgce, extra []byte) ([]byte, []byte) {
	rgce = append(rgce, p.ID())
	if p.size() == 7 {
		rgce = append(rgce, 0, 0, 0, 0)
	}
	rgce = binary.LittleEndian.AppendUint16(rgce, uint16(p.Size))
	if p.Base == tMemArea {
		extra = binary.LittleEndian.AppendUint16(extra, uint16(len(p.Ranges)))
		for _, r := range p.Ranges {
			extra = r.appendTo(extra)
		}
	}
	return rgce, extra
}

// CellRange is a rectangle of cells with inclusive bounds.
type CellRange struct {
	FirstRow, LastRow int
	FirstCol, LastCol int
}

// Contains reports whether the cell lies inside the range.
func (r CellRange) Contains(row, col int) bool {
	return row >= r.FirstRow && row <= r.LastRow && col >= r.FirstCol && col <= r.LastCol
}

func (r CellRange) String() string {
	if r.FirstRow == r.LastRow && r.FirstCol == r.LastCol {
		return CellName(r.FirstRow, r.FirstCol)
	}
	return CellName(r.FirstRow, r.FirstCol) + ":" + CellName(r.LastRow, r.LastCol)
}

func (r CellRange) appendTo(b []byte) []byte {
	b = binary.LittleEndian.AppendUint16(b, uint16(r.FirstRow))
	b = binary.LittleEndian.AppendUint16(b, uint16(r.LastRow))
	b = binary.LittleEndian.AppendUint16(b, uint16(r.FirstCol))
	return binary.LittleEndian.AppendUint16(b, uint16(r.LastCol))
}

func decodeCellRange(d []byte) CellRange {
	return CellRange{
		FirstRow: int(binary.LittleEndian.Uint16(d)),
		LastRow:  int(binary.LittleEndian.Uint16(d[2:])),
		FirstCol: int(binary.LittleEndian.Uint16(d[4:])),
		LastCol:  int(binary.LittleEndian.Uint16(d[6:])),
	}
}

// ptgSizes are the fixed rgce sizes by base id; 0 marks ids that are
// sized by their content or not valid in BIFF8.
var ptgSizes = [0x40]int{
	tExp: 5, tTbl: 5,
	tAdd: 1, tSub: 1, tMul: 1, tDiv: 1, tPower: 1, tConcat: 1,
	tLT: 1, tLE: 1, tEQ: 1, tGE: 1, tGT: 1, tNE: 1,
	tIsect: 1, tUnion: 1, tRange: 1, tUplus: 1, tUminus: 1, tPercent: 1,
	tParen: 1, tMissArg: 1,
	tErr: 2, tBool: 2, tInt: 3, tNum: 9,
	tArray: 8, tFunc: 3, tFuncVar: 4, tName: 5, tRef: 5, tArea: 9,
	tMemArea: 7, tMemErr: 7, tMemNoMem: 7, tMemFunc: 3,
	tRefErr: 5, tAreaErr: 9, tRefN: 5, tAreaN: 9, tMemAreaN: 3, tMemNoMemN: 3,
	tNameX: 7, tRef3d: 7, tArea3d: 11, tRefErr3d: 7, tAreaErr3d: 11,
}

// ReadTokens decodes a BIFF8 rgce. Array constants and tMemArea lists
// are read from extra; the number of extra bytes used is returned.
func ReadTokens(rgce, extra []byte) ([]Ptg, int, error) {
	return readTokens(rgce, extra, false)
}

// ReadSharedTokens decodes the rgce of a SHRFMLA record, where the
// relative parts of 3-D references are offsets like those of tRefN.
func ReadSharedTokens(rgce, extra []byte) ([]Ptg, int, error) {
	return readTokens(rgce, extra, true)
}

func readTokens(rgce, extra []byte, shared bool) ([]Ptg, int, error) {
	var toks []Ptg
	var pending []interface{ readExtra([]byte) (int, error) }
	pos := 0
	for pos < len(rgce) {
		op := rgce[pos]
		base := op
		cls := OperandClass(0)
		if op >= 0x20 {
			base = 0x20 | op&0x1F
			cls = OperandClass(op >> 5 & 3)
		}
		var p Ptg
		switch base {
		case tStr:
			s, next, err := UnpackUnicodeUpdatePos(rgce, pos+1, 1, nil)
			if err != nil {
				return toks, 0, NewXLRDError("tStr at %d: %v", pos, err)
			}
			toks = append(toks, &StrPtg{Value: s})
			pos = next
			continue
		case tAttr:
			if pos+4 > len(rgce) {
				return toks, 0, NewXLRDError("tAttr at %d: truncated", pos)
			}
			a := &AttrPtg{Options: rgce[pos+1], Data: binary.LittleEndian.Uint16(rgce[pos+2:])}
			if a.Options&AttrChoose != 0 {
				n := int(a.Data) + 1
				if pos+4+2*n > len(rgce) {
					return toks, 0, NewXLRDError("tAttrChoose at %d: truncated jump table", pos)
				}
				for i := 0; i < n; i++ {
					a.Jumps = append(a.Jumps, binary.LittleEndian.Uint16(rgce[pos+4+2*i:]))
				}
			}
			toks = append(toks, a)
			pos += a.size()
			continue
		}
		sz := 0
		if int(base) < len(ptgSizes) {
			sz = ptgSizes[base]
		}
		if sz == 0 {
			return toks, 0, NewXLRDError("unexpected token 0x%02x at %d", op, pos)
		}
		if pos+sz > len(rgce) {
			return toks, 0, NewXLRDError("token 0x%02x at %d: truncated", op, pos)
		}
		d := rgce[pos+1 : pos+sz]
		c := classed{class: cls}
		u16 := func(off int) int { return int(binary.LittleEndian.Uint16(d[off:])) }
		switch base {
		case tExp, tTbl:
			p = &ExpPtg{Row: u16(0), Col: u16(2), Table: base == tTbl}
		case tErr:
			p = &ErrPtg{Code: ErrorCode(d[0])}
		case tBool:
			p = &BoolPtg{Value: d[0] != 0}
		case tInt:
			p = &IntPtg{Value: uint16(u16(0))}
		case tNum:
			p = &NumPtg{Value: math.Float64frombits(binary.LittleEndian.Uint64(d))}
		case tArray:
			a := &ArrayPtg{classed: c}
			pending = append(pending, a)
			p = a
		case tFunc:
			p = &FuncPtg{classed: c, Index: u16(0)}
		case tFuncVar:
			p = &FuncVarPtg{classed: c, Argc: int(d[0] & 0x7F), Prompt: d[0]&0x80 != 0, Index: u16(1) & 0x7FFF}
		case tName:
			p = &NamePtg{classed: c, Index: u16(0)}
		case tNameX:
			p = &NameXPtg{classed: c, Ixti: u16(0), Index: u16(2)}
		case tRef:
			p = &RefPtg{classed: c, CellRef: decodeCellRef(u16(0), u16(2), false)}
		case tRefN:
			p = &RefNPtg{classed: c, CellRef: decodeCellRef(u16(0), u16(2), true)}
		case tRef3d:
			p = &Ref3dPtg{classed: c, Ixti: u16(0), CellRef: decodeCellRef(u16(2), u16(4), shared)}
		case tRefErr:
			p = &RefErrPtg{classed: c}
		case tRefErr3d:
			p = &RefErr3dPtg{classed: c, Ixti: u16(0)}
		case tArea:
			p = &AreaPtg{classed: c, AreaRef: decodeAreaRef(d, false)}
		case tAreaN:
			p = &AreaNPtg{classed: c, AreaRef: decodeAreaRef(d, true)}
		case tArea3d:
			p = &Area3dPtg{classed: c, Ixti: u16(0), AreaRef: decodeAreaRef(d[2:], shared)}
		case tAreaErr:
			p = &AreaErrPtg{classed: c}
		case tAreaErr3d:
			p = &AreaErr3dPtg{classed: c, Ixti: u16(0)}
		case tMemArea, tMemErr, tMemNoMem:
			m := &MemPtg{classed: c, Base: base, Size: u16(4)}
			if base == tMemArea {
				pending = append(pending, m)
			}
			p = m
		case tMemFunc, tMemAreaN, tMemNoMemN:
			p = &MemPtg{classed: c, Base: base, Size: u16(0)}
		default:
			p = &OpPtg{Op: op}
		}
		toks = append(toks, p)
		pos += sz
	}
	used := 0
	for _, x := range pending {
		n, err := x.readExtra(extra[used:])
		if err != nil {
			return toks, used, err
		}
		used += n
	}
	return toks, used, nil
}

func (p *MemPtg) readExtra(extra []byte) (int, error) {
	if len(extra) < 2 {
		return 0, NewXLRDError("tMemArea: missing range count")
	}
	n := int(binary.LittleEndian.Uint16(extra))
	if 2+8*n > len(extra) {
		return 0, NewXLRDError("tMemArea: truncated range list")
	}
	p.Ranges = make([]CellRange, n)
	for i := range p.Ranges {
		p.Ranges[i] = decodeCellRange(extra[2+8*i:])
	}
	return 2 + 8*n, nil
}

// WriteTokens encodes tokens as rgce plus trailing extra data.
func WriteTokens(toks []Ptg) (rgce, extra []byte) {
	for _, p := range toks {
		rgce, extra = p.appendTo(rgce, extra)
	}
	return rgce, extra
}

// TokensSize is the rgce length of toks.
func TokensSize(toks []Ptg) int {
	n := 0
	for _, p := range toks {
		n += p.size()
	}
	return n
}

// ClonePtg returns a copy of p that shares no mutable state with it.
func ClonePtg(p Ptg) Ptg {
	switch t := p.(type) {
	case *OpPtg:
		c := *t
		return &c
	case *ExpPtg:
		c := *t
		return &c
	case *StrPtg:
		c := *t
		return &c
	case *AttrPtg:
		c := *t
		c.Jumps = append([]uint16(nil), t.Jumps...)
		return &c
	case *ErrPtg:
		c := *t
		return &c
	case *BoolPtg:
		c := *t
		return &c
	case *IntPtg:
		c := *t
		return &c
	case *NumPtg:
		c := *t
		return &c
	case *ArrayPtg:
		c := *t
		c.Values = append([]interface{}(nil), t.Values...)
		return &c
	case *FuncPtg:
		c := *t
		return &c
	case *FuncVarPtg:
		c := *t
		return &c
	case *NamePtg:
		c := *t
		return &c
	case *NameXPtg:
		c := *t
		return &c
	case *RefPtg:
		c := *t
		return &c
	case *RefNPtg:
		c := *t
		return &c
	case *Ref3dPtg:
		c := *t
		return &c
	case *RefErrPtg:
		c := *t
		return &c
	case *RefErr3dPtg:
		c := *t
		return &c
	case *AreaPtg:
		c := *t
		return &c
	case *AreaNPtg:
		c := *t
		return &c
	case *Area3dPtg:
		c := *t
		return &c
	case *AreaErrPtg:
		c := *t
		return &c
	case *AreaErr3dPtg:
		c := *t
		return &c
	case *MemPtg:
		c := *t
		c.Ranges = append([]CellRange(nil), t.Ranges...)
		return &c
	}
	panic(fmt.Sprintf("xlrd: unknown token type %T", p))
}

// CloneTokens deep-copies a token list.
func CloneTokens(toks []Ptg) []Ptg {
	out := make([]Ptg, len(toks))
	for i, p := range toks {
		out[i] = ClonePtg(p)
	}
	return out
}

// RelocateSharedFormula returns the tokens of a shared formula as they
// apply to the cell at (row, col): tRefN and tAreaN become tRef and tArea
// with relative parts shifted by the cell position, and the relative
// parts of tRef3d and tArea3d are shifted the same way. Absolute parts
// are unchanged and base is not modified.
func RelocateSharedFormula(base []Ptg, row, col int) []Ptg {
	out := make([]Ptg, len(base))
	for i, p := range base {
		switch t := p.(type) {
		case *RefNPtg:
			out[i] = &RefPtg{classed: t.classed, CellRef: relocate(t.CellRef, row, col)}
		case *AreaNPtg:
			out[i] = &AreaPtg{classed: t.classed, AreaRef: AreaRef{
				First: relocate(t.First, row, col),
				Last:  relocate(t.Last, row, col),
			}}
		case *Ref3dPtg:
			out[i] = &Ref3dPtg{classed: t.classed, Ixti: t.Ixti, CellRef: relocate(t.CellRef, row, col)}
		case *Area3dPtg:
			out[i] = &Area3dPtg{classed: t.classed, Ixti: t.Ixti, AreaRef: AreaRef{
				First: relocate(t.First, row, col),
				Last:  relocate(t.Last, row, col),
			}}
		default:
			out[i] = ClonePtg(p)
		}
	}
	return out
}

func relocate(r CellRef, row, col int) CellRef {
	if r.RowRel {
		r.Row = (row + r.Row) & 0xFFFF
	}
	if r.ColRel {
		r.Col = (col + r.Col) & 0xFF
	}
	return r
}
