package xlrd

import (
	"encoding/binary"
	"math"
)

// CellHeader is the row, column and XF index every cell record starts
// with.
type CellHeader struct {
	Row, Col int
	XF       int
}

func (h CellHeader) appendTo(b []byte) []byte {
	b = binary.LittleEndian.AppendUint16(b, uint16(h.Row))
	b = binary.LittleEndian.AppendUint16(b, uint16(h.Col))
	return binary.LittleEndian.AppendUint16(b, uint16(h.XF))
}

// Position returns the cell's row and column.
func (h CellHeader) Position() (int, int) { return h.Row, h.Col }

func decodeCellHeader(d []byte) CellHeader {
	return CellHeader{Row: u16(d, 0), Col: u16(d, 2), XF: u16(d, 4)}
}

// CellRecord is a record that stores the value of one cell.
type CellRecord interface {
	Record
	Position() (int, int)
}

// DecodeRK unpacks an RK number.
func DecodeRK(rk uint32) float64 {
	var v float64
	if rk&2 != 0 {
		v = float64(int32(rk) >> 2)
	} else {
		v = math.Float64frombits(uint64(rk&0xFFFFFFFC) << 32)
	}
	if rk&1 != 0 {
		v /= 100
	}
	return v
}

// EncodeRK packs v as an RK number when that loses nothing.
func EncodeRK(v float64) (uint32, bool) {
	try := func(rk uint32) (uint32, bool) {
		back := DecodeRK(rk)
		return rk, back == v && math.Signbit(back) == math.Signbit(v)
	}
	if v == math.Trunc(v) && v >= -(1<<29) && v < 1<<29 {
		if rk, ok := try(uint32(int32(v))<<2 | 2); ok {
			return rk, true
		}
	}
	if bits := math.Float64bits(v); bits&0x3FFFFFFFF == 0 {
		if rk, ok := try(uint32(bits >> 32)); ok {
			return rk, true
		}
	}
	h := math.Round(v * 100)
	if h >= -(1<<29) && h < 1<<29 {
		if rk, ok := try(uint32(int32(h))<<2 | 3); ok {
			return rk, true
		}
	}
	if bits := math.Float64bits(v * 100); bits&0x3FFFFFFFF == 0 {
		if rk, ok := try(uint32(bits>>32) | 1); ok {
			return rk, true
		}
	}
	return 0, false
}

// NumberRecord holds a floating point cell.
type NumberRecord struct {
	CellHeader
	Value float64
}

func (r *NumberRecord) Sid() uint16 { return XL_NUMBER }
func (r *NumberRecord) encode() ([]byte, []int) {
	return binary.LittleEndian.AppendUint64(r.appendTo(nil), math.Float64bits(r.Value)), nil
}

func decodeNumber(lr LogicalRecord) (Record, error) {
	if err := short(lr, 14); err != nil {
		return nil, err
	}
	return &NumberRecord{
		CellHeader: decodeCellHeader(lr.Data),
		Value:      math.Float64frombits(binary.LittleEndian.Uint64(lr.Data[6:])),
	}, nil
}

// RKRecord holds a number in RK form.
type RKRecord struct {
	CellHeader
	RK uint32
}

// Value returns the unpacked number.
func (r *RKRecord) Value() float64 { return DecodeRK(r.RK) }

func (r *RKRecord) Sid() uint16 { return XL_RK }
func (r *RKRecord) encode() ([]byte, []int) {
	return binary.LittleEndian.AppendUint32(r.appendTo(nil), r.RK), nil
}

func decodeRK(lr LogicalRecord) (Record, error) {
	if err := short(lr, 10); err != nil {
		return nil, err
	}
	return &RKRecord{CellHeader: decodeCellHeader(lr.Data), RK: binary.LittleEndian.Uint32(lr.Data[6:])}, nil
}

// RKValue is one cell of a MULRK record.
type RKValue struct {
	XF int
	RK uint32
}

// MulRKRecord holds RK numbers for consecutive cells of a row.
type MulRKRecord struct {
	Row, FirstCol int
	Values        []RKValue
}

func (r *MulRKRecord) Position() (int, int) { return r.Row, r.FirstCol }
func (r *MulRKRecord) Sid() uint16          { return XL_MULRK }
func (r *MulRKRecord) encode() ([]byte, []int) {
	b := binary.LittleEndian.AppendUint16(nil, uint16(r.Row))
	b = binary.LittleEndian.AppendUint16(b, uint16(r.FirstCol))
	for _, v := range r.Values {
		b = binary.LittleEndian.AppendUint16(b, uint16(v.XF))
		b = binary.LittleEndian.AppendUint32(b, v.RK)
	}
	return binary.LittleEndian.AppendUint16(b, uint16(r.FirstCol+len(r.Values)-1)), nil
}

func decodeMulRK(lr LogicalRecord) (Record, error) {
	if err := short(lr, 6); err != nil {
		return nil, err
	}
	d := lr.Data
	r := &MulRKRecord{Row: u16(d, 0), FirstCol: u16(d, 2)}
	last := u16(d, len(d)-2)
	n := last - r.FirstCol + 1
	if n < 0 || 4+6*n+2 != len(d) {
		return nil, NewXLRDError("MULRK column span %d-%d does not match length %d", r.FirstCol, last, len(d))
	}
	for i := 0; i < n; i++ {
		p := 4 + 6*i
		r.Values = append(r.Values, RKValue{XF: u16(d, p), RK: binary.LittleEndian.Uint32(d[p+2:])})
	}
	return r, nil
}

// LabelSSTRecord holds a string cell as an index into the SST.
type LabelSSTRecord struct {
	CellHeader
	SST int
}

func (r *LabelSSTRecord) Sid() uint16 { return XL_LABELSST }
func (r *LabelSSTRecord) encode() ([]byte, []int) {
	return binary.LittleEndian.AppendUint32(r.appendTo(nil), uint32(r.SST)), nil
}

func decodeLabelSST(lr LogicalRecord) (Record, error) {
	if err := short(lr, 10); err != nil {
		return nil, err
	}
	return &LabelSSTRecord{CellHeader: decodeCellHeader(lr.Data), SST: u32(lr.Data, 6)}, nil
}

// LabelRecord holds a string cell inline.
type LabelRecord struct {
	CellHeader
	Value string
}

func (r *LabelRecord) Sid() uint16 { return XL_LABEL }
func (r *LabelRecord) encode() ([]byte, []int) {
	return append(r.appendTo(nil), PackUnicode(r.Value, 2)...), nil
}

func decodeLabel(lr LogicalRecord) (Record, error) {
	if err := short(lr, 8); err != nil {
		return nil, err
	}
	s, err := UnpackUnicode(lr.Data, 6, 2)
	if err != nil {
		return nil, err
	}
	return &LabelRecord{CellHeader: decodeCellHeader(lr.Data), Value: s}, nil
}

// BoolErrRecord holds a boolean or an error cell.
type BoolErrRecord struct {
	CellHeader
	Value   byte
	IsError bool
}

func (r *BoolErrRecord) Sid() uint16 { return XL_BOOLERR }
func (r *BoolErrRecord) encode() ([]byte, []int) {
	e := byte(0)
	if r.IsError {
		e = 1
	}
	return append(r.appendTo(nil), r.Value, e), nil
}

func decodeBoolErr(lr LogicalRecord) (Record, error) {
	if err := short(lr, 8); err != nil {
		return nil, err
	}
	return &BoolErrRecord{CellHeader: decodeCellHeader(lr.Data), Value: lr.Data[6], IsError: lr.Data[7] != 0}, nil
}

// BlankRecord is a formatted empty cell.
type BlankRecord struct {
	CellHeader
}

func (r *BlankRecord) Sid() uint16             { return XL_BLANK }
func (r *BlankRecord) encode() ([]byte, []int) { return r.appendTo(nil), nil }

func decodeBlank(lr LogicalRecord) (Record, error) {
	if err := short(lr, 6); err != nil {
		return nil, err
	}
	return &BlankRecord{CellHeader: decodeCellHeader(lr.Data)}, nil
}

// MulBlankRecord is a run of formatted empty cells in a row.
type MulBlankRecord struct {
	Row, FirstCol int
	XFs           []int
}

func (r *MulBlankRecord) Position() (int, int) { return r.Row, r.FirstCol }
func (r *MulBlankRecord) Sid() uint16          { return XL_MULBLANK }
func (r *MulBlankRecord) encode() ([]byte, []int) {
	b := binary.LittleEndian.AppendUint16(nil, uint16(r.Row))
	b = binary.LittleEndian.AppendUint16(b, uint16(r.FirstCol))
	for _, xf := range r.XFs {
		b = binary.LittleEndian.AppendUint16(b, uint16(xf))
	}
	return binary.LittleEndian.AppendUint16(b, uint16(r.FirstCol+len(r.XFs)-1)), nil
}

func decodeMulBlank(lr LogicalRecord) (Record, error) {
	if err := short(lr, 6); err != nil {
		return nil, err
	}
	d := lr.Data
	r := &MulBlankRecord{Row: u16(d, 0), FirstCol: u16(d, 2)}
	last := u16(d, len(d)-2)
	n := last - r.FirstCol + 1
	if n < 0 || 4+2*n+2 != len(d) {
		return nil, NewXLRDError("MULBLANK column span %d-%d does not match length %d", r.FirstCol, last, len(d))
	}
	for i := 0; i < n; i++ {
		r.XFs = append(r.XFs, u16(d, 4+2*i))
	}
	return r, nil
}

// FORMULA option bits.
const (
	FormulaAlwaysCalc = 0x0001
	FormulaCalcOnLoad = 0x0002
	FormulaShared     = 0x0008
)

// Cached result kinds of a FORMULA record whose result is not a number.
const (
	resultString = 0
	resultBool   = 1
	resultError  = 2
	resultEmpty  = 3
)

// FormulaRecord is a formula cell with its cached result.
type FormulaRecord struct {
	CellHeader
	// Result is the cached value: a float64, or a type byte with
	// 0xFFFF in the last two bytes.
	Result  [8]byte
	Options int
	Chn     uint32
	Formula []Ptg
}

func (r *FormulaRecord) Sid() uint16 { return XL_FORMULA }
func (r *FormulaRecord) encode() ([]byte, []int) {
	rgce, extra := WriteTokens(r.Formula)
	b := append(r.appendTo(nil), r.Result[:]...)
	b = binary.LittleEndian.AppendUint16(b, uint16(r.Options))
	b = binary.LittleEndian.AppendUint32(b, r.Chn)
	b = binary.LittleEndian.AppendUint16(b, uint16(len(rgce)))
	return append(append(b, rgce...), extra...), nil
}

func decodeFormula(lr LogicalRecord) (Record, error) {
	if err := short(lr, 22); err != nil {
		return nil, err
	}
	d := lr.Data
	r := &FormulaRecord{
		CellHeader: decodeCellHeader(d),
		Options:    u16(d, 14),
		Chn:        binary.LittleEndian.Uint32(d[16:]),
	}
	copy(r.Result[:], d[6:14])
	cce := u16(d, 20)
	if 22+cce > len(d) {
		return nil, &TruncatedRecordError{Offset: lr.Offset, Message: "FORMULA tokens past end of record"}
	}
	toks, _, err := ReadTokens(d[22:22+cce], d[22+cce:])
	if err != nil {
		return nil, err
	}
	r.Formula = toks
	return r, nil
}

// special reports whether the cached result is not a number, and its kind.
func (r *FormulaRecord) special() (int, bool) {
	if r.Result[6] == 0xFF && r.Result[7] == 0xFF {
		return int(r.Result[0]), true
	}
	return 0, false
}

// CachedType returns the XL_CELL_* type of the cached result. An empty
// string result is XL_CELL_TEXT.
func (r *FormulaRecord) CachedType() int {
	kind, ok := r.special()
	if !ok {
		return XL_CELL_NUMBER
	}
	switch kind {
	case resultBool:
		return XL_CELL_BOOLEAN
	case resultError:
		return XL_CELL_ERROR
	}
	return XL_CELL_TEXT
}

// HasStringResult reports whether a STRING record must follow.
func (r *FormulaRecord) HasStringResult() bool {
	kind, ok := r.special()
	return ok && kind == resultString
}

// CachedNumber returns the cached numeric result.
func (r *FormulaRecord) CachedNumber() float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(r.Result[:]))
}

// CachedBool returns the cached boolean result.
func (r *FormulaRecord) CachedBool() bool { return r.Result[2] != 0 }

// CachedError returns the cached error result.
func (r *FormulaRecord) CachedError() ErrorCode { return ErrorCode(r.Result[2]) }

func (r *FormulaRecord) setSpecial(kind int, v byte) {
	r.Result = [8]byte{byte(kind), 0, v, 0, 0, 0, 0xFF, 0xFF}
}

// SetCachedNumber stores a numeric result.
func (r *FormulaRecord) SetCachedNumber(v float64) {
	binary.LittleEndian.PutUint64(r.Result[:], math.Float64bits(v))
}

// SetCachedBool stores a boolean result.
func (r *FormulaRecord) SetCachedBool(v bool) {
	b := byte(0)
	if v {
		b = 1
	}
	r.setSpecial(resultBool, b)
}

// SetCachedError stores an error result.
func (r *FormulaRecord) SetCachedError(code ErrorCode) { r.setSpecial(resultError, byte(code)) }

// setCachedText marks the result as a string; an empty string needs no
// STRING record.
func (r *FormulaRecord) setCachedText(empty bool) {
	if empty {
		r.setSpecial(resultEmpty, 0)
	} else {
		r.setSpecial(resultString, 0)
	}
}

// StringRecord carries the string result of the FORMULA before it.
type StringRecord struct {
	Value string
}

func (r *StringRecord) Sid() uint16 { return XL_STRING }
func (r *StringRecord) encode() ([]byte, []int) {
	w := &continuedWriter{}
	w.writeString(r.Value, 2)
	return w.buf, w.breaks
}

func decodeString(lr LogicalRecord) (Record, error) {
	s, _, err := readContinuedString(lr.Data, lr.Breaks, 0, 2)
	if err != nil {
		return nil, err
	}
	return &StringRecord{Value: s}, nil
}

func appendRefU(b []byte, r CellRange) []byte {
	b = binary.LittleEndian.AppendUint16(b, uint16(r.FirstRow))
	b = binary.LittleEndian.AppendUint16(b, uint16(r.LastRow))
	return append(b, byte(r.FirstCol), byte(r.LastCol))
}

func decodeRefU(d []byte) CellRange {
	return CellRange{FirstRow: u16(d, 0), LastRow: u16(d, 2), FirstCol: int(d[4]), LastCol: int(d[5])}
}

// SharedFormulaRecord holds the tokens shared by a range of cells. The
// tokens use tRefN/tAreaN relative to each member cell.
type SharedFormulaRecord struct {
	Range   CellRange
	Uses    int
	Formula []Ptg
}

func (r *SharedFormulaRecord) Sid() uint16 { return XL_SHRFMLA }
func (r *SharedFormulaRecord) encode() ([]byte, []int) {
	rgce, extra := WriteTokens(r.Formula)
	b := append(appendRefU(nil, r.Range), 0, byte(r.Uses))
	b = binary.LittleEndian.AppendUint16(b, uint16(len(rgce)))
	return append(append(b, rgce...), extra...), nil
}

func decodeSharedFormula(lr LogicalRecord) (Record, error) {
	if err := short(lr, 10); err != nil {
		return nil, err
	}
	d := lr.Data
	cce := u16(d, 8)
	if 10+cce > len(d) {
		return nil, &TruncatedRecordError{Offset: lr.Offset, Message: "SHRFMLA tokens past end of record"}
	}
	toks, _, err := ReadSharedTokens(d[10:10+cce], d[10+cce:])
	if err != nil {
		return nil, err
	}
	return &SharedFormulaRecord{Range: decodeRefU(d), Uses: int(d[7]), Formula: toks}, nil
}

// ArrayRecord holds an array formula entered over a range.
type ArrayRecord struct {
	Range   CellRange
	Options int
	Formula []Ptg
}

func (r *ArrayRecord) Sid() uint16 { return XL_ARRAY }
func (r *ArrayRecord) encode() ([]byte, []int) {
	rgce, extra := WriteTokens(r.Formula)
	b := binary.LittleEndian.AppendUint16(appendRefU(nil, r.Range), uint16(r.Options))
	b = append(b, 0, 0, 0, 0)
	b = binary.LittleEndian.AppendUint16(b, uint16(len(rgce)))
	return append(append(b, rgce...), extra...), nil
}

func decodeArray(lr LogicalRecord) (Record, error) {
	if err := short(lr, 14); err != nil {
		return nil, err
	}
	d := lr.Data
	cce := u16(d, 12)
	if 14+cce > len(d) {
		return nil, &TruncatedRecordError{Offset: lr.Offset, Message: "ARRAY tokens past end of record"}
	}
	toks, _, err := ReadTokens(d[14:14+cce], d[14+cce:])
	if err != nil {
		return nil, err
	}
	return &ArrayRecord{Range: decodeRefU(d), Options: u16(d, 6), Formula: toks}, nil
}

// MaxMergedRanges is the most ranges one MERGEDCELLS record holds.
const MaxMergedRanges = 1027

// MergedCellsRecord lists merged regions.
type MergedCellsRecord struct {
	Ranges []CellRange
}

func (r *MergedCellsRecord) Sid() uint16 { return XL_MERGEDCELLS }
func (r *MergedCellsRecord) encode() ([]byte, []int) {
	b := binary.LittleEndian.AppendUint16(nil, uint16(len(r.Ranges)))
	for _, m := range r.Ranges {
		b = m.appendTo(b)
	}
	return b, nil
}

func decodeMergedCells(lr LogicalRecord) (Record, error) {
	if err := short(lr, 2); err != nil {
		return nil, err
	}
	n := u16(lr.Data, 0)
	if err := short(lr, 2+8*n); err != nil {
		return nil, err
	}
	r := &MergedCellsRecord{Ranges: make([]CellRange, n)}
	for i := range r.Ranges {
		r.Ranges[i] = decodeCellRange(lr.Data[2+8*i:])
	}
	return r, nil
}

// DimensionsRecord is the used range of a sheet; the last row and column
// are exclusive.
type DimensionsRecord struct {
	FirstRow, LastRow int
	FirstCol, LastCol int
}

func (r *DimensionsRecord) Sid() uint16 { return XL_DIMENSION }
func (r *DimensionsRecord) encode() ([]byte, []int) {
	b := binary.LittleEndian.AppendUint32(nil, uint32(r.FirstRow))
	b = binary.LittleEndian.AppendUint32(b, uint32(r.LastRow))
	b = binary.LittleEndian.AppendUint16(b, uint16(r.FirstCol))
	b = binary.LittleEndian.AppendUint16(b, uint16(r.LastCol))
	return append(b, 0, 0), nil
}

func decodeDimensions(lr LogicalRecord) (Record, error) {
	if err := short(lr, 12); err != nil {
		return nil, err
	}
	d := lr.Data
	return &DimensionsRecord{FirstRow: u32(d, 0), LastRow: u32(d, 4), FirstCol: u16(d, 8), LastCol: u16(d, 10)}, nil
}

// RowRecord describes one row; LastCol is exclusive.
type RowRecord struct {
	Row               int
	FirstCol, LastCol int
	Height            int
	Options           int
	XF                int
}

// NewRowRecord returns a ROW record with Excel's defaults.
func NewRowRecord(row int) *RowRecord {
	return &RowRecord{Row: row, Height: 0xFF, Options: 0x0100, XF: 0x0F}
}

func (r *RowRecord) Sid() uint16 { return XL_ROW }
func (r *RowRecord) encode() ([]byte, []int) {
	b := binary.LittleEndian.AppendUint16(nil, uint16(r.Row))
	b = binary.LittleEndian.AppendUint16(b, uint16(r.FirstCol))
	b = binary.LittleEndian.AppendUint16(b, uint16(r.LastCol))
	b = binary.LittleEndian.AppendUint16(b, uint16(r.Height))
	b = append(b, 0, 0, 0, 0)
	b = binary.LittleEndian.AppendUint16(b, uint16(r.Options))
	return binary.LittleEndian.AppendUint16(b, uint16(r.XF)), nil
}

func decodeRow(lr LogicalRecord) (Record, error) {
	if err := short(lr, 16); err != nil {
		return nil, err
	}
	d := lr.Data
	return &RowRecord{
		Row:      u16(d, 0),
		FirstCol: u16(d, 2),
		LastCol:  u16(d, 4),
		Height:   u16(d, 6),
		Options:  u16(d, 12),
		XF:       u16(d, 14),
	}, nil
}

// IndexRecord locates the DBCELL records of a sheet.
type IndexRecord struct {
	FirstRow, LastRow int
	DefColWidthPos    int
	DBCells           []int
}

func (r *IndexRecord) Sid() uint16 { return XL_INDEX }
func (r *IndexRecord) encode() ([]byte, []int) {
	b := binary.LittleEndian.AppendUint32(nil, 0)
	b = binary.LittleEndian.AppendUint32(b, uint32(r.FirstRow))
	b = binary.LittleEndian.AppendUint32(b, uint32(r.LastRow))
	b = binary.LittleEndian.AppendUint32(b, uint32(r.DefColWidthPos))
	for _, p := range r.DBCells {
		b = binary.LittleEndian.AppendUint32(b, uint32(p))
	}
	return b, nil
}

func decodeIndex(lr LogicalRecord) (Record, error) {
	if err := short(lr, 16); err != nil {
		return nil, err
	}
	d := lr.Data
	r := &IndexRecord{FirstRow: u32(d, 4), LastRow: u32(d, 8), DefColWidthPos: u32(d, 12)}
	for p := 16; p+4 <= len(d); p += 4 {
		r.DBCells = append(r.DBCells, u32(d, p))
	}
	return r, nil
}

// DBCellRecord ends a block of rows. FirstRowOffset is the distance back
// to the block's first ROW record; CellOffsets locate each row's first
// cell.
type DBCellRecord struct {
	FirstRowOffset int
	CellOffsets    []int
}

func (r *DBCellRecord) Sid() uint16 { return XL_DBCELL }
func (r *DBCellRecord) encode() ([]byte, []int) {
	b := binary.LittleEndian.AppendUint32(nil, uint32(r.FirstRowOffset))
	for _, o := range r.CellOffsets {
		b = binary.LittleEndian.AppendUint16(b, uint16(o))
	}
	return b, nil
}

func decodeDBCell(lr LogicalRecord) (Record, error) {
	if err := short(lr, 4); err != nil {
		return nil, err
	}
	r := &DBCellRecord{FirstRowOffset: u32(lr.Data, 0)}
	for p := 4; p+2 <= len(lr.Data); p += 2 {
		r.CellOffsets = append(r.CellOffsets, u16(lr.Data, p))
	}
	return r, nil
}
