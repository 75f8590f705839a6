package xlrd

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Record is a decoded BIFF record. The set of record types is closed;
// ids without a decoder come back as *UnknownRecord.
type Record interface {
	Sid() uint16
	// encode returns the payload and, optionally, where it must be cut
	// into CONTINUE records.
	encode() ([]byte, []int)
}

// UnknownRecord keeps the payload of a record this package does not
// interpret, so it can be written back unchanged.
type UnknownRecord struct {
	ID     uint16
	Data   []byte
	Breaks []int
}

func (r *UnknownRecord) Sid() uint16             { return r.ID }
func (r *UnknownRecord) encode() ([]byte, []int) { return r.Data, r.Breaks }

func (r *UnknownRecord) String() string {
	return fmt.Sprintf("%s len=%d", RecordName(r.ID), len(r.Data))
}

type recordDecoder func(lr LogicalRecord) (Record, error)

var recordDecoders map[uint16]recordDecoder

func init() {
	recordDecoders = map[uint16]recordDecoder{
		XL_BOF:         decodeBOF,
		XL_EOF:         func(LogicalRecord) (Record, error) { return &EOFRecord{}, nil },
		XL_CODEPAGE:    decodeCodepage,
		XL_DATEMODE:    decodeDateMode,
		XL_BOUNDSHEET:  decodeBoundSheet,
		XL_SST:         decodeSST,
		XL_EXTSST:      decodeExtSST,
		XL_SUPBOOK:     decodeSupBook,
		XL_EXTERNSHEET: decodeExternSheet,
		XL_EXTERNNAME:  decodeExternName,
		XL_NAME:        decodeName,
		XL_WINDOW2:     decodeWindow2,
		XL_DIMENSION:   decodeDimensions,
		XL_ROW:         decodeRow,
		XL_INDEX:       decodeIndex,
		XL_DBCELL:      decodeDBCell,
		XL_NUMBER:      decodeNumber,
		XL_RK:          decodeRK,
		XL_MULRK:       decodeMulRK,
		XL_LABELSST:    decodeLabelSST,
		XL_LABEL:       decodeLabel,
		XL_BOOLERR:     decodeBoolErr,
		XL_BLANK:       decodeBlank,
		XL_MULBLANK:    decodeMulBlank,
		XL_FORMULA:     decodeFormula,
		XL_STRING:      decodeString,
		XL_SHRFMLA:     decodeSharedFormula,
		XL_ARRAY:       decodeArray,
		XL_MERGEDCELLS: decodeMergedCells,
	}
}

// continued lists the decoded records whose payload may run on into
// CONTINUE records. Records without a decoder are kept opaque and may
// always be continued.
var continued = map[uint16]bool{
	XL_SST:        true,
	XL_SUPBOOK:    true,
	XL_NAME:       true,
	XL_EXTERNNAME: true,
	XL_STRING:     true,
}

func takesContinue(sid uint16) bool {
	if _, ok := recordDecoders[sid]; !ok {
		return true
	}
	return continued[sid]
}

// DecodeRecord turns a logical record into its typed form.
func DecodeRecord(lr LogicalRecord) (Record, error) {
	dec, ok := recordDecoders[lr.Sid]
	if !ok {
		return &UnknownRecord{ID: lr.Sid, Data: lr.Data, Breaks: lr.Breaks}, nil
	}
	r, err := dec(lr)
	if err != nil {
		return nil, fmt.Errorf("%s record at offset %d: %w", RecordName(lr.Sid), lr.Offset, err)
	}
	return r, nil
}

// EncodeRecord is the inverse of DecodeRecord.
func EncodeRecord(r Record) LogicalRecord {
	data, breaks := r.encode()
	return LogicalRecord{Sid: r.Sid(), Data: data, Breaks: breaks}
}

// ReadRecords decodes a whole stream.
func ReadRecords(stream []byte) ([]Record, error) {
	lrs, err := DecodeStream(stream)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(lrs))
	for _, lr := range lrs {
		r, err := DecodeRecord(lr)
		if err != nil {
			return out, err
		}
		out = append(out, r)
	}
	return out, nil
}

// WriteRecords encodes records into a stream.
func WriteRecords(recs []Record) ([]byte, error) {
	lrs := make([]LogicalRecord, len(recs))
	for i, r := range recs {
		lrs[i] = EncodeRecord(r)
	}
	return EncodeStream(lrs)
}

func short(lr LogicalRecord, n int) error {
	if len(lr.Data) < n {
		return &TruncatedRecordError{
			Offset:  lr.Offset,
			Message: fmt.Sprintf("%s needs %d bytes, has %d", RecordName(lr.Sid), n, len(lr.Data)),
		}
	}
	return nil
}

func u16(b []byte, pos int) int { return int(binary.LittleEndian.Uint16(b[pos:])) }
func u32(b []byte, pos int) int { return int(binary.LittleEndian.Uint32(b[pos:])) }

// readContinuedString reads a Unicode string from a payload that may have
// been cut into CONTINUE records. When the characters cross a cut, the
// next record starts with a fresh option byte.
func readContinuedString(data []byte, breaks []int, pos int, lenlen int) (string, int, error) {
	if pos+lenlen+1 > len(data) {
		return "", pos, fmt.Errorf("string header past end of data at %d", pos)
	}
	var nchars int
	if lenlen == 1 {
		nchars = int(data[pos])
	} else {
		nchars = u16(data, pos)
	}
	pos += lenlen
	opts := data[pos]
	pos++
	var rt, sz int
	if opts&strRichText != 0 {
		if pos+2 > len(data) {
			return "", pos, fmt.Errorf("rich text count past end of data")
		}
		rt = u16(data, pos)
		pos += 2
	}
	if opts&strPhonetic != 0 {
		if pos+4 > len(data) {
			return "", pos, fmt.Errorf("phonetic size past end of data")
		}
		sz = u32(data, pos)
		pos += 4
	}
	var sb strings.Builder
	wide := opts&strHighByte != 0
	for nchars > 0 {
		end := len(data)
		for _, b := range breaks {
			if b >= pos {
				end = b
				break
			}
		}
		if end == pos && pos < len(data) {
			// continuation: a new option byte at the cut
			wide = data[pos]&strHighByte != 0
			pos++
			continue
		}
		w := 1
		if wide {
			w = 2
		}
		n := (end - pos) / w
		if n > nchars {
			n = nchars
		}
		if n == 0 {
			return "", pos, fmt.Errorf("string of %d characters runs past end of data", nchars)
		}
		s, err := decodeChars(data[pos:pos+n*w], wide)
		if err != nil {
			return "", pos, err
		}
		sb.WriteString(s)
		pos += n * w
		nchars -= n
	}
	pos += 4*rt + sz
	if pos > len(data) {
		return "", pos, fmt.Errorf("string formatting runs past end of data")
	}
	return sb.String(), pos, nil
}

// continuedWriter builds a payload with CONTINUE cuts that never split a
// string header or a character.
type continuedWriter struct {
	buf      []byte
	breaks   []int
	recStart int
}

func (w *continuedWriter) room() int {
	return MaxRecordDataSize - (len(w.buf) - w.recStart)
}

func (w *continuedWriter) cut() {
	w.breaks = append(w.breaks, len(w.buf))
	w.recStart = len(w.buf)
}

// reserve starts a new record unless n bytes fit in the current one.
func (w *continuedWriter) reserve(n int) {
	if w.room() < n {
		w.cut()
	}
}

// writeString appends s and returns the payload offset it starts at.
func (w *continuedWriter) writeString(s string, lenlen int) int {
	raw, wide := encodeChars(s)
	cw := 1
	flags := byte(0)
	if wide {
		cw = 2
		flags = strHighByte
	}
	head := lenlen + 1
	if len(raw) > 0 {
		w.reserve(head + cw)
	} else {
		w.reserve(head)
	}
	start := len(w.buf)
	if lenlen == 1 {
		w.buf = append(w.buf, byte(charCount(s)))
	} else {
		w.buf = binary.LittleEndian.AppendUint16(w.buf, uint16(charCount(s)))
	}
	w.buf = append(w.buf, flags)
	for len(raw) > 0 {
		n := w.room() / cw * cw
		if n == 0 {
			w.cut()
			w.buf = append(w.buf, flags)
			continue
		}
		if n > len(raw) {
			n = len(raw)
		}
		w.buf = append(w.buf, raw[:n]...)
		raw = raw[n:]
	}
	return start
}

// BOF types and versions.
const (
	BIFF8Version = 0x0600
	BIFF5Version = 0x0500
)

// BOFRecord starts every substream.
type BOFRecord struct {
	Version  int
	Type     int
	Build    int
	Year     int
	History  uint32
	LowestVe uint32
}

func (r *BOFRecord) Sid() uint16 { return XL_BOF }
func (r *BOFRecord) encode() ([]byte, []int) {
	b := make([]byte, 0, 16)
	b = binary.LittleEndian.AppendUint16(b, uint16(r.Version))
	b = binary.LittleEndian.AppendUint16(b, uint16(r.Type))
	b = binary.LittleEndian.AppendUint16(b, uint16(r.Build))
	b = binary.LittleEndian.AppendUint16(b, uint16(r.Year))
	if r.Version < BIFF8Version {
		return b, nil
	}
	b = binary.LittleEndian.AppendUint32(b, r.History)
	return binary.LittleEndian.AppendUint32(b, r.LowestVe), nil
}

func decodeBOF(lr LogicalRecord) (Record, error) {
	if err := short(lr, 4); err != nil {
		return nil, err
	}
	r := &BOFRecord{Version: u16(lr.Data, 0), Type: u16(lr.Data, 2)}
	if len(lr.Data) >= 8 {
		r.Build = u16(lr.Data, 4)
		r.Year = u16(lr.Data, 6)
	}
	if len(lr.Data) >= 16 {
		r.History = binary.LittleEndian.Uint32(lr.Data[8:])
		r.LowestVe = binary.LittleEndian.Uint32(lr.Data[12:])
	}
	return r, nil
}

// NewBOF returns a BIFF8 BOF for a substream of the given type.
func NewBOF(streamType int) *BOFRecord {
	return &BOFRecord{Version: BIFF8Version, Type: streamType, Build: 0x0DBB, Year: 0x07CC, History: 0x000000C1, LowestVe: 0x00000006}
}

// EOFRecord ends every substream.
type EOFRecord struct{}

func (r *EOFRecord) Sid() uint16             { return XL_EOF }
func (r *EOFRecord) encode() ([]byte, []int) { return nil, nil }

// CodepageRecord carries the workbook code page (1200 in BIFF8).
type CodepageRecord struct {
	Codepage int
}

func (r *CodepageRecord) Sid() uint16 { return XL_CODEPAGE }
func (r *CodepageRecord) encode() ([]byte, []int) {
	return binary.LittleEndian.AppendUint16(nil, uint16(r.Codepage)), nil
}

func decodeCodepage(lr LogicalRecord) (Record, error) {
	if err := short(lr, 2); err != nil {
		return nil, err
	}
	return &CodepageRecord{Codepage: u16(lr.Data, 0)}, nil
}

// DateModeRecord selects the 1900 (0) or 1904 (1) date system.
type DateModeRecord struct {
	Mode int
}

func (r *DateModeRecord) Sid() uint16 { return XL_DATEMODE }
func (r *DateModeRecord) encode() ([]byte, []int) {
	return binary.LittleEndian.AppendUint16(nil, uint16(r.Mode)), nil
}

func decodeDateMode(lr LogicalRecord) (Record, error) {
	if err := short(lr, 2); err != nil {
		return nil, err
	}
	return &DateModeRecord{Mode: u16(lr.Data, 0)}, nil
}

// BoundSheetRecord names a sheet and locates its BOF in the stream.
type BoundSheetRecord struct {
	Offset     int
	Visibility int
	SheetType  int
	Name       string
}

func (r *BoundSheetRecord) Sid() uint16 { return XL_BOUNDSHEET }
func (r *BoundSheetRecord) encode() ([]byte, []int) {
	b := binary.LittleEndian.AppendUint32(nil, uint32(r.Offset))
	b = append(b, byte(r.Visibility), byte(r.SheetType))
	return append(b, PackUnicode(r.Name, 1)...), nil
}

func decodeBoundSheet(lr LogicalRecord) (Record, error) {
	if err := short(lr, 8); err != nil {
		return nil, err
	}
	name, err := UnpackUnicode(lr.Data, 6, 1)
	if err != nil {
		return nil, err
	}
	return &BoundSheetRecord{
		Offset:     u32(lr.Data, 0),
		Visibility: int(lr.Data[4] & 0x03),
		SheetType:  int(lr.Data[5]),
		Name:       name,
	}, nil
}

// SSTRecord is the shared string table.
type SSTRecord struct {
	Total   int
	Strings []string

	// payload offsets of every string, set by encode
	starts []int
	breaks []int
}

func (r *SSTRecord) Sid() uint16 { return XL_SST }
func (r *SSTRecord) encode() ([]byte, []int) {
	w := &continuedWriter{}
	w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(r.Total))
	w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(len(r.Strings)))
	r.starts = r.starts[:0]
	for _, s := range r.Strings {
		r.starts = append(r.starts, w.writeString(s, 2))
	}
	r.breaks = w.breaks
	return w.buf, w.breaks
}

func decodeSST(lr LogicalRecord) (Record, error) {
	if err := short(lr, 8); err != nil {
		return nil, err
	}
	r := &SSTRecord{Total: u32(lr.Data, 0)}
	n := u32(lr.Data, 4)
	pos := 8
	for i := 0; i < n; i++ {
		if pos >= len(lr.Data) {
			return nil, &TruncatedRecordError{Offset: lr.Offset, Message: fmt.Sprintf("SST holds %d of %d strings", i, n)}
		}
		s, next, err := readContinuedString(lr.Data, lr.Breaks, pos, 2)
		if err != nil {
			return nil, fmt.Errorf("string %d: %w", i, err)
		}
		r.Strings = append(r.Strings, s)
		pos = next
	}
	return r, nil
}

// ExtSST builds the EXTSST index for r once r has been encoded and its
// record header written at streamOffset.
func (r *SSTRecord) ExtSST(streamOffset int) *ExtSSTRecord {
	per := 8
	if n := (len(r.starts) + 127) / 128; n > per {
		per = n
	}
	x := &ExtSSTRecord{StringsPerBucket: per}
	for i := 0; i < len(r.starts); i += per {
		p := r.starts[i]
		k := 0
		recStart := 0
		for _, b := range r.breaks {
			if b > p {
				break
			}
			k++
			recStart = b
		}
		x.Buckets = append(x.Buckets, ExtSSTBucket{
			StreamPos: streamOffset + 4 + p + 4*k,
			Offset:    4 + p - recStart,
		})
	}
	return x
}

// ExtSSTBucket locates the first string of a bucket.
type ExtSSTBucket struct {
	StreamPos int
	Offset    int
}

// ExtSSTRecord indexes the shared string table.
type ExtSSTRecord struct {
	StringsPerBucket int
	Buckets          []ExtSSTBucket
}

func (r *ExtSSTRecord) Sid() uint16 { return XL_EXTSST }
func (r *ExtSSTRecord) encode() ([]byte, []int) {
	b := binary.LittleEndian.AppendUint16(nil, uint16(r.StringsPerBucket))
	for _, k := range r.Buckets {
		b = binary.LittleEndian.AppendUint32(b, uint32(k.StreamPos))
		b = binary.LittleEndian.AppendUint16(b, uint16(k.Offset))
		b = append(b, 0, 0)
	}
	return b, nil
}

func decodeExtSST(lr LogicalRecord) (Record, error) {
	if err := short(lr, 2); err != nil {
		return nil, err
	}
	r := &ExtSSTRecord{StringsPerBucket: u16(lr.Data, 0)}
	for pos := 2; pos+8 <= len(lr.Data); pos += 8 {
		r.Buckets = append(r.Buckets, ExtSSTBucket{StreamPos: u32(lr.Data, pos), Offset: u16(lr.Data, pos+4)})
	}
	return r, nil
}

// SupBookKind tells what a SUPBOOK record refers to.
type SupBookKind int

const (
	SupBookInternal SupBookKind = iota
	SupBookAddIn
	SupBookExternal
)

// SupBookRecord names a workbook that 3-D references point into.
type SupBookRecord struct {
	Kind       SupBookKind
	SheetCount int
	// URL is the encoded file name of an external workbook.
	URL        string
	SheetNames []string
}

// BookName returns the decoded file name of an external workbook.
func (r *SupBookRecord) BookName() string {
	url := r.URL
	if strings.HasPrefix(url, "\x01") {
		url = url[1:]
	}
	return strings.NewReplacer("\x01", "", "\x02", "", "\x03", "/", "\x04", "../").Replace(url)
}

// EncodeBookURL encodes a workbook file name for a SUPBOOK record.
func EncodeBookURL(name string) string {
	return "\x01" + name
}

func (r *SupBookRecord) Sid() uint16 { return XL_SUPBOOK }
func (r *SupBookRecord) encode() ([]byte, []int) {
	switch r.Kind {
	case SupBookInternal:
		return append(binary.LittleEndian.AppendUint16(nil, uint16(r.SheetCount)), 0x01, 0x04), nil
	case SupBookAddIn:
		return []byte{0x01, 0x00, 0x01, 0x3A}, nil
	}
	w := &continuedWriter{}
	w.buf = binary.LittleEndian.AppendUint16(w.buf, uint16(len(r.SheetNames)))
	w.writeString(r.URL, 2)
	for _, s := range r.SheetNames {
		w.writeString(s, 2)
	}
	return w.buf, w.breaks
}

func decodeSupBook(lr LogicalRecord) (Record, error) {
	if err := short(lr, 4); err != nil {
		return nil, err
	}
	r := &SupBookRecord{SheetCount: u16(lr.Data, 0)}
	marker := u16(lr.Data, 2)
	switch {
	case marker == 0x0401 && len(lr.Data) == 4:
		r.Kind = SupBookInternal
		return r, nil
	case marker == 0x3A01 && len(lr.Data) == 4:
		r.Kind = SupBookAddIn
		return r, nil
	}
	r.Kind = SupBookExternal
	url, pos, err := readContinuedString(lr.Data, lr.Breaks, 2, 2)
	if err != nil {
		return nil, err
	}
	r.URL = url
	for i := 0; i < r.SheetCount; i++ {
		var s string
		s, pos, err = readContinuedString(lr.Data, lr.Breaks, pos, 2)
		if err != nil {
			return nil, fmt.Errorf("sheet name %d: %w", i, err)
		}
		r.SheetNames = append(r.SheetNames, s)
	}
	return r, nil
}

// XTI is one EXTERNSHEET entry: a SUPBOOK and a sheet span inside it.
// Negative sheet indexes mark deleted sheets (-1) or workbook-level
// references (-2).
type XTI struct {
	SupBook    int
	FirstSheet int
	LastSheet  int
}

// ExternSheetRecord is the table tRef3d/tArea3d/tNameX point into.
type ExternSheetRecord struct {
	Refs []XTI
}

func (r *ExternSheetRecord) Sid() uint16 { return XL_EXTERNSHEET }
func (r *ExternSheetRecord) encode() ([]byte, []int) {
	b := binary.LittleEndian.AppendUint16(nil, uint16(len(r.Refs)))
	for _, x := range r.Refs {
		b = binary.LittleEndian.AppendUint16(b, uint16(x.SupBook))
		b = binary.LittleEndian.AppendUint16(b, uint16(int16(x.FirstSheet)))
		b = binary.LittleEndian.AppendUint16(b, uint16(int16(x.LastSheet)))
	}
	return b, nil
}

func decodeExternSheet(lr LogicalRecord) (Record, error) {
	if err := short(lr, 2); err != nil {
		return nil, err
	}
	n := u16(lr.Data, 0)
	if err := short(lr, 2+6*n); err != nil {
		return nil, err
	}
	r := &ExternSheetRecord{}
	for i := 0; i < n; i++ {
		p := 2 + 6*i
		r.Refs = append(r.Refs, XTI{
			SupBook:    u16(lr.Data, p),
			FirstSheet: int(int16(u16(lr.Data, p+2))),
			LastSheet:  int(int16(u16(lr.Data, p+4))),
		})
	}
	return r, nil
}

// ExternNameRecord is a name defined in an external or add-in workbook.
type ExternNameRecord struct {
	Options    int
	SheetIndex int
	Name       string
	// Rest is the encoded formula (or DDE/OLE data) after the name.
	Rest []byte
}

// NewAddInName returns the EXTERNNAME for an add-in function.
func NewAddInName(name string) *ExternNameRecord {
	return &ExternNameRecord{Name: name, Rest: []byte{0x02, 0x00, tErr, byte(ErrRef)}}
}

func (r *ExternNameRecord) Sid() uint16 { return XL_EXTERNNAME }
func (r *ExternNameRecord) encode() ([]byte, []int) {
	b := binary.LittleEndian.AppendUint16(nil, uint16(r.Options))
	b = binary.LittleEndian.AppendUint16(b, uint16(r.SheetIndex))
	b = append(b, 0, 0)
	b = append(b, PackUnicode(r.Name, 1)...)
	return append(b, r.Rest...), nil
}

func decodeExternName(lr LogicalRecord) (Record, error) {
	if err := short(lr, 7); err != nil {
		return nil, err
	}
	name, pos, err := UnpackUnicodeUpdatePos(lr.Data, 6, 1, nil)
	if err != nil {
		return nil, err
	}
	return &ExternNameRecord{
		Options:    u16(lr.Data, 0),
		SheetIndex: u16(lr.Data, 2),
		Name:       name,
		Rest:       append([]byte(nil), lr.Data[pos:]...),
	}, nil
}

// NAME option bits.
const (
	NameHidden  = 0x0001
	NameFunc    = 0x0002
	NameVBasic  = 0x0004
	NameMacro   = 0x0008
	NameComplex = 0x0010
	NameBuiltIn = 0x0020
)

// builtInNames are the names behind one-character built-in NAME codes.
var builtInNames = []string{
	"Consolidate_Area", "Auto_Open", "Auto_Close", "Extract", "Database",
	"Criteria", "Print_Area", "Print_Titles", "Recorder", "Data_Form",
	"Auto_Activate", "Auto_Deactivate", "Sheet_Title", "_FilterDatabase",
}

// BuiltInName returns the text of a built-in name code.
func BuiltInName(code int) string {
	if code >= 0 && code < len(builtInNames) {
		return builtInNames[code]
	}
	return fmt.Sprintf("??Unknown builtin NAME 0x%02x", code)
}

// NameRecord defines a name. SheetIndex is 1-based; 0 means global.
type NameRecord struct {
	Options     int
	KeyShortcut byte
	SheetIndex  int
	// Name is the user name; for built-in names it is the one-character
	// code.
	Name    string
	Formula []Ptg
	// Trailer holds the optional menu, description, help and status
	// strings.
	Trailer []byte
	counts  [4]byte
}

// BuiltIn reports whether the record defines a built-in name.
func (r *NameRecord) BuiltIn() bool { return r.Options&NameBuiltIn != 0 }

// DisplayName returns the name as it appears in formulas.
func (r *NameRecord) DisplayName() string {
	if r.BuiltIn() && len(r.Name) > 0 {
		return BuiltInName(int([]rune(r.Name)[0]))
	}
	return r.Name
}

func (r *NameRecord) Sid() uint16 { return XL_NAME }
func (r *NameRecord) encode() ([]byte, []int) {
	rgce, extra := WriteTokens(r.Formula)
	name := PackUnicode(r.Name, 0)
	b := binary.LittleEndian.AppendUint16(nil, uint16(r.Options))
	b = append(b, r.KeyShortcut, byte(charCount(r.Name)))
	b = binary.LittleEndian.AppendUint16(b, uint16(len(rgce)))
	b = append(b, 0, 0)
	b = binary.LittleEndian.AppendUint16(b, uint16(r.SheetIndex))
	b = append(b, r.counts[:]...)
	b = append(b, name...)
	b = append(b, rgce...)
	b = append(b, extra...)
	return append(b, r.Trailer...), nil
}

func decodeName(lr LogicalRecord) (Record, error) {
	if err := short(lr, 14); err != nil {
		return nil, err
	}
	d := lr.Data
	r := &NameRecord{
		Options:     u16(d, 0),
		KeyShortcut: d[2],
		SheetIndex:  u16(d, 8),
	}
	copy(r.counts[:], d[10:14])
	nchars := int(d[3])
	cce := u16(d, 4)
	name, pos, err := UnpackUnicodeUpdatePos(d, 14, 0, &nchars)
	if err != nil {
		return nil, err
	}
	r.Name = name
	if pos+cce > len(d) {
		return nil, &TruncatedRecordError{Offset: lr.Offset, Message: "NAME formula past end of record"}
	}
	toks, used, err := ReadTokens(d[pos:pos+cce], d[pos+cce:])
	if err != nil {
		return nil, err
	}
	r.Formula = toks
	r.Trailer = append([]byte(nil), d[pos+cce+used:]...)
	return r, nil
}

// Window2Record holds sheet view options.
type Window2Record struct {
	Options int
	TopRow  int
	LeftCol int
	Rest    []byte
}

// Selected reports whether the sheet tab is selected.
func (r *Window2Record) Selected() bool { return r.Options&0x0200 != 0 }

func (r *Window2Record) Sid() uint16 { return XL_WINDOW2 }
func (r *Window2Record) encode() ([]byte, []int) {
	b := binary.LittleEndian.AppendUint16(nil, uint16(r.Options))
	b = binary.LittleEndian.AppendUint16(b, uint16(r.TopRow))
	b = binary.LittleEndian.AppendUint16(b, uint16(r.LeftCol))
	return append(b, r.Rest...), nil
}

func decodeWindow2(lr LogicalRecord) (Record, error) {
	if err := short(lr, 6); err != nil {
		return nil, err
	}
	return &Window2Record{
		Options: u16(lr.Data, 0),
		TopRow:  u16(lr.Data, 2),
		LeftCol: u16(lr.Data, 4),
		Rest:    append([]byte(nil), lr.Data[6:]...),
	}, nil
}

// NewWindow2 returns the view settings Excel writes for a new sheet.
func NewWindow2(selected bool) *Window2Record {
	opts := 0x06B6
	if selected {
		opts |= 0x0600
	} else {
		opts &^= 0x0600
	}
	return &Window2Record{Options: opts, Rest: []byte{0x40, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}}
}
