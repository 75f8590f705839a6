package xlrd

import (
	"fmt"
)

// XLRDError represents an error that occurred while reading or writing an Excel file.
type XLRDError struct {
	Message string
}

func (e *XLRDError) Error() string {
	return e.Message
}

// NewXLRDError creates a new XLRDError with the given message.
func NewXLRDError(format string, args ...interface{}) *XLRDError {
	return &XLRDError{Message: fmt.Sprintf(format, args...)}
}

// OldExcelFormatError is returned for files written in a BIFF version
// older than BIFF8 (Excel 2.x to Excel 95).
type OldExcelFormatError struct {
	BiffVersion int
}

func (e *OldExcelFormatError) Error() string {
	return fmt.Sprintf("BIFF%s file: only BIFF8 (Excel 97-2003) is supported", BiffTextFromNum(e.BiffVersion))
}

// TruncatedRecordError is returned when a record stream ends inside a
// record header or payload.
type TruncatedRecordError struct {
	Offset  int
	Message string
}

func (e *TruncatedRecordError) Error() string {
	return fmt.Sprintf("record truncated at offset %d: %s", e.Offset, e.Message)
}

// Cell types
const (
	XL_CELL_EMPTY   = 0
	XL_CELL_TEXT    = 1
	XL_CELL_NUMBER  = 2
	XL_CELL_DATE    = 3
	XL_CELL_BOOLEAN = 4
	XL_CELL_ERROR   = 5
	XL_CELL_BLANK   = 6 // for use in debugging, gathering stats, etc
)

var biffTextFromNum = map[int]string{
	0:  "(not BIFF)",
	20: "2.0",
	21: "2.1",
	30: "3",
	40: "4S",
	45: "4W",
	50: "5",
	70: "7",
	80: "8",
	85: "8X",
}

// BiffTextFromNum returns a text representation of a BIFF version number.
func BiffTextFromNum(num int) string {
	if text, ok := biffTextFromNum[num]; ok {
		return text
	}
	return fmt.Sprintf("Unknown(%d)", num)
}

// ErrorCode is an Excel error value as stored in BOOLERR, FORMULA and tErr.
type ErrorCode byte

// Excel error codes.
const (
	ErrNull  ErrorCode = 0x00
	ErrDiv0  ErrorCode = 0x07
	ErrValue ErrorCode = 0x0F
	ErrRef   ErrorCode = 0x17
	ErrName  ErrorCode = 0x1D
	ErrNum   ErrorCode = 0x24
	ErrNA    ErrorCode = 0x2A
)

// ErrorTextFromCode returns a text representation of an Excel error code.
var ErrorTextFromCode = map[ErrorCode]string{
	ErrNull:  "#NULL!",  // Intersection of two cell ranges is empty
	ErrDiv0:  "#DIV/0!", // Division by zero
	ErrValue: "#VALUE!", // Wrong type of operand
	ErrRef:   "#REF!",   // Illegal or deleted cell reference
	ErrName:  "#NAME?",  // Wrong function or range name
	ErrNum:   "#NUM!",   // Value range overflow
	ErrNA:    "#N/A",    // Argument or function not available
}

// ErrorCodeFromText is the inverse of ErrorTextFromCode.
var ErrorCodeFromText = map[string]ErrorCode{}

func init() {
	for code, text := range ErrorTextFromCode {
		ErrorCodeFromText[text] = code
	}
}

func (c ErrorCode) String() string {
	if text, ok := ErrorTextFromCode[c]; ok {
		return text
	}
	return fmt.Sprintf("#ERR%d!", byte(c))
}

// BOF stream types
const (
	XL_WORKBOOK_GLOBALS     = 0x5
	XL_WORKBOOK_GLOBALS_4W  = 0x100
	XL_WORKSHEET            = 0x10
	XL_BOUNDSHEET_WORKSHEET = 0x00
	XL_BOUNDSHEET_CHART     = 0x02
	XL_BOUNDSHEET_VB_MODULE = 0x06
)

// BIFF record type constants
const (
	XL_ARRAY                 = 0x0221
	XL_BLANK                 = 0x0201
	XL_BOF                   = 0x809
	XL_BOOLERR               = 0x205
	XL_BOUNDSHEET            = 0x85
	XL_CALCCOUNT             = 0x0C
	XL_CALCMODE              = 0x0D
	XL_CF                    = 0x01B1
	XL_CODEPAGE              = 0x42
	XL_COLINFO               = 0x7D
	XL_CONDFMT               = 0x01B0
	XL_CONTINUE              = 0x3c
	XL_COUNTRY               = 0x8C
	XL_DATEMODE              = 0x22
	XL_DBCELL                = 0xD7
	XL_DEFAULTROWHEIGHT      = 0x0225
	XL_DEFCOLWIDTH           = 0x55
	XL_DIMENSION             = 0x200
	XL_DV                    = 0x01BE
	XL_DVAL                  = 0x01B2
	XL_EOF                   = 0x0a
	XL_EXTERNNAME            = 0x23
	XL_EXTERNSHEET           = 0x17
	XL_EXTSST                = 0xff
	XL_FEAT11                = 0x872
	XL_FILEPASS              = 0x2f
	XL_FONT                  = 0x31
	XL_FOOTER                = 0x15
	XL_FORMAT                = 0x41e
	XL_FORMULA               = 0x6
	XL_GRIDSET               = 0x82
	XL_GUTS                  = 0x80
	XL_HCENTER               = 0x83
	XL_HEADER                = 0x14
	XL_HLINK                 = 0x01B8
	XL_HORIZONTALPAGEBREAKS  = 0x1b
	XL_INDEX                 = 0x20b
	XL_INTERFACEEND          = 0xE2
	XL_INTERFACEHDR          = 0xE1
	XL_ITERATION             = 0x11
	XL_LABEL                 = 0x204
	XL_LABELRANGES           = 0x15f
	XL_LABELSST              = 0xfd
	XL_LEFTMARGIN            = 0x26
	XL_MERGEDCELLS           = 0xE5
	XL_MMS                   = 0xC1
	XL_MSO_DRAWING           = 0x00EC
	XL_MSO_DRAWING_GROUP     = 0x00EB
	XL_MSO_DRAWING_SELECTION = 0x00ED
	XL_MULBLANK              = 0xbe
	XL_MULRK                 = 0xbd
	XL_NAME                  = 0x18
	XL_NOTE                  = 0x1c
	XL_NUMBER                = 0x203
	XL_OBJ                   = 0x5D
	XL_PAGESETUP             = 0xA1
	XL_PALETTE               = 0x92
	XL_PANE                  = 0x41
	XL_PRECISION             = 0x0E
	XL_PRINTGRIDLINES        = 0x2B
	XL_PRINTHEADERS          = 0x2A
	XL_PROTECT               = 0x12
	XL_REFMODE               = 0x0F
	XL_RK                    = 0x27e
	XL_ROW                   = 0x208
	XL_RSTRING               = 0xd6
	XL_SAVERECALC            = 0x5F
	XL_SCL                   = 0x00A0
	XL_SELECTION             = 0x1D
	XL_SHEETPR               = 0x81
	XL_SHRFMLA               = 0x04bc
	XL_SST                   = 0xfc
	XL_STANDARDWIDTH         = 0x99
	XL_STRING                = 0x207
	XL_STYLE                 = 0x293
	XL_SUPBOOK               = 0x1AE // aka EXTERNALBOOK in OOo docs
	XL_TABLEOP               = 0x236
	XL_TXO                   = 0x1b6
	XL_UNCALCED              = 0x5e
	XL_USESELFS              = 0x160
	XL_VERTICALPAGEBREAKS    = 0x1a
	XL_WINDOW1               = 0x3D
	XL_WINDOW2               = 0x023E
	XL_WRITEACCESS           = 0x5C
	XL_WSBOOL                = XL_SHEETPR
	XL_XF                    = 0xe0
)

// Pre-BIFF8 BOF record ids (BIFF2, BIFF3, BIFF4).
const (
	XL_BOF_B2 = 0x0009
	XL_BOF_B3 = 0x0209
	XL_BOF_B4 = 0x0409
)

// recordNames is used by the record dump.
var recordNames = map[uint16]string{
	XL_ARRAY:                "ARRAY",
	XL_BLANK:                "BLANK",
	XL_BOF:                  "BOF",
	XL_BOOLERR:              "BOOLERR",
	XL_BOUNDSHEET:           "BOUNDSHEET",
	XL_CALCCOUNT:            "CALCCOUNT",
	XL_CALCMODE:             "CALCMODE",
	XL_CF:                   "CF",
	XL_CODEPAGE:             "CODEPAGE",
	XL_COLINFO:              "COLINFO",
	XL_CONDFMT:              "CONDFMT",
	XL_CONTINUE:             "CONTINUE",
	XL_COUNTRY:              "COUNTRY",
	XL_DATEMODE:             "DATEMODE",
	XL_DBCELL:               "DBCELL",
	XL_DEFAULTROWHEIGHT:     "DEFAULTROWHEIGHT",
	XL_DEFCOLWIDTH:          "DEFCOLWIDTH",
	XL_DIMENSION:            "DIMENSION",
	XL_DV:                   "DV",
	XL_DVAL:                 "DVAL",
	XL_EOF:                  "EOF",
	XL_EXTERNNAME:           "EXTERNNAME",
	XL_EXTERNSHEET:          "EXTERNSHEET",
	XL_EXTSST:               "EXTSST",
	XL_FEAT11:               "FEAT11",
	XL_FILEPASS:             "FILEPASS",
	XL_FONT:                 "FONT",
	XL_FOOTER:               "FOOTER",
	XL_FORMAT:               "FORMAT",
	XL_FORMULA:              "FORMULA",
	XL_GRIDSET:              "GRIDSET",
	XL_GUTS:                 "GUTS",
	XL_HCENTER:              "HCENTER",
	XL_HEADER:               "HEADER",
	XL_HLINK:                "HLINK",
	XL_HORIZONTALPAGEBREAKS: "HORIZONTALPAGEBREAKS",
	XL_INDEX:                "INDEX",
	XL_INTERFACEEND:         "INTERFACEEND",
	XL_INTERFACEHDR:         "INTERFACEHDR",
	XL_ITERATION:            "ITERATION",
	XL_LABEL:                "LABEL",
	XL_LABELRANGES:          "LABELRANGES",
	XL_LABELSST:             "LABELSST",
	XL_LEFTMARGIN:           "LEFTMARGIN",
	XL_MERGEDCELLS:          "MERGEDCELLS",
	XL_MMS:                  "MMS",
	XL_MSO_DRAWING:          "MSODRAWING",
	XL_MSO_DRAWING_GROUP:    "MSODRAWINGGROUP",
	XL_MULBLANK:             "MULBLANK",
	XL_MULRK:                "MULRK",
	XL_NAME:                 "NAME",
	XL_NOTE:                 "NOTE",
	XL_NUMBER:               "NUMBER",
	XL_OBJ:                  "OBJ",
	XL_PAGESETUP:            "PAGESETUP",
	XL_PALETTE:              "PALETTE",
	XL_PANE:                 "PANE",
	XL_PRECISION:            "PRECISION",
	XL_PRINTGRIDLINES:       "PRINTGRIDLINES",
	XL_PRINTHEADERS:         "PRINTHEADERS",
	XL_PROTECT:              "PROTECT",
	XL_REFMODE:              "REFMODE",
	XL_RK:                   "RK",
	XL_ROW:                  "ROW",
	XL_RSTRING:              "RSTRING",
	XL_SAVERECALC:           "SAVERECALC",
	XL_SCL:                  "SCL",
	XL_SELECTION:            "SELECTION",
	XL_SHEETPR:              "WSBOOL",
	XL_SHRFMLA:              "SHRFMLA",
	XL_SST:                  "SST",
	XL_STANDARDWIDTH:        "STANDARDWIDTH",
	XL_STRING:               "STRING",
	XL_STYLE:                "STYLE",
	XL_SUPBOOK:              "SUPBOOK",
	XL_TABLEOP:              "TABLEOP",
	XL_TXO:                  "TXO",
	XL_UNCALCED:             "UNCALCED",
	XL_USESELFS:             "USESELFS",
	XL_VERTICALPAGEBREAKS:   "VERTICALPAGEBREAKS",
	XL_WINDOW1:              "WINDOW1",
	XL_WINDOW2:              "WINDOW2",
	XL_WRITEACCESS:          "WRITEACCESS",
	XL_XF:                   "XF",
}

// RecordName returns the conventional name of a record id.
func RecordName(sid uint16) string {
	if name, ok := recordNames[sid]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(0x%04x)", sid)
}

var cellOpcodeSet = map[uint16]bool{
	XL_BLANK:    true,
	XL_BOOLERR:  true,
	XL_FORMULA:  true,
	XL_LABEL:    true,
	XL_LABELSST: true,
	XL_MULBLANK: true,
	XL_MULRK:    true,
	XL_NUMBER:   true,
	XL_RK:       true,
	XL_RSTRING:  true,
}

// IsCellOpcode checks if the given code is a cell opcode.
func IsCellOpcode(c uint16) bool {
	return cellOpcodeSet[c]
}
