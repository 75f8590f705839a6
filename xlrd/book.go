package xlrd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/yamitzky/xlcalc-go/compdoc"
)

// Book represents the contents of a "workbook".
//
// Use OpenWorkbook to read one from a file, or NewBook to start an empty
// one.
type Book struct {
	// NSheets is the number of worksheets present in the workbook file.
	// This information is available even when no sheets have yet been loaded.
	NSheets int

	// Datemode indicates which date system was in force when this file was last saved.
	// 0: 1900 system (the Excel for Windows default).
	// 1: 1904 system (the Excel for Macintosh default).
	// Defaults to 0 in case it's not specified in the file.
	Datemode int

	// BiffVersion is the version of BIFF used to create the file; always
	// 80 for workbooks this package can read.
	BiffVersion int

	// NameObjList contains a Name object for each NAME record in the workbook.
	NameObjList []*Name

	// Codepage is 1200 (UTF-16LE) for BIFF8 files.
	Codepage int

	// Container is the compound document the workbook was read from. It is
	// nil for new workbooks and raw BIFF streams. Its other streams are
	// written back unchanged by Bytes.
	Container *compdoc.CompDoc

	// XFList is a list of XF records, for telling date cells from numbers.
	XFList []*XF

	// FormatMap is the mapping from XF.FormatKey to Format object.
	FormatMap map[int]*Format

	sheetList   []*Sheet
	substreams  [][]LogicalRecord
	sheetTypes  []int
	opaque      [][]Record
	links       *LinkTable
	strings     []string
	globalsBOF  *BOFRecord
	globalsHead []Record // before the BOUNDSHEET records
	globalsMid  []Record // between BOUNDSHEET and link/NAME records
	globalsLate []Record // between NAME and SST records
	globalsTail []Record // after the SST

	logfile          io.Writer
	verbosity        int
	ignoreCorruption bool
	listeners        []CellListener
}

// Name represents information relating to a named reference, formula, macro, etc.
type Name struct {
	Book *Book

	// Name is the name as written in formulas. Built-in names carry
	// their text, such as "Print_Area".
	Name string

	// Scope is the sheet index (0-based) or -1 for global scope
	Scope int

	Hidden  bool
	Func    bool
	Macro   bool
	BuiltIn bool

	// Tokens is the definition of the name.
	Tokens []Ptg

	rec *NameRecord
}

// DisplayName returns the name as it appears in formulas.
func (n *Name) DisplayName() string { return n.Name }

// FormulaText renders the definition of the name.
func (n *Name) FormulaText() (string, error) {
	return DecompileFormula(n.Book, n.Tokens, nil, nil)
}

// Deleted reports whether the name refers to a deleted range.
func (n *Name) Deleted() bool {
	if len(n.Tokens) != 1 {
		return false
	}
	switch n.Tokens[0].(type) {
	case *RefErrPtg, *AreaErrPtg, *RefErr3dPtg, *AreaErr3dPtg:
		return true
	}
	return false
}

// CellListener is told when a cell value or formula is changed through
// a Sheet.
type CellListener interface {
	CellChanged(sh *Sheet, rowx, colx int)
}

// OpenWorkbookOptions contains options for opening a workbook.
type OpenWorkbookOptions struct {
	// Logfile is an open file to which messages and diagnostics are written.
	// Nil discards them.
	Logfile io.Writer

	// Verbosity increases the volume of trace material written to the logfile.
	Verbosity int

	// FileContents is the file contents as bytes.
	// If FileContents is supplied, the filename is only used in messages.
	FileContents []byte

	// OnDemand governs whether sheets are all loaded initially or when demanded by the caller.
	OnDemand bool

	// IgnoreWorkbookCorruption allows to read corrupted workbooks.
	// When false you may face CompDocError: Workbook corruption.
	// When true that error will be ignored.
	IgnoreWorkbookCorruption bool
}

// NewBook returns an empty workbook with no sheets.
func NewBook() *Book {
	b := &Book{
		BiffVersion: 80,
		Codepage:    1200,
		links:       &LinkTable{},
		logfile:     io.Discard,
	}
	b.initializeFormatInfo()
	b.globalsHead = []Record{&CodepageRecord{Codepage: 1200}, &DateModeRecord{}}
	return b
}

func (b *Book) logf(level int, format string, args ...interface{}) {
	if b.verbosity >= level {
		fmt.Fprintf(b.logfile, format, args...)
	}
}

// OpenWorkbook opens a spreadsheet file for data extraction.
//
// filename: The path to the spreadsheet file to be opened.
// options: Optional parameters for opening the workbook.
//
// Returns: An instance of the Book class.
func OpenWorkbook(filename string, options *OpenWorkbookOptions) (*Book, error) {
	var content []byte
	if options != nil {
		content = options.FileContents
	}
	fileFormat, err := InspectFormat(filename, content)
	if err != nil {
		return nil, err
	}
	switch fileFormat {
	case "xlsx", "xlsb", "ods", "zip":
		return nil, NewXLRDError("%s; not supported", FileFormatDescriptions[fileFormat])
	}
	return OpenWorkbookXLS(filename, options)
}

// OpenWorkbookXLS opens an XLS workbook: a compound document holding a
// Workbook stream, or a bare BIFF8 stream.
func OpenWorkbookXLS(filename string, options *OpenWorkbookOptions) (*Book, error) {
	if options == nil {
		options = &OpenWorkbookOptions{}
	}
	content := options.FileContents
	if content == nil {
		var err error
		content, err = os.ReadFile(filename)
		if err != nil {
			return nil, err
		}
	}
	if len(content) == 0 {
		return nil, NewXLRDError("File size is 0 bytes")
	}
	return OpenWorkbookBytes(content, options)
}

// OpenWorkbookBytes reads a workbook held in memory.
func OpenWorkbookBytes(content []byte, options *OpenWorkbookOptions) (*Book, error) {
	if options == nil {
		options = &OpenWorkbookOptions{}
	}
	bk := NewBook()
	bk.globalsHead = nil
	if options.Logfile != nil {
		bk.logfile = options.Logfile
	}
	bk.verbosity = options.Verbosity
	bk.ignoreCorruption = options.IgnoreWorkbookCorruption

	cd, err := compdoc.Open(content, &compdoc.Options{
		Logfile:                  bk.logfile,
		Verbosity:                options.Verbosity,
		IgnoreWorkbookCorruption: options.IgnoreWorkbookCorruption,
	})
	var stream []byte
	var notCFB *compdoc.NotCompoundFileError
	switch {
	case err == nil:
		bk.Container = cd
		found := false
		for _, qname := range []string{"Workbook", "Book"} {
			if stream, found = cd.LocateNamedStream(qname); found {
				break
			}
		}
		if !found {
			return nil, NewXLRDError("Can't find workbook in OLE2 compound document")
		}
	case errors.As(err, &notCFB) && looksLikeBIFF(content):
		stream = content
	default:
		return nil, err
	}
	if err := bk.load(stream, options.OnDemand); err != nil {
		return nil, err
	}
	return bk, nil
}

// looksLikeBIFF reports whether data starts with a BOF record of any
// BIFF version.
func looksLikeBIFF(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	switch uint16(data[0]) | uint16(data[1])<<8 {
	case XL_BOF, XL_BOF_B2, XL_BOF_B3, XL_BOF_B4:
		return true
	}
	return false
}

// biffVersion identifies the BIFF version from the first record of a
// stream.
func biffVersion(lr LogicalRecord) (int, error) {
	switch lr.Sid {
	case XL_BOF_B2:
		return 20, nil
	case XL_BOF_B3:
		return 30, nil
	case XL_BOF_B4:
		return 40, nil
	case XL_BOF:
	default:
		return 0, NewXLRDError("Expected BOF record; found 0x%04x", lr.Sid)
	}
	if err := short(lr, 4); err != nil {
		return 0, err
	}
	version2 := u16(lr.Data, 0)
	switch version2 {
	case BIFF8Version:
		return 80, nil
	case BIFF5Version:
		build, year := 0, 0
		if len(lr.Data) >= 8 {
			build, year = u16(lr.Data, 4), u16(lr.Data, 6)
		}
		if year < 1994 || build == 2412 || build == 3218 || build == 3321 {
			return 50, nil
		}
		return 70, nil
	case 0x0000, 0x0007:
		return 21, nil
	}
	return 0, NewXLRDError("Unknown BIFF version: 0x%04x", version2)
}

// load reads the workbook globals and locates every sheet substream.
func (b *Book) load(stream []byte, onDemand bool) error {
	if len(stream) >= 4 {
		// look at the BOF alone first: older streams need not split
		// cleanly into BIFF8 records
		n := 4 + (int(stream[2]) | int(stream[3])<<8)
		if raws, err := ReadRawRecords(stream[:min(n, len(stream))]); err == nil && len(raws) > 0 {
			v, err := biffVersion(MergeContinues(raws)[0])
			if err != nil {
				return err
			}
			if v < 80 {
				return &OldExcelFormatError{BiffVersion: v}
			}
		}
	}
	lrs, err := DecodeStream(stream)
	if err != nil {
		return err
	}
	if len(lrs) == 0 || lrs[0].Sid != XL_BOF {
		return NewXLRDError("Expected BOF record at start of workbook stream")
	}
	if b.BiffVersion, err = biffVersion(lrs[0]); err != nil {
		return err
	}
	if b.BiffVersion < 80 {
		return &OldExcelFormatError{BiffVersion: b.BiffVersion}
	}
	offsets := make(map[int]int, len(lrs))
	for i, lr := range lrs {
		offsets[lr.Offset] = i
	}

	var sheets []*BoundSheetRecord
	slot := &b.globalsHead
	for i, lr := range lrs {
		r, err := DecodeRecord(lr)
		if err != nil {
			return err
		}
		if i == 0 {
			b.globalsBOF = r.(*BOFRecord)
			continue
		}
		if _, ok := r.(*EOFRecord); ok {
			break
		}
		switch r := r.(type) {
		case *BoundSheetRecord:
			sheets = append(sheets, r)
			slot = &b.globalsMid
		case *SupBookRecord, *ExternNameRecord, *ExternSheetRecord:
			b.links.add(r)
			slot = &b.globalsLate
		case *NameRecord:
			b.NameObjList = append(b.NameObjList, b.nameFromRecord(r))
			slot = &b.globalsLate
		case *SSTRecord:
			b.strings = r.Strings
			slot = &b.globalsTail
		case *ExtSSTRecord:
			// regenerated with the SST
		case *CodepageRecord:
			b.Codepage = r.Codepage
			*slot = append(*slot, r)
		case *DateModeRecord:
			b.Datemode = r.Mode
			*slot = append(*slot, r)
		default:
			switch r.Sid() {
			case XL_FILEPASS:
				return NewXLRDError("Workbook is encrypted")
			case XL_FORMAT:
				b.handleFormat(lr.Data)
			case XL_XF:
				b.handleXF(lr.Data)
			}
			*slot = append(*slot, r)
		}
	}
	b.logf(2, "globals: %d sheets, %d names, %d shared strings\n", len(sheets), len(b.NameObjList), len(b.strings))

	for _, bs := range sheets {
		start, ok := offsets[bs.Offset]
		if !ok || lrs[start].Sid != XL_BOF {
			return NewXLRDError("sheet %q: no BOF record at offset %d", bs.Name, bs.Offset)
		}
		end, depth := start, 0
		for ; end < len(lrs); end++ {
			switch lrs[end].Sid {
			case XL_BOF:
				depth++
			case XL_EOF:
				depth--
			}
			if depth == 0 {
				break
			}
		}
		if end == len(lrs) {
			end--
		}
		sh := newSheet(b, bs.Name, len(b.sheetList))
		sh.Visibility = bs.Visibility
		b.sheetList = append(b.sheetList, sh)
		b.sheetTypes = append(b.sheetTypes, bs.SheetType)
		b.substreams = append(b.substreams, lrs[start:end+1])
		b.opaque = append(b.opaque, nil)
	}
	b.NSheets = len(b.sheetList)
	// sheets are created up front so names and 3-D references resolve;
	// their cells are read here or on first access
	for i := range b.sheetList {
		if !onDemand {
			if _, err := b.SheetByIndex(i); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *Book) nameFromRecord(r *NameRecord) *Name {
	n := &Name{
		Book:    b,
		Name:    r.DisplayName(),
		Scope:   r.SheetIndex - 1,
		Hidden:  r.Options&NameHidden != 0,
		Func:    r.Options&NameFunc != 0,
		Macro:   r.Options&NameMacro != 0,
		BuiltIn: r.BuiltIn(),
		Tokens:  r.Formula,
		rec:     r,
	}
	if n.BuiltIn && strings.HasPrefix(n.Name, "??") {
		b.logf(0, "*** WARNING: %s\n", n.Name)
	}
	return n
}

// loadSheet reads the cells of a sheet from its substream.
func (b *Book) loadSheet(sheetx int) error {
	sh := b.sheetList[sheetx]
	recs := make([]Record, 0, len(b.substreams[sheetx]))
	for _, lr := range b.substreams[sheetx] {
		r, err := DecodeRecord(lr)
		if err != nil {
			return fmt.Errorf("sheet %q: %w", sh.Name, err)
		}
		recs = append(recs, r)
	}
	if b.sheetTypes[sheetx] != XL_BOUNDSHEET_WORKSHEET {
		// charts and macro sheets are carried through untouched
		b.opaque[sheetx] = recs
		sh.loaded = true
		return nil
	}
	l := &sheetLoader{sh: sh}
	if err := l.load(recs); err != nil {
		return fmt.Errorf("sheet %q: %w", sh.Name, err)
	}
	sh.loaded = true
	b.logf(2, "sheet %q: %d rows, %d columns\n", sh.Name, sh.NRows, sh.NCols)
	return nil
}

func (b *Book) sharedString(i int) (string, error) {
	if i < 0 || i >= len(b.strings) {
		if b.ignoreCorruption {
			b.logf(0, "*** WARNING: SST index %d out of range (%d strings)\n", i, len(b.strings))
			return "", nil
		}
		return "", NewXLRDError("SST index %d out of range (%d strings)", i, len(b.strings))
	}
	return b.strings[i], nil
}

// Sheets returns a list of all sheets in the book.
// All sheets not already loaded will be loaded.
func (b *Book) Sheets() []*Sheet {
	for sheetx := range b.sheetList {
		if _, err := b.SheetByIndex(sheetx); err != nil {
			b.logf(0, "*** WARNING: %v\n", err)
		}
	}
	return b.sheetList
}

// SheetByIndex returns a sheet by its index.
func (b *Book) SheetByIndex(sheetx int) (*Sheet, error) {
	if sheetx < 0 || sheetx >= len(b.sheetList) {
		return nil, NewXLRDError("sheet index %d out of range", sheetx)
	}
	sh := b.sheetList[sheetx]
	if !sh.loaded {
		if err := b.loadSheet(sheetx); err != nil {
			return nil, err
		}
	}
	return sh, nil
}

// SheetByName returns a sheet by its name. Names compare
// case-insensitively, as Excel does.
func (b *Book) SheetByName(sheetName string) (*Sheet, error) {
	if i := b.SheetIndex(sheetName); i >= 0 {
		return b.SheetByIndex(i)
	}
	return nil, NewXLRDError("No sheet named <%s>", sheetName)
}

// SheetIndex returns the index of the named sheet, or -1.
func (b *Book) SheetIndex(sheetName string) int {
	for i, sh := range b.sheetList {
		if strings.EqualFold(sh.Name, sheetName) {
			return i
		}
	}
	return -1
}

// SheetNames returns a list of all sheet names.
func (b *Book) SheetNames() []string {
	names := make([]string, len(b.sheetList))
	for i, sh := range b.sheetList {
		names[i] = sh.Name
	}
	return names
}

// Get returns a sheet by index or name.
func (b *Book) Get(key interface{}) (*Sheet, error) {
	switch k := key.(type) {
	case int:
		return b.SheetByIndex(k)
	case string:
		return b.SheetByName(k)
	default:
		return nil, NewXLRDError("Invalid key type for sheet access")
	}
}

// SheetLoaded reports whether the cells of a sheet have been read.
func (b *Book) SheetLoaded(sheetNameOrIndex interface{}) (bool, error) {
	sheetx, err := b.sheetIndexOf(sheetNameOrIndex)
	if err != nil {
		return false, err
	}
	return b.sheetList[sheetx].loaded, nil
}

// UnloadSheet drops the cells of a sheet read from a file; they are read
// again on next access. Changes made to the sheet are lost.
func (b *Book) UnloadSheet(sheetNameOrIndex interface{}) error {
	sheetx, err := b.sheetIndexOf(sheetNameOrIndex)
	if err != nil {
		return err
	}
	if sheetx >= len(b.substreams) || b.substreams[sheetx] == nil {
		return NewXLRDError("sheet %d was not read from a file", sheetx)
	}
	old := b.sheetList[sheetx]
	sh := newSheet(b, old.Name, sheetx)
	sh.Visibility = old.Visibility
	b.sheetList[sheetx] = sh
	b.opaque[sheetx] = nil
	return nil
}

func (b *Book) sheetIndexOf(key interface{}) (int, error) {
	switch k := key.(type) {
	case int:
		if k < 0 || k >= len(b.sheetList) {
			return 0, NewXLRDError("sheet index %d out of range", k)
		}
		return k, nil
	case string:
		if i := b.SheetIndex(k); i >= 0 {
			return i, nil
		}
		return 0, NewXLRDError("No sheet named <%s>", k)
	}
	return 0, NewXLRDError("Invalid key type for sheet access")
}

// ReleaseResources drops the undecoded sheet substreams. Sheets not yet
// loaded are read first.
func (b *Book) ReleaseResources() {
	b.Sheets()
	for i := range b.substreams {
		b.substreams[i] = nil
	}
}

// validSheetName checks the rules Excel applies to sheet names.
func validSheetName(name string) error {
	if name == "" || len([]rune(name)) > 31 {
		return NewXLRDError("sheet name %q must have 1 to 31 characters", name)
	}
	if strings.ContainsAny(name, `[]:*?/\`) {
		return NewXLRDError("sheet name %q contains one of []:*?/\\", name)
	}
	if strings.HasPrefix(name, "'") || strings.HasSuffix(name, "'") {
		return NewXLRDError("sheet name %q starts or ends with a quote", name)
	}
	return nil
}

// AddSheet appends an empty worksheet.
func (b *Book) AddSheet(name string) (*Sheet, error) {
	if err := validSheetName(name); err != nil {
		return nil, err
	}
	if b.SheetIndex(name) >= 0 {
		return nil, NewXLRDError("sheet %q already exists", name)
	}
	sh := newSheet(b, name, len(b.sheetList))
	sh.loaded = true
	sh.tail = []Record{NewWindow2(len(b.sheetList) == 0)}
	b.sheetList = append(b.sheetList, sh)
	b.sheetTypes = append(b.sheetTypes, XL_BOUNDSHEET_WORKSHEET)
	b.substreams = append(b.substreams, nil)
	b.opaque = append(b.opaque, nil)
	b.NSheets = len(b.sheetList)
	return sh, nil
}

// Links returns the SUPBOOK/EXTERNSHEET table of the workbook.
func (b *Book) Links() *LinkTable { return b.links }

// AddName defines a name. scope is -1 for a workbook-wide name, otherwise
// the index of the sheet the name belongs to.
func (b *Book) AddName(name, formula string, scope int) (*Name, error) {
	if name == "" {
		return nil, NewXLRDError("empty name")
	}
	if _, ok := ParseCellName(strings.ReplaceAll(name, "$", "")); ok {
		return nil, NewXLRDError("name %q looks like a cell reference", name)
	}
	if scope < -1 || scope >= len(b.sheetList) {
		return nil, NewXLRDError("name scope %d out of range", scope)
	}
	for _, n := range b.NameObjList {
		if n.Scope == scope && strings.EqualFold(n.Name, name) {
			return nil, NewXLRDError("name %q already defined", name)
		}
	}
	sheetx := scope
	if sheetx < 0 {
		sheetx = 0
	}
	toks, err := b.ParseFormula(formula, sheetx, FMLA_TYPE_NAME)
	if err != nil {
		return nil, err
	}
	n := &Name{Book: b, Name: name, Scope: scope, Tokens: toks}
	b.NameObjList = append(b.NameObjList, n)
	return n, nil
}

// NameByText finds a defined name, preferring one local to sheetx over a
// global one.
func (b *Book) NameByText(name string, sheetx int) *Name {
	if i := b.nameIndex(name, sheetx); i > 0 {
		return b.NameObjList[i-1]
	}
	return nil
}

// nameIndex returns the 1-based index used by tName tokens, or 0.
func (b *Book) nameIndex(name string, sheetx int) int {
	global := 0
	for i, n := range b.NameObjList {
		if !strings.EqualFold(n.Name, name) {
			continue
		}
		if n.Scope == sheetx {
			return i + 1
		}
		if n.Scope < 0 && global == 0 {
			global = i + 1
		}
	}
	return global
}

// sheetRefText renders the sheet part of a 3-D reference through
// EXTERNSHEET entry ixti.
func (b *Book) sheetRefText(ixti int) (string, error) {
	if b == nil {
		return "", NewFormulaError("3-D reference without a workbook")
	}
	es, err := b.links.Resolve(ixti)
	if err != nil {
		return "", err
	}
	switch {
	case es.AddIn:
		return "", NewFormulaError("EXTERNSHEET entry %d names the add-in table", ixti)
	case es.Internal:
		name := func(i int) string {
			if i < 0 || i >= len(b.sheetList) {
				return "#REF"
			}
			return b.sheetList[i].Name
		}
		first, last := name(es.First), name(es.Last)
		if first == "#REF" || last == "#REF" {
			return "#REF", nil
		}
		return sheetPrefix("", first, last), nil
	}
	return sheetPrefix(es.Book, es.FirstName, es.LastName), nil
}

// externNameText renders a tNameX token.
func (b *Book) externNameText(ixti, index int) (string, error) {
	if b == nil {
		return "", NewFormulaError("external name without a workbook")
	}
	en, err := b.links.ExternName(ixti, index)
	if err != nil {
		return "", err
	}
	es, err := b.links.Resolve(ixti)
	if err != nil {
		return "", err
	}
	if es.Book != "" {
		return "[" + es.Book + "]" + en.Name, nil
	}
	return en.Name, nil
}

// AddCellListener registers l for cell change notifications.
func (b *Book) AddCellListener(l CellListener) {
	b.listeners = append(b.listeners, l)
}

// RemoveCellListener unregisters l.
func (b *Book) RemoveCellListener(l CellListener) {
	for i, x := range b.listeners {
		if x == l {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			return
		}
	}
}

func (b *Book) notify(sh *Sheet, rowx, colx int) {
	for _, l := range b.listeners {
		l.CellChanged(sh, rowx, colx)
	}
}
