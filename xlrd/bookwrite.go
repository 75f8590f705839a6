package xlrd

import (
	"bytes"
	"io"
	"os"

	"github.com/yamitzky/xlcalc-go/compdoc"
)

// nameRecord builds the NAME record for n.
func (b *Book) nameRecord(n *Name) *NameRecord {
	r := n.rec
	if r == nil {
		r = &NameRecord{Name: n.Name}
		if n.BuiltIn {
			for code, text := range builtInNames {
				if text == n.Name {
					r.Name = string(rune(code))
				}
			}
		}
	}
	r.Formula = n.Tokens
	r.SheetIndex = n.Scope + 1
	r.Options &^= NameHidden | NameFunc | NameMacro | NameBuiltIn
	if n.Hidden {
		r.Options |= NameHidden
	}
	if n.Func {
		r.Options |= NameFunc
	}
	if n.Macro {
		r.Options |= NameMacro
	}
	if n.BuiltIn {
		r.Options |= NameBuiltIn
	}
	return r
}

func (b *Book) syncDateMode(recs []Record) {
	for _, r := range recs {
		if d, ok := r.(*DateModeRecord); ok {
			d.Mode = b.Datemode
		}
	}
}

// WorkbookStream serializes the workbook as a BIFF8 Workbook stream.
//
// The globals substream is written as BOF, the leading records,
// BOUNDSHEET records, link table and NAME records, SST with EXTSST, the
// trailing records and EOF. Sheet offsets in the BOUNDSHEET records are
// filled in once the sheets have been placed.
func (b *Book) WorkbookStream() ([]byte, error) {
	sheets := b.Sheets()
	sst := newSSTBuilder()
	for i, sh := range sheets {
		if b.opaque[i] == nil {
			sh.collectStrings(sst)
		}
	}

	w := &streamWriter{}
	bof := b.globalsBOF
	if bof == nil {
		bof = NewBOF(XL_WORKBOOK_GLOBALS)
	}
	w.write(bof)
	for _, part := range [][]Record{b.globalsHead, b.globalsMid, b.globalsLate, b.globalsTail} {
		b.syncDateMode(part)
	}
	for _, r := range b.globalsHead {
		w.write(r)
	}
	bounds := make([]*BoundSheetRecord, len(sheets))
	boundPos := make([]int, len(sheets))
	for i, sh := range sheets {
		bounds[i] = &BoundSheetRecord{Visibility: sh.Visibility, SheetType: b.sheetTypes[i], Name: sh.Name}
		boundPos[i] = w.write(bounds[i])
	}
	for _, r := range b.globalsMid {
		w.write(r)
	}
	for _, r := range b.links.records(len(sheets)) {
		w.write(r)
	}
	for _, n := range b.NameObjList {
		w.write(b.nameRecord(n))
	}
	for _, r := range b.globalsLate {
		w.write(r)
	}
	sstRec := sst.record()
	sstPos := w.write(sstRec)
	w.write(sstRec.ExtSST(sstPos))
	for _, r := range b.globalsTail {
		w.write(r)
	}
	w.write(&EOFRecord{})

	for i, sh := range sheets {
		bounds[i].Offset = w.pos()
		if recs := b.opaque[i]; recs != nil {
			for _, r := range recs {
				w.write(r)
			}
		} else {
			sh.write(w, sst)
		}
		w.patch(boundPos[i], bounds[i])
	}
	if w.err != nil {
		return nil, w.err
	}
	return w.buf, nil
}

// container returns the compound document the workbook is written into:
// the one it was read from, with the Workbook stream replaced, or a new
// one.
func (b *Book) container(stream []byte) (*compdoc.CompDoc, error) {
	cd := b.Container
	if cd == nil {
		cd = compdoc.New()
		cd.Root.CLSID = compdoc.ExcelCLSID
		si := &compdoc.SummaryInfo{AppName: "xlcalc-go"}
		if _, err := cd.CreateStream(nil, compdoc.SummaryInformationName, si.Bytes()); err != nil {
			return nil, err
		}
	}
	if old := cd.Root.Child("Book"); old != nil {
		if err := cd.Delete(old); err != nil {
			return nil, err
		}
	}
	if _, err := cd.PutStream(nil, "Workbook", stream); err != nil {
		return nil, err
	}
	return cd, nil
}

// Bytes serializes the workbook as an .xls file.
func (b *Book) Bytes() ([]byte, error) {
	stream, err := b.WorkbookStream()
	if err != nil {
		return nil, err
	}
	cd, err := b.container(stream)
	if err != nil {
		return nil, err
	}
	return cd.Bytes()
}

// WriteTo writes the workbook as an .xls file to w.
func (b *Book) WriteTo(w io.Writer) (int64, error) {
	data, err := b.Bytes()
	if err != nil {
		return 0, err
	}
	return io.Copy(w, bytes.NewReader(data))
}

// Save writes the workbook to filename. With verify set, the file is
// first read back through an independent compound document reader.
func (b *Book) Save(filename string, verify bool) error {
	data, err := b.Bytes()
	if err != nil {
		return err
	}
	if verify {
		if err := compdoc.Verify(data); err != nil {
			return err
		}
	}
	return os.WriteFile(filename, data, 0o644)
}
