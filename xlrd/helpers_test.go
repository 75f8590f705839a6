package xlrd

import (
	"encoding/binary"
	"testing"
)

// record builds one physical record.
func record(id uint16, data []byte) []byte {
	b := binary.LittleEndian.AppendUint16(nil, id)
	b = binary.LittleEndian.AppendUint16(b, uint16(len(data)))
	return append(b, data...)
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func mustEncode(t *testing.T, r Record) []byte {
	t.Helper()
	data, _ := r.encode()
	return record(r.Sid(), data)
}

// bof8 is a BIFF8 BOF payload for the given substream type.
func bof8(streamType int) []byte {
	data, _ := NewBOF(streamType).encode()
	return data
}

// biffStream builds a minimal bare BIFF8 workbook stream with one sheet
// whose records are given; BOUNDSHEET offsets are computed.
func biffStream(t *testing.T, globals [][]byte, sheetName string, sheet [][]byte) []byte {
	t.Helper()
	head := concat(record(XL_BOF, bof8(XL_WORKBOOK_GLOBALS)), concat(globals...))
	bsLen := len(mustEncode(t, &BoundSheetRecord{Name: sheetName}))
	offset := len(head) + bsLen + 4
	bs := mustEncode(t, &BoundSheetRecord{Offset: offset, Name: sheetName})
	body := concat(record(XL_BOF, bof8(XL_WORKSHEET)), concat(sheet...), record(XL_EOF, nil))
	return concat(head, bs, record(XL_EOF, nil), body)
}

func newTestBook(t *testing.T, names ...string) *Book {
	t.Helper()
	bk := NewBook()
	for _, name := range names {
		if _, err := bk.AddSheet(name); err != nil {
			t.Fatalf("AddSheet(%q) failed: %v", name, err)
		}
	}
	return bk
}

func mustSheet(t *testing.T, bk *Book, name string) *Sheet {
	t.Helper()
	sh, err := bk.SheetByName(name)
	if err != nil {
		t.Fatalf("SheetByName(%q) failed: %v", name, err)
	}
	return sh
}
