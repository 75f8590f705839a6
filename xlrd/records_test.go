package xlrd

import (
	"math"
	"reflect"
	"strings"
	"testing"
)

func decodeOne(t *testing.T, r Record) Record {
	t.Helper()
	stream, err := WriteRecords([]Record{r})
	if err != nil {
		t.Fatalf("WriteRecords(%T) failed: %v", r, err)
	}
	recs, err := ReadRecords(stream)
	if err != nil {
		t.Fatalf("ReadRecords(%T) failed: %v", r, err)
	}
	if len(recs) != 1 {
		t.Fatalf("ReadRecords(%T) returned %d records, expected 1", r, len(recs))
	}
	return recs[0]
}

func TestSSTAcrossContinue(t *testing.T) {
	var strs []string
	for i := 0; i < 600; i++ {
		strs = append(strs, strings.Repeat("abcdefghij", 3)+string(rune('A'+i%26)))
	}
	// a wide string long enough to be cut in the middle of its characters
	strs = append(strs, strings.Repeat("é中", 3000))
	sst := &SSTRecord{Total: 1000, Strings: strs}
	data, breaks := sst.encode()
	if len(breaks) == 0 {
		t.Fatalf("SST of %d bytes was not split", len(data))
	}
	stream, err := WriteRecords([]Record{sst})
	if err != nil {
		t.Fatalf("WriteRecords failed: %v", err)
	}
	raws, err := ReadRawRecords(stream)
	if err != nil {
		t.Fatalf("ReadRawRecords failed: %v", err)
	}
	if len(raws) < 2 || raws[1].Sid != XL_CONTINUE {
		t.Fatalf("expected SST followed by CONTINUE records, got %d records", len(raws))
	}
	back := decodeOne(t, sst).(*SSTRecord)
	if back.Total != 1000 {
		t.Errorf("Total = %d, expected 1000", back.Total)
	}
	if !reflect.DeepEqual(back.Strings, strs) {
		t.Errorf("strings did not survive the CONTINUE split")
	}
}

func TestExtSSTBuckets(t *testing.T) {
	var strs []string
	for i := 0; i < 20; i++ {
		strs = append(strs, "s")
	}
	sst := &SSTRecord{Total: 20, Strings: strs}
	sst.encode()
	x := sst.ExtSST(100)
	if x.StringsPerBucket != 8 {
		t.Errorf("StringsPerBucket = %d, expected 8", x.StringsPerBucket)
	}
	if len(x.Buckets) != 3 {
		t.Fatalf("len(Buckets) = %d, expected 3", len(x.Buckets))
	}
	// each string is 2 + 1 + 1 bytes after the 8-byte SST header
	if x.Buckets[1].StreamPos != 100+4+8+8*4 || x.Buckets[1].Offset != 4+8+8*4 {
		t.Errorf("Buckets[1] = %+v", x.Buckets[1])
	}
}

func TestRK(t *testing.T) {
	tests := []struct {
		value float64
		rk    bool
	}{
		{0, true},
		{1, true},
		{-123456, true},
		{1.25, true},
		{12.34, true},
		{-0.01, true},
		{1 << 29, true},
		{math.Pi, false},
		{1e300, false},
	}
	for _, test := range tests {
		rk, ok := EncodeRK(test.value)
		if ok != test.rk {
			t.Errorf("EncodeRK(%v) ok = %v, expected %v", test.value, ok, test.rk)
			continue
		}
		if ok && DecodeRK(rk) != test.value {
			t.Errorf("DecodeRK(EncodeRK(%v)) = %v", test.value, DecodeRK(rk))
		}
	}
}

func TestDecodeRKForms(t *testing.T) {
	tests := []struct {
		rk       uint32
		expected float64
	}{
		{0x3FF00000, 1},
		{0x3FF00001, 0.01},
		{0x00000002 | 100<<2, 100},
		{0x00000003 | 1234<<2, 12.34},
		{0xFFFFFFFE, -1},
	}
	for _, test := range tests {
		if got := DecodeRK(test.rk); math.Abs(got-test.expected) > 1e-12 {
			t.Errorf("DecodeRK(0x%08x) = %v, expected %v", test.rk, got, test.expected)
		}
	}
}

func TestRecordRoundTrips(t *testing.T) {
	tests := []Record{
		&BoundSheetRecord{Offset: 1234, Visibility: 1, Name: "Data é"},
		&CodepageRecord{Codepage: 1200},
		&DateModeRecord{Mode: 1},
		&SupBookRecord{Kind: SupBookInternal, SheetCount: 3},
		&SupBookRecord{Kind: SupBookAddIn, SheetCount: 1},
		&SupBookRecord{Kind: SupBookExternal, SheetCount: 2, URL: EncodeBookURL("other.xls"), SheetNames: []string{"Sheet1", "Rates"}},
		&ExternSheetRecord{Refs: []XTI{{0, 0, 0}, {1, -2, -2}, {0, -1, -1}}},
		&NumberRecord{CellHeader: CellHeader{Row: 3, Col: 4, XF: 15}, Value: math.Pi},
		&LabelSSTRecord{CellHeader: CellHeader{Row: 1, Col: 2, XF: 15}, SST: 7},
		&BoolErrRecord{CellHeader: CellHeader{Row: 1, Col: 2, XF: 15}, Value: byte(ErrDiv0), IsError: true},
		&MergedCellsRecord{Ranges: []CellRange{{0, 1, 0, 3}, {5, 5, 2, 4}}},
		&DimensionsRecord{FirstRow: 0, LastRow: 10, FirstCol: 0, LastCol: 4},
	}
	for _, r := range tests {
		back := decodeOne(t, r)
		if !reflect.DeepEqual(back, r) {
			t.Errorf("%T round trip = %+v, expected %+v", r, back, r)
		}
	}
}

func TestSupBookBookName(t *testing.T) {
	sb := &SupBookRecord{Kind: SupBookExternal, URL: "\x01dir\x03file.xls"}
	if got := sb.BookName(); got != "dir/file.xls" {
		t.Errorf("BookName() = %q, expected %q", got, "dir/file.xls")
	}
}

func TestNameRecordBuiltIn(t *testing.T) {
	r := &NameRecord{Options: NameBuiltIn, SheetIndex: 1, Name: "\x07", Formula: []Ptg{&RefErr3dPtg{classed: classed{ClassRef}}}}
	back := decodeOne(t, r).(*NameRecord)
	if got := back.DisplayName(); got != "Print_Titles" {
		t.Errorf("DisplayName() = %q, expected Print_Titles", got)
	}
	if back.SheetIndex != 1 {
		t.Errorf("SheetIndex = %d, expected 1", back.SheetIndex)
	}
	if got := BuiltInName(0x33); !strings.HasPrefix(got, "??") {
		t.Errorf("BuiltInName(0x33) = %q, expected an unknown marker", got)
	}
}
