package compdoc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func pattern(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7) + seed
	}
	return b
}

func buildDoc(t *testing.T, major uint16) *CompDoc {
	t.Helper()
	cd := New()
	cd.MajorVersion = major
	sizes := map[string]int{
		"Empty":    0,
		"Tiny":     10,
		"Mini63":   63,
		"Mini64":   64,
		"Under":    4095,
		"Cutoff":   4096,
		"Workbook": 10000,
	}
	i := byte(0)
	for name, n := range sizes {
		if _, err := cd.CreateStream(nil, name, pattern(n, i)); err != nil {
			t.Fatalf("CreateStream(%s) error: %v", name, err)
		}
		i++
	}
	st, err := cd.CreateStorage(nil, "_VBA_PROJECT_CUR")
	if err != nil {
		t.Fatalf("CreateStorage error: %v", err)
	}
	if _, err := cd.CreateStream(st, "dir", pattern(700, 99)); err != nil {
		t.Fatalf("CreateStream(dir) error: %v", err)
	}
	return cd
}

func TestRoundTrip(t *testing.T) {
	for _, major := range []uint16{3, 4} {
		cd := buildDoc(t, major)
		b, err := cd.Bytes()
		if err != nil {
			t.Fatalf("v%d Bytes() error: %v", major, err)
		}
		back, err := Open(b, nil)
		if err != nil {
			t.Fatalf("v%d Open() error: %v", major, err)
		}
		if back.MajorVersion != major {
			t.Errorf("MajorVersion = %d, expected %d", back.MajorVersion, major)
		}
		count := 0
		err = cd.Walk(func(path []string, e *Entry) error {
			count++
			got := back.Find(path...)
			if got == nil {
				t.Errorf("v%d: %v missing after round trip", major, path)
				return nil
			}
			if got.Type != e.Type {
				t.Errorf("v%d %v: Type = %v, expected %v", major, path, got.Type, e.Type)
			}
			if e.IsStream() {
				if got.Size != uint64(len(e.Data)) {
					t.Errorf("v%d %v: Size = %d, expected %d", major, path, got.Size, len(e.Data))
				}
				if !bytes.Equal(got.Data, e.Data) {
					t.Errorf("v%d %v: content differs", major, path)
				}
			}
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
		if count != 9 {
			t.Errorf("v%d: walked %d entries, expected 9", major, count)
		}
		if err := Verify(b); err != nil {
			t.Errorf("v%d Verify() error: %v", major, err)
		}
	}
}

func TestRoundTripIsDeterministic(t *testing.T) {
	a, err := buildDoc(t, 3).Bytes()
	if err != nil {
		t.Fatal(err)
	}
	back, err := Open(a, nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := back.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Errorf("second serialization differs (%d vs %d bytes)", len(a), len(b))
	}
}

func TestManyFATSectors(t *testing.T) {
	// more than 109 FAT sectors forces DIFAT sectors
	cd := New()
	big := pattern(109*128*512+5000, 3)
	if _, err := cd.CreateStream(nil, "Workbook", big); err != nil {
		t.Fatal(err)
	}
	b, err := cd.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if n := binary.LittleEndian.Uint32(b[72:76]); n == 0 {
		t.Errorf("DIFAT sector count = 0, expected at least 1")
	}
	back, err := Open(b, nil)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	data, ok := back.LocateNamedStream("workbook")
	if !ok || !bytes.Equal(data, big) {
		t.Errorf("LocateNamedStream(workbook) did not return the stream")
	}
}

func TestOpenErrors(t *testing.T) {
	good, err := buildDoc(t, 3).Bytes()
	if err != nil {
		t.Fatal(err)
	}
	corrupt := func(off int, v ...byte) []byte {
		b := append([]byte(nil), good...)
		copy(b[off:], v)
		return b
	}
	tests := []struct {
		name    string
		data    []byte
		wantNot bool
	}{
		{"text", []byte("just some text, not a container"), true},
		{"raw biff", []byte{0x09, 0x08, 0x10, 0x00, 0x00, 0x06, 0x05, 0x00}, true},
		{"truncated header", good[:100], false},
		{"byte order", corrupt(28, 0xFF, 0xFF), false},
		{"sector shift", corrupt(30, 10, 0), false},
		{"mini shift", corrupt(32, 7, 0), false},
	}
	for _, tt := range tests {
		_, err := Open(tt.data, nil)
		if err == nil {
			t.Errorf("%s: Open() returned no error", tt.name)
			continue
		}
		var notCF *NotCompoundFileError
		var cde *CompDocError
		if tt.wantNot && !errors.As(err, &notCF) {
			t.Errorf("%s: error = %T, expected *NotCompoundFileError", tt.name, err)
		}
		if !tt.wantNot && !errors.As(err, &cde) {
			t.Errorf("%s: error = %T, expected *CompDocError", tt.name, err)
		}
	}
}

// fatEntryOffset returns the file offset of FAT entry sid in a v3 document.
func fatEntryOffset(b []byte, sid int) int {
	fatSector := int(binary.LittleEndian.Uint32(b[76:80]))
	return (fatSector+1)*512 + 4*sid
}

func twoBigStreams(t *testing.T) []byte {
	t.Helper()
	cd := New()
	if _, err := cd.CreateStream(nil, "A", pattern(4096, 1)); err != nil {
		t.Fatal(err)
	}
	if _, err := cd.CreateStream(nil, "B", pattern(4096, 2)); err != nil {
		t.Fatal(err)
	}
	b, err := cd.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestCircularChain(t *testing.T) {
	b := twoBigStreams(t)
	// the first stream occupies sectors 0-7; point its last sector back at 0
	binary.LittleEndian.PutUint32(b[fatEntryOffset(b, 7):], 0)
	for _, ignore := range []bool{false, true} {
		_, err := Open(b, &Options{IgnoreWorkbookCorruption: ignore})
		var cde *CompDocError
		if !errors.As(err, &cde) {
			t.Errorf("ignore=%v: error = %v, expected *CompDocError", ignore, err)
		}
	}
}

func TestSharedSector(t *testing.T) {
	b := twoBigStreams(t)
	// chain the first stream into the second one's sectors
	binary.LittleEndian.PutUint32(b[fatEntryOffset(b, 7):], 8)
	_, err := Open(b, nil)
	var cde *CompDocError
	if !errors.As(err, &cde) {
		t.Fatalf("error = %v, expected *CompDocError", err)
	}
	var log bytes.Buffer
	cd, err := Open(b, &Options{Logfile: &log, IgnoreWorkbookCorruption: true})
	if err != nil {
		t.Fatalf("IgnoreWorkbookCorruption: Open() error: %v", err)
	}
	if data, _ := cd.LocateNamedStream("A"); !bytes.Equal(data, pattern(4096, 1)) {
		t.Errorf("stream A content differs")
	}
	if log.Len() == 0 {
		t.Errorf("expected a corruption warning in the log")
	}
}

func TestCompareNames(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"B", "AA", -1},
		{"abc", "ABC", 0},
		{"Book", "Workbook", -1},
		{"Zeta", "Alfa", 1},
		{"a", "B", -1},
	}
	for _, tt := range tests {
		if got := compareNames(tt.a, tt.b); got != tt.want {
			t.Errorf("compareNames(%q, %q) = %d, expected %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestEntryEditing(t *testing.T) {
	cd := New()
	if _, err := cd.CreateStream(nil, "Workbook", []byte{1}); err != nil {
		t.Fatal(err)
	}
	if _, err := cd.CreateStream(nil, "WORKBOOK", []byte{2}); err == nil {
		t.Errorf("duplicate name accepted")
	}
	if _, err := cd.CreateStream(nil, "a/b", nil); err == nil {
		t.Errorf("name with '/' accepted")
	}
	if _, err := cd.CreateStream(nil, "ThisNameIsLongerThanThirtyOneChars", nil); err == nil {
		t.Errorf("long name accepted")
	}
	e, err := cd.PutStream(nil, "workbook", []byte{3, 4})
	if err != nil {
		t.Fatal(err)
	}
	if len(cd.Root.Children) != 1 || !bytes.Equal(e.Data, []byte{3, 4}) {
		t.Errorf("PutStream did not replace the existing stream")
	}
	if err := cd.Delete(e); err != nil {
		t.Fatal(err)
	}
	if cd.Find("Workbook") != nil {
		t.Errorf("Find(Workbook) after Delete is not nil")
	}
	if err := cd.Delete(cd.Root); err == nil {
		t.Errorf("Delete(root) returned no error")
	}
}

func TestCLSID(t *testing.T) {
	if got := ExcelCLSID.String(); got != "{00020820-0000-0000-C000-000000000046}" {
		t.Errorf("String() = %s", got)
	}
	want := []byte{0x20, 0x08, 0x02, 0x00, 0x00, 0x00, 0x00, 0x00, 0xC0, 0x00}
	if !bytes.Equal(ExcelCLSID[:10], want) {
		t.Errorf("on-disk bytes = % x, expected % x", ExcelCLSID[:10], want)
	}
	cd := New()
	cd.Root.CLSID = ExcelCLSID
	b, err := cd.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	back, err := Open(b, nil)
	if err != nil {
		t.Fatal(err)
	}
	if back.Root.CLSID != ExcelCLSID {
		t.Errorf("root CLSID = %s, expected %s", back.Root.CLSID, ExcelCLSID)
	}
	if _, err := ParseCLSID("not-a-guid"); err == nil {
		t.Errorf("ParseCLSID accepted garbage")
	}
}
